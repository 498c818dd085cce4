package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ThreeDotsLabs/watermill-autoconfig/listener"
	"github.com/ThreeDotsLabs/watermill-autoconfig/message"
)

// ListenerMetrics counts settled deliveries and activations.
type ListenerMetrics struct {
	deliveriesTotal  *prometheus.CounterVec
	activationsTotal *prometheus.CounterVec
}

// ObserveDelivery counts a delivery as acked when err is nil and as nacked otherwise.
func (m *ListenerMetrics) ObserveDelivery(queue, listenerName string, _ *message.Message, err error) {
	outcome := OutcomeAcked
	if err != nil {
		outcome = OutcomeNacked
	}

	m.deliveriesTotal.With(prometheus.Labels{
		labelQueue:    queue,
		labelListener: listenerName,
		labelOutcome:  outcome,
	}).Inc()
}

// DeliveryObserver returns ObserveDelivery as a listener.DeliveryObserver.
func (m *ListenerMetrics) DeliveryObserver() listener.DeliveryObserver {
	return m.ObserveDelivery
}

// ObserveActivation counts a successful activation of component.
func (m *ListenerMetrics) ObserveActivation(component string) {
	m.activationsTotal.With(prometheus.Labels{labelComponent: component}).Inc()
}
