// Package metrics exposes listener and activation metrics with Prometheus.
package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

func NewPrometheusMetricsBuilder(prometheusRegistry prometheus.Registerer, namespace string, subsystem string) PrometheusMetricsBuilder {
	return PrometheusMetricsBuilder{
		Namespace:          namespace,
		Subsystem:          subsystem,
		PrometheusRegistry: prometheusRegistry,
	}
}

// PrometheusMetricsBuilder creates the listener metrics.
type PrometheusMetricsBuilder struct {
	// PrometheusRegistry may be filled with a pre-existing Prometheus registry, or left empty for the default registry.
	PrometheusRegistry prometheus.Registerer

	Namespace string
	Subsystem string
}

// NewListenerMetrics registers the listener metrics. containers reports the number of
// running listener containers, it may be nil.
func (b PrometheusMetricsBuilder) NewListenerMetrics(containers func() int) (*ListenerMetrics, error) {
	var err error
	m := &ListenerMetrics{}

	m.deliveriesTotal, err = b.registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      "listener_deliveries_total",
			Help:      "The total number of deliveries settled by listener containers",
		},
		deliveryLabelKeys,
	))
	if err != nil {
		return nil, errors.Wrap(err, "could not register deliveries metric")
	}

	m.activationsTotal, err = b.registerCounterVec(prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: b.Namespace,
			Subsystem: b.Subsystem,
			Name:      "activations_total",
			Help:      "The total number of successful provider and consumer activations",
		},
		[]string{labelComponent},
	))
	if err != nil {
		return nil, errors.Wrap(err, "could not register activations metric")
	}

	if containers != nil {
		_, err = b.register(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: b.Namespace,
				Subsystem: b.Subsystem,
				Name:      "listener_containers",
				Help:      "The number of running listener containers",
			},
			func() float64 { return float64(containers()) },
		))
		if err != nil {
			return nil, errors.Wrap(err, "could not register containers metric")
		}
	}

	return m, nil
}

func (b PrometheusMetricsBuilder) registerer() prometheus.Registerer {
	if b.PrometheusRegistry == nil {
		return prometheus.DefaultRegisterer
	}
	return b.PrometheusRegistry
}

func (b PrometheusMetricsBuilder) register(c prometheus.Collector) (prometheus.Collector, error) {
	err := b.registerer().Register(c)
	if err == nil {
		return c, nil
	}

	if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return are.ExistingCollector, nil
	}

	return nil, err
}

func (b PrometheusMetricsBuilder) registerCounterVec(c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	col, err := b.register(c)
	if err != nil {
		return nil, err
	}
	return col.(*prometheus.CounterVec), nil
}
