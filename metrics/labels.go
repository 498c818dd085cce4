package metrics

const (
	labelQueue     = "queue"
	labelListener  = "listener"
	labelOutcome   = "outcome"
	labelComponent = "component"

	OutcomeAcked  = "acked"
	OutcomeNacked = "nacked"

	ComponentProvider = "provider"
	ComponentConsumer = "consumer"
)

var deliveryLabelKeys = []string{
	labelQueue,
	labelListener,
	labelOutcome,
}
