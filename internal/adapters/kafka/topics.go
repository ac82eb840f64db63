package kafka

// Topic definitions for Kafka event streaming
const (
	// Inbound: upstream systems ask for a pricing run, e.g. after a POS catalog sync.
	TopicRunRequests = "pricing.run_requests"

	// Outbound run lifecycle
	TopicRunCompleted = "pricing.run_completed"
	TopicRunFailed    = "pricing.run_failed"
)
