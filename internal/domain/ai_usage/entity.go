package ai_usage

import "time"

// UsageLog is one completion call as stored in the analytics warehouse.
type UsageLog struct {
	Timestamp time.Time `ch:"timestamp"`
	EventID   string    `ch:"event_id"`

	UserID  string `ch:"user_id"`
	BatchID string `ch:"batch_id"`
	Domain  string `ch:"domain"` // market, competitor, customer, pricing

	Provider string `ch:"provider"`
	Model    string `ch:"model"`

	LatencyMs     uint32 `ch:"latency_ms"`
	PromptChars   uint32 `ch:"prompt_chars"`
	ResponseChars uint32 `ch:"response_chars"`

	Success  bool   `ch:"success"`
	TimedOut bool   `ch:"timed_out"`
	Error    string `ch:"error"`
}

// DomainStats aggregates usage of one agent domain over a window.
type DomainStats struct {
	Domain       string  `ch:"domain"`
	Calls        uint64  `ch:"calls"`
	Failures     uint64  `ch:"failures"`
	AvgLatencyMs float64 `ch:"avg_latency_ms"`
}

// FailureRate is the share of calls that did not produce an answer.
func (s DomainStats) FailureRate() float64 {
	if s.Calls == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Calls)
}
