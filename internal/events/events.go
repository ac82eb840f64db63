// Package events defines the JSON payloads exchanged over Kafka and the
// publisher for pricing run lifecycle events.
package events

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const eventVersion = "1.0"

// Event types
const (
	TypeRunRequested = "pricing.run_requested"
	TypeRunCompleted = "pricing.run_completed"
	TypeRunFailed    = "pricing.run_failed"
)

// BaseEvent is embedded in every payload.
type BaseEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// NewBaseEvent creates a new base event with defaults
func NewBaseEvent(eventType, source, userID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Version:   eventVersion,
	}
}

// RunRequested asks for a pricing run of one user.
type RunRequested struct {
	BaseEvent
	Reason string `json:"reason,omitempty"` // e.g. catalog_sync
}

// RunCompleted is published when a run reaches COMPLETED.
type RunCompleted struct {
	BaseEvent
	JobID            string         `json:"job_id"`
	BatchID          string         `json:"batch_id"`
	Recommendations  int            `json:"recommendations"`
	Skipped          int            `json:"skipped"`
	SkippedByReason  map[string]int `json:"skipped_by_reason,omitempty"`
	DegradedDomains  []string       `json:"degraded_domains,omitempty"`
	AverageChangePct float64        `json:"average_change_pct"`
	DurationMs       int64          `json:"duration_ms"`
}

// RunFailed is published when a run reaches FAILED. BatchID locates any
// rows written before the failure.
type RunFailed struct {
	BaseEvent
	JobID   string `json:"job_id"`
	BatchID string `json:"batch_id"`
	Stage   string `json:"stage"`
	Error   string `json:"error"`
}

// SanitizeUTF8 drops invalid byte sequences so error text from drivers and
// model output always serializes.
func SanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r != utf8.RuneError || size > 1 {
			b.WriteString(s[:size])
		}
		s = s[size:]
	}
	return b.String()
}
