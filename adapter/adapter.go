// Package adapter defines outbound notification of completed flash
// operations.
package adapter

import (
	"context"
	"time"
)

// Outcome is the terminal result of a flash operation.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// FlashCompletedEvent describes a finished flash operation. It
// deliberately carries no image paths, device serials, or other
// identifying detail; sinks receive outcomes and counters only.
type FlashCompletedEvent struct {
	Outcome      Outcome       `json:"outcome"`
	Duration     time.Duration `json:"duration_ns"`
	BytesWritten int64         `json:"bytes_written"`
	Retried      bool          `json:"retried"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Adapter delivers flash completion events to an external sink.
type Adapter interface {
	// NotifyFlashCompleted delivers the event. Delivery failures are
	// the adapter's to report; they never affect the flash outcome.
	NotifyFlashCompleted(ctx context.Context, event FlashCompletedEvent) error
}

// Discard drops every event. Used when no sink is configured.
type Discard struct{}

// NotifyFlashCompleted implements Adapter.
func (Discard) NotifyFlashCompleted(context.Context, FlashCompletedEvent) error {
	return nil
}
