package service

import (
	"context"
	"time"

	"github.com/chainofevents/publisher/internal/domain"
)

// BotPublisher is the publishing surface the HTTP handlers depend on.
type BotPublisher interface {
	// Run executes one idempotent publish walk for the platform at the
	// given instant. Expected skip conditions come back as an Outcome
	// with a skipped status and a nil error.
	Run(ctx context.Context, platform domain.Platform, now time.Time) (*Outcome, error)

	// Preview reports what Run would select and format for a date and
	// slot without publishing or writing anything.
	Preview(platform domain.Platform, date string, slotIndex *int, now time.Time) (*Preview, error)

	// PublishManual posts the event for an explicit date and slot without
	// recording it, bypassing the slot-hour and already-posted checks.
	PublishManual(ctx context.Context, platform domain.Platform, date string, slotIndex int) (*Outcome, error)
}
