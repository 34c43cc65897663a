// Package publish adapts external social-platform APIs behind a single
// capability: publish a payload, get back an external post identity. The
// adapters make exactly one network call and never retry; retrying is the
// caller's concern.
package publish

import (
	"context"
	"fmt"

	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/format"
)

// Result identifies the externally visible post created by a gateway.
type Result struct {
	ExternalID  string
	ExternalURL string
}

// Error is a publish failure with the platform's own detail attached.
type Error struct {
	Platform domain.Platform
	Message  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s publish failed: %s", e.Platform, e.Message)
}

// Gateway is the per-platform publish capability.
type Gateway interface {
	// Platform identifies the target this gateway publishes to.
	Platform() domain.Platform

	// Configured reports whether the gateway has complete credentials.
	// Unconfigured gateways must not be invoked.
	Configured() bool

	// Publish performs one network call to create the post. Provider
	// failures come back as *Error; no retries happen internally.
	Publish(ctx context.Context, payload format.Payload) (*Result, error)
}
