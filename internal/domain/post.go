package domain

import (
	"fmt"
	"time"
)

// Platform identifies a publishing target.
type Platform string

const (
	PlatformFarcaster Platform = "farcaster"
	PlatformTwitter   Platform = "twitter"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformFarcaster || p == PlatformTwitter
}

// ParsePlatform converts a string into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// PostingSlot is one of the fixed daily publishing moments, identified by
// an hour of day in the scheduling timezone.
type PostingSlot struct {
	Index int    `json:"index"`
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

// PostRecord is the durable proof of a publish action. For a platform the
// pair (PostDate, SlotIndex) is unique; that uniqueness is the at-most-once
// key and is enforced by the datastore, not just by this code. Records are
// created exactly once per successful publish and never updated or deleted
// by the publisher.
type PostRecord struct {
	ID          int64     `json:"id"`
	Platform    Platform  `json:"platform"`
	PostDate    string    `json:"post_date"`
	SlotIndex   int       `json:"slot_index"`
	SlotHour    int       `json:"slot_hour"`
	EventID     string    `json:"event_id"`
	EventDate   string    `json:"event_date"`
	ExternalID  string    `json:"external_id"`
	ExternalURL string    `json:"external_url,omitempty"`
	PostedAt    time.Time `json:"posted_at"`
}
