package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Mode controls which timeline surfaces an event appears on.
type Mode string

const (
	ModeTimeline  Mode = "timeline"
	ModeCrimeline Mode = "crimeline"
	ModeBoth      Mode = "both"
)

// Valid reports whether m is a known mode value.
func (m Mode) Valid() bool {
	switch m {
	case ModeTimeline, ModeCrimeline, ModeBoth:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown mode values at the decode boundary.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	mode := Mode(s)
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", s)
	}
	*m = mode
	return nil
}

// Event is a single entry in the historical-event corpus. The publisher
// never mutates events; they are created and edited by an external
// editorial process.
type Event struct {
	ID        string      `json:"id"`
	Date      string      `json:"date"`
	Title     string      `json:"title"`
	Summary   string      `json:"summary"`
	Category  []string    `json:"category"`
	Tags      []string    `json:"tags"`
	Mode      []Mode      `json:"mode"`
	Media     []MediaItem `json:"media,omitempty"`
	Crimeline *Crimeline  `json:"crimeline,omitempty"`
	Metrics   *Metrics    `json:"metrics,omitempty"`
}

// Time parses the event's calendar date.
func (e Event) Time() (time.Time, error) {
	return time.Parse("2006-01-02", e.Date)
}

// HasMode reports whether the event carries the given mode tag.
// ModeBoth satisfies both timeline and crimeline.
func (e Event) HasMode(want Mode) bool {
	for _, m := range e.Mode {
		if m == want || m == ModeBoth {
			return true
		}
	}
	return false
}

// Validate checks the fields the publisher depends on.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if _, err := e.Time(); err != nil {
		return fmt.Errorf("event %s: invalid date %q: %w", e.ID, e.Date, err)
	}
	if e.Title == "" {
		return fmt.Errorf("event %s: missing title", e.ID)
	}
	if e.Summary == "" {
		return fmt.Errorf("event %s: missing summary", e.ID)
	}
	if len(e.Mode) == 0 {
		return fmt.Errorf("event %s: missing mode", e.ID)
	}
	return nil
}

// Crimeline holds the incident details attached to crimeline-mode events.
type Crimeline struct {
	Type          string  `json:"type"`
	Category      string  `json:"category,omitempty"`
	AmountUSD     float64 `json:"amount_usd,omitempty"`
	OutcomeStatus string  `json:"outcome_status,omitempty"`
}

// Metrics holds optional market figures attached to an event.
type Metrics struct {
	PriceUSD     *float64 `json:"price_usd,omitempty"`
	MarketCapUSD *float64 `json:"market_cap_usd,omitempty"`
	VolumeUSD    *float64 `json:"volume_usd,omitempty"`
	DominancePct *float64 `json:"dominance_pct,omitempty"`
}
