// Package schedule resolves wall-clock time in the posting timezone to the
// fixed set of daily posting slots.
package schedule

import (
	"fmt"
	"time"

	"github.com/chainofevents/publisher/internal/domain"
)

// windowSlack is how far outside a slot hour ResolveWindow still matches,
// to absorb cron triggers that fire slightly off the hour.
const windowSlack = 15 * time.Minute

// DefaultSlots returns the five daily posting slots.
func DefaultSlots() []domain.PostingSlot {
	return []domain.PostingSlot{
		{Index: 0, Hour: 10, Label: "10:00 AM"},
		{Index: 1, Hour: 13, Label: "1:00 PM"},
		{Index: 2, Hour: 16, Label: "4:00 PM"},
		{Index: 3, Hour: 19, Label: "7:00 PM"},
		{Index: 4, Hour: 22, Label: "10:00 PM"},
	}
}

// Resolver maps instants to posting slots and civil dates in a fixed IANA
// timezone. DST is handled by the timezone database.
type Resolver struct {
	loc   *time.Location
	slots []domain.PostingSlot
}

// NewResolver loads the timezone and configures the slot table.
func NewResolver(tz string, slots []domain.PostingSlot) (*Resolver, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", tz, err)
	}
	if len(slots) == 0 {
		slots = DefaultSlots()
	}
	return &Resolver{loc: loc, slots: slots}, nil
}

// Slots returns the configured slot table, ordered by index.
func (r *Resolver) Slots() []domain.PostingSlot {
	return r.slots
}

// SlotByIndex returns the slot with the given index, or nil.
func (r *Resolver) SlotByIndex(index int) *domain.PostingSlot {
	for i := range r.slots {
		if r.slots[i].Index == index {
			return &r.slots[i]
		}
	}
	return nil
}

// Resolve returns the slot whose hour equals the civil hour of now in the
// posting timezone, or nil when the current hour is not a posting hour.
// Resolution is whole-hour: any minute within the slot hour matches.
func (r *Resolver) Resolve(now time.Time) *domain.PostingSlot {
	hour := now.In(r.loc).Hour()
	for i := range r.slots {
		if r.slots[i].Hour == hour {
			return &r.slots[i]
		}
	}
	return nil
}

// ResolveWindow is the slack-tolerant variant of Resolve: it also matches
// the 15 minutes before a slot hour. Slots are spaced hours apart, so at
// most one slot can match a given instant.
func (r *Resolver) ResolveWindow(now time.Time) *domain.PostingSlot {
	civil := now.In(r.loc)
	hour, minute := civil.Hour(), civil.Minute()

	for i := range r.slots {
		if r.slots[i].Hour == hour {
			return &r.slots[i]
		}
		if hour == r.slots[i].Hour-1 && time.Duration(60-minute)*time.Minute <= windowSlack {
			return &r.slots[i]
		}
	}
	return nil
}

// CivilDate returns the calendar date of now in the posting timezone,
// formatted YYYY-MM-DD. This is the idempotency partition key.
func (r *Resolver) CivilDate(now time.Time) string {
	return now.In(r.loc).Format("2006-01-02")
}

// Location returns the posting timezone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}
