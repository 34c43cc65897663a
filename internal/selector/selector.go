// Package selector picks which historical events are eligible for a given
// calendar date and maps posting slots to events.
package selector

import (
	"fmt"
	"sort"
	"time"

	"github.com/chainofevents/publisher/internal/corpus"
	"github.com/chainofevents/publisher/internal/domain"
)

// maxPerDay caps how many anniversary events a single date can surface for
// posting; one per posting slot.
const maxPerDay = 5

type Selector struct {
	store *corpus.Store
}

func New(store *corpus.Store) *Selector {
	return &Selector{store: store}
}

// AllEvents exposes the full corpus for the public listing endpoint.
// Callers must not mutate the returned slice.
func (s *Selector) AllEvents() []domain.Event {
	return s.store.All()
}

// EventByID returns the event with the given id, or nil when the corpus has
// no such entry.
func (s *Selector) EventByID(id string) *domain.Event {
	for _, ev := range s.store.All() {
		if ev.ID == id {
			ev := ev
			return &ev
		}
	}
	return nil
}

// matchMonthDay returns events whose month and day match the date, ignoring
// year, ordered by event year descending (newest first) then by id ascending
// as a stable tie-break.
func (s *Selector) matchMonthDay(date string) ([]domain.Event, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}

	var matches []domain.Event
	for _, ev := range s.store.All() {
		t, err := ev.Time()
		if err != nil {
			// Entries with unparseable dates never match.
			continue
		}
		if t.Month() == day.Month() && t.Day() == day.Day() {
			matches = append(matches, ev)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		ti, _ := matches[i].Time()
		tj, _ := matches[j].Time()
		if ti.Year() != tj.Year() {
			return ti.Year() > tj.Year()
		}
		return matches[i].ID < matches[j].ID
	})

	return matches, nil
}

// EventsOnDate returns the posting candidates for a YYYY-MM-DD date: the
// anniversary matches for that date, capped at one per posting slot.
func (s *Selector) EventsOnDate(date string) ([]domain.Event, error) {
	matches, err := s.matchMonthDay(date)
	if err != nil {
		return nil, err
	}
	if len(matches) > maxPerDay {
		matches = matches[:maxPerDay]
	}
	return matches, nil
}

// EventForSlot returns the event at the given slot index for the date, or
// nil when fewer events match than slots exist. A nil event is a normal
// condition, not an error.
func (s *Selector) EventForSlot(date string, slotIndex int) (*domain.Event, error) {
	events, err := s.EventsOnDate(date)
	if err != nil {
		return nil, err
	}
	if slotIndex < 0 || slotIndex >= len(events) {
		return nil, nil
	}
	ev := events[slotIndex]
	return &ev, nil
}

// OnThisDay returns up to limit anniversary events for the date, optionally
// filtered by mode. Used by the public read endpoint; it is not capped at
// the posting-slot count.
func (s *Selector) OnThisDay(date string, limit int, modes []domain.Mode) ([]domain.Event, error) {
	events, err := s.matchMonthDay(date)
	if err != nil {
		return nil, err
	}

	if len(modes) > 0 {
		filtered := events[:0:0]
		for _, ev := range events {
			for _, m := range modes {
				if ev.HasMode(m) {
					filtered = append(filtered, ev)
					break
				}
			}
		}
		events = filtered
	}

	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}
