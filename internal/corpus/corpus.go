// Package corpus loads the read-only historical-event dataset the bots
// publish from. The file is produced by an external editorial process; this
// service only ever reads it.
package corpus

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/domain"
)

// Store holds the decoded event corpus in memory. It is immutable after
// Load, so it is safe for concurrent readers.
type Store struct {
	events []domain.Event
}

// Load reads and validates the event corpus from a JSON file.
func Load(path string, log *zap.Logger) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}

	var events []domain.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode events file: %w", err)
	}

	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("events file entry %d: %w", i, err)
		}
	}

	log.Info("Event corpus loaded",
		zap.String("path", path),
		zap.Int("events", len(events)))

	return &Store{events: events}, nil
}

// NewStore wraps an already-decoded event list. Used by tests.
func NewStore(events []domain.Event) *Store {
	return &Store{events: events}
}

// All returns every event in the corpus. Callers must not mutate the
// returned slice.
func (s *Store) All() []domain.Event {
	return s.events
}

// Len returns the number of events in the corpus.
func (s *Store) Len() int {
	return len(s.events)
}
