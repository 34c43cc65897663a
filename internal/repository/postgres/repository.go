package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/repository"
)

// uniqueViolation is the Postgres error code for a unique-constraint
// violation.
const uniqueViolation = "23505"

// Repository implements PostRepository on Postgres. The per-platform unique
// indexes are the actual source of truth for the at-most-once contract; the
// application-level existence checks only avoid wasted publish calls.
type Repository struct {
	client *Client
	log    *zap.Logger
}

func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{client: client, log: log}
}

// tableFor maps a platform to its append-only post table.
func tableFor(platform domain.Platform) (string, error) {
	switch platform {
	case domain.PlatformFarcaster:
		return "farcaster_bot_posts", nil
	case domain.PlatformTwitter:
		return "twitter_bot_posts", nil
	default:
		return "", fmt.Errorf("unknown platform %q", platform)
	}
}

// InitSchema creates the post tables and uniqueness constraints. The slot
// uniqueness exists for both platforms; the per-event uniqueness only for
// Twitter, which must not repeat an event across slots in one day.
func (r *Repository) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS farcaster_bot_posts (
			id BIGSERIAL PRIMARY KEY,
			post_date TEXT NOT NULL,
			slot_index INT NOT NULL,
			slot_hour INT NOT NULL,
			event_id TEXT NOT NULL,
			event_date TEXT NOT NULL,
			external_id TEXT NOT NULL,
			external_url TEXT,
			posted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT farcaster_bot_posts_date_slot_key UNIQUE (post_date, slot_index)
		)`,
		`CREATE TABLE IF NOT EXISTS twitter_bot_posts (
			id BIGSERIAL PRIMARY KEY,
			post_date TEXT NOT NULL,
			slot_index INT NOT NULL,
			slot_hour INT NOT NULL,
			event_id TEXT NOT NULL,
			event_date TEXT NOT NULL,
			external_id TEXT NOT NULL,
			external_url TEXT,
			posted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT twitter_bot_posts_date_slot_key UNIQUE (post_date, slot_index),
			CONSTRAINT twitter_bot_posts_date_event_key UNIQUE (post_date, event_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := r.client.DB().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create post tables: %w", err)
		}
	}

	r.log.Info("Post tables initialized")
	return nil
}

func (r *Repository) FindBySlot(ctx context.Context, platform domain.Platform, postDate string, slotIndex int) (*domain.PostRecord, error) {
	table, err := tableFor(platform)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, post_date, slot_index, slot_hour, event_id, event_date, external_id, external_url, posted_at
		FROM %s
		WHERE post_date = $1 AND slot_index = $2
	`, table)

	return r.scanOne(ctx, platform, query, postDate, slotIndex)
}

func (r *Repository) FindByEvent(ctx context.Context, platform domain.Platform, postDate string, eventID string) (*domain.PostRecord, error) {
	table, err := tableFor(platform)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, post_date, slot_index, slot_hour, event_id, event_date, external_id, external_url, posted_at
		FROM %s
		WHERE post_date = $1 AND event_id = $2
	`, table)

	return r.scanOne(ctx, platform, query, postDate, eventID)
}

func (r *Repository) scanOne(ctx context.Context, platform domain.Platform, query string, args ...interface{}) (*domain.PostRecord, error) {
	var rec domain.PostRecord
	var externalURL sql.NullString

	err := r.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&rec.ID,
		&rec.PostDate,
		&rec.SlotIndex,
		&rec.SlotHour,
		&rec.EventID,
		&rec.EventDate,
		&rec.ExternalID,
		&externalURL,
		&rec.PostedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query post record: %w", err)
	}

	rec.Platform = platform
	rec.ExternalURL = externalURL.String
	return &rec, nil
}

func (r *Repository) Insert(ctx context.Context, record *domain.PostRecord) error {
	table, err := tableFor(record.Platform)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (post_date, slot_index, slot_hour, event_id, event_date, external_id, external_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, posted_at
	`, table)

	var externalURL interface{}
	if record.ExternalURL != "" {
		externalURL = record.ExternalURL
	}

	err = r.client.DB().QueryRowContext(ctx, query,
		record.PostDate,
		record.SlotIndex,
		record.SlotHour,
		record.EventID,
		record.EventDate,
		record.ExternalID,
		externalURL,
	).Scan(&record.ID, &record.PostedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicatePost
		}
		return fmt.Errorf("failed to insert post record: %w", err)
	}

	r.log.Info("Post record saved",
		zap.String("platform", string(record.Platform)),
		zap.String("post_date", record.PostDate),
		zap.Int("slot_index", record.SlotIndex),
		zap.String("event_id", record.EventID))

	return nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.DB().PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.client.Close()
}
