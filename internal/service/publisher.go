package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/format"
	"github.com/chainofevents/publisher/internal/publish"
	"github.com/chainofevents/publisher/internal/repository"
	"github.com/chainofevents/publisher/internal/schedule"
	"github.com/chainofevents/publisher/internal/selector"
)

// Status discriminates trigger outcomes in the response envelope.
type Status string

const (
	StatusSkipped Status = "skipped"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial_success"
)

// SkipReason says why an invocation was a no-op. All skips are expected,
// non-error conditions.
type SkipReason string

const (
	SkipNotPostingHour    SkipReason = "not_posting_hour"
	SkipAlreadyPostedSlot SkipReason = "already_posted_slot"
	SkipDuplicateEvent    SkipReason = "already_posted_event"
	SkipNoEvent           SkipReason = "no_event_for_slot"
)

// ErrNotConfigured is returned when the platform's publish credentials are
// incomplete. The publisher fails closed rather than attempting a call that
// cannot succeed.
var ErrNotConfigured = errors.New("platform publish credentials not configured")

// ErrInvalidRequest marks caller mistakes (bad date, unknown slot) so the
// HTTP layer can answer 400 instead of 500.
var ErrInvalidRequest = errors.New("invalid request")

// Outcome is the result of one publisher invocation.
type Outcome struct {
	Status     Status
	Reason     SkipReason
	Message    string
	Slot       *domain.PostingSlot
	PostDate   string
	Event      *domain.Event
	External   *publish.Result
	Existing   *domain.PostRecord
	PersistErr error
}

// Preview is the dry-run view served by the test endpoints. It reuses the
// exact resolver, selector and formatter the live walk uses, so what it
// shows is what would post.
type Preview struct {
	PostDate    string
	CurrentSlot *domain.PostingSlot
	SlotIndex   *int
	Slots       []domain.PostingSlot
	Events      []domain.Event
	SlotEvent   *domain.Event
	Payload     *format.Payload
}

// Publisher owns the at-most-once publish contract. It is safe to invoke
// repeatedly: a re-invocation inside an already-recorded slot no-ops, and a
// re-invocation after a failed publish attempts a fresh publish. The
// asymmetry is deliberate: recording is at-most-once, publishing is
// at-least-once. If a publish succeeds externally but the ack is lost, the
// next invocation can produce a real duplicate on the platform; that
// residual risk is accepted (neither platform API offers an idempotency
// token for plain posts).
type Publisher struct {
	resolver *schedule.Resolver
	selector *selector.Selector
	repo     repository.PostRepository
	gateways map[domain.Platform]publish.Gateway
	siteURL  string
	log      *zap.Logger
}

func NewPublisher(
	resolver *schedule.Resolver,
	sel *selector.Selector,
	repo repository.PostRepository,
	gateways []publish.Gateway,
	siteURL string,
	log *zap.Logger,
) *Publisher {
	byPlatform := make(map[domain.Platform]publish.Gateway, len(gateways))
	for _, gw := range gateways {
		byPlatform[gw.Platform()] = gw
	}
	return &Publisher{
		resolver: resolver,
		selector: sel,
		repo:     repo,
		gateways: byPlatform,
		siteURL:  siteURL,
		log:      log,
	}
}

func skip(reason SkipReason, message string, slot *domain.PostingSlot, postDate string) *Outcome {
	return &Outcome{
		Status:   StatusSkipped,
		Reason:   reason,
		Message:  message,
		Slot:     slot,
		PostDate: postDate,
	}
}

// Run walks the publish state machine once. The existence checks are a fast
// path; the datastore uniqueness constraint is what actually guarantees
// at-most-once when two invocations race.
func (p *Publisher) Run(ctx context.Context, platform domain.Platform, now time.Time) (*Outcome, error) {
	gw, ok := p.gateways[platform]
	if !ok || !gw.Configured() {
		return nil, fmt.Errorf("%s: %w", platform, ErrNotConfigured)
	}

	slot := p.resolver.Resolve(now)
	if slot == nil {
		return skip(SkipNotPostingHour, "Not a posting hour", nil, ""), nil
	}

	postDate := p.resolver.CivilDate(now)

	existing, err := p.repo.FindBySlot(ctx, platform, postDate, slot.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing post: %w", err)
	}
	if existing != nil {
		out := skip(SkipAlreadyPostedSlot, "Already posted for this slot today", slot, postDate)
		out.Existing = existing
		return out, nil
	}

	event, err := p.selector.EventForSlot(postDate, slot.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to select event: %w", err)
	}
	if event == nil {
		return skip(SkipNoEvent, "No event available for this slot", slot, postDate), nil
	}

	// Twitter additionally refuses to post the same event twice in one
	// day, even through a different slot.
	if platform == domain.PlatformTwitter {
		dup, err := p.repo.FindByEvent(ctx, platform, postDate, event.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check duplicate event: %w", err)
		}
		if dup != nil {
			out := skip(SkipDuplicateEvent, "This event was already posted today in a different slot", slot, postDate)
			out.Event = event
			out.Existing = dup
			return out, nil
		}
	}

	payload := format.Format(*event, platform, p.siteURL)

	result, err := gw.Publish(ctx, payload)
	if err != nil {
		// No record is written, so the next invocation within this slot
		// hour retries the publish.
		return nil, err
	}

	record := &domain.PostRecord{
		Platform:    platform,
		PostDate:    postDate,
		SlotIndex:   slot.Index,
		SlotHour:    slot.Hour,
		EventID:     event.ID,
		EventDate:   event.Date,
		ExternalID:  result.ExternalID,
		ExternalURL: result.ExternalURL,
	}

	if err := p.repo.Insert(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicatePost) {
			// A concurrent invocation won the insert race. The post went
			// out twice externally, but the record stays unique.
			p.log.Warn("Lost insert race to concurrent invocation",
				zap.String("platform", string(platform)),
				zap.String("post_date", postDate),
				zap.Int("slot_index", slot.Index))
			out := skip(SkipAlreadyPostedSlot, "Already posted for this slot today", slot, postDate)
			out.Event = event
			return out, nil
		}

		// The post is live externally but the duplicate guard is not
		// durable. Never retried automatically: a retry would re-publish.
		p.log.Error("Post published but record not persisted",
			zap.String("platform", string(platform)),
			zap.String("post_date", postDate),
			zap.Int("slot_index", slot.Index),
			zap.String("external_id", result.ExternalID),
			zap.Error(err))
		return &Outcome{
			Status:     StatusPartial,
			Message:    "Posted successfully but failed to save to database",
			Slot:       slot,
			PostDate:   postDate,
			Event:      event,
			External:   result,
			PersistErr: err,
		}, nil
	}

	p.log.Info("Event published",
		zap.String("platform", string(platform)),
		zap.String("post_date", postDate),
		zap.Int("slot_index", slot.Index),
		zap.String("event_id", event.ID),
		zap.String("external_id", result.ExternalID))

	return &Outcome{
		Status:   StatusSuccess,
		Message:  "Posted successfully",
		Slot:     slot,
		PostDate: postDate,
		Event:    event,
		External: result,
	}, nil
}

// Preview resolves, selects and formats for a date and slot without side
// effects. When date is empty the current civil date is used; when
// slotIndex is nil the currently active slot (if any) is used.
func (p *Publisher) Preview(platform domain.Platform, date string, slotIndex *int, now time.Time) (*Preview, error) {
	if date == "" {
		date = p.resolver.CivilDate(now)
	}

	events, err := p.selector.EventsOnDate(date)
	if err != nil {
		return nil, err
	}

	pv := &Preview{
		PostDate:    date,
		CurrentSlot: p.resolver.Resolve(now),
		Slots:       p.resolver.Slots(),
		Events:      events,
	}

	idx := slotIndex
	if idx == nil && pv.CurrentSlot != nil {
		i := pv.CurrentSlot.Index
		idx = &i
	}
	if idx == nil {
		return pv, nil
	}
	pv.SlotIndex = idx

	event, err := p.selector.EventForSlot(date, *idx)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return pv, nil
	}

	pv.SlotEvent = event
	payload := format.Format(*event, platform, p.siteURL)
	pv.Payload = &payload
	return pv, nil
}

// PublishManual posts the event for an explicit date and slot. It skips the
// slot-hour and already-posted checks and does not write a record, so it
// cannot interfere with the scheduled walk's idempotency key.
func (p *Publisher) PublishManual(ctx context.Context, platform domain.Platform, date string, slotIndex int) (*Outcome, error) {
	gw, ok := p.gateways[platform]
	if !ok || !gw.Configured() {
		return nil, fmt.Errorf("%s: %w", platform, ErrNotConfigured)
	}

	slot := p.resolver.SlotByIndex(slotIndex)
	if slot == nil {
		return nil, fmt.Errorf("%w: invalid slot index %d", ErrInvalidRequest, slotIndex)
	}

	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("%w: invalid date %q", ErrInvalidRequest, date)
	}

	event, err := p.selector.EventForSlot(date, slotIndex)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return skip(SkipNoEvent, "No event for this date and slot", slot, date), nil
	}

	payload := format.Format(*event, platform, p.siteURL)
	result, err := gw.Publish(ctx, payload)
	if err != nil {
		return nil, err
	}

	p.log.Info("Manual post published (not recorded)",
		zap.String("platform", string(platform)),
		zap.String("post_date", date),
		zap.Int("slot_index", slotIndex),
		zap.String("event_id", event.ID))

	return &Outcome{
		Status:   StatusSuccess,
		Message:  "Posted successfully (manual trigger - not saved to database)",
		Slot:     slot,
		PostDate: date,
		Event:    event,
		External: result,
	}, nil
}
