package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/corpus"
	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/format"
	"github.com/chainofevents/publisher/internal/publish"
	"github.com/chainofevents/publisher/internal/repository"
	"github.com/chainofevents/publisher/internal/schedule"
	"github.com/chainofevents/publisher/internal/selector"
)

// MockPostRepository is a mock implementation of repository.PostRepository
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) FindBySlot(ctx context.Context, platform domain.Platform, postDate string, slotIndex int) (*domain.PostRecord, error) {
	args := m.Called(ctx, platform, postDate, slotIndex)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostRecord), args.Error(1)
}

func (m *MockPostRepository) FindByEvent(ctx context.Context, platform domain.Platform, postDate string, eventID string) (*domain.PostRecord, error) {
	args := m.Called(ctx, platform, postDate, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PostRecord), args.Error(1)
}

func (m *MockPostRepository) Insert(ctx context.Context, record *domain.PostRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockPostRepository) InitSchema(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPostRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPostRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockGateway is a mock implementation of publish.Gateway
type MockGateway struct {
	mock.Mock
	platform   domain.Platform
	configured bool
}

func (m *MockGateway) Platform() domain.Platform {
	return m.platform
}

func (m *MockGateway) Configured() bool {
	return m.configured
}

func (m *MockGateway) Publish(ctx context.Context, payload format.Payload) (*publish.Result, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*publish.Result), args.Error(1)
}

// fixtures

func testStore() *corpus.Store {
	return corpus.NewStore([]domain.Event{
		{
			ID:      "march-2021",
			Date:    "2021-03-05",
			Title:   "Newest March Event",
			Summary: "The newest thing happened. Details followed.",
			Mode:    []domain.Mode{domain.ModeTimeline},
		},
		{
			ID:      "march-2015",
			Date:    "2015-03-05",
			Title:   "Older March Event",
			Summary: "The older thing happened. Details followed.",
			Mode:    []domain.Mode{domain.ModeTimeline},
		},
		{
			ID:      "btc-genesis",
			Date:    "2009-01-03",
			Title:   "Bitcoin Genesis",
			Summary: "The genesis block was mined. Nothing was the same.",
			Mode:    []domain.Mode{domain.ModeTimeline},
		},
	})
}

func testResolver(t *testing.T) *schedule.Resolver {
	t.Helper()
	r, err := schedule.NewResolver("America/Chicago", nil)
	require.NoError(t, err)
	return r
}

// slotOneNow is 13:04 civil time on 2024-03-05 in Chicago: inside the
// 1:00 PM slot (index 1).
func slotOneNow(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	return time.Date(2024, 3, 5, 13, 4, 0, 0, loc)
}

func newTestPublisher(t *testing.T, repo repository.PostRepository, gw publish.Gateway) *Publisher {
	t.Helper()
	return NewPublisher(
		testResolver(t),
		selector.New(testStore()),
		repo,
		[]publish.Gateway{gw},
		"https://chainofevents.xyz",
		zap.NewNop(),
	)
}

func TestPublisher_Run_Success(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(nil, nil)
	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{
		ExternalID:  "0xhash",
		ExternalURL: "https://warpcast.com/coe/0xhash",
	}, nil)
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(rec *domain.PostRecord) bool {
		return rec.Platform == domain.PlatformFarcaster &&
			rec.PostDate == "2024-03-05" &&
			rec.SlotIndex == 1 &&
			rec.SlotHour == 13 &&
			rec.EventID == "march-2015" &&
			rec.EventDate == "2015-03-05" &&
			rec.ExternalID == "0xhash"
	})).Return(nil)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	assert.Equal(t, "2024-03-05", outcome.PostDate)
	require.NotNil(t, outcome.Event)
	// Slot index 1 maps to the second-newest match for the date.
	assert.Equal(t, "march-2015", outcome.Event.ID)
	repo.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestPublisher_Run_NotAPostingHour(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, loc)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, now)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, SkipNotPostingHour, outcome.Reason)
	repo.AssertNotCalled(t, "FindBySlot")
	gw.AssertNotCalled(t, "Publish")
}

func TestPublisher_Run_AlreadyPostedForSlot(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	existing := &domain.PostRecord{
		Platform:  domain.PlatformFarcaster,
		PostDate:  "2024-03-05",
		SlotIndex: 1,
		EventID:   "march-2015",
	}
	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(existing, nil)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, SkipAlreadyPostedSlot, outcome.Reason)
	assert.Equal(t, existing, outcome.Existing)
	gw.AssertNotCalled(t, "Publish")
	repo.AssertNotCalled(t, "Insert")
}

func TestPublisher_Run_NoEventForSlot(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	// 16:10 is slot index 2; only two events match March 5.
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	now := time.Date(2024, 3, 5, 16, 10, 0, 0, loc)

	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 2).Return(nil, nil)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, now)

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, SkipNoEvent, outcome.Reason)
	gw.AssertNotCalled(t, "Publish")
}

func TestPublisher_Run_TwitterRefusesDuplicateEvent(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformTwitter, configured: true}
	p := newTestPublisher(t, repo, gw)

	dup := &domain.PostRecord{
		Platform:  domain.PlatformTwitter,
		PostDate:  "2024-03-05",
		SlotIndex: 0,
		EventID:   "march-2015",
	}
	repo.On("FindBySlot", mock.Anything, domain.PlatformTwitter, "2024-03-05", 1).Return(nil, nil)
	repo.On("FindByEvent", mock.Anything, domain.PlatformTwitter, "2024-03-05", "march-2015").Return(dup, nil)

	outcome, err := p.Run(context.Background(), domain.PlatformTwitter, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, SkipDuplicateEvent, outcome.Reason)
	gw.AssertNotCalled(t, "Publish")
}

func TestPublisher_Run_FarcasterSkipsEventDuplicateCheck(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(nil, nil)
	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{ExternalID: "0xhash"}, nil)
	repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	_, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	require.NoError(t, err)
	repo.AssertNotCalled(t, "FindByEvent")
}

func TestPublisher_Run_PublishFailureWritesNoRecord(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(nil, nil)
	gw.On("Publish", mock.Anything, mock.Anything).Return(nil, &publish.Error{
		Platform: domain.PlatformFarcaster,
		Message:  "rate limited",
	})

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	require.Error(t, err)
	assert.Nil(t, outcome)
	var pubErr *publish.Error
	assert.True(t, errors.As(err, &pubErr))
	// No record means the next invocation in this slot retries the publish.
	repo.AssertNotCalled(t, "Insert")
}

func TestPublisher_Run_InsertDuplicateIsAlreadyPosted(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(nil, nil)
	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{ExternalID: "0xhash"}, nil)
	repo.On("Insert", mock.Anything, mock.Anything).Return(repository.ErrDuplicatePost)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	// Losing the insert race to a concurrent invocation is not a failure.
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, outcome.Status)
	assert.Equal(t, SkipAlreadyPostedSlot, outcome.Reason)
}

func TestPublisher_Run_PersistFailureIsPartialSuccess(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	persistErr := errors.New("connection reset")
	repo.On("FindBySlot", mock.Anything, domain.PlatformFarcaster, "2024-03-05", 1).Return(nil, nil)
	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{
		ExternalID:  "0xhash",
		ExternalURL: "https://warpcast.com/coe/0xhash",
	}, nil)
	repo.On("Insert", mock.Anything, mock.Anything).Return(persistErr)

	outcome, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, StatusPartial, outcome.Status)
	require.NotNil(t, outcome.External)
	assert.Equal(t, "0xhash", outcome.External.ExternalID)
	assert.ErrorIs(t, outcome.PersistErr, persistErr)
}

func TestPublisher_Run_NotConfiguredFailsClosed(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: false}
	p := newTestPublisher(t, repo, gw)

	_, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))

	assert.ErrorIs(t, err, ErrNotConfigured)
	repo.AssertNotCalled(t, "FindBySlot")
}

func TestPublisher_Run_UnknownPlatformFailsClosed(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	_, err := p.Run(context.Background(), domain.PlatformTwitter, slotOneNow(t))

	assert.ErrorIs(t, err, ErrNotConfigured)
}

// fakeRepo is an in-memory PostRepository enforcing the same uniqueness the
// Postgres schema does. Used for the idempotency and race walks.
type fakeRepo struct {
	records   []domain.PostRecord
	blindRead bool // when set, FindBySlot pretends no record exists
}

func (f *fakeRepo) FindBySlot(_ context.Context, platform domain.Platform, postDate string, slotIndex int) (*domain.PostRecord, error) {
	if f.blindRead {
		return nil, nil
	}
	for i := range f.records {
		r := f.records[i]
		if r.Platform == platform && r.PostDate == postDate && r.SlotIndex == slotIndex {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) FindByEvent(_ context.Context, platform domain.Platform, postDate string, eventID string) (*domain.PostRecord, error) {
	if f.blindRead {
		return nil, nil
	}
	for i := range f.records {
		r := f.records[i]
		if r.Platform == platform && r.PostDate == postDate && r.EventID == eventID {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) Insert(_ context.Context, record *domain.PostRecord) error {
	for _, r := range f.records {
		if r.Platform == record.Platform && r.PostDate == record.PostDate && r.SlotIndex == record.SlotIndex {
			return repository.ErrDuplicatePost
		}
		if record.Platform == domain.PlatformTwitter &&
			r.Platform == record.Platform && r.PostDate == record.PostDate && r.EventID == record.EventID {
			return repository.ErrDuplicatePost
		}
	}
	record.ID = int64(len(f.records) + 1)
	record.PostedAt = time.Now()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeRepo) InitSchema(context.Context) error { return nil }
func (f *fakeRepo) Ping(context.Context) error       { return nil }
func (f *fakeRepo) Close() error                     { return nil }

func TestPublisher_Run_SecondInvocationIsIdempotent(t *testing.T) {
	repo := &fakeRepo{}
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{ExternalID: "0xhash"}, nil).Once()

	first, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)

	second, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, SkipAlreadyPostedSlot, second.Reason)

	// Exactly one record and exactly one publish call.
	assert.Len(t, repo.records, 1)
	gw.AssertExpectations(t)
}

func TestPublisher_Run_RacingInvocationsKeepOneRecord(t *testing.T) {
	// blindRead simulates both invocations passing the existence check
	// before either insert lands; the uniqueness constraint is then the
	// only thing preventing a duplicate record.
	repo := &fakeRepo{blindRead: true}
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{ExternalID: "0xhash"}, nil).Times(2)

	first, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, first.Status)

	second, err := p.Run(context.Background(), domain.PlatformFarcaster, slotOneNow(t))
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, second.Status)
	assert.Equal(t, SkipAlreadyPostedSlot, second.Reason)

	assert.Len(t, repo.records, 1)
	gw.AssertExpectations(t)
}

func TestPublisher_Preview_ReusesSelectionAndFormatting(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformTwitter, configured: true}
	p := newTestPublisher(t, repo, gw)

	slot := 0
	pv, err := p.Preview(domain.PlatformTwitter, "2024-03-05", &slot, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", pv.PostDate)
	require.NotNil(t, pv.SlotEvent)
	assert.Equal(t, "march-2021", pv.SlotEvent.ID)
	require.NotNil(t, pv.Payload)
	expected := format.Format(*pv.SlotEvent, domain.PlatformTwitter, "https://chainofevents.xyz")
	assert.Equal(t, expected, *pv.Payload)
	// Preview never touches the datastore or the platform.
	repo.AssertNotCalled(t, "FindBySlot")
	gw.AssertNotCalled(t, "Publish")
}

func TestPublisher_Preview_DefaultsToCurrentSlotAndDate(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	pv, err := p.Preview(domain.PlatformFarcaster, "", nil, slotOneNow(t))

	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", pv.PostDate)
	require.NotNil(t, pv.CurrentSlot)
	assert.Equal(t, 1, pv.CurrentSlot.Index)
	require.NotNil(t, pv.SlotIndex)
	assert.Equal(t, 1, *pv.SlotIndex)
	require.NotNil(t, pv.SlotEvent)
	assert.Equal(t, "march-2015", pv.SlotEvent.ID)
}

func TestPublisher_PublishManual_DoesNotRecord(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	gw.On("Publish", mock.Anything, mock.Anything).Return(&publish.Result{ExternalID: "0xhash"}, nil)

	outcome, err := p.PublishManual(context.Background(), domain.PlatformFarcaster, "2024-03-05", 0)

	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, outcome.Status)
	repo.AssertNotCalled(t, "Insert")
	repo.AssertNotCalled(t, "FindBySlot")
}

func TestPublisher_PublishManual_InvalidSlot(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	_, err := p.PublishManual(context.Background(), domain.PlatformFarcaster, "2024-03-05", 9)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Contains(t, err.Error(), fmt.Sprintf("invalid slot index %d", 9))
}

func TestPublisher_PublishManual_InvalidDate(t *testing.T) {
	repo := new(MockPostRepository)
	gw := &MockGateway{platform: domain.PlatformFarcaster, configured: true}
	p := newTestPublisher(t, repo, gw)

	_, err := p.PublishManual(context.Background(), domain.PlatformFarcaster, "03/05/2024", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	gw.AssertNotCalled(t, "Publish")
}
