package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/auth"
	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/dto"
	"github.com/chainofevents/publisher/internal/ratelimit"
	"github.com/chainofevents/publisher/internal/selector"
	"github.com/chainofevents/publisher/internal/service"
)

// Handler wires the HTTP surface: the per-platform cron triggers, their
// test and manual variants, and the rate-limited public read endpoints.
type Handler struct {
	publisher    service.BotPublisher
	selector     *selector.Selector
	limiter      ratelimit.Limiter
	cronSecret   string
	manualSecret string
	router       *gin.Engine
	log          *zap.Logger
	now          func() time.Time
}

func NewHandler(
	publisher service.BotPublisher,
	sel *selector.Selector,
	limiter ratelimit.Limiter,
	cronSecret, manualSecret string,
	log *zap.Logger,
) *Handler {
	h := &Handler{
		publisher:    publisher,
		selector:     sel,
		limiter:      limiter,
		cronSecret:   cronSecret,
		manualSecret: manualSecret,
		router:       gin.Default(),
		log:          log,
		now:          time.Now,
	}

	h.registerRoutes()

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.GET("/health", h.healthCheck)

	cron := h.router.Group("/cron")
	cron.GET("/farcaster-bot", h.trigger(domain.PlatformFarcaster))
	cron.GET("/twitter-bot", h.trigger(domain.PlatformTwitter))
	cron.GET("/farcaster-test", h.preview(domain.PlatformFarcaster))
	cron.GET("/twitter-test", h.preview(domain.PlatformTwitter))
	cron.POST("/farcaster-manual", h.manual(domain.PlatformFarcaster))
	cron.POST("/twitter-manual", h.manual(domain.PlatformTwitter))

	v1 := h.router.Group("/v1", h.rateLimit("api:v1:events"))
	v1.GET("/events", h.listEvents)
	v1.GET("/events/on-this-day", h.onThisDay)
	v1.GET("/events/:id", h.getEvent)
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// trigger handles one scheduled publish invocation. The scheduler polls
// every ~15 minutes with no deduplication of its own; all idempotency lives
// in the publisher and the datastore constraints.
func (h *Handler) trigger(platform domain.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Skipped when no secret is configured (dev-mode behavior).
		if h.cronSecret != "" && !auth.ValidateBearer(c.GetHeader("Authorization"), h.cronSecret) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
			return
		}

		outcome, err := h.publisher.Run(c.Request.Context(), platform, h.now())
		if err != nil {
			h.log.Error("Trigger failed",
				zap.String("platform", string(platform)),
				zap.Error(err))
			status := http.StatusInternalServerError
			label := "Failed to publish post"
			if errors.Is(err, service.ErrNotConfigured) {
				label = "Server configuration error"
			}
			c.JSON(status, dto.ErrorResponse{Error: label, Details: err.Error()})
			return
		}

		c.JSON(http.StatusOK, triggerResponse(outcome))
	}
}

func triggerResponse(outcome *service.Outcome) dto.TriggerResponse {
	resp := dto.TriggerResponse{
		Status:   string(outcome.Status),
		Message:  outcome.Message,
		PostDate: outcome.PostDate,
	}
	if outcome.Slot != nil {
		resp.Slot = outcome.Slot.Label
		idx := outcome.Slot.Index
		resp.SlotIndex = &idx
	}
	if outcome.Event != nil {
		resp.Event = &dto.EventSummary{
			ID:    outcome.Event.ID,
			Title: outcome.Event.Title,
			Date:  outcome.Event.Date,
		}
	}
	if outcome.External != nil {
		resp.ExternalPost = &dto.ExternalPost{
			ID:  outcome.External.ExternalID,
			URL: outcome.External.ExternalURL,
		}
	}
	if outcome.Existing != nil {
		resp.ExistingPost = outcome.Existing
	}
	if outcome.PersistErr != nil {
		resp.Error = outcome.PersistErr.Error()
	}
	return resp
}

// preview shows what would be selected and formatted for a date and slot
// without posting or writing records. No auth: it exposes only corpus data.
func (h *Handler) preview(platform domain.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.PreviewRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_error", Details: err.Error()})
			return
		}

		pv, err := h.publisher.Preview(platform, req.Date, req.Slot, h.now())
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Details: err.Error()})
			return
		}

		resp := dto.PreviewResponse{
			Status:      "test",
			Message:     "This is a test endpoint - no posts are sent",
			PostDate:    pv.PostDate,
			CurrentSlot: "Not a posting hour",
			SlotIndex:   pv.SlotIndex,
		}
		if pv.CurrentSlot != nil {
			resp.CurrentSlot = pv.CurrentSlot.Label
		}
		for _, slot := range pv.Slots {
			resp.Slots = append(resp.Slots, dto.SlotInfo{Index: slot.Index, Hour: slot.Hour, Label: slot.Label})
		}
		for _, ev := range pv.Events {
			resp.EventsForDate = append(resp.EventsForDate, dto.EventSummary{ID: ev.ID, Title: ev.Title, Date: ev.Date})
		}
		resp.EventForSlot = pv.SlotEvent
		if pv.Payload != nil {
			resp.FormattedPost = &dto.FormattedPost{
				Text:           pv.Payload.Text,
				EmbedURL:       pv.Payload.EmbedURL,
				CharacterCount: len(pv.Payload.Text),
			}
		}

		c.JSON(http.StatusOK, resp)
	}
}

// manual posts for an explicit date and slot without recording. Guarded by
// its own secret so it cannot be confused with the scheduled trigger.
func (h *Handler) manual(platform domain.Platform) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dto.ManualPostRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_error", Details: err.Error()})
			return
		}

		if h.manualSecret != "" && !auth.SafeCompare(req.Secret, h.manualSecret) {
			c.JSON(http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
			return
		}

		outcome, err := h.publisher.PublishManual(c.Request.Context(), platform, req.Date, *req.Slot)
		if err != nil {
			if errors.Is(err, service.ErrInvalidRequest) {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Details: err.Error()})
				return
			}
			h.log.Error("Manual post failed",
				zap.String("platform", string(platform)),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to publish post", Details: err.Error()})
			return
		}

		c.JSON(http.StatusOK, triggerResponse(outcome))
	}
}

// rateLimit guards a route group with the fixed-window limiter.
func (h *Handler) rateLimit(namespace string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := h.limiter.Allow(c.Request.Context(), namespace, c.ClientIP())
		if err != nil {
			// The composite limiter already fell back; an error here means
			// even the local counter failed. Fail open for read endpoints.
			h.log.Warn("Rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.OK {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error: "Too many requests",
			})
			return
		}

		c.Next()
	}
}

func (h *Handler) listEvents(c *gin.Context) {
	var req dto.ListEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_error", Details: err.Error()})
		return
	}

	all := h.selector.AllEvents()
	total := len(all)

	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	end := offset + limit
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, dto.EventsResponse{
		Total:  total,
		Offset: offset,
		Limit:  limit,
		Events: all[offset:end],
	})
}

func (h *Handler) getEvent(c *gin.Context) {
	ev := h.selector.EventByID(c.Param("id"))
	if ev == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "event_not_found"})
		return
	}

	c.Header("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=86400")
	c.JSON(http.StatusOK, ev)
}

func (h *Handler) onThisDay(c *gin.Context) {
	var req dto.OnThisDayRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "validation_error", Details: err.Error()})
		return
	}

	date := req.Date
	if date == "" {
		date = h.now().UTC().Format("2006-01-02")
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}

	var modes []domain.Mode
	if req.Mode != "" {
		for _, part := range strings.Split(req.Mode, ",") {
			mode := domain.Mode(strings.TrimSpace(part))
			if !mode.Valid() {
				c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_mode", Details: string(mode)})
				return
			}
			modes = append(modes, mode)
		}
	}

	events, err := h.selector.OnThisDay(date, limit, modes)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_date", Details: err.Error()})
		return
	}
	if events == nil {
		events = []domain.Event{}
	}

	// Popular endpoint; let CDNs hold the answer for an hour.
	c.Header("Cache-Control", "public, s-maxage=3600, stale-while-revalidate=86400")
	c.JSON(http.StatusOK, dto.OnThisDayResponse{Date: date, Events: events})
}
