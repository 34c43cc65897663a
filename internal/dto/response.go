package dto

import "github.com/chainofevents/publisher/internal/domain"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// EventSummary is the event subset echoed in trigger responses.
type EventSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

// ExternalPost identifies the post created on the platform.
type ExternalPost struct {
	ID  string `json:"id"`
	URL string `json:"url,omitempty"`
}

// TriggerResponse is the envelope returned by the cron trigger endpoints.
// Status is "skipped", "success" or "partial_success"; skips are expected
// outcomes and always come back with HTTP 200.
type TriggerResponse struct {
	Status       string             `json:"status"`
	Message      string             `json:"message,omitempty"`
	Slot         string             `json:"slot,omitempty"`
	SlotIndex    *int               `json:"slot_index,omitempty"`
	PostDate     string             `json:"post_date,omitempty"`
	Event        *EventSummary      `json:"event,omitempty"`
	ExternalPost *ExternalPost      `json:"external_post,omitempty"`
	ExistingPost *domain.PostRecord `json:"existing_post,omitempty"`
	Error        string             `json:"error,omitempty"`
}

// SlotInfo mirrors a posting slot in preview responses.
type SlotInfo struct {
	Index int    `json:"index"`
	Hour  int    `json:"hour"`
	Label string `json:"label"`
}

// FormattedPost echoes what the formatter would produce.
type FormattedPost struct {
	Text           string `json:"text"`
	EmbedURL       string `json:"embed_url"`
	CharacterCount int    `json:"character_count"`
}

// PreviewResponse is returned by the test endpoints. No post is sent and
// nothing is written.
type PreviewResponse struct {
	Status        string         `json:"status"`
	Message       string         `json:"message"`
	PostDate      string         `json:"post_date"`
	CurrentSlot   string         `json:"current_slot"`
	SlotIndex     *int           `json:"slot_index"`
	Slots         []SlotInfo     `json:"all_posting_slots"`
	EventsForDate []EventSummary `json:"events_for_date"`
	EventForSlot  *domain.Event  `json:"event_for_slot"`
	FormattedPost *FormattedPost `json:"formatted_post"`
}

// EventsResponse is the paged public listing.
type EventsResponse struct {
	Total  int            `json:"total"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
	Events []domain.Event `json:"events"`
}

// OnThisDayResponse lists anniversary events for a date.
type OnThisDayResponse struct {
	Date   string         `json:"date"`
	Events []domain.Event `json:"events"`
}
