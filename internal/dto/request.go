package dto

// PreviewRequest carries the optional test-endpoint query parameters.
type PreviewRequest struct {
	Date string `form:"date"`
	Slot *int   `form:"slot"`
}

// ManualPostRequest carries the manual trigger parameters. Secret is
// checked against the configured manual secret.
type ManualPostRequest struct {
	Date   string `form:"date" binding:"required"`
	Slot   *int   `form:"slot" binding:"required"`
	Secret string `form:"secret"`
}

// OnThisDayRequest carries the public on-this-day query parameters.
type OnThisDayRequest struct {
	Date  string `form:"date"`
	Limit int    `form:"limit"`
	Mode  string `form:"mode"`
}

// ListEventsRequest carries the public listing parameters.
type ListEventsRequest struct {
	Offset int `form:"offset"`
	Limit  int `form:"limit"`
}
