package domain

import (
	"encoding/json"
	"fmt"
)

// MediaType discriminates the media variants attached to an event.
type MediaType string

const (
	MediaVideo   MediaType = "video"
	MediaTwitter MediaType = "twitter"
	MediaImage   MediaType = "image"
)

// VideoMedia is an embedded or self-hosted video.
type VideoMedia struct {
	Provider        string `json:"provider"`
	URL             string `json:"url"`
	EmbedURL        string `json:"embed_url,omitempty"`
	PosterURL       string `json:"poster_url,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Caption         string `json:"caption,omitempty"`
	Orientation     string `json:"orientation,omitempty"`
}

// TwitterMedia references a tweet to embed.
type TwitterMedia struct {
	TweetURL      string `json:"tweet_url,omitempty"`
	AccountHandle string `json:"account_handle,omitempty"`
}

// ImageMedia is a plain image attachment.
type ImageMedia struct {
	URL     string `json:"url"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// MediaItem is a tagged union over the media variants. Exactly one of the
// variant pointers is set, matching Type.
type MediaItem struct {
	Type    MediaType     `json:"type"`
	Video   *VideoMedia   `json:"video,omitempty"`
	Twitter *TwitterMedia `json:"twitter,omitempty"`
	Image   *ImageMedia   `json:"image,omitempty"`
}

// UnmarshalJSON decodes a media item and validates that the payload matches
// the declared type tag, instead of trusting the shape implicitly.
func (m *MediaItem) UnmarshalJSON(data []byte) error {
	type rawMediaItem MediaItem
	var raw rawMediaItem
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case MediaVideo:
		if raw.Video == nil || raw.Video.URL == "" {
			return fmt.Errorf("media item of type %q missing video payload", raw.Type)
		}
	case MediaTwitter:
		if raw.Twitter == nil {
			return fmt.Errorf("media item of type %q missing twitter payload", raw.Type)
		}
	case MediaImage:
		if raw.Image == nil || raw.Image.URL == "" {
			return fmt.Errorf("media item of type %q missing image payload", raw.Type)
		}
	default:
		return fmt.Errorf("unknown media type %q", raw.Type)
	}

	*m = MediaItem(raw)
	return nil
}
