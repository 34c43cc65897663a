// Package format renders events into platform-specific post payloads.
package format

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/chainofevents/publisher/internal/domain"
)

const (
	// Twitter wraps every link in t.co, which counts as 23 characters
	// regardless of the original URL length.
	twitterMaxChars   = 280
	twitterLinkChars  = 23
	twitterSeparators = 2 // the two newlines between caption and link
)

// Payload is a rendered post ready for a publish gateway.
type Payload struct {
	// Text is the full post text. For Twitter it already includes the
	// event link; for Farcaster the link travels separately as an embed.
	Text string `json:"text"`
	// EmbedURL is the canonical event link for this platform.
	EmbedURL string `json:"embed_url"`
}

// Format renders an event for the given platform. The caption is always the
// first sentence of the summary, never hashtags and never the full summary.
func Format(event domain.Event, platform domain.Platform, siteURL string) Payload {
	caption := FirstSentence(event.Summary)

	switch platform {
	case domain.PlatformTwitter:
		eventURL := fmt.Sprintf("%s/event/%s", siteURL, event.ID)
		// The budget counts characters, not bytes; truncation must not
		// split a multibyte rune.
		maxText := twitterMaxChars - twitterLinkChars - twitterSeparators
		if utf8.RuneCountInString(caption) > maxText {
			runes := []rune(caption)
			caption = string(runes[:maxText-3]) + "..."
		}
		return Payload{
			Text:     caption + "\n\n" + eventURL,
			EmbedURL: eventURL,
		}
	default:
		// Farcaster unfurls the embed URL itself; the /fc/ page serves
		// frame-aware metadata for it.
		eventURL := fmt.Sprintf("%s/fc/%s", siteURL, event.ID)
		return Payload{
			Text:     caption,
			EmbedURL: eventURL,
		}
	}
}

// FirstSentence extracts the first sentence of text by splitting on ". ",
// re-appending the trailing period when the split dropped it.
func FirstSentence(text string) string {
	sentences := strings.SplitN(text, ". ", 2)
	first := strings.TrimSpace(sentences[0])
	if first == "" {
		return first
	}
	if !strings.HasSuffix(first, ".") {
		first += "."
	}
	return first
}
