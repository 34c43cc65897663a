package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/chainofevents/publisher/internal/domain"
	"github.com/chainofevents/publisher/internal/format"
)

const neynarCastURL = "https://api.neynar.com/v2/farcaster/cast"

// FarcasterGateway publishes casts through the Neynar API.
type FarcasterGateway struct {
	apiKey     string
	signerUUID string
	username   string
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

// NewFarcasterGateway creates the Farcaster adapter. Timeout bounds the
// single publish call.
func NewFarcasterGateway(apiKey, signerUUID, username string, timeout time.Duration, log *zap.Logger) *FarcasterGateway {
	return &FarcasterGateway{
		apiKey:     apiKey,
		signerUUID: signerUUID,
		username:   username,
		baseURL:    neynarCastURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

func (g *FarcasterGateway) Platform() domain.Platform {
	return domain.PlatformFarcaster
}

func (g *FarcasterGateway) Configured() bool {
	return g.apiKey != "" && g.signerUUID != "" && g.username != ""
}

type castRequest struct {
	SignerUUID string      `json:"signer_uuid"`
	Text       string      `json:"text"`
	Embeds     []castEmbed `json:"embeds,omitempty"`
}

type castEmbed struct {
	URL string `json:"url"`
}

type castResponse struct {
	Cast struct {
		Hash string `json:"hash"`
	} `json:"cast"`
	Message string `json:"message"`
}

// Publish creates a cast with the payload text and the event link as an
// embed, so Farcaster clients render the unfurl card.
func (g *FarcasterGateway) Publish(ctx context.Context, payload format.Payload) (*Result, error) {
	body, err := json.Marshal(castRequest{
		SignerUUID: g.signerUUID,
		Text:       payload.Text,
		Embeds:     []castEmbed{{URL: payload.EmbedURL}},
	})
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: fmt.Sprintf("failed to encode cast: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Platform: g.Platform(),
			Message:  fmt.Sprintf("neynar returned %d: %s", resp.StatusCode, truncateBody(respBody)),
		}
	}

	var cast castResponse
	if err := json.Unmarshal(respBody, &cast); err != nil {
		return nil, &Error{Platform: g.Platform(), Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	if cast.Cast.Hash == "" {
		return nil, &Error{Platform: g.Platform(), Message: "no cast hash returned"}
	}

	hash := cast.Cast.Hash
	shortHash := hash
	if len(shortHash) > 10 {
		shortHash = shortHash[:10]
	}

	g.log.Info("Cast published",
		zap.String("cast_hash", hash),
		zap.String("username", g.username))

	return &Result{
		ExternalID:  hash,
		ExternalURL: fmt.Sprintf("https://warpcast.com/%s/%s", g.username, shortHash),
	}, nil
}
