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

const twitterTweetURL = "https://api.twitter.com/2/tweets"

// TwitterGateway publishes tweets through the Twitter v2 API using an OAuth2
// user-context access token.
type TwitterGateway struct {
	accessToken string
	username    string
	baseURL     string
	httpClient  *http.Client
	log         *zap.Logger
}

func NewTwitterGateway(accessToken, username string, timeout time.Duration, log *zap.Logger) *TwitterGateway {
	return &TwitterGateway{
		accessToken: accessToken,
		username:    username,
		baseURL:     twitterTweetURL,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

func (g *TwitterGateway) Platform() domain.Platform {
	return domain.PlatformTwitter
}

func (g *TwitterGateway) Configured() bool {
	return g.accessToken != "" && g.username != ""
}

type tweetRequest struct {
	Text string `json:"text"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
	Detail string `json:"detail"`
	Title  string `json:"title"`
}

// Publish creates a tweet. The payload text already carries the event link;
// Twitter builds the preview from it.
func (g *TwitterGateway) Publish(ctx context.Context, payload format.Payload) (*Result, error) {
	body, err := json.Marshal(tweetRequest{Text: payload.Text})
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: fmt.Sprintf("failed to encode tweet: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: fmt.Sprintf("failed to build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Platform: g.Platform(), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	var tweet tweetResponse
	// Decode even on error statuses; the v2 API puts its detail in the body.
	_ = json.Unmarshal(respBody, &tweet)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := tweet.Detail
		if detail == "" {
			detail = tweet.Title
		}
		if detail == "" {
			detail = truncateBody(respBody)
		}
		return nil, &Error{
			Platform: g.Platform(),
			Message:  fmt.Sprintf("twitter returned %d: %s", resp.StatusCode, detail),
		}
	}

	if tweet.Data.ID == "" {
		return nil, &Error{Platform: g.Platform(), Message: "no tweet ID returned from Twitter API"}
	}

	g.log.Info("Tweet published",
		zap.String("tweet_id", tweet.Data.ID),
		zap.String("username", g.username))

	return &Result{
		ExternalID:  tweet.Data.ID,
		ExternalURL: fmt.Sprintf("https://twitter.com/%s/status/%s", g.username, tweet.Data.ID),
	}, nil
}

// truncateBody keeps provider error bodies loggable without flooding.
func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
