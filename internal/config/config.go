package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceEnvironment string `envconfig:"SERVICE_ENVIRONMENT" default:"development"`
	ServicePort        string `envconfig:"SERVICE_PORT" default:"8080"`
	SiteURL            string `envconfig:"SITE_URL" default:"https://chainofevents.xyz"`
	EventsFile         string `envconfig:"EVENTS_FILE" default:"data/events.json"`
	Timezone           string `envconfig:"POSTING_TIMEZONE" default:"America/Chicago"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// CronSecret guards the trigger endpoints. Empty disables the check
	// (dev-mode behavior). ManualSecret guards the manual post endpoints.
	CronSecret   string `envconfig:"CRON_SECRET"`
	ManualSecret string `envconfig:"MANUAL_SECRET"`

	NeynarAPIKey       string `envconfig:"NEYNAR_API_KEY"`
	FarcasterSignerID  string `envconfig:"FARCASTER_SIGNER_UUID"`
	FarcasterUsername  string `envconfig:"FARCASTER_USERNAME"`
	TwitterAccessToken string `envconfig:"TWITTER_ACCESS_TOKEN"`
	TwitterUsername    string `envconfig:"TWITTER_USERNAME"`

	PublishTimeoutSec int `envconfig:"PUBLISH_TIMEOUT_SEC" default:"10"`

	RedisAddr           string `envconfig:"REDIS_ADDR"`
	RedisPassword       string `envconfig:"REDIS_PASSWORD"`
	RateLimitPerMinute  int    `envconfig:"RATE_LIMIT_PER_MINUTE" default:"60"`
	RateLimitWindowSec  int    `envconfig:"RATE_LIMIT_WINDOW_SEC" default:"60"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// FarcasterConfigured reports whether the Farcaster publish credentials are
// complete. The publisher fails closed when they are not.
func (c *Config) FarcasterConfigured() bool {
	return c.NeynarAPIKey != "" && c.FarcasterSignerID != "" && c.FarcasterUsername != ""
}

// TwitterConfigured reports whether the Twitter publish credentials are
// complete.
func (c *Config) TwitterConfigured() bool {
	return c.TwitterAccessToken != "" && c.TwitterUsername != ""
}
