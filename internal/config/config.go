package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"civiclens/internal/summarizer"
)

// Defaults for the rate-limit spec when CIVICLENS_RATE_LIMIT is unset
// or malformed.
const (
	defaultRateLimitMax     = 60
	defaultRateLimitMinutes = 1
)

type Config struct {
	Addr         string        `env:"CIVICLENS_ADDR"          envDefault:":8000"`
	Model        string        `env:"CIVICLENS_MODEL"         envDefault:"fast"`
	Debug        bool          `env:"CIVICLENS_DEBUG"`
	RateLimit    string        `env:"CIVICLENS_RATE_LIMIT"    envDefault:"60/1"`
	FetchTimeout time.Duration `env:"CIVICLENS_FETCH_TIMEOUT" envDefault:"15s"`
	OpenAIAPIKey string        `env:"OPENAI_API_KEY"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ModelVariant normalizes the configured model selector. Anything but
// the quality variant falls back to the fast one.
func (c Config) ModelVariant() string {
	if strings.TrimSpace(strings.ToLower(c.Model)) == summarizer.VariantQuality {
		return summarizer.VariantQuality
	}
	return summarizer.VariantFast
}

// RateLimitSpec parses the "<max_requests>/<window_minutes>" pair.
// Malformed values fall back to the default of 60 requests per minute.
func (c Config) RateLimitSpec() (maxRequests int, window time.Duration) {
	maxRequests = defaultRateLimitMax
	window = defaultRateLimitMinutes * time.Minute

	maxPart, minutesPart, ok := strings.Cut(strings.TrimSpace(c.RateLimit), "/")
	if !ok {
		return maxRequests, window
	}

	parsedMax, err := strconv.Atoi(strings.TrimSpace(maxPart))
	if err != nil {
		return maxRequests, window
	}

	parsedMinutes, err := strconv.Atoi(strings.TrimSpace(minutesPart))
	if err != nil {
		return maxRequests, window
	}

	return max(1, parsedMax), time.Duration(max(1, parsedMinutes)) * time.Minute
}
