package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/chorus/pkg/log"
)

type RetrievalConfig struct {
	SearxURL string `env:"SEARXNG_URL" envDefault:"http://localhost:8888"`

	// N ranked URLs considered per topic, at most M of them kept
	ScrapeTopN         int `env:"SCRAPE_TOP_N" envDefault:"10"`
	MaxSourcesPerTopic int `env:"MAX_SOURCES_PER_TOPIC" envDefault:"5"`
	// Authority domains used for the narrowed search
	NarrowDomains int `env:"NARROW_DOMAINS" envDefault:"4"`

	MinContentChars int `env:"MIN_CONTENT_CHARS" envDefault:"200"`
	MaxContentChars int `env:"MAX_CONTENT_CHARS" envDefault:"12000"`

	FetchTimeout     time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	FetchConcurrency int           `env:"FETCH_CONCURRENCY" envDefault:"4"`
	FetchCacheTTL    time.Duration `env:"FETCH_CACHE_TTL" envDefault:"30m"`
	SearchRPS        float64       `env:"SEARCH_RPS" envDefault:"1"`
	SearchBurst      int           `env:"SEARCH_BURST" envDefault:"3"`

	AppendYear bool `env:"APPEND_YEAR" envDefault:"true"`
}

func NewRetrievalConfig(ctx context.Context) *RetrievalConfig {
	c := &RetrievalConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Retrieval config")
	}
	if c.MaxSourcesPerTopic > c.ScrapeTopN {
		c.MaxSourcesPerTopic = c.ScrapeTopN
	}
	return c
}

func DefaultRetrievalConfig() *RetrievalConfig {
	c := &RetrievalConfig{}
	_ = env.ParseWithOptions(c, env.Options{Environment: map[string]string{}})
	return c
}
