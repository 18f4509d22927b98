package config

import (
	"context"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/log"
)

// Profile is the timeout and retry envelope of one inference task.
type Profile struct {
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type PipelineConfig struct {
	PlannerModel    string `env:"PLANNER_MODEL" envDefault:"qwen3:8b"`
	ValidatorModel  string `env:"VALIDATOR_MODEL" envDefault:"qwen3:4b"`
	RefinerModel    string `env:"REFINER_MODEL" envDefault:"qwen3:8b"`
	AbstractorModel string `env:"ABSTRACTOR_MODEL" envDefault:"qwen3:4b"`
	SynthesisModel  string `env:"SYNTHESIS_MODEL" envDefault:"qwen3:14b"`
	SummaryModel    string `env:"SUMMARY_MODEL" envDefault:"qwen3:4b"`
	TitleModel      string `env:"TITLE_MODEL" envDefault:"qwen3:1.7b"`

	LongTimeout     time.Duration `env:"LONG_TIMEOUT" envDefault:"10m"`
	LongRetries     int           `env:"LONG_RETRIES" envDefault:"1"`
	MediumTimeout   time.Duration `env:"MEDIUM_TIMEOUT" envDefault:"3m"`
	MediumRetries   int           `env:"MEDIUM_RETRIES" envDefault:"2"`
	ValidateTimeout time.Duration `env:"VALIDATE_TIMEOUT" envDefault:"90s"`
	ValidateRetries int           `env:"VALIDATE_RETRIES" envDefault:"3"`

	RunTimeout      time.Duration `env:"RUN_TIMEOUT" envDefault:"30m"`
	LastNVerbatim   int           `env:"MEMORY_LAST_N" envDefault:"3"`
	KSemantic       int           `env:"MEMORY_TOP_K" envDefault:"3"`
	MaxTopics       int           `env:"MAX_TOPICS" envDefault:"12"`
	AbstractRetries int           `env:"ABSTRACT_RETRIES" envDefault:"1"`

	// Idle sessions are dropped from memory and rehydrated on next use
	SessionIdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"1h"`
}

func NewPipelineConfig(ctx context.Context) *PipelineConfig {
	c := &PipelineConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Pipeline config")
	}
	return c
}

// DefaultPipelineConfig returns the envDefault values without reading the environment.
func DefaultPipelineConfig() *PipelineConfig {
	c := &PipelineConfig{}
	_ = env.ParseWithOptions(c, env.Options{Environment: map[string]string{}})
	return c
}

func (c PipelineConfig) Profiles() map[core.Task]Profile {
	long := func(model string) Profile {
		return Profile{Model: model, Timeout: c.LongTimeout, MaxRetries: c.LongRetries}
	}
	medium := func(model string) Profile {
		return Profile{Model: model, Timeout: c.MediumTimeout, MaxRetries: c.MediumRetries}
	}

	return map[core.Task]Profile{
		core.TaskPlan:       long(c.PlannerModel),
		core.TaskRefine:     long(c.RefinerModel),
		core.TaskSynthesize: long(c.SynthesisModel),
		core.TaskAbstract:   medium(c.AbstractorModel),
		core.TaskSummarize:  medium(c.SummaryModel),
		core.TaskTitle:      medium(c.TitleModel),
		core.TaskValidate: {
			Model:      c.ValidatorModel,
			Timeout:    c.ValidateTimeout,
			MaxRetries: c.ValidateRetries,
		},
	}
}
