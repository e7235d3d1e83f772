package session

import (
	"github.com/rs/zerolog"

	"llamabridge/internal/engine"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxRetries = 2
)

// Config holds everything a Session or Registry needs.
type Config struct {
	// Engine drives model execution. Nil means no engine is wired up.
	Engine engine.Engine
	// EchoMode makes Generate mirror the prompt instead of running the engine.
	// It must be set explicitly; a nil Engine alone does not enable it.
	EchoMode    bool
	LoadOptions engine.LoadOptions
	// MaxRetries bounds retries of transient engine errors per generation.
	// Zero selects the default; negative disables retries.
	MaxRetries int
	// BudgetMB caps the summed model size across a Registry (0 = unlimited).
	BudgetMB int
	// MarginMB is kept free on top of loaded models when BudgetMB is set.
	MarginMB  int
	Logger    *zerolog.Logger
	Publisher EventPublisher
}

// withDefaults fills unset fields. Applying it twice yields the same Config;
// a negative MaxRetries is kept and read as zero retries.
func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.Logger == nil {
		l := zerolog.Nop()
		c.Logger = &l
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
	return c
}

// EngineName reports the configured engine for status output.
func (c Config) EngineName() string {
	if c.Engine == nil {
		return "none"
	}
	return c.Engine.Name()
}
