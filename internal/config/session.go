package config

import (
	"time"

	"github.com/rs/zerolog"

	"llamabridge/internal/engine"
	"llamabridge/internal/session"
)

// Session builds the session.Config described by c. In echo mode no engine
// is constructed.
func (c Config) Session(log *zerolog.Logger, pub session.EventPublisher) (session.Config, error) {
	sc := session.Config{
		EchoMode:    c.EchoMode,
		LoadOptions: engine.LoadOptions{ContextSize: c.ContextSize, Threads: c.Threads},
		MaxRetries:  c.MaxRetries,
		BudgetMB:    c.BudgetMB,
		MarginMB:    c.MarginMB,
		Logger:      log,
		Publisher:   pub,
	}
	if c.EchoMode {
		return sc, nil
	}
	eng, err := engine.New(engine.Options{Name: c.Engine, TokenDelay: time.Duration(c.TokenDelayMS) * time.Millisecond})
	if err != nil {
		return session.Config{}, err
	}
	sc.Engine = eng
	return sc, nil
}
