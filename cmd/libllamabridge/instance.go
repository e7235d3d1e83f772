//go:build cgo

package main

import (
	"os"

	"github.com/rs/zerolog"

	"llamabridge/internal/bridge"
	"llamabridge/internal/config"
	"llamabridge/internal/session"
)

// Environment overrides read when a handle is created. The host process
// owns stdout/stderr, so logging stays off unless LLAMABRIDGE_LOG_LEVEL is set.
const (
	envConfig   = "LLAMABRIDGE_CONFIG"
	envLogLevel = "LLAMABRIDGE_LOG_LEVEL"
)

// instance is what a C handle refers to: a private registry and its bridge.
type instance struct {
	reg *session.Registry
	b   *bridge.Bridge
}

func newInstance(echo bool) (*instance, error) {
	cfg := config.Defaults()
	if p := os.Getenv(envConfig); p != "" {
		fc, err := config.Load(p)
		if err != nil {
			return nil, err
		}
		cfg = fc
	}
	if echo {
		cfg.EchoMode = true
	}
	log := logger()
	scfg, err := cfg.Session(&log, nil)
	if err != nil {
		return nil, err
	}
	reg := session.NewRegistry(scfg)
	return &instance{reg: reg, b: bridge.New(reg)}, nil
}

func logger() zerolog.Logger {
	lvl := os.Getenv(envLogLevel)
	if lvl == "" {
		return zerolog.Nop()
	}
	l, err := zerolog.ParseLevel(lvl)
	if err != nil {
		return zerolog.Nop()
	}
	return zerolog.New(os.Stderr).Level(l).With().Timestamp().Str("component", "libllamabridge").Logger()
}

func (i *instance) close() {
	_ = i.b.Close()
	_ = i.reg.Close()
}
