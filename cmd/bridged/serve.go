package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"llamabridge/internal/bridge"
	"llamabridge/internal/catalog"
	"llamabridge/internal/httpapi"
	"llamabridge/internal/session"
)

func newServeCmd(o *options) *cobra.Command {
	var (
		preload         string
		shutdownTimeout time.Duration
		generateTimeout int64
	)
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP bring-up server",
		Example: "  bridged serve --models-dir ~/models --preload ~/models/tiny.gguf\n  bridged serve --echo --addr :9090",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, o.logJSON)
			if err != nil {
				return err
			}
			scfg, err := cfg.Session(&log, session.MultiPublisher{httpapi.MetricsPublisher{}})
			if err != nil {
				return err
			}
			reg := session.NewRegistry(scfg)
			defer reg.Close()
			def := bridge.New(reg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if preload != "" {
				if !def.LoadModel(&preload) {
					st := def.LastError()
					log.Error().Str("path", preload).Str("code", st.Code.String()).Msg(st.Message)
				}
			}

			httpapi.SetLogger(log)
			httpapi.SetDefaultLogLevel(cfg.LogLevel)
			httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
			httpapi.SetGenerateTimeoutSeconds(generateTimeout)
			httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
			httpapi.SetBaseContext(ctx)

			svc := httpapi.NewService(reg, catalog.New(cfg.ModelsDir), def)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           httpapi.NewMux(svc),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				log.Info().Str("addr", cfg.Addr).Str("models_dir", cfg.ModelsDir).Str("engine", scfg.EngineName()).Bool("echo", cfg.EchoMode).Msg("bridged listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
				close(errc)
			}()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info().Msg("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("graceful shutdown error")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&preload, "preload", "", "Model to load into the default slot at startup")
	cmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 5*time.Second, "Graceful shutdown timeout")
	cmd.Flags().Int64Var(&generateTimeout, "generate-timeout", 0, "Per-request generate timeout in seconds (0 disables)")
	return cmd
}
