package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"llamabridge/internal/bridge"
	"llamabridge/internal/session"
)

func newGenerateCmd(o *options) *cobra.Command {
	var (
		model       string
		system      string
		maxTokens   int
		temperature float32
		stream      bool
	)
	cmd := &cobra.Command{
		Use:     "generate [prompt...]",
		Short:   "Load a model and run one generation",
		Example: "  bridged generate --model ~/models/tiny.gguf --system \"You are terse.\" 2+2=\n  bridged generate --echo hello",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, o)
			if err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, o.logJSON)
			if err != nil {
				return err
			}
			scfg, err := cfg.Session(&log, nil)
			if err != nil {
				return err
			}
			s := session.New(scfg)
			defer s.Unload()
			ctx := cmd.Context()

			if !scfg.EchoMode {
				if model == "" {
					return fmt.Errorf("--model is required unless --echo is set")
				}
				if _, err := s.Load(ctx, model); err != nil {
					return fmt.Errorf("load %s: %w", model, err)
				}
			}
			req := session.GenerationRequest{
				Prompt:       strings.Join(args, " "),
				SystemPrompt: system,
				MaxTokens:    maxTokens,
				Temperature:  temperature,
			}
			out := cmd.OutOrStdout()
			var onToken func(string) error
			if stream {
				onToken = func(tok string) error {
					_, err := fmt.Fprint(out, tok)
					return err
				}
			}
			res, err := s.GenerateStream(ctx, req, onToken)
			if err != nil {
				return fmt.Errorf("generate (%s): %w", bridge.CodeOf(err), err)
			}
			if stream {
				_, err = fmt.Fprintln(out)
				return err
			}
			_, err = fmt.Fprintln(out, res.Text)
			return err
		},
	}
	cmd.Flags().StringVar(&model, "model", "", "Model file to load")
	cmd.Flags().StringVar(&system, "system", "", "System prompt")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", bridge.DefaultMaxTokens, "Maximum tokens to produce")
	cmd.Flags().Float32Var(&temperature, "temperature", bridge.DefaultTemperature, "Sampling temperature in [0, 2]")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print tokens as they are produced")
	return cmd
}
