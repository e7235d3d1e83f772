//go:build llama

package engine

// cgo link directives for the in-process llama engine.
// - rpath of $ORIGIN so the loader finds libllama.so next to the binary (./bin).
// - -L${SRCDIR}/../../bin so the linker finds libllama.so when building with -tags=llama.

/*
#cgo LDFLAGS: -Wl,-rpath,'$ORIGIN' -L${SRCDIR}/../../bin -lllama
*/
import "C"

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
)

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = true

var ggufMagic = []byte("GGUF")

type llamaEngine struct{}

// NewLlama returns the go-llama.cpp engine.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) Name() string { return "llama" }

func (llamaEngine) Load(ctx context.Context, path string, opts LoadOptions) (Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkGGUF(path); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{}
	if opts.ContextSize > 0 {
		mo = append(mo, llama.SetContext(opts.ContextSize))
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, classifyLoadErr(err)
	}
	return &llamaContext{model: m, threads: opts.Threads}, nil
}

func checkGGUF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	head := make([]byte, len(ggufMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return fmt.Errorf("%w: %s: short header", ErrCorruptFormat, path)
	}
	if string(head) != string(ggufMagic) {
		return fmt.Errorf("%w: %s: missing GGUF magic", ErrCorruptFormat, path)
	}
	return nil
}

func classifyLoadErr(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "alloc") || strings.Contains(msg, "memory") {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	return fmt.Errorf("%w: %v", ErrCorruptFormat, err)
}

// llamaContext owns the loaded model.
type llamaContext struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
}

func (c *llamaContext) Generate(ctx context.Context, p Prompt, params Params, onToken func(string) error) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		return Result{}, ErrClosed
	}
	var (
		b      strings.Builder
		tokens int
		cbErr  error
	)
	// Token callback doubles as the cancellation point between steps.
	c.model.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if onToken != nil {
			if err := onToken(tok); err != nil {
				cbErr = err
				return false
			}
		}
		b.WriteString(tok)
		tokens++
		return true
	})
	defer c.model.SetTokenCallback(nil)

	text, err := c.model.Predict(buildPrompt(p), predictOptions(params, c.threads)...)
	res := Result{Text: b.String(), Tokens: tokens}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if cbErr != nil {
		return res, cbErr
	}
	if err != nil {
		return res, fmt.Errorf("llama predict: %w", err)
	}
	if res.Text == "" {
		res.Text = text
	}
	res.FinishReason = FinishStop
	if params.MaxTokens > 0 && tokens >= params.MaxTokens {
		res.FinishReason = FinishLength
	}
	return res, nil
}

func (c *llamaContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil {
		c.model.Free()
		c.model = nil
	}
	return nil
}

// buildPrompt joins system and user prompts with a blank line.
func buildPrompt(p Prompt) string {
	if p.System == "" {
		return p.User
	}
	return p.System + "\n\n" + p.User
}

func predictOptions(params Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, params.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTemperature(params.Temperature),
	}
	if params.Seed != 0 {
		po = append(po, llama.SetSeed(params.Seed))
	}
	if len(params.Stop) > 0 {
		po = append(po, llama.SetStopWords(params.Stop...))
	}
	return po
}

