//go:build !llama

package engine

// No-CGO stand-in compiled when the 'llama' build tag is NOT set, keeping
// default builds and CI CGO-free. The real engine lives in llama.go.

import (
	"context"
	"fmt"
)

// LlamaBuilt reports whether this binary links llama.cpp.
const LlamaBuilt = false

type llamaEngine struct{}

// NewLlama returns an engine that refuses to load without the 'llama' build tag.
func NewLlama() Engine { return llamaEngine{} }

func (llamaEngine) Name() string { return "llama" }

func (llamaEngine) Load(ctx context.Context, path string, opts LoadOptions) (Context, error) {
	return nil, fmt.Errorf("%w: llama support not built (missing 'llama' build tag)", ErrUnavailable)
}
