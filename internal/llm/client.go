// Package llm provides generation clients for the two supported backends:
// a local Ollama endpoint and the Hugging Face inference API.
package llm

import "context"

// GenerateRequest carries a prompt and optional generation parameters.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64 // 0 means backend default
}

// Client generates text from a prompt. Transport and HTTP-status failures
// are returned as errors, never folded into the generated text.
type Client interface {
	Generate(ctx context.Context, req *GenerateRequest) (string, error)
	GenerateStream(ctx context.Context, req *GenerateRequest, onChunk func(string)) error
}
