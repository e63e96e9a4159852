// Package genai provides the text generation provider used for AI report
// content. The default implementation talks to a Gemini-compatible
// generateContent REST endpoint.
package genai

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited indicates the provider rejected the call for quota or
	// rate reasons. Callers surface this as a retryable client condition.
	ErrRateLimited = errors.New("generation provider rate limited")

	// ErrEmptyResult indicates the provider returned no usable candidate text.
	ErrEmptyResult = errors.New("generation provider returned no content")
)

// Request describes a single generation call.
type Request struct {
	Prompt     string
	ReportType string
}

// Result is the provider's output for one generation call.
type Result struct {
	Text   string
	Model  string
	Tokens int
}

// Provider generates report content from a prompt.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
