// Package inference defines the interface between vision-runner and the
// model serving endpoints that execute generation requests on its behalf.
package inference

import (
	"context"
	"errors"
	"time"
)

// APIPrefix is the prefix under which the daemon exposes its inference
// endpoints.
const APIPrefix = "/api"

// ErrModelNotAvailable indicates that the engine endpoint is reachable but
// does not serve the configured model.
var ErrModelNotAvailable = errors.New("model not available on engine")

// Engine is the interface implemented by vision model serving endpoints.
// Exactly one engine is bound at startup and shared by all requests; all
// methods must be safe for concurrent use after a successful Probe.
type Engine interface {
	// Name returns the engine name.
	Name() string
	// Probe checks that the engine endpoint is reachable and able to serve
	// the configured model. It is called once before the daemon starts
	// accepting requests.
	Probe(ctx context.Context) error
	// Generate executes a single generation request and returns the decoded
	// continuation. Implementations must not retry.
	Generate(ctx context.Context, req *Request) (*Response, error)
	// Status returns a human-readable description of the engine state.
	Status() string
}

// Sampling selects stochastic decoding with the given parameters. A nil
// *Sampling on a request selects deterministic decoding.
type Sampling struct {
	// Temperature is the softmax temperature.
	Temperature float64
	// TopP is the nucleus sampling probability mass.
	TopP float64
}

// Request is a single multimodal generation request. Requests are
// constructed per call and never reused.
type Request struct {
	// Prompt is the instruction text.
	Prompt string
	// Image holds the raw encoded image bytes, if any.
	Image []byte
	// MaxTokens bounds the length of the generated continuation.
	MaxTokens int
	// Sampling selects stochastic decoding when non-nil.
	Sampling *Sampling
}

// Response is the result of a generation request.
type Response struct {
	// Text is the generated continuation, exclusive of the prompt.
	Text string
	// Model is the model identifier reported by the engine, if any.
	Model string
	// TokensUsed is the number of completion tokens reported by the engine,
	// or zero when the engine does not report usage.
	TokensUsed int
	// Duration is the wall-clock time of the engine call.
	Duration time.Duration
}
