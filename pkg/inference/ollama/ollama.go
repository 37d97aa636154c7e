// Package ollama implements the inference.Engine interface against a local
// or remote Ollama instance.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/logging"
)

// Name is the engine name.
const Name = "ollama"

// Config is the configuration for the Ollama engine.
type Config struct {
	// BaseURL is the Ollama server base URL (e.g. http://127.0.0.1:11434).
	BaseURL string
	// Model is the model name requested on each generation.
	Model string
}

// engine is the Ollama engine implementation.
type engine struct {
	// log is the associated logger.
	log logging.Logger
	// config is the configuration for the engine.
	config *Config
	// client is the HTTP client used for all engine requests.
	client *http.Client
	// status is the state in which the engine is in.
	status string
}

// New creates a new Ollama engine.
func New(log logging.Logger, config *Config) inference.Engine {
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &engine{
		log:    log,
		config: config,
		client: &http.Client{},
		status: "not probed",
	}
}

// Name implements inference.Engine.Name.
func (e *engine) Name() string {
	return Name
}

// tagsResponse is the response from the Ollama model listing endpoint.
type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Probe implements inference.Engine.Probe. Ollama serves only pulled
// models, so a missing model name means every generation would fail and the
// probe reports inference.ErrModelNotAvailable.
func (e *engine) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.status = fmt.Sprintf("unreachable: %v", err)
		return fmt.Errorf("engine unreachable at %s: %w", e.config.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.status = fmt.Sprintf("probe failed: %s", resp.Status)
		return fmt.Errorf("engine returned %s for model listing", resp.Status)
	}

	var listing tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		e.status = "probe failed: undecodable model listing"
		return fmt.Errorf("failed to decode model listing: %w", err)
	}

	for _, m := range listing.Models {
		if m.Name == e.config.Model || strings.TrimSuffix(m.Name, ":latest") == e.config.Model {
			e.status = fmt.Sprintf("serving %s at %s", e.config.Model, e.config.BaseURL)
			return nil
		}
	}

	e.status = fmt.Sprintf("model %s not pulled", e.config.Model)
	return fmt.Errorf("%w: %s not in listing (%d models pulled)", inference.ErrModelNotAvailable, e.config.Model, len(listing.Models))
}

// generateRequest is the Ollama generation request payload.
type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Images  []string         `json:"images,omitempty"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

// generateOptions carries the generation options Ollama understands.
type generateOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
}

// generateResponse is the non-streaming Ollama generation response.
type generateResponse struct {
	Model     string `json:"model"`
	Response  string `json:"response"`
	Done      bool   `json:"done"`
	EvalCount int    `json:"eval_count"`
}

// Generate implements inference.Engine.Generate.
func (e *engine) Generate(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	payload := generateRequest{
		Model:  e.config.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: &generateOptions{
			NumPredict: req.MaxTokens,
		},
	}
	if len(req.Image) > 0 {
		payload.Images = []string{base64.StdEncoding.EncodeToString(req.Image)}
	}
	if req.Sampling != nil {
		payload.Options.Temperature = req.Sampling.Temperature
		payload.Options.TopP = req.Sampling.TopP
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("engine returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}

	return &inference.Response{
		Text:       decoded.Response,
		Model:      decoded.Model,
		TokensUsed: decoded.EvalCount,
		Duration:   time.Since(start),
	}, nil
}

// Status implements inference.Engine.Status.
func (e *engine) Status() string {
	return e.status
}
