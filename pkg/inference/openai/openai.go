// Package openai implements the inference.Engine interface against
// OpenAI-compatible chat completion servers such as llama.cpp's llama-server
// or vLLM's HTTP frontend.
package openai

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

	"github.com/ST2Projects/vision-runner/pkg/imaging"
	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/logging"
)

// Name is the engine name.
const Name = "openai"

// Config is the configuration for the OpenAI-compatible engine.
type Config struct {
	// BaseURL is the server base URL, including any path prefix the server
	// mounts its API under (e.g. http://127.0.0.1:8080/v1).
	BaseURL string
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Model is the model identifier requested on each completion.
	Model string
}

// engine is the OpenAI-compatible engine implementation.
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

// New creates a new OpenAI-compatible engine.
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

// Probe implements inference.Engine.Probe. The models listing is the
// cheapest endpoint every OpenAI-compatible server exposes. Servers report
// arbitrary model identifiers (llama.cpp publishes the GGUF path), so a
// missing identifier is logged rather than treated as fatal.
func (e *engine) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}
	e.authorize(req)

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

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		e.status = "probe failed: undecodable model listing"
		return fmt.Errorf("failed to decode model listing: %w", err)
	}

	found := false
	for _, m := range listing.Data {
		if m.ID == e.config.Model {
			found = true
			break
		}
	}
	if !found {
		e.log.Warnf("model %q not listed by engine (%d models reported), continuing anyway", e.config.Model, len(listing.Data))
	}

	e.status = fmt.Sprintf("serving %s at %s", e.config.Model, e.config.BaseURL)
	return nil
}

// chatRequest is the chat completions request payload.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatMessage is a single chat turn.
type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart is one part of a multimodal message.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

// imageURL carries an image as a data URL.
type imageURL struct {
	URL string `json:"url"`
}

// chatResponse is the subset of the chat completions response the engine
// consumes.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate implements inference.Engine.Generate.
func (e *engine) Generate(ctx context.Context, req *inference.Request) (*inference.Response, error) {
	content := make([]contentPart, 0, 2)
	if len(req.Image) > 0 {
		content = append(content, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: dataURL(req.Image),
			},
		})
	}
	content = append(content, contentPart{Type: "text", Text: req.Prompt})

	payload := chatRequest{
		Model:     e.config.Model,
		Messages:  []chatMessage{{Role: "user", Content: content}},
		MaxTokens: req.MaxTokens,
	}
	if req.Sampling != nil {
		payload.Temperature = req.Sampling.Temperature
		payload.TopP = req.Sampling.TopP
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	e.authorize(httpReq)

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

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("engine returned no choices")
	}

	return &inference.Response{
		Text:       decoded.Choices[0].Message.Content,
		Model:      decoded.Model,
		TokensUsed: decoded.Usage.CompletionTokens,
		Duration:   time.Since(start),
	}, nil
}

// Status implements inference.Engine.Status.
func (e *engine) Status() string {
	return e.status
}

func (e *engine) authorize(req *http.Request) {
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}
}

// dataURL encodes image bytes as a data URL with the sniffed MIME type.
func dataURL(data []byte) string {
	return "data:" + imaging.DetectFormat(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
