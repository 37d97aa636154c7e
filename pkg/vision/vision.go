// Package vision exposes the two image analysis operations served by
// vision-runner: free-form description and tag generation. Both run one
// synchronous generation call against a shared inference engine.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/logging"
	"github.com/docker/go-units"
)

const (
	// PlaceholderNoImage is returned for requests that carry no image. It
	// is rendered as normal output, not an error.
	PlaceholderNoImage = "Please upload an image."

	// DefaultDescribePrompt is used when a description request carries no
	// prompt of its own.
	DefaultDescribePrompt = "Describe this image in detail, including all objects, people, activities, text, and any notable features."

	// MinMaxTokens and MaxMaxTokens bound the description token budget.
	MinMaxTokens = 64
	MaxMaxTokens = 1024
	// DefaultMaxTokens is the description token budget when none is given.
	DefaultMaxTokens = 512

	// MinTagCount and MaxTagCount bound the requested tag count.
	MinTagCount = 5
	MaxTagCount = 20
	// DefaultTagCount is the tag count when none is given.
	DefaultTagCount = 10

	// tagTokenBudget is the fixed token budget for tag generation.
	tagTokenBudget = 256

	// describeTemperature and describeTopP are the sampling parameters for
	// description calls. Tag generation always decodes deterministically.
	describeTemperature = 0.7
	describeTopP        = 0.9
)

// tagPromptTemplate instructs the model to emit a JSON array. The model is
// not guaranteed to comply; output that does not parse is passed through
// verbatim.
const tagPromptTemplate = "Analyze this image and provide exactly %d descriptive tags.\n" +
	"Output ONLY a JSON array of strings, no other text.\n" +
	"Tags should describe: objects, scene type, colors, mood, style, actions, and subjects.\n" +
	"Example format: [\"tag1\", \"tag2\", \"tag3\"]"

// Analyzer runs analysis operations against a bound inference engine. It is
// stateless apart from the engine reference and safe for concurrent use.
type Analyzer struct {
	// log is the associated logger.
	log logging.Logger
	// engine is the engine bound at startup.
	engine inference.Engine
}

// NewAnalyzer creates an Analyzer on top of the given engine.
func NewAnalyzer(log logging.Logger, engine inference.Engine) *Analyzer {
	return &Analyzer{
		log:    log,
		engine: engine,
	}
}

// Engine returns the bound engine.
func (a *Analyzer) Engine() inference.Engine {
	return a.engine
}

// Describe generates a free-form description of image. A missing image
// yields the placeholder text without an engine call. A blank prompt is
// replaced by DefaultDescribePrompt, and maxTokens is clamped to its bounds
// (zero selects the default).
func (a *Analyzer) Describe(ctx context.Context, image []byte, prompt string, maxTokens int) (string, error) {
	if len(image) == 0 {
		return PlaceholderNoImage, nil
	}
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultDescribePrompt
	}

	resp, err := a.engine.Generate(ctx, &inference.Request{
		Prompt:    prompt,
		Image:     image,
		MaxTokens: clamp(maxTokens, MinMaxTokens, MaxMaxTokens, DefaultMaxTokens),
		Sampling: &inference.Sampling{
			Temperature: describeTemperature,
			TopP:        describeTopP,
		},
	})
	if err != nil {
		return "", fmt.Errorf("description failed: %w", err)
	}

	a.log.Infof("described image (%s) in %v, %d tokens",
		units.HumanSize(float64(len(image))), resp.Duration, resp.TokensUsed)
	return resp.Text, nil
}

// GenerateTags asks the model for numTags descriptive tags. A missing image
// yields a raw-branch result holding the placeholder text without an engine
// call. numTags is clamped to its bounds (zero selects the default) and only
// steers the instruction text; the model's actual tag count is passed
// through untouched.
func (a *Analyzer) GenerateTags(ctx context.Context, image []byte, numTags int) (*TagResult, error) {
	if len(image) == 0 {
		return &TagResult{Raw: PlaceholderNoImage}, nil
	}

	resp, err := a.engine.Generate(ctx, &inference.Request{
		Prompt:    fmt.Sprintf(tagPromptTemplate, clamp(numTags, MinTagCount, MaxTagCount, DefaultTagCount)),
		Image:     image,
		MaxTokens: tagTokenBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("tag generation failed: %w", err)
	}

	result := parseTagOutput(resp.Text)
	a.log.Infof("generated tags (%s) in %v, structured=%t",
		units.HumanSize(float64(len(image))), resp.Duration, result.Structured())
	return result, nil
}

// TagResult is the outcome of a tag generation call: either a parsed tag
// list or the model's raw output, never both.
type TagResult struct {
	// Tags holds the parsed tag list when the model output was a JSON
	// array of strings. A non-nil empty slice is a valid (empty) list.
	Tags []string
	// Raw holds the verbatim model output when parsing did not apply.
	Raw string
}

// Structured reports whether the result holds a parsed tag list.
func (r *TagResult) Structured() bool {
	return r.Tags != nil
}

// Text renders the result the way the form displays it: parsed lists are
// re-serialized with two-space indentation, raw output passes through
// unchanged.
func (r *TagResult) Text() string {
	if r.Tags == nil {
		return r.Raw
	}
	out, _ := json.MarshalIndent(r.Tags, "", "  ")
	return string(out)
}

// parseTagOutput attempts exactly one parse of the model output as a JSON
// array of strings. Anything else, including valid JSON of another shape,
// selects the raw branch with the output untouched.
func parseTagOutput(text string) *TagResult {
	var tags []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &tags); err == nil && tags != nil {
		return &TagResult{Tags: tags}
	}
	return &TagResult{Raw: text}
}

// clamp bounds v to [min, max], with zero selecting def.
func clamp(v, min, max, def int) int {
	if v == 0 {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
