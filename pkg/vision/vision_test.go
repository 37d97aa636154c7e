package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/logging"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeEngine records every request and plays back a canned response.
type fakeEngine struct {
	calls   int
	lastReq *inference.Request
	text    string
	err     error
}

func (f *fakeEngine) Name() string                  { return "fake" }
func (f *fakeEngine) Probe(_ context.Context) error { return nil }
func (f *fakeEngine) Status() string                { return "fake" }
func (f *fakeEngine) Generate(_ context.Context, req *inference.Request) (*inference.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &inference.Response{Text: f.text}, nil
}

func newTestAnalyzer(engine inference.Engine) *Analyzer {
	return NewAnalyzer(logging.NewLogger("test"), engine)
}

var testImage = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46, 0x49, 0x46, 0x00, 0x01}

func TestDescribeWithoutImage(t *testing.T) {
	engine := &fakeEngine{text: "should never be returned"}
	analyzer := newTestAnalyzer(engine)

	got, err := analyzer.Describe(context.Background(), nil, "what is this?", 512)
	if err != nil {
		t.Fatalf("Describe without image returned error: %v", err)
	}
	if got != PlaceholderNoImage {
		t.Errorf("Expected placeholder %q, got %q", PlaceholderNoImage, got)
	}
	if engine.calls != 0 {
		t.Errorf("Expected no engine calls for missing image, got %d", engine.calls)
	}
}

func TestGenerateTagsWithoutImage(t *testing.T) {
	engine := &fakeEngine{text: `["should","never","appear"]`}
	analyzer := newTestAnalyzer(engine)

	result, err := analyzer.GenerateTags(context.Background(), []byte{}, 10)
	if err != nil {
		t.Fatalf("GenerateTags without image returned error: %v", err)
	}
	if result.Structured() {
		t.Error("Expected raw-branch result for missing image")
	}
	if result.Text() != PlaceholderNoImage {
		t.Errorf("Expected placeholder %q, got %q", PlaceholderNoImage, result.Text())
	}
	if engine.calls != 0 {
		t.Errorf("Expected no engine calls for missing image, got %d", engine.calls)
	}
}

func TestDescribeTokenClamping(t *testing.T) {
	tests := []struct {
		name      string
		maxTokens int
		expected  int
	}{
		{"zero selects default", 0, DefaultMaxTokens},
		{"below minimum clamps up", 1, MinMaxTokens},
		{"minimum passes through", 64, 64},
		{"mid-range passes through", 320, 320},
		{"off-step value passes through", 100, 100},
		{"maximum passes through", 1024, 1024},
		{"above maximum clamps down", 5000, MaxMaxTokens},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{text: "a description"}
			analyzer := newTestAnalyzer(engine)

			if _, err := analyzer.Describe(context.Background(), testImage, "prompt", tt.maxTokens); err != nil {
				t.Fatalf("Describe returned error: %v", err)
			}
			if engine.lastReq.MaxTokens != tt.expected {
				t.Errorf("maxTokens %d: expected engine to see %d, got %d",
					tt.maxTokens, tt.expected, engine.lastReq.MaxTokens)
			}
		})
	}
}

func TestDescribeSamplingParameters(t *testing.T) {
	engine := &fakeEngine{text: "a description"}
	analyzer := newTestAnalyzer(engine)

	if _, err := analyzer.Describe(context.Background(), testImage, "prompt", 512); err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}

	if engine.lastReq.Sampling == nil {
		t.Fatal("Expected describe request to carry sampling parameters")
	}
	if engine.lastReq.Sampling.Temperature != 0.7 {
		t.Errorf("Expected temperature 0.7, got %v", engine.lastReq.Sampling.Temperature)
	}
	if engine.lastReq.Sampling.TopP != 0.9 {
		t.Errorf("Expected top-p 0.9, got %v", engine.lastReq.Sampling.TopP)
	}
}

func TestDescribePromptSubstitution(t *testing.T) {
	tests := []struct {
		name     string
		prompt   string
		expected string
	}{
		{"empty prompt uses default", "", DefaultDescribePrompt},
		{"whitespace prompt uses default", "   \n\t", DefaultDescribePrompt},
		{"custom prompt passes through", "What color is the car?", "What color is the car?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{text: "a description"}
			analyzer := newTestAnalyzer(engine)

			if _, err := analyzer.Describe(context.Background(), testImage, tt.prompt, 512); err != nil {
				t.Fatalf("Describe returned error: %v", err)
			}
			if engine.lastReq.Prompt != tt.expected {
				t.Errorf("Expected prompt %q, got %q", tt.expected, engine.lastReq.Prompt)
			}
		})
	}
}

func TestDescribeReturnsEngineTextVerbatim(t *testing.T) {
	engine := &fakeEngine{text: "  a red car parked on a street\n"}
	analyzer := newTestAnalyzer(engine)

	got, err := analyzer.Describe(context.Background(), testImage, "prompt", 512)
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got != engine.text {
		t.Errorf("Expected engine text passed through verbatim, got %q", got)
	}
}

func TestDescribeEngineError(t *testing.T) {
	engineErr := errors.New("connection refused")
	engine := &fakeEngine{err: engineErr}
	analyzer := newTestAnalyzer(engine)

	got, err := analyzer.Describe(context.Background(), testImage, "prompt", 512)
	if err == nil {
		t.Fatal("Expected error from failing engine")
	}
	if !errors.Is(err, engineErr) {
		t.Errorf("Expected wrapped engine error, got %v", err)
	}
	if got != "" {
		t.Errorf("Expected empty result on error, got %q", got)
	}
}

func TestGenerateTagsDeterministic(t *testing.T) {
	engine := &fakeEngine{text: `["car","street"]`}
	analyzer := newTestAnalyzer(engine)

	if _, err := analyzer.GenerateTags(context.Background(), testImage, 10); err != nil {
		t.Fatalf("GenerateTags returned error: %v", err)
	}

	if engine.lastReq.Sampling != nil {
		t.Errorf("Expected deterministic tag request, got sampling %+v", engine.lastReq.Sampling)
	}
	if engine.lastReq.MaxTokens != 256 {
		t.Errorf("Expected fixed 256 token budget, got %d", engine.lastReq.MaxTokens)
	}
}

func TestGenerateTagsCountClamping(t *testing.T) {
	tests := []struct {
		name     string
		numTags  int
		expected int
	}{
		{"zero selects default", 0, DefaultTagCount},
		{"below minimum clamps up", 3, MinTagCount},
		{"minimum passes through", 5, 5},
		{"mid-range passes through", 12, 12},
		{"maximum passes through", 20, 20},
		{"above maximum clamps down", 50, MaxTagCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{text: `["a"]`}
			analyzer := newTestAnalyzer(engine)

			if _, err := analyzer.GenerateTags(context.Background(), testImage, tt.numTags); err != nil {
				t.Fatalf("GenerateTags returned error: %v", err)
			}

			want := fmt.Sprintf("exactly %d descriptive tags", tt.expected)
			if !strings.Contains(engine.lastReq.Prompt, want) {
				t.Errorf("numTags %d: expected prompt to contain %q, got %q",
					tt.numTags, want, engine.lastReq.Prompt)
			}
		})
	}
}

func TestTagOutputParsing(t *testing.T) {
	tests := []struct {
		name       string
		output     string
		structured bool
		tags       []string
	}{
		{
			name:       "string array parses",
			output:     `["car", "street", "daytime"]`,
			structured: true,
			tags:       []string{"car", "street", "daytime"},
		},
		{
			name:       "surrounding whitespace is tolerated",
			output:     "\n  [\"car\", \"street\"]  \n",
			structured: true,
			tags:       []string{"car", "street"},
		},
		{
			name:       "empty array parses",
			output:     `[]`,
			structured: true,
			tags:       []string{},
		},
		{
			name:   "plain text falls through",
			output: "Here are some tags: car, street",
		},
		{
			name:   "JSON object falls through",
			output: `{"tags": ["car"]}`,
		},
		{
			name:   "numeric array falls through",
			output: `[1, 2, 3]`,
		},
		{
			name:   "mixed array falls through",
			output: `["car", 5]`,
		},
		{
			name:   "JSON null falls through",
			output: `null`,
		},
		{
			name:   "truncated array falls through",
			output: `["car", "str`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{text: tt.output}
			analyzer := newTestAnalyzer(engine)

			result, err := analyzer.GenerateTags(context.Background(), testImage, 10)
			if err != nil {
				t.Fatalf("GenerateTags returned error: %v", err)
			}

			if result.Structured() != tt.structured {
				t.Fatalf("Expected structured=%t for %q, got %t", tt.structured, tt.output, result.Structured())
			}
			if tt.structured {
				if len(result.Tags) != len(tt.tags) {
					t.Fatalf("Expected %d tags, got %d (%v)", len(tt.tags), len(result.Tags), result.Tags)
				}
				for i := range tt.tags {
					if result.Tags[i] != tt.tags[i] {
						t.Errorf("Tag %d: expected %q, got %q", i, tt.tags[i], result.Tags[i])
					}
				}
			} else if result.Raw != tt.output {
				t.Errorf("Expected raw output passed through verbatim, got %q", result.Raw)
			}
		})
	}
}

func TestTagResultText(t *testing.T) {
	structured := &TagResult{Tags: []string{"car", "street"}}
	expected := "[\n  \"car\",\n  \"street\"\n]"
	if structured.Text() != expected {
		t.Errorf("Expected indented JSON %q, got %q", expected, structured.Text())
	}

	empty := &TagResult{Tags: []string{}}
	if empty.Text() != "[]" {
		t.Errorf("Expected empty list to render as [], got %q", empty.Text())
	}

	raw := &TagResult{Raw: "not json at all"}
	if raw.Text() != "not json at all" {
		t.Errorf("Expected raw text passed through, got %q", raw.Text())
	}
}

func TestGenerateTagsEngineError(t *testing.T) {
	engineErr := errors.New("connection refused")
	engine := &fakeEngine{err: engineErr}
	analyzer := newTestAnalyzer(engine)

	result, err := analyzer.GenerateTags(context.Background(), testImage, 10)
	if err == nil {
		t.Fatal("Expected error from failing engine")
	}
	if !errors.Is(err, engineErr) {
		t.Errorf("Expected wrapped engine error, got %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result on error, got %+v", result)
	}
}

func TestDescribeForwardsImageBytes(t *testing.T) {
	engine := &fakeEngine{text: "a description"}
	analyzer := newTestAnalyzer(engine)

	if _, err := analyzer.Describe(context.Background(), testImage, "prompt", 512); err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if string(engine.lastReq.Image) != string(testImage) {
		t.Error("Expected image bytes forwarded to the engine unchanged")
	}
}
