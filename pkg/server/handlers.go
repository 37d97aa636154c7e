package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ST2Projects/vision-runner/pkg/imaging"
	"github.com/ST2Projects/vision-runner/pkg/metrics"
)

// AnalyzeResponse is the body returned by POST <api-prefix>/analyze.
type AnalyzeResponse struct {
	Description string `json:"description"`
}

// TagsResponse is the body returned by POST <api-prefix>/tags. Tags is
// non-nil when the engine produced a parseable JSON array of strings,
// otherwise Raw carries the engine output verbatim.
type TagsResponse struct {
	Tags []string `json:"tags"`
	Raw  string   `json:"raw,omitempty"`
}

// handleAnalyze handles POST <api-prefix>/analyze requests.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	image, ok := s.readImage(w, r, "analyze")
	if !ok {
		return
	}

	prompt := r.FormValue("prompt")
	maxTokens, ok := s.formInt(w, r, "max_tokens", "analyze")
	if !ok {
		return
	}

	description, err := s.analyzer.Describe(r.Context(), image, prompt, maxTokens)
	if err != nil {
		s.log.Warnln("Error while describing image:", err)
		metrics.RecordRequest("analyze", metrics.OutcomeEngineError, time.Since(started))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	metrics.RecordRequest("analyze", imageOutcome(image), time.Since(started))

	// Write the response.
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(AnalyzeResponse{Description: description}); err != nil {
		s.log.Warnln("Error while encoding analyze response:", err)
	}
}

// handleTags handles POST <api-prefix>/tags requests.
func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	image, ok := s.readImage(w, r, "tags")
	if !ok {
		return
	}

	numTags, ok := s.formInt(w, r, "num_tags", "tags")
	if !ok {
		return
	}

	result, err := s.analyzer.GenerateTags(r.Context(), image, numTags)
	if err != nil {
		s.log.Warnln("Error while generating tags:", err)
		metrics.RecordRequest("tags", metrics.OutcomeEngineError, time.Since(started))
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	metrics.RecordRequest("tags", imageOutcome(image), time.Since(started))

	response := TagsResponse{Tags: result.Tags}
	if !result.Structured() {
		response.Raw = result.Raw
	}

	// Write the response.
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.log.Warnln("Error while encoding tags response:", err)
	}
}

// readImage extracts the uploaded image from a multipart form and normalizes
// it for the engine. A missing or empty image part is not an error, the
// analyzer answers it with the placeholder text. The boolean result reports
// whether the request may proceed; on false a response has been written.
func (s *Server) readImage(w http.ResponseWriter, r *http.Request, operation string) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		status := http.StatusBadRequest
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			status = http.StatusRequestEntityTooLarge
		}
		s.log.Warnln("Error while parsing upload form:", err)
		metrics.RecordRequest(operation, metrics.OutcomeClientError, 0)
		http.Error(w, "invalid upload form: "+err.Error(), status)
		return nil, false
	}

	file, _, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, true
	} else if err != nil {
		metrics.RecordRequest(operation, metrics.OutcomeClientError, 0)
		http.Error(w, "invalid image upload: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.log.Warnln("Error while reading image upload:", err)
		metrics.RecordRequest(operation, metrics.OutcomeClientError, 0)
		http.Error(w, "reading image upload: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if len(data) == 0 {
		return nil, true
	}

	if width, height, err := imaging.Decode(data); err == nil {
		s.log.Debugf("Received %dx%d image (%d bytes) for %s", width, height, len(data), operation)
	}

	return imaging.Normalize(data, imaging.DefaultMaxEdge), true
}

// formInt parses an optional integer form field. An absent or empty field
// yields zero, which the analyzer replaces with the operation default.
func (s *Server) formInt(w http.ResponseWriter, r *http.Request, field, operation string) (int, bool) {
	raw := r.FormValue(field)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		metrics.RecordRequest(operation, metrics.OutcomeClientError, 0)
		http.Error(w, "invalid "+field+" value: "+raw, http.StatusBadRequest)
		return 0, false
	}
	return value, true
}

// imageOutcome classifies a successful request for metrics.
func imageOutcome(image []byte) string {
	if len(image) == 0 {
		return metrics.OutcomeNoImage
	}
	return metrics.OutcomeOK
}
