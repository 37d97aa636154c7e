// Package client implements the HTTP client used by the CLI to talk to a
// running vision-runner daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ST2Projects/vision-runner/pkg/inference"
	"github.com/ST2Projects/vision-runner/pkg/server"
	"github.com/pkg/errors"
)

// userAgent identifies the CLI to the daemon.
const userAgent = "vision-runner-cli/1.0"

// ErrServiceUnavailable indicates that no daemon answered at the configured
// URL.
var ErrServiceUnavailable = errors.New("service unavailable")

// Client talks to a vision-runner daemon.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the daemon at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: http.DefaultClient,
	}
}

// Status queries the daemon's status endpoint.
func (c *Client) Status(ctx context.Context) (*server.StatusResponse, error) {
	statusPath := inference.APIPrefix + "/status"
	resp, err := c.doRequest(ctx, http.MethodGet, statusPath, "", nil)
	if err != nil {
		return nil, c.handleQueryError(err, statusPath)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var status server.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("error decoding status response: %w", err)
	}
	return &status, nil
}

// Analyze uploads the image at path and returns the daemon's description.
// An empty prompt and a zero token count select the daemon defaults.
func (c *Client) Analyze(ctx context.Context, path, prompt string, maxTokens int) (string, error) {
	fields := map[string]string{}
	if prompt != "" {
		fields["prompt"] = prompt
	}
	if maxTokens > 0 {
		fields["max_tokens"] = strconv.Itoa(maxTokens)
	}

	analyzePath := inference.APIPrefix + "/analyze"
	resp, err := c.uploadForm(ctx, analyzePath, path, fields)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var response server.AnalyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("error decoding analyze response: %w", err)
	}
	return response.Description, nil
}

// Tags uploads the image at path and returns the daemon's tag result. A zero
// tag count selects the daemon default.
func (c *Client) Tags(ctx context.Context, path string, numTags int) (*server.TagsResponse, error) {
	fields := map[string]string{}
	if numTags > 0 {
		fields["num_tags"] = strconv.Itoa(numTags)
	}

	tagsPath := inference.APIPrefix + "/tags"
	resp, err := c.uploadForm(ctx, tagsPath, path, fields)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var response server.TagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("error decoding tags response: %w", err)
	}
	return &response, nil
}

// uploadForm posts a multipart form with the image file and the given fields
// and returns the response on HTTP 200.
func (c *Client) uploadForm(ctx context.Context, requestPath, imagePath string, fields map[string]string) (*http.Response, error) {
	body, contentType, err := encodeUploadForm(imagePath, fields)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(ctx, http.MethodPost, requestPath, contentType, body)
	if err != nil {
		return nil, c.handleQueryError(err, requestPath)
	}

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("daemon returned %s: %s", resp.Status, bytes.TrimSpace(msg))
	}
	return resp, nil
}

// encodeUploadForm builds the multipart body for an image upload.
func encodeUploadForm(imagePath string, fields map[string]string) (io.Reader, string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return nil, "", fmt.Errorf("error opening image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return nil, "", fmt.Errorf("error building upload form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", fmt.Errorf("error reading image: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("error building upload form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("error finalizing upload form: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) doRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		resp.Body.Close()
		return nil, ErrServiceUnavailable
	}

	return resp, nil
}

func (c *Client) handleQueryError(err error, path string) error {
	if errors.Is(err, ErrServiceUnavailable) {
		return err
	}
	return fmt.Errorf("error querying %s: %w", path, err)
}
