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
	"strings"
	"time"

	"farmcopilot/internal/httpapi"
	"farmcopilot/internal/service"
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	Status  int
	Kind    httpapi.ErrorKind
	Message string
}

func (e *APIError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

// Client talks to a running farmcopilot server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) Health(ctx context.Context) error {
	var out httpapi.HealthResponse
	return c.do(ctx, http.MethodGet, "/healthz", "", nil, &out)
}

func (c *Client) Status(ctx context.Context) (service.Status, error) {
	var out service.Status
	err := c.do(ctx, http.MethodGet, "/status", "", nil, &out)
	return out, err
}

func (c *Client) Chat(ctx context.Context, message string) (httpapi.ChatResponse, error) {
	body, err := json.Marshal(httpapi.ChatRequest{Message: message})
	if err != nil {
		return httpapi.ChatResponse{}, err
	}
	var out httpapi.ChatResponse
	err = c.do(ctx, http.MethodPost, "/chat", "application/json", bytes.NewReader(body), &out)
	return out, err
}

// Upload sends the file at path as the multipart field "file".
func (c *Client) Upload(ctx context.Context, path string) (service.UploadSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return service.UploadSummary{}, err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return service.UploadSummary{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return service.UploadSummary{}, err
	}
	if err := mw.Close(); err != nil {
		return service.UploadSummary{}, err
	}
	var out service.UploadSummary
	err = c.do(ctx, http.MethodPost, "/upload", mw.FormDataContentType(), &buf, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var er httpapi.ErrorResponse
		if json.Unmarshal(raw, &er) == nil && er.Error.Kind != "" {
			apiErr.Kind = er.Error.Kind
			apiErr.Message = er.Error.Message
		}
		return apiErr
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
