// Package upload sends a batch of local images to the translation backend
// and maps its answer into result handles.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/mangatl/mangatl/internal/models"
	"github.com/mangatl/mangatl/internal/selection"
)

const (
	DefaultEndpoint = "http://127.0.0.1:8000/translate-images/"

	// FileField is repeated once per image.
	FileField = "files"
	// EngineField names the translator.
	EngineField = "translator"
)

// UploadError is the single failure type of a submission. No partial
// results accompany it.
type UploadError struct {
	Cause      string
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed (HTTP %d): %s", e.StatusCode, e.Cause)
	}
	return "upload failed: " + e.Cause
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Client talks to the translation endpoint.
type Client struct {
	Endpoint   string
	HTTPClient *http.Client
}

// NewClient creates a client for endpoint. A zero timeout leaves requests
// bounded only by the caller's context.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Submit uploads every handle in one multipart request and returns the
// result handles in the order the response lists them. The input handles
// are only read.
func (c *Client) Submit(ctx context.Context, handles []models.ImageHandle, engine models.Engine) ([]models.ImageHandle, error) {
	if len(handles) == 0 {
		return nil, &UploadError{Cause: "no images to upload"}
	}
	for _, h := range handles {
		if !h.Local() {
			return nil, &UploadError{Cause: fmt.Sprintf("image %q has no local payload", h.Name)}
		}
	}
	if engine == "" {
		engine = models.DefaultEngine
	}

	body, contentType, err := encodeForm(handles, engine)
	if err != nil {
		return nil, &UploadError{Cause: "failed to build request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, body)
	if err != nil {
		return nil, &UploadError{Cause: "invalid endpoint", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	slog.Info("Uploading images", "count", len(handles), "engine", engine, "endpoint", c.Endpoint)
	start := time.Now()

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, &UploadError{Cause: "request failed: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cause := "response was not ok"
		if s := strings.TrimSpace(string(snippet)); s != "" {
			cause += ": " + s
		}
		return nil, &UploadError{Cause: cause, StatusCode: resp.StatusCode}
	}

	results, err := decodeResults(resp.Body)
	if err != nil {
		return nil, &UploadError{Cause: "malformed response: " + err.Error(), StatusCode: resp.StatusCode, Err: err}
	}

	base, err := url.Parse(c.Endpoint)
	if err != nil {
		return nil, &UploadError{Cause: "invalid endpoint", Err: err}
	}
	for i := range results {
		ref, err := resolve(base, results[i].Ref)
		if err != nil {
			return nil, &UploadError{Cause: "malformed response: " + err.Error(), StatusCode: resp.StatusCode, Err: err}
		}
		results[i].Ref = ref
	}

	slog.Info("Upload complete", "results", len(results), "duration", time.Since(start))
	return results, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(handles []models.ImageHandle, engine models.Engine) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, h := range handles {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, FileField, quoteEscaper.Replace(h.Name)))
		contentType := selection.ContentType(h.Name)
		if contentType == "" {
			contentType = http.DetectContentType(h.Payload)
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(h.Payload); err != nil {
			return nil, "", err
		}
	}

	if err := w.WriteField(EngineField, string(engine)); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

type resultItem struct {
	ImageURL *string `json:"imageUrl"`
	Name     *string `json:"name"`
}

var errNoResults = errors.New("response contained no results")

// decodeResults walks the top-level object token by token so that the
// result order matches the order of keys in the body. A repeated key keeps
// its first position and takes the last value.
func decodeResults(r io.Reader) ([]models.ImageHandle, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %v", tok)
	}

	var results []models.ImageHandle
	seen := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
		key, _ := keyTok.(string)

		var item resultItem
		if err := dec.Decode(&item); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		if item.ImageURL == nil || strings.TrimSpace(*item.ImageURL) == "" {
			return nil, fmt.Errorf("entry %q is missing imageUrl", key)
		}
		if item.Name == nil || strings.TrimSpace(*item.Name) == "" {
			return nil, fmt.Errorf("entry %q is missing name", key)
		}
		h := models.ImageHandle{Ref: *item.ImageURL, Name: *item.Name}
		if i, dup := seen[key]; dup {
			slog.Warn("Duplicate key in response, keeping the last value", "key", key)
			results[i] = h
			continue
		}
		seen[key] = len(results)
		results = append(results, h)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("unterminated object: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after object")
	}
	if len(results) == 0 {
		return nil, errNoResults
	}
	return results, nil
}

func resolve(base *url.URL, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid imageUrl %q: %w", raw, err)
	}
	if u.IsAbs() {
		return raw, nil
	}
	return base.ResolveReference(u).String(), nil
}
