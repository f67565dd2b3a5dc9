package images

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mangatl/mangatl/internal/blobs"
)

// maxImageBytes bounds a single download.
const maxImageBytes = 64 * 1024 * 1024

// BlobOpener resolves locally minted blob references.
type BlobOpener interface {
	Open(ref string) ([]byte, bool)
}

// Fetcher retrieves image bytes for a displayable reference: a remote
// http(s) URL, an inline data URL, or a local blob reference.
type Fetcher struct {
	HTTPClient *http.Client
	Blobs      BlobOpener
}

// NewFetcher creates a new image fetcher
func NewFetcher(timeout time.Duration, blobs BlobOpener) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Blobs: blobs,
	}
}

// Fetch returns the bytes behind ref.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case blobs.IsBlobRef(ref):
		if f.Blobs == nil {
			return nil, fmt.Errorf("no blob registry to resolve %s", ref)
		}
		data, ok := f.Blobs.Open(ref)
		if !ok {
			return nil, fmt.Errorf("blob reference %s has been released", ref)
		}
		return data, nil
	case strings.HasPrefix(ref, "data:"):
		return decodeDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported image reference scheme %q", u.Scheme)
	}
	return f.download(ctx, u.String())
}

// download fetches an image over HTTP
func (f *Fetcher) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(imageData) > maxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", maxImageBytes)
	}

	return imageData, nil
}

// decodeDataURL handles data:[<mediatype>][;base64],<data>
func decodeDataURL(ref string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URL: %w", err)
		}
		return data, nil
	}
	unescaped, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL: %w", err)
	}
	return []byte(unescaped), nil
}
