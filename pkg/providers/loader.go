package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ResourceLoader loads scripts from local paths, file:// URLs and
// http(s):// URLs.
type ResourceLoader struct {
	Client *http.Client
}

// NewResourceLoader returns a loader with a bounded HTTP client.
func NewResourceLoader() *ResourceLoader {
	return &ResourceLoader{Client: &http.Client{Timeout: 30 * time.Second}}
}

// ResolveURL normalizes ref: http(s) and file URLs pass through, local
// paths become absolute file:// URLs.
func (l *ResourceLoader) ResolveURL(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty script reference")
	}
	if isRemote(ref) || strings.HasPrefix(ref, "file:") {
		return ref, nil
	}
	abs, err := filepath.Abs(filepath.FromSlash(ref))
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", ref, err)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// LoadText fetches the content at a URL produced by ResolveURL.
func (l *ResourceLoader) LoadText(ctx context.Context, rawURL string) (string, error) {
	if isRemote(rawURL) {
		return l.fetch(ctx, rawURL)
	}
	path := rawURL
	if strings.HasPrefix(rawURL, "file:") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", rawURL, err)
		}
		path = filepath.FromSlash(u.Path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read script: %w", err)
	}
	return string(data), nil
}

func (l *ResourceLoader) fetch(ctx context.Context, rawURL string) (string, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: %s", rawURL, resp.Status)
	}
	return string(body), nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
