package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotImage is returned when the downloaded bytes don't sniff as an
// image. Callers treat it as "no asset available", not a hard failure.
var ErrNotImage = errors.New("fetched content is not an image")

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Fetcher downloads remote binaries, keeps only images, and persists
// them under Dir so they can be served back at a public URL.
type Fetcher struct {
	Client     *http.Client
	Dir        string
	BaseURL    string
	AuthHeader string
}

func NewFetcher(dir, baseURL, authHeader string) *Fetcher {
	return &Fetcher{
		Client:     &http.Client{Timeout: 30 * time.Second},
		Dir:        dir,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AuthHeader: authHeader,
	}
}

// Fetch downloads rawURL, verifies the bytes are an image and stores
// them under the normalized desiredName with the sniffed extension.
// The stored filename is returned as the asset reference.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, desiredName string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create asset request: %w", err)
	}
	if f.AuthHeader != "" {
		req.Header.Set("Authorization", f.AuthHeader)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset download returned status %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read asset body: %w", err)
	}

	// The declared extension is not trusted; the bytes decide.
	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return "", ErrNotImage
	}

	name := NormalizeName(desiredName) + mtype.Extension()
	if err := os.WriteFile(filepath.Join(f.Dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("failed to store asset: %w", err)
	}

	return name, nil
}

// PublicURL builds the public reference for a stored asset name.
func (f *Fetcher) PublicURL(name string) string {
	return f.BaseURL + "/img/" + name
}

// NormalizeName strips any extension, collapses non-alphanumeric runs
// into underscores and lowercases the result.
func NormalizeName(name string) string {
	name = strings.TrimSuffix(name, path.Ext(name))
	name = nonAlnum.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "asset"
	}
	return strings.ToLower(name)
}
