// Package images fetches random pictures from the awsl API and prepares
// them for clipboard-based sending.
package images

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// maxEdge caps either dimension before the image hits the clipboard.
// Oversized pastes make the UI automation flaky.
const maxEdge = 2048

type picURL struct {
	URL string `json:"url"`
}

type randomImage struct {
	PicInfo struct {
		Large    picURL `json:"large"`
		Original picURL `json:"original"`
	} `json:"pic_info"`
}

// Service resolves a random image URL and downloads it to a temp file.
type Service struct {
	apiURL string
	client *http.Client
}

func NewService(apiURL string) *Service {
	return &Service{
		apiURL: apiURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchRandom downloads a random image and returns the local path.
// cleanup removes the temp file and must be called after the send.
func (s *Service) FetchRandom(ctx context.Context) (string, func(), error) {
	url, err := s.resolveURL(ctx)
	if err != nil {
		return "", nil, err
	}
	slog.Info("fetched image url", "url", truncate(url, 50))

	path, err := s.download(ctx, url)
	if err != nil {
		return "", nil, err
	}
	return path, func() { _ = os.Remove(path) }, nil
}

func (s *Service) resolveURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", s.apiURL, nil)
	if err != nil {
		return "", fmt.Errorf("images: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("images: fetch random: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("images: fetch random: HTTP %d", resp.StatusCode)
	}

	var data randomImage
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", fmt.Errorf("images: decode response: %w", err)
	}

	url := data.PicInfo.Large.URL
	if url == "" {
		url = data.PicInfo.Original.URL
	}
	if url == "" {
		return "", fmt.Errorf("images: response carries no image url")
	}
	return url, nil
}

// download fetches the image, caps its dimensions, and writes it to a
// temp file whose extension matches the source format.
func (s *Service) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("images: create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("images: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("images: download: HTTP %d", resp.StatusCode)
	}

	img, err := imaging.Decode(resp.Body, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("images: decode: %w", err)
	}
	if b := img.Bounds(); b.Dx() > maxEdge || b.Dy() > maxEdge {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	suffix := ".jpg"
	if strings.Contains(strings.ToLower(url), "png") {
		suffix = ".png"
	}
	format := imaging.JPEG
	if suffix == ".png" {
		format = imaging.PNG
	}

	f, err := os.CreateTemp("", "chatclaw-*"+suffix)
	if err != nil {
		return "", fmt.Errorf("images: temp file: %w", err)
	}
	if err := imaging.Encode(f, img, format, imaging.JPEGQuality(90)); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("images: encode: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("images: close temp file: %w", err)
	}

	slog.Info("image downloaded", "path", f.Name())
	return f.Name(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
