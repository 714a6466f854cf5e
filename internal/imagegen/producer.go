package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxImageBytes caps how much of a generated image is downloaded.
	MaxImageBytes = 20 << 20

	DefaultMimeType = "image/png"
)

var ErrImageTooLarge = errors.New("imagegen: image exceeds size limit")

type Producer struct {
	provider   Provider
	dir        string
	httpClient *http.Client
}

func NewProducer(provider Provider, dir string) *Producer {
	if dir == "" {
		dir = "./image"
	}
	return &Producer{
		provider: provider,
		dir:      dir,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// Produce generates an image for prompt and stores it in dir under fileName,
// with the extension replaced to match the image's type. It returns the path
// and the MIME type.
func (p *Producer) Produce(ctx context.Context, prompt, fileName string) (string, string, error) {
	if filepath.Base(fileName) != fileName || fileName == "." {
		return "", "", fmt.Errorf("imagegen: invalid file name %q", fileName)
	}

	img, err := p.provider.Generate(ctx, prompt)
	if err != nil {
		return "", "", err
	}

	data, header, err := p.download(ctx, img.URL)
	if err != nil {
		return "", "", err
	}
	mimeType := imageType(data, img.MimeType, header)
	if ext, ok := imageExtensions[mimeType]; ok {
		fileName = strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ext
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", "", fmt.Errorf("imagegen: create %s: %w", p.dir, err)
	}
	path := filepath.Join(p.dir, fileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("imagegen: write %s: %w", path, err)
	}

	log.Printf("[imagegen] 🖼️  saved %s (%d bytes, %s)", path, len(data), mimeType)
	return path, mimeType, nil
}

func (p *Producer) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: download request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("imagegen: download failed (%d)", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("imagegen: read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}
	if len(data) == 0 {
		return nil, "", ErrNoImage
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// imageType prefers what the bytes say, then the provider's claim, then the
// download's Content-Type.
func imageType(data []byte, claimed, header string) string {
	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		return sniffed
	}
	for _, candidate := range []string{claimed, header} {
		if mt, _, err := mime.ParseMediaType(candidate); err == nil && strings.HasPrefix(mt, "image/") {
			return mt
		}
	}
	return DefaultMimeType
}

// Remove deletes a file written by Produce.
func (p *Producer) Remove(path string) error {
	return os.Remove(path)
}
