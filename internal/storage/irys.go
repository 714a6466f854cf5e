package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// IrysUploader posts objects to an Irys uploader service which bundles them
// onto Arweave.
type IrysUploader struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewIrysUploader(baseURL, apiKey string) *IrysUploader {
	return &IrysUploader{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
	}
}

func (u *IrysUploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if u.baseURL == "" {
		return "", ErrNotConfigured
	}
	if len(data) == 0 {
		return "", fmt.Errorf("storage: %s is empty", name)
	}

	endpoint := u.baseURL + "/upload"
	if contentType == jsonContentType {
		endpoint += "/json"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("storage: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-File-Name", name)
	if u.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.apiKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: irys upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("[storage] irys upload FAILED name=%s status=%d body=%s", name, resp.StatusCode, body)
		return "", fmt.Errorf("storage: irys upload failed: status=%d", resp.StatusCode)
	}

	var res struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("storage: decode upload response: %w", err)
	}
	if res.URI == "" {
		return "", ErrEmptyURI
	}

	log.Printf("[storage] irys upload OK name=%s uri=%s", name, res.URI)
	return res.URI, nil
}
