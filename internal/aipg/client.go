// Package aipg talks to the AI Power Grid generation API, used as an
// alternative image backend.
package aipg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://api.aipowergrid.io/api/v2"
	DefaultClientAgent  = "imagine-mint:v1"
	DefaultPollInterval = 3 * time.Second
)

var (
	ErrJobFaulted  = errors.New("aipg: job faulted")
	ErrNoGenerated = errors.New("aipg: job finished without media")
)

type Client struct {
	baseURL      string
	httpClient   *http.Client
	clientAgent  string
	apiKey       string
	pollInterval time.Duration
}

func NewClient(baseURL, clientAgent, apiKey string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if strings.TrimSpace(clientAgent) == "" {
		clientAgent = DefaultClientAgent
	}
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientAgent:  clientAgent,
		apiKey:       apiKey,
		pollInterval: DefaultPollInterval,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithPollInterval changes how often WaitForJob asks for status.
func (c *Client) WithPollInterval(d time.Duration) *Client {
	if d > 0 {
		c.pollInterval = d
	}
	return c
}

func (c *Client) CreateJob(ctx context.Context, request CreateJobPayload) (*CreateJobResponse, error) {
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}

	log.Printf("🌐 Grid API request: models=%v, prompt_len=%d", request.Models, len(request.Prompt))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/generate/async", c.baseURL), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Client-Agent", c.clientAgent)
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusAccepted {
		return nil, fmt.Errorf("create job failed (%d): %s", resp.StatusCode, body)
	}

	var parsed CreateJobResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if parsed.ID == "" {
		return nil, fmt.Errorf("create job: empty job id: %s", body)
	}
	return &parsed, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/generate/status/%s", c.baseURL, jobID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Client-Agent", c.clientAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job status failed (%d): %s", resp.StatusCode, body)
	}

	var parsed JobStatusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// WaitForJob polls the job until it is done or faulted and returns the final
// status. A failed status request ends the wait.
func (c *Client) WaitForJob(ctx context.Context, jobID string) (*JobStatusResponse, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.JobStatus(ctx, jobID)
		if err != nil {
			return nil, err
		}
		switch {
		case status.Faulted:
			return status, fmt.Errorf("%w: %s", ErrJobFaulted, status.Message)
		case status.Done:
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Media returns the first downloadable URL of a finished job and the MIME
// type the worker reported for it, which may be empty.
func (s *JobStatusResponse) Media() (url, mimeType string, err error) {
	for _, gen := range s.Generations {
		if u := firstNonEmpty(gen.ImgURL, gen.Img); strings.HasPrefix(u, "http") {
			return u, gen.Mime, nil
		}
	}
	return "", "", ErrNoGenerated
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
