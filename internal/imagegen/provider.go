// Package imagegen turns an image prompt into an image file on local disk.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/aipowergrid/imagine-mint/internal/aipg"
)

var ErrNoImage = errors.New("imagegen: provider returned no image")

// Image is a generated picture waiting to be downloaded. MimeType is the
// provider's claim and may be empty.
type Image struct {
	URL      string
	MimeType string
}

// Provider asks an image model for one picture and returns where to fetch it.
type Provider interface {
	Generate(ctx context.Context, prompt string) (Image, error)
}

// ImageClient is the part of the go-openai client the OpenAI provider needs.
type ImageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

type OpenAIProvider struct {
	client ImageClient
	model  string
	size   string
}

func NewOpenAIProvider(client ImageClient, model, size string) *OpenAIProvider {
	if strings.TrimSpace(model) == "" {
		model = openai.CreateImageModelDallE3
	}
	if strings.TrimSpace(size) == "" {
		size = openai.CreateImageSize1024x1024
	}
	return &OpenAIProvider{client: client, model: model, size: size}
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string) (Image, error) {
	resp, err := p.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.model,
		N:              1,
		Size:           p.size,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: openai create image: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return Image{}, ErrNoImage
	}
	return Image{URL: resp.Data[0].URL, MimeType: "image/png"}, nil
}

// GridJobs is the part of the grid client the grid provider needs.
type GridJobs interface {
	CreateJob(ctx context.Context, request aipg.CreateJobPayload) (*aipg.CreateJobResponse, error)
	WaitForJob(ctx context.Context, jobID string) (*aipg.JobStatusResponse, error)
}

type GridProvider struct {
	jobs     GridJobs
	model    string
	negative string
}

func NewGridProvider(jobs GridJobs, model string) *GridProvider {
	return &GridProvider{
		jobs:     jobs,
		model:    model,
		negative: "text, watermark, signature, blurry, lowres",
	}
}

func (p *GridProvider) Generate(ctx context.Context, prompt string) (Image, error) {
	job, err := p.jobs.CreateJob(ctx, aipg.ImagePayload(prompt, p.negative, p.model))
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: grid create job: %w", err)
	}
	status, err := p.jobs.WaitForJob(ctx, job.ID)
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: grid job %s: %w", job.ID, err)
	}
	url, mimeType, err := status.Media()
	if err != nil {
		return Image{}, fmt.Errorf("imagegen: grid job %s: %w", job.ID, ErrNoImage)
	}
	return Image{URL: url, MimeType: mimeType}, nil
}
