package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aipowergrid/imagine-mint/internal/nft"
)

type Publisher struct {
	uploader Uploader
}

func NewPublisher(uploader Uploader) *Publisher {
	return &Publisher{uploader: uploader}
}

// PublishImage uploads the local file at path.
func (p *Publisher) PublishImage(ctx context.Context, path, mimeType string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("storage: read image: %w", err)
	}
	return p.uploader.Upload(ctx, filepath.Base(path), mimeType, data)
}

// PublishMetadata uploads doc as a JSON document.
func (p *Publisher) PublishMetadata(ctx context.Context, doc nft.Metadata) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("storage: encode metadata: %w", err)
	}
	name := fmt.Sprintf("metadata_%s.json", uuid.NewString())
	return p.uploader.Upload(ctx, name, jsonContentType, data)
}
