package storage

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectAPI is the slice of the S3 client used for pinning.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type S3Settings struct {
	Endpoint        string
	Bucket          string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	GatewayURL      string
}

// S3Uploader writes to an S3-compatible IPFS pinning bucket (Filebase style)
// and resolves the object's CID through a public gateway.
type S3Uploader struct {
	api     ObjectAPI
	bucket  string
	gateway string
}

func NewS3Uploader(ctx context.Context, s S3Settings) (*S3Uploader, error) {
	if s.AccessKeyID == "" || s.SecretAccessKey == "" || s.Bucket == "" {
		return nil, ErrNotConfigured
	}
	region := s.Region
	if region == "" {
		region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.AccessKeyID,
			s.SecretAccessKey,
			"",
		)),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load s3 config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = true
	})
	return NewS3UploaderWithAPI(client, s.Bucket, s.GatewayURL), nil
}

func NewS3UploaderWithAPI(api ObjectAPI, bucket, gateway string) *S3Uploader {
	return &S3Uploader{
		api:     api,
		bucket:  bucket,
		gateway: strings.TrimRight(gateway, "/"),
	}
}

func (u *S3Uploader) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("storage: %s is empty", name)
	}

	_, err := u.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(name),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("storage: put %s: %w", name, err)
	}

	head, err := u.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("storage: head %s: %w", name, err)
	}

	ref := name
	if cid := head.Metadata["cid"]; cid != "" {
		ref = cid
	} else {
		log.Printf("[storage] ⚠️ no cid for %s, falling back to object key", name)
	}
	uri := u.gateway + "/" + ref
	log.Printf("[storage] s3 upload OK name=%s uri=%s", name, uri)
	return uri, nil
}
