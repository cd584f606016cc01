// Package storage uploads and deletes profile images in S3. It is a thin
// collaborator: failures propagate to the caller unchanged.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/studylog/studylog-api/internal/config"
)

// ObjectStore is the image-storage contract the profile handlers depend on.
type ObjectStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectURL string) error
}

// S3Store implements ObjectStore on one bucket. Keys are random UUIDs under
// the images/ prefix; the public URL embeds bucket and region.
type S3Store struct {
	client *s3.Client
	bucket string
	region string
	log    zerolog.Logger
}

// NewS3Store builds the client from the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg config.Config, log zerolog.Logger) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.S3Bucket,
		region: cfg.S3Region,
		log:    log,
	}, nil
}

func (s *S3Store) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	key := "images/" + uuid.NewString()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		s.log.Error().Str("key", key).Err(err).Msg("s3 upload failed")
		return "", err
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key), nil
}

// Delete removes the object behind a URL previously returned by Upload.
// URLs that do not belong to the bucket are ignored.
func (s *S3Store) Delete(ctx context.Context, objectURL string) error {
	u, err := url.Parse(objectURL)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(u.Host, s.bucket+".") {
		return nil
	}
	key := strings.TrimPrefix(u.Path, "/")
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error().Str("key", key).Err(err).Msg("s3 delete failed")
	}
	return err
}
