package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/avasiljevs/pulseboard/internal/common"
	sc "github.com/avasiljevs/pulseboard/internal/server/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
	getObject = func(c *s3.Client, ctx context.Context, in *s3.GetObjectInput) (*s3.GetObjectOutput, error) {
		return c.GetObject(ctx, in)
	}

	nowMillis = func() int64 { return time.Now().UnixMilli() }
)

// MediaService stores uploaded attachments in an S3-compatible bucket and
// streams them back by their generated key. Anyone who knows a key can fetch
// the object: the relay applies no access control, which is a documented gap
// of the current design.
type MediaService struct {
	config *sc.Config
}

func NewMediaService(config *sc.Config) *MediaService {
	return &MediaService{config: config}
}

// StorageKey builds a collision-resistant object key from the multipart
// field name, the upload time, and the original file extension.
func StorageKey(fieldName, originalName string) string {
	return fmt.Sprintf("%s-%d%s", fieldName, nowMillis(), filepath.Ext(originalName))
}

func (s *MediaService) getClient() (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(context.Background(),
		config.WithRegion(s.config.S3Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.config.S3RootUser,
			s.config.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(s.config.S3BaseEndpoint)
		o.UsePathStyle = true
	})

	return client, nil
}

// Store uploads the attachment bytes under a generated key and returns that
// key. Content is accepted as-is; no type or size validation happens here.
func (s *MediaService) Store(ctx context.Context, body io.Reader, fieldName, originalName, contentType string) (string, error) {
	client, err := s.getClient()
	if err != nil {
		return "", fmt.Errorf("s3 client: %w", err)
	}

	key := StorageKey(fieldName, originalName)

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	if _, err := putObject(client, ctx, in); err != nil {
		return "", fmt.Errorf("error storing upload: %w", err)
	}

	return key, nil
}

// Fetch streams a previously stored object back verbatim. The caller must
// close the returned reader. A key with no object behind it yields
// common.ErrorNotFound.
func (s *MediaService) Fetch(ctx context.Context, key string) (io.ReadCloser, string, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, "", fmt.Errorf("s3 client: %w", err)
	}

	out, err := getObject(client, ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", common.ErrorNotFound
		}
		return nil, "", fmt.Errorf("error fetching upload: %w", err)
	}

	contentType := ""
	if out.ContentType != nil {
		contentType = *out.ContentType
	}

	return out.Body, contentType, nil
}
