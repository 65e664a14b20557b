package s3

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	appConfig "github.com/banking/dnfbp-risk/internal/config"
	"github.com/banking/dnfbp-risk/internal/crypto"
)

// BundleRepository mirrors issued evidence bundles to S3, encrypted at rest.
// The mirror is write-only; downloads are served from the token cache.
type BundleRepository struct {
	client    *s3.Client
	bucket    string
	encryptor *crypto.BundleEncryptor
}

// NewBundleRepository creates a new S3 bundle repository
func NewBundleRepository(ctx context.Context, cfg appConfig.S3Config, encryptor *crypto.BundleEncryptor) (*BundleRepository, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO
		}
	})

	return &BundleRepository{
		client:    client,
		bucket:    cfg.Bucket,
		encryptor: encryptor,
	}, nil
}

// StoreBundle uploads the sealed archive and the plaintext manifest of a run
func (r *BundleRepository) StoreBundle(ctx context.Context, runID string, createdAt time.Time, archive, manifest []byte) error {
	sealed, err := r.encryptor.Seal(archive)
	if err != nil {
		return fmt.Errorf("failed to seal bundle: %w", err)
	}

	prefix := bundlePrefix(runID, createdAt)
	uploads := []struct {
		key         string
		body        []byte
		contentType string
	}{
		{prefix + "/bundle.zip.enc", sealed, "application/octet-stream"},
		{prefix + "/manifest.json", manifest, "application/json"},
	}

	for _, u := range uploads {
		_, err := r.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(r.bucket),
			Key:         aws.String(u.key),
			Body:        bytes.NewReader(u.body),
			ContentType: aws.String(u.contentType),
			Metadata: map[string]string{
				"run-id": runID,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to upload %s to s3: %w", u.key, err)
		}
	}

	return nil
}

// bundlePrefix returns bundles/year/month/day/runID
func bundlePrefix(runID string, createdAt time.Time) string {
	t := createdAt.UTC()
	return fmt.Sprintf("bundles/%d/%02d/%02d/%s", t.Year(), t.Month(), t.Day(), runID)
}
