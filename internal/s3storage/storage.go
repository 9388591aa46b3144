// Package s3storage wraps MinIO/S3 interactions for uploaded paystubs and
// rendered compliance reports.
package s3storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mytipspro/checkmychecks/internal/config"
)

// Storage holds the client plus the two bucket names it operates on.
type Storage struct {
	client        *minio.Client
	paystubBucket string
	reportBucket  string
	region        string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:        client,
		paystubBucket: cfg.PaystubBucket,
		reportBucket:  cfg.ReportBucket,
		region:        cfg.S3Region,
	}, nil
}

// EnsureBuckets makes sure the paystub/report buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.paystubBucket, s.reportBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// UploadPaystub streams the uploaded document into the paystub bucket.
func (s *Storage) UploadPaystub(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := s.client.PutObject(ctx, s.paystubBucket, objectKey, reader, size, opts)
	if err != nil {
		return fmt.Errorf("upload paystub: %w", err)
	}
	return nil
}

// DownloadPaystub fetches the raw document bytes from storage.
func (s *Storage) DownloadPaystub(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.paystubBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get paystub: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read paystub: %w", err)
	}
	return buf, nil
}

// UploadReport stores a rendered compliance report PDF.
func (s *Storage) UploadReport(ctx context.Context, objectKey string, data []byte) error {
	reader := bytes.NewReader(data)
	opts := minio.PutObjectOptions{ContentType: "application/pdf"}
	_, err := s.client.PutObject(ctx, s.reportBucket, objectKey, reader, int64(len(data)), opts)
	if err != nil {
		return fmt.Errorf("upload report: %w", err)
	}
	return nil
}

// PresignReportURL returns a signed GET URL for a rendered report.
func (s *Storage) PresignReportURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.reportBucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign report: %w", err)
	}
	return u.String(), nil
}
