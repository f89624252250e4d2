// Package archive keeps a copy of every successful enrichment response in
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cnpj-enrich/internal/config"
	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/internal/resilience"
)

// ObjectClient is the subset of *minio.Client used by Archive.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archive writes responses as JSON objects keyed by tax ID and request ID.
type Archive struct {
	client ObjectClient
	bucket string
	retry  resilience.RetryConfig
}

// New connects to the configured endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "archive: create client")
	}
	a := NewWithClient(client, cfg.Bucket)
	if err := a.ensureBucket(ctx); err != nil {
		return nil, err
	}
	zap.L().Info("archive: ready", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return a, nil
}

// NewWithClient wraps an existing client without touching the bucket.
func NewWithClient(client ObjectClient, bucket string) *Archive {
	return &Archive{
		client: client,
		bucket: bucket,
		retry: resilience.RetryConfig{
			Attempts:  3,
			Backoff:   200 * time.Millisecond,
			Retryable: retryable,
			Op:        "archive.put",
		},
	}
}

// Key returns the object key for a response.
func Key(resp *model.Response) string {
	return fmt.Sprintf("enrichments/%s/%s.json", resp.TaxID, resp.RequestID)
}

// Put uploads resp, retrying transient storage errors.
func (a *Archive) Put(ctx context.Context, resp *model.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return eris.Wrap(err, "archive: marshal response")
	}
	key := Key(resp)

	err = resilience.Retry(ctx, a.retry, func(ctx context.Context) error {
		_, perr := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)),
			minio.PutObjectOptions{ContentType: "application/json"})
		return perr
	})
	if err != nil {
		return eris.Wrapf(err, "archive: put %s", key)
	}
	zap.L().Debug("archive: stored response", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return eris.Wrapf(err, "archive: check bucket %s", a.bucket)
	}
	if exists {
		return nil
	}
	return eris.Wrapf(a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}), "archive: make bucket %s", a.bucket)
}

func retryable(err error) bool {
	if code := minio.ToErrorResponse(err).StatusCode; code != 0 {
		return resilience.IsTransientHTTPStatus(code)
	}
	return resilience.IsTransient(err)
}
