package source

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	nwmerrors "github.com/saveenergy/nwm/pkg/errors"
	"github.com/saveenergy/nwm/pkg/types"
)

// S3Config locates an S3 compatible object store. Empty keys mean
// anonymous access, which public NWM mirrors allow.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func (c S3Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("s3 endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("s3 endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// S3Fetcher reads pre-rendered WaterML objects from a bucket.
type S3Fetcher struct {
	client      *minio.Client
	bucket      string
	keyTemplate string
}

func NewS3Fetcher(cfg S3Config, bucket, keyTemplate string) (*S3Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &S3Fetcher{client: client, bucket: bucket, keyTemplate: keyTemplate}, nil
}

func (f *S3Fetcher) Fetch(ctx context.Context, req types.Request) (io.ReadCloser, error) {
	key := RenderKey(f.keyTemplate, req)
	if _, err := f.client.StatObject(ctx, f.bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nwmerrors.ErrNotFound(fmt.Sprintf("s3://%s/%s does not exist", f.bucket, key))
		}
		return nil, nwmerrors.ErrFetchFailed(fmt.Sprintf("stat s3://%s/%s", f.bucket, key), err)
	}
	obj, err := f.client.GetObject(ctx, f.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nwmerrors.ErrFetchFailed(fmt.Sprintf("get s3://%s/%s", f.bucket, key), err)
	}
	return obj, nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
