package artifact

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Source reads s3://bucket/key locations from an S3-compatible store.
type S3Source struct {
	cfg config.S3Config

	once   sync.Once
	client *minio.Client
	err    error
}

func NewS3Source(cfg config.S3Config) *S3Source {
	return &S3Source{cfg: cfg}
}

func NewS3SourceWithClient(client *minio.Client) *S3Source {
	s := &S3Source{client: client}
	s.once.Do(func() {})
	return s
}

func (s *S3Source) Scheme() []string {
	return []string{"s3"}
}

func (s *S3Source) Open(ctx context.Context, loc *url.URL) (io.ReadCloser, error) {
	client, err := s.getClient()
	if err != nil {
		return nil, err
	}

	bucket := loc.Host
	key := strings.TrimPrefix(loc.Path, "/")
	if bucket == "" || key == "" {
		return nil, igniteErrors.InvalidInput(fmt.Sprintf("s3 location %q needs bucket and key", loc.String()))
	}

	obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapS3Error(err)
	}
	// GetObject is lazy; Stat surfaces missing keys before any body is read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapS3Error(err)
	}
	return obj, nil
}

func (s *S3Source) getClient() (*minio.Client, error) {
	s.once.Do(func() {
		if strings.TrimSpace(s.cfg.Endpoint) == "" {
			s.err = fmt.Errorf("artifact.s3.endpoint is required for s3 sources")
			return
		}
		if strings.Contains(s.cfg.Endpoint, "://") {
			s.err = fmt.Errorf("endpoint must not include scheme: %q", s.cfg.Endpoint)
			return
		}
		s.client, s.err = minio.New(s.cfg.Endpoint, &minio.Options{
			Creds:     credentials.NewStaticV4(s.cfg.AccessKey, s.cfg.SecretKey, ""),
			Secure:    s.cfg.UseSSL,
			Region:    s.cfg.Region,
			Transport: newTransport(),
		})
	})
	return s.client, s.err
}

func mapS3Error(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket":
		return &igniteErrors.FetchError{Status: http.StatusText(http.StatusNotFound), StatusCode: http.StatusNotFound, Err: err}
	case resp.StatusCode != 0:
		return &igniteErrors.FetchError{Status: http.StatusText(resp.StatusCode), StatusCode: resp.StatusCode, Err: err}
	default:
		return err
	}
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
