package model

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Source streams a model artifact from a remote location.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
	String() string
}

// BlobStore holds the connection settings for s3:// model URLs.
type BlobStore struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewSource picks a Source for rawURL: http(s) URLs are fetched directly, s3://bucket/key
// is read from the configured blob store.
func NewSource(rawURL string, store BlobStore, retries uint64) (Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid model url %q: %w", rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return nil, fmt.Errorf("invalid model url %q: missing host", rawURL)
		}
		return &HTTPSource{URL: rawURL, Client: http.DefaultClient, Retries: retries}, nil
	case "s3":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return nil, fmt.Errorf("invalid model url %q: want s3://bucket/key", rawURL)
		}
		if store.Endpoint == "" {
			return nil, fmt.Errorf("model url %q needs storage.endpoint", rawURL)
		}
		cli, err := minio.New(store.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(store.AccessKey, store.SecretKey, ""),
			Secure: store.UseSSL,
			Region: store.Region,
		})
		if err != nil {
			return nil, err
		}
		return &BlobSource{client: cli, bucket: u.Host, key: key}, nil
	default:
		return nil, fmt.Errorf("unsupported model url scheme %q", u.Scheme)
	}
}

// HTTPSource downloads the artifact with a GET request. Transport errors and 5xx responses
// are retried up to Retries times; other non-2xx responses fail immediately.
type HTTPSource struct {
	URL     string
	Client  *http.Client
	Retries uint64
}

func (s *HTTPSource) String() string { return s.URL }

func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	var body io.ReadCloser
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := s.Client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			err := fmt.Errorf("unexpected status %s", resp.Status)
			if resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		body = resp.Body
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.Retries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, err
	}
	return body, nil
}

// BlobSource reads the artifact from an S3-compatible bucket.
type BlobSource struct {
	client *minio.Client
	bucket string
	key    string
}

func (s *BlobSource) String() string { return "s3://" + s.bucket + "/" + s.key }

func (s *BlobSource) Open(ctx context.Context) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces missing objects and credential errors up front.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// EnsurePresent makes sure an artifact exists at localPath, downloading it from src when it
// does not. The download goes to a temporary file in the same directory and is renamed into
// place only after it completed, so a failed run never leaves a partial artifact behind.
func EnsurePresent(ctx context.Context, logger *slog.Logger, localPath string, src Source) error {
	if info, err := os.Stat(localPath); err == nil {
		if info.IsDir() {
			return &ProvisioningError{Path: localPath, Err: fmt.Errorf("%s is a directory", localPath)}
		}
		logger.Info("model already exists, skipping download", "path", localPath)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &ProvisioningError{Path: localPath, Err: err}
	}

	if src == nil {
		return &ProvisioningError{Path: localPath, Err: errors.New("model missing and no download url configured")}
	}

	fail := func(err error) error {
		return &ProvisioningError{URL: src.String(), Path: localPath, Err: err}
	}

	logger.Info("downloading model", "url", src.String(), "path", localPath)

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(err)
	}

	body, err := src.Open(ctx)
	if err != nil {
		return fail(err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*.part")
	if err != nil {
		return fail(err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	n, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		return fail(fmt.Errorf("download interrupted after %d bytes: %w", n, err))
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if n == 0 {
		return fail(errors.New("downloaded artifact is empty"))
	}
	if err := os.Rename(tmpPath, localPath); err != nil {
		return fail(err)
	}

	logger.Info("model downloaded", "path", localPath, "bytes", n)
	return nil
}
