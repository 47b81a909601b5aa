package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"salon-chat/domain"
	"salon-chat/errors"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint      string `validate:"required"`
	Region        string `validate:"required"`
	AccessKey     string `validate:"required"`
	SecretKey     string `validate:"required"`
	Bucket        string `validate:"required"`
	UseSSL        bool
	PublicBaseURL string
	// Transport overrides the HTTP transport of the client, nil keeps the default.
	Transport http.RoundTripper
}

// S3Backend stores attachments in an S3 compatible bucket. Objects are uploaded public-read
// and served by direct URL.
type S3Backend struct {
	client     *minio.Client
	log        *slog.Logger
	bucket     string
	publicBase string
}

func NewS3Backend(cfg S3Config, log *slog.Logger) (*S3Backend, error) {
	host, secure := endpointHost(cfg.Endpoint, cfg.UseSSL)
	client, err := minio.New(host, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       secure,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
		Transport:    cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}

	publicBase := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if publicBase == "" {
		scheme := "http"
		if secure {
			scheme = "https"
		}
		publicBase = fmt.Sprintf("%s://%s/%s", scheme, host, cfg.Bucket)
	}
	return &S3Backend{client: client, log: log, bucket: cfg.Bucket, publicBase: publicBase}, nil
}

// Upload replaces any object stored under key. The ACL travels with the PUT itself, so a
// successful upload is already publicly readable.
func (s *S3Backend) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": "public-read"},
	})
	if err != nil {
		return errors.NewStorageFault("upload", key, err)
	}
	return nil
}

// Download streams the object into w. A read failure mid-stream is a fault, never a short success.
func (s *S3Backend) Download(ctx context.Context, key string, w io.Writer) error {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return errors.NewStorageFault("download", key, err)
	}
	defer object.Close()

	if _, err := io.Copy(w, object); err != nil {
		if isNotFound(err) {
			err = fmt.Errorf("%w: %w", errors.ErrObjectNotFound, err)
		}
		return errors.NewStorageFault("download", key, err)
	}
	return nil
}

func (s *S3Backend) Delete(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return errors.NewStorageFault("delete", key, err)
	}
	return nil
}

// DeleteFolder lists the prefix then removes every key with one batch request.
// An empty listing issues no batch call. Keys written after the listing survive.
func (s *S3Backend) DeleteFolder(ctx context.Context, prefix string) error {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(objects) == 0 {
		return nil
	}

	toRemove := make(chan minio.ObjectInfo, len(objects))
	for _, object := range objects {
		toRemove <- minio.ObjectInfo{Key: object.Key}
	}
	close(toRemove)

	var failed []string
	for result := range s.client.RemoveObjects(ctx, s.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if result.Err != nil && !isNotFound(result.Err) {
			s.log.Warn("Object not removed", "key", result.ObjectName, "error", result.Err)
			failed = append(failed, result.ObjectName)
		}
	}
	if len(failed) > 0 {
		return errors.NewStorageFault("delete-folder", prefix, fmt.Errorf("%d objects not removed: %s", len(failed), strings.Join(failed, ",")))
	}
	s.log.Debug("Folder deleted", "prefix", prefix, "objects", len(objects))
	return nil
}

func (s *S3Backend) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var objects []domain.ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if object.Err != nil {
			return nil, errors.NewStorageFault("list", prefix, object.Err)
		}
		objects = append(objects, domain.ObjectInfo{Key: object.Key, Size: object.Size})
	}
	return objects, nil
}

func (s *S3Backend) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

func isNotFound(err error) bool {
	response := minio.ToErrorResponse(err)
	return response.Code == "NoSuchKey" || response.StatusCode == http.StatusNotFound && response.Code != "NoSuchBucket"
}

// endpointHost accepts either a bare host or a URL; a scheme in the URL wins over useSSL.
func endpointHost(endpoint string, useSSL bool) (string, bool) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	default:
		return strings.TrimSuffix(endpoint, "/"), useSSL
	}
}
