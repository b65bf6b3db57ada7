// Package storage uploads a city's posters to S3-compatible object storage.
package storage

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"citypaper/internal/apperrors"
	"citypaper/internal/config"
	"citypaper/internal/keys"
	"citypaper/internal/logger"
)

// Uploader publishes a local directory under a key prefix and returns the
// public URL of every file, keyed by its slash path relative to the directory.
type Uploader interface {
	UploadDirectory(ctx context.Context, dir, prefix, message string) (map[string]string, error)
}

// objectStore is the part of *minio.Client the service uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucketName, objectName, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Service is a client for S3-compatible storage.
type S3Service struct {
	client    objectStore
	bucket    string
	region    string
	publicURL string
	log       *zap.Logger
}

// New returns an S3Service when storage is configured and Noop otherwise.
func New(cfg config.StorageConfig, log *zap.Logger) (Uploader, error) {
	log = logger.OrNop(log)
	if !cfg.Configured() {
		log.Warn("object storage not configured; uploads are disabled")
		return Noop{}, nil
	}
	return NewS3Service(cfg, log)
}

// NewS3Service connects to the endpoint in cfg.
func NewS3Service(cfg config.StorageConfig, log *zap.Logger) (*S3Service, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfig, "failed to create MinIO client", err)
	}
	log = logger.OrNop(log)
	log.Info("object storage configured", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return &S3Service{
		client:    client,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		publicURL: cfg.PublicURL(),
		log:       log,
	}, nil
}

// EnsureBucket creates the bucket when it does not exist.
func (s *S3Service) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", s.bucket, err)
	}
	s.log.Info("bucket created", zap.String("bucket", s.bucket))
	return nil
}

// UploadDirectory uploads every file below dir to "{prefix}/{relative path}".
// Existing objects are overwritten. The first failing file aborts the upload.
func (s *S3Service) UploadDirectory(ctx context.Context, dir, prefix, message string) (map[string]string, error) {
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUpload, "preparing bucket", err)
	}

	files, err := walkFiles(dir)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeUpload, "listing "+dir, err)
	}

	urls := make(map[string]string, len(files))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeUpload, "upload interrupted", err)
		}
		key := keys.Join(prefix, rel)
		opts := minio.PutObjectOptions{
			ContentType: contentType(rel),
			UserMetadata: map[string]string{
				// header values must stay ASCII
				"commit-message": url.QueryEscape(message),
			},
		}
		info, err := s.client.FPutObject(ctx, s.bucket, key, filepath.Join(dir, filepath.FromSlash(rel)), opts)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeUpload, "uploading "+key, err)
		}
		s.log.Debug("object stored", zap.String("key", key), zap.Int64("size", info.Size))
		urls[rel] = ObjectURL(s.publicURL, key)
	}
	s.log.Info("directory uploaded", zap.String("prefix", prefix), zap.Int("files", len(urls)))
	return urls, nil
}

// ObjectURL joins the public base URL and an object key, escaping each
// key segment.
func ObjectURL(base, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(segs, "/")
}

// walkFiles returns the slash paths of the regular files below dir, sorted.
func walkFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	sort.Strings(files)
	return files, err
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Noop is the uploader used when storage is not configured. It uploads
// nothing and returns no URLs.
type Noop struct{}

func (Noop) UploadDirectory(context.Context, string, string, string) (map[string]string, error) {
	return map[string]string{}, nil
}
