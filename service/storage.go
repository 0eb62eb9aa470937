package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

// ArtifactStore persists final artifacts under stable per-job keys.
type ArtifactStore interface {
	Store(ctx context.Context, localRef, objectKey string) (string, error)
}

// MinioStore uploads artifacts from the engine work dir to object storage.
type MinioStore struct {
	Client  *minio.Client
	Bucket  string
	WorkDir string
}

func (s *MinioStore) Store(ctx context.Context, localRef, objectKey string) (string, error) {
	localPath := filepath.Join(s.WorkDir, filepath.FromSlash(localRef))
	objectKey = strings.ReplaceAll(objectKey, "\\", "/")
	_, err := s.Client.FPutObject(ctx, s.Bucket, objectKey, localPath, minio.PutObjectOptions{
		ContentType: contentTypeFor(objectKey),
	})
	if err != nil {
		return "", err
	}
	return objectKey, nil
}

func contentTypeFor(key string) string {
	switch filepath.Ext(key) {
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	}
	return "application/octet-stream"
}
