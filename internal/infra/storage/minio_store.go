package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"video-transcode-worker/internal/config"
	"video-transcode-worker/internal/domain/ports/adapter"
)

var _ adapter.BlobStore = (*MinioStore)(nil)

// MinioStore is the S3-compatible blob store adapter.
type MinioStore struct {
	client *minio.Client
}

func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio connection: %w", err)
	}
	return &MinioStore{client: client}, nil
}

func (s *MinioStore) FetchObject(ctx context.Context, bucket, key, localPath string) (int64, error) {
	if err := s.client.FGetObject(ctx, bucket, key, localPath, minio.GetObjectOptions{}); err != nil {
		return 0, fmt.Errorf("fetch %s/%s: %w", bucket, key, err)
	}
	stat, err := os.Stat(localPath)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (s *MinioStore) UploadTree(ctx context.Context, bucket, prefix, localDir string) (int, error) {
	count := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))

		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return err
		}

		_, err = s.client.PutObject(ctx, bucket, key, f, stat.Size(), minio.PutObjectOptions{
			ContentType: ContentTypeFor(p),
		})
		if err != nil {
			return fmt.Errorf("upload %s/%s: %w", bucket, key, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// ContentTypeFor maps output file extensions to the types HLS players expect.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
