package media

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds connection settings for an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinIOStorage implements the Store interface on top of a MinIO bucket. Object
// keys mirror the relative paths LocalStorage would produce.
type MinIOStorage struct {
	client    *minio.Client
	bucket    string
	subDirMap map[AssetType]string
}

// NewMinIOStorage connects to MinIO and creates the bucket if it doesn't exist
func NewMinIOStorage(ctx context.Context, cfg MinIOConfig, subDirs map[AssetType]string) (*MinIOStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket '%s': %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket '%s': %w", cfg.Bucket, err)
		}
		log.Printf("media.minio: Created bucket %s", cfg.Bucket)
	}

	log.Printf("media.minio: Initialized MinIOStorage at %s/%s", cfg.Endpoint, cfg.Bucket)
	return &MinIOStorage{client: client, bucket: cfg.Bucket, subDirMap: subDirs}, nil
}

// objectKey builds the object name for an asset. It is shared with tests.
func objectKey(subDirs map[AssetType]string, assetType AssetType, relativeDirHint, filename string) (string, error) {
	if filename == "" || strings.Contains(filename, "/") {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}
	subDir, ok := subDirs[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	key := path.Join(subDir, path.Clean("/" + relativeDirHint)[1:], filename)
	if strings.HasPrefix(key, "../") || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("invalid object key '%s'", key)
	}
	return key, nil
}

func cleanObjectKey(relativePath string) (string, error) {
	key := strings.TrimPrefix(path.Clean("/"+relativePath), "/")
	if key == "" {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return key, nil
}

func (m *MinIOStorage) Save(ctx context.Context, assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error) {
	key, err := objectKey(m.subDirMap, assetType, relativeDirHint, filename)
	if err != nil {
		return "", err
	}

	// size -1 makes the client stream the reader as a multipart upload
	_, err = m.client.PutObject(ctx, m.bucket, key, data, -1, minio.PutObjectOptions{
		ContentType: mime.TypeByExtension(path.Ext(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload '%s' to MinIO: %w", key, err)
	}

	log.Printf("media.minio: Saved asset to %s/%s", m.bucket, key)
	return key, nil
}

func (m *MinIOStorage) Get(ctx context.Context, relativePath string) (io.ReadCloser, AssetInfo, error) {
	key, err := cleanObjectKey(relativePath)
	if err != nil {
		return nil, AssetInfo{}, err
	}

	stat, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, AssetInfo{}, fmt.Errorf("%w: '%s'", ErrAssetNotFound, relativePath)
		}
		return nil, AssetInfo{}, fmt.Errorf("failed to stat object '%s': %w", key, err)
	}

	object, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, AssetInfo{}, fmt.Errorf("failed to get object '%s': %w", key, err)
	}

	return object, AssetInfo{
		Size:        stat.Size,
		ModTime:     stat.LastModified,
		ContentType: stat.ContentType,
	}, nil
}

func (m *MinIOStorage) Delete(ctx context.Context, relativePath string) error {
	key, err := cleanObjectKey(relativePath)
	if err != nil {
		return err
	}
	// removing a missing key succeeds on S3-compatible stores
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete '%s' from MinIO: %w", key, err)
	}
	log.Printf("media.minio: Deleted asset %s/%s", m.bucket, key)
	return nil
}
