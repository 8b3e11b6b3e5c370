package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"syncBoard/configs"
	"syncBoard/internal/enums"
)

// MinioService archives board snapshots to object storage.
type MinioService struct {
	minioClient *minio.Client
	bucketName  string
	now         func() time.Time
}

func NewMinioService(ctx context.Context, config *configs.Config) (*MinioService, error) {
	endpoint := config.Viper.GetString("minio.endpoint")
	accessKeyID := config.Viper.GetString("minio.access_key_id")
	secretAccessKey := config.Viper.GetString("minio.secret_access_key")
	useSSL := config.Viper.GetBool("minio.use_ssl")

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	bucketName := config.Viper.GetString("minio.bucket")
	if bucketName == "" {
		bucketName = enums.FILE_BUCKET_SNAPSHOTS
	}
	if err := minioClient.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
		exists, errBucketExists := minioClient.BucketExists(ctx, bucketName)
		if errBucketExists != nil || !exists {
			return nil, err
		}
		log.Printf("NewMinioService - bucket %s already exists", bucketName)
	} else {
		log.Printf("NewMinioService - created bucket %s", bucketName)
	}

	return &MinioService{
		minioClient: minioClient,
		bucketName:  bucketName,
		now:         time.Now,
	}, nil
}

// ArchiveSnapshot stores one snapshot per teardown and returns its key.
func (ms *MinioService) ArchiveSnapshot(ctx context.Context, boardID string, data []byte) (string, error) {
	key := SnapshotKey(boardID, ms.now())
	info, err := ms.minioClient.PutObject(ctx, ms.bucketName, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		log.Printf("MinioService.ArchiveSnapshot - error archiving %s: %v", boardID, err)
		return "", err
	}
	return info.Key, nil
}

func SnapshotKey(boardID string, at time.Time) string {
	return fmt.Sprintf("boards/%s/%s.json", boardID, at.UTC().Format("20060102T150405.000000000Z"))
}
