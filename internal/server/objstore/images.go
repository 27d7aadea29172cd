// Package objstore хранит изображения профиля в S3-совместимом
// object storage.
package objstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrUploadRejected означает, что файл не прошел проверку
// типа или размера
var ErrUploadRejected = errors.New("upload rejected")

// MaxImageSize — предельный размер изображения профиля (5MB)
const MaxImageSize = 5 << 20

// PresignExpiry — срок действия presigned ссылки на изображение
const PresignExpiry = time.Hour

// allowedContentTypes отображает разрешенный content type
// в расширение файла
var allowedContentTypes = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
}

// ImageStore управляет изображениями профиля пользователей
type ImageStore interface {
	// UploadUserImage загружает изображение и возвращает его ключ.
	// Возвращает ErrUploadRejected для недопустимого типа или размера.
	UploadUserImage(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error)

	// ImageURL возвращает presigned URL для чтения изображения
	ImageURL(ctx context.Context, key string) (string, error)

	// DeleteUserImage удаляет изображение по ключу
	DeleteUserImage(ctx context.Context, key string) error
}

// MinioStore реализует ImageStore поверх minio клиента
type MinioStore struct {
	client *minio.Client
	logger *slog.Logger
	bucket string
}

// NewMinioStore создает клиент object storage
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, logger *slog.Logger) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object storage client: %w", err)
	}

	return &MinioStore{
		client: client,
		logger: logger,
		bucket: bucket,
	}, nil
}

// EnsureBucket создает bucket, если его еще нет
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	return nil
}

// UploadUserImage загружает изображение профиля.
// Ключ детерминированный: повторная загрузка заменяет предыдущее
// изображение того же типа.
func (s *MinioStore) UploadUserImage(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	ext, err := ValidateImage(size, contentType)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("user-images/%s/profile.%s", userID, ext)

	_, err = s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.InfoContext(ctx, "user image uploaded",
		slog.String("user_id", userID),
		slog.String("key", key))

	return key, nil
}

// ImageURL возвращает presigned URL для чтения изображения
func (s *MinioStore) ImageURL(ctx context.Context, key string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, PresignExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to presign image url: %w", err)
	}
	return u.String(), nil
}

// DeleteUserImage удаляет изображение по ключу
func (s *MinioStore) DeleteUserImage(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// ValidateImage проверяет content type и размер изображения.
// Возвращает расширение файла для допустимого типа
// и ErrUploadRejected в остальных случаях.
func ValidateImage(size int64, contentType string) (string, error) {
	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: content type %q is not allowed", ErrUploadRejected, contentType)
	}

	if size <= 0 || size > MaxImageSize {
		return "", fmt.Errorf("%w: file size must be between 1 byte and %d bytes", ErrUploadRejected, MaxImageSize)
	}

	return ext, nil
}
