package services

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jaswantjat/field-service-os/models"
	"github.com/jaswantjat/field-service-os/utils"
)

// PhotoKeyPrefix is the storage prefix of every completion photo
const PhotoKeyPrefix = "completions/"

// PhotoService handles completion photo upload, retrieval and deletion
type PhotoService interface {
	// UploadPhoto validates and stores a photo, returning its storage key
	UploadPhoto(ctx context.Context, fileHeader *multipart.FileHeader) (string, error)

	// PhotoURL returns a URL for reading a stored photo
	PhotoURL(ctx context.Context, key string) (string, error)

	// DeletePhoto removes a photo no completion references yet
	DeletePhoto(ctx context.Context, key string) error
}

// S3PhotoService implements PhotoService on top of S3
type S3PhotoService struct {
	db        *gorm.DB
	s3Service S3Interface
}

// NewPhotoService creates a PhotoService storing objects through s3Service
func NewPhotoService(db *gorm.DB, s3Service S3Interface) *S3PhotoService {
	return &S3PhotoService{db: db, s3Service: s3Service}
}

// IsStoredPhoto reports whether a completion photo reference is a storage key
// rather than an external URL
func IsStoredPhoto(ref string) bool {
	return strings.HasPrefix(ref, PhotoKeyPrefix)
}

// UploadPhoto validates the file and uploads it under a fresh key
func (s *S3PhotoService) UploadPhoto(ctx context.Context, fileHeader *multipart.FileHeader) (string, error) {
	contentType, err := utils.ValidateImageFile(fileHeader)
	if err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	key := PhotoKeyPrefix + uuid.NewString() + utils.ImageExtension(fileHeader.Filename)
	if err := s.s3Service.UploadFile(ctx, key, contentType, file); err != nil {
		return "", fmt.Errorf("failed to upload photo: %w", err)
	}
	return key, nil
}

// PhotoURL generates a presigned URL for a stored photo
func (s *S3PhotoService) PhotoURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}

	url, err := s.s3Service.GetPresignedURL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate photo URL: %w", err)
	}
	return url, nil
}

// DeletePhoto removes an uploaded photo. Photos attached to a recorded
// completion are evidence and cannot be deleted.
func (s *S3PhotoService) DeletePhoto(ctx context.Context, key string) error {
	if !IsStoredPhoto(key) || strings.Contains(key, "..") {
		return ValidationError("key", "INVALID_PHOTO_KEY", "Photo key must start with "+PhotoKeyPrefix)
	}

	// The reference check and the delete are not atomic with
	// CompletionService.Record, so a completion recorded in between can keep
	// a key whose object is gone. Uploaded keys are single use, which keeps
	// that window to a client racing its own delete.
	quoted, err := json.Marshal(key)
	if err != nil {
		return InternalError("Failed to check photo references", err)
	}
	var count int64
	err = s.db.WithContext(ctx).Model(&models.JobCompletion{}).
		Where(`CAST(completion_photos AS TEXT) LIKE ? ESCAPE '\'`, "%"+escapeLike(string(quoted))+"%").
		Count(&count).Error
	if err != nil {
		return InternalError("Failed to check photo references", err)
	}
	if count > 0 {
		return ConflictError("PHOTO_IN_USE", "Photo is attached to a job completion")
	}

	if err := s.s3Service.DeleteFile(ctx, key); err != nil {
		return InternalError("Failed to delete photo", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike quotes LIKE wildcards so s matches literally under ESCAPE '\'
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
