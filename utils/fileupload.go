package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

const (
	// MaxFileSize is 10MB in bytes
	MaxFileSize = 10 * 1024 * 1024

	// sniffLen is how much of the file http.DetectContentType looks at
	sniffLen = 512
)

// allowedImageTypes maps accepted extensions to the content type they must sniff as
var allowedImageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateImageFile checks size, extension and the actual bytes of an
// uploaded photo. It returns the content type to store the file with.
func ValidateImageFile(fileHeader *multipart.FileHeader) (string, error) {
	if fileHeader == nil {
		return "", &FileUploadError{
			Code:    "MISSING_FILE",
			Message: "A photo file is required",
		}
	}

	if fileHeader.Size > MaxFileSize {
		return "", &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	contentType, ok := allowedImageTypes[ext]
	if !ok {
		return "", invalidFormat()
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if http.DetectContentType(head[:n]) != contentType {
		return "", invalidFormat()
	}

	return contentType, nil
}

// ImageExtension returns the lower-cased extension of an accepted photo,
// with .jpeg folded into .jpg
func ImageExtension(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		return ".jpg"
	}
	return ext
}

func invalidFormat() *FileUploadError {
	return &FileUploadError{
		Code:    "INVALID_FILE_FORMAT",
		Message: "Only .png and .jpg/.jpeg files are allowed",
	}
}
