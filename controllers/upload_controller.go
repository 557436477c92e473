package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jaswantjat/field-service-os/utils"
)

// photoStorageEnabled answers 503 when no bucket is configured
func (h *Handler) photoStorageEnabled(c *gin.Context) bool {
	if h.Photos != nil {
		return true
	}
	respondCode(c, http.StatusServiceUnavailable, "PHOTO_STORAGE_DISABLED", "Photo storage is not configured")
	return false
}

// UploadPhoto handles POST /api/v1/uploads/photos - stores a completion photo
// (multipart field "photo") and returns its key for use in completion_photos
func (h *Handler) UploadPhoto(c *gin.Context) {
	if !h.photoStorageEnabled(c) {
		return
	}

	// a missing part leaves fileHeader nil, which validation reports
	fileHeader, _ := c.FormFile("photo")

	key, err := h.Photos.UploadPhoto(c.Request.Context(), fileHeader)
	if err != nil {
		var fileErr *utils.FileUploadError
		if errors.As(err, &fileErr) {
			respondCode(c, http.StatusBadRequest, fileErr.Code, fileErr.Message)
			return
		}
		log.Printf("Photo upload failed: %v", err)
		respondCode(c, http.StatusInternalServerError, "UPLOAD_FAILED", "Failed to upload photo")
		return
	}

	url, err := h.Photos.PhotoURL(c.Request.Context(), key)
	if err != nil {
		log.Printf("Failed to generate photo URL for %s: %v", key, err)
	}

	respondSuccess(c, http.StatusCreated, gin.H{
		"key": key,
		"url": url,
	})
}

// DeletePhoto handles DELETE /api/v1/uploads/photos/*key - removes a photo
// that no completion references
func (h *Handler) DeletePhoto(c *gin.Context) {
	if !h.photoStorageEnabled(c) {
		return
	}

	key := strings.TrimPrefix(c.Param("key"), "/")
	if err := h.Photos.DeletePhoto(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Photo deleted",
	})
}
