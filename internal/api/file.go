package api

import (
	"net/http"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/storage"
	apperrors "marketchat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// FileHandler exposes the storage backend directly, without attaching the
// upload to a chat message. Clients that stage images before sending use it.
type FileHandler struct {
	store storage.Storage
}

func NewFileHandler(store storage.Storage) *FileHandler {
	return &FileHandler{store: store}
}

// Upload handles POST /files/upload (multipart, field "file")
func (h *FileHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.Error(apperrors.NewValidationError("file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperrors.NewUpstreamIOError("failed to read uploaded file", err))
		return
	}
	defer file.Close()

	url, err := h.store.Upload(
		c.Request.Context(),
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		c.Error(apperrors.NewUpstreamIOError("failed to store uploaded file", err))
		return
	}

	c.JSON(http.StatusOK, models.ImageUploadResponse{
		ImageURL: url,
		Message:  "file uploaded successfully",
	})
}

// Delete handles DELETE /files?fileUrl=
func (h *FileHandler) Delete(c *gin.Context) {
	fileURL := c.Query("fileUrl")
	if fileURL == "" {
		c.Error(apperrors.NewValidationError("fileUrl query parameter is required"))
		return
	}

	if err := h.store.Delete(c.Request.Context(), fileURL); err != nil {
		c.Error(apperrors.NewUpstreamIOError("failed to delete file", err))
		return
	}
	c.Status(http.StatusNoContent)
}
