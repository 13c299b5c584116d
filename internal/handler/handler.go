package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jeffasante/skincare-analysis-api/internal/domain"
	"github.com/jeffasante/skincare-analysis-api/internal/service"
)

// multipartOverhead is the slack allowed on top of the payload limit for
// multipart boundaries and part headers.
const multipartOverhead = 1 << 20

type Handler struct {
	images   service.ImageService
	analysis service.AnalysisService
	log      *zap.Logger
}

func NewHandler(images service.ImageService, analysis service.AnalysisService, log *zap.Logger) *Handler {
	return &Handler{
		images:   images,
		analysis: analysis,
		log:      log,
	}
}

type analyzeRequest struct {
	ImageID string `json:"image_id"`
}

func (h *Handler) UploadImage(c *gin.Context) {
	limit := h.images.Validator().MaxSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			h.respondError(c, h.images.Validator().CheckSize(limit+1), "")
			return
		}
		h.log.Warn("Failed to get file from form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No image file provided"})
		return
	}

	h.log.Info("Received upload request", zap.String("filename", header.Filename))

	file, err := header.Open()
	if err != nil {
		h.log.Error("Failed to open file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "An error occurred while uploading the image"})
		return
	}
	defer file.Close()

	image, err := h.images.AcceptUpload(c.Request.Context(), domain.UploadCandidate{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		h.respondError(c, err, "An error occurred while uploading the image")
		return
	}

	c.JSON(http.StatusOK, image)
}

func (h *Handler) AnalyzeImage(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request body"})
		return
	}

	h.log.Info("Received analysis request", zap.String("image_id", req.ImageID))

	if err := h.images.Validator().CheckIdentifierFormat(req.ImageID); err != nil {
		h.respondError(c, err, "")
		return
	}

	report, err := h.analysis.AnalyzeImage(c.Request.Context(), h.images, req.ImageID)
	if err != nil {
		h.respondError(c, err, "An error occurred while analyzing the image")
		return
	}

	h.log.Info("Successfully analyzed image", zap.String("image_id", req.ImageID))
	c.JSON(http.StatusOK, report)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": domain.Timestamp(time.Now()).String(),
	})
}

func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large")
}

// respondError maps the error taxonomy onto status codes. internalMsg is the
// body used for anything that is neither a validation nor a not-found error.
func (h *Handler) respondError(c *gin.Context, err error, internalMsg string) {
	switch {
	case domain.IsValidation(err):
		h.log.Warn("Validation error",
			zap.String("path", c.FullPath()),
			zap.Stringer("kind", domain.ValidationKindOf(err)),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
	case domain.IsNotFound(err):
		h.log.Warn("Image not found", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"detail": err.Error()})
	default:
		h.log.Error("Unexpected error",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": internalMsg})
	}
}
