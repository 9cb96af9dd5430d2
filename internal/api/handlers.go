package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/milkmob/internal/campaign"
	"github.com/jonesrussell/north-cloud/milkmob/internal/classifier"
	"github.com/jonesrussell/north-cloud/milkmob/internal/domain"
	"github.com/jonesrussell/north-cloud/milkmob/internal/logger"
	"github.com/jonesrussell/north-cloud/milkmob/internal/storage"
)

const (
	videoFormField    = "video"
	metadataFormField = "metadata"
	multipartOverhead = 1 << 20
)

// Handler handles HTTP requests for the campaign API.
type Handler struct {
	service  *campaign.Service
	uploads  *storage.VideoStore
	maxBytes int64
	logger   logger.Logger
}

// NewHandler creates a Handler. uploads may be nil, which disables submissions.
func NewHandler(service *campaign.Service, uploads *storage.VideoStore, maxUploadBytes int64, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{service: service, uploads: uploads, maxBytes: maxUploadBytes, logger: log}
}

func (h *Handler) requestLogger(c *gin.Context) logger.Logger {
	return logger.FromContext(c.Request.Context(), h.logger)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// DetectTags handles POST /api/v1/tags/detect
func (h *Handler) DetectTags(c *gin.Context) {
	var post domain.PostMetadata
	if err := c.ShouldBindJSON(&post); err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.service.DetectTags(c.Request.Context(), &post))
}

// PopularTags handles GET /api/v1/tags/popular
func (h *Handler) PopularTags(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, PopularTagsResponse{Tags: h.service.PopularTags(c.Request.Context(), limit)})
}

// ResetPopularTags handles DELETE /api/v1/tags/popular
func (h *Handler) ResetPopularTags(c *gin.Context) {
	if err := h.service.ResetPopularTags(c.Request.Context()); err != nil {
		h.requestLogger(c).Error("Failed to reset popular tags", logger.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to reset popular tags"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Validate handles POST /api/v1/validate
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	tagResult := req.TagResult
	if tagResult == nil && req.Post != nil {
		tagResult = h.service.DetectTags(ctx, req.Post)
	}
	c.JSON(http.StatusOK, h.service.ValidateVideo(ctx, req.Analysis, tagResult))
}

// Classify handles POST /api/v1/classify
func (h *Handler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	result := h.service.ClassifyVideo(c.Request.Context(), req.Analysis, classifier.Options{
		Location: req.Location,
		Title:    req.Title,
	})
	c.JSON(http.StatusOK, ClassifyResponse{Result: result})
}

// ClassifyBatch handles POST /api/v1/classify/batch
func (h *Handler) ClassifyBatch(c *gin.Context) {
	var req BatchClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	for i, item := range req.Items {
		if item.Record == nil {
			badRequest(c, errors.New("items["+strconv.Itoa(i)+"].record is required"))
			return
		}
	}

	results := h.service.ClassifyBatch(c.Request.Context(), req.Items)
	resp := BatchClassifyResponse{Results: results, Total: len(results)}
	for _, r := range results {
		if r.Error == "" {
			resp.Success++
		} else {
			resp.Failed++
		}
	}
	c.JSON(http.StatusOK, resp)
}

// ListCategories handles GET /api/v1/categories
func (h *Handler) ListCategories(c *gin.Context) {
	cats := h.service.GetAllCategories()
	c.JSON(http.StatusOK, CategoriesResponse{Categories: cats, Total: len(cats)})
}

// UpdateKeywords handles PUT /api/v1/categories/:id/keywords
func (h *Handler) UpdateKeywords(c *gin.Context) {
	var req UpdateKeywordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	categoryID := c.Param("id")
	ctx := c.Request.Context()

	err := h.service.SetKeywordWeights(ctx, categoryID, req.Keywords)
	switch {
	case err == nil:
	case errors.Is(err, campaign.ErrUnknownCategory):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	case errors.Is(err, campaign.ErrInvalidKeyword):
		badRequest(c, err)
		return
	default:
		h.requestLogger(c).Error("Failed to update keyword weights",
			logger.String("category_id", categoryID),
			logger.Int("keywords", len(req.Keywords)),
			logger.Error(err),
		)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to update keywords"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"category_id": categoryID, "updated": len(req.Keywords)})
}

// Stats handles GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetCohortStats(c.Request.Context()))
}

// Submit handles POST /api/v1/submissions. The body is a multipart form with
// the video file and either a JSON metadata field or plain caption,
// hashtags, place_name and city fields.
func (h *Handler) Submit(c *gin.Context) {
	if h.uploads == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "submissions are disabled"})
		return
	}
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	header, err := c.FormFile(videoFormField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "video exceeds upload limit"})
			return
		}
		badRequest(c, errors.New("video file is required"))
		return
	}

	post, err := postFromForm(c)
	if err != nil {
		badRequest(c, err)
		return
	}

	file, err := header.Open()
	if err != nil {
		badRequest(c, errors.New("cannot read uploaded video"))
		return
	}
	defer func() { _ = file.Close() }()

	log := h.requestLogger(c)
	path, err := h.uploads.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "video exceeds upload limit"})
			return
		}
		log.Error("Failed to store upload", logger.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to store video"})
		return
	}
	log.Info("Video saved", logger.String("path", path))

	result := h.service.ProcessSubmission(c.Request.Context(), path, post)
	status := http.StatusOK
	if result.Status == campaign.StatusError {
		status = http.StatusBadGateway
	}
	c.JSON(status, result)
}

func postFromForm(c *gin.Context) (*domain.PostMetadata, error) {
	post := &domain.PostMetadata{}
	if raw := c.PostForm(metadataFormField); raw != "" {
		if err := json.Unmarshal([]byte(raw), post); err != nil {
			return nil, errors.New("metadata must be a JSON object")
		}
		return post, nil
	}

	post.Caption = c.PostForm("caption")
	for _, tag := range strings.Split(c.PostForm("hashtags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			post.Hashtags = append(post.Hashtags, tag)
		}
	}
	if place := strings.TrimSpace(c.PostForm("place_name")); place != "" {
		post.Location = &domain.Location{PlaceName: place, City: strings.TrimSpace(c.PostForm("city"))}
	}
	post.UserID = c.PostForm("user_id")
	return post, nil
}
