package handlers

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/inventaire/internal/domain/dates"
	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// ArticleService is the subset of the article service used over HTTP.
type ArticleService interface {
	Create(ctx context.Context, fields models.Fields) (*models.Article, error)
	Get(ctx context.Context, id uint) (*models.Article, error)
	List(ctx context.Context, filter repository.ListFilter) ([]models.Article, int64, error)
}

// ArticleHandler exposes articles as JSON. The detail route is the page QR
// codes link to.
type ArticleHandler struct {
	svc         ArticleService
	mediaPrefix string
	logger      *zap.Logger
}

// NewArticleHandler constructs the HTTP handler adapter. mediaPrefix is the
// URL path under which the media root is served.
func NewArticleHandler(svc ArticleService, mediaPrefix string, logger *zap.Logger) *ArticleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleHandler{svc: svc, mediaPrefix: mediaPrefix, logger: logger}
}

type articleResponse struct {
	*models.Article
	QRCodeURL string `json:"qr_code_url,omitempty"`
}

type listResponse struct {
	Items  []articleResponse `json:"items"`
	Total  int64             `json:"total"`
	Offset int               `json:"offset"`
	Limit  int               `json:"limit"`
}

type createArticleRequest struct {
	Designation string `json:"designation" binding:"required,max=255"`
	Quantity    *int   `json:"quantity" binding:"required,gte=0"`
	// AcquiredOn accepts day/month/year text such as 15/03/2023.
	AcquiredOn string `json:"acquired_on"`
	Family     string `json:"family" binding:"max=255"`
	Location   string `json:"location" binding:"max=255"`
	Brand      string `json:"brand" binding:"max=255"`
	Model      string `json:"model" binding:"max=255"`
	Prefix     string `json:"prefix" binding:"max=50"`
}

// List returns a page of articles.
func (h *ArticleHandler) List(c *gin.Context) {
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	filter := repository.ListFilter{
		Offset:        offset,
		Limit:         limit,
		Family:        c.Query("family"),
		MissingQRCode: c.Query("missing_qr") == "true",
	}
	items, total, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("failed listing articles", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list articles"})
		return
	}

	resp := listResponse{Items: make([]articleResponse, 0, len(items)), Total: total, Offset: offset, Limit: limit}
	for i := range items {
		resp.Items = append(resp.Items, h.present(&items[i]))
	}
	c.JSON(http.StatusOK, resp)
}

// Detail returns one article.
func (h *ArticleHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid article id"})
		return
	}

	article, err := h.svc.Get(c.Request.Context(), uint(id))
	if errors.Is(err, repository.ErrArticleNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed loading article", zap.Uint64("article_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load article"})
		return
	}

	c.JSON(http.StatusOK, h.present(article))
}

// Create stores a new article and generates its QR code.
func (h *ArticleHandler) Create(c *gin.Context) {
	var req createArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid article payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fields := models.Fields{
		Designation: strings.TrimSpace(req.Designation),
		Quantity:    *req.Quantity,
		Family:      req.Family,
		Location:    req.Location,
		Brand:       req.Brand,
		Model:       req.Model,
		Prefix:      req.Prefix,
	}
	if strings.TrimSpace(req.AcquiredOn) != "" {
		acquired, err := dates.Normalize(req.AcquiredOn, fields.Designation)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fields.AcquiredOn = &acquired
	}

	article, err := h.svc.Create(c.Request.Context(), fields)
	switch {
	case article == nil && errors.Is(err, models.ErrInvalidFields):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case article == nil:
		h.logger.Error("failed creating article", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create article"})
		return
	case err != nil:
		h.logger.Warn("article created without qr code", zap.Uint("article_id", article.ID), zap.Error(err))
	}

	c.JSON(http.StatusCreated, h.present(article))
}

func (h *ArticleHandler) present(a *models.Article) articleResponse {
	resp := articleResponse{Article: a}
	if a.QRCode != "" {
		resp.QRCodeURL = path.Join(h.mediaPrefix, a.QRCode)
	}
	return resp
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
