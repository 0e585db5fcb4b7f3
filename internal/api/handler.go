package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-city-report/internal/heatmap"
	"github.com/mr1hm/go-city-report/internal/mapview"
	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

const (
	serviceName    = "Gothenburg CityReport API"
	serviceVersion = "1.0.0"
)

type Options struct {
	MaxUploadBytes int64
	PublicBaseURL  string
	DefaultCenter  models.Coordinates
}

type Handler struct {
	reports    repository.ReportRepository
	categories repository.CategoryRepository
	heatmap    *heatmap.Service
	maps       *mapview.Service
	opts       Options
}

func NewHandler(reports repository.ReportRepository, categories repository.CategoryRepository, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 50 << 20
	}
	return &Handler{
		reports:    reports,
		categories: categories,
		heatmap:    heatmap.NewService(reports),
		maps:       mapview.NewService(reports, opts.DefaultCenter),
		opts:       opts,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/", h.root)

	images := r.Group("/api/images")
	images.GET("", h.listImages)
	images.POST("/upload", h.uploadImage)
	images.GET("/stats/summary", h.stats)
	images.GET("/by-filename/:filename", h.getImageByFilename)
	images.GET("/:id", h.getImage)
	images.GET("/:id/file", h.getImageFile)
	images.GET("/:id/qr", h.getImageQR)
	images.DELETE("/:id", h.deleteImage)

	hm := r.Group("/api/heatmap")
	hm.GET("/coordinates", h.coordinates)
	hm.GET("/bounds", h.bounds)
	hm.GET("/density", h.density)
	hm.GET("/geojson", h.geojson)

	r.GET("/api/categories", h.listCategories)
	r.GET("/api/categories/:id", h.getCategory)

	r.GET("/api/map", h.mapData)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":         serviceName,
		"version":      serviceVersion,
		"status":       "operational",
		"municipality": "Gothenburg",
		"endpoints": gin.H{
			"health":     "/health",
			"images":     "/api/images",
			"heatmap":    "/api/heatmap",
			"categories": "/api/categories",
			"map":        "/api/map",
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondError maps service and store errors to a status code. msg is the
// client-facing message for server errors.
func respondError(c *gin.Context, err error, notFound, msg string) {
	var boundsErr *heatmap.InvalidBoundsError
	var upstream *heatmap.UpstreamQueryError

	switch {
	case errors.As(err, &boundsErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": boundsErr.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound})
	case errors.As(err, &upstream):
		slog.Error(msg, "op", upstream.Op, "error", upstream.Err, "request_id", requestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	default:
		slog.Error(msg, "error", err, "request_id", requestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
