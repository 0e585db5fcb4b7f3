package api

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"

	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	defaultQRSize = 256
	minQRSize     = 128
	maxQRSize     = 1024

	// multipart headers and the small text fields sent with the image
	uploadFormOverhead = 64 << 10
)

type reportResponse struct {
	ID               int64     `json:"id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"originalFilename"`
	MimeType         string    `json:"mimeType"`
	FileSize         int64     `json:"fileSize"`
	Latitude         *float64  `json:"latitude"`
	Longitude        *float64  `json:"longitude"`
	CategoryID       *int64    `json:"categoryId,omitempty"`
	CategoryNameEn   string    `json:"categoryNameEn,omitempty"`
	CategoryNameSv   string    `json:"categoryNameSv,omitempty"`
	Description      string    `json:"description,omitempty"`
	UploadTimestamp  time.Time `json:"uploadTimestamp"`
}

func toReportResponse(r *models.Report) reportResponse {
	return reportResponse{
		ID:               r.ID,
		Filename:         r.Filename,
		OriginalFilename: r.OriginalFilename,
		MimeType:         r.MimeType,
		FileSize:         r.FileSize,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		CategoryID:       r.CategoryID,
		CategoryNameEn:   r.CategoryNameEn,
		CategoryNameSv:   r.CategoryNameSv,
		Description:      r.Description,
		UploadTimestamp:  r.UploadTimestamp,
	}
}

func (h *Handler) listImages(c *gin.Context) {
	filter := repository.Filter{
		Limit: defaultListLimit,
	}

	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= maxListLimit {
			filter.Limit = lim
		}
	}
	if o := c.Query("offset"); o != "" {
		if off, err := strconv.Atoi(o); err == nil && off >= 0 {
			filter.Offset = off
		}
	}

	reports, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err, "", "failed to retrieve images")
		return
	}

	images := make([]reportResponse, 0, len(reports))
	for i := range reports {
		images = append(images, toReportResponse(&reports[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"images": images,
		"pagination": gin.H{
			"limit":  filter.Limit,
			"offset": filter.Offset,
			"count":  len(images),
		},
	})
}

func (h *Handler) uploadImage(c *gin.Context) {
	bodyLimit := h.opts.MaxUploadBytes + uploadFormOverhead
	if c.Request.ContentLength > bodyLimit {
		h.uploadTooLarge(c)
		return
	}
	// Stops reading mid-stream so oversized bodies never reach temp files.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

	header, err := c.FormFile("image")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.uploadTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image file provided"})
		return
	}
	if header.Size > h.opts.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}

	f, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.opts.MaxUploadBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	if int64(len(data)) > h.opts.MaxUploadBytes {
		h.uploadTooLarge(c)
		return
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "only image files are accepted"})
		return
	}

	original := filepath.Base(header.Filename)
	report := &models.Report{
		Filename:         fmt.Sprintf("%d_%s", time.Now().UnixMilli(), original),
		OriginalFilename: original,
		MimeType:         mime.String(),
		FileSize:         int64(len(data)),
		Description:      strings.TrimSpace(c.PostForm("description")),
	}

	lat, lng, err := parseLocation(c.PostForm("latitude"), c.PostForm("longitude"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	report.Latitude, report.Longitude = lat, lng

	if name := strings.TrimSpace(c.PostForm("category")); name != "" {
		cat, err := h.categories.FindCategoryByName(c.Request.Context(), name)
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category %q", name)})
			return
		}
		if err != nil {
			respondError(c, err, "", "failed to upload image")
			return
		}
		report.CategoryID = &cat.ID
		report.CategoryNameEn = cat.NameEn
		report.CategoryNameSv = cat.NameSv
	}

	if _, err := h.reports.Add(c.Request.Context(), report, data); err != nil {
		respondError(c, err, "", "failed to upload image")
		return
	}

	slog.Info("report uploaded",
		"id", report.ID,
		"filename", report.Filename,
		"located", report.HasLocation(),
		"request_id", requestID(c),
	)

	c.JSON(http.StatusCreated, gin.H{
		"message": "image uploaded successfully",
		"image":   toReportResponse(report),
	})
}

func (h *Handler) uploadTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": fmt.Sprintf("image exceeds %d bytes", h.opts.MaxUploadBytes),
	})
}

// parseLocation returns nil coordinates unless both values are given. When
// both are given they must be finite and within range.
func parseLocation(rawLat, rawLng string) (*float64, *float64, error) {
	rawLat, rawLng = strings.TrimSpace(rawLat), strings.TrimSpace(rawLng)
	if rawLat == "" || rawLng == "" {
		return nil, nil, nil
	}

	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return nil, nil, fmt.Errorf("invalid latitude %q", rawLat)
	}
	lng, err := strconv.ParseFloat(rawLng, 64)
	if err != nil || math.IsNaN(lng) || lng < -180 || lng > 180 {
		return nil, nil, fmt.Errorf("invalid longitude %q", rawLng)
	}
	return &lat, &lng, nil
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.reports.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err, "", "failed to retrieve statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) getImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "image not found", "failed to retrieve image")
		return
	}
	c.JSON(http.StatusOK, toReportResponse(report))
}

func (h *Handler) getImageFile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	img, err := h.reports.GetImage(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "image not found", "failed to retrieve image file")
		return
	}
	writeImage(c, img)
}

func (h *Handler) getImageByFilename(c *gin.Context) {
	img, err := h.reports.GetImageByFilename(c.Request.Context(), c.Param("filename"))
	if err != nil {
		respondError(c, err, "image not found", "failed to retrieve image file")
		return
	}

	// Stored filenames carry an upload timestamp and never change.
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	writeImage(c, img)
}

func writeImage(c *gin.Context, img *models.ReportImage) {
	c.Header("Content-Length", strconv.Itoa(len(img.Data)))
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", img.OriginalFilename))
	c.Data(http.StatusOK, img.MimeType, img.Data)
}

func (h *Handler) getImageQR(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	size := defaultQRSize
	if s := c.Query("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < minQRSize || v > maxQRSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": fmt.Sprintf("size must be between %d and %d", minQRSize, maxQRSize),
			})
			return
		}
		size = v
	}

	if _, err := h.reports.GetByID(c.Request.Context(), id); err != nil {
		respondError(c, err, "image not found", "failed to generate QR code")
		return
	}

	link := fmt.Sprintf("%s/api/images/%d", strings.TrimRight(h.opts.PublicBaseURL, "/"), id)
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		respondError(c, err, "", "failed to generate QR code")
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handler) deleteImage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	deleted, err := h.reports.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "image not found", "failed to delete image")
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}

	slog.Info("report deleted", "id", id, "request_id", requestID(c))
	c.JSON(http.StatusOK, gin.H{"message": "image deleted successfully"})
}
