package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-city-report/internal/heatmap"
)

type coordinatePoint struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Count int     `json:"count"`
}

type boundsPoint struct {
	ID              int64     `json:"id"`
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Filename        string    `json:"filename"`
	UploadTimestamp time.Time `json:"uploadTimestamp"`
}

func (h *Handler) coordinates(c *gin.Context) {
	reports, err := h.heatmap.Coordinates(c.Request.Context())
	if err != nil {
		respondError(c, err, "", "failed to retrieve coordinates")
		return
	}

	points := make([]coordinatePoint, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if !r.HasLocation() {
			continue
		}
		points = append(points, coordinatePoint{Lat: *r.Latitude, Lng: *r.Longitude, Count: 1})
	}

	c.JSON(http.StatusOK, gin.H{
		"points": points,
		"total":  len(points),
	})
}

func (h *Handler) bounds(c *gin.Context) {
	var q heatmap.BoundsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid bounds parameters"})
		return
	}

	reports, bounds, err := h.heatmap.FindByBounds(c.Request.Context(), q)
	if err != nil {
		respondError(c, err, "", "failed to retrieve coordinates for bounds")
		return
	}

	points := make([]boundsPoint, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if !r.HasLocation() {
			continue
		}
		points = append(points, boundsPoint{
			ID:              r.ID,
			Lat:             *r.Latitude,
			Lng:             *r.Longitude,
			Filename:        r.Filename,
			UploadTimestamp: r.UploadTimestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"points": points,
		"bounds": bounds,
		"total":  len(points),
	})
}

func (h *Handler) density(c *gin.Context) {
	d, err := h.heatmap.Density(c.Request.Context(), heatmap.ParsePrecision(c.Query("precision")))
	if err != nil {
		respondError(c, err, "", "failed to retrieve density data")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"points":      d.Cells,
		"precision":   d.Precision,
		"total":       len(d.Cells),
		"totalImages": d.TotalReports,
	})
}

func (h *Handler) geojson(c *gin.Context) {
	reports, err := h.heatmap.Coordinates(c.Request.Context())
	if err != nil {
		respondError(c, err, "", "failed to retrieve reports")
		return
	}

	data, err := toGeoJSON(reports).MarshalJSON()
	if err != nil {
		respondError(c, err, "", "failed to encode reports")
		return
	}
	c.Data(http.StatusOK, "application/geo+json", data)
}
