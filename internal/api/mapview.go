package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-city-report/internal/models"
)

// mapData serves clustered markers and the initial view. lat and lng are the
// caller's own position and are optional.
func (h *Handler) mapData(c *gin.Context) {
	var user *models.Coordinates
	if c.Query("lat") != "" || c.Query("lng") != "" {
		lat, lng, err := parseLocation(c.Query("lat"), c.Query("lng"))
		if err != nil || lat == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "lat and lng must both be valid coordinates"})
			return
		}
		user = &models.Coordinates{Latitude: *lat, Longitude: *lng}
	}

	data, err := h.maps.MapData(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "", "failed to load map data")
		return
	}
	c.JSON(http.StatusOK, data)
}
