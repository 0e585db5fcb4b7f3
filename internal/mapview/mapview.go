// Package mapview decides where the map opens and which pins it shows.
package mapview

import (
	"context"
	"fmt"

	"github.com/golang/geo/s2"

	"github.com/mr1hm/go-city-report/internal/cluster"
	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

const (
	ZoomUser    = 15
	ZoomMarkers = 12
	ZoomDefault = 10

	StatusUser    = "user"
	StatusMarkers = "markers"
	StatusDefault = "default"

	earthRadiusMeters = 6371000.0
)

type View struct {
	Center         models.Coordinates `json:"center"`
	Zoom           int                `json:"zoom"`
	LocationStatus string             `json:"locationStatus"`
	// SpreadMeters is the distance from the center to the farthest marker.
	SpreadMeters float64 `json:"spreadMeters"`
}

// ResolveCenter picks the initial map view. A user location wins, then the
// mean of the displayed marker positions, then the fallback.
func ResolveCenter(user *models.Coordinates, markers []cluster.DisplayMarker, fallback models.Coordinates) View {
	var v View
	switch {
	case user != nil:
		v = View{Center: *user, Zoom: ZoomUser, LocationStatus: StatusUser}
	case len(markers) > 0:
		var sumLat, sumLng float64
		for _, m := range markers {
			sumLat += m.Latitude
			sumLng += m.Longitude
		}
		n := float64(len(markers))
		v = View{
			Center:         models.Coordinates{Latitude: sumLat / n, Longitude: sumLng / n},
			Zoom:           ZoomMarkers,
			LocationStatus: StatusMarkers,
		}
	default:
		v = View{Center: fallback, Zoom: ZoomDefault, LocationStatus: StatusDefault}
	}

	v.SpreadMeters = spread(v.Center, markers)
	return v
}

func spread(center models.Coordinates, markers []cluster.DisplayMarker) float64 {
	c := s2.LatLngFromDegrees(center.Latitude, center.Longitude)
	var max float64
	for _, m := range markers {
		d := c.Distance(s2.LatLngFromDegrees(m.Latitude, m.Longitude)).Radians() * earthRadiusMeters
		if d > max {
			max = d
		}
	}
	return max
}

type MapData struct {
	View
	Markers []cluster.DisplayMarker `json:"markers"`
	Total   int                     `json:"total"`
}

type Service struct {
	repo     repository.GeoRepository
	fallback models.Coordinates
}

func NewService(repo repository.GeoRepository, fallback models.Coordinates) *Service {
	return &Service{repo: repo, fallback: fallback}
}

// MapData loads every located report, separates co-located pins and resolves
// the view. user may be nil.
func (s *Service) MapData(ctx context.Context, user *models.Coordinates) (*MapData, error) {
	reports, err := s.repo.ListWithCoordinates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list located reports: %w", err)
	}

	markers := cluster.GroupAndOffsetMarkers(cluster.MarkersFromReports(reports))
	return &MapData{
		View:    ResolveCenter(user, markers, s.fallback),
		Markers: markers,
		Total:   len(markers),
	}, nil
}
