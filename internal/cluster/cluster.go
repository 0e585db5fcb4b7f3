// Package cluster keeps map pins for co-located reports distinguishable.
//
// Reports whose planar degree distance to an unconsumed anchor is within
// ProximityThreshold form a group. The anchor keeps its coordinates and every
// other member is shifted OffsetAmount from its own point, spread evenly by
// angle. Stored coordinates are never changed; the offset is display only.
//
// The threshold is in raw degrees with no great-circle correction, so it
// covers less ground east-west as latitude grows. The scan is O(n²), which
// is fine for the tens to low hundreds of pins a map view holds.
package cluster

import (
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/s2"

	"github.com/mr1hm/go-city-report/internal/models"
)

const (
	ProximityThreshold = 0.0001 // degrees, about 11 m at the equator
	OffsetAmount       = 0.0002 // degrees, about 22 m at the equator

	earthRadiusMeters = 6371000.0
)

type Marker struct {
	ID              int64
	Latitude        float64
	Longitude       float64
	Title           string
	Description     string
	Filename        string
	UploadTimestamp time.Time
}

// DisplayMarker is a marker positioned for rendering. ClusterSize and
// ClusterPosition describe its group so renderers need not parse titles.
type DisplayMarker struct {
	ID                int64     `json:"id"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	OriginalLatitude  float64   `json:"originalLatitude"`
	OriginalLongitude float64   `json:"originalLongitude"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	Filename          string    `json:"filename,omitempty"`
	UploadTimestamp   time.Time `json:"uploadTimestamp"`
	ClusterSize       int       `json:"clusterSize"`
	ClusterPosition   int       `json:"clusterPosition"` // 1-based
	OffsetMeters      float64   `json:"offsetMeters"`
}

// GroupAndOffsetMarkers returns one display marker per input marker.
//
// Markers are visited in input order. Each unconsumed marker collects every
// other unconsumed marker within ProximityThreshold of itself (neighbours of
// neighbours are not chased). A group of k is emitted anchor first, then the
// neighbours in input order; member n>1 is placed
// OffsetAmount away from its own stored point at angle (n-2)*2π/(k-1).
// For pairs that puts the second member at angle 0, straight north.
// Output length always equals input length.
//
// Coordinates must be finite; callers drop unlocated reports first.
func GroupAndOffsetMarkers(markers []Marker) []DisplayMarker {
	out := make([]DisplayMarker, 0, len(markers))
	processed := make([]bool, len(markers))

	for i := range markers {
		if processed[i] {
			continue
		}
		processed[i] = true

		group := []int{i}
		for j := range markers {
			if j == i || processed[j] {
				continue
			}
			if planarDistance(markers[i], markers[j]) <= ProximityThreshold {
				group = append(group, j)
			}
		}

		if len(group) == 1 {
			out = append(out, single(markers[i]))
			continue
		}

		k := len(group)
		for n, idx := range group {
			processed[idx] = true

			lat, lng := markers[idx].Latitude, markers[idx].Longitude
			if n > 0 {
				angle := float64(n-1) * 2 * math.Pi / float64(k-1)
				lat += math.Cos(angle) * OffsetAmount
				lng += math.Sin(angle) * OffsetAmount
			}
			out = append(out, member(markers[idx], lat, lng, n+1, k))
		}
	}

	return out
}

func planarDistance(a, b Marker) float64 {
	dLat := a.Latitude - b.Latitude
	dLng := a.Longitude - b.Longitude
	return math.Sqrt(dLat*dLat + dLng*dLng)
}

func single(m Marker) DisplayMarker {
	return DisplayMarker{
		ID:                m.ID,
		Latitude:          m.Latitude,
		Longitude:         m.Longitude,
		OriginalLatitude:  m.Latitude,
		OriginalLongitude: m.Longitude,
		Title:             m.Title,
		Description:       m.Description,
		Filename:          m.Filename,
		UploadTimestamp:   m.UploadTimestamp,
		ClusterSize:       1,
		ClusterPosition:   1,
	}
}

func member(m Marker, lat, lng float64, position, size int) DisplayMarker {
	d := single(m)
	d.Latitude = lat
	d.Longitude = lng
	d.ClusterSize = size
	d.ClusterPosition = position
	d.Title = fmt.Sprintf("%s (%d/%d)", m.Title, position, size)
	d.Description = fmt.Sprintf("%s - Part of %d reports at this location.", m.Description, size)
	d.OffsetMeters = surfaceDistance(m.Latitude, m.Longitude, lat, lng)
	return d
}

func surfaceDistance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// MarkersFromReports converts stored reports to markers, dropping any report
// without a finite location.
func MarkersFromReports(reports []models.Report) []Marker {
	markers := make([]Marker, 0, len(reports))
	for i := range reports {
		r := &reports[i]
		if !r.HasLocation() {
			continue
		}
		markers = append(markers, Marker{
			ID:              r.ID,
			Latitude:        *r.Latitude,
			Longitude:       *r.Longitude,
			Title:           r.Title(),
			Description:     r.Description,
			Filename:        r.Filename,
			UploadTimestamp: r.UploadTimestamp,
		})
	}
	return markers
}
