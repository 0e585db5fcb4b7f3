package heatmap

import (
	"math"
	"strconv"
	"strings"

	"github.com/mr1hm/go-city-report/internal/models"
)

// BoundsQuery holds the raw north/south/east/west query values.
type BoundsQuery struct {
	North string `form:"north"`
	South string `form:"south"`
	East  string `form:"east"`
	West  string `form:"west"`
}

// ParseBounds converts the four raw values. Inverted ranges are returned as
// given.
func ParseBounds(q BoundsQuery) (models.Bounds, error) {
	var b models.Bounds
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"north", q.North, &b.North},
		{"south", q.South, &b.South},
		{"east", q.East, &b.East},
		{"west", q.West, &b.West},
	}

	for _, f := range fields {
		v, err := parseFinite(f.raw)
		if err != nil {
			return models.Bounds{}, &InvalidBoundsError{Field: f.name, Value: f.raw}
		}
		*f.dst = v
	}
	return b, nil
}

func parseFinite(raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, strconv.ErrRange
	}
	return v, nil
}
