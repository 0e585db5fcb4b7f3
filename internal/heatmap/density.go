package heatmap

import (
	"math"
	"strconv"
	"strings"

	"github.com/mr1hm/go-city-report/internal/models"
)

const (
	DefaultPrecision = 0.01 // degrees, about 1.1 km at the equator
	MinPrecision     = 1e-9 // smallest accepted grid step

	// fullIntensityCount is the cell count that maps to intensity 1.0.
	fullIntensityCount = 10
)

type ReportRef struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
}

// DensityCell is one occupied grid cell.
type DensityCell struct {
	Latitude  float64     `json:"lat"`
	Longitude float64     `json:"lng"`
	Count     int         `json:"count"`
	Intensity float64     `json:"intensity"`
	Reports   []ReportRef `json:"-"`
}

type cellKey struct {
	lat, lng float64
}

// ComputeDensity snaps every located report to round(coord/precision)*precision
// and counts occupancy per cell. Cells come out in first-encounter order.
// A precision below MinPrecision or non-finite falls back to DefaultPrecision.
func ComputeDensity(reports []models.Report, precision float64) []DensityCell {
	precision = normalizePrecision(precision)

	index := make(map[cellKey]int)
	cells := make([]DensityCell, 0)

	for i := range reports {
		r := &reports[i]
		if !r.HasLocation() {
			continue
		}

		// +0 folds -0 into the same cell as 0
		gridLat := math.Round(*r.Latitude/precision)*precision + 0
		gridLng := math.Round(*r.Longitude/precision)*precision + 0
		if math.IsInf(gridLat, 0) || math.IsInf(gridLng, 0) {
			continue
		}
		key := cellKey{gridLat, gridLng}

		idx, ok := index[key]
		if !ok {
			idx = len(cells)
			index[key] = idx
			cells = append(cells, DensityCell{Latitude: gridLat, Longitude: gridLng})
		}

		cells[idx].Count++
		cells[idx].Reports = append(cells[idx].Reports, ReportRef{ID: r.ID, Filename: r.Filename})
	}

	for i := range cells {
		cells[i].Intensity = Intensity(cells[i].Count)
	}
	return cells
}

// Intensity normalises a cell count to [0, 1].
func Intensity(count int) float64 {
	return math.Min(float64(count)/fullIntensityCount, 1)
}

// ParsePrecision reads the precision query value. Empty, unparseable or
// out-of-range input yields DefaultPrecision.
func ParsePrecision(raw string) float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return DefaultPrecision
	}
	return normalizePrecision(p)
}

func normalizePrecision(p float64) float64 {
	if !(p >= MinPrecision) || math.IsInf(p, 0) {
		return DefaultPrecision
	}
	return p
}
