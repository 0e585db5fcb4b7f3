package models

import (
	"math"
	"time"
)

// Report is a citizen fault report: a photo plus optional location and category.
type Report struct {
	ID               int64
	Filename         string // "<unixmillis>_<original>", unique
	OriginalFilename string
	MimeType         string
	FileSize         int64
	Latitude         *float64 // nil when the report has no location
	Longitude        *float64
	CategoryID       *int64
	CategoryNameEn   string // joined from categories, empty when uncategorised
	CategoryNameSv   string
	Description      string
	UploadTimestamp  time.Time
}

// ReportImage is the stored photo blob of a report.
type ReportImage struct {
	Filename         string
	OriginalFilename string
	MimeType         string
	FileSize         int64
	Data             []byte
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// HasLocation reports whether both coordinates are present and finite.
func (r *Report) HasLocation() bool {
	if r.Latitude == nil || r.Longitude == nil {
		return false
	}
	return isFinite(*r.Latitude) && isFinite(*r.Longitude)
}

// Coordinates returns the report location. Callers check HasLocation first.
func (r *Report) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  *r.Latitude,
		Longitude: *r.Longitude,
	}
}

// Title is the label shown on a map pin.
func (r *Report) Title() string {
	if r.CategoryNameEn != "" {
		return r.CategoryNameEn
	}
	if r.OriginalFilename != "" {
		return r.OriginalFilename
	}
	return r.Filename
}

type Stats struct {
	TotalImages           int64 `json:"totalImages"`
	ImagesWithCoordinates int64 `json:"imagesWithCoordinates"`
	AvgFileSize           int64 `json:"avgFileSize"`
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
