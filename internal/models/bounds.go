package models

// Bounds is a rectangular lat/lng window. Inverted ranges are kept as given
// and simply match nothing.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// Contains uses the same inclusive comparison as the SQL BETWEEN filter.
func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.South && lat <= b.North && lng >= b.West && lng <= b.East
}
