package api

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mr1hm/go-city-report/internal/models"
)

// toGeoJSON turns located reports into Point features. Reports without a
// location are skipped.
func toGeoJSON(reports []models.Report) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i := range reports {
		r := &reports[i]
		if !r.HasLocation() {
			continue
		}

		f := geojson.NewFeature(orb.Point{*r.Longitude, *r.Latitude})
		f.ID = r.ID
		f.Properties["id"] = r.ID
		f.Properties["title"] = r.Title()
		f.Properties["filename"] = r.Filename
		f.Properties["uploadTimestamp"] = r.UploadTimestamp
		if r.CategoryID != nil {
			f.Properties["categoryId"] = *r.CategoryID
			f.Properties["category"] = r.CategoryNameEn
		}
		if r.Description != "" {
			f.Properties["description"] = r.Description
		}
		fc.Append(f)
	}

	return fc
}
