package repository

import (
	"context"
	"errors"

	"github.com/mr1hm/go-city-report/internal/models"
)

var ErrNotFound = errors.New("not found")

type Filter struct {
	Limit  int
	Offset int
}

type ReportRepository interface {
	Add(ctx context.Context, r *models.Report, data []byte) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Report, error)
	GetImage(ctx context.Context, id int64) (*models.ReportImage, error)
	GetImageByFilename(ctx context.Context, filename string) (*models.ReportImage, error)
	List(ctx context.Context, opts Filter) ([]models.Report, error)
	Delete(ctx context.Context, id int64) (bool, error)
	Stats(ctx context.Context) (*models.Stats, error)
	GeoRepository
}

// GeoRepository is the read side consumed by the heatmap and map services.
// Both queries exclude reports without coordinates and order by
// upload_timestamp descending.
type GeoRepository interface {
	ListByBounds(ctx context.Context, b models.Bounds) ([]models.Report, error)
	ListWithCoordinates(ctx context.Context) ([]models.Report, error)
}

type CategoryRepository interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategory(ctx context.Context, id int64) (*models.Category, error)
	// FindCategoryByName matches either the English or the Swedish name.
	FindCategoryByName(ctx context.Context, name string) (*models.Category, error)
}
