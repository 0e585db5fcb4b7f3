package heatmap

import (
	"context"
	"log/slog"

	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
)

// Service answers the geographic read queries behind the heatmap endpoints.
// It keeps no state between calls.
type Service struct {
	repo repository.GeoRepository
}

func NewService(repo repository.GeoRepository) *Service {
	return &Service{repo: repo}
}

// FindByBounds validates the raw window and returns the located reports
// inside it, newest first.
func (s *Service) FindByBounds(ctx context.Context, q BoundsQuery) ([]models.Report, models.Bounds, error) {
	bounds, err := ParseBounds(q)
	if err != nil {
		return nil, models.Bounds{}, err
	}

	reports, err := s.repo.ListByBounds(ctx, bounds)
	if err != nil {
		return nil, bounds, &UpstreamQueryError{Op: "list reports by bounds", Err: err}
	}

	slog.Debug("bounds query", "bounds", bounds, "count", len(reports))
	return reports, bounds, nil
}

// Coordinates returns every located report.
func (s *Service) Coordinates(ctx context.Context) ([]models.Report, error) {
	reports, err := s.repo.ListWithCoordinates(ctx)
	if err != nil {
		return nil, &UpstreamQueryError{Op: "list reports with coordinates", Err: err}
	}
	return reports, nil
}

type Density struct {
	Cells        []DensityCell
	Precision    float64
	TotalReports int
}

func (s *Service) Density(ctx context.Context, precision float64) (*Density, error) {
	reports, err := s.Coordinates(ctx)
	if err != nil {
		return nil, err
	}

	precision = normalizePrecision(precision)
	return &Density{
		Cells:        ComputeDensity(reports, precision),
		Precision:    precision,
		TotalReports: len(reports),
	}, nil
}
