package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/mr1hm/go-city-report/internal/models"
)

// Stats runs the three summary queries concurrently. On SQLite they share the
// single connection and effectively serialize.
func (s *DB) Stats(ctx context.Context) (*models.Stats, error) {
	var (
		stats models.Stats
		avg   sql.NullFloat64
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM images`,
		).Scan(&stats.TotalImages)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM images WHERE latitude IS NOT NULL AND longitude IS NOT NULL`,
		).Scan(&stats.ImagesWithCoordinates)
	})
	g.Go(func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT AVG(file_size) FROM images`,
		).Scan(&avg)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("error computing stats: %w", err)
	}

	if avg.Valid {
		stats.AvgFileSize = int64(math.Round(avg.Float64))
	}
	return &stats, nil
}
