package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-city-report/internal/models"
)

const reportColumns = `
	i.id, i.filename, i.original_filename, i.mime_type, i.file_size,
	i.latitude, i.longitude, i.category_id, i.description, i.upload_timestamp,
	c.name_en, c.name_sv`

const reportFrom = `
	FROM images i
	LEFT JOIN categories c ON i.category_id = c.id`

func (s *DB) Add(ctx context.Context, r *models.Report, data []byte) (int64, error) {
	if r.UploadTimestamp.IsZero() {
		r.UploadTimestamp = time.Now().UTC()
	}
	if r.FileSize == 0 {
		r.FileSize = int64(len(data))
	}

	query := s.rebind(`
		INSERT INTO images (filename, original_filename, mime_type, file_size, image_data,
			latitude, longitude, category_id, description, upload_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`)

	var id int64
	err := s.db.QueryRowContext(ctx, query,
		r.Filename,
		r.OriginalFilename,
		r.MimeType,
		r.FileSize,
		data,
		nullFloat(r.Latitude),
		nullFloat(r.Longitude),
		nullInt(r.CategoryID),
		nullString(r.Description),
		r.UploadTimestamp.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("error inserting report: %w", err)
	}

	r.ID = id
	return id, nil
}

func (s *DB) GetByID(ctx context.Context, id int64) (*models.Report, error) {
	query := s.rebind(`SELECT` + reportColumns + reportFrom + ` WHERE i.id = ?`)

	r, err := scanReport(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting report %d: %w", id, err)
	}
	return r, nil
}

func (s *DB) GetImage(ctx context.Context, id int64) (*models.ReportImage, error) {
	query := s.rebind(`
		SELECT filename, original_filename, mime_type, file_size, image_data
		FROM images WHERE id = ?`)
	return s.getImage(ctx, query, id)
}

func (s *DB) GetImageByFilename(ctx context.Context, filename string) (*models.ReportImage, error) {
	query := s.rebind(`
		SELECT filename, original_filename, mime_type, file_size, image_data
		FROM images WHERE filename = ?`)
	return s.getImage(ctx, query, filename)
}

func (s *DB) getImage(ctx context.Context, query string, arg any) (*models.ReportImage, error) {
	var img models.ReportImage
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&img.Filename,
		&img.OriginalFilename,
		&img.MimeType,
		&img.FileSize,
		&img.Data,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting image %v: %w", arg, err)
	}
	return &img, nil
}

func (s *DB) List(ctx context.Context, opts Filter) ([]models.Report, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := s.rebind(`SELECT` + reportColumns + reportFrom + `
		ORDER BY i.upload_timestamp DESC, i.id DESC
		LIMIT ? OFFSET ?`)
	return s.queryReports(ctx, query, limit, offset)
}

func (s *DB) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM images WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("error deleting report %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListByBounds returns located reports inside b (inclusive). Inverted ranges
// are passed through unchanged and yield no rows.
func (s *DB) ListByBounds(ctx context.Context, b models.Bounds) ([]models.Report, error) {
	query := s.rebind(`SELECT` + reportColumns + reportFrom + `
		WHERE i.latitude BETWEEN ? AND ?
			AND i.longitude BETWEEN ? AND ?
			AND i.latitude IS NOT NULL
			AND i.longitude IS NOT NULL
		ORDER BY i.upload_timestamp DESC`)
	return s.queryReports(ctx, query, b.South, b.North, b.West, b.East)
}

func (s *DB) ListWithCoordinates(ctx context.Context) ([]models.Report, error) {
	query := s.rebind(`SELECT` + reportColumns + reportFrom + `
		WHERE i.latitude IS NOT NULL AND i.longitude IS NOT NULL
		ORDER BY i.upload_timestamp DESC`)
	return s.queryReports(ctx, query)
}

func (s *DB) queryReports(ctx context.Context, query string, args ...any) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying reports: %w", err)
	}
	defer rows.Close()

	reports := make([]models.Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning report: %w", err)
		}
		reports = append(reports, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var (
		r           models.Report
		lat, lng    sql.NullFloat64
		categoryID  sql.NullInt64
		description sql.NullString
		nameEn      sql.NullString
		nameSv      sql.NullString
	)
	err := row.Scan(
		&r.ID,
		&r.Filename,
		&r.OriginalFilename,
		&r.MimeType,
		&r.FileSize,
		&lat,
		&lng,
		&categoryID,
		&description,
		&r.UploadTimestamp,
		&nameEn,
		&nameSv,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid {
		r.Latitude = &lat.Float64
	}
	if lng.Valid {
		r.Longitude = &lng.Float64
	}
	if categoryID.Valid {
		r.CategoryID = &categoryID.Int64
	}
	r.Description = description.String
	r.CategoryNameEn = nameEn.String
	r.CategoryNameSv = nameSv.String
	return &r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
