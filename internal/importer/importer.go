// Package importer bulk-loads reports from a GeoJSON FeatureCollection.
//
// Each Point feature names an image file relative to the collection and may
// carry category, description and uploadTimestamp (RFC3339) properties.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mr1hm/go-city-report/internal/models"
	"github.com/mr1hm/go-city-report/internal/repository"
	"github.com/mr1hm/go-city-report/internal/worker"
)

var ErrNotImage = errors.New("file is not an image")

type Options struct {
	Workers    int
	BufferSize int
	MaxBytes   int64
}

type Result struct {
	Total    int
	Imported int
	Failed   int
	Skipped  int // features without Point geometry or image property
}

type Importer struct {
	reports    repository.ReportRepository
	categories repository.CategoryRepository
	opts       Options
}

type job struct {
	index     int
	point     orb.Point
	props     geojson.Properties
	baseDir   string
	startedAt time.Time
}

func New(reports repository.ReportRepository, categories repository.CategoryRepository, opts Options) *Importer {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 50 << 20
	}
	return &Importer{
		reports:    reports,
		categories: categories,
		opts:       opts,
	}
}

func (im *Importer) Run(ctx context.Context, path string) (Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("error reading %s: %w", path, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return Result{}, fmt.Errorf("error parsing %s: %w", path, err)
	}

	res := Result{Total: len(fc.Features)}
	baseDir := filepath.Dir(path)
	startedAt := time.Now().UTC()

	pool := worker.NewWorkerPool(im.opts.Workers, im.opts.BufferSize, im.process)
	pool.OnError(func(j job, err error) {
		slog.Warn("import failed",
			"feature", j.index,
			"image", j.props.MustString("image", ""),
			"error", err,
		)
	})
	pool.Start(ctx)

	var submitErr error
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok || f.Properties.MustString("image", "") == "" {
			slog.Warn("skipping feature", "feature", i, "geometry", geometryType(f.Geometry))
			res.Skipped++
			continue
		}

		j := job{index: i, point: pt, props: f.Properties, baseDir: baseDir, startedAt: startedAt}
		if submitErr = pool.Submit(ctx, j); submitErr != nil {
			break
		}
	}
	pool.Stop()

	res.Imported = int(pool.Succeeded())
	res.Failed = int(pool.Failed())

	slog.Info("import finished",
		"path", path,
		"total", res.Total,
		"imported", res.Imported,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)

	if submitErr != nil {
		return res, fmt.Errorf("import interrupted: %w", submitErr)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("import interrupted: %w", err)
	}
	return res, nil
}

func (im *Importer) process(ctx context.Context, j job) error {
	lat, lng := j.point.Lat(), j.point.Lon()
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("coordinates out of range: %f,%f", lat, lng)
	}

	imagePath := j.props.MustString("image", "")
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(j.baseDir, imagePath)
	}

	info, err := os.Stat(imagePath)
	if err != nil {
		return fmt.Errorf("error reading image: %w", err)
	}
	if info.Size() > im.opts.MaxBytes {
		return fmt.Errorf("image %s exceeds %d bytes", imagePath, im.opts.MaxBytes)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("error reading image: %w", err)
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return fmt.Errorf("%s (%s): %w", imagePath, mime.String(), ErrNotImage)
	}

	// Features without a timestamp keep file order, one millisecond apart.
	ts := j.startedAt.Add(time.Duration(j.index) * time.Millisecond)
	if raw := j.props.MustString("uploadTimestamp", ""); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return fmt.Errorf("invalid uploadTimestamp %q: %w", raw, err)
		}
		ts = parsed.UTC()
	}

	original := filepath.Base(imagePath)
	report := &models.Report{
		Filename:         fmt.Sprintf("%d_%s", ts.UnixMilli(), original),
		OriginalFilename: original,
		MimeType:         mime.String(),
		FileSize:         int64(len(data)),
		Latitude:         &lat,
		Longitude:        &lng,
		Description:      strings.TrimSpace(j.props.MustString("description", "")),
		UploadTimestamp:  ts,
	}

	if name := strings.TrimSpace(j.props.MustString("category", "")); name != "" {
		cat, err := im.categories.FindCategoryByName(ctx, name)
		if err != nil {
			return fmt.Errorf("error resolving category %q: %w", name, err)
		}
		report.CategoryID = &cat.ID
	}

	if _, err := im.reports.Add(ctx, report, data); err != nil {
		return err
	}

	slog.Debug("imported report", "id", report.ID, "filename", report.Filename)
	return nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "none"
	}
	return g.GeoJSONType()
}
