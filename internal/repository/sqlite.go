package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DB is the SQL-backed store for reports and categories. The same queries run
// on SQLite and PostgreSQL; placeholders are written as ? and rebound for pgx.
type DB struct {
	db     *sql.DB
	driver string
}

func NewSQLiteDB(path string) (*DB, error) {
	return Open(DriverSQLite, path)
}

func Open(driver, dsn string) (*DB, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection: keeps :memory: databases shared and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &DB{
		db:     db,
		driver: driver,
	}
	if driver == DriverSQLite {
		if err := s.tuneSQLite(); err != nil {
			db.Close()
			return nil, fmt.Errorf("error while tuning sqlite: %w", err)
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}
	if err := s.seedCategories(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while seeding categories: %w", err)
	}

	slog.Info("database ready", "driver", driver)
	return s, nil
}

func (s *DB) tuneSQLite() error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *DB) migrate() error {
	idColumn, blobType, timeType := "INTEGER PRIMARY KEY AUTOINCREMENT", "BLOB", "DATETIME"
	if s.driver == DriverPostgres {
		idColumn, blobType, timeType = "BIGSERIAL PRIMARY KEY", "BYTEA", "TIMESTAMPTZ"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS categories (
			id %s,
			name_en TEXT NOT NULL UNIQUE,
			name_sv TEXT NOT NULL UNIQUE,
			description_en TEXT,
			description_sv TEXT,
			created_at %s NOT NULL
		)`, idColumn, timeType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS images (
			id %s,
			filename TEXT NOT NULL UNIQUE,
			original_filename TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			image_data %s NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			category_id BIGINT REFERENCES categories(id) ON DELETE SET NULL,
			description TEXT,
			upload_timestamp %s NOT NULL
		)`, idColumn, blobType, timeType),
		`CREATE INDEX IF NOT EXISTS idx_images_upload_timestamp ON images(upload_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_images_location ON images(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_images_category ON images(category_id)`,
	}

	// pgx's simple protocol does not accept several statements per Exec.
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (s *DB) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *DB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *DB) Close() error {
	return s.db.Close()
}
