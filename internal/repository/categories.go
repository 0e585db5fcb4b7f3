package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mr1hm/go-city-report/internal/models"
)

var defaultCategories = []models.Category{
	{NameEn: "Pothole", NameSv: "Potthål", DescriptionEn: "Damaged road or cycle path surface", DescriptionSv: "Skadad vägbana eller cykelbana"},
	{NameEn: "Streetlight", NameSv: "Gatubelysning", DescriptionEn: "Broken or flickering street lighting", DescriptionSv: "Trasig eller blinkande gatubelysning"},
	{NameEn: "Graffiti", NameSv: "Klotter", DescriptionEn: "Graffiti or unwanted posters", DescriptionSv: "Klotter eller oönskade affischer"},
	{NameEn: "Litter", NameSv: "Nedskräpning", DescriptionEn: "Litter or overflowing bins", DescriptionSv: "Skräp eller överfulla papperskorgar"},
	{NameEn: "Playground", NameSv: "Lekplats", DescriptionEn: "Damaged playground equipment", DescriptionSv: "Skadad lekutrustning"},
	{NameEn: "Park", NameSv: "Park", DescriptionEn: "Trees, lawns and park furniture", DescriptionSv: "Träd, gräsmattor och parkmöbler"},
	{NameEn: "Traffic sign", NameSv: "Trafikskylt", DescriptionEn: "Missing or damaged traffic sign", DescriptionSv: "Saknad eller skadad trafikskylt"},
	{NameEn: "Snow and ice", NameSv: "Snö och is", DescriptionEn: "Snow clearing or gritting needed", DescriptionSv: "Snöröjning eller sandning behövs"},
	{NameEn: "Abandoned bicycle", NameSv: "Övergiven cykel", DescriptionEn: "Abandoned or wrecked bicycle", DescriptionSv: "Övergiven eller skrotad cykel"},
	{NameEn: "Other", NameSv: "Övrigt", DescriptionEn: "Anything else in streets, squares and parks", DescriptionSv: "Övrigt på gator, torg och i parker"},
}

func (s *DB) seedCategories(ctx context.Context) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO categories (name_en, name_sv, description_en, description_sv, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	now := time.Now().UTC()
	for _, c := range defaultCategories {
		if _, err := tx.ExecContext(ctx, query, c.NameEn, c.NameSv, c.DescriptionEn, c.DescriptionSv, now); err != nil {
			return fmt.Errorf("inserting category %q: %w", c.NameEn, err)
		}
	}
	return tx.Commit()
}

const categoryColumns = `id, name_en, name_sv, description_en, description_sv, created_at`

func (s *DB) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name_en ASC`)
	if err != nil {
		return nil, fmt.Errorf("error querying categories: %w", err)
	}
	defer rows.Close()

	categories := make([]models.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning category: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (s *DB) GetCategory(ctx context.Context, id int64) (*models.Category, error) {
	query := s.rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`)
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting category %d: %w", id, err)
	}
	return c, nil
}

func (s *DB) FindCategoryByName(ctx context.Context, name string) (*models.Category, error) {
	query := s.rebind(`SELECT ` + categoryColumns + ` FROM categories WHERE name_en = ? OR name_sv = ? LIMIT 1`)
	c, err := scanCategory(s.db.QueryRowContext(ctx, query, name, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding category %q: %w", name, err)
	}
	return c, nil
}

func scanCategory(row rowScanner) (*models.Category, error) {
	var (
		c      models.Category
		descEn sql.NullString
		descSv sql.NullString
	)
	if err := row.Scan(&c.ID, &c.NameEn, &c.NameSv, &descEn, &descSv, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.DescriptionEn = descEn.String
	c.DescriptionSv = descSv.String
	return &c, nil
}
