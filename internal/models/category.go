package models

import "time"

// Category is a bilingual (English/Swedish) report category.
type Category struct {
	ID            int64
	NameEn        string
	NameSv        string
	DescriptionEn string
	DescriptionSv string
	CreatedAt     time.Time
}
