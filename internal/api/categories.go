package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mr1hm/go-city-report/internal/models"
)

type categoryResponse struct {
	ID            int64  `json:"id"`
	NameEn        string `json:"nameEn"`
	NameSv        string `json:"nameSv"`
	DescriptionEn string `json:"descriptionEn"`
	DescriptionSv string `json:"descriptionSv"`
}

func toCategoryResponse(cat *models.Category) categoryResponse {
	return categoryResponse{
		ID:            cat.ID,
		NameEn:        cat.NameEn,
		NameSv:        cat.NameSv,
		DescriptionEn: cat.DescriptionEn,
		DescriptionSv: cat.DescriptionSv,
	}
}

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.categories.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "", "failed to retrieve categories")
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for i := range cats {
		out = append(out, toCategoryResponse(&cats[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": out,
		"total":      len(out),
	})
}

func (h *Handler) getCategory(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	cat, err := h.categories.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "category not found", "failed to retrieve category")
		return
	}
	c.JSON(http.StatusOK, toCategoryResponse(cat))
}
