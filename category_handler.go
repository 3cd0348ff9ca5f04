package main

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/mappers"
	"liontech/model"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	SortOrder   int    `json:"sortOrder"`
}

func (req *categoryRequest) normalize() bool {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Slug = mappers.Slugify(req.Slug)
	if req.Slug == "" {
		req.Slug = mappers.Slugify(req.Name)
	}
	return req.Name != "" && req.Slug != ""
}

// ListCategoriesHandler returns every category ordered for display. It
// serves both the storefront and the dashboard.
func ListCategoriesHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		categories, err := database.GetAllCategories(r.Context(), db)
		if err != nil {
			log.Error("list categories failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar categorias.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, categories)
	}
}

// CreateCategoryHandler creates a category. The slug defaults to the
// folded name.
func CreateCategoryHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if !req.normalize() {
			httpx.WriteError(w, "Informe o nome da categoria.", http.StatusBadRequest)
			return
		}
		c := &model.Category{
			ID:          uuid.NewString(),
			Name:        req.Name,
			Slug:        req.Slug,
			Description: req.Description,
			SortOrder:   req.SortOrder,
		}
		if err := database.CreateCategory(r.Context(), db, c); err != nil {
			if database.IsUniqueViolation(err) {
				httpx.WriteError(w, "Já existe uma categoria com este nome.", http.StatusConflict)
				return
			}
			log.Error("create category failed", zap.String("slug", c.Slug), zap.Error(err))
			httpx.WriteError(w, "Falha ao criar a categoria.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, c)
	}
}

// UpdateCategoryHandler handles PUT /api/admin/categories/{id}.
func UpdateCategoryHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req categoryRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if !req.normalize() {
			httpx.WriteError(w, "Informe o nome da categoria.", http.StatusBadRequest)
			return
		}
		c, err := database.GetCategoryByID(r.Context(), db, mux.Vars(r)["id"])
		if err != nil {
			writeCategoryError(w, err, log)
			return
		}
		c.Name, c.Slug, c.Description, c.SortOrder = req.Name, req.Slug, req.Description, req.SortOrder
		if err := database.UpdateCategory(r.Context(), db, c); err != nil {
			if database.IsUniqueViolation(err) {
				httpx.WriteError(w, "Já existe uma categoria com este nome.", http.StatusConflict)
				return
			}
			writeCategoryError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, c)
	}
}

// DeleteCategoryHandler refuses to delete categories that still have
// products.
func DeleteCategoryHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		n, err := database.CountProductsInCategory(r.Context(), db, id)
		if err != nil {
			writeCategoryError(w, err, log)
			return
		}
		if n > 0 {
			httpx.WriteError(w, "A categoria possui produtos e não pode ser excluída.", http.StatusConflict)
			return
		}
		if err := database.DeleteCategory(r.Context(), db, id); err != nil {
			writeCategoryError(w, err, log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeCategoryError(w http.ResponseWriter, err error, log *zap.Logger) {
	if database.IsNotFound(err) {
		httpx.WriteError(w, "Categoria não encontrada.", http.StatusNotFound)
		return
	}
	log.Error("category request failed", zap.Error(err))
	httpx.WriteError(w, "Falha ao processar a categoria.", http.StatusInternalServerError)
}
