// Package showcase serves the service offerings and portfolio cases shown
// on the storefront.
package showcase

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/mappers"
	"liontech/model"
	"liontech/money"
)

type serviceView struct {
	model.ServiceOffering
	PriceFrom string `json:"priceFrom,omitempty"`
}

type caseView struct {
	model.Case
	ImageURL string `json:"imageUrl,omitempty"`
}

func toServiceView(s model.ServiceOffering) serviceView {
	v := serviceView{ServiceOffering: s}
	if s.PriceFromCents > 0 {
		v.PriceFrom = money.FormatBRL(s.PriceFromCents)
	}
	return v
}

func toCaseView(c model.Case, url mappers.URLFunc) caseView {
	v := caseView{Case: c}
	if c.ImageKey != "" && url != nil {
		v.ImageURL = url(c.ImageKey)
	}
	return v
}

// ListServicesHandler handles GET /api/services and, with all set, the
// dashboard list including inactive entries.
func ListServicesHandler(db *sqlx.DB, all bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := database.GetServices(r.Context(), db, !all)
		if err != nil {
			log.Error("list services failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar serviços.", http.StatusInternalServerError)
			return
		}
		views := make([]serviceView, 0, len(services))
		for _, s := range services {
			views = append(views, toServiceView(s))
		}
		httpx.WriteJSON(w, http.StatusOK, views)
	}
}

type serviceRequest struct {
	Title          string `json:"title"`
	Slug           string `json:"slug"`
	Summary        string `json:"summary"`
	Body           string `json:"body"`
	Icon           string `json:"icon"`
	PriceFromCents int64  `json:"priceFromCents"`
	SortOrder      int    `json:"sortOrder"`
	Active         bool   `json:"active"`
}

// SaveServiceHandler handles POST /api/admin/services and PUT
// /api/admin/services/{id}.
func SaveServiceHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req serviceRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" || req.PriceFromCents < 0 {
			httpx.WriteError(w, "Informe o título do serviço.", http.StatusBadRequest)
			return
		}
		s := &model.ServiceOffering{ID: uuid.NewString()}
		status := http.StatusCreated
		if id := mux.Vars(r)["id"]; id != "" {
			existing, err := database.GetServiceByID(r.Context(), db, id)
			if err != nil {
				writeNotFoundOr500(w, err, "Serviço não encontrado.", log)
				return
			}
			s, status = existing, http.StatusOK
		}
		s.Title, s.Summary, s.Body, s.Icon = req.Title, req.Summary, req.Body, req.Icon
		s.PriceFromCents, s.SortOrder, s.Active = req.PriceFromCents, req.SortOrder, req.Active
		s.Slug = mappers.Slugify(req.Slug)
		if s.Slug == "" {
			s.Slug = mappers.Slugify(req.Title)
		}
		if err := database.SaveService(r.Context(), db, s); err != nil {
			if database.IsUniqueViolation(err) {
				httpx.WriteError(w, "Já existe um serviço com este endereço.", http.StatusConflict)
				return
			}
			log.Error("save service failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao salvar serviço.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, status, toServiceView(*s))
	}
}

// DeleteServiceHandler handles DELETE /api/admin/services/{id}.
func DeleteServiceHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteService(r.Context(), db, mux.Vars(r)["id"]); err != nil {
			writeNotFoundOr500(w, err, "Serviço não encontrado.", log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListCasesHandler handles GET /api/cases (published only) and the
// dashboard list when all is set.
func ListCasesHandler(db *sqlx.DB, all bool, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cases, err := database.GetCases(r.Context(), db, !all)
		if err != nil {
			log.Error("list cases failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar cases.", http.StatusInternalServerError)
			return
		}
		views := make([]caseView, 0, len(cases))
		for _, c := range cases {
			views = append(views, toCaseView(c, url))
		}
		httpx.WriteJSON(w, http.StatusOK, views)
	}
}

// GetCaseHandler handles GET /api/cases/{slug}. Unpublished cases are not
// found.
func GetCaseHandler(db *sqlx.DB, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := database.GetCaseBySlug(r.Context(), db, mux.Vars(r)["slug"])
		if err != nil {
			writeNotFoundOr500(w, err, "Case não encontrado.", log)
			return
		}
		if !c.Active || c.PublishedAt == nil || c.PublishedAt.After(time.Now()) {
			httpx.WriteError(w, "Case não encontrado.", http.StatusNotFound)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, toCaseView(*c, url))
	}
}

type caseRequest struct {
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Client      string     `json:"client"`
	Summary     string     `json:"summary"`
	Body        string     `json:"body"`
	ImageKey    string     `json:"imageKey"`
	PublishedAt *time.Time `json:"publishedAt"`
	Active      bool       `json:"active"`
}

// SaveCaseHandler handles POST /api/admin/cases and PUT
// /api/admin/cases/{id}.
func SaveCaseHandler(db *sqlx.DB, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req caseRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			httpx.WriteError(w, "Informe o título do case.", http.StatusBadRequest)
			return
		}
		c := &model.Case{ID: uuid.NewString()}
		status := http.StatusCreated
		if id := mux.Vars(r)["id"]; id != "" {
			existing, err := database.GetCaseByID(r.Context(), db, id)
			if err != nil {
				writeNotFoundOr500(w, err, "Case não encontrado.", log)
				return
			}
			c, status = existing, http.StatusOK
		}
		c.Title, c.Client, c.Summary, c.Body, c.ImageKey = req.Title, req.Client, req.Summary, req.Body, req.ImageKey
		c.Active = req.Active
		c.PublishedAt = nil
		if req.PublishedAt != nil {
			t := req.PublishedAt.UTC()
			c.PublishedAt = &t
		}
		c.Slug = mappers.Slugify(req.Slug)
		if c.Slug == "" {
			c.Slug = mappers.Slugify(req.Title)
		}
		if err := database.SaveCase(r.Context(), db, c); err != nil {
			if database.IsUniqueViolation(err) {
				httpx.WriteError(w, "Já existe um case com este endereço.", http.StatusConflict)
				return
			}
			log.Error("save case failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao salvar case.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, status, toCaseView(*c, url))
	}
}

// DeleteCaseHandler handles DELETE /api/admin/cases/{id}.
func DeleteCaseHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := database.DeleteCase(r.Context(), db, mux.Vars(r)["id"]); err != nil {
			writeNotFoundOr500(w, err, "Case não encontrado.", log)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeNotFoundOr500(w http.ResponseWriter, err error, notFound string, log *zap.Logger) {
	if database.IsNotFound(err) {
		httpx.WriteError(w, notFound, http.StatusNotFound)
		return
	}
	log.Error("showcase request failed", zap.Error(err))
	httpx.WriteError(w, "Falha ao processar a requisição.", http.StatusInternalServerError)
}
