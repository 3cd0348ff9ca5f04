package product

import (
	"bytes"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/config"
	"liontech/database"
	"liontech/httpx"
	"liontech/mappers"
	"liontech/model"
	"liontech/parsers"
	"liontech/storage"
)

const (
	maxImageSize  = 5 << 20
	maxImportSize = 10 << 20
	storefrontMax = 48
)

var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func userID(r *http.Request) string {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return ""
}

func writeProductError(w http.ResponseWriter, err error, log *zap.Logger) {
	var inErr *InputError
	switch {
	case errors.As(err, &inErr):
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"message": inErr.Message, "field": inErr.Field})
	case errors.Is(err, ErrDuplicate):
		httpx.WriteError(w, "Já existe um produto com este SKU ou nome.", http.StatusConflict)
	case errors.Is(err, ErrUnknownCategory):
		httpx.WriteError(w, "Categoria não encontrada.", http.StatusBadRequest)
	case database.IsNotFound(err):
		httpx.WriteError(w, "Produto não encontrado.", http.StatusNotFound)
	default:
		log.Error("product request failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao processar o produto.", http.StatusInternalServerError)
	}
}

func listProducts(w http.ResponseWriter, r *http.Request, db *sqlx.DB, f model.ProductFilters, page httpx.Page,
	s config.Settings, url mappers.URLFunc, log *zap.Logger) {
	f.Limit, f.Offset = page.PerPage, page.Offset()
	products, err := database.GetFilteredProducts(r.Context(), db, f)
	if err != nil {
		log.Error("list products failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao listar produtos.", http.StatusInternalServerError)
		return
	}
	total, err := database.CountFilteredProducts(r.Context(), db, f)
	if err != nil {
		log.Error("count products failed", zap.Error(err))
		httpx.WriteError(w, "Falha ao listar produtos.", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, httpx.Paged{
		Items:   mappers.ToProductViews(products, s.LowStockThreshold, url),
		Total:   total,
		Page:    page.Page,
		PerPage: page.PerPage,
	})
}

// ListHandler handles GET /api/products?category=&q=&featured=&page=&per_page=.
// Only active products are listed.
func ListHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := model.ProductFilters{
			CategorySlug: q.Get("category"),
			Query:        q.Get("q"),
			FeaturedOnly: httpx.ParseBool(q.Get("featured")),
			ActiveOnly:   true,
		}
		listProducts(w, r, db, f, httpx.ParsePage(r, 24, storefrontMax), settings(), url, log)
	}
}

// AdminListHandler handles GET /api/admin/products, inactive products
// included.
func AdminListHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := model.ProductFilters{
			CategorySlug: q.Get("category"),
			Query:        q.Get("q"),
			ActiveOnly:   httpx.ParseBool(q.Get("active")),
		}
		listProducts(w, r, db, f, httpx.ParsePage(r, 50, 200), settings(), url, log)
	}
}

// GetBySlugHandler handles GET /api/products/{slug}.
func GetBySlugHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := database.GetProductBySlug(r.Context(), db, mux.Vars(r)["slug"])
		if err == nil && !p.Active {
			err = sql.ErrNoRows
		}
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, mappers.ToProductView(*p, settings().LowStockThreshold, url))
	}
}

// AdminGetHandler handles GET /api/admin/products/{id}.
func AdminGetHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := database.GetProductByID(r.Context(), db, mux.Vars(r)["id"])
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, mappers.ToProductView(*p, settings().LowStockThreshold, url))
	}
}

// CreateHandler handles POST /api/admin/products.
func CreateHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ProductInput
		if err := httpx.DecodeJSON(w, r, &in); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		p, err := Create(r.Context(), db, in, userID(r))
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		row, err := database.GetProductByID(r.Context(), db, p.ID)
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		log.Info("product created", zap.String("sku", p.SKU), zap.Int("stock", p.Stock))
		httpx.WriteJSON(w, http.StatusCreated, mappers.ToProductView(*row, settings().LowStockThreshold, url))
	}
}

// UpdateHandler handles PUT /api/admin/products/{id}.
func UpdateHandler(db *sqlx.DB, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.ProductInput
		if err := httpx.DecodeJSON(w, r, &in); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		row, err := Update(r.Context(), db, mux.Vars(r)["id"], in)
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, mappers.ToProductView(*row, settings().LowStockThreshold, url))
	}
}

// DeleteHandler handles DELETE /api/admin/products/{id}. Products with
// order history are deactivated instead of removed.
func DeleteHandler(db *sqlx.DB, store storage.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, hard, err := Delete(r.Context(), db, mux.Vars(r)["id"])
		if err != nil {
			writeProductError(w, err, log)
			return
		}
		if !hard {
			httpx.WriteMessage(w, "O produto possui pedidos e foi desativado.")
			return
		}
		if row.ImageKey != "" && store != nil {
			if err := store.Delete(r.Context(), row.ImageKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Warn("failed to delete product image", zap.String("key", row.ImageKey), zap.Error(err))
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// UploadImageHandler handles POST /api/admin/products/{id}/image with a
// multipart "image" field. The previous image is removed best effort.
func UploadImageHandler(db *sqlx.DB, store storage.Store, settings func() config.Settings, url mappers.URLFunc, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		p, err := database.GetProductByID(r.Context(), db, id)
		if err != nil {
			writeProductError(w, err, log)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxImageSize+1<<20)
		file, header, err := r.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpx.WriteError(w, "A imagem deve ter no máximo 5 MB.", http.StatusRequestEntityTooLarge)
				return
			}
			httpx.WriteError(w, "Envie a imagem no campo \"image\".", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Size > maxImageSize {
			httpx.WriteError(w, "A imagem deve ter no máximo 5 MB.", http.StatusRequestEntityTooLarge)
			return
		}
		data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
		if err != nil {
			httpx.WriteError(w, "Falha ao ler a imagem.", http.StatusBadRequest)
			return
		}
		if len(data) > maxImageSize {
			httpx.WriteError(w, "A imagem deve ter no máximo 5 MB.", http.StatusRequestEntityTooLarge)
			return
		}
		contentType := http.DetectContentType(data)
		ext, ok := imageTypes[contentType]
		if !ok {
			httpx.WriteError(w, "Formato de imagem não suportado (use JPG, PNG ou WebP).", http.StatusUnsupportedMediaType)
			return
		}

		key := path.Join("products", id, uuid.NewString()+ext)
		if err := store.Put(r.Context(), key, contentType, bytes.NewReader(data)); err != nil {
			log.Error("store product image failed", zap.String("key", key), zap.Error(err))
			httpx.WriteError(w, "Falha ao salvar a imagem.", http.StatusInternalServerError)
			return
		}
		if err := database.UpdateProductImage(r.Context(), db, id, key); err != nil {
			writeProductError(w, err, log)
			return
		}
		if old := p.ImageKey; old != "" && old != key {
			if err := store.Delete(r.Context(), old); err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Warn("failed to delete previous product image", zap.String("key", old), zap.Error(err))
			}
		}
		p.ImageKey = key
		httpx.WriteJSON(w, http.StatusOK, mappers.ToProductView(*p, settings().LowStockThreshold, url))
	}
}

// ImportHandler handles POST /api/admin/products/import with a multipart
// "file" and an optional "encoding".
func ImportHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
		file, _, err := r.FormFile("file")
		if err != nil {
			httpx.WriteError(w, "Falha ao ler o arquivo CSV.", http.StatusBadRequest)
			return
		}
		defer file.Close()

		res, err := ImportCSV(r.Context(), db, file, r.FormValue("encoding"), userID(r), log)
		if err != nil {
			if errors.Is(err, parsers.ErrUnsupportedEncoding) {
				httpx.WriteError(w, "Codificação de arquivo não suportada.", http.StatusBadRequest)
				return
			}
			log.Error("product import failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao importar o catálogo: "+err.Error(), http.StatusBadRequest)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, res)
	}
}

// ExportHandler handles GET /api/admin/products/export.
func ExportHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := database.GetAllProducts(r.Context(), db)
		if err != nil {
			log.Error("export products failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao exportar produtos.", http.StatusInternalServerError)
			return
		}
		cw := httpx.StartCSV(w, "produtos-"+time.Now().Format("20060102")+".csv")
		if err := WriteCSV(cw, products); err != nil {
			log.Error("write product csv failed", zap.Error(err))
		}
	}
}
