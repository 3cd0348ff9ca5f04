package backup

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"liontech/httpx"
	"liontech/storage"
)

const maxUploadSize = 64 << 20

// ListHandler returns the stored backups, newest first.
func ListHandler(runner *Runner, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := runner.List(r.Context())
		if err != nil {
			log.Error("failed to list backups", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar os backups.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, list)
	}
}

// CreateHandler takes a backup now and applies retention.
func CreateHandler(runner *Runner, retention func() int, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, err := runner.Create(r.Context())
		if err != nil {
			httpx.WriteError(w, "Falha ao gerar o backup.", http.StatusInternalServerError)
			return
		}
		if _, err := runner.Prune(r.Context(), retention()); err != nil {
			log.Warn("backup retention failed", zap.Error(err))
		}
		httpx.WriteJSON(w, http.StatusCreated, info)
	}
}

// DownloadHandler streams a stored backup (?key=).
func DownloadHandler(runner *Runner, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		rc, err := runner.Open(r.Context(), key)
		if err != nil {
			writeKeyError(w, log, key, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+path.Base(key)+`"`)
		if _, err := io.Copy(w, rc); err != nil {
			log.Warn("backup download interrupted", zap.String("key", key), zap.Error(err))
		}
	}
}

// DeleteHandler removes a stored backup (?key=).
func DeleteHandler(runner *Runner, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if err := runner.Delete(r.Context(), key); err != nil {
			writeKeyError(w, log, key, err)
			return
		}
		log.Info("backup deleted", zap.String("key", key))
		w.WriteHeader(http.StatusNoContent)
	}
}

// RestoreHandler restores from an uploaded file (multipart field "file")
// or from a stored backup given as {"key": "..."}.
func RestoreHandler(runner *Runner, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			doc *Document
			err error
		)
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
			file, _, ferr := r.FormFile("file")
			if ferr != nil {
				httpx.WriteError(w, "Envie o arquivo de backup no campo \"file\".", http.StatusBadRequest)
				return
			}
			defer file.Close()
			doc, err = runner.RestoreFrom(r.Context(), file)
		} else {
			var req struct {
				Key string `json:"key"`
			}
			if httpx.DecodeJSON(w, r, &req) != nil {
				httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
				return
			}
			doc, err = runner.RestoreKey(r.Context(), req.Key)
		}
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidKey), errors.Is(err, storage.ErrNotFound):
				writeKeyError(w, log, "", err)
			case errors.Is(err, ErrVersion), errors.Is(err, ErrUnknownTable), errors.Is(err, ErrUnknownColumn):
				httpx.WriteError(w, "Arquivo de backup incompatível: "+err.Error(), http.StatusBadRequest)
			case errors.Is(err, ErrMalformed):
				httpx.WriteError(w, "Arquivo de backup inválido.", http.StatusBadRequest)
			default:
				log.Error("restore failed", zap.Error(err))
				httpx.WriteError(w, "Falha ao restaurar o backup.", http.StatusInternalServerError)
			}
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"message":   "Backup restaurado.",
			"createdAt": doc.CreatedAt,
			"rows":      doc.Rows(),
		})
	}
}

func writeKeyError(w http.ResponseWriter, log *zap.Logger, key string, err error) {
	switch {
	case errors.Is(err, ErrInvalidKey):
		httpx.WriteError(w, "Backup inválido.", http.StatusBadRequest)
	case errors.Is(err, storage.ErrNotFound):
		httpx.WriteError(w, "Backup não encontrado.", http.StatusNotFound)
	default:
		log.Error("backup storage error", zap.String("key", key), zap.Error(err))
		httpx.WriteError(w, "Falha ao acessar o backup.", http.StatusInternalServerError)
	}
}
