// Package contact receives the storefront contact form.
package contact

import (
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/realtime"
	"liontech/whatsapp"
)

type submitRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// validate trims the form and returns the customer-facing problem, if any.
func (req *submitRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	switch {
	case req.Name == "" || utf8.RuneCountInString(req.Name) > 120:
		return "Informe seu nome."
	case req.Email == "":
		return "Informe seu e-mail."
	case req.Message == "":
		return "Escreva sua mensagem."
	case utf8.RuneCountInString(req.Message) > 5000:
		return "A mensagem deve ter até 5000 caracteres."
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "E-mail inválido."
	}
	if req.Phone != "" {
		if _, err := whatsapp.NormalizePhone(req.Phone); err != nil {
			return "Telefone inválido."
		}
	}
	if req.Subject == "" {
		req.Subject = "Contato pelo site"
	}
	return ""
}

// SubmitHandler handles POST /api/contact. Rate limiting is applied by the
// router.
func SubmitHandler(db *sqlx.DB, notifier *whatsapp.Notifier, hub *realtime.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if msg := req.validate(); msg != "" {
			httpx.WriteError(w, msg, http.StatusBadRequest)
			return
		}
		m := model.ContactMessage{
			ID:      uuid.NewString(),
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Subject: req.Subject,
			Message: req.Message,
		}
		if err := database.InsertContactMessage(r.Context(), db, &m); err != nil {
			log.Error("save contact message failed", zap.Error(err))
			httpx.WriteError(w, "Não foi possível enviar sua mensagem.", http.StatusInternalServerError)
			return
		}
		notifier.ContactReceived(r.Context(), m)
		if hub != nil {
			hub.Publish(realtime.TopicAdmin, realtime.Event{Type: "contact.created", Data: map[string]string{"id": m.ID, "name": m.Name, "subject": m.Subject}})
		}
		httpx.WriteJSON(w, http.StatusCreated, map[string]string{"message": "Mensagem enviada. Retornaremos em breve."})
	}
}

// ListHandler handles GET /api/admin/contacts?unread=&page=.
func ListHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := httpx.ParsePage(r, 30, 100)
		msgs, err := database.GetContactMessages(r.Context(), db, httpx.ParseBool(r.URL.Query().Get("unread")), page.PerPage, page.Offset())
		if err != nil {
			log.Error("list contact messages failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar mensagens.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, msgs)
	}
}

type readRequest struct {
	Read bool `json:"read"`
}

// MarkReadHandler handles PATCH /api/admin/contacts/{id}.
func MarkReadHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req readRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		if err := database.SetContactMessageRead(r.Context(), db, mux.Vars(r)["id"], req.Read); err != nil {
			if database.IsNotFound(err) {
				httpx.WriteError(w, "Mensagem não encontrada.", http.StatusNotFound)
				return
			}
			log.Error("update contact message failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao atualizar mensagem.", http.StatusInternalServerError)
			return
		}
		httpx.WriteMessage(w, "ok")
	}
}
