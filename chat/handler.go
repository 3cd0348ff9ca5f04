package chat

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/database"
	"liontech/httpx"
	"liontech/model"
	"liontech/realtime"
)

type createdView struct {
	model.TicketDetail
	AccessToken string `json:"accessToken"`
}

type messageRequest struct {
	Body string `json:"body"`
}

type updateRequest struct {
	Status     string  `json:"status"`
	AssignedTo *string `json:"assignedTo"`
}

// CreateHandler handles POST /api/tickets. The access token is returned
// only here.
func CreateHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateInput
		if err := httpx.DecodeJSON(w, r, &in); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		d, err := s.Create(r.Context(), in)
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, createdView{TicketDetail: *d, AccessToken: d.AccessToken})
	}
}

// GetHandler handles GET /api/tickets/{id}?token=.
func GetHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Authorize(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("token"))
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		d, err := s.Get(r.Context(), t.ID)
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

// CustomerMessageHandler handles POST /api/tickets/{id}/messages?token=.
func CustomerMessageHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Authorize(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("token"))
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		var req messageRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		m, err := s.CustomerMessage(r.Context(), t, req.Body)
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, m)
	}
}

// StreamHandler handles GET /api/tickets/{id}/ws?token=, streaming the
// ticket's messages.
func StreamHandler(s *Service, hub *realtime.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		t, err := s.Authorize(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("token"))
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		hub.ServeWS(w, r, realtime.TicketTopic(t.ID))
	}
}

// ListHandler handles GET /api/admin/tickets?status=&page=.
func ListHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		page := httpx.ParsePage(r, 30, 100)
		tickets, err := database.GetTickets(r.Context(), s.db, status, page.PerPage, page.Offset())
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, tickets)
	}
}

// AdminGetHandler handles GET /api/admin/tickets/{id}.
func AdminGetHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := s.Get(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, d)
	}
}

// ReplyHandler handles POST /api/admin/tickets/{id}/messages.
func ReplyHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		u, _ := auth.UserFromContext(r.Context())
		m, err := s.Reply(r.Context(), mux.Vars(r)["id"], u, req.Body)
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, m)
	}
}

// UpdateHandler handles PATCH /api/admin/tickets/{id}.
func UpdateHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		t, err := s.Update(r.Context(), mux.Vars(r)["id"], req.Status, req.AssignedTo)
		if err != nil {
			writeChatError(w, err, s.log)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, t)
	}
}

func writeChatError(w http.ResponseWriter, err error, log *zap.Logger) {
	var ierr *InputError
	switch {
	case errors.As(err, &ierr):
		httpx.WriteError(w, ierr.Message, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		httpx.WriteError(w, "Atendimento não encontrado.", http.StatusNotFound)
	case errors.Is(err, ErrClosed):
		httpx.WriteError(w, "Este atendimento foi encerrado. Abra um novo para continuar.", http.StatusConflict)
	case errors.Is(err, ErrInvalidStatus):
		httpx.WriteError(w, "Status inválido.", http.StatusBadRequest)
	default:
		log.Error("ticket request failed", zap.Error(err))
		httpx.WriteError(w, "Falha no atendimento.", http.StatusInternalServerError)
	}
}
