package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/httpx"
	"liontech/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt string     `json:"expiresAt"`
	User      model.User `json:"user"`
}

// LoginHandler issues a session token and sets it as an HttpOnly cookie.
// Attempts are rate limited per client IP.
func LoginHandler(s *Service, limiter *httpx.RateLimiter, secureCookie bool, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.AllowRequest(r) {
			httpx.WriteError(w, "Muitas tentativas de login. Aguarde um minuto.", http.StatusTooManyRequests)
			return
		}
		var req loginRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		u, err := s.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				httpx.WriteError(w, "E-mail ou senha inválidos.", http.StatusUnauthorized)
				return
			}
			log.Error("login failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao autenticar.", http.StatusInternalServerError)
			return
		}
		token, exp, err := s.IssueToken(*u)
		if err != nil {
			log.Error("issue token failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao autenticar.", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    token,
			Path:     "/",
			Expires:  exp,
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		httpx.WriteJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: exp.UTC().Format("2006-01-02T15:04:05Z07:00"), User: *u})
	}
}

func LogoutHandler(secureCookie bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secureCookie,
			SameSite: http.SameSiteLaxMode,
		})
		httpx.WriteMessage(w, "Sessão encerrada.")
	}
}

type meResponse struct {
	model.User
	Permissions []Permission `json:"permissions"`
}

// MeHandler returns the current user and the permissions of its role.
func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, "Autenticação necessária.", http.StatusUnauthorized)
			return
		}
		resp := meResponse{User: *u, Permissions: []Permission{}}
		for _, p := range []Permission{CatalogWrite, OrdersRead, OrdersWrite, CouponsWrite, StockWrite, TicketsReply,
			HoursWrite, BackupsManage, SettingsWrite, UsersManage, ReportsRead} {
			if Can(u.Role, p) {
				resp.Permissions = append(resp.Permissions, p)
			}
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}

func ListUsersHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := database.GetAllUsers(r.Context(), db)
		if err != nil {
			log.Error("list users failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao listar usuários.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, users)
	}
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func CreateUserHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createUserRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		u, err := CreateUser(r.Context(), db, req.Email, req.Name, req.Role, req.Password)
		if err != nil {
			if database.IsUniqueViolation(err) {
				httpx.WriteError(w, "Já existe um usuário com este e-mail.", http.StatusConflict)
				return
			}
			switch {
			case errors.Is(err, ErrInvalidUser):
				httpx.WriteError(w, "Informe nome e e-mail válidos.", http.StatusBadRequest)
			case errors.Is(err, ErrInvalidRole):
				httpx.WriteError(w, "Perfil inválido.", http.StatusBadRequest)
			case errors.Is(err, ErrWeakPassword):
				httpx.WriteError(w, "A senha deve ter pelo menos 8 caracteres.", http.StatusBadRequest)
			default:
				log.Error("create user failed", zap.Error(err))
				httpx.WriteError(w, "Falha ao criar usuário.", http.StatusInternalServerError)
			}
			return
		}
		httpx.WriteJSON(w, http.StatusCreated, u)
	}
}

type updateUserRequest struct {
	Name     *string `json:"name"`
	Role     *string `json:"role"`
	Active   *bool   `json:"active"`
	Password *string `json:"password"`
}

// UpdateUserHandler changes role, active flag, name or password. Admins
// cannot demote or deactivate themselves.
func UpdateUserHandler(db *sqlx.DB, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		var req updateUserRequest
		if err := httpx.DecodeJSON(w, r, &req); err != nil {
			httpx.WriteError(w, "Requisição inválida.", http.StatusBadRequest)
			return
		}
		u, err := database.GetUserByID(r.Context(), db, id)
		if err != nil {
			if database.IsNotFound(err) {
				httpx.WriteError(w, "Usuário não encontrado.", http.StatusNotFound)
				return
			}
			log.Error("get user failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao carregar usuário.", http.StatusInternalServerError)
			return
		}
		current, _ := UserFromContext(r.Context())
		self := current != nil && current.ID == u.ID

		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			u.Name = strings.TrimSpace(*req.Name)
		}
		if req.Role != nil {
			if !ValidRole(*req.Role) {
				httpx.WriteError(w, "Perfil inválido.", http.StatusBadRequest)
				return
			}
			if self && *req.Role != u.Role {
				httpx.WriteError(w, "Você não pode alterar o próprio perfil.", http.StatusBadRequest)
				return
			}
			u.Role = *req.Role
		}
		if req.Active != nil {
			if self && !*req.Active {
				httpx.WriteError(w, "Você não pode desativar a própria conta.", http.StatusBadRequest)
				return
			}
			u.Active = *req.Active
		}
		if req.Password != nil {
			hash, err := HashPassword(*req.Password)
			if err != nil {
				httpx.WriteError(w, "A senha deve ter pelo menos 8 caracteres.", http.StatusBadRequest)
				return
			}
			u.PasswordHash = hash
		}
		if err := database.UpdateUser(r.Context(), db, u); err != nil {
			log.Error("update user failed", zap.Error(err))
			httpx.WriteError(w, "Falha ao atualizar usuário.", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, u)
	}
}
