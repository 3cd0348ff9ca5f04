// Package chat runs the support tickets opened from the storefront chat
// widget and answered from the dashboard.
package chat

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/auth"
	"liontech/config"
	"liontech/database"
	"liontech/hours"
	"liontech/mappers"
	"liontech/model"
	"liontech/realtime"
	"liontech/render"
	"liontech/whatsapp"
)

const (
	maxBody    = 4000
	maxSubject = 200
)

var (
	ErrNotFound      = errors.New("ticket not found")
	ErrClosed        = errors.New("ticket is closed")
	ErrInvalidStatus = errors.New("invalid ticket status")
)

// InputError is a rejected customer field.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return "invalid " + e.Field + ": " + e.Message }

// CreateInput opens a ticket with its first message.
type CreateInput struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in *CreateInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Subject = strings.TrimSpace(in.Subject)
	in.Message = strings.TrimSpace(in.Message)
	if in.Name == "" {
		return &InputError{"name", "Informe seu nome."}
	}
	if strings.TrimSpace(in.Phone) == "" && in.Email == "" {
		return &InputError{"contact", "Informe um telefone ou e-mail para retorno."}
	}
	if in.Phone != "" {
		phone, err := whatsapp.NormalizePhone(in.Phone)
		if err != nil {
			return &InputError{"phone", "Telefone inválido."}
		}
		in.Phone = phone
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return &InputError{"email", "E-mail inválido."}
		}
	}
	if in.Subject == "" {
		in.Subject = "Atendimento"
	}
	in.Subject = mappers.Truncate(in.Subject, maxSubject)
	return checkBody(in.Message)
}

func checkBody(body string) error {
	if body == "" {
		return &InputError{"message", "Escreva uma mensagem."}
	}
	if utf8.RuneCountInString(body) > maxBody {
		return &InputError{"message", fmt.Sprintf("A mensagem deve ter até %d caracteres.", maxBody)}
	}
	return nil
}

// Service owns ticket state and fans new messages out.
type Service struct {
	db       *sqlx.DB
	hub      *realtime.Hub
	notifier *whatsapp.Notifier
	log      *zap.Logger
	settings func() config.Settings
	now      func() time.Time
}

func NewService(db *sqlx.DB, hub *realtime.Hub, notifier *whatsapp.Notifier, log *zap.Logger, settings func() config.Settings) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if settings == nil {
		settings = config.GetConfig
	}
	return &Service{db: db, hub: hub, notifier: notifier, log: log, settings: settings, now: time.Now}
}

// Create opens a ticket. When the store is closed a system message with
// the next opening is added after the customer's message.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.TicketDetail, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var t *model.ChatTicket
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		number, err := database.NextSequenceInTx(ctx, tx, "TICKET", "AT", 6)
		if err != nil {
			return err
		}
		t = &model.ChatTicket{
			ID:            uuid.NewString(),
			Number:        number,
			CustomerName:  in.Name,
			CustomerPhone: in.Phone,
			CustomerEmail: in.Email,
			Subject:       in.Subject,
			Status:        model.TicketOpen,
			AccessToken:   auth.NewAccessToken(),
		}
		if err := database.InsertTicket(ctx, tx, t); err != nil {
			return err
		}
		first := &model.ChatMessage{
			ID: uuid.NewString(), TicketID: t.ID, Author: model.AuthorCustomer, AuthorName: in.Name, Body: in.Message,
		}
		if err := database.InsertTicketMessage(ctx, tx, first); err != nil {
			return err
		}

		week, err := database.GetBusinessHours(ctx, tx)
		if err != nil {
			return err
		}
		now := s.now().In(s.settings().StoreLocation())
		if !hours.IsOpen(week, now) {
			next, ok := hours.NextOpening(week, now)
			notice := &model.ChatMessage{
				ID: uuid.NewString(), TicketID: t.ID, Author: model.AuthorSystem, AuthorName: s.settings().StoreName,
				Body: render.OutsideHoursText(next, ok),
			}
			if err := database.InsertTicketMessage(ctx, tx, notice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	s.log.Info("ticket opened", zap.String("ticket", t.Number))
	s.notifier.TicketCreated(ctx, d.ChatTicket, in.Message)
	s.publishAdmin("ticket.created", &d.ChatTicket)
	return d, nil
}

// Get returns the ticket with its messages.
func (s *Service) Get(ctx context.Context, id string) (*model.TicketDetail, error) {
	t, err := database.GetTicketByID(ctx, s.db, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	msgs, err := database.GetTicketMessages(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return &model.TicketDetail{ChatTicket: *t, Messages: msgs}, nil
}

// Authorize loads the ticket when token matches its access token.
func (s *Service) Authorize(ctx context.Context, id, token string) (*model.ChatTicket, error) {
	t, err := database.GetTicketByID(ctx, s.db, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !auth.TokenEqual(token, t.AccessToken) {
		return nil, ErrNotFound
	}
	return t, nil
}

// CustomerMessage appends a customer message. A ticket waiting on the
// customer goes back to open.
func (s *Service) CustomerMessage(ctx context.Context, t *model.ChatTicket, body string) (*model.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if err := checkBody(body); err != nil {
		return nil, err
	}
	if t.Status == model.TicketClosed {
		return nil, ErrClosed
	}
	m := &model.ChatMessage{ID: uuid.NewString(), TicketID: t.ID, Author: model.AuthorCustomer, AuthorName: t.CustomerName, Body: body}
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := database.InsertTicketMessage(ctx, tx, m); err != nil {
			return err
		}
		if t.Status == model.TicketPending {
			t.Status = model.TicketOpen
			return database.UpdateTicket(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishMessage(t, m)
	return m, nil
}

// Reply appends a staff message, leaves the ticket pending on the
// customer and notifies them.
func (s *Service) Reply(ctx context.Context, id string, staff *model.User, body string) (*model.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if err := checkBody(body); err != nil {
		return nil, err
	}
	t, err := database.GetTicketByID(ctx, s.db, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	m := &model.ChatMessage{ID: uuid.NewString(), TicketID: t.ID, Author: model.AuthorStaff, Body: body}
	if staff != nil {
		m.AuthorName = staff.Name
		if t.AssignedTo == "" {
			t.AssignedTo = staff.ID
		}
	}
	err = database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if err := database.InsertTicketMessage(ctx, tx, m); err != nil {
			return err
		}
		t.Status = model.TicketPending
		t.ClosedAt = nil
		return database.UpdateTicket(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	s.notifier.TicketReply(ctx, *t, *m)
	s.publishMessage(t, m)
	return m, nil
}

// Update changes the status and assignee. Closing stamps closed_at.
func (s *Service) Update(ctx context.Context, id, status string, assignedTo *string) (*model.ChatTicket, error) {
	t, err := database.GetTicketByID(ctx, s.db, id)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if status != "" {
		switch status {
		case model.TicketOpen, model.TicketPending:
			t.ClosedAt = nil
		case model.TicketClosed:
			if t.Status != model.TicketClosed {
				now := s.now().UTC()
				t.ClosedAt = &now
			}
		default:
			return nil, ErrInvalidStatus
		}
		t.Status = status
	}
	if assignedTo != nil {
		t.AssignedTo = *assignedTo
	}
	if err := database.UpdateTicket(ctx, s.db, t); err != nil {
		return nil, err
	}
	s.publishAdmin("ticket.updated", t)
	if s.hub != nil {
		s.hub.Publish(realtime.TicketTopic(t.ID), realtime.Event{Type: "ticket.status", Data: map[string]string{"status": t.Status}, At: s.now().UTC()})
	}
	return t, nil
}

func (s *Service) publishMessage(t *model.ChatTicket, m *model.ChatMessage) {
	if s.hub == nil {
		return
	}
	at := s.now().UTC()
	s.hub.Publish(realtime.TicketTopic(t.ID), realtime.Event{Type: "message", Data: m, At: at})
	s.hub.Publish(realtime.TopicAdmin, realtime.Event{
		Type: "ticket.message",
		Data: map[string]string{"ticketId": t.ID, "number": t.Number, "author": m.Author, "status": t.Status},
		At:   at,
	})
}

func (s *Service) publishAdmin(eventType string, t *model.ChatTicket) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(realtime.TopicAdmin, realtime.Event{
		Type: eventType,
		Data: map[string]string{"id": t.ID, "number": t.Number, "status": t.Status, "subject": t.Subject},
		At:   s.now().UTC(),
	})
}
