package database

import (
	"context"
	"fmt"

	"liontech/model"
)

const ticketColumns = `id, number, customer_name, customer_phone, customer_email, subject, status, access_token,
	assigned_to, created_at, updated_at, closed_at`

func InsertTicket(ctx context.Context, db DBTX, t *model.ChatTicket) error {
	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts
	const q = `INSERT INTO chat_tickets (` + ticketColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), t.ID, t.Number, t.CustomerName, t.CustomerPhone, t.CustomerEmail,
		t.Subject, t.Status, t.AccessToken, t.AssignedTo, t.CreatedAt, t.UpdatedAt, t.ClosedAt)
	if err != nil {
		return fmt.Errorf("InsertTicket failed: %w", err)
	}
	return nil
}

func GetTicketByID(ctx context.Context, db DBTX, id string) (*model.ChatTicket, error) {
	var t model.ChatTicket
	if err := db.GetContext(ctx, &t, db.Rebind(`SELECT `+ticketColumns+` FROM chat_tickets WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get ticket %s: %w", id, err)
	}
	return &t, nil
}

func GetTickets(ctx context.Context, db DBTX, status string, limit, offset int) ([]model.ChatTicket, error) {
	tickets := []model.ChatTicket{}
	q := `SELECT ` + ticketColumns + ` FROM chat_tickets`
	var args []interface{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	if err := db.SelectContext(ctx, &tickets, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get tickets: %w", err)
	}
	return tickets, nil
}

func CountTicketsByStatus(ctx context.Context, db DBTX, status string) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM chat_tickets WHERE status = ?`), status); err != nil {
		return 0, fmt.Errorf("failed to count tickets: %w", err)
	}
	return n, nil
}

// UpdateTicket writes status, assignee and closed_at.
func UpdateTicket(ctx context.Context, db DBTX, t *model.ChatTicket) error {
	t.UpdatedAt = now()
	const q = `UPDATE chat_tickets SET status = ?, assigned_to = ?, closed_at = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), t.Status, t.AssignedTo, t.ClosedAt, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("UpdateTicket (ID: %s) failed: %w", t.ID, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateTicket (ID: %s): %w", t.ID, errNoRows)
	}
	return nil
}

func InsertTicketMessage(ctx context.Context, db DBTX, m *model.ChatMessage) error {
	m.CreatedAt = now()
	const q = `INSERT INTO chat_messages (id, ticket_id, author, author_name, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := db.ExecContext(ctx, db.Rebind(q), m.ID, m.TicketID, m.Author, m.AuthorName, m.Body, m.CreatedAt); err != nil {
		return fmt.Errorf("InsertTicketMessage (Ticket: %s) failed: %w", m.TicketID, err)
	}
	if _, err := db.ExecContext(ctx, db.Rebind(`UPDATE chat_tickets SET updated_at = ? WHERE id = ?`), m.CreatedAt, m.TicketID); err != nil {
		return fmt.Errorf("failed to touch ticket %s: %w", m.TicketID, err)
	}
	return nil
}

func GetTicketMessages(ctx context.Context, db DBTX, ticketID string) ([]model.ChatMessage, error) {
	messages := []model.ChatMessage{}
	const q = `SELECT id, ticket_id, author, author_name, body, created_at FROM chat_messages WHERE ticket_id = ? ORDER BY created_at, id`
	if err := db.SelectContext(ctx, &messages, db.Rebind(q), ticketID); err != nil {
		return nil, fmt.Errorf("failed to get messages of ticket %s: %w", ticketID, err)
	}
	return messages, nil
}
