package database

import (
	"context"
	"fmt"

	"liontech/model"
)

func InsertContactMessage(ctx context.Context, db DBTX, m *model.ContactMessage) error {
	m.CreatedAt = now()
	const q = `INSERT INTO contact_messages (id, name, email, phone, subject, message, is_read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Message, m.Read, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("InsertContactMessage failed: %w", err)
	}
	return nil
}

func GetContactMessages(ctx context.Context, db DBTX, unreadOnly bool, limit, offset int) ([]model.ContactMessage, error) {
	messages := []model.ContactMessage{}
	q := `SELECT id, name, email, phone, subject, message, is_read, created_at FROM contact_messages`
	var args []interface{}
	if unreadOnly {
		q += ` WHERE is_read = ?`
		args = append(args, false)
	}
	q += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	if err := db.SelectContext(ctx, &messages, db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to get contact messages: %w", err)
	}
	return messages, nil
}

func SetContactMessageRead(ctx context.Context, db DBTX, id string, read bool) error {
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE contact_messages SET is_read = ? WHERE id = ?`), read, id)
	if err != nil {
		return fmt.Errorf("failed to update contact message %s: %w", id, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("failed to update contact message %s: %w", id, errNoRows)
	}
	return nil
}

func CountUnreadContacts(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM contact_messages WHERE is_read = ?`), false); err != nil {
		return 0, fmt.Errorf("failed to count unread contacts: %w", err)
	}
	return n, nil
}
