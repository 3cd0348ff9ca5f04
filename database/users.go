package database

import (
	"context"
	"fmt"
	"strings"

	"liontech/model"
)

const userColumns = `id, email, name, role, password_hash, active, created_at, updated_at`

func GetUserByEmail(ctx context.Context, db DBTX, email string) (*model.User, error) {
	var u model.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := db.GetContext(ctx, &u, db.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), email); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func GetUserByID(ctx context.Context, db DBTX, id string) (*model.User, error) {
	var u model.User
	if err := db.GetContext(ctx, &u, db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

func GetAllUsers(ctx context.Context, db DBTX) ([]model.User, error) {
	users := []model.User{}
	if err := db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to get all users: %w", err)
	}
	return users, nil
}

func CountUsers(ctx context.Context, db DBTX) (int, error) {
	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

func CreateUser(ctx context.Context, db DBTX, u *model.User) error {
	t := now()
	u.CreatedAt = t
	u.UpdatedAt = t
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	const q = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, db.Rebind(q), u.ID, u.Email, u.Name, u.Role, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("CreateUser (Email: %s) failed: %w", u.Email, err)
	}
	return nil
}

func UpdateUser(ctx context.Context, db DBTX, u *model.User) error {
	u.UpdatedAt = now()
	const q = `UPDATE users SET name = ?, role = ?, password_hash = ?, active = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, db.Rebind(q), u.Name, u.Role, u.PasswordHash, u.Active, u.UpdatedAt, u.ID)
	if err != nil {
		return fmt.Errorf("UpdateUser (ID: %s) failed: %w", u.ID, err)
	}
	if rowsAffected(res) == 0 {
		return fmt.Errorf("UpdateUser (ID: %s): %w", u.ID, errNoRows)
	}
	return nil
}
