package loader

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"liontech/database"
	"liontech/model"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBusinessHours is the week seeded into an empty database:
// Monday to Friday 09:00-18:00, Saturday 09:00-13:00, Sunday closed.
func DefaultBusinessHours() []model.BusinessHour {
	hours := make([]model.BusinessHour, 0, 7)
	for d := 0; d < 7; d++ {
		h := model.BusinessHour{Weekday: d, OpensAt: "09:00", ClosesAt: "18:00"}
		switch d {
		case 0:
			h.OpensAt, h.ClosesAt, h.Closed = "00:00", "00:00", true
		case 6:
			h.ClosesAt = "13:00"
		}
		hours = append(hours, h)
	}
	return hours
}

// InitDatabase applies the schema and seeds defaults. It is idempotent.
func InitDatabase(ctx context.Context, db *sqlx.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	log.Debug("applying database schema")
	if err := applySchema(ctx, db); err != nil {
		return fmt.Errorf("failed to apply schema.sql: %w", err)
	}
	if err := seed(ctx, db, log); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}
	log.Debug("database initialization complete")
	return nil
}

// applySchema runs schema.sql one statement at a time; the postgres driver
// does not accept several statements in one prepared Exec.
func applySchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func splitStatements(sql string) []string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var stmts []string
	for _, s := range strings.Split(b.String(), ";") {
		if s = strings.TrimSpace(s); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func seed(ctx context.Context, db *sqlx.DB, log *zap.Logger) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	hours, err := database.GetBusinessHours(ctx, tx)
	if err != nil {
		return err
	}
	if len(hours) == 0 {
		if err := database.ReplaceBusinessHoursInTx(ctx, tx, DefaultBusinessHours()); err != nil {
			return err
		}
		log.Info("seeded default business hours")
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO code_sequences (name, last_no) VALUES (?, 0)
		ON CONFLICT(name) DO NOTHING`), "TICKET"); err != nil {
		return fmt.Errorf("failed to seed ticket sequence: %w", err)
	}
	return nil
}
