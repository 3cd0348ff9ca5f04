package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NextSequenceInTx increments the named counter and formats it as
// prefix + zero padded number. Missing counters start at 1.
func NextSequenceInTx(ctx context.Context, tx *sqlx.Tx, name, prefix string, padding int) (string, error) {
	_, err := tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO code_sequences (name, last_no) VALUES (?, 0)
		ON CONFLICT(name) DO NOTHING`), name)
	if err != nil {
		return "", fmt.Errorf("failed to ensure sequence '%s': %w", name, err)
	}

	// The update takes the row lock before the read on postgres.
	if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE code_sequences SET last_no = last_no + 1 WHERE name = ?`), name); err != nil {
		return "", fmt.Errorf("failed to update sequence '%s': %w", name, err)
	}

	var lastNo int
	if err := tx.GetContext(ctx, &lastNo, tx.Rebind(`SELECT last_no FROM code_sequences WHERE name = ?`), name); err != nil {
		return "", fmt.Errorf("failed to get sequence '%s': %w", name, err)
	}

	format := fmt.Sprintf("%s%%0%dd", prefix, padding)
	return fmt.Sprintf(format, lastNo), nil
}

// ResetSequence sets a counter to an absolute value.
func ResetSequence(ctx context.Context, db DBTX, name string, lastNo int) error {
	_, err := db.ExecContext(ctx, db.Rebind(`
		INSERT INTO code_sequences (name, last_no) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET last_no = excluded.last_no`), name, lastNo)
	if err != nil {
		return fmt.Errorf("failed to reset sequence '%s': %w", name, err)
	}
	return nil
}
