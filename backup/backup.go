// Package backup dumps the store's tables to a JSON document and restores
// them.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"liontech/database"
)

// Version is the document format written by Export.
const Version = 1

// Tables lists the backed up tables in dependency order.
var Tables = []string{
	"users",
	"categories",
	"products",
	"services",
	"cases",
	"coupons",
	"customers",
	"orders",
	"order_items",
	"stock_movements",
	"chat_tickets",
	"chat_messages",
	"business_hours",
	"contact_messages",
	"code_sequences",
}

var (
	ErrVersion       = errors.New("unsupported backup version")
	ErrUnknownTable  = errors.New("unknown table")
	ErrUnknownColumn = errors.New("unknown column")
	ErrMalformed     = errors.New("malformed backup")
)

// Document is the serialized form of a backup.
type Document struct {
	Version   int                                 `json:"version"`
	CreatedAt time.Time                           `json:"created_at"`
	Tables    map[string][]map[string]interface{} `json:"tables"`
}

// Rows returns the total row count over all tables.
func (d *Document) Rows() int {
	n := 0
	for _, rows := range d.Tables {
		n += len(rows)
	}
	return n
}

// Export reads every table into a document.
func Export(ctx context.Context, db database.DBTX) (*Document, error) {
	doc := &Document{
		Version:   Version,
		CreatedAt: time.Now().UTC(),
		Tables:    make(map[string][]map[string]interface{}, len(Tables)),
	}
	for _, table := range Tables {
		rows, err := dumpTable(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", table, err)
		}
		doc.Tables[table] = rows
	}
	return doc, nil
}

func dumpTable(ctx context.Context, db database.DBTX, table string) ([]map[string]interface{}, error) {
	rows, err := db.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []map[string]interface{}{}
	for rows.Next() {
		row := map[string]interface{}{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			switch tv := v.(type) {
			case []byte:
				row[k] = string(tv)
			case time.Time:
				row[k] = tv.UTC()
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Decode reads a document, keeping numbers exact.
func Decode(r io.Reader) (*Document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &doc, nil
}

// Encode writes doc as JSON.
func Encode(w io.Writer, doc *Document) error {
	return json.NewEncoder(w).Encode(doc)
}

// Restore replaces the contents of every listed table with doc in one
// transaction. The document is fully validated against the live schema
// before anything is deleted.
func Restore(ctx context.Context, db *sqlx.DB, doc *Document) error {
	if doc.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, doc.Version)
	}
	known := make(map[string]bool, len(Tables))
	for _, t := range Tables {
		known[t] = true
	}
	for table := range doc.Tables {
		if !known[table] {
			return fmt.Errorf("%w %q", ErrUnknownTable, table)
		}
	}

	return database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		for _, table := range Tables {
			cols, err := tableColumns(ctx, tx, table)
			if err != nil {
				return fmt.Errorf("columns of %s: %w", table, err)
			}
			for _, row := range doc.Tables[table] {
				for col := range row {
					if !cols[col] {
						return fmt.Errorf("%w %s.%s", ErrUnknownColumn, table, col)
					}
				}
			}
		}

		for i := len(Tables) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+Tables[i]); err != nil {
				return fmt.Errorf("clear %s: %w", Tables[i], err)
			}
		}
		for _, table := range Tables {
			for n, row := range doc.Tables[table] {
				if err := insertRow(ctx, tx, table, row); err != nil {
					return fmt.Errorf("restore %s row %d: %w", table, n+1, err)
				}
			}
		}
		return nil
	})
}

func tableColumns(ctx context.Context, db database.DBTX, table string) (map[string]bool, error) {
	rows, err := db.QueryxContext(ctx, "SELECT * FROM "+table+" WHERE 1 = 0")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	cols := make(map[string]bool, len(names))
	for _, n := range names {
		cols[n] = true
	}
	return cols, nil
}

func insertRow(ctx context.Context, tx *sqlx.Tx, table string, row map[string]interface{}) error {
	if len(row) == 0 {
		return nil
	}
	cols := make([]string, 0, len(row))
	for c := range row {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	args := make([]interface{}, len(cols))
	for i, c := range cols {
		args[i] = restoreValue(c, row[c])
	}
	query := "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" +
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	_, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

// restoreValue converts a decoded JSON value back to a driver value.
// Strings in *_at columns that parse as RFC 3339 become timestamps; other
// *_at values (business hours use "09:00") stay text.
func restoreValue(col string, v interface{}) interface{} {
	switch tv := v.(type) {
	case json.Number:
		if i, err := tv.Int64(); err == nil {
			return i
		}
		f, _ := tv.Float64()
		return f
	case string:
		if strings.HasSuffix(col, "_at") {
			if t, err := time.Parse(time.RFC3339Nano, tv); err == nil {
				return t.UTC()
			}
		}
		return tv
	default:
		return v
	}
}
