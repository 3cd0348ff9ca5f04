package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liontech/database"
)

func TestInitDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, InitDatabase(ctx, db, nil))
	require.NoError(t, InitDatabase(ctx, db, nil))

	hours, err := database.GetBusinessHours(ctx, db)
	require.NoError(t, err)
	require.Len(t, hours, 7)
	assert.True(t, hours[0].Closed)
	assert.Equal(t, "13:00", hours[6].ClosesAt)
	assert.Equal(t, "09:00", hours[1].OpensAt)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- comment; with semicolon\nCREATE TABLE a (x TEXT);\n\nCREATE INDEX i ON a (x);\n")
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x TEXT)", stmts[0])
}
