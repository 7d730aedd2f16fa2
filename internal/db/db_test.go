package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)

	var up, down int
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			up++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			down++
		}
	}
	assert.Equal(t, up, down, "every up migration needs a down migration")
	assert.Positive(t, up)
}

func TestMigrationsCreateDraftTables(t *testing.T) {
	data, err := fs.ReadFile(migrationFiles, "migrations/000001_cv_draft.up.sql")
	require.NoError(t, err)

	for _, table := range append(append([]string{}, draftTables...), "ingestion_runs") {
		assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS "+table+" ")
	}
}

func TestSkillRows(t *testing.T) {
	owner := uuid.New()
	rows := skillRows(owner, []string{"Go", "SQL"})

	require.Len(t, rows, 2)
	assert.Equal(t, []any{owner, 0, "Go"}, rows[0])
	assert.Equal(t, []any{owner, 1, "SQL"}, rows[1])
	assert.Empty(t, skillRows(owner, nil))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullIfEmpty(""))
	require.NotNil(t, nullIfEmpty("ocr"))
	assert.Equal(t, "ocr", *nullIfEmpty("ocr"))

	assert.Equal(t, "", derefString(nil))
	s := "x"
	assert.Equal(t, "x", derefString(&s))

	assert.NotNil(t, nonNil(nil))
	assert.Equal(t, []string{"a"}, nonNil([]string{"a"}))
}
