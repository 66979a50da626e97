package postgres_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/tagtrack-api/internal/infrastructure/postgres"
)

func TestPendingMigrations_OrdenYFiltro(t *testing.T) {
	files := fstest.MapFS{
		"002_indexes.sql":     {Data: []byte("SELECT 1")},
		"001_custody.sql":     {Data: []byte("SELECT 1")},
		"003_extra.sql":       {Data: []byte("SELECT 1")},
		"README.md":           {Data: []byte("x")},
		"old/000_ignored.sql": {Data: []byte("SELECT 1")},
	}

	names, err := postgres.PendingMigrations(files, map[string]bool{"002_indexes.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"001_custody.sql", "003_extra.sql"}, names)
}
