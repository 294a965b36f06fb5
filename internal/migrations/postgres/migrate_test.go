package postgres

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Paired(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestMigrations_Constraints(t *testing.T) {
	up, err := fs.ReadFile(migrations, "sql/000001_init.up.sql")
	require.NoError(t, err)

	schema := string(up)
	assert.Contains(t, schema, "UNIQUE (resource_id, start)")
	assert.Contains(t, schema, "UNIQUE (slot_id)")
	assert.Contains(t, schema, "duration_ns  bigint")
}
