package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiles(t *testing.T) {
	names, err := Files()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "0001_create_counters.sql", names[0])
	assert.IsIncreasing(t, names)
}

func TestCountersMigrationEnforcesSingleton(t *testing.T) {
	content, err := files.ReadFile("0001_create_counters.sql")
	require.NoError(t, err)

	sql := string(content)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS counters")
	assert.Contains(t, sql, "UNIQUE (name)")
	assert.Regexp(t, `count\s+BIGINT\s+NOT NULL DEFAULT 0`, sql)
	assert.Contains(t, sql, "CHECK (count >= 0)")
}
