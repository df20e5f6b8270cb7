package db

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	for _, e := range entries {
		data, err := fs.ReadFile(migrationsFS, "migrations/"+e.Name())
		require.NoError(t, err)
		body := string(data)
		assert.Contains(t, body, "-- +goose Up", e.Name())
		assert.Contains(t, body, "-- +goose Down", e.Name())
	}
}

func TestInitMigrationGuardsHeldSlots(t *testing.T) {
	data, err := fs.ReadFile(migrationsFS, "migrations/00001_init.sql")
	require.NoError(t, err)

	body := string(data)
	assert.True(t, strings.Contains(body, "CREATE UNIQUE INDEX IF NOT EXISTS appointments_held_slot_uidx"))
	assert.True(t, strings.Contains(body, "WHERE status <> 'cancelled'"))
}
