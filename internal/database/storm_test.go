package database_test

import (
	"path/filepath"
	"testing"

	"github.com/focalpics/focal/internal/database"
	"github.com/focalpics/focal/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) database.Client {
	filename := filepath.Join(t.TempDir(), "focal.db")
	require.NoError(t, database.StormInit(filename))

	db, err := database.StormOpen(filename)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestStormAccount(t *testing.T) {
	db := setup(t)

	account := model.NewAccount("Alice", "alice@example.com")
	require.NoError(t, db.Save(account))
	assert.NotEmpty(t, account.ID)
	assert.NotNil(t, account.CreatedAt)

	found, err := db.FindAccount(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", found.Email)

	found, err = db.FindAccountByEmail("alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, found.ID)

	found, err = db.FindAccountBySafename("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", found.Name)

	_, err = db.FindAccountByEmail("bob@example.com")
	assert.True(t, db.IsNotFound(err))

	require.NoError(t, db.Delete(account))
	_, err = db.FindAccount(account.ID)
	assert.True(t, db.IsNotFound(err))
}

func TestStormAccountUniqueness(t *testing.T) {
	db := setup(t)

	require.NoError(t, db.Save(model.NewAccount("alice", "alice@example.com")))

	err := db.Save(model.NewAccount("alice", "other@example.com"))
	assert.True(t, db.IsAlreadyExists(err))

	err = db.Save(model.NewAccount("other", "alice@example.com"))
	assert.True(t, db.IsAlreadyExists(err))
}
