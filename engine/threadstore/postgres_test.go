package threadstore_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/engine/threadstore"
)

func TestPostgresStore_Save(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := threadstore.NewPostgresStore(mockPool)
	ctx := context.Background()
	thread := core.NewThread(core.MustNewID(), "u1")

	mockPool.ExpectExec("INSERT INTO threads").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Save(ctx, thread))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_Load(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := threadstore.NewPostgresStore(mockPool)
	ctx := context.Background()
	id := core.MustNewID()
	thread := core.NewThread(id, "u1")
	payload, err := json.Marshal(thread)
	require.NoError(t, err)

	rows := mockPool.NewRows([]string{"id", "user_id", "data"}).
		AddRow(id.String(), "u1", payload)
	mockPool.ExpectQuery("SELECT id, user_id, data FROM threads").WillReturnRows(rows)

	loaded, ok, err := store.Load(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "u1", loaded.UserID)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	store := threadstore.NewPostgresStore(mockPool)
	ctx := context.Background()
	id := core.MustNewID()

	mockPool.ExpectExec("DELETE FROM threads").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(ctx, id))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
