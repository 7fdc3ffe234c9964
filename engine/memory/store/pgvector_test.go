package store_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/memory/store"
)

func TestPGVectorStore_Upsert(t *testing.T) {
	t.Run("Should insert a memory record with an upsert clause", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		s := store.NewPGVectorStore(mockPool)
		mockPool.ExpectExec("INSERT INTO memory_conversation").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err = s.Upsert(context.Background(), store.CollectionConversation, []store.Record{
			{ID: "mem-1", Content: "hello", MemoryType: "conversation", UserID: "u1", Vector: []float32{0.1, 0.2}},
		})
		require.NoError(t, err)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPGVectorStore_DeleteByUser(t *testing.T) {
	t.Run("Should report the number of deleted rows", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		s := store.NewPGVectorStore(mockPool)
		mockPool.ExpectExec("DELETE FROM memory_domain").
			WillReturnResult(pgxmock.NewResult("DELETE", 3))

		count, err := s.DeleteByUser(context.Background(), store.CollectionDomain, "u1")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}
