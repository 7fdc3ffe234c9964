package threadstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wanderlyst/agentcore/engine/core"
)

// DBInterface is the minimal Postgres access surface PostgresStore needs,
// matching the teacher's engine/auth/infra/postgres.DBInterface shape
// (minus Begin, since thread writes here are single-statement).
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const threadsTable = "threads"

// PostgresStore persists each Thread as a single JSONB row, grounded on
// original_source's metadata_store.py pattern of a thin raw-SQL
// persistence layer over a structured payload, combined with the
// teacher's squirrel+scany repository idiom (see engine/memory/store.PGVectorStore).
type PostgresStore struct {
	db DBInterface
}

// NewPostgresStore builds a PostgresStore over db.
func NewPostgresStore(db DBInterface) *PostgresStore {
	return &PostgresStore{db: db}
}

type threadRow struct {
	ID     string `db:"id"`
	UserID string `db:"user_id"`
	Data   []byte `db:"data"`
}

func (r threadRow) toThread() (*core.Thread, error) {
	var t core.Thread
	if err := json.Unmarshal(r.Data, &t); err != nil {
		return nil, fmt.Errorf("decode thread payload: %w", err)
	}
	return &t, nil
}

// Load fetches id's thread, or (nil, false, nil) if it doesn't exist.
func (s *PostgresStore) Load(ctx context.Context, id core.ID) (*core.Thread, bool, error) {
	sql, args, err := squirrel.Select("id", "user_id", "data").
		From(threadsTable).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, false, err
	}

	var row threadRow
	if err := pgxscan.Get(ctx, s.db, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load thread: %w", err)
	}
	t, err := row.toThread()
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// Save upserts thread's full JSON payload.
func (s *PostgresStore) Save(ctx context.Context, thread *core.Thread) error {
	payload, err := json.Marshal(thread)
	if err != nil {
		return fmt.Errorf("encode thread payload: %w", err)
	}

	sql, args, err := squirrel.Insert(threadsTable).
		Columns("id", "user_id", "data").
		Values(thread.ID.String(), thread.UserID, payload).
		Suffix("ON CONFLICT (id) DO UPDATE SET user_id = EXCLUDED.user_id, data = EXCLUDED.data").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("save thread: %w", err)
	}
	return nil
}

// Append loads, mutates, and re-saves the thread — not atomic, but this
// path is only ever reached while the caller holds the thread's
// conversation lock (spec §3 invariant: "mutated only while its lock is
// held"), so no concurrent writer can race it.
func (s *PostgresStore) Append(ctx context.Context, id core.ID, m core.Message) error {
	thread, ok, err := s.Load(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		thread = core.NewThread(id, "")
	}
	thread.Append(m)
	return s.Save(ctx, thread)
}

// Delete removes id's thread row.
func (s *PostgresStore) Delete(ctx context.Context, id core.ID) error {
	sql, args, err := squirrel.Delete(threadsTable).
		Where(squirrel.Eq{"id": id.String()}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("delete thread: %w", err)
	}
	return nil
}

// ListByUser returns userID's threads ordered by id, paginated.
func (s *PostgresStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*core.Thread, error) {
	if limit <= 0 {
		limit = 50
	}
	sql, args, err := squirrel.Select("id", "user_id", "data").
		From(threadsTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []threadRow
	if err := pgxscan.Select(ctx, s.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list threads by user: %w", err)
	}
	out := make([]*core.Thread, 0, len(rows))
	for _, row := range rows {
		t, err := row.toThread()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

var _ core.Store = (*PostgresStore)(nil)
