package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBInterface is the minimal pgx surface this store needs, matching the
// teacher's engine/auth/infra/postgres.DBInterface shape so a *pgxpool.Pool
// satisfies it without adaptation.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGVectorStore implements Store over Postgres with the pgvector extension.
// Each Collection maps to its own table (`memory_conversation`,
// `memory_domain`), both expected to be created by a migration with a
// `vector(dimension)` column matching the collection's frozen dimension.
type PGVectorStore struct {
	db DBInterface
}

// NewPGVectorStore constructs a PGVectorStore over db.
func NewPGVectorStore(db DBInterface) *PGVectorStore {
	return &PGVectorStore{db: db}
}

func tableFor(c Collection) string {
	return "memory_" + string(c)
}

func vectorLiteral(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = fmt.Sprintf("%f", f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (s *PGVectorStore) Upsert(ctx context.Context, collection Collection, records []Record) error {
	table := tableFor(collection)
	for _, r := range records {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling memory metadata: %w", err)
		}
		query, args, err := squirrel.Insert(table).
			Columns("id", "content", "memory_type", "user_id", "thread_id", "metadata", "embedding", "created_at").
			Values(r.ID, r.Content, r.MemoryType, r.UserID, r.ThreadID, metadata, vectorLiteral(r.Vector), r.CreatedAt).
			Suffix("ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding").
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("building memory upsert query: %w", err)
		}
		if _, err := s.db.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("upserting memory %s: %w", r.ID, err)
		}
	}
	return nil
}

type memoryRow struct {
	ID         string    `db:"id"`
	Content    string    `db:"content"`
	MemoryType string    `db:"memory_type"`
	UserID     string    `db:"user_id"`
	ThreadID   string    `db:"thread_id"`
	Metadata   []byte    `db:"metadata"`
	CreatedAt  time.Time `db:"created_at"`
	Score      float64   `db:"score"`
}

func (r memoryRow) toRecord() Record {
	var metadata map[string]any
	_ = json.Unmarshal(r.Metadata, &metadata)
	return Record{
		ID:         r.ID,
		Content:    r.Content,
		MemoryType: r.MemoryType,
		UserID:     r.UserID,
		ThreadID:   r.ThreadID,
		Metadata:   metadata,
		CreatedAt:  r.CreatedAt,
	}
}

// Search runs a cosine-distance nearest-neighbor query via pgvector's `<=>`
// operator (cosine distance; similarity = 1 - distance), filtered by the
// scalar columns, matching the original Qdrant MatchValue/MatchAny filter
// semantics.
func (s *PGVectorStore) Search(
	ctx context.Context,
	collection Collection,
	query []float32,
	filters SearchFilters,
	limit int,
	scoreThreshold float64,
) ([]SearchResult, error) {
	table := tableFor(collection)
	vec := vectorLiteral(query)

	inner := squirrel.Select(
		"id", "content", "memory_type", "user_id", "thread_id", "metadata", "created_at",
		fmt.Sprintf("1 - (embedding <=> '%s') AS score", vec),
	).From(table)

	if filters.UserID != "" {
		inner = inner.Where(squirrel.Eq{"user_id": filters.UserID})
	}
	if filters.ThreadID != "" {
		inner = inner.Where(squirrel.Eq{"thread_id": filters.ThreadID})
	}
	if filters.MemoryType != "" {
		inner = inner.Where(squirrel.Eq{"memory_type": filters.MemoryType})
	}

	outer := squirrel.Select("*").
		FromSelect(inner, "scored").
		Where(squirrel.GtOrEq{"score": scoreThreshold}).
		OrderBy("score DESC").
		Limit(uint64(limit))

	sql, args, err := outer.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building memory search query: %w", err)
	}

	var rows []memoryRow
	if err := pgxscan.Select(ctx, s.db, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("searching memories: %w", err)
	}

	results := make([]SearchResult, 0, len(rows))
	for _, row := range rows {
		results = append(results, SearchResult{Record: row.toRecord(), Score: row.Score})
	}
	return results, nil
}

func (s *PGVectorStore) ListByUser(
	ctx context.Context,
	collection Collection,
	userID string,
	memoryTypes []string,
	limit int,
) ([]Record, error) {
	table := tableFor(collection)
	builder := squirrel.Select("id", "content", "memory_type", "user_id", "thread_id", "metadata", "created_at").
		From(table).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	if len(memoryTypes) > 0 {
		builder = builder.Where(squirrel.Eq{"memory_type": memoryTypes})
	}

	query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list-by-user query: %w", err)
	}

	var rows []memoryRow
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing memories for user: %w", err)
	}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toRecord())
	}
	return records, nil
}

func (s *PGVectorStore) DeleteByID(ctx context.Context, collection Collection, id string) error {
	query, args, err := squirrel.Delete(tableFor(collection)).
		Where(squirrel.Eq{"id": id}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete-by-id query: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting memory %s: %w", id, err)
	}
	return nil
}

func (s *PGVectorStore) DeleteByUser(ctx context.Context, collection Collection, userID string) (int, error) {
	return s.deleteWhere(ctx, collection, squirrel.Eq{"user_id": userID})
}

func (s *PGVectorStore) DeleteByThread(ctx context.Context, collection Collection, threadID string) (int, error) {
	return s.deleteWhere(ctx, collection, squirrel.Eq{"thread_id": threadID})
}

func (s *PGVectorStore) deleteWhere(ctx context.Context, collection Collection, pred squirrel.Eq) (int, error) {
	query, args, err := squirrel.Delete(tableFor(collection)).
		Where(pred).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building delete query: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting memories: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

var _ Store = (*PGVectorStore)(nil)
