package corpus

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/54b3r/prepai-go/internal/config"
	"github.com/54b3r/prepai-go/internal/vector"
)

// PostgresConfig holds connection parameters for the pgvector-backed store.
type PostgresConfig struct {
	// DSN is a lib/pq connection string or postgres:// URL.
	DSN string

	// Dimensions is the fixed length of the embedding column.
	Dimensions int

	// MaxOpenConns caps the connection pool (default 10).
	MaxOpenConns int
}

// PostgresStore implements [Store] on PostgreSQL with the pgvector extension.
// Distance is pgvector's L2 operator (<->), served by an HNSW index.
type PostgresStore struct {
	db  *sql.DB
	dim int
}

// PostgresDSNFromEnv resolves the connection string: DATABASE_URL when set,
// otherwise a URL assembled from PG_USER, PG_PASSWORD, PG_HOST, PG_PORT,
// PG_DATABASE and PG_SSLMODE.
func PostgresDSNFromEnv() string {
	if dsn := config.String("DATABASE_URL", ""); dsn != "" {
		return dsn
	}
	u := &url.URL{
		Scheme: "postgres",
		Host: net.JoinHostPort(
			config.String("PG_HOST", "localhost"),
			strconv.Itoa(config.Int("PG_PORT", 5432)),
		),
		Path: "/" + config.String("PG_DATABASE", "prepai"),
	}
	user := config.String("PG_USER", "postgres")
	if pw := config.String("PG_PASSWORD", ""); pw != "" {
		u.User = url.UserPassword(user, pw)
	} else {
		u.User = url.User(user)
	}
	q := url.Values{}
	q.Set("sslmode", config.String("PG_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// OpenPostgres connects, verifies the connection and applies the schema.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("corpus: postgres: dimensions must be positive, got %d", cfg.Dimensions)
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("corpus: postgres: open: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, unavailable("postgres ping", err)
	}

	s := &PostgresStore{db: db, dim: cfg.Dimensions}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the extension, table and index if they do not exist and
// verifies an existing embedding column has the configured dimension.
func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS questions (
			id            BIGSERIAL PRIMARY KEY,
			question_text TEXT        NOT NULL,
			topic         TEXT        NOT NULL DEFAULT '',
			difficulty    TEXT        NOT NULL DEFAULT '',
			embedding     vector(%d)  NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.dim),
		`CREATE INDEX IF NOT EXISTS questions_embedding_l2_idx
			ON questions USING hnsw (embedding vector_l2_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("corpus: postgres: migrate: %w", err)
		}
	}

	// For the vector type, atttypmod holds the declared dimension.
	var existing int
	err := s.db.QueryRowContext(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'questions'::regclass AND attname = 'embedding'`,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("corpus: postgres: read embedding dimension: %w", err)
	}
	if existing > 0 && existing != s.dim {
		return fmt.Errorf("corpus: postgres: questions.embedding is vector(%d) but EMBEDDING_DIMENSIONS resolves to %d", existing, s.dim)
	}
	return nil
}

// Insert stores q and returns it with its BIGSERIAL id.
func (s *PostgresStore) Insert(ctx context.Context, q NewQuestion) (Question, error) {
	if err := validateNew(q, s.dim); err != nil {
		return Question{}, err
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO questions (question_text, topic, difficulty, embedding)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		q.Text, q.Topic, q.Difficulty, pgvector.NewVector(q.Embedding.Slice()),
	).Scan(&id)
	if err != nil {
		return Question{}, unavailable("postgres insert", err)
	}
	return Question{ID: id, Text: q.Text, Topic: q.Topic, Difficulty: q.Difficulty, Embedding: q.Embedding}, nil
}

// Get returns the question with the given id.
func (s *PostgresStore) Get(ctx context.Context, id int64) (Question, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, question_text, topic, difficulty, embedding
		FROM questions WHERE id = $1`, id)

	var (
		q   Question
		raw pgvector.Vector
	)
	err := row.Scan(&q.ID, &q.Text, &q.Topic, &q.Difficulty, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, false, nil
	}
	if err != nil {
		return Question{}, false, unavailable("postgres get", err)
	}
	q.Embedding, err = vector.New(raw.Slice(), s.dim)
	if err != nil {
		return Question{}, false, unavailable("postgres get", err)
	}
	return q, true, nil
}

// Nearest returns the closest question not in excl. The id filter is only
// added when excl is non-empty. The ORDER BY must hold the distance operator
// alone for the HNSW index to serve it; ties come back in index order.
func (s *PostgresStore) Nearest(ctx context.Context, query vector.Vector, excl Exclusion) (Match, bool, error) {
	if err := checkQuery(query, s.dim); err != nil {
		return Match{}, false, err
	}
	stmt := `
		SELECT id, question_text, topic, difficulty, embedding, embedding <-> $1 AS distance
		FROM questions`
	args := []any{pgvector.NewVector(query.Slice())}
	if !excl.IsEmpty() {
		stmt += ` WHERE id <> ALL($2::bigint[])`
		args = append(args, pq.Array(excl.IDs()))
	}
	stmt += ` ORDER BY embedding <-> $1 LIMIT 1`

	matches, err := s.query(ctx, "postgres nearest", stmt, args...)
	if err != nil {
		return Match{}, false, err
	}
	if len(matches) == 0 {
		return Match{}, false, nil
	}
	return matches[0], true, nil
}

// TopK returns up to k closest questions.
func (s *PostgresStore) TopK(ctx context.Context, query vector.Vector, k int) ([]Match, error) {
	if err := checkQuery(query, s.dim); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	return s.query(ctx, "postgres topk", `
		SELECT id, question_text, topic, difficulty, embedding, embedding <-> $1 AS distance
		FROM questions
		ORDER BY embedding <-> $1
		LIMIT $2`,
		pgvector.NewVector(query.Slice()), k)
}

func (s *PostgresStore) query(ctx context.Context, op, stmt string, args ...any) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			m   Match
			raw pgvector.Vector
		)
		if err := rows.Scan(&m.Question.ID, &m.Question.Text, &m.Question.Topic,
			&m.Question.Difficulty, &raw, &m.Distance); err != nil {
			return nil, unavailable(op+": scan", err)
		}
		if m.Question.Embedding, err = vector.New(raw.Slice(), s.dim); err != nil {
			return nil, unavailable(op+": decode embedding", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return out, nil
}

// Ping verifies the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable("postgres ping", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
