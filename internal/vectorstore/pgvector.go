package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

// PgvectorStore is a Store backed by PostgreSQL with the pgvector
// extension. Each embedding model gets its own table, named like the
// collections of the other platforms, with an HNSW cosine index.
type PgvectorStore struct {
	base

	cfg    *config.PgvectorConfig
	logger *zap.Logger

	pool  *pgxpool.Pool
	table string
}

func newPgvectorStore(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (Store, error) {
	pc := cfg.Vector.Pgvector
	if pc == nil {
		return nil, fmt.Errorf("%w: pgvector configuration is missing", ErrInvalidConfig)
	}
	if pc.Host == "" || pc.DB == "" {
		return nil, fmt.Errorf("%w: pgvector host and db are required", ErrInvalidConfig)
	}

	return &PgvectorStore{
		base:   newBase(embedder),
		cfg:    pc,
		logger: logger,
	}, nil
}

// Init connects to PostgreSQL, enables the vector extension and ensures
// the model-specific table and its indexes exist.
func (s *PgvectorStore) Init(ctx context.Context) error {
	poolCfg, err := pgxpool.ParseConfig(s.cfg.DSN())
	if err != nil {
		return fmt.Errorf("%w: parsing connection string: %v", ErrInvalidConfig, err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	s.pool = pool

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("enabling vector extension: %w", err)
	}

	dimension, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	s.table = s.collectionName(dimension)
	// Table names are interpolated below; the collection name grammar
	// only allows lowercase alphanumerics and underscores.
	if err := ValidateCollectionName(s.table); err != nil {
		return err
	}

	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			content text NOT NULL,
			embedding vector(%d) NOT NULL,
			repo_id text NOT NULL,
			file_id text NOT NULL,
			relative_path text NOT NULL
		)`, s.table, dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_repo_id_idx ON %s (repo_id)", s.table, s.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_file_id_idx ON %s (file_id)", s.table, s.table),
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("preparing table %s: %w", s.table, err)
		}
	}

	s.logger.Info("pgvector table ready",
		zap.String("table", s.table),
		zap.Int("dimension", dimension))
	return nil
}

// Upsert inserts or replaces documents, keyed by document ID.
func (s *PgvectorStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, content, embedding, repo_id, file_id, relative_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			repo_id = EXCLUDED.repo_id,
			file_id = EXCLUDED.file_id,
			relative_path = EXCLUDED.relative_path`, s.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		batch.Queue(query,
			doc.ID, doc.Content, pgvector.NewVector(doc.Vector),
			doc.Meta.RepoID, doc.Meta.FileID, doc.Meta.RelativePath)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upserting into %s: %w", s.table, err)
		}
	}
	return nil
}

// Meta returns the metadata of all files indexed for a repository.
func (s *PgvectorStore) Meta(ctx context.Context, repoID string) ([]DocumentMeta, error) {
	query := fmt.Sprintf(`SELECT DISTINCT ON (file_id) repo_id, file_id, relative_path
		FROM %s WHERE repo_id = $1 ORDER BY file_id`, s.table)

	rows, err := s.pool.Query(ctx, query, repoID)
	if err != nil {
		return nil, fmt.Errorf("listing repo %s: %w", repoID, err)
	}
	defer rows.Close()

	var metas []DocumentMeta
	for rows.Next() {
		var meta DocumentMeta
		if err := rows.Scan(&meta.RepoID, &meta.FileID, &meta.RelativePath); err != nil {
			return nil, fmt.Errorf("scanning metadata row: %w", err)
		}
		metas = append(metas, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata rows: %w", err)
	}
	return metas, nil
}

// Drop removes everything indexed for a repository.
func (s *PgvectorStore) Drop(ctx context.Context, repoID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE repo_id = $1", s.table)
	if _, err := s.pool.Exec(ctx, query, repoID); err != nil {
		return fmt.Errorf("dropping repo %s: %w", repoID, err)
	}
	return nil
}

// Delete removes the documents of the given files from a repository.
func (s *PgvectorStore) Delete(ctx context.Context, repoID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE repo_id = $1 AND file_id = ANY($2)", s.table)
	if _, err := s.pool.Exec(ctx, query, repoID, fileIDs); err != nil {
		return fmt.Errorf("deleting files from repo %s: %w", repoID, err)
	}
	return nil
}

// SearchByVector performs similarity search within a repository using the
// cosine distance operator.
func (s *PgvectorStore) SearchByVector(ctx context.Context, repoID string, fileIDs []string, vector []float32, topK int) ([]Document, error) {
	args := []any{repoID, pgvector.NewVector(vector)}
	fileFilter := ""
	if len(fileIDs) > 0 {
		fileFilter = " AND file_id = ANY($3)"
		args = append(args, fileIDs)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`SELECT id, content, repo_id, file_id, relative_path,
			1 - (embedding <=> $2) AS score
		FROM %s WHERE repo_id = $1%s
		ORDER BY embedding <=> $2 LIMIT $%d`, s.table, fileFilter, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", s.table, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var score float64
		err := rows.Scan(&doc.ID, &doc.Content,
			&doc.Meta.RepoID, &doc.Meta.FileID, &doc.Meta.RelativePath, &score)
		if err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		doc.Score = float32(score)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search rows: %w", err)
	}
	return docs, nil
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Ensure PgvectorStore implements Store.
var _ Store = (*PgvectorStore)(nil)
