package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"codeatlas/pkg/types"
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings.
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance, applying any
// pending migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Entity operations

func (s *SQLiteStorage) UpsertEntity(ctx context.Context, entity *types.Entity) error {
	if err := entity.Validate(); err != nil {
		return fmt.Errorf("invalid entity: %w", err)
	}
	query := `
		INSERT INTO entities (id, type, name, file_path, start_line, end_line,
		                      content, summary, language, signature, exported, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			name = excluded.name,
			file_path = excluded.file_path,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			content = excluded.content,
			summary = excluded.summary,
			language = excluded.language,
			signature = excluded.signature,
			exported = excluded.exported,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		entity.ID, string(entity.Type), entity.Name, entity.FilePath,
		entity.StartLine, entity.EndLine, entity.Content, entity.Summary,
		entity.Metadata.Language, entity.Metadata.Signature,
		boolToInt(entity.Metadata.Exported), time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert entity: %w", err)
	}
	return nil
}

const entityColumns = `id, type, name, file_path, start_line, end_line,
	content, summary, language, signature, exported`

func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE id = ?", id)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return entity, err
}

func (s *SQLiteStorage) ListEntities(ctx context.Context) ([]*types.Entity, error) {
	return s.queryEntities(ctx,
		"SELECT "+entityColumns+" FROM entities ORDER BY file_path, start_line")
}

func (s *SQLiteStorage) ListEntitiesByFile(ctx context.Context, filePath string) ([]*types.Entity, error) {
	return s.queryEntities(ctx,
		"SELECT "+entityColumns+" FROM entities WHERE file_path = ? ORDER BY start_line", filePath)
}

func (s *SQLiteStorage) DeleteEntitiesByFile(ctx context.Context, filePath string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE file_path = ?", filePath)
	if err != nil {
		return fmt.Errorf("failed to delete entities: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) queryEntities(ctx context.Context, query string, args ...interface{}) ([]*types.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []*types.Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row scanner) (*types.Entity, error) {
	var e types.Entity
	var typ string
	var exported int
	err := row.Scan(&e.ID, &typ, &e.Name, &e.FilePath, &e.StartLine, &e.EndLine,
		&e.Content, &e.Summary, &e.Metadata.Language, &e.Metadata.Signature, &exported)
	if err != nil {
		return nil, err
	}
	e.Type = types.EntityType(typ)
	e.Metadata.Exported = exported != 0
	return &e, nil
}

// Index entry operations

func (s *SQLiteStorage) UpsertIndexEntry(ctx context.Context, entry *IndexEntry) error {
	query := `
		INSERT INTO index_entries (path, fingerprint, mod_time, language, summary_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			mod_time = excluded.mod_time,
			language = excluded.language,
			summary_json = excluded.summary_json,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := s.db.ExecContext(ctx, query,
		entry.Path, entry.Fingerprint, entry.ModTime, entry.Language, entry.SummaryJSON, now)
	if err != nil {
		return fmt.Errorf("failed to upsert index entry: %w", err)
	}
	entry.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) GetIndexEntry(ctx context.Context, path string) (*IndexEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT path, fingerprint, mod_time, language, summary_json, updated_at
		FROM index_entries WHERE path = ?`, path)
	var e IndexEntry
	err := row.Scan(&e.Path, &e.Fingerprint, &e.ModTime, &e.Language, &e.SummaryJSON, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get index entry: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStorage) ListIndexEntries(ctx context.Context) ([]*IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, fingerprint, mod_time, language, summary_json, updated_at
		FROM index_entries ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*IndexEntry
	for rows.Next() {
		var e IndexEntry
		if err := rows.Scan(&e.Path, &e.Fingerprint, &e.ModTime, &e.Language, &e.SummaryJSON, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) DeleteIndexEntry(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM index_entries WHERE path = ?", path)
	if err != nil {
		return fmt.Errorf("failed to delete index entry: %w", err)
	}
	return nil
}

// Embedding operations

func (s *SQLiteStorage) ReplaceEmbeddings(ctx context.Context, entityID string, embeddings []*StoredEmbedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE entity_id = ?", entityID); err != nil {
		return fmt.Errorf("failed to clear embeddings: %w", err)
	}

	now := time.Now()
	for _, emb := range embeddings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (id, entity_id, model, vector, dimension, fingerprint, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			emb.ID, entityID, emb.Model, EncodeVector(emb.Vector),
			len(emb.Vector), emb.Fingerprint, now)
		if err != nil {
			return fmt.Errorf("failed to insert embedding: %w", err)
		}
		emb.CreatedAt = now
	}
	return tx.Commit()
}

func (s *SQLiteStorage) ListEmbeddingsByEntity(ctx context.Context, entityID string) ([]*StoredEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, model, vector, fingerprint, created_at
		FROM embeddings WHERE entity_id = ? ORDER BY id`, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var embeddings []*StoredEmbedding
	for rows.Next() {
		var e StoredEmbedding
		var blob []byte
		var fingerprint sql.NullString
		if err := rows.Scan(&e.ID, &e.EntityID, &e.Model, &blob, &fingerprint, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Fingerprint = fingerprint.String
		if e.Vector, err = DecodeVector(blob); err != nil {
			return nil, err
		}
		embeddings = append(embeddings, &e)
	}
	return embeddings, rows.Err()
}

func (s *SQLiteStorage) ListEmbeddingRefs(ctx context.Context) ([]EmbeddingRef, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, entity_id, COALESCE(fingerprint, '') FROM embeddings")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedding refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var refs []EmbeddingRef
	for rows.Next() {
		var r EmbeddingRef
		if err := rows.Scan(&r.ID, &r.EntityID, &r.Fingerprint); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func (s *SQLiteStorage) DeleteEmbeddingsByEntity(ctx context.Context, entityID string) (int, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM embeddings WHERE entity_id = ?", entityID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Graph persistence

func (s *SQLiteStorage) SaveGraph(ctx context.Context, nodes []*types.GraphNode, edges []*types.Relationship) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_nodes"); err != nil {
		return fmt.Errorf("failed to clear graph nodes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM graph_edges"); err != nil {
		return fmt.Errorf("failed to clear graph edges: %w", err)
	}

	for i, node := range nodes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, name, kind, file_path, in_degree, out_degree, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			node.ID, node.Name, string(node.Kind), node.FilePath,
			node.InDegree, node.OutDegree, i)
		if err != nil {
			return fmt.Errorf("failed to insert graph node: %w", err)
		}
	}

	for _, edge := range edges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO graph_edges (type, source, target, line, is_external, specifiers)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(edge.Type), edge.Source, edge.Target,
			edge.Metadata.Line, boolToInt(edge.Metadata.IsExternal),
			strings.Join(edge.Metadata.Specifiers, ","))
		if err != nil {
			return fmt.Errorf("failed to insert graph edge: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) LoadGraph(ctx context.Context) ([]*types.GraphNode, []*types.Relationship, error) {
	nodeRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, kind, file_path, in_degree, out_degree
		FROM graph_nodes ORDER BY position`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load graph nodes: %w", err)
	}
	defer func() { _ = nodeRows.Close() }()

	var nodes []*types.GraphNode
	for nodeRows.Next() {
		var n types.GraphNode
		var kind string
		if err := nodeRows.Scan(&n.ID, &n.Name, &kind, &n.FilePath, &n.InDegree, &n.OutDegree); err != nil {
			return nil, nil, err
		}
		n.Kind = types.NodeKind(kind)
		nodes = append(nodes, &n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, nil, err
	}

	edgeRows, err := s.db.QueryContext(ctx, `
		SELECT type, source, target, line, is_external, specifiers
		FROM graph_edges ORDER BY source, target, type`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load graph edges: %w", err)
	}
	defer func() { _ = edgeRows.Close() }()

	var edges []*types.Relationship
	for edgeRows.Next() {
		var e types.Relationship
		var typ, specifiers string
		var isExternal int
		if err := edgeRows.Scan(&typ, &e.Source, &e.Target, &e.Metadata.Line, &isExternal, &specifiers); err != nil {
			return nil, nil, err
		}
		e.Type = types.RelationType(typ)
		e.Metadata.IsExternal = isExternal != 0
		if specifiers != "" {
			e.Metadata.Specifiers = strings.Split(specifiers, ",")
		}
		edges = append(edges, &e)
	}
	return nodes, edges, edgeRows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
