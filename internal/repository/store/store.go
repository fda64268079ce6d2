// Package store persists documents and their evaluations in SQLite.
//
// Writes are atomic per call. Document inserts are idempotent: the first
// write of a doc_id wins and every later write (including a concurrent one
// racing on the same id) observes stored=false via the unique constraint.
// Evaluations always insert a new row; re-scoring is allowed, duplicate
// storage is not.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/intelforge/deepsearch/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id       TEXT PRIMARY KEY,
	query        TEXT NOT NULL,
	title        TEXT NOT NULL,
	content_kind TEXT NOT NULL,
	content      TEXT NOT NULL,
	metadata     TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS evaluations (
	evaluation_id   TEXT PRIMARY KEY,
	doc_id          TEXT NOT NULL REFERENCES documents(doc_id),
	query           TEXT NOT NULL,
	relevance_score INTEGER NOT NULL CHECK (relevance_score BETWEEN 0 AND 10),
	insight_score   INTEGER NOT NULL CHECK (insight_score BETWEEN 0 AND 10),
	evaluation_text TEXT NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evaluations_doc ON evaluations(doc_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_query ON evaluations(query);
`

// Store is the SQLite-backed document and evaluation repository.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at path and ensures the schema.
// Foreign keys are enforced so evaluations can never reference an
// unpersisted document.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_loc=UTC", path)
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type documentRow struct {
	DocID       string    `db:"doc_id"`
	Query       string    `db:"query"`
	Title       string    `db:"title"`
	ContentKind string    `db:"content_kind"`
	Content     string    `db:"content"`
	Metadata    string    `db:"metadata"`
	CreatedAt   time.Time `db:"created_at"`
}

type evaluationRow struct {
	EvaluationID   string    `db:"evaluation_id"`
	DocID          string    `db:"doc_id"`
	Query          string    `db:"query"`
	RelevanceScore int       `db:"relevance_score"`
	InsightScore   int       `db:"insight_score"`
	EvaluationText string    `db:"evaluation_text"`
	CreatedAt      time.Time `db:"created_at"`
}

// Put inserts a document if its doc_id is unknown. Returns stored=false and
// performs no mutation when the id already exists.
func (s *Store) Put(ctx context.Context, doc domain.Document) (bool, error) {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return false, &domain.PersistenceError{Op: "put document", Err: err}
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (doc_id, query, title, content_kind, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(doc_id) DO NOTHING`,
		doc.DocID, doc.Query, doc.Title, string(doc.Content.Kind), doc.Content.Raw, string(meta), createdAt,
	)
	if err != nil {
		return false, &domain.PersistenceError{Op: "put document", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &domain.PersistenceError{Op: "put document", Err: err}
	}
	return n > 0, nil
}

// Get returns a document by id.
func (s *Store) Get(ctx context.Context, docID string) (domain.Document, error) {
	var row documentRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM documents WHERE doc_id = ?`, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, &domain.PersistenceError{Op: "get document", Err: err}
	}
	return rowToDocument(row)
}

// PutEvaluation inserts a new evaluation row and returns its generated id.
// Scores are clamped defensively; the foreign key rejects evaluations of
// documents that were never persisted.
func (s *Store) PutEvaluation(ctx context.Context, ev domain.Evaluation) (string, error) {
	id := uuid.NewString()
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO evaluations (evaluation_id, doc_id, query, relevance_score, insight_score, evaluation_text, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, ev.DocID, ev.Query,
		domain.ClampScore(ev.RelevanceScore), domain.ClampScore(ev.InsightScore),
		ev.EvaluationText, createdAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return "", fmt.Errorf("evaluation references %s: %w", ev.DocID, domain.ErrDocumentNotFound)
		}
		return "", &domain.PersistenceError{Op: "put evaluation", Err: err}
	}
	return id, nil
}

// ListEvaluationsByDoc returns all evaluations of a document, oldest first.
func (s *Store) ListEvaluationsByDoc(ctx context.Context, docID string) ([]domain.Evaluation, error) {
	return s.listEvaluations(ctx,
		`SELECT * FROM evaluations WHERE doc_id = ? ORDER BY created_at, evaluation_id`, docID)
}

// ListEvaluationsByQuery returns all evaluations recorded under a query,
// oldest first.
func (s *Store) ListEvaluationsByQuery(ctx context.Context, query string) ([]domain.Evaluation, error) {
	return s.listEvaluations(ctx,
		`SELECT * FROM evaluations WHERE query = ? ORDER BY created_at, evaluation_id`, query)
}

func (s *Store) listEvaluations(ctx context.Context, q string, arg string) ([]domain.Evaluation, error) {
	var rows []evaluationRow
	if err := s.db.SelectContext(ctx, &rows, q, arg); err != nil {
		return nil, &domain.PersistenceError{Op: "list evaluations", Err: err}
	}
	out := make([]domain.Evaluation, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.Evaluation{
			EvaluationID:   r.EvaluationID,
			DocID:          r.DocID,
			Query:          r.Query,
			RelevanceScore: r.RelevanceScore,
			InsightScore:   r.InsightScore,
			EvaluationText: r.EvaluationText,
			CreatedAt:      r.CreatedAt,
		})
	}
	return out, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`); err != nil {
		return 0, &domain.PersistenceError{Op: "count documents", Err: err}
	}
	return n, nil
}

func rowToDocument(row documentRow) (domain.Document, error) {
	var meta map[string]string
	if err := json.Unmarshal([]byte(row.Metadata), &meta); err != nil {
		return domain.Document{}, &domain.PersistenceError{Op: "decode metadata", Err: err}
	}
	return domain.Document{
		DocID:     row.DocID,
		Query:     row.Query,
		Title:     row.Title,
		Content:   domain.Content{Kind: domain.ContentKind(row.ContentKind), Raw: row.Content},
		Metadata:  meta,
		CreatedAt: row.CreatedAt,
	}, nil
}
