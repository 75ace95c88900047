package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	chromem "github.com/philippgille/chromem-go"

	// Register the language analyzers used for query-side stemming.
	_ "github.com/blevesearch/bleve/analysis/lang/de"
	_ "github.com/blevesearch/bleve/analysis/lang/en"

	_ "modernc.org/sqlite"
)

const denseCollection = "chunks"

// LocalStore implements Store on top of three embedded engines: SQLite for
// document and chunk metadata, bleve for lexical full-text ranking, and
// chromem-go for dense vector similarity. All three see the same chunk ids.
type LocalStore struct {
	dir string // empty for a fully in-memory store

	db    *sql.DB
	lex   bleve.Index
	dense *chromem.Collection
	cdb   *chromem.DB

	mu       sync.RWMutex
	docMeta  map[string]docMeta // document id -> metadata for post-filtering
	chunkDoc map[string]string  // chunk id -> document id
}

type docMeta struct {
	createdAt time.Time
	source    SourceKind
}

// OpenLocal opens (or creates) a local store rooted at dir. An empty dir
// yields an in-memory store, which is what the tests use.
func OpenLocal(dir string) (*LocalStore, error) {
	s := &LocalStore{
		dir:      dir,
		docMeta:  make(map[string]docMeta),
		chunkDoc: make(map[string]string),
	}

	dsn := ":memory:"
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
		dsn = filepath.Join(dir, "recall.db") +
			"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store database: %w", err)
	}
	if dir == "" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	s.db = db

	if err := s.openLexical(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.openDense(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.loadMeta(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) openLexical() error {
	mapping := bleve.NewIndexMapping()
	chunkMapping := bleve.NewDocumentMapping()
	chunkMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())
	kw := bleve.NewTextFieldMapping()
	kw.Analyzer = keyword.Name
	for _, f := range []string{"speaker", "tier", "document_id", "source"} {
		chunkMapping.AddFieldMappingsAt(f, kw)
	}
	mapping.DefaultMapping = chunkMapping

	if s.dir == "" {
		idx, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return fmt.Errorf("creating lexical index: %w", err)
		}
		s.lex = idx
		return nil
	}

	path := filepath.Join(s.dir, "lexical.bleve")
	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, mapping)
	}
	if err != nil {
		return fmt.Errorf("opening lexical index: %w", err)
	}
	s.lex = idx
	return nil
}

func (s *LocalStore) openDense() error {
	s.cdb = chromem.NewDB()

	if s.dir != "" {
		path := filepath.Join(s.dir, "dense.gob.gz")
		if _, err := os.Stat(path); err == nil {
			if err := s.cdb.ImportFromFile(path, ""); err != nil {
				return fmt.Errorf("loading dense index: %w", err)
			}
		}
	}

	// Vectors are always supplied precomputed; chromem must never embed.
	col, err := s.cdb.GetOrCreateCollection(denseCollection, nil, rejectEmbedding)
	if err != nil {
		return fmt.Errorf("creating dense collection: %w", err)
	}
	s.dense = col
	return nil
}

func rejectEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, errors.New("dense vectors must be precomputed by the embedder")
}

func (s *LocalStore) loadMeta() error {
	rows, err := s.db.Query(`SELECT id, source, created_at FROM documents`)
	if err != nil {
		return fmt.Errorf("loading document metadata: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id, source string
		var created time.Time
		if err := rows.Scan(&id, &source, &created); err != nil {
			return err
		}
		s.docMeta[id] = docMeta{createdAt: created, source: SourceKind(source)}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	crows, err := s.db.Query(`SELECT id, document_id FROM chunks`)
	if err != nil {
		return fmt.Errorf("loading chunk metadata: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var id, docID string
		if err := crows.Scan(&id, &docID); err != nil {
			return err
		}
		s.chunkDoc[id] = docID
	}
	return crows.Err()
}

func (s *LocalStore) PutDocument(ctx context.Context, doc Document) error {
	if doc.ContentMode == "" {
		doc.ContentMode = ModeChunked
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, source, duration, created_at, summary, summary_vec, full_text, content_mode)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, source=excluded.source, duration=excluded.duration,
			summary=excluded.summary, summary_vec=excluded.summary_vec,
			full_text=excluded.full_text, content_mode=excluded.content_mode`,
		doc.ID, doc.Title, string(doc.Source), doc.Duration, doc.CreatedAt.UTC(),
		doc.Summary, encodeVector(doc.SummaryVec), doc.FullText, string(doc.ContentMode))
	if err != nil {
		return fmt.Errorf("storing document %s: %w", doc.ID, err)
	}

	s.mu.Lock()
	s.docMeta[doc.ID] = docMeta{createdAt: doc.CreatedAt.UTC(), source: doc.Source}
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) PutChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}
	defer tx.Rollback()

	batch := s.lex.NewBatch()
	var denseDocs []chromem.Document

	for _, c := range chunks {
		var spanStart, spanEnd any
		if c.Span != nil {
			spanStart, spanEnd = c.Span.Start, c.Span.End
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chunks (id, document_id, idx, tier, span_start, span_end, speaker, text,
				token_count, importance, parent_idx, vector, has_token_vectors)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.Index, string(c.Tier), spanStart, spanEnd, c.Speaker, c.Text,
			c.TokenCount, c.Importance, c.ParentIndex, encodeVector(c.Vector), boolToInt(c.HasTokenVectors))
		if err != nil {
			return fmt.Errorf("storing chunk %s: %w", c.ID, err)
		}

		if err := batch.Index(c.ID, s.lexFields(c)); err != nil {
			return fmt.Errorf("indexing chunk %s: %w", c.ID, err)
		}
		if c.HasVector() {
			denseDocs = append(denseDocs, s.denseDoc(c))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storing chunks: %w", err)
	}
	if err := s.lex.Batch(batch); err != nil {
		return fmt.Errorf("indexing chunks: %w", err)
	}
	if len(denseDocs) > 0 {
		if err := s.dense.AddDocuments(ctx, denseDocs, 1); err != nil {
			return fmt.Errorf("adding dense vectors: %w", err)
		}
	}

	s.mu.Lock()
	for _, c := range chunks {
		s.chunkDoc[c.ID] = c.DocumentID
	}
	s.mu.Unlock()
	return nil
}

func (s *LocalStore) lexFields(c Chunk) map[string]any {
	return map[string]any{
		"text":        c.Text,
		"speaker":     c.Speaker,
		"tier":        string(c.Tier),
		"document_id": c.DocumentID,
		"source":      s.docSource(c.DocumentID),
	}
}

func (s *LocalStore) denseDoc(c Chunk) chromem.Document {
	return chromem.Document{
		ID:        c.ID,
		Embedding: c.Vector,
		Content:   c.Text,
		Metadata: map[string]string{
			"speaker":     c.Speaker,
			"tier":        string(c.Tier),
			"document_id": c.DocumentID,
			"source":      s.docSource(c.DocumentID),
		},
	}
}

func (s *LocalStore) docSource(docID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return string(s.docMeta[docID].source)
}

func (s *LocalStore) PutTokenEmbeddings(ctx context.Context, set TokenEmbeddingSet) error {
	if len(set.Tokens) != len(set.Vectors) {
		return fmt.Errorf("token embedding set for %s: %d tokens but %d vectors",
			set.ChunkID, len(set.Tokens), len(set.Vectors))
	}

	tokens, err := json.Marshal(set.Tokens)
	if err != nil {
		return fmt.Errorf("encoding tokens for %s: %w", set.ChunkID, err)
	}
	blob, dim, err := encodeMatrix(set.Vectors)
	if err != nil {
		return fmt.Errorf("encoding token vectors for %s: %w", set.ChunkID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storing token embeddings: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO token_embeddings (chunk_id, tokens, dim, vectors) VALUES (?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET tokens=excluded.tokens, dim=excluded.dim, vectors=excluded.vectors`,
		set.ChunkID, string(tokens), dim, blob); err != nil {
		return fmt.Errorf("storing token embeddings for %s: %w", set.ChunkID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE chunks SET has_token_vectors = 1 WHERE id = ?`, set.ChunkID); err != nil {
		return fmt.Errorf("flagging chunk %s: %w", set.ChunkID, err)
	}
	return tx.Commit()
}

func (s *LocalStore) Document(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, source, duration, created_at, summary, summary_vec, full_text, content_mode
		FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

func (s *LocalStore) Documents(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, source, duration, created_at, summary, summary_vec, full_text, content_mode
		FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var source, mode string
	var summaryVec []byte
	err := row.Scan(&doc.ID, &doc.Title, &source, &doc.Duration, &doc.CreatedAt,
		&doc.Summary, &summaryVec, &doc.FullText, &mode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	doc.Source = SourceKind(source)
	doc.ContentMode = ContentMode(mode)
	doc.SummaryVec = decodeVector(summaryVec)
	return &doc, nil
}

func (s *LocalStore) Chunk(ctx context.Context, id string) (*Chunk, error) {
	row := s.db.QueryRowContext(ctx, chunkSelect+` WHERE id = ?`, id)
	return scanChunk(row)
}

func (s *LocalStore) DocumentChunks(ctx context.Context, documentID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, chunkSelect+` WHERE document_id = ? ORDER BY idx`, documentID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks for %s: %w", documentID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

const chunkSelect = `
	SELECT id, document_id, idx, tier, span_start, span_end, speaker, text,
		token_count, importance, parent_idx, vector, has_token_vectors
	FROM chunks`

func scanChunk(row rowScanner) (*Chunk, error) {
	var c Chunk
	var tier string
	var spanStart, spanEnd sql.NullFloat64
	var vec []byte
	var hasTokens int
	err := row.Scan(&c.ID, &c.DocumentID, &c.Index, &tier, &spanStart, &spanEnd, &c.Speaker,
		&c.Text, &c.TokenCount, &c.Importance, &c.ParentIndex, &vec, &hasTokens)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading chunk: %w", err)
	}
	c.Tier = Tier(tier)
	if spanStart.Valid && spanEnd.Valid {
		c.Span = &Span{Start: spanStart.Float64, End: spanEnd.Float64}
	}
	c.Vector = decodeVector(vec)
	c.HasTokenVectors = hasTokens != 0
	return &c, nil
}

func (s *LocalStore) TokenEmbeddings(ctx context.Context, chunkID string) (*TokenEmbeddingSet, error) {
	var tokensJSON string
	var dim int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT tokens, dim, vectors FROM token_embeddings WHERE chunk_id = ?`, chunkID).
		Scan(&tokensJSON, &dim, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading token embeddings for %s: %w", chunkID, err)
	}

	set := &TokenEmbeddingSet{ChunkID: chunkID, Vectors: decodeMatrix(blob, dim)}
	if err := json.Unmarshal([]byte(tokensJSON), &set.Tokens); err != nil {
		return nil, fmt.Errorf("decoding tokens for %s: %w", chunkID, err)
	}
	return set, nil
}

func (s *LocalStore) UpdateChunkVector(ctx context.Context, chunkID string, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector for chunk %s", chunkID)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE chunks SET vector = ? WHERE id = ?`,
		encodeVector(vec), chunkID)
	if err != nil {
		return fmt.Errorf("updating vector for %s: %w", chunkID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	c, err := s.Chunk(ctx, chunkID)
	if err != nil {
		return err
	}
	return s.dense.AddDocuments(ctx, []chromem.Document{s.denseDoc(*c)}, 1)
}

func (s *LocalStore) SetContentMode(ctx context.Context, documentID string, mode ContentMode) error {
	_, err := s.db.ExecContext(ctx, `UPDATE documents SET content_mode = ? WHERE id = ?`,
		string(mode), documentID)
	if err != nil {
		return fmt.Errorf("updating content mode for %s: %w", documentID, err)
	}
	return nil
}

func (s *LocalStore) DeleteDocument(ctx context.Context, id string) error {
	chunks, err := s.DocumentChunks(ctx, id)
	if err != nil {
		return err
	}

	// Foreign keys cascade chunk and token-embedding rows.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}

	batch := s.lex.NewBatch()
	for _, c := range chunks {
		batch.Delete(c.ID)
	}
	if err := s.lex.Batch(batch); err != nil {
		return fmt.Errorf("deleting lexical entries for %s: %w", id, err)
	}
	if err := s.dense.Delete(ctx, map[string]string{"document_id": id}, nil); err != nil {
		return fmt.Errorf("deleting dense vectors for %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.docMeta, id)
	for _, c := range chunks {
		delete(s.chunkDoc, c.ID)
	}
	s.mu.Unlock()
	return nil
}

// Close persists the dense index (when the store is file-backed) and
// releases all resources.
func (s *LocalStore) Close() error {
	var firstErr error
	if s.dir != "" && s.cdb != nil {
		if err := s.cdb.ExportToFile(filepath.Join(s.dir, "dense.gob.gz"), true, ""); err != nil {
			firstErr = fmt.Errorf("persisting dense index: %w", err)
		}
	}
	if s.lex != nil {
		if err := s.lex.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// schema contains the full store schema. New tables are added here.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL CHECK(source IN ('conversation','video','note')),
    duration REAL NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL,
    summary TEXT NOT NULL DEFAULT '',
    summary_vec BLOB,
    full_text TEXT NOT NULL DEFAULT '',
    content_mode TEXT NOT NULL DEFAULT 'chunked' CHECK(content_mode IN ('chunked','full','hybrid'))
);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    idx INTEGER NOT NULL,
    tier TEXT NOT NULL CHECK(tier IN ('summary','topic','detail')),
    span_start REAL,
    span_end REAL,
    speaker TEXT NOT NULL DEFAULT '',
    text TEXT NOT NULL,
    token_count INTEGER NOT NULL DEFAULT 0,
    importance REAL NOT NULL DEFAULT 0.5,
    parent_idx INTEGER NOT NULL DEFAULT -1,
    vector BLOB,
    has_token_vectors INTEGER NOT NULL DEFAULT 0,
    UNIQUE(document_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_tier ON chunks(tier);

CREATE TABLE IF NOT EXISTS token_embeddings (
    chunk_id TEXT PRIMARY KEY REFERENCES chunks(id) ON DELETE CASCADE,
    tokens TEXT NOT NULL,
    dim INTEGER NOT NULL,
    vectors BLOB NOT NULL
);
`
