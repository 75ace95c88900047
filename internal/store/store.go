package store

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing store cannot be reached.
// Callers surface it as a retrieval failure; no partial results are
// fabricated on top of it.
var ErrUnavailable = errors.New("store unavailable")

// ErrNotFound is returned when a document or chunk does not exist.
var ErrNotFound = errors.New("not found")

// Store is the queryable store the retrieval core composes. Ingestion writes
// documents and chunks once; query-time access is read-only except for
// lazily computed vectors and content modes.
type Store interface {
	// PutDocument stores a document and its summary vector.
	PutDocument(ctx context.Context, doc Document) error

	// PutChunks stores the ordered chunk list for a document.
	PutChunks(ctx context.Context, chunks []Chunk) error

	// PutTokenEmbeddings attaches a token-embedding set to a detail chunk
	// and marks the chunk as token-indexed.
	PutTokenEmbeddings(ctx context.Context, set TokenEmbeddingSet) error

	// Document returns the document with the given id, or ErrNotFound.
	Document(ctx context.Context, id string) (*Document, error)

	// Documents lists all stored documents ordered by creation time descending.
	Documents(ctx context.Context) ([]Document, error)

	// Chunk returns the chunk with the given id, or ErrNotFound.
	Chunk(ctx context.Context, id string) (*Chunk, error)

	// DocumentChunks returns a document's chunks in index order.
	DocumentChunks(ctx context.Context, documentID string) ([]Chunk, error)

	// TokenEmbeddings returns the token-embedding set for a chunk, or
	// ErrNotFound if the chunk was not selected for precision indexing.
	TokenEmbeddings(ctx context.Context, chunkID string) (*TokenEmbeddingSet, error)

	// UpdateChunkVector fills in the dense vector of a vector-pending chunk.
	UpdateChunkVector(ctx context.Context, chunkID string, vec []float32) error

	// SetContentMode records the lazily computed content mode of a document.
	SetContentMode(ctx context.Context, documentID string, mode ContentMode) error

	// DeleteDocument removes a document, its chunks, and their token
	// embedding sets.
	DeleteDocument(ctx context.Context, id string) error

	// LexicalSearch runs a language-aware full-text query over chunk text.
	// lang is a two-letter analyzer hint ("de", "en"); empty means default.
	LexicalSearch(ctx context.Context, query, lang string, limit int, filter *Filter) ([]LexicalHit, error)

	// VectorSearch returns the chunks most similar to the query vector by
	// cosine similarity. Vector-pending chunks are never returned.
	VectorSearch(ctx context.Context, vec []float32, limit int, filter *Filter) ([]VectorHit, error)

	// Close releases underlying resources.
	Close() error
}
