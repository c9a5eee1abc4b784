package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating an existing collection.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names: lowercase letters,
// numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName rejects names that could smuggle path traversal or
// injection into backend requests.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts, one per input.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query. Some models
	// embed queries differently from documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Document is one analysis record to store.
type Document struct {
	// ID uniquely identifies the record. The stores preserve it in the
	// payload so search results round-trip the caller's identifier.
	ID string

	// Content is the text that gets embedded.
	Content string

	// Metadata holds the record's stored fields. The collaborating
	// application writes fields like sourceFile, categories,
	// intelligenceType and relevanceScore here.
	Metadata map[string]interface{}
}

// SearchResult is one similarity search hit.
type SearchResult struct {
	// ID is the document identifier.
	ID string

	// Content is the document text.
	Content string

	// Score is the similarity score, higher is more similar.
	Score float32

	// Metadata holds the stored payload fields.
	Metadata map[string]interface{}
}

// CollectionInfo describes a vector collection.
type CollectionInfo struct {
	Name       string `json:"name"`
	PointCount int    `json:"point_count"`
	VectorSize int    `json:"vector_size"`
}

// Store is the interface both backends implement. All operations work
// against the store's configured default collection unless noted.
type Store interface {
	// AddDocuments embeds and stores documents, returning their IDs.
	AddDocuments(ctx context.Context, docs []Document) ([]string, error)

	// Search returns up to k results ordered by similarity, highest first.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// SearchWithFilters restricts results to documents whose metadata
	// matches every filter entry.
	SearchWithFilters(ctx context.Context, query string, k int, filters map[string]interface{}) ([]SearchResult, error)

	// DeleteDocuments removes documents by ID. Missing IDs are not an
	// error.
	DeleteDocuments(ctx context.Context, ids []string) error

	// CreateCollection creates a collection with the given vector size.
	CreateCollection(ctx context.Context, name string, vectorSize int) error

	// DeleteCollection removes a collection and all its documents.
	DeleteCollection(ctx context.Context, name string) error

	// CollectionExists reports whether a collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// GetCollectionInfo returns collection metadata, or
	// ErrCollectionNotFound.
	GetCollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// Close releases backend resources.
	Close() error
}
