package repository

import (
	"context"
	"time"
)

// Filter narrows a Find. The zero value matches every document.
type Filter struct {
	// Field and Since select documents whose date Field is >= Since.
	// Documents where Field is null or missing never match.
	Field string
	Since time.Time

	// Newest returns documents in reverse insertion order.
	Newest bool
	// Limit caps the result; 0 means no limit.
	Limit int
}

// Collection is a named set of documents of one type. DeleteMany followed by
// InsertMany is how mirrors are replaced; the pair is not atomic.
type Collection[T any] interface {
	Find(ctx context.Context, f Filter) ([]T, error)
	Count(ctx context.Context) (int64, error)
	// DeleteMany removes every document and reports how many were removed.
	DeleteMany(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, docs []T) error
}

// Store owns the connection behind a set of collections.
type Store interface {
	Kind() string
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
