package repository

import (
	"context"
	"fmt"
)

// Open returns the collection called name on store. indexFields are honoured
// by MongoDB only.
func Open[T any](ctx context.Context, store Store, name string, indexFields ...string) (Collection[T], error) {
	switch s := store.(type) {
	case *MongoStore:
		return NewMongoCollection[T](ctx, s, name, indexFields...), nil
	case *SQLStore:
		c, err := NewSQLCollection[T](ctx, s, name)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported store %T", store)
	}
}

// NewStore opens the store selected by kind.
func NewStore(ctx context.Context, kind, mongoURI, mongoDatabase, dsn string) (Store, error) {
	switch kind {
	case "mongodb", "mongo":
		s, err := NewMongoStore(ctx, mongoURI, mongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := NewSQLStore(ctx, kind, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
