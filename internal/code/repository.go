package code

import "context"

type Repository interface {
	// ListCodes returns every non-null value of column in table that starts
	// with prefix.
	ListCodes(ctx context.Context, table, column, prefix string) ([]string, error)
}

// Counter is an atomic per-key sequence.
type Counter interface {
	// Raise sets key to floor unless it already holds a higher value.
	Raise(ctx context.Context, key string, floor int64) error
	Exists(ctx context.Context, key string) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
}
