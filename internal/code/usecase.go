package code

import "context"

// InsertFunc writes a record carrying code. It must return an error wrapping
// model.ErrWriteConflict when code is already taken.
type InsertFunc func(ctx context.Context, code string) error

type UseCase interface {
	NextCode(ctx context.Context, series Series) (string, error)
	CreateWithCode(ctx context.Context, series Series, insert InsertFunc) (string, error)
}
