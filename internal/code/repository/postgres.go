package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
)

var identifier = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ListCodes(ctx context.Context, table, column, prefix string) ([]string, error) {
	if !identifier.MatchString(table) || !identifier.MatchString(column) {
		return nil, fmt.Errorf("invalid code column %q.%q", table, column)
	}

	query := fmt.Sprintf(`SELECT %[2]s FROM %[1]s WHERE %[2]s IS NOT NULL AND starts_with(%[2]s, $1)`, table, column)
	var codes []string
	if err := r.DB.SelectContext(ctx, &codes, query, prefix); err != nil {
		return nil, fmt.Errorf("list %s codes: %w", table, err)
	}
	return codes, nil
}
