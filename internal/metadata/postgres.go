package metadata

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres reads image_path, description and artist from table into a Table.
// The pool is closed before returning; the table is held in memory like the CSV source.
func LoadPostgres(ctx context.Context, connString, table string) (*Table, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT image_path, COALESCE(description, ''), COALESCE(artist, '')
		FROM %s
		ORDER BY ctid`,
		pgx.Identifier{table}.Sanitize())

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query metadata: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.Filename, &r.Title, &r.Artist)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan metadata rows: %w", err)
	}

	return NewTable(records), nil
}
