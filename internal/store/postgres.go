package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/sieve/internal/ir"
)

// Querier is the subset of a pgx pool the executor needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres executes statements through pgx.
type Postgres struct {
	q     Querier
	close func()
}

var _ Executor = (*Postgres)(nil)

// NewPostgres wraps an existing pool or connection.
func NewPostgres(q Querier) *Postgres {
	return &Postgres{q: q}
}

// ConnectPostgres opens a pool for url and verifies it.
func ConnectPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Postgres{q: pool, close: pool.Close}, nil
}

// Close releases the pool if this executor opened it.
func (p *Postgres) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}

// Query runs a statement and converts every row.
func (p *Postgres) Query(ctx context.Context, query string, args ...any) ([]ir.IRObject, error) {
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	result := []ir.IRObject{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("values: %w", err)
		}
		obj, err := rowObject(columns, values)
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return result, nil
}
