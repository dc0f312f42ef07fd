package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/catchlog/internal/repository"
)

var _ repository.Session = (*Session)(nil)

// querier is the subset of *sql.Conn and *sql.Tx the catch queries need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Session is a request-scoped handle holding one pooled connection.
type Session struct {
	queries
	conn *sql.Conn
}

// WithinTx runs fn in a transaction on the session's connection.
func (s *Session) WithinTx(ctx context.Context, fn func(repo repository.CatchRepository) error) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&queries{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("sqlite: rolling back: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// Close returns the connection to the pool.
func (s *Session) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("sqlite: releasing connection: %w", err)
	}
	return nil
}
