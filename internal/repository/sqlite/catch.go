package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sakif/catchlog/internal/apperror"
	"github.com/sakif/catchlog/internal/model"
	"github.com/sakif/catchlog/internal/repository"
)

var _ repository.CatchRepository = (*queries)(nil)

const catchColumns = `id, species, catch_type, weight, location, date_caught, equipment, notes, created_at`

// queries implements the catch primitives against either a pinned connection
// or a transaction.
type queries struct {
	q querier
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatch(row rowScanner) (model.Catch, error) {
	var (
		c          model.Catch
		catchType  string
		weight     sql.NullFloat64
		notes      sql.NullString
		dateCaught int64
		createdAt  int64
	)
	if err := row.Scan(
		&c.ID, &c.Species, &catchType, &weight, &c.Location,
		&dateCaught, &c.Equipment, &notes, &createdAt,
	); err != nil {
		return model.Catch{}, err
	}

	c.CatchType = model.CatchType(catchType)
	if weight.Valid {
		w := weight.Float64
		c.Weight = &w
	}
	if notes.Valid {
		n := notes.String
		c.Notes = &n
	}
	c.DateCaught = fromUnixNano(dateCaught)
	c.CreatedAt = fromUnixNano(createdAt)
	return c, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func notFound(id int64) error {
	return apperror.NotFound("catch", strconv.FormatInt(id, 10))
}

// Create inserts c, then sets its ID and CreatedAt. Times are normalised to
// UTC at nanosecond precision, which is exactly what a later read returns.
func (r *queries) Create(ctx context.Context, c *model.Catch) error {
	c.CreatedAt = fromUnixNano(time.Now().UnixNano())
	c.DateCaught = fromUnixNano(c.DateCaught.UnixNano())

	result, err := r.q.ExecContext(ctx,
		`INSERT INTO catches (species, catch_type, weight, location, date_caught, equipment, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Species,
		string(c.CatchType),
		nullFloat(c.Weight),
		c.Location,
		c.DateCaught.UnixNano(),
		c.Equipment,
		nullString(c.Notes),
		c.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating catch: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new catch id: %w", err)
	}
	c.ID = id
	return nil
}

// GetByID returns the catch with the given id, or a NotFound error.
func (r *queries) GetByID(ctx context.Context, id int64) (*model.Catch, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+catchColumns+` FROM catches WHERE id = ?`, id)

	c, err := scanCatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("sqlite: getting catch %d: %w", id, err)
	}
	return &c, nil
}

// List returns catches newest date_caught first; id breaks ties so the order
// is stable.
func (r *queries) List(ctx context.Context, opts repository.ListOptions) ([]model.Catch, error) {
	query := `SELECT ` + catchColumns + ` FROM catches`
	var args []any
	if opts.CatchType != nil {
		query += ` WHERE catch_type = ?`
		args = append(args, string(*opts.CatchType))
	}
	query += ` ORDER BY date_caught DESC, id DESC`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing catches: %w", err)
	}
	defer rows.Close()

	catches := make([]model.Catch, 0)
	for rows.Next() {
		c, err := scanCatch(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning catch row: %w", err)
		}
		catches = append(catches, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating catches: %w", err)
	}

	return catches, nil
}

// Update writes every mutable column of c. catch_type, id and created_at are
// left alone.
func (r *queries) Update(ctx context.Context, c *model.Catch) error {
	c.DateCaught = fromUnixNano(c.DateCaught.UnixNano())

	result, err := r.q.ExecContext(ctx,
		`UPDATE catches
		 SET species = ?, weight = ?, location = ?, date_caught = ?, equipment = ?, notes = ?
		 WHERE id = ?`,
		c.Species,
		nullFloat(c.Weight),
		c.Location,
		c.DateCaught.UnixNano(),
		c.Equipment,
		nullString(c.Notes),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating catch %d: %w", c.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound(c.ID)
	}
	return nil
}

// Delete removes the catch permanently.
func (r *queries) Delete(ctx context.Context, id int64) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM catches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting catch %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound(id)
	}
	return nil
}

// Stats counts all catches and each type in one statement, so the three
// numbers always come from the same snapshot.
func (r *queries) Stats(ctx context.Context) (*model.Stats, error) {
	var s model.Stats
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(catch_type = 'hunting'), 0),
		        COALESCE(SUM(catch_type = 'fishing'), 0)
		 FROM catches`,
	).Scan(&s.Total, &s.Hunting, &s.Fishing)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting catches: %w", err)
	}
	return &s, nil
}
