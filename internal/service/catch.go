// Package service holds the catch log's business rules: input validation,
// default values, existence checks and partial-update merging.
//
// The service never touches HTTP or SQL. It takes a repository.Store and, for
// every operation, acquires one Session, does its work, and releases the
// session on every exit path.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/catchlog/internal/apperror"
	"github.com/sakif/catchlog/internal/model"
	"github.com/sakif/catchlog/internal/repository"
)

// CatchService handles business logic for logged catches.
type CatchService struct {
	store    repository.Store
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCatchService creates a CatchService backed by store.
func NewCatchService(store repository.Store, logger *slog.Logger) *CatchService {
	return &CatchService{
		store:    store,
		validate: newValidator(),
		logger:   logger,
	}
}

// withSession acquires a session, runs fn, and always releases the session.
// Errors that are already app errors (NotFound, validation) pass through;
// anything else from storage becomes a PersistenceError.
func (s *CatchService) withSession(ctx context.Context, op string, fn func(sess repository.Session) error) error {
	sess, err := s.store.Acquire(ctx)
	if err != nil {
		s.logger.Error("failed to acquire storage session",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return apperror.Persistence(op, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.logger.Warn("failed to release storage session",
				slog.String("op", op),
				slog.String("error", cerr.Error()),
			)
		}
	}()

	if err := fn(sess); err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return err
		}
		s.logger.Error("storage operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return apperror.Persistence(op, err)
	}
	return nil
}

func validateID(id int64) error {
	if id <= 0 {
		return apperror.ValidationFailed("id", "catch id must be a positive integer")
	}
	return nil
}

// blankToNil trims notes and treats an empty result as "no notes".
func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// Create validates in, builds a Catch from it and stores it. The returned
// catch carries the generated ID and CreatedAt.
func (s *CatchService) Create(ctx context.Context, in model.NewCatch) (*model.Catch, error) {
	in.Species = strings.TrimSpace(in.Species)
	in.CatchType = model.CatchType(strings.TrimSpace(string(in.CatchType)))
	in.Location = strings.TrimSpace(in.Location)
	in.Equipment = strings.TrimSpace(in.Equipment)

	if err := validateStruct(s.validate, in); err != nil {
		return nil, err
	}
	if err := model.CheckTimestampRange(in.DateCaught.Time); err != nil {
		return nil, apperror.ValidationFailed("date_caught", dateRangeMessage)
	}

	c := &model.Catch{
		Species:    in.Species,
		CatchType:  in.CatchType,
		Weight:     in.Weight,
		Location:   in.Location,
		DateCaught: in.DateCaught.Time,
		Equipment:  in.Equipment,
		Notes:      blankToNil(in.Notes),
	}

	err := s.withSession(ctx, "creating catch", func(sess repository.Session) error {
		return sess.Create(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("catch created",
		slog.Int64("id", c.ID),
		slog.String("catch_type", string(c.CatchType)),
		slog.String("species", c.Species),
	)
	return c, nil
}

// GetByID returns the catch with the given id, or an apperror.ErrNotFound error.
func (s *CatchService) GetByID(ctx context.Context, id int64) (*model.Catch, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var c *model.Catch
	err := s.withSession(ctx, "getting catch", func(sess repository.Session) error {
		var err error
		c, err = sess.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns every catch, most recent date_caught first. A non-empty
// catchType restricts the result to that type and must be a known type.
func (s *CatchService) List(ctx context.Context, catchType string) ([]model.Catch, error) {
	var opts repository.ListOptions
	if catchType = strings.TrimSpace(catchType); catchType != "" {
		ct := model.CatchType(catchType)
		if !ct.Valid() {
			return nil, apperror.ValidationFailed("catch_type", catchTypeMessage("catch_type"))
		}
		opts.CatchType = &ct
	}

	var catches []model.Catch
	err := s.withSession(ctx, "listing catches", func(sess repository.Session) error {
		var err error
		catches, err = sess.List(ctx, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	if catches == nil {
		catches = []model.Catch{}
	}
	return catches, nil
}

// Update applies the fields present in patch to the stored catch and returns
// the result. The read, merge and write happen in one transaction.
func (s *CatchService) Update(ctx context.Context, id int64, patch model.CatchPatch) (*model.Catch, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	var updated *model.Catch
	err := s.withSession(ctx, "updating catch", func(sess repository.Session) error {
		return sess.WithinTx(ctx, func(repo repository.CatchRepository) error {
			c, err := repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := applyPatch(c, patch); err != nil {
				return err
			}
			if patch.Empty() {
				updated = c
				return nil
			}
			if err := repo.Update(ctx, c); err != nil {
				return err
			}
			updated = c
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("catch updated", slog.Int64("id", id))
	return updated, nil
}

// applyPatch merges the set fields of p into c. Required fields cannot be
// cleared; optional ones can. id, created_at and catch_type may not appear
// at all.
func applyPatch(c *model.Catch, p model.CatchPatch) error {
	var fields []apperror.FieldError
	fail := func(field, msg string) {
		fields = append(fields, apperror.FieldError{Field: field, Message: msg})
	}

	required := func(field string, o model.Optional[string], dst *string) {
		if !o.Set {
			return
		}
		v := strings.TrimSpace(o.Value)
		if o.Null || v == "" {
			fail(field, fmt.Sprintf("%s is required", field))
			return
		}
		*dst = v
	}

	required("species", p.Species, &c.Species)
	required("location", p.Location, &c.Location)
	required("equipment", p.Equipment, &c.Equipment)

	// Read-only keys are refused even when they repeat the stored value.
	if p.ID.Set {
		fail("id", "id cannot be changed")
	}
	if p.CreatedAt.Set {
		fail("created_at", "created_at cannot be changed")
	}
	if p.CatchType.Set {
		fail("catch_type", "catch_type cannot be changed")
	}

	if p.Weight.Set {
		switch {
		case p.Weight.Null:
			c.Weight = nil
		case p.Weight.Value < 0:
			fail("weight", "weight must be 0 or greater")
		default:
			c.Weight = p.Weight.Ptr()
		}
	}

	if p.DateCaught.Set {
		if p.DateCaught.Null {
			fail("date_caught", "date_caught is required")
		} else if model.CheckTimestampRange(p.DateCaught.Value.Time) != nil {
			fail("date_caught", dateRangeMessage)
		} else {
			c.DateCaught = p.DateCaught.Value.Time
		}
	}

	if p.Notes.Set {
		c.Notes = blankToNil(p.Notes.Ptr())
	}

	if len(fields) > 0 {
		return apperror.ValidationFields(fields)
	}
	return nil
}

// Delete removes a catch permanently.
func (s *CatchService) Delete(ctx context.Context, id int64) error {
	if err := validateID(id); err != nil {
		return err
	}

	err := s.withSession(ctx, "deleting catch", func(sess repository.Session) error {
		return sess.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("catch deleted", slog.Int64("id", id))
	return nil
}

// Stats counts catches as of now. Nothing is cached.
func (s *CatchService) Stats(ctx context.Context) (*model.Stats, error) {
	var stats *model.Stats
	err := s.withSession(ctx, "counting catches", func(sess repository.Session) error {
		var err error
		stats, err = sess.Stats(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
