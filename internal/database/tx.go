package database

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"

	"github.com/koustreak/aiodb/internal/errs"
	"github.com/koustreak/aiodb/internal/taskctx"
)

// Transaction is one nesting level of a task's transaction scope. The
// outermost level owns the real BEGIN/COMMIT/ROLLBACK statements; inner
// levels only move the depth counter — databases do not support true
// nested transactions, so nesting is expressed with savepoints (see Atomic).
//
// Exactly one of Commit or Rollback must be called; both pop the depth and
// release the reserved connection on the 1→0 transition, on every path.
type Transaction struct {
	h *Handle
}

// Begin enters a transaction scope for the calling task. It requires a
// task handle in ctx (taskctx.With), increments the task's depth, and on
// the outermost level issues BEGIN. If BEGIN fails the depth increment is
// undone before the error propagates.
func (h *Handle) Begin(ctx context.Context) (*Transaction, error) {
	if _, ok := taskctx.Current(ctx); !ok {
		return nil, errs.New(errs.ErrKindNoTask, "transaction must run within a task")
	}
	if err := h.PushTransaction(ctx); err != nil {
		return nil, err
	}
	t := &Transaction{h: h}
	if h.TransactionDepth(ctx) == 1 {
		if err := h.runNoResult(ctx, "BEGIN"); err != nil {
			t.pop(ctx)
			return nil, err
		}
	}
	return t, nil
}

// Commit ends the scope without an error. On the outermost level it issues
// COMMIT; a failed COMMIT triggers an automatic ROLLBACK and the commit
// error is returned, joined with the rollback error if that fails too.
// The depth pop runs last, unconditionally.
func (t *Transaction) Commit(ctx context.Context) error {
	var err error
	if t.h.TransactionDepth(ctx) == 1 {
		err = t.h.runNoResult(ctx, "COMMIT")
		if err != nil {
			if rbErr := t.h.runNoResult(ctx, "ROLLBACK"); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
		}
	}
	t.pop(ctx)
	return err
}

// Rollback ends the scope after an error, undoing the whole transaction.
// The depth pop runs last, unconditionally.
func (t *Transaction) Rollback(ctx context.Context) error {
	err := t.h.runNoResult(ctx, "ROLLBACK")
	t.pop(ctx)
	return err
}

// pop decrements depth unless it already hit zero (the database may have
// gone away mid-scope and torn the record down).
func (t *Transaction) pop(ctx context.Context) {
	if t.h.TransactionDepth(ctx) > 0 {
		_ = t.h.PopTransaction(ctx)
	}
}

// Savepoint is a named intermediate rollback point inside an open
// transaction.
type Savepoint struct {
	h      *Handle
	id     string
	quoted string
}

// NewSavepoint creates a savepoint with a fresh unique identifier (or the
// caller-supplied sid when non-empty) and issues SAVEPOINT. The identifier
// is quoted per the handle's dialect.
func (h *Handle) NewSavepoint(ctx context.Context, sid string) (*Savepoint, error) {
	if sid == "" {
		u := uuid.New()
		sid = "s" + hex.EncodeToString(u[:])
	}
	sp := &Savepoint{h: h, id: sid, quoted: h.dialect.QuoteIdent(sid)}
	if err := h.runNoResult(ctx, "SAVEPOINT "+sp.quoted); err != nil {
		return nil, err
	}
	return sp, nil
}

// ID returns the savepoint identifier.
func (s *Savepoint) ID() string { return s.id }

// Release ends the savepoint scope without an error. If RELEASE SAVEPOINT
// fails the savepoint is rolled back and the release error is returned,
// joined with the rollback error if that fails too.
func (s *Savepoint) Release(ctx context.Context) error {
	err := s.h.runNoResult(ctx, "RELEASE SAVEPOINT "+s.quoted)
	if err != nil {
		if rbErr := s.Rollback(ctx); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
	}
	return err
}

// Rollback undoes everything since the savepoint was set.
func (s *Savepoint) Rollback(ctx context.Context) error {
	return s.h.runNoResult(ctx, "ROLLBACK TO SAVEPOINT "+s.quoted)
}

// Atomic runs fn in the nearest-fitting scope: a real transaction when the
// calling task has none open, a savepoint when it does. Nesting Atomic
// therefore costs exactly one BEGIN/COMMIT pair for the whole group, with
// savepoints for every inner level.
func (h *Handle) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if h.TransactionDepth(ctx) > 0 {
		return h.RunSavepoint(ctx, fn)
	}
	return h.RunTransaction(ctx, fn)
}

// RunTransaction runs fn inside a transaction scope: commit on success,
// rollback on error. The original error from fn wins; a rollback failure
// is joined onto it rather than dropped.
func (h *Handle) RunTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := h.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// RunSavepoint runs fn inside a savepoint scope: release on success,
// rollback-to-savepoint on error.
func (h *Handle) RunSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	sp, err := h.NewSavepoint(ctx, "")
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return sp.Release(ctx)
}
