// Package taskctx provides per-task storage for the execution engine.
//
// A Task is an explicit handle for one logical unit of concurrent work,
// carried through call chains inside a context.Context. Goroutines have no
// identity and no completion hook, so the handle is created explicitly with
// With and retired by calling the returned done function — typically
// deferred right where the unit of work starts:
//
//	ctx, done := taskctx.With(ctx)
//	defer done()
//
// A Store then maps each task to a private mutable record, created lazily
// and removed automatically when the task's done function runs. Records are
// never shared between tasks: two tasks looking up the same Store always
// see distinct records, which is what makes per-task transaction state safe
// without cross-task locking.
package taskctx

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/koustreak/aiodb/internal/errs"
)

type ctxKey struct{}

var taskIDs atomic.Uint64

// Task identifies one logical unit of concurrent work.
type Task struct {
	id uint64

	mu    sync.Mutex
	done  bool
	hooks []func(*Task)
}

// ID returns the task's unique identifier. Useful for logging only.
func (t *Task) ID() uint64 { return t.id }

// finish runs all completion hooks exactly once.
func (t *Task) finish() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	hooks := t.hooks
	t.hooks = nil
	t.mu.Unlock()

	for _, h := range hooks {
		h(t)
	}
}

// onDone registers fn to run when the task completes. If the task already
// completed, fn runs immediately — a record created by a straggler must not
// outlive its task.
func (t *Task) onDone(fn func(*Task)) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		fn(t)
		return
	}
	t.hooks = append(t.hooks, fn)
	t.mu.Unlock()
}

// With registers a fresh task handle in ctx and returns the derived context
// together with the task's completion function. Calling done more than once
// is harmless.
func With(ctx context.Context) (context.Context, func()) {
	t := &Task{id: taskIDs.Add(1)}
	return context.WithValue(ctx, ctxKey{}, t), t.finish
}

// Current returns the task handle stored in ctx, if any.
func Current(ctx context.Context) (*Task, bool) {
	t, ok := ctx.Value(ctxKey{}).(*Task)
	return t, ok
}

// Store is an arena of per-task records of type T.
//
// The map itself is guarded by a mutex because tasks are created and retired
// concurrently; the individual records are not, because each record is only
// ever touched by its own task.
type Store[T any] struct {
	mu      sync.Mutex
	records map[uint64]*T
}

// NewStore creates an empty Store.
func NewStore[T any]() *Store[T] {
	return &Store[T]{records: make(map[uint64]*T)}
}

// Get returns the record for the task in ctx, or (nil, false) when either
// no task is registered or the task has no record yet.
func (s *Store[T]) Get(ctx context.Context) (*T, bool) {
	t, ok := Current(ctx)
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	rec, ok := s.records[t.id]
	s.mu.Unlock()
	return rec, ok
}

// Upsert returns the record for the task in ctx, creating it lazily on
// first use. Creation registers a completion hook that removes the record
// when the task finishes. Fails with an ErrKindNoTask error when ctx
// carries no task handle.
func (s *Store[T]) Upsert(ctx context.Context) (*T, error) {
	t, ok := Current(ctx)
	if !ok {
		return nil, errs.New(errs.ErrKindNoTask, "no task registered in context")
	}

	s.mu.Lock()
	rec, ok := s.records[t.id]
	if !ok {
		rec = new(T)
		s.records[t.id] = rec
		s.mu.Unlock()
		t.onDone(s.remove)
		return rec, nil
	}
	s.mu.Unlock()
	return rec, nil
}

// Len reports how many live records the store holds.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store[T]) remove(t *Task) {
	s.mu.Lock()
	delete(s.records, t.id)
	s.mu.Unlock()
}
