package database

import (
	"context"
	"fmt"

	"github.com/koustreak/aiodb/internal/errs"
)

// Execute dispatches q by kind and returns the kind's natural result:
//
//	select, raw                  *Rows (eagerly drained snapshot)
//	insert                       generated id (int64), single returned
//	                             value, or *Rows for multi-column RETURNING
//	update, delete               affected-row count (int64), or *Rows
//	                             when a RETURNING clause is declared
//
// The kind switch is exhaustive; an unknown tag is rejected, never routed
// to a default path.
func Execute(ctx context.Context, q Query) (any, error) {
	switch q.Kind() {
	case KindSelect, KindRaw:
		return Select(ctx, q)
	case KindInsert:
		return Insert(ctx, q)
	case KindUpdate:
		return Update(ctx, q)
	case KindDelete:
		return Delete(ctx, q)
	default:
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("unhandled query kind %s", q.Kind()))
	}
}

// Select executes a select-like query and drains every row into a Rows
// snapshot before releasing the cursor, so the result stays valid after
// the connection is gone.
func Select(ctx context.Context, q Query) (*Rows, error) {
	switch q.Kind() {
	case KindSelect, KindRaw:
	default:
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("select executed with %s query", q.Kind()))
	}
	return executeWithReturning(ctx, q)
}

// Insert executes an INSERT. A multi-column RETURNING clause takes the
// eager-drain path; a single returned column yields that value directly
// (nil when the statement produced no row); without RETURNING the driver's
// generated id is returned.
func Insert(ctx context.Context, q Query) (any, error) {
	if q.Kind() != KindInsert {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("insert executed with %s query", q.Kind()))
	}
	ret := q.Returning()
	if len(ret) > 1 {
		return executeWithReturning(ctx, q)
	}

	h, err := boundHandle(q)
	if err != nil {
		return nil, err
	}
	sql, args := q.SQL()
	if len(ret) == 1 {
		cur, err := h.ExecuteStatement(ctx, sql, args)
		if err != nil {
			return nil, err
		}
		defer cur.Release(ctx)

		row, err := cur.FetchOne()
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, nil
		}
		return row[0], nil
	}

	cur, err := h.ExecStatement(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer cur.Release(ctx)
	return cur.LastInsertID()
}

// Update executes an UPDATE, returning the affected-row count, or the
// drained row set when a RETURNING clause is declared.
func Update(ctx context.Context, q Query) (any, error) {
	if q.Kind() != KindUpdate {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("update executed with %s query", q.Kind()))
	}
	return execRowCount(ctx, q)
}

// Delete executes a DELETE with the same result contract as Update.
func Delete(ctx context.Context, q Query) (any, error) {
	if q.Kind() != KindDelete {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("delete executed with %s query", q.Kind()))
	}
	return execRowCount(ctx, q)
}

func execRowCount(ctx context.Context, q Query) (any, error) {
	if len(q.Returning()) > 0 {
		return executeWithReturning(ctx, q)
	}
	h, err := boundHandle(q)
	if err != nil {
		return nil, err
	}
	sql, args := q.SQL()
	cur, err := h.ExecStatement(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	n := cur.RowCount()
	return n, cur.Release(ctx)
}

// Count performs a COUNT aggregation over q.
//
// A query with DISTINCT, GROUP BY, LIMIT or OFFSET cannot have its
// projection rewritten without changing the answer, so it is wrapped as
// SELECT COUNT(1) FROM (<q>) AS wrapped_select — with LIMIT/OFFSET first
// cleared when clearLimit is set, so the true unlimited count comes back.
// Everything else gets the cheaper projection rewrite via Countable.
// Queries that do not implement Countable are always wrapped.
func Count(ctx context.Context, q Query, clearLimit bool) (int64, error) {
	c, ok := q.(Countable)
	if !ok || c.NeedsWrapping() {
		h, err := boundHandle(q)
		if err != nil {
			return 0, err
		}
		inner := q
		if ok && clearLimit {
			inner = c.WithoutLimits()
		}
		sql, args := inner.SQL()
		wrapped := Raw(h,
			"SELECT COUNT(1) FROM ("+sql+") AS wrapped_select", args...)
		return scalarCount(ctx, wrapped)
	}
	return scalarCount(ctx, c.CountForm())
}

func scalarCount(ctx context.Context, q Query) (int64, error) {
	v, err := Scalar(ctx, q)
	if err != nil {
		return 0, err
	}
	return toInt64(v), nil
}

// Scalar executes q and returns the first column of its first row, nil
// when the query yields no rows.
func Scalar(ctx context.Context, q Query) (any, error) {
	row, err := ScalarRow(ctx, q)
	if err != nil || row == nil {
		return nil, err
	}
	return row[0], nil
}

// ScalarRow is Scalar's whole-row form: the first row as a value slice,
// nil (not an empty slice) when the query yields no rows.
func ScalarRow(ctx context.Context, q Query) ([]any, error) {
	h, err := boundHandle(q)
	if err != nil {
		return nil, err
	}
	sql, args := q.SQL()
	cur, err := h.ExecuteStatement(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer cur.Release(ctx)
	return cur.FetchOne()
}

// Relation describes how one prefetch subquery hangs off already-fetched
// parent rows. The hooks come from the model layer: ParentKey/ChildKey
// produce the join key on either side, Attach mutates the parent's
// related-object cache in place.
type Relation struct {
	Query     Query
	ParentKey func(parent any) any
	ChildKey  func(child any) any
	Attach    func(parent, child any)
}

// Prefetch executes the primary query, then each relation's subquery in
// reverse dependency order, attaching child rows to the materialized
// parents whose key matches.
func Prefetch(ctx context.Context, q Query, rels ...Relation) (*Rows, error) {
	result, err := Select(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return result, nil
	}

	parents := result.All()
	for i := len(rels) - 1; i >= 0; i-- {
		rel := rels[i]

		byKey := make(map[any]any, len(parents))
		for _, p := range parents {
			byKey[rel.ParentKey(p)] = p
		}

		children, err := Select(ctx, rel.Query)
		if err != nil {
			return nil, err
		}
		for _, child := range children.All() {
			if parent, ok := byKey[rel.ChildKey(child)]; ok {
				rel.Attach(parent, child)
			}
		}
	}
	return result, nil
}

// executeWithReturning is the shared eager-drain path: execute, drain all
// rows, release the cursor — in that order, on every path.
func executeWithReturning(ctx context.Context, q Query) (*Rows, error) {
	h, err := boundHandle(q)
	if err != nil {
		return nil, err
	}
	sql, args := q.SQL()
	cur, err := h.ExecuteStatement(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	defer cur.Release(ctx)

	wrapper, _ := q.(RowWrapper)
	return drainCursor(cur, wrapper)
}

// boundHandle rejects queries that were never bound to a database.
func boundHandle(q Query) (*Handle, error) {
	h := q.Database()
	if h == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "query is not bound to a database")
	}
	return h, nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		return int64(n)
	case nil:
		return 0
	default:
		return 0
	}
}
