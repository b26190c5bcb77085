package database

// Rows is the eagerly-drained result of a select-like query: a snapshot of
// the row set at fetch time, valid long after the cursor that produced it
// was released. Trading memory for a simple lifetime is deliberate — a
// lazily-streamed result would pin a pooled connection for as long as the
// caller iterates.
type Rows struct {
	cols    []string
	raw     [][]any
	wrapped []any // populated when the query carries a RowWrapper
}

// Columns returns the result column names.
func (r *Rows) Columns() []string { return r.cols }

// Len reports the number of rows in the snapshot.
func (r *Rows) Len() int { return len(r.raw) }

// Raw returns row i as driver values, in column order.
func (r *Rows) Raw(i int) []any { return r.raw[i] }

// At returns row i as the wrapped record when the query supplied a
// RowWrapper, otherwise as the raw []any row.
func (r *Rows) At(i int) any {
	if r.wrapped != nil {
		return r.wrapped[i]
	}
	return r.raw[i]
}

// All returns every row in order, wrapped where possible. The returned
// slice is freshly allocated for the unwrapped case; mutating it does not
// affect the snapshot.
func (r *Rows) All() []any {
	if r.wrapped != nil {
		return r.wrapped
	}
	out := make([]any, len(r.raw))
	for i, row := range r.raw {
		out[i] = row
	}
	return out
}

// drainCursor reads every remaining row from cur into a Rows snapshot.
// The cursor is NOT released here — that stays with the caller so the
// release-on-all-paths bookkeeping lives in one place.
func drainCursor(cur *ManagedCursor, wrapper RowWrapper) (*Rows, error) {
	rows := &Rows{cols: cur.Columns()}
	for {
		vals, err := cur.FetchOne()
		if err != nil {
			return nil, err
		}
		if vals == nil {
			break
		}
		rows.raw = append(rows.raw, vals)
	}
	if wrapper != nil {
		rows.wrapped = make([]any, len(rows.raw))
		for i, row := range rows.raw {
			rows.wrapped[i] = wrapper.WrapRow(rows.cols, row)
		}
	}
	return rows, nil
}
