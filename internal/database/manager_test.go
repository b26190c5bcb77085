package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aiodb/internal/errs"
)

// otherDialect quotes like fakeDialect but targets a different vendor,
// for cross-database rebind checks.
type otherDialect struct {
	fakeDialect
}

func (otherDialect) Name() string { return "other" }

func TestManager_Get(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("SELECT * FROM users WHERE id = $1", fakeResult{
		cols: []string{"id", "name"},
		rows: [][]any{{int64(1), "ada"}},
	})

	q := &fakeQuery{kind: KindSelect, text: "SELECT * FROM users WHERE id = $1", args: []any{1}, db: h}
	obj, err := m.Get(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), "ada"}, obj)
}

func TestManager_GetNotFound(t *testing.T) {
	h, _ := newFakeHandle(1)
	m := NewManager(h)

	q := &fakeQuery{kind: KindSelect, text: "SELECT * FROM users WHERE id = $1", db: h}
	_, err := m.Get(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestManager_GetOrNone(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)

	q := &fakeQuery{kind: KindSelect, text: "SELECT * FROM users WHERE id = $1", db: h}
	obj, err := m.GetOrNone(context.Background(), q)
	require.NoError(t, err)
	assert.Nil(t, obj)

	d.script("SELECT * FROM users WHERE id = $1", fakeResult{
		cols: []string{"id"},
		rows: [][]any{{int64(3)}},
	})
	obj, err = m.GetOrNone(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(3)}, obj)
}

func TestManager_GetOrCreate_Existing(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("SELECT lookup", fakeResult{cols: []string{"id"}, rows: [][]any{{int64(1)}}})

	lookup := &fakeQuery{kind: KindSelect, text: "SELECT lookup", db: h}
	insert := &fakeQuery{kind: KindInsert, text: "INSERT row", db: h}

	obj, created, err := m.GetOrCreate(context.Background(), lookup, insert)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []any{int64(1)}, obj)
	assert.Equal(t, []string{"SELECT lookup"}, d.statements(), "no insert when the row exists")
}

func TestManager_GetOrCreate_Creates(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)

	// The lookup finds nothing until the insert has run.
	d.onExec = func(sql string, _ []any) error {
		if sql == "INSERT row" {
			d.script("SELECT lookup", fakeResult{cols: []string{"id"}, rows: [][]any{{int64(9)}}})
		}
		return nil
	}

	lookup := &fakeQuery{kind: KindSelect, text: "SELECT lookup", db: h}
	insert := &fakeQuery{kind: KindInsert, text: "INSERT row", db: h}

	obj, created, err := m.GetOrCreate(context.Background(), lookup, insert)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []any{int64(9)}, obj)
	assert.Equal(t, []string{"SELECT lookup", "INSERT row", "SELECT lookup"}, d.statements())
}

func TestManager_CreateOrGet_Creates(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("INSERT row", fakeResult{lastID: 5})

	insert := &fakeQuery{kind: KindInsert, text: "INSERT row", db: h}
	lookup := &fakeQuery{kind: KindSelect, text: "SELECT lookup", db: h}

	obj, created, err := m.CreateOrGet(context.Background(), insert, lookup)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(5), obj)
	assert.Equal(t, []string{"INSERT row"}, d.statements(), "no lookup when the insert wins")
}

func TestManager_CreateOrGet_ConflictFallsBack(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("SELECT lookup", fakeResult{cols: []string{"id"}, rows: [][]any{{int64(8)}}})
	d.onExec = func(sql string, _ []any) error {
		if sql == "INSERT row" {
			return errs.New(errs.ErrKindConflict, "duplicate key")
		}
		return nil
	}

	insert := &fakeQuery{kind: KindInsert, text: "INSERT row", db: h}
	lookup := &fakeQuery{kind: KindSelect, text: "SELECT lookup", db: h}

	obj, created, err := m.CreateOrGet(context.Background(), insert, lookup)
	require.NoError(t, err)
	assert.False(t, created, "the concurrent writer created the row, not this call")
	assert.Equal(t, []any{int64(8)}, obj)
}

func TestManager_CreateOrGet_OtherErrorSurfaces(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.onExec = func(sql string, _ []any) error {
		return errs.New(errs.ErrKindQueryFailed, "table missing")
	}

	insert := &fakeQuery{kind: KindInsert, text: "INSERT row", db: h}
	lookup := &fakeQuery{kind: KindSelect, text: "SELECT lookup", db: h}

	_, _, err := m.CreateOrGet(context.Background(), insert, lookup)
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err), "only conflicts trigger the lookup fallback")
}

func TestManager_UpdateDeleteCounts(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("UPDATE t", fakeResult{rowCount: 4})
	d.script("DELETE FROM t", fakeResult{rowCount: 2})

	n, err := m.Update(context.Background(), &fakeQuery{kind: KindUpdate, text: "UPDATE t", db: h})
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = m.Delete(context.Background(), &fakeQuery{kind: KindDelete, text: "DELETE FROM t", db: h})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestManager_SwapBindsUnboundQuery(t *testing.T) {
	h, d := newFakeHandle(1)
	m := NewManager(h)
	d.script("SELECT 1", fakeResult{cols: []string{"1"}, rows: [][]any{{int64(1)}}})

	// Bound to nothing: the manager adopts it.
	q := &fakeQuery{kind: KindSelect, text: "SELECT 1"}
	v, err := m.Scalar(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	// The original query stays unbound; WithDatabase clones.
	assert.Nil(t, q.Database())
}

func TestManager_SwapSameDialect(t *testing.T) {
	h1, _ := newFakeHandle(1)
	h2, d2 := newFakeHandle(1)
	m := NewManager(h2)
	d2.script("SELECT 1", fakeResult{cols: []string{"1"}, rows: [][]any{{int64(1)}}})

	// Bound to a sibling handle of the same vendor: rebinding is fine and
	// the statement runs on the manager's database.
	q := &fakeQuery{kind: KindSelect, text: "SELECT 1", db: h1}
	_, err := m.Scalar(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"SELECT 1"}, d2.statements())
}

func TestManager_SwapRejectsVendorMismatch(t *testing.T) {
	other := NewHandle(newFakeDriver(1), otherDialect{})
	h, _ := newFakeHandle(1)
	m := NewManager(h)

	q := &fakeQuery{kind: KindSelect, text: "SELECT 1", db: other}
	_, err := m.Execute(context.Background(), q)
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestManager_Passthroughs(t *testing.T) {
	h, _ := newFakeHandle(1)
	m := NewManager(h)
	ctx := context.Background()

	assert.Same(t, h, m.Database())
	assert.False(t, m.IsConnected())
	require.NoError(t, m.Connect(ctx))
	assert.True(t, m.IsConnected())
	require.NoError(t, m.Close(ctx))
	assert.False(t, m.IsConnected())
}
