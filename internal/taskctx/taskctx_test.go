package taskctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aiodb/internal/errs"
)

type record struct {
	depth int
}

func TestStore_UpsertCreatesLazily(t *testing.T) {
	store := NewStore[record]()
	ctx, done := With(context.Background())
	defer done()

	_, ok := store.Get(ctx)
	assert.False(t, ok, "no record before first Upsert")

	rec, err := store.Upsert(ctx)
	require.NoError(t, err)
	rec.depth = 3

	again, err := store.Upsert(ctx)
	require.NoError(t, err)
	assert.Same(t, rec, again, "Upsert must return the same record")

	got, ok := store.Get(ctx)
	require.True(t, ok)
	assert.Equal(t, 3, got.depth)
}

func TestStore_NoTask(t *testing.T) {
	store := NewStore[record]()

	_, ok := store.Get(context.Background())
	assert.False(t, ok)

	_, err := store.Upsert(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsNoTask(err))
}

func TestStore_DoneRemovesRecord(t *testing.T) {
	store := NewStore[record]()
	ctx, done := With(context.Background())

	_, err := store.Upsert(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	done()
	assert.Equal(t, 0, store.Len(), "record must be removed when the task finishes")

	// After completion the context still carries the handle; a new record
	// created now must not outlive the already-finished task.
	_, err = store.Upsert(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestStore_DoneIsIdempotent(t *testing.T) {
	store := NewStore[record]()
	ctx, done := With(context.Background())

	_, err := store.Upsert(ctx)
	require.NoError(t, err)

	done()
	done()
	assert.Equal(t, 0, store.Len())
}

func TestStore_TaskIsolation(t *testing.T) {
	store := NewStore[record]()

	ctx1, done1 := With(context.Background())
	defer done1()
	ctx2, done2 := With(context.Background())
	defer done2()

	rec1, err := store.Upsert(ctx1)
	require.NoError(t, err)
	rec2, err := store.Upsert(ctx2)
	require.NoError(t, err)

	rec1.depth = 1
	rec2.depth = 2

	got1, _ := store.Get(ctx1)
	got2, _ := store.Get(ctx2)
	assert.Equal(t, 1, got1.depth)
	assert.Equal(t, 2, got2.depth)
}

func TestStore_ConcurrentTasks(t *testing.T) {
	store := NewStore[record]()

	const tasks = 64
	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ctx, done := With(context.Background())
			defer done()

			rec, err := store.Upsert(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			for j := 0; j < 100; j++ {
				rec.depth++
			}
			got, ok := store.Get(ctx)
			if !ok || got.depth != 100 {
				t.Errorf("task %d saw depth %v", n, got)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, store.Len(), "all records must be reclaimed")
}

func TestCurrent(t *testing.T) {
	_, ok := Current(context.Background())
	assert.False(t, ok)

	ctx, done := With(context.Background())
	defer done()

	task, ok := Current(ctx)
	require.True(t, ok)
	assert.NotZero(t, task.ID())
}
