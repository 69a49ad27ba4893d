package frames

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AppendAndFind(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ts := time.Unix(1700000000, 0)

	f1 := r.Append(NewFrame(1, 24, 60, 60, ts))
	f2 := r.Append(NewFrame(2, 100, 80, 80, ts.Add(time.Millisecond)))

	assert.Equal(t, 2, r.Count())

	got, ok := r.Find(1)
	require.True(t, ok)
	assert.Same(t, f1, got)

	got, ok = r.Find(2)
	require.True(t, ok)
	assert.Same(t, f2, got)

	_, ok = r.Find(0)
	assert.False(t, ok)
	_, ok = r.Find(3)
	assert.False(t, ok)
}

func TestRegistry_ReferencesStableAcrossGrowth(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ts := time.Now()
	first := r.Append(NewFrame(1, 0, 10, 10, ts))

	// Grow well past any initial slice capacity; the stored reference
	// must not be invalidated.
	for i := uint32(2); i <= 1000; i++ {
		r.Append(NewFrame(i, int64(i)*16, 10, 10, ts))
	}

	got, ok := r.Find(1)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestRegistry_NonDenseAppendPanics(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Append(NewFrame(1, 0, 10, 10, time.Now()))
	assert.Panics(t, func() {
		r.Append(NewFrame(3, 0, 10, 10, time.Now()))
	})
}

func TestRegistry_MarkDepended(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ts := time.Now()
	for i := uint32(1); i <= 4; i++ {
		r.Append(NewFrame(i, 0, 10, 10, ts))
	}

	marked := r.MarkDepended([]uint32{2, 3, 99})
	assert.Equal(t, 2, marked)

	for num, want := range map[uint32]bool{1: false, 2: true, 3: true, 4: false} {
		f, ok := r.Find(num)
		require.True(t, ok)
		assert.Equal(t, want, f.DependedUpon, "frame %d", num)
	}

	// Re-marking is idempotent.
	assert.Equal(t, 0, r.MarkDepended([]uint32{2, 3}))
}

func TestRegistry_Destroy(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.Append(NewFrame(1, 0, 10, 10, time.Now()))
	r.Destroy()
	assert.Equal(t, 0, r.Count())
	_, ok := r.Find(1)
	assert.False(t, ok)
}
