package dbs

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func newTestTable(t *testing.T, vectorLen, logSize int, options ...func(*Config)) *Table {
	t.Helper()
	tbl, err := New(vectorLen, logSize, options...)
	require.NoError(t, err)
	t.Cleanup(tbl.Close)
	return tbl
}

func vec2(i int) []int32 {
	return []int32{int32(i), int32(i * 7919)}
}

func TestTable_StructSize(t *testing.T) {
	t.Logf("CacheLineSize : %d", CacheLineSize)
	t.Logf("slotsPerLine : %d", slotsPerLine)
	require.Equal(t, 1<<slotsPerLineLog2, slotsPerLine)
}

func TestTable_InsertSequential(t *testing.T) {
	tbl := newTestTable(t, 1, 3)
	require.Equal(t, 8, tbl.Cap())

	refs := map[Ref]int32{}
	for _, v := range []int32{1, 2, 3} {
		ref, found, err := tbl.FindOrInsert([]int32{v})
		require.NoError(t, err)
		require.False(t, found)
		refs[ref] = v
	}
	require.Len(t, refs, 3)
	for ref, v := range refs {
		require.Equal(t, []int32{v}, tbl.Get(ref))
	}
	require.Equal(t, 3, tbl.Len())
}

func TestTable_InsertTwice(t *testing.T) {
	tbl := newTestTable(t, 2, 8)
	for i := range 100 {
		ref, found, err := tbl.FindOrInsert(vec2(i))
		require.NoError(t, err)
		require.False(t, found)

		again, found, err := tbl.FindOrInsert(vec2(i))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, ref, again)

		got, ok := tbl.Lookup(vec2(i))
		require.True(t, ok)
		require.Equal(t, ref, got)
	}
	require.Equal(t, 100, tbl.Len())
}

func TestTable_DistinctRefs(t *testing.T) {
	tbl := newTestTable(t, 2, 12)
	seen := map[Ref]int{}
	for i := range 2000 {
		ref, found, err := tbl.FindOrInsert(vec2(i))
		require.NoError(t, err)
		require.False(t, found)
		_, dup := seen[ref]
		require.False(t, dup, "ref %d reused", ref)
		seen[ref] = i
	}
	for ref, i := range seen {
		require.Equal(t, vec2(i), tbl.Get(ref))
	}
}

func TestTable_LookupMissing(t *testing.T) {
	tbl := newTestTable(t, 2, 10)
	_, ok := tbl.Lookup(vec2(1))
	require.False(t, ok)
	for i := 0; i < 400; i += 2 {
		_, _, err := tbl.FindOrInsert(vec2(i))
		require.NoError(t, err)
	}
	for i := 1; i < 400; i += 2 {
		_, ok := tbl.Lookup(vec2(i))
		require.False(t, ok, "vector %d never inserted", i)
	}
	require.Equal(t, 200, tbl.Len())
}

func TestTable_PrecomputedHash(t *testing.T) {
	tbl := newTestTable(t, 2, 8)
	v := vec2(5)
	h := tbl.Hash(v)
	ref, found, err := tbl.FindOrInsertHash(v, h)
	require.NoError(t, err)
	require.False(t, found)

	again, found, err := tbl.FindOrInsert(v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ref, again)

	got, ok := tbl.LookupHash(v, h)
	require.True(t, ok)
	require.Equal(t, ref, got)
}

func TestTable_FillThenFull(t *testing.T) {
	tbl := newTestTable(t, 1, 4)
	refs := map[Ref]bool{}
	for i := range 16 {
		ref, found, err := tbl.FindOrInsert([]int32{int32(i)})
		require.NoError(t, err, "insert %d", i)
		require.False(t, found)
		refs[ref] = true
	}
	require.Len(t, refs, 16)
	require.False(t, tbl.Full())

	_, _, err := tbl.FindOrInsert([]int32{16})
	require.ErrorIs(t, err, ErrFull)
	require.True(t, tbl.Full())

	// Stored vectors remain reachable by lookup, but insertion fails fast.
	for i := range 16 {
		_, ok := tbl.Lookup([]int32{int32(i)})
		require.True(t, ok)
	}
	_, _, err = tbl.FindOrInsert([]int32{0})
	require.ErrorIs(t, err, ErrFull)
	require.True(t, tbl.Stats().Full)
}

func TestTable_FullReportedOnce(t *testing.T) {
	var fired atomic.Int32
	var logs syncBuffer
	tbl := newTestTable(t, 1, 4,
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		WithOnFull(func(*Table) { fired.Add(1) }),
	)
	for i := range 16 {
		_, _, err := tbl.FindOrInsert([]int32{int32(i)})
		require.NoError(t, err)
	}

	var g errgroup.Group
	var fulls atomic.Int32
	for w := range 8 {
		g.Go(func() error {
			for i := range 50 {
				_, _, err := tbl.FindOrInsert([]int32{int32(1000 + w*50 + i)})
				if !errors.Is(err, ErrFull) {
					return err
				}
				fulls.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 400, fulls.Load())
	require.EqualValues(t, 1, fired.Load())
	require.Equal(t, 1, bytes.Count(logs.Bytes(), []byte("state table full")))
}

func TestTable_SameVectorConcurrently(t *testing.T) {
	tbl := newTestTable(t, 1, 8)
	var inserted atomic.Int32
	refs := make([][]Ref, 2)
	var g errgroup.Group
	for w := range refs {
		g.Go(func() error {
			for range 1000 {
				ref, found, err := tbl.FindOrInsert([]int32{42})
				if err != nil {
					return err
				}
				if !found {
					inserted.Add(1)
				}
				refs[w] = append(refs[w], ref)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, inserted.Load())
	first := refs[0][0]
	for _, rs := range refs {
		for _, ref := range rs {
			require.Equal(t, first, ref)
		}
	}
	require.Equal(t, []int32{42}, tbl.Get(first))
}

func TestTable_ParallelIdempotence(t *testing.T) {
	const workers = 8
	const n = 1000
	tbl := newTestTable(t, 2, 12, WithWorkers(workers))
	// Multipliers coprime to n, so every worker visits every vector.
	mults := [workers]int{1, 3, 7, 9, 11, 13, 17, 19}
	refs := make([][]Ref, workers)
	var inserted atomic.Int32
	var g errgroup.Group
	for id := range workers {
		g.Go(func() error {
			w, err := tbl.Worker(id)
			if err != nil {
				return err
			}
			refs[id] = make([]Ref, n)
			for k := range n {
				// Each worker walks the vectors in a different order.
				i := (k*mults[id] + id*37) % n
				ref, found, err := w.FindOrInsert(vec2(i))
				if err != nil {
					return err
				}
				if !found {
					inserted.Add(1)
				}
				refs[id][i] = ref
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, n, inserted.Load())
	require.Equal(t, n, tbl.Len())

	seen := map[Ref]bool{}
	for i := range n {
		ref := refs[0][i]
		for id := 1; id < workers; id++ {
			require.Equal(t, ref, refs[id][i], "vector %d", i)
		}
		require.False(t, seen[ref])
		seen[ref] = true
		require.Equal(t, vec2(i), tbl.Get(ref))
	}
	s := tbl.Stats()
	require.EqualValues(t, n, s.Inserts)
	require.EqualValues(t, workers*n-n, s.Hits)
	require.Equal(t, workers, s.Workers)
}

func TestTable_NoFalsePositivesUnderLoad(t *testing.T) {
	tbl := newTestTable(t, 2, 12)
	var g errgroup.Group
	for w := range 4 {
		g.Go(func() error {
			for i := w; i < 2000; i += 4 {
				if _, _, err := tbl.FindOrInsert(vec2(2 * i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	var falsePositives atomic.Int32
	for range 2 {
		g.Go(func() error {
			for i := range 2000 {
				if _, ok := tbl.Lookup(vec2(2*i + 1)); ok {
					falsePositives.Add(1)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Zero(t, falsePositives.Load())
	require.Equal(t, 2000, tbl.Len())
}

func TestTable_MemoCollisions(t *testing.T) {
	constant := func([]int32, uint64) uint64 { return 0x0123_4567_89ab_cdef }
	tbl := newTestTable(t, 1, 4, WithHasher(constant, Hash64))
	for i := range 16 {
		ref, found, err := tbl.FindOrInsert([]int32{int32(i)})
		require.NoError(t, err)
		require.False(t, found)
		require.Equal(t, []int32{int32(i)}, tbl.Get(ref))
	}
	for i := range 16 {
		_, found, err := tbl.FindOrInsert([]int32{int32(i)})
		require.NoError(t, err)
		require.True(t, found)
	}
	_, ok := tbl.Lookup([]int32{99})
	require.False(t, ok)
	require.NotZero(t, tbl.Stats().Misses)
}

func TestTable_Hash32(t *testing.T) {
	tbl := newTestTable(t, 3, 10, WithHasher(XXH3Hash32, Hash32), WithSeed(7))
	for i := range 300 {
		_, found, err := tbl.FindOrInsert([]int32{int32(i), 1, 2})
		require.NoError(t, err)
		require.False(t, found)
	}
	for i := range 300 {
		ref, ok := tbl.Lookup([]int32{int32(i), 1, 2})
		require.True(t, ok)
		require.Equal(t, []int32{int32(i), 1, 2}, tbl.Get(ref))
	}
}

func TestTable_Stalled(t *testing.T) {
	tbl := newTestTable(t, 1, 6, WithMaxSpins(16))
	v := []int32{3}
	l := tbl.layout
	p := makeProbe(tbl.Hash(v), tbl.hashWidth, tbl.logSize, l)
	// Claim the vector's first bucket without ever publishing it.
	tbl.slots[p.bucket(tbl.mask)] = uint64(l.wait(p.memo))

	_, _, err := tbl.FindOrInsert(v)
	require.ErrorIs(t, err, ErrStalled)
	require.EqualValues(t, 1, tbl.Stats().Stalls)
}

func TestTable_VectorLenPanics(t *testing.T) {
	tbl := newTestTable(t, 2, 4)
	defer func() {
		var e *VectorLenError
		err, _ := recover().(error)
		require.ErrorAs(t, err, &e)
		require.Equal(t, 3, e.Got)
		require.Equal(t, 2, e.Want)
	}()
	_, _, _ = tbl.FindOrInsert([]int32{1, 2, 3})
}

func TestTable_Close(t *testing.T) {
	tbl, err := New(1, 4)
	require.NoError(t, err)
	_, _, err = tbl.FindOrInsert([]int32{1})
	require.NoError(t, err)
	tbl.Close()
	tbl.Close()
	_, _, err = tbl.FindOrInsert([]int32{1})
	require.ErrorIs(t, err, ErrClosed)
	_, ok := tbl.Lookup([]int32{1})
	require.False(t, ok)
}

func TestTable_ProbeBudget(t *testing.T) {
	tbl := newTestTable(t, 1, 20)
	require.Equal(t, (1<<20)/64/slotsPerLine, tbl.maxRounds)

	tbl = newTestTable(t, 1, 4)
	require.Equal(t, minProbeRounds, tbl.maxRounds)

	tbl = newTestTable(t, 1, 16, WithProbeFraction(1))
	require.Equal(t, (1<<16)/slotsPerLine, tbl.maxRounds)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
