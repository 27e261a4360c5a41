// Package dbs implements a fixed-capacity, lock-free state table used to
// deduplicate state vectors during parallel state-space exploration.
//
// A Table maps fixed-length []int32 vectors to stable references (Ref). Many
// workers may call FindOrInsert concurrently; every distinct vector is stored
// exactly once and keeps its Ref for the lifetime of the table. Each bucket
// also carries a small satellite field which exploration algorithms use for
// colouring, counters and locks (see GetBits, TrySetBit, IncBits).
//
// The table is organised as two parallel arrays allocated once: one packed
// 64-bit word per bucket and the vector data. A bucket's word holds bits of
// the vector's hash (the memo), a write bit and the satellite field. Probing
// scans one cache line of consecutive words per round and rehashes by a
// prime stride between rounds, so most lookups touch a single line of words
// and a single vector.
//
// The table never grows. When an insertion exhausts its probe budget the
// table is declared full: the diagnostic is reported once and every later
// insertion fails fast with ErrFull.
package dbs

import (
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"unsafe"
)

// Ref identifies a stored vector. It is the index of the vector's bucket.
type Ref uint64

// Table is a concurrent, insert-only set of state vectors.
//
// A Table must not be copied after first use.
type Table struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		full   atomic.Bool
		closed atomic.Bool
	}{})%CacheLineSize) % CacheLineSize]byte

	full   atomic.Bool
	closed atomic.Bool

	_         noCopy
	slots     []uint64
	data      []int32
	vectorLen int
	logSize   uint
	mask      uint64
	lineMask  uint64
	lineLog2  uint
	maxRounds int
	layout    layout
	satBits   int
	hasher    Hasher
	hashWidth HashWidth
	seed      uint64
	maxSpins  int
	logger    *slog.Logger
	onFull    func(*Table)

	workers []atomic.Pointer[statsBlock]
	shared  statsBlock
}

// New creates a table of 2^logSize buckets, each holding a vector of
// vectorLen elements. Both arrays are allocated up front.
//
// Parameters:
//   - WithHasher, WithSeed for the hash function
//   - WithSatelliteBits for the satellite field width
//   - WithWorkers for the number of worker statistics blocks
//   - WithProbeFraction, WithMaxSpins for probe and wait budgets
//   - WithLogger, WithOnFull for the full-table report
func New(vectorLen, logSize int, options ...func(*Config)) (*Table, error) {
	c := defaultConfig()
	for _, o := range options {
		o(&c)
	}
	if err := c.validate(vectorLen, logSize); err != nil {
		return nil, err
	}

	capacity := uint64(1) << logSize
	lineLog2 := min(uint(slotsPerLineLog2), uint(logSize))
	rounds := int(math.Ceil(float64(capacity) * c.probeFraction / float64(uint64(1)<<lineLog2)))

	t := &Table{
		slots:     make([]uint64, capacity),
		data:      make([]int32, capacity*uint64(vectorLen)),
		vectorLen: vectorLen,
		logSize:   uint(logSize),
		mask:      capacity - 1,
		lineMask:  uint64(1)<<lineLog2 - 1,
		lineLog2:  lineLog2,
		maxRounds: max(rounds, minProbeRounds),
		layout:    newLayout(c.satBits),
		satBits:   c.satBits,
		hasher:    c.hasher,
		hashWidth: c.hashWidth,
		seed:      c.seed,
		maxSpins:  c.maxSpins,
		logger:    c.logger,
		onFull:    c.onFull,
		workers:   make([]atomic.Pointer[statsBlock], c.workers),
	}
	t.logCreated()
	return t, nil
}

// Cap returns the number of buckets.
func (t *Table) Cap() int {
	return int(t.mask + 1)
}

// VectorLen returns the number of elements of every stored vector.
func (t *Table) VectorLen() int {
	return t.vectorLen
}

// SatelliteBits returns the width of the satellite field.
func (t *Table) SatelliteBits() int {
	return t.satBits
}

// Full reports whether the table has been declared full.
func (t *Table) Full() bool {
	return t.full.Load()
}

// Len returns the number of stored vectors. It is exact once all workers
// have quiesced.
func (t *Table) Len() int {
	n := t.shared.inserts.Load()
	for i := range t.workers {
		if b := t.workers[i].Load(); b != nil {
			n += b.inserts.Load()
		}
	}
	return int(n)
}

// Hash returns the hash the table uses for vec, for callers that want to
// pass it to FindOrInsertHash or LookupHash later.
func (t *Table) Hash(vec []int32) uint64 {
	return t.hasher(vec, t.seed)
}

// FindOrInsert stores vec unless an equal vector is already stored. It
// returns the vector's reference and whether it was already present.
//
// The only errors are ErrFull, ErrStalled and ErrClosed. All of them mean the
// exploration cannot continue soundly.
func (t *Table) FindOrInsert(vec []int32) (Ref, bool, error) {
	return t.find(vec, t.hasher(vec, t.seed), true, &t.shared)
}

// FindOrInsertHash is FindOrInsert with a precomputed hash of vec. The hash
// must be the one the table's hasher produces for vec.
func (t *Table) FindOrInsertHash(vec []int32, hash uint64) (Ref, bool, error) {
	return t.find(vec, hash, true, &t.shared)
}

// Lookup returns the reference of vec if it is stored. It never inserts.
func (t *Table) Lookup(vec []int32) (Ref, bool) {
	ref, ok, _ := t.find(vec, t.hasher(vec, t.seed), false, &t.shared)
	return ref, ok
}

// LookupHash is Lookup with a precomputed hash of vec.
func (t *Table) LookupHash(vec []int32, hash uint64) (Ref, bool) {
	ref, ok, _ := t.find(vec, hash, false, &t.shared)
	return ref, ok
}

// Get returns the vector stored at ref. The result aliases table memory and
// must not be modified. ref must come from FindOrInsert or Lookup.
func (t *Table) Get(ref Ref) []int32 {
	off := int(ref) * t.vectorLen
	return t.data[off : off+t.vectorLen : off+t.vectorLen]
}

// Close releases both arrays. The table must not be used by any worker
// afterwards; insertions on a closed table return ErrClosed.
func (t *Table) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.slots = nil
	t.data = nil
}

func (t *Table) find(vec []int32, hash uint64, insert bool, st *statsBlock) (Ref, bool, error) {
	if len(vec) != t.vectorLen {
		panic(&VectorLenError{Got: len(vec), Want: t.vectorLen})
	}
	if t.closed.Load() {
		return 0, false, ErrClosed
	}
	if insert && t.full.Load() {
		return 0, false, ErrFull
	}

	l := t.layout
	p := makeProbe(hash, t.hashWidth, t.logSize, l)
	for round := 0; round < t.maxRounds; round++ {
		start := p.bucket(t.mask)
		line := start &^ t.lineMask
		for i := uint64(0); i <= t.lineMask; i++ {
			b := line | (start+i)&t.lineMask
			addr := &t.slots[b]
			w := slotWord(atomic.LoadUint64(addr))
			if w == emptyWord {
				if !insert {
					return 0, false, nil
				}
				if atomic.CompareAndSwapUint64(addr, 0, uint64(l.wait(p.memo))) {
					off := b * uint64(t.vectorLen)
					copy(t.data[off:off+uint64(t.vectorLen)], vec)
					atomic.OrUint64(addr, uint64(l.writeBit))
					st.inserts.Add(1)
					return Ref(b), false, nil
				}
				// Lost the claim; the winner may be inserting vec itself.
				w = slotWord(atomic.LoadUint64(addr))
			}
			if l.memo(w) != p.memo {
				continue
			}
			if !l.done(w) {
				if !t.awaitPublish(addr) {
					st.stalls.Add(1)
					return 0, false, ErrStalled
				}
			}
			off := b * uint64(t.vectorLen)
			if slices.Equal(t.data[off:off+uint64(t.vectorLen)], vec) {
				st.hits.Add(1)
				return Ref(b), true, nil
			}
			st.misses.Add(1)
		}
		p = p.next(t.lineLog2)
		st.rehashes.Add(1)
	}

	if !insert {
		return 0, false, nil
	}
	t.declareFull()
	return 0, false, ErrFull
}

// awaitPublish polls the word at addr until its write bit is set, for at
// most maxSpins polls.
func (t *Table) awaitPublish(addr *uint64) bool {
	spins := 0
	for range t.maxSpins {
		if t.layout.done(slotWord(atomic.LoadUint64(addr))) {
			return true
		}
		delay(&spins)
	}
	return false
}

// declareFull marks the table full. Only the first caller reports it.
func (t *Table) declareFull() {
	if !t.full.CompareAndSwap(false, true) {
		return
	}
	t.logFull(t.maxRounds)
	if t.onFull != nil {
		t.onFull(t)
	}
}

// noCopy may be added to structs which must not be copied
// after the first use. See go vet's copylocks checker.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
