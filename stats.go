package dbs

import (
	"fmt"
	"strings"
	"sync/atomic"
	"unsafe"
)

// statsBlock holds the counters of one worker. Blocks are padded to a cache
// line so that workers updating their own counters do not share lines.
type statsBlock struct {
	//lint:ignore U1000 prevents false sharing
	pad [(CacheLineSize - unsafe.Sizeof(struct {
		inserts  atomic.Uint64
		hits     atomic.Uint64
		misses   atomic.Uint64
		rehashes atomic.Uint64
		stalls   atomic.Uint64
	}{})%CacheLineSize) % CacheLineSize]byte

	inserts  atomic.Uint64
	hits     atomic.Uint64
	misses   atomic.Uint64
	rehashes atomic.Uint64
	stalls   atomic.Uint64
}

func (b *statsBlock) counters() Counters {
	return Counters{
		Inserts:  b.inserts.Load(),
		Hits:     b.hits.Load(),
		Misses:   b.misses.Load(),
		Rehashes: b.rehashes.Load(),
		Stalls:   b.stalls.Load(),
	}
}

// Counters are the statistics of one worker, or their sum.
type Counters struct {
	// Inserts is the number of vectors this worker stored.
	Inserts uint64
	// Hits is the number of lookups that found their vector.
	Hits uint64
	// Misses is the number of buckets whose memo matched but whose vector
	// differed.
	Misses uint64
	// Rehashes is the number of probe rounds beyond the first.
	Rehashes uint64
	// Stalls is the number of publish waits that ran out of spins.
	Stalls uint64
}

func (c *Counters) add(o Counters) {
	c.Inserts += o.Inserts
	c.Hits += o.Hits
	c.Misses += o.Misses
	c.Rehashes += o.Rehashes
	c.Stalls += o.Stalls
}

// Stats is a snapshot of table statistics.
type Stats struct {
	Counters
	// Capacity is the number of buckets.
	Capacity int
	// VectorLen is the number of elements per vector.
	VectorLen int
	// Workers is the number of worker blocks allocated so far.
	Workers int
	// Full reports whether the table has been declared full.
	Full bool
}

// LoadFactor returns the fraction of occupied buckets.
func (s *Stats) LoadFactor() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Inserts) / float64(s.Capacity)
}

// String returns string representation of table stats.
func (s *Stats) String() string {
	var sb strings.Builder
	sb.WriteString("Stats{\n")
	sb.WriteString(fmt.Sprintf("Capacity:   %d\n", s.Capacity))
	sb.WriteString(fmt.Sprintf("VectorLen:  %d\n", s.VectorLen))
	sb.WriteString(fmt.Sprintf("Workers:    %d\n", s.Workers))
	sb.WriteString(fmt.Sprintf("Inserts:    %d\n", s.Inserts))
	sb.WriteString(fmt.Sprintf("Hits:       %d\n", s.Hits))
	sb.WriteString(fmt.Sprintf("Misses:     %d\n", s.Misses))
	sb.WriteString(fmt.Sprintf("Rehashes:   %d\n", s.Rehashes))
	sb.WriteString(fmt.Sprintf("Stalls:     %d\n", s.Stalls))
	sb.WriteString(fmt.Sprintf("LoadFactor: %.4f\n", s.LoadFactor()))
	sb.WriteString(fmt.Sprintf("Full:       %t\n", s.Full))
	sb.WriteString("}\n")
	return sb.String()
}

// Stats aggregates the counters of all workers, including operations made
// directly on the table. Workers are expected to have quiesced; otherwise
// the snapshot is approximate.
func (t *Table) Stats() Stats {
	s := Stats{
		Capacity:  t.Cap(),
		VectorLen: t.vectorLen,
		Full:      t.full.Load(),
	}
	s.add(t.shared.counters())
	for i := range t.workers {
		if b := t.workers[i].Load(); b != nil {
			s.add(b.counters())
			s.Workers++
		}
	}
	return s
}

// WorkerStats returns the counters of worker id. A worker that never
// touched the table has zero counters.
func (t *Table) WorkerStats(id int) (Counters, error) {
	if id < 0 || id >= len(t.workers) {
		return Counters{}, fmt.Errorf("%w: %d of %d", ErrNoWorker, id, len(t.workers))
	}
	if b := t.workers[id].Load(); b != nil {
		return b.counters(), nil
	}
	return Counters{}, nil
}

// NumWorkers returns the number of worker ids the table accepts.
func (t *Table) NumWorkers() int {
	return len(t.workers)
}

// SharedStats returns the counters of operations made directly on the table
// rather than through a Worker.
func (t *Table) SharedStats() Counters {
	return t.shared.counters()
}
