package dbs

import "fmt"

// Worker is a handle through which one exploration worker uses a Table.
// Operations made through a Worker are counted in that worker's statistics
// block. A Worker must only be used by one goroutine at a time.
type Worker struct {
	t  *Table
	id int
	st *statsBlock
}

// Worker returns the handle of worker id, allocating its statistics block
// on first use.
func (t *Table) Worker(id int) (*Worker, error) {
	if id < 0 || id >= len(t.workers) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoWorker, id, len(t.workers))
	}
	return &Worker{t: t, id: id, st: t.block(id)}, nil
}

// block returns the statistics block of worker id, creating it lazily.
func (t *Table) block(id int) *statsBlock {
	p := &t.workers[id]
	if b := p.Load(); b != nil {
		return b
	}
	b := new(statsBlock)
	if p.CompareAndSwap(nil, b) {
		return b
	}
	return p.Load()
}

// ID returns the worker id.
func (w *Worker) ID() int {
	return w.id
}

// Table returns the table the worker operates on.
func (w *Worker) Table() *Table {
	return w.t
}

// FindOrInsert is Table.FindOrInsert counted for this worker.
func (w *Worker) FindOrInsert(vec []int32) (Ref, bool, error) {
	return w.t.find(vec, w.t.hasher(vec, w.t.seed), true, w.st)
}

// FindOrInsertHash is Table.FindOrInsertHash counted for this worker.
func (w *Worker) FindOrInsertHash(vec []int32, hash uint64) (Ref, bool, error) {
	return w.t.find(vec, hash, true, w.st)
}

// Lookup is Table.Lookup counted for this worker.
func (w *Worker) Lookup(vec []int32) (Ref, bool) {
	ref, ok, _ := w.t.find(vec, w.t.hasher(vec, w.t.seed), false, w.st)
	return ref, ok
}

// LookupHash is Table.LookupHash counted for this worker.
func (w *Worker) LookupHash(vec []int32, hash uint64) (Ref, bool) {
	ref, ok, _ := w.t.find(vec, hash, false, w.st)
	return ref, ok
}

// Stats returns this worker's counters.
func (w *Worker) Stats() Counters {
	return w.st.counters()
}
