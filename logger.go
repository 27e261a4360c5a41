package dbs

import (
	"io"
	"log/slog"
)

// discardLogger is used when no logger is configured.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// logFull emits the one-time diagnostic for a table that ran out of probe
// budget.
func (t *Table) logFull(rounds int) {
	t.logger.Error("state table full",
		"capacity", t.Cap(),
		"vector_len", t.vectorLen,
		"rounds", rounds,
		"elements", t.Len(),
		"satellite_bits", t.satBits,
	)
}

func (t *Table) logCreated() {
	t.logger.Debug("state table created",
		"capacity", t.Cap(),
		"vector_len", t.vectorLen,
		"line_slots", t.lineMask+1,
		"max_rounds", t.maxRounds,
		"hash_width", int(t.hashWidth),
		"workers", len(t.workers),
		"bytes", t.Cap()*(8+4*t.vectorLen),
	)
}
