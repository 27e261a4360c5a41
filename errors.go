package dbs

import (
	"errors"
	"fmt"
)

var (
	// ErrFull is returned by every insertion once the probe budget of some
	// insertion has been exhausted. The table never recovers from it.
	ErrFull = errors.New("dbs: table full")

	// ErrStalled is returned when a bucket claimed by another worker was not
	// published within the configured spin budget.
	ErrStalled = errors.New("dbs: publish wait exceeded spin budget")

	// ErrClosed is returned by operations on a closed table.
	ErrClosed = errors.New("dbs: table closed")

	// ErrNoWorker is returned for a worker id outside the configured range.
	ErrNoWorker = errors.New("dbs: unknown worker")
)

// ConfigError reports a table configuration rejected by New.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("dbs: invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// SatelliteOverflowError is the panic value raised when a satellite
// operation would leave the configured bit width. It indicates misuse of
// the satellite channel by the calling algorithm.
type SatelliteOverflowError struct {
	Ref   Ref
	Op    string
	Width int
	Value uint64
}

func (e *SatelliteOverflowError) Error() string {
	return fmt.Sprintf("dbs: satellite %s overflow at ref %d: value %d does not fit %d bits",
		e.Op, e.Ref, e.Value, e.Width)
}

// VectorLenError is the panic value raised when a vector's length differs
// from the table's vector length.
type VectorLenError struct {
	Got  int
	Want int
}

func (e *VectorLenError) Error() string {
	return fmt.Sprintf("dbs: vector length %d, table holds %d", e.Got, e.Want)
}
