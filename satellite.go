package dbs

import (
	"fmt"
	"sync/atomic"
)

// The satellite channel addresses only the low SatelliteBits() bits of a
// bucket's word. None of these operations touch the memo or the write bit,
// so they may run concurrently with lookups of the same bucket. ref must
// come from a successful FindOrInsert or Lookup.

// GetBits returns the satellite field of ref.
func (t *Table) GetBits(ref Ref) uint32 {
	return t.layout.bits(slotWord(loadWord(&t.slots[ref])))
}

// GetBit reports whether satellite bit i of ref is set.
func (t *Table) GetBit(ref Ref, i int) bool {
	t.checkBit(i)
	return t.layout.bit(slotWord(loadWord(&t.slots[ref])), uint(i))
}

// SetBits overwrites the satellite field of ref with v. It is not atomic
// with respect to other satellite writers; the caller must hold exclusive
// access to ref's satellite field. It panics with a *SatelliteOverflowError
// if v does not fit.
func (t *Table) SetBits(ref Ref, v uint32) {
	if slotWord(v)&^t.layout.satMask != 0 {
		panic(&SatelliteOverflowError{Ref: ref, Op: "set", Width: t.satBits, Value: uint64(v)})
	}
	addr := &t.slots[ref]
	storeWord(addr, uint64(t.layout.withBits(slotWord(loadWord(addr)), v)))
}

// TrySetBit sets satellite bit i of ref. It returns true only if this call
// changed the bit from 0 to 1.
func (t *Table) TrySetBit(ref Ref, i int) bool {
	t.checkBit(i)
	addr := &t.slots[ref]
	m := uint64(1) << uint(i)
	for {
		old := atomic.LoadUint64(addr)
		if old&m != 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(addr, old, old|m) {
			return true
		}
	}
}

// TryUnsetBit clears satellite bit i of ref. It returns true only if this
// call changed the bit from 1 to 0.
func (t *Table) TryUnsetBit(ref Ref, i int) bool {
	t.checkBit(i)
	addr := &t.slots[ref]
	m := uint64(1) << uint(i)
	for {
		old := atomic.LoadUint64(addr)
		if old&m == 0 {
			return false
		}
		if atomic.CompareAndSwapUint64(addr, old, old&^m) {
			return true
		}
	}
}

// TrySetBits replaces the width-bit sub-field at offset within the satellite
// field of ref with value, provided it currently holds expected. It returns
// whether the swap happened.
func (t *Table) TrySetBits(ref Ref, width, offset int, expected, value uint32) bool {
	if width < 1 || offset < 0 || width+offset > t.satBits {
		panic(fmt.Sprintf("dbs: satellite sub-field [%d, %d) outside %d bits", offset, offset+width, t.satBits))
	}
	m := uint64(1)<<uint(width) - 1
	if uint64(value)&^m != 0 {
		panic(&SatelliteOverflowError{Ref: ref, Op: "set", Width: width, Value: uint64(value)})
	}
	addr := &t.slots[ref]
	shift := uint(offset)
	for {
		old := atomic.LoadUint64(addr)
		if (old>>shift)&m != uint64(expected) {
			return false
		}
		nv := old&^(m<<shift) | uint64(value)<<shift
		if atomic.CompareAndSwapUint64(addr, old, nv) {
			return true
		}
	}
}

// IncBits increments the satellite field of ref and returns the new value.
// It panics with a *SatelliteOverflowError if the field is already at its
// maximum.
func (t *Table) IncBits(ref Ref) uint32 {
	return t.addBits(ref, 1, "increment")
}

// DecBits decrements the satellite field of ref and returns the new value.
// It panics with a *SatelliteOverflowError if the field is already zero.
func (t *Table) DecBits(ref Ref) uint32 {
	return t.addBits(ref, -1, "decrement")
}

func (t *Table) addBits(ref Ref, delta int64, op string) uint32 {
	l := t.layout
	addr := &t.slots[ref]
	for {
		old := slotWord(atomic.LoadUint64(addr))
		v := int64(l.bits(old)) + delta
		if v < 0 || v > int64(l.satMask) {
			panic(&SatelliteOverflowError{Ref: ref, Op: op, Width: t.satBits, Value: uint64(l.bits(old))})
		}
		if atomic.CompareAndSwapUint64(addr, uint64(old), uint64(l.withBits(old, uint32(v)))) {
			return uint32(v)
		}
	}
}

func (t *Table) checkBit(i int) {
	if i < 0 || i >= t.satBits {
		panic(fmt.Sprintf("dbs: satellite bit %d outside %d bits", i, t.satBits))
	}
}
