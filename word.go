package dbs

// slotWord is the packed per-bucket word. From the least significant bit:
//
//	[0, satBits)    satellite bits, owned by the calling algorithm
//	satBits         write bit, set once the vector is published
//	(satBits, 64)   memoized hash
//
// A bucket moves EMPTY -> WAIT -> DONE exactly once:
//
//	EMPTY  0
//	WAIT   memo
//	DONE   memo | writeBit
//
// The memo field of a claimed bucket is never zero, so no legitimate word
// collides with EMPTY or with a bare write bit.
type slotWord uint64

const emptyWord slotWord = 0

// maxSatelliteBits is the widest satellite field a layout accepts.
const maxSatelliteBits = 31

// layout holds the masks that split a slotWord for a given satellite width.
type layout struct {
	satBits   uint
	satMask   slotWord
	writeBit  slotWord
	memoShift uint
	memoMask  slotWord
}

func newLayout(satBits int) layout {
	l := layout{satBits: uint(satBits)}
	l.satMask = slotWord(1)<<l.satBits - 1
	l.writeBit = slotWord(1) << l.satBits
	l.memoShift = l.satBits + 1
	l.memoMask = ^(l.satMask | l.writeBit)
	return l
}

// memo returns the word with the write bit and satellite bits cleared.
func (l layout) memo(w slotWord) slotWord {
	return w & l.memoMask
}

// done reports whether the bucket's vector has been published.
func (l layout) done(w slotWord) bool {
	return w&l.writeBit != 0
}

// wait is the word a claiming writer installs over EMPTY.
func (l layout) wait(memo slotWord) slotWord {
	return memo
}

func (l layout) bits(w slotWord) uint32 {
	return uint32(w & l.satMask)
}

func (l layout) withBits(w slotWord, v uint32) slotWord {
	return w&^l.satMask | slotWord(v)&l.satMask
}

func (l layout) bit(w slotWord, i uint) bool {
	return w&(1<<i) != 0
}

// memoOf positions the raw memo hash m in the memo field. A zero field is
// perturbed by prime until it is non-zero.
func (l layout) memoOf(m, prime uint64) slotWord {
	w := slotWord(m<<l.memoShift) & l.memoMask
	for w == emptyWord || w == l.writeBit {
		w = (w + slotWord(prime<<l.memoShift)) & l.memoMask
	}
	return w
}
