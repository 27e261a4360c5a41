package dbs

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Hasher hashes a state vector. Only the low HashWidth bits of the result
// are used by the table.
type Hasher func(vec []int32, seed uint64) uint64

// HashWidth is the number of meaningful bits a Hasher produces.
type HashWidth int

const (
	Hash32 HashWidth = 32
	Hash64 HashWidth = 64
)

// goldenRatio64 is the 64-bit Golden Ratio mixing constant.
const goldenRatio64 = 0x9E3779B185EBCA87

// vectorBytes reinterprets vec as its backing bytes without copying.
func vectorBytes(vec []int32) []byte {
	if len(vec) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(vec))), len(vec)*4)
}

// XXH3Hash is the default 64-bit hasher.
func XXH3Hash(vec []int32, seed uint64) uint64 {
	return xxh3.HashSeed(vectorBytes(vec), seed)
}

// XXHashHash is a 64-bit hasher based on XXH64.
func XXHashHash(vec []int32, seed uint64) uint64 {
	if seed == 0 {
		return xxhash.Sum64(vectorBytes(vec))
	}
	d := xxhash.NewWithSeed(seed)
	_, _ = d.Write(vectorBytes(vec))
	return d.Sum64()
}

// XXH3Hash32 folds XXH3 down to 32 bits. Use it with Hash32.
func XXH3Hash32(vec []int32, seed uint64) uint64 {
	h := xxh3.HashSeed(vectorBytes(vec), seed) * goldenRatio64
	return h >> 32
}

// primes are odd strides for rehashing between probe rounds. An odd stride
// never divides the power-of-two line count, so successive rounds do not
// cycle over a short subset of lines.
var primes = [...]uint64{
	3, 5, 7, 11, 13, 17, 19, 23,
	29, 31, 37, 41, 43, 47, 53, 59,
	61, 67, 71, 73, 79, 83, 89, 97,
	101, 103, 107, 109, 113, 127, 131, 137,
	139, 149, 151, 157, 163, 167, 173, 179,
	181, 191, 193, 197, 199, 211, 223, 227,
	229, 233, 239, 241, 251, 257, 263, 269,
	271, 277, 281, 283, 293, 307, 311, 313,
}

const primeMask = uint64(len(primes) - 1)

// probe is the position of one lookup in its probe sequence.
type probe struct {
	hash  uint64
	prime uint64
	memo  slotWord
}

// makeProbe derives the starting bucket, the memoized hash and the rehash
// stride from h. The memo is taken from hash bits the bucket index does not
// use: the upper half of a 64-bit hash, or the bits above mask of a 32-bit
// hash.
func makeProbe(h uint64, width HashWidth, logSize uint, l layout) probe {
	prime := primes[h&primeMask]
	var m uint64
	if width == Hash64 {
		m = h >> 32
	} else {
		m = uint64(uint32(h)) >> logSize
	}
	return probe{hash: h, prime: prime, memo: l.memoOf(m, prime)}
}

// bucket returns the first bucket of the current round.
func (p probe) bucket(mask uint64) uint64 {
	return p.hash & mask
}

// next rehashes to the following round. The stride is a whole number of
// lines, so each round starts in a different line.
func (p probe) next(lineLog2 uint) probe {
	p.hash += p.prime << lineLog2
	return p
}
