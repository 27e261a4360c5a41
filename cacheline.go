package dbs

import (
	"math/bits"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is used in structure padding to prevent false sharing and to
// size the line-local probe window. It's automatically calculated using the
// `golang.org/x/sys` package.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})

// slotsPerLine is the number of slot words sharing one cache line.
const slotsPerLine = int(CacheLineSize / unsafe.Sizeof(uint64(0)))

// slotsPerLineLog2 is log2(slotsPerLine).
var slotsPerLineLog2 = bits.TrailingZeros(uint(slotsPerLine))
