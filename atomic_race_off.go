//go:build !race

package dbs

import (
	"math/bits"
	"runtime"
	"sync/atomic"
)

// Detect TSO architectures; on TSO, plain reads/writes are safe for
// native word-sized integers
const isTSO = runtime.GOARCH == "amd64" ||
	runtime.GOARCH == "386" ||
	runtime.GOARCH == "s390x"

// Slot word load; plain on 64-bit TSO, otherwise atomic
//
//go:nosplit
func loadWord(addr *uint64) uint64 {
	//goland:noinspection ALL
	if isTSO && bits.UintSize >= 64 {
		return *addr
	} else {
		return atomic.LoadUint64(addr)
	}
}

// Slot word store for callers holding exclusive access to the bucket
//
//go:nosplit
func storeWord(addr *uint64, val uint64) {
	//goland:noinspection ALL
	if isTSO && bits.UintSize >= 64 {
		*addr = val
	} else {
		atomic.StoreUint64(addr, val)
	}
}
