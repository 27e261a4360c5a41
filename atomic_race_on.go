//go:build race

package dbs

import "sync/atomic"

// Under race detector, disable TSO optimizations and use conservative
// atomic loads/stores
const isTSO = false

// Conservative: atomic slot word load to satisfy race detector
//
//go:nosplit
func loadWord(addr *uint64) uint64 {
	return atomic.LoadUint64(addr)
}

// Conservative: atomic slot word store to satisfy race detector
//
//go:nosplit
func storeWord(addr *uint64, val uint64) {
	atomic.StoreUint64(addr, val)
}
