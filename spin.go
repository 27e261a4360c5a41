package dbs

import "runtime"

// activeSpins is the number of busy polls before a waiter starts yielding
// its processor to the publishing goroutine.
const activeSpins = 32

func delay(spins *int) {
	if *spins < activeSpins {
		*spins++
		return
	}
	// The publisher may be descheduled on this P; let it run.
	runtime.Gosched()
}
