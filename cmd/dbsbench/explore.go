package main

import (
	"context"

	"github.com/llxisdsh/dbs"
)

// visitedBit marks states some worker has expanded.
const visitedBit = 0

// explore expands states depth-first from a worker-specific initial state,
// pushing only successors that were new to the table.
func explore(ctx context.Context, w *dbs.Worker, o options, id int) error {
	tbl := w.Table()
	init := make([]int32, o.vectorLen)
	for i := range init {
		init[i] = int32((id + i) % o.domain)
	}
	if _, _, err := w.FindOrInsert(init); err != nil {
		return err
	}
	stack := [][]int32{init}
	succ := make([]int32, o.vectorLen)
	for budget := o.states; budget > 0 && len(stack) > 0; {
		if budget%1024 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if o.satBits > 0 {
			ref, ok := w.Lookup(cur)
			if ok && !tbl.TrySetBit(ref, visitedBit) {
				continue
			}
		}
		for i := range cur {
			for k := range 2 {
				copy(succ, cur)
				succ[i] = next(cur[i], k, o.domain)
				budget--
				_, found, err := w.FindOrInsert(succ)
				if err != nil {
					return err
				}
				if !found {
					stack = append(stack, append([]int32(nil), succ...))
				}
			}
		}
	}
	return nil
}

// next is the transition relation of one vector element.
func next(v int32, k, domain int) int32 {
	return int32((int(v)*31 + 7 + k) % domain)
}
