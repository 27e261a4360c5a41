// Command dbsbench drives a synthetic parallel state-space exploration
// against a dbs.Table and reports the table statistics.
//
// Usage:
//
//	go run ./cmd/dbsbench --workers 8 --log-size 24 --vector-len 16
//	go run ./cmd/dbsbench --hash xxh3-32 --sat-bits 2 --metrics
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dbsbench:", err)
		os.Exit(1)
	}
}
