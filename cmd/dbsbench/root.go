package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/dbs"
	"github.com/llxisdsh/dbs/dbsprom"
)

type options struct {
	workers   int
	logSize   int
	vectorLen int
	domain    int
	states    int
	satBits   int
	hash      string
	seed      uint64
	metrics   bool
	verbose   bool
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "dbsbench",
		Short: "Explore a synthetic state space with a lock-free state table",
		Long: `dbsbench runs parallel workers over a synthetic, bounded state space.
Every worker expands states depth-first, deduplicating successors through a
shared dbs.Table, and the run ends when all workers exhaust their budget or
their stacks.

Examples:
  dbsbench --workers 8 --log-size 22
  dbsbench --hash xxhash --vector-len 32 --states 100000
  dbsbench --sat-bits 1 --metrics`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), o)
		},
	}
	f := cmd.Flags()
	f.IntVar(&o.workers, "workers", 4, "number of exploring workers")
	f.IntVar(&o.logSize, "log-size", 20, "log2 of the table capacity")
	f.IntVar(&o.vectorLen, "vector-len", 8, "state vector length")
	f.IntVar(&o.domain, "domain", 16, "values per state vector element")
	f.IntVar(&o.states, "states", 50000, "successor generations per worker")
	f.IntVar(&o.satBits, "sat-bits", 1, "satellite bits per bucket")
	f.StringVar(&o.hash, "hash", "xxh3", "hash function: xxh3, xxhash or xxh3-32")
	f.Uint64Var(&o.seed, "seed", 0, "hash seed")
	f.BoolVar(&o.metrics, "metrics", false, "print Prometheus metrics after the run")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func hasher(name string) (dbs.Hasher, dbs.HashWidth, error) {
	switch name {
	case "xxh3":
		return dbs.XXH3Hash, dbs.Hash64, nil
	case "xxhash":
		return dbs.XXHashHash, dbs.Hash64, nil
	case "xxh3-32":
		return dbs.XXH3Hash32, dbs.Hash32, nil
	}
	return nil, 0, fmt.Errorf("unknown hash %q", name)
}

func run(ctx context.Context, stdout, stderr io.Writer, o options) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if o.domain < 2 {
		return fmt.Errorf("domain %d: need at least 2 values", o.domain)
	}
	h, width, err := hasher(o.hash)
	if err != nil {
		return err
	}
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	tbl, err := dbs.New(o.vectorLen, o.logSize,
		dbs.WithHasher(h, width),
		dbs.WithSeed(o.seed),
		dbs.WithSatelliteBits(o.satBits),
		dbs.WithWorkers(o.workers),
		dbs.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer tbl.Close()

	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for id := range o.workers {
		g.Go(func() error {
			w, err := tbl.Worker(id)
			if err != nil {
				return err
			}
			return explore(ctx, w, o, id)
		})
	}
	err = g.Wait()
	elapsed := time.Since(start)

	s := tbl.Stats()
	fmt.Fprint(stdout, s.String())
	fmt.Fprintf(stdout, "elapsed: %s (%.0f states/s)\n", elapsed, float64(s.Inserts)/elapsed.Seconds())
	if o.metrics {
		if merr := writeMetrics(stdout, tbl); merr != nil {
			return errors.Join(err, merr)
		}
	}
	return err
}

func writeMetrics(w io.Writer, tbl *dbs.Table) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(dbsprom.NewCollector(tbl, "dbsbench")); err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
