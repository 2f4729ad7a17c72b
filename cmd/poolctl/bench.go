package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joshuapare/poolkit/pool"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/cobra"
)

var (
	benchPools   int
	benchOps     int
	benchWorkers int
	benchSize    string
	benchMaxSize int64
	benchPolicy  string
	benchSeed    int64
)

// benchBatch is the number of operations one worker task applies while
// holding a pool's lock.
const benchBatch = 256

func init() {
	cmd := newBenchCmd()
	cmd.Flags().IntVar(&benchPools, "pools", 8, "Number of pools")
	cmd.Flags().IntVar(&benchOps, "ops", 100_000, "Total operations across all pools")
	cmd.Flags().IntVar(&benchWorkers, "workers", 4, "Concurrent workers")
	cmd.Flags().StringVar(&benchSize, "size", "1MiB", "Size of each pool")
	cmd.Flags().Int64Var(&benchMaxSize, "max-alloc", 4096, "Largest allocation request in bytes")
	cmd.Flags().StringVar(&benchPolicy, "policy", "first", "Placement policy: first or best")
	cmd.Flags().Int64Var(&benchSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run random allocation churn on many pools concurrently",
		Long: `The bench command opens several pools and applies random allocate and
deallocate operations to them from a pool of worker goroutines. Each pool is
guarded by its own mutex; pools never share state, so workers on different
pools run in parallel.

Example:
  poolctl bench
  poolctl bench --pools 32 --workers 8 --ops 1000000 --policy best
  poolctl bench --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench()
		},
	}
	return cmd
}

// benchPool is one pool under churn with the lock that serializes access.
type benchPool struct {
	mu     sync.Mutex
	handle pool.PoolHandle
	p      *pool.Pool
	live   []pool.Allocation
	noFit  int
}

// churn applies n random operations. Callers hold b.mu.
func (b *benchPool) churn(rng *rand.Rand, n int, maxSize int64) error {
	for range n {
		if len(b.live) == 0 || rng.Intn(2) == 0 {
			a, err := b.p.Allocate(1 + rng.Int63n(maxSize))
			if errors.Is(err, pool.ErrNoFit) {
				b.noFit++
				continue
			}
			if err != nil {
				return err
			}
			b.live = append(b.live, a)
			continue
		}
		i := rng.Intn(len(b.live))
		if err := b.p.Deallocate(b.live[i]); err != nil {
			return err
		}
		b.live[i] = b.live[len(b.live)-1]
		b.live = b.live[:len(b.live)-1]
	}
	return nil
}

// BenchPoolResult is the per-pool part of the bench JSON output.
type BenchPoolResult struct {
	Handle string     `json:"handle"`
	Live   int        `json:"live"`
	NoFit  int        `json:"no_fit"`
	Stats  pool.Stats `json:"stats"`
}

// BenchResult is the JSON output of the bench command.
type BenchResult struct {
	Pools   int               `json:"pools"`
	Workers int               `json:"workers"`
	Ops     int               `json:"ops"`
	Policy  string            `json:"policy"`
	Elapsed time.Duration     `json:"elapsed_ns"`
	OpsPerS float64           `json:"ops_per_sec"`
	PerPool []BenchPoolResult `json:"per_pool"`
}

func runBench() error {
	if benchPools <= 0 || benchWorkers <= 0 || benchOps < 0 || benchMaxSize <= 0 {
		return fmt.Errorf("--pools, --workers and --max-alloc must be positive, --ops non-negative")
	}
	size, err := humanize.ParseBytes(benchSize)
	if err != nil {
		return fmt.Errorf("invalid --size %q: %w", benchSize, err)
	}
	policy, err := pool.ParsePolicy(benchPolicy)
	if err != nil {
		return err
	}

	reg, err := pool.NewRegistry(pool.DefaultConfig)
	if err != nil {
		return err
	}
	pools := make([]*benchPool, benchPools)
	for i := range pools {
		h, err := reg.Open(int64(size), policy)
		if err != nil {
			return fmt.Errorf("failed to open pool %d: %w", i, err)
		}
		p, err := reg.Pool(h)
		if err != nil {
			return err
		}
		pools[i] = &benchPool{handle: h, p: p}
	}
	if !jsonOut {
		printVerbose("Opened %d %s pools of %s\n", benchPools, policy, humanize.IBytes(size))
	}

	workers, err := ants.NewPool(benchWorkers)
	if err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	defer workers.Release()

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	start := time.Now()
	for task, remaining := 0, benchOps; remaining > 0; task++ {
		n := min(benchBatch, remaining)
		remaining -= n
		bp := pools[task%len(pools)]
		rng := rand.New(rand.NewSource(benchSeed + int64(task)))

		wg.Add(1)
		err := workers.Submit(func() {
			defer wg.Done()
			bp.mu.Lock()
			defer bp.mu.Unlock()
			if err := bp.churn(rng, n, benchMaxSize); err != nil {
				errMu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", bp.handle, err)
				}
				errMu.Unlock()
			}
		})
		if err != nil {
			wg.Done()
			return fmt.Errorf("failed to submit task: %w", err)
		}
	}
	wg.Wait()
	elapsed := time.Since(start)
	if firstErr != nil {
		return firstErr
	}

	result := BenchResult{
		Pools:   benchPools,
		Workers: benchWorkers,
		Ops:     benchOps,
		Policy:  policy.String(),
		Elapsed: elapsed,
	}
	if elapsed > 0 {
		result.OpsPerS = float64(benchOps) / elapsed.Seconds()
	}
	for _, bp := range pools {
		if err := bp.p.Check(); err != nil {
			return fmt.Errorf("%s: %w", bp.handle, err)
		}
		result.PerPool = append(result.PerPool, BenchPoolResult{
			Handle: bp.handle.String(),
			Live:   len(bp.live),
			NoFit:  bp.noFit,
			Stats:  bp.p.Stats(),
		})
	}

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printBench(result)
	}

	for _, bp := range pools {
		for _, a := range bp.live {
			if err := bp.p.Deallocate(a); err != nil {
				return err
			}
		}
		if err := reg.Close(bp.handle); err != nil {
			return err
		}
	}
	return reg.Teardown()
}

func printBench(r BenchResult) {
	printInfo("%s ops on %d %s pools with %d workers in %s (%s ops/s)\n\n",
		humanize.Comma(int64(r.Ops)), r.Pools, r.Policy, r.Workers,
		r.Elapsed.Round(time.Microsecond), humanize.Comma(int64(r.OpsPerS)))
	printInfo("%-14s %10s %10s %8s %8s %8s %7s\n",
		"POOL", "ALLOCATED", "LARGEST", "LIVE", "GAPS", "NO-FIT", "FRAG")
	for _, p := range r.PerPool {
		printInfo("%-14s %10s %10s %8d %8d %8d %6.1f%%\n",
			p.Handle,
			humanize.IBytes(uint64(p.Stats.AllocatedBytes)),
			humanize.IBytes(uint64(p.Stats.LargestGap)),
			p.Live, p.Stats.GapCount, p.NoFit, p.Stats.Fragmentation()*100)
	}
}
