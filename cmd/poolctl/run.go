package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/joshuapare/poolkit/pool"
	"github.com/spf13/cobra"
)

var (
	runSize   string
	runPolicy string
	runCheck  bool
	runTrace  bool
)

func init() {
	cmd := newRunCmd()
	cmd.Flags().StringVar(&runSize, "size", "1000", "Pool size in bytes (accepts 64KiB, 1MB, ...)")
	cmd.Flags().StringVar(&runPolicy, "policy", "first", "Placement policy: first or best")
	cmd.Flags().BoolVar(&runCheck, "check", false, "Verify pool invariants after every operation")
	cmd.Flags().BoolVar(&runTrace, "trace", false, "Print the layout after every operation")
	rootCmd.AddCommand(cmd)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <op>...",
		Short: "Replay an allocation script against a fresh pool",
		Long: `The run command opens one pool and applies a sequence of operations:

  a<size>   allocate size bytes; the result is labelled #1, #2, ...
  f<k>      deallocate the allocation labelled #k

Allocations that do not fit are reported and the script continues. Freeing an
unknown or already freed label stops the script with an error.

Example:
  poolctl run --size 1000 a300 a200 f1
  poolctl run --size 64KiB --policy best --trace a100 a4000 f1 a90
  poolctl run --size 1000 --json a300 f1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(args)
		},
	}
	return cmd
}

type opKind byte

const (
	opAlloc opKind = 'a'
	opFree  opKind = 'f'
)

type scriptOp struct {
	kind opKind
	arg  int64
	text string
}

// parseOp decodes one script token such as "a300" or "f2".
func parseOp(s string) (scriptOp, error) {
	if len(s) < 2 {
		return scriptOp{}, fmt.Errorf("invalid op %q: want a<size> or f<k>", s)
	}
	kind := opKind(s[0])
	if kind != opAlloc && kind != opFree {
		return scriptOp{}, fmt.Errorf("invalid op %q: want a<size> or f<k>", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 64)
	if err != nil || n <= 0 {
		return scriptOp{}, fmt.Errorf("invalid op %q: %q is not a positive number", s, s[1:])
	}
	return scriptOp{kind: kind, arg: n, text: s}, nil
}

// RunStep is the JSON record of one applied operation.
type RunStep struct {
	Op     string         `json:"op"`
	Label  int            `json:"label,omitempty"`
	Error  string         `json:"error,omitempty"`
	Layout []pool.Segment `json:"layout,omitempty"`
}

// RunResult is the JSON output of the run command.
type RunResult struct {
	Size     int64          `json:"size"`
	Policy   string         `json:"policy"`
	Steps    []RunStep      `json:"steps"`
	Segments []pool.Segment `json:"segments"`
	Stats    pool.Stats     `json:"stats"`
}

func runRun(args []string) error {
	size, err := humanize.ParseBytes(runSize)
	if err != nil {
		return fmt.Errorf("invalid --size %q: %w", runSize, err)
	}
	policy, err := pool.ParsePolicy(runPolicy)
	if err != nil {
		return err
	}

	ops := make([]scriptOp, 0, len(args))
	for _, a := range args {
		op, err := parseOp(a)
		if err != nil {
			return err
		}
		ops = append(ops, op)
	}

	reg, err := pool.NewRegistry(pool.DefaultConfig)
	if err != nil {
		return err
	}
	h, err := reg.Open(int64(size), policy)
	if err != nil {
		return fmt.Errorf("failed to open pool: %w", err)
	}
	p, err := reg.Pool(h)
	if err != nil {
		return err
	}
	if !jsonOut {
		printVerbose("Opened %s pool of %s (%s)\n", p.Policy(), humanize.IBytes(uint64(p.Size())), h)
	}

	labels := make(map[int]pool.Allocation)
	live := make(map[int]pool.Allocation)
	result := RunResult{Size: int64(size), Policy: policy.String()}

	for _, op := range ops {
		step := RunStep{Op: op.text}

		switch op.kind {
		case opAlloc:
			a, err := p.Allocate(op.arg)
			switch {
			case errors.Is(err, pool.ErrNoFit):
				step.Error = err.Error()
				if !jsonOut {
					printInfo("%-8s no fit\n", op.text)
				}
			case err != nil:
				return fmt.Errorf("%s: %w", op.text, err)
			default:
				step.Label = len(labels) + 1
				labels[step.Label] = a
				live[step.Label] = a
				if !jsonOut {
					printVerbose("%-8s -> #%d\n", op.text, step.Label)
				}
			}

		case opFree:
			a, ok := labels[int(op.arg)]
			if !ok {
				return fmt.Errorf("%s: no allocation labelled #%d", op.text, op.arg)
			}
			if err := p.Deallocate(a); err != nil {
				return fmt.Errorf("%s: %w", op.text, err)
			}
			delete(live, int(op.arg))
			if !jsonOut {
				printVerbose("%-8s freed #%d\n", op.text, op.arg)
			}
		}

		if runCheck {
			if err := p.Check(); err != nil {
				return fmt.Errorf("after %s: %w", op.text, err)
			}
		}
		if runTrace {
			step.Layout = p.Segments()
			if !jsonOut {
				printInfo("%-8s %s\n", op.text, formatLayout(step.Layout))
			}
		}
		result.Steps = append(result.Steps, step)
	}

	result.Segments = p.Segments()
	result.Stats = p.Stats()

	if jsonOut {
		if err := printJSON(result); err != nil {
			return err
		}
	} else {
		printInfo("Layout: %s\n", formatLayout(result.Segments))
		printInfo("Allocated: %s in %d allocations, %d gaps (largest %s)\n",
			humanize.Comma(result.Stats.AllocatedBytes), result.Stats.AllocationCount,
			result.Stats.GapCount, humanize.Comma(result.Stats.LargestGap))
	}

	return drain(reg, h, p, live)
}

// drain frees whatever the script left allocated and tears the registry down
// so the backing region is returned.
func drain(reg *pool.Registry, h pool.PoolHandle, p *pool.Pool, live map[int]pool.Allocation) error {
	for _, a := range live {
		if err := p.Deallocate(a); err != nil {
			return err
		}
	}
	if err := reg.Close(h); err != nil {
		return err
	}
	return reg.Teardown()
}

// formatLayout renders segments compactly, e.g. "A300 A200 F500".
func formatLayout(segs []pool.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte(' ')
		}
		if s.Allocated {
			b.WriteByte('A')
		} else {
			b.WriteByte('F')
		}
		b.WriteString(strconv.FormatInt(s.Size, 10))
	}
	return b.String()
}
