// Command benchmark_parser turns `go test -bench` output for the pool package
// into a markdown report comparing first-fit and best-fit placement.
//
//	go test -bench . -benchmem ./pool | go run ./scripts -output bench.md
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// BenchmarkResult represents a parsed benchmark result.
type BenchmarkResult struct {
	Name        string
	Workload    string
	Policy      string // "first-fit" or "best-fit"
	Iterations  int
	NsPerOp     float64
	BytesPerOp  int64
	AllocsPerOp int64
}

// ComparisonResult pairs the two policies on one workload.
type ComparisonResult struct {
	Workload string
	First    BenchmarkResult
	Best     BenchmarkResult
	HasFirst bool
	HasBest  bool
}

// Ratio returns best-fit time over first-fit time; above 1 means first-fit
// was faster.
func (c ComparisonResult) Ratio() float64 {
	if !c.HasFirst || !c.HasBest || c.First.NsPerOp == 0 {
		return 0
	}
	return c.Best.NsPerOp / c.First.NsPerOp
}

var (
	inputFile = flag.String(
		"input",
		"",
		"Input file with benchmark output (stdin if not specified)",
	)
	outputFile = flag.String("output", "", "Output markdown file (stdout if not specified)")
	quiet      = flag.Bool("quiet", false, "Suppress progress output")
)

var (
	// Benchmark_Churn_Fragmented/best-fit-8    500000    2450 ns/op    0 B/op    0 allocs/op
	benchmarkRegex = regexp.MustCompile(
		`^(Benchmark\S+)\s+(\d+)\s+([\d.]+)\s+ns/op(?:\s+([\d.]+)\s+B/op)?(?:\s+([\d.]+)\s+allocs/op)?`,
	)
	// GOMAXPROCS suffix, absent when it is 1
	procsSuffix = regexp.MustCompile(`-\d+$`)
)

func main() {
	flag.Parse()

	var in io.Reader = os.Stdin
	if *inputFile != "" {
		f, err := os.Open(*inputFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening input file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	results := parseBenchmarks(bufio.NewScanner(in))
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Parsed %d benchmark results\n", len(results))
	}

	report := generateMarkdownReport(generateComparisons(results), time.Now())

	if *outputFile == "" {
		fmt.Fprint(os.Stdout, report)
		return
	}
	if err := os.WriteFile(*outputFile, []byte(report), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output file: %v\n", err)
		os.Exit(1)
	}
	if !*quiet {
		fmt.Fprintf(os.Stderr, "Report written to %s\n", *outputFile)
	}
}

func parseBenchmarks(scanner *bufio.Scanner) []BenchmarkResult {
	var results []BenchmarkResult

	for scanner.Scan() {
		line := scanner.Text()

		// Lines from `go test -json` carry the text in Output
		var event map[string]any
		if err := json.Unmarshal([]byte(line), &event); err == nil {
			if output, ok := event["Output"].(string); ok {
				line = output
			}
		}

		m := benchmarkRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		// Format: Benchmark<Workload>/<policy>-<procs>
		parts := strings.Split(m[1], "/")
		if len(parts) != 2 {
			continue
		}
		policy := procsSuffix.ReplaceAllString(parts[1], "")

		r := BenchmarkResult{
			Name:     m[1],
			Workload: strings.TrimPrefix(strings.TrimPrefix(parts[0], "Benchmark"), "_"),
			Policy:   policy,
		}
		r.Iterations, _ = strconv.Atoi(m[2])
		r.NsPerOp, _ = strconv.ParseFloat(m[3], 64)
		if m[4] != "" {
			r.BytesPerOp, _ = strconv.ParseInt(m[4], 10, 64)
		}
		if m[5] != "" {
			r.AllocsPerOp, _ = strconv.ParseInt(m[5], 10, 64)
		}
		results = append(results, r)
	}

	return results
}

func generateComparisons(results []BenchmarkResult) []ComparisonResult {
	byWorkload := make(map[string]*ComparisonResult)
	for _, r := range results {
		c := byWorkload[r.Workload]
		if c == nil {
			c = &ComparisonResult{Workload: r.Workload}
			byWorkload[r.Workload] = c
		}
		switch r.Policy {
		case "first-fit":
			c.First, c.HasFirst = r, true
		case "best-fit":
			c.Best, c.HasBest = r, true
		}
	}

	comparisons := make([]ComparisonResult, 0, len(byWorkload))
	for _, c := range byWorkload {
		comparisons = append(comparisons, *c)
	}
	sort.Slice(comparisons, func(i, j int) bool {
		return comparisons[i].Workload < comparisons[j].Workload
	})
	return comparisons
}

func generateMarkdownReport(comparisons []ComparisonResult, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Placement Policy Benchmark Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", now.Format("2006-01-02 15:04:05"))

	sb.WriteString("| Workload | first-fit (ns/op) | best-fit (ns/op) | best/first | Allocs (first vs best) |\n")
	sb.WriteString("|----------|-------------------|------------------|------------|------------------------|\n")

	for _, c := range comparisons {
		ratio := "*N/A*"
		if r := c.Ratio(); r > 0 {
			ratio = fmt.Sprintf("%.2fx", r)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s vs %s |\n",
			c.Workload,
			formatNs(c.First, c.HasFirst),
			formatNs(c.Best, c.HasBest),
			ratio,
			humanize.Comma(c.First.AllocsPerOp),
			humanize.Comma(c.Best.AllocsPerOp),
		)
	}

	return sb.String()
}

func formatNs(r BenchmarkResult, ok bool) string {
	if !ok {
		return "*N/A*"
	}
	return strconv.FormatFloat(r.NsPerOp, 'f', 1, 64)
}
