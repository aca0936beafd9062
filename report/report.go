// Package report writes the sweep result log and summarizes completed
// sweeps as comparison tables.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/weiihann/tunesweep/harness"
)

// Generate writes a markdown summary of the given results: every cell with
// its slowdown relative to the fastest constant for the same input size,
// followed by the best constant per size.
func Generate(w io.Writer, results []harness.Result) error {
	if len(results) == 0 {
		return fmt.Errorf("no results to report")
	}

	fastest := fastestBySize(results)
	sizes := inputSizes(results)
	withBlocks := hasBlockCounts(results)

	fmt.Fprintln(w, "## Sweep Results")
	fmt.Fprintln(w)

	if withBlocks {
		fmt.Fprintln(w, "| Constant | Blocks | Input Size | Elapsed | Throughput | Slowdown |")
		fmt.Fprintln(w, "|----------|--------|------------|---------|------------|----------|")
	} else {
		fmt.Fprintln(w, "| Constant | Input Size | Elapsed | Throughput | Slowdown |")
		fmt.Fprintln(w, "|----------|------------|---------|------------|----------|")
	}

	for _, r := range results {
		slowdown := 1.0
		if best := fastest[r.InputSize]; best.Elapsed > 0 && r.Elapsed > 0 {
			slowdown = float64(r.Elapsed) / float64(best.Elapsed)
		}

		if withBlocks {
			fmt.Fprintf(w, "| %d | %d | %s | %s | %s | %.2fx |\n",
				r.Constant,
				r.BlockCount,
				formatSize(r.InputSize),
				formatElapsed(r.Elapsed),
				formatThroughput(r.InputSize, r.Elapsed),
				slowdown,
			)
		} else {
			fmt.Fprintf(w, "| %d | %s | %s | %s | %.2fx |\n",
				r.Constant,
				formatSize(r.InputSize),
				formatElapsed(r.Elapsed),
				formatThroughput(r.InputSize, r.Elapsed),
				slowdown,
			)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Input Size | Best Constant | Elapsed |")
	fmt.Fprintln(w, "|------------|---------------|---------|")

	for _, size := range sizes {
		best := fastest[size]
		fmt.Fprintf(w, "| %s | %d | %s |\n",
			formatSize(size),
			best.Constant,
			formatElapsed(best.Elapsed),
		)
	}

	return nil
}

// GenerateJSON writes results as JSON to w.
func GenerateJSON(w io.Writer, results []harness.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(results)
}

// fastestBySize returns the quickest result for every input size. Ties keep
// the first result seen, i.e. the smaller position in the sweep.
func fastestBySize(results []harness.Result) map[int64]harness.Result {
	fastest := make(map[int64]harness.Result)
	for _, r := range results {
		best, ok := fastest[r.InputSize]
		if !ok || r.Elapsed < best.Elapsed {
			fastest[r.InputSize] = r
		}
	}

	return fastest
}

func inputSizes(results []harness.Result) []int64 {
	sizes := make([]int64, 0, len(results))
	for _, r := range results {
		if !slices.Contains(sizes, r.InputSize) {
			sizes = append(sizes, r.InputSize)
		}
	}

	slices.Sort(sizes)

	return sizes
}

func hasBlockCounts(results []harness.Result) bool {
	for _, r := range results {
		if r.BlockCount > 0 {
			return true
		}
	}

	return false
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
	}

	return fmt.Sprintf("%.2fs", d.Seconds())
}

func formatSize(b int64) string {
	if b < 1000 {
		return fmt.Sprintf("%d B", b)
	}

	return humanize.Bytes(uint64(b))
}

func formatThroughput(size int64, d time.Duration) string {
	if size == 0 || d <= 0 {
		return "-"
	}

	return humanize.Bytes(uint64(float64(size)/d.Seconds())) + "/s"
}
