package read

import (
	"os"
	"sort"
	"sync"

	"github.com/phil-mansfield/remora/lib/table"
)

/* dispatch.go runs per-shard readers across a fixed pool of worker
goroutines. Shards are claimed from a shared queue, so wall-clock completion
order is scheduling-dependent, but results are always placed back into
canonical CPU-index order before concatenation: a read returns bit-identical
tables no matter how many threads it ran on. */

// readFunc reads one shard into a shard-local table. A nil table with a nil
// error is allowed and means the shard contributed no rows.
type readFunc func(cpu int) (*table.Table, error)

// estimateFunc estimates the bytes a shard's table will occupy. It only
// steers batch sizing, so it just needs to be cheap, deterministic, and
// roughly proportional to the truth.
type estimateFunc func(cpu int) int64

// fileSizeEstimate builds an estimateFunc from the on-disk sizes of the
// files backing each shard. Disk size over-counts filtered reads, which errs
// on the safe side for memory.
func fileSizeEstimate(paths func(cpu int) []string) estimateFunc {
	return func(cpu int) int64 {
		total := int64(0)
		for _, p := range paths(cpu) {
			if stat, err := os.Stat(p); err == nil {
				total += stat.Size()
			}
		}
		return total
	}
}

// batches splits cpus into contiguous groups whose estimated footprints stay
// under maxBytes. Every group holds at least one shard, so a single
// oversized shard still gets read.
func batches(cpus []int, estimate estimateFunc, maxBytes int64) [][]int {
	out := [][]int{}
	start, total := 0, int64(0)
	for i := range cpus {
		size := estimate(cpus[i])
		if i > start && total+size > maxBytes {
			out = append(out, cpus[start:i])
			start, total = i, 0
		}
		total += size
	}
	if start < len(cpus) {
		out = append(out, cpus[start:])
	}
	return out
}

// runShards reads every candidate shard with sel.threads workers and merges
// the results in canonical CPU order. Shard-level failures are collected;
// if any occurred, the returned *PartialReadError lists all of them. The
// error return is reserved for fatal problems (schema mismatches).
func runShards(
	cpus []int, sel *selection, estimate estimateFunc, read readFunc,
) (*table.Table, *PartialReadError, error) {
	merged := []*table.Table{}
	failed := []*ShardError{}

	for _, batch := range batches(cpus, estimate, sel.maxBatchBytes) {
		tables := make([]*table.Table, len(batch))

		jobs := make(chan int)
		var mu sync.Mutex
		var wg sync.WaitGroup

		nWorkers := sel.threads
		if nWorkers > len(batch) { nWorkers = len(batch) }
		for w := 0; w < nWorkers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					tab, err := read(batch[i])
					if err != nil {
						mu.Lock()
						failed = append(failed,
							&ShardError{ CPU: batch[i], Err: err })
						mu.Unlock()
						continue
					}
					// tables is written at distinct indices per shard, so
					// no lock is needed.
					tables[i] = tab
				}
			}()
		}
		for i := range batch {
			jobs <- i
		}
		close(jobs)
		wg.Wait()

		// Flush the batch into the running merge so at most one batch's
		// worth of shard tables is alive at a time.
		flushed, err := table.Concat(tables)
		if err != nil { return nil, nil, err }
		// A batch whose shards all failed or were all nil has no schema to
		// contribute.
		if len(flushed.Columns()) > 0 {
			merged = append(merged, flushed)
		}
	}

	out, err := table.Concat(merged)
	if err != nil { return nil, nil, err }

	if len(failed) > 0 {
		sort.Slice(failed, func(i, j int) bool {
			return failed[i].CPU < failed[j].CPU
		})
		return out, &PartialReadError{ failed }, nil
	}
	return out, nil, nil
}
