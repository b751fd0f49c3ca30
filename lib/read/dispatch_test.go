package read

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBatches(t *testing.T) {
	sizes := map[int]int64{ 0: 10, 1: 10, 2: 10, 3: 10, 4: 10 }
	estimate := func(cpu int) int64 { return sizes[cpu] }
	cpus := []int{0, 1, 2, 3, 4}

	tests := []struct {
		maxBytes int64
		want     [][]int
	}{
		// A huge ceiling keeps everything in one batch.
		{1 << 40, [][]int{{0, 1, 2, 3, 4}}},
		// Exactly two shards fit at a time.
		{20, [][]int{{0, 1}, {2, 3}, {4}}},
		// A ceiling below any one shard still makes progress, one shard
		// per batch.
		{1, [][]int{{0}, {1}, {2}, {3}, {4}}},
		// An uneven split.
		{30, [][]int{{0, 1, 2}, {3, 4}}},
	}

	for i := range tests {
		got := batches(cpus, estimate, tests[i].maxBytes)
		require.Equal(t, tests[i].want, got,
			"maxBytes = %d", tests[i].maxBytes)
	}
}

func TestBatchesPreserveOrder(t *testing.T) {
	big := func(cpu int) int64 { return 100 }
	cpus := []int{3, 1, 4, 1, 5}

	got := batches(cpus, big, 150)
	flat := []int{}
	for _, b := range got {
		flat = append(flat, b...)
	}
	require.Equal(t, cpus, flat)
}
