package read

import (
	"fmt"
	"strings"
)

// ShardError records the failure of a single shard: its 0-based CPU index
// and the underlying structural or framing error.
type ShardError struct {
	CPU int
	Err error
}

func (e *ShardError) Error() string {
	return fmt.Sprintf("CPU %d: %s", e.CPU, e.Err.Error())
}

func (e *ShardError) Unwrap() error { return e.Err }

// PartialReadError aggregates every shard that failed during one read. It is
// only raised after all shards have been attempted, so the shards it doesn't
// name were read successfully. Callers decide whether a partial result is
// usable; Options.AllowPartial accepts it up front.
type PartialReadError struct {
	Failed []*ShardError
}

func (e *PartialReadError) Error() string {
	lines := make([]string, len(e.Failed))
	for i := range e.Failed {
		lines[i] = "  " + e.Failed[i].Error()
	}
	return fmt.Sprintf("%d of the output's shards could not be read. The "+
		"rest were read successfully, so you may retry, ignore the missing "+
		"shards (set AllowPartial), or investigate the files below:\n%s",
		len(e.Failed), strings.Join(lines, "\n"))
}

// CPUs returns the 0-based indices of the failed shards, ascending.
func (e *PartialReadError) CPUs() []int {
	out := make([]int, len(e.Failed))
	for i := range e.Failed {
		out[i] = e.Failed[i].CPU
	}
	return out
}
