package read

import (
	"fmt"
	"log"
	"runtime"

	"github.com/phil-mansfield/remora/lib/hilbert"
	"github.com/phil-mansfield/remora/lib/output"
)

// Kind identifies which dataset a read targets. Reader logic is selected by
// this explicit tag, one implementation per variant.
type Kind int

const (
	HydroKind Kind = iota
	GravKind
	PartKind
	ClumpKind
)

func (k Kind) String() string {
	switch k {
	case HydroKind: return "hydro"
	case GravKind: return "gravity"
	case PartKind: return "particles"
	case ClumpKind: return "clumps"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DefaultMaxBatchBytes caps the estimated bytes of shard data a read holds
// in memory at once before flushing into the running merge.
const DefaultMaxBatchBytes = 1 << 30

// Options configures one read call. The zero value selects everything: all
// variables, all levels, the whole domain, all CPUs' worth of threads.
type Options struct {
	// Vars selects the physical variables to materialize. Structural
	// columns (level, cx, cy, cz for cell data) are always included. Nil
	// selects every variable the output carries.
	Vars []string

	// LMin and LMax bound the refinement levels loaded. Zero means "use
	// the output's bound".
	LMin, LMax int

	// XRange, YRange and ZRange select a box in code units over the [0,1]
	// domain. A cell or particle is kept when its center position lies in
	// the half-open interval [lo, hi) on every axis, so boundary cells'
	// footprints may extend slightly outside the box. The zero value
	// selects the full axis. Requested ranges are clipped to [0,1], and
	// the clipped values are what the returned dataset records.
	XRange, YRange, ZRange [2]float64

	// Smallr and Smallc are the density and sound-speed floors. Densities
	// below Smallr are clamped up to it, and pressures implying a sound
	// speed below Smallc are clamped up equivalently. Zero disables the
	// floor.
	Smallr, Smallc float64

	// CheckNeg reports (without correcting) negative values found in
	// variables other than density and pressure, through Log.
	CheckNeg bool

	// Threads is the worker count; <= 0 means all available cores.
	Threads int

	// MaxBatchBytes bounds the estimated memory held in unfinished shard
	// tables; <= 0 means DefaultMaxBatchBytes.
	MaxBatchBytes int64

	// AllowPartial accepts results with failed shards: the failures are
	// recorded on the dataset instead of being returned as a
	// PartialReadError.
	AllowPartial bool

	// Log receives progress and data-quality diagnostics. Nil is silent.
	// This is deliberately per-call state, never a process-wide toggle.
	Log *log.Logger
}

// selection is a normalized, validated Options, resolved against one output.
type selection struct {
	kind Kind

	// vars are the materialized variable names; varIdx their indices into
	// the output's full variable list for this kind.
	vars   []string
	varIdx []int

	lmin, lmax int
	box        hilbert.Box
	fullBox    bool

	smallr, smallc float64
	checkNeg       bool

	threads       int
	maxBatchBytes int64
	allowPartial  bool
	log           *log.Logger
}

// clipAxis normalizes one axis range: the zero value becomes the full axis
// and everything is clipped to [0, 1].
func clipAxis(r [2]float64) ([2]float64, error) {
	if r[0] == 0 && r[1] == 0 { return [2]float64{0, 1}, nil }
	if r[0] < 0 { r[0] = 0 }
	if r[1] > 1 { r[1] = 1 }
	if r[0] >= r[1] {
		return r, fmt.Errorf("The selection range [%g, %g] is empty after "+
			"clipping to the [0, 1] domain.", r[0], r[1])
	}
	return r, nil
}

// normalize validates opt against the output and the variable list for the
// requested dataset kind.
func normalize(
	info *output.Info, opt Options, kind Kind, allVars []string,
) (*selection, error) {
	sel := &selection{ kind: kind }

	sel.lmin, sel.lmax = opt.LMin, opt.LMax
	if sel.lmin == 0 { sel.lmin = info.LevelMin }
	if sel.lmax == 0 { sel.lmax = info.LevelMax }
	if sel.lmin < info.LevelMin { sel.lmin = info.LevelMin }
	if sel.lmax > info.LevelMax { sel.lmax = info.LevelMax }
	if sel.lmin > sel.lmax {
		return nil, fmt.Errorf("The requested level range [%d, %d] is "+
			"empty within the output's range [%d, %d].",
			opt.LMin, opt.LMax, info.LevelMin, info.LevelMax)
	}

	var err error
	ranges := [3][2]float64{opt.XRange, opt.YRange, opt.ZRange}
	// Clump catalogues carry no per-row spatial filter, so their reads must
	// scan every shard: Hilbert pruning on a partial box would drop rows.
	if kind == ClumpKind {
		ranges = [3][2]float64{}
	}
	for d := 0; d < 3; d++ {
		sel.box[d], err = clipAxis(ranges[d])
		if err != nil { return nil, err }
	}
	sel.fullBox = sel.box == hilbert.Box{{0, 1}, {0, 1}, {0, 1}}

	if opt.Vars == nil {
		sel.vars = append([]string{}, allVars...)
		sel.varIdx = make([]int, len(allVars))
		for i := range sel.varIdx {
			sel.varIdx[i] = i
		}
	} else {
		sel.vars = append([]string{}, opt.Vars...)
		sel.varIdx = make([]int, len(opt.Vars))
		for i, name := range opt.Vars {
			sel.varIdx[i] = -1
			for j := range allVars {
				if allVars[j] == name {
					sel.varIdx[i] = j
					break
				}
			}
			if sel.varIdx[i] == -1 {
				return nil, fmt.Errorf("The output has no %s variable "+
					"named '%s'. Its variables are %v.",
					kind, name, allVars)
			}
		}
	}

	if opt.Smallr < 0 || opt.Smallc < 0 {
		return nil, fmt.Errorf("smallr and smallc must be non-negative, "+
			"but were set to %g and %g.", opt.Smallr, opt.Smallc)
	}
	sel.smallr, sel.smallc = opt.Smallr, opt.Smallc
	sel.checkNeg = opt.CheckNeg

	sel.threads = opt.Threads
	if sel.threads <= 0 { sel.threads = runtime.NumCPU() }
	sel.maxBatchBytes = opt.MaxBatchBytes
	if sel.maxBatchBytes <= 0 { sel.maxBatchBytes = DefaultMaxBatchBytes }
	sel.allowPartial = opt.AllowPartial
	sel.log = opt.Log

	return sel, nil
}

// logf writes to the per-call logger, if any.
func (sel *selection) logf(format string, a ...interface{}) {
	if sel.log != nil {
		sel.log.Printf(format, a...)
	}
}

// ranges flattens the applied box into the 6-tuple recorded on datasets.
func (sel *selection) ranges() [6]float64 {
	return [6]float64{
		sel.box[0][0], sel.box[0][1],
		sel.box[1][0], sel.box[1][1],
		sel.box[2][0], sel.box[2][1],
	}
}

// candidates returns the canonical, ascending list of CPUs that could hold
// rows inside the selection box. Hilbert pruning applies only when the
// output declares a Hilbert decomposition; otherwise every CPU is scanned.
func (sel *selection) candidates(info *output.Info) []int {
	if !sel.fullBox && info.Ordering == "hilbert" &&
		len(info.BoundKeys) == info.NCPU+1 {
		return hilbert.Domains(info.BoundKeys, sel.box, info.LevelMax)
	}
	cpus := make([]int, info.NCPU)
	for i := range cpus {
		cpus[i] = i
	}
	return cpus
}
