package read

import (
	"fmt"

	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/table"
	"github.com/phil-mansfield/remora/lib/units"
)

// HydroData is an assembled hydro dataset: one row per leaf cell, with the
// structural columns level, cx, cy, cz plus the selected variables. Aside
// from explicit column additions by the caller, it is immutable after
// construction.
type HydroData struct {
	Info  *output.Info
	Table *table.Table

	// LMin and LMax are the refinement bounds actually loaded; Ranges is
	// the applied selection box, after clipping, as
	// (xlo, xhi, ylo, yhi, zlo, zhi).
	LMin, LMax int
	Ranges     [6]float64

	SelectedVars   []string
	Smallr, Smallc float64

	BoxLen float64
	Scales *units.Scales

	// UsedCPUs lists the shards that were read; FailedCPUs the shards
	// skipped under AllowPartial.
	UsedCPUs, FailedCPUs []int
}

// Hydro assembles the hydro dataset of one output. Shards are read in
// parallel per opt.Threads, and the result is identical regardless of the
// thread count.
func Hydro(info *output.Info, opt Options) (*HydroData, error) {
	if !info.HasHydro {
		return nil, fmt.Errorf("The output %s contains no hydro files.",
			info.Dir)
	}

	sel, err := normalize(info, opt, HydroKind, info.HydroVars)
	if err != nil { return nil, err }

	cpus := sel.candidates(info)
	sel.logf("hydro read: %d candidate shards, %d threads",
		len(cpus), sel.threads)

	estimate := fileSizeEstimate(func(cpu int) []string {
		return []string{info.AmrFile(cpu), info.HydroFile(cpu)}
	})
	tab, perr, err := runShards(cpus, sel, estimate,
		func(cpu int) (*table.Table, error) {
			return cellShard(info, cpu, sel)
		})
	if err != nil { return nil, err }

	scales := *info.Scales
	data := &HydroData{
		Info: info, Table: tab,
		LMin: sel.lmin, LMax: sel.lmax,
		Ranges: sel.ranges(),
		SelectedVars: sel.vars,
		Smallr: sel.smallr, Smallc: sel.smallc,
		BoxLen: info.BoxLen,
		Scales: &scales,
		UsedCPUs: cpus,
	}

	if perr != nil {
		if !sel.allowPartial { return nil, perr }
		sel.logf("continuing without %d failed shards: %v",
			len(perr.Failed), perr.CPUs())
		data.FailedCPUs = perr.CPUs()
	}
	return data, nil
}
