package read

import (
	"fmt"

	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/table"
	"github.com/phil-mansfield/remora/lib/units"
)

// GravData is an assembled gravity dataset: one row per leaf cell with the
// potential and acceleration components.
type GravData struct {
	Info  *output.Info
	Table *table.Table

	LMin, LMax int
	Ranges     [6]float64

	SelectedVars []string

	BoxLen float64
	Scales *units.Scales

	UsedCPUs, FailedCPUs []int
}

// Gravity assembles the gravity dataset of one output. It shares the hydro
// reader's cell logic; only the variable list and the numeric floors differ.
func Gravity(info *output.Info, opt Options) (*GravData, error) {
	if !info.HasGrav {
		return nil, fmt.Errorf("The output %s contains no gravity files.",
			info.Dir)
	}

	sel, err := normalize(info, opt, GravKind, info.GravVars)
	if err != nil { return nil, err }

	cpus := sel.candidates(info)
	sel.logf("gravity read: %d candidate shards, %d threads",
		len(cpus), sel.threads)

	estimate := fileSizeEstimate(func(cpu int) []string {
		return []string{info.AmrFile(cpu), info.GravFile(cpu)}
	})
	tab, perr, err := runShards(cpus, sel, estimate,
		func(cpu int) (*table.Table, error) {
			return cellShard(info, cpu, sel)
		})
	if err != nil { return nil, err }

	scales := *info.Scales
	data := &GravData{
		Info: info, Table: tab,
		LMin: sel.lmin, LMax: sel.lmax,
		Ranges: sel.ranges(),
		SelectedVars: sel.vars,
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
