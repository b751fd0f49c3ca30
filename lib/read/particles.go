package read

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/record"
	"github.com/phil-mansfield/remora/lib/table"
	"github.com/phil-mansfield/remora/lib/units"
)

// PartData is an assembled particle dataset: one row per particle. Particle
// ids are carried through as stored; historical outputs may contain
// duplicate ids, so no uniqueness is enforced.
type PartData struct {
	Info  *output.Info
	Table *table.Table

	LMin, LMax int
	Ranges     [6]float64

	SelectedVars []string

	BoxLen float64
	Scales *units.Scales

	UsedCPUs, FailedCPUs []int
}

// DeclaredTotal returns the header's particle count (stars + dark matter),
// the reference value an unfiltered read must reproduce.
func (d *PartData) DeclaredTotal() int64 {
	return d.Info.NStarTot + d.Info.NDMTot
}

// partTypes maps particle variable names to their storage type tags.
func partType(name string) string {
	switch name {
	case "id": return "i64"
	case "level": return "i32"
	}
	return "f64"
}

// partShard reads one CPU's particle file. Particle files are
// self-contained: one record per variable, every record npart rows long, in
// the order the output header lists them.
func partShard(info *output.Info, cpu int, sel *selection) (*table.Table, error) {
	fname := info.PartFile(cpu)
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("The particle file %s does not exist or "+
			"cannot be accessed.", fname)
	}
	defer f.Close()

	rd := record.NewReader(fname, f, binary.LittleEndian)
	if _, err := rd.Int32(); err != nil { return nil, err } // ncpu
	if _, err := rd.Int32(); err != nil { return nil, err } // ndim
	npart32, err := rd.Int32()
	if err != nil { return nil, err }
	if _, err := rd.Int64(); err != nil { return nil, err } // nstar
	npart := int(npart32)

	allVars := info.PartVars

	// Filtering needs positions and levels whether or not they were
	// selected; only the selected ones are materialized.
	needed := map[string]bool{ "x": true, "y": true, "z": true,
		"level": true }
	for _, name := range sel.vars {
		needed[name] = true
	}

	f64s := map[string][]float64{}
	var ids []int64
	var levels []int32

	for _, name := range allVars {
		if !needed[name] {
			if err := rd.Skip(); err != nil { return nil, err }
			continue
		}
		switch partType(name) {
		case "i64":
			ids = make([]int64, npart)
			if err := rd.Int64s(ids); err != nil { return nil, err }
		case "i32":
			levels = make([]int32, npart)
			if err := rd.Int32s(levels); err != nil { return nil, err }
		default:
			buf := make([]float64, npart)
			if err := rd.Float64s(buf); err != nil { return nil, err }
			f64s[name] = buf
		}
	}

	x, y, z := f64s["x"], f64s["y"], f64s["z"]
	if x == nil || y == nil || z == nil {
		return nil, fmt.Errorf("The particle file %s does not carry the "+
			"position variables x, y, z; its variables are %v.",
			fname, allVars)
	}

	keep := []int{}
	for i := 0; i < npart; i++ {
		if levels != nil {
			l := int(levels[i])
			if l < sel.lmin || l > sel.lmax { continue }
		}
		if x[i] < sel.box[0][0] || x[i] >= sel.box[0][1] ||
			y[i] < sel.box[1][0] || y[i] >= sel.box[1][1] ||
			z[i] < sel.box[2][0] || z[i] >= sel.box[2][1] {
			continue
		}
		keep = append(keep, i)
	}

	outLevel := make([]int32, len(keep))
	if levels != nil {
		for j, i := range keep {
			outLevel[j] = levels[i]
		}
	}
	cols := []table.Column{ table.NewInt32("level", outLevel) }

	for _, name := range sel.vars {
		if name == "level" { continue }
		switch partType(name) {
		case "i64":
			out := make([]int64, len(keep))
			for j, i := range keep {
				out[j] = ids[i]
			}
			cols = append(cols, table.NewInt64(name, out))
		default:
			src := f64s[name]
			out := make([]float64, len(keep))
			for j, i := range keep {
				out[j] = src[i]
			}
			cols = append(cols, table.NewFloat64(name, out))
		}
	}

	return table.New(cols...)
}

// Particles assembles the particle dataset of one output. The level column
// is always included; ids and the remaining variables follow the selection.
func Particles(info *output.Info, opt Options) (*PartData, error) {
	if !info.HasPart {
		return nil, fmt.Errorf("The output %s contains no particle files.",
			info.Dir)
	}

	sel, err := normalize(info, opt, PartKind, info.PartVars)
	if err != nil { return nil, err }

	cpus := sel.candidates(info)
	sel.logf("particle read: %d candidate shards, %d threads",
		len(cpus), sel.threads)

	estimate := fileSizeEstimate(func(cpu int) []string {
		return []string{info.PartFile(cpu)}
	})
	tab, perr, err := runShards(cpus, sel, estimate,
		func(cpu int) (*table.Table, error) {
			return partShard(info, cpu, sel)
		})
	if err != nil { return nil, err }

	scales := *info.Scales
	data := &PartData{
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
