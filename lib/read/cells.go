package read

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/phil-mansfield/remora/lib/amr"
	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/record"
	"github.com/phil-mansfield/remora/lib/table"
)

/* cells.go reads one shard's hydro or gravity variables against its
reconstructed AMR structure. The two file kinds share their framing, so they
share this reader; only the variable lists and the numeric floors differ. */

// cellShard reads one CPU's cell-variable file (hydro or gravity, selected
// by sel.kind) and returns the shard-local table of leaf cells passing every
// selection predicate. The returned table always carries the full column
// schema, even when no rows pass.
func cellShard(info *output.Info, cpu int, sel *selection) (*table.Table, error) {
	allVars := info.HydroVars
	dataFile := info.HydroFile(cpu)
	if sel.kind == GravKind {
		allVars = info.GravVars
		dataFile = info.GravFile(cpu)
	}

	// Reconstruct the shard's grids first; variable records are laid out
	// against them.
	amrName := info.AmrFile(cpu)
	amrF, err := os.Open(amrName)
	if err != nil {
		return nil, fmt.Errorf("The AMR file %s does not exist or cannot "+
			"be accessed.", amrName)
	}
	defer amrF.Close()

	shard, err := amr.ReadShard(amrName, amrF, binary.LittleEndian,
		cpu, info.LevelMin, info.LevelMax)
	if err != nil { return nil, err }

	f, err := os.Open(dataFile)
	if err != nil {
		return nil, fmt.Errorf("The %s file %s does not exist or cannot "+
			"be accessed.", sel.kind, dataFile)
	}
	defer f.Close()

	rd := record.NewReader(dataFile, f, binary.LittleEndian)
	if _, err := rd.Int32(); err != nil { return nil, err } // ncpu
	nvar32, err := rd.Int32()
	if err != nil { return nil, err }
	gamma, err := rd.Float64()
	if err != nil { return nil, err }

	nvar := int(nvar32)
	if nvar != len(allVars) {
		return nil, &amr.ShardStructureError{ FileName: dataFile,
			Hint: fmt.Sprintf("it stores %d variables, but the output "+
				"header describes %d", nvar, len(allVars)) }
	}

	// Variables that must be decoded: the selected ones, plus density when
	// the sound-speed floor needs it to bound pressure.
	rhoIdx, pIdx := -1, -1
	for i := range allVars {
		switch allVars[i] {
		case "rho": rhoIdx = i
		case "p": pIdx = i
		}
	}
	needed := make([]bool, nvar)
	for _, idx := range sel.varIdx {
		needed[idx] = true
	}
	if sel.kind == HydroKind && sel.smallc > 0 && pIdx >= 0 && rhoIdx >= 0 {
		needed[rhoIdx] = true
	}

	// Output columns.
	level := []int32{}
	cx, cy, cz := []int32{}, []int32{}, []int32{}
	vals := make([][]float64, len(sel.vars))
	for i := range vals {
		vals[i] = []float64{}
	}

	negCounts := make([]int64, nvar)
	scratch := make([][]float64, nvar)

	for l := range shard.Levels {
		lev := &shard.Levels[l]
		nCell := 8 * lev.NGrids()

		if lev.L < sel.lmin || lev.L > sel.lmax || nCell == 0 {
			// The whole level is discarded; skip its records unread.
			for ivar := 0; ivar < nvar; ivar++ {
				if err := rd.Skip(); err != nil { return nil, err }
			}
			continue
		}

		for ivar := 0; ivar < nvar; ivar++ {
			if !needed[ivar] {
				if err := rd.Skip(); err != nil { return nil, err }
				scratch[ivar] = nil
				continue
			}
			if cap(scratch[ivar]) < nCell {
				scratch[ivar] = make([]float64, nCell)
			}
			scratch[ivar] = scratch[ivar][:nCell]
			if err := rd.Float64s(scratch[ivar]); err != nil {
				return nil, err
			}
		}

		// 1.0 / 2^L, the cell size at this level in code units.
		dx := 1.0 / float64(int64(1)<<uint(lev.L))

		// Cells at the requested ceiling level count as leaves even when
		// the output refines them further, so a capped read still covers
		// the selected region completely.
		capLevel := lev.L == sel.lmax && lev.L < shard.LevelMax

		for g := 0; g < lev.NGrids(); g++ {
			for k := 0; k < 8; k++ {
				if !capLevel && !lev.Leaf(g, k) { continue }

				icx, icy, icz := lev.CellCoords(g, k)
				x := (float64(icx) + 0.5) * dx
				y := (float64(icy) + 0.5) * dx
				z := (float64(icz) + 0.5) * dx
				if x < sel.box[0][0] || x >= sel.box[0][1] ||
					y < sel.box[1][0] || y >= sel.box[1][1] ||
					z < sel.box[2][0] || z >= sel.box[2][1] {
					continue
				}

				c := 8*g + k
				level = append(level, int32(lev.L))
				cx, cy, cz = append(cx, icx), append(cy, icy), append(cz, icz)

				rho := 0.0
				if rhoIdx >= 0 && scratch[rhoIdx] != nil {
					rho = scratch[rhoIdx][c]
					if sel.smallr > 0 && rho < sel.smallr {
						rho = sel.smallr
					}
				}

				for i, idx := range sel.varIdx {
					v := scratch[idx][c]
					switch {
					case sel.kind == HydroKind && idx == rhoIdx:
						v = rho
					case sel.kind == HydroKind && idx == pIdx:
						// Pressure is floored, never counted as negative.
						if sel.smallc > 0 && rhoIdx >= 0 {
							pMin := rho * sel.smallc * sel.smallc / gamma
							if v < pMin { v = pMin }
						}
					default:
						if sel.checkNeg && v < 0 {
							negCounts[idx]++
						}
					}
					vals[i] = append(vals[i], v)
				}
			}
		}
	}

	if sel.checkNeg {
		for ivar := range negCounts {
			if negCounts[ivar] > 0 {
				sel.logf("cpu %d: variable %s has %d negative values",
					cpu, allVars[ivar], negCounts[ivar])
			}
		}
	}

	cols := []table.Column{
		table.NewInt32("level", level),
		table.NewInt32("cx", cx),
		table.NewInt32("cy", cy),
		table.NewInt32("cz", cz),
	}
	for i := range sel.vars {
		cols = append(cols, table.NewFloat64(sel.vars[i], vals[i]))
	}
	return table.New(cols...)
}
