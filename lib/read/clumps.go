package read

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/table"
	"github.com/phil-mansfield/remora/lib/units"
)

// ClumpData is an assembled clump-finder catalogue: one row per clump.
type ClumpData struct {
	Info  *output.Info
	Table *table.Table

	SelectedVars []string

	BoxLen float64
	Scales *units.Scales

	UsedCPUs, FailedCPUs []int
}

// clumpIntCols names the catalogue columns stored as integers.
var clumpIntCols = map[string]bool{
	"index": true, "lev": true, "parent": true, "ncell": true,
}

// clumpShard reads one CPU's clump file. Clump files are whitespace-
// delimited text with one header line naming the columns; they are the one
// dataset kind that isn't record-framed.
func clumpShard(info *output.Info, cpu int, sel *selection) (*table.Table, error) {
	fname := info.ClumpFile(cpu)
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("The clump file %s does not exist or cannot "+
			"be accessed.", fname)
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	if !scan.Scan() {
		if err := scan.Err(); err != nil { return nil, err }
		return nil, fmt.Errorf("The clump file %s is empty; it should "+
			"start with a header line naming its columns.", fname)
	}
	header := strings.Fields(scan.Text())

	// Map each selected variable to its column index.
	colIdx := make([]int, len(sel.vars))
	for i, name := range sel.vars {
		colIdx[i] = -1
		for j := range header {
			if header[j] == name {
				colIdx[i] = j
				break
			}
		}
		if colIdx[i] == -1 {
			return nil, fmt.Errorf("The clump file %s has no column named "+
				"'%s'. Its columns are %v.", fname, name, header)
		}
	}

	vals := make([][]float64, len(sel.vars))
	line := 1
	for scan.Scan() {
		line++
		text := strings.TrimSpace(scan.Text())
		if text == "" { continue }
		fields := strings.Fields(text)
		if len(fields) != len(header) {
			return nil, fmt.Errorf("Line %d of %s has %d fields, but the "+
				"header names %d columns.", line, fname, len(fields),
				len(header))
		}
		for i, j := range colIdx {
			x, err := strconv.ParseFloat(fields[j], 64)
			if err != nil {
				return nil, fmt.Errorf("Line %d of %s: the field \"%s\" in "+
					"column '%s' is not a number.", line, fname, fields[j],
					header[j])
			}
			vals[i] = append(vals[i], x)
		}
	}
	if err := scan.Err(); err != nil { return nil, err }

	cols := make([]table.Column, len(sel.vars))
	for i, name := range sel.vars {
		if clumpIntCols[name] {
			ints := make([]int64, len(vals[i]))
			for j := range vals[i] {
				ints[j] = int64(vals[i][j])
			}
			cols[i] = table.NewInt64(name, ints)
		} else {
			cols[i] = table.NewFloat64(name, vals[i])
		}
	}
	return table.New(cols...)
}

// Clumps assembles the clump catalogue of one output. Only the variable
// selection, thread budget, and failure policy of opt apply; clump
// catalogues are small and carry their own coordinates, so level and
// spatial ranges are ignored and every shard is read.
func Clumps(info *output.Info, opt Options) (*ClumpData, error) {
	if !info.HasClumps {
		return nil, fmt.Errorf("The output %s contains no clump files.",
			info.Dir)
	}

	// The variable list comes from the first shard's header line.
	allVars, err := clumpVars(info)
	if err != nil { return nil, err }

	sel, err := normalize(info, opt, ClumpKind, allVars)
	if err != nil { return nil, err }

	cpus := sel.candidates(info)
	sel.logf("clump read: %d candidate shards, %d threads",
		len(cpus), sel.threads)

	estimate := fileSizeEstimate(func(cpu int) []string {
		return []string{info.ClumpFile(cpu)}
	})
	tab, perr, err := runShards(cpus, sel, estimate,
		func(cpu int) (*table.Table, error) {
			return clumpShard(info, cpu, sel)
		})
	if err != nil { return nil, err }

	scales := *info.Scales
	data := &ClumpData{
		Info: info, Table: tab,
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

// clumpVars reads the column names from the first clump shard's header.
func clumpVars(info *output.Info) ([]string, error) {
	fname := info.ClumpFile(0)
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("The clump file %s does not exist or "+
			"cannot be accessed.", fname)
	}
	defer f.Close()

	scan := bufio.NewScanner(f)
	if !scan.Scan() {
		if err := scan.Err(); err != nil { return nil, err }
		return nil, fmt.Errorf("The clump file %s is empty; it should "+
			"start with a header line naming its columns.", fname)
	}
	return strings.Fields(scan.Text()), nil
}
