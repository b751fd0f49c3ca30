/*package project collapses an assembled hydro table onto two-dimensional
grids: column sums, depth-weighted means, and maxima of a variable along one
coordinate axis. Cells coarser or finer than the grid's level are spread or
binned by their footprint, so mixed-refinement tables project without
resampling the table first.*/
package project

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/phil-mansfield/remora/lib/read"
)

// Method selects how a column of cells collapses into one pixel.
type Method int

const (
	// Sum is the line integral of the variable along the axis, in units of
	// pixel widths.
	Sum Method = iota
	// Mean is the depth-weighted average of the variable along the axis.
	Mean
	// Max is the maximum of the variable along the axis.
	Max
)

func (m Method) String() string {
	switch m {
	case Sum: return "sum"
	case Mean: return "mean"
	case Max: return "max"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// Grid is a projected image over the full [0, 1]^2 face perpendicular to
// Axis. Pixel (i, j) covers [i/N, (i+1)/N) x [j/N, (j+1)/N) in the two
// remaining coordinates, in x, y, z order, and lives at Values[j*N + i].
// Pixels under no cell hold zero.
type Grid struct {
	Axis   int
	Level  int
	N      int
	Method Method
	Var    string
	Values []float64
}

// Project collapses one variable of data along axis onto a grid at the
// resolution of the given refinement level. A level of zero means the
// table's finest loaded level.
func Project(
	data *read.HydroData, varName string, axis, level int, method Method,
) (*Grid, error) {
	if axis < 0 || axis > 2 {
		return nil, fmt.Errorf("The projection axis must be 0 (x), 1 (y), "+
			"or 2 (z), not %d.", axis)
	}
	if method != Sum && method != Mean && method != Max {
		return nil, fmt.Errorf("The projection method %d isn't recognized.",
			int(method))
	}
	if level == 0 { level = data.LMax }
	if level < 1 || level > data.LMax {
		return nil, fmt.Errorf("The projection level %d is outside the "+
			"table's loaded range [1, %d].", level, data.LMax)
	}

	vals, err := data.Table.Float64s(varName)
	if err != nil { return nil, err }
	levels, err := data.Table.Int32s("level")
	if err != nil { return nil, err }
	cx, err := data.Table.Int32s("cx")
	if err != nil { return nil, err }
	cy, err := data.Table.Int32s("cy")
	if err != nil { return nil, err }
	cz, err := data.Table.Int32s("cz")
	if err != nil { return nil, err }

	// The two grid axes, in x, y, z order with the projection axis removed.
	uAxis, vAxis := 0, 1
	switch axis {
	case 0: uAxis, vAxis = 1, 2
	case 1: uAxis, vAxis = 0, 2
	}

	n := 1 << uint(level)
	g := &Grid{
		Axis: axis, Level: level, N: n,
		Method: method, Var: varName,
		Values: make([]float64, n*n),
	}
	weight := make([]float64, n*n)
	covered := make([]bool, n*n)

	for row := range vals {
		l := int(levels[row])
		c := [3]int{ int(cx[row]), int(cy[row]), int(cz[row]) }
		cu, cv := c[uAxis], c[vAxis]

		if l <= level {
			// A coarse cell covers an f x f pixel patch, f pixels deep.
			f := 1 << uint(level-l)
			depth := float64(f)
			for dv := 0; dv < f; dv++ {
				for du := 0; du < f; du++ {
					p := (cv*f+dv)*n + cu*f + du
					accumulate(g, weight, covered, p, vals[row], depth)
				}
			}
		} else {
			// A fine cell fills 1/2^shift of one pixel's depth over
			// 1/4^shift of its area, so it carries 1/8^shift of the
			// pixel's weight.
			shift := uint(l - level)
			p := (cv>>shift)*n + cu>>shift
			accumulate(g, weight, covered, p, vals[row],
				1/float64(int64(1)<<(3*shift)))
		}
	}

	if method == Mean {
		for p := range g.Values {
			if weight[p] > 0 {
				g.Values[p] /= weight[p]
			}
		}
	}
	return g, nil
}

func accumulate(
	g *Grid, weight []float64, covered []bool, p int, val, depth float64,
) {
	switch g.Method {
	case Sum:
		g.Values[p] += val * depth
	case Mean:
		g.Values[p] += val * depth
		weight[p] += depth
	case Max:
		if !covered[p] || val > g.Values[p] {
			g.Values[p] = val
			covered[p] = true
		}
	}
}

// At returns the pixel value at column i, row j.
func (g *Grid) At(i, j int) float64 {
	return g.Values[j*g.N+i]
}

// Summary is a statistical digest of a grid's pixel values.
type Summary struct {
	Mean, Std, Min, Max, Median float64
}

// Summary computes pixel statistics over the whole grid.
func (g *Grid) Summary() Summary {
	sorted := make([]float64, len(g.Values))
	copy(sorted, g.Values)
	sort.Float64s(sorted)

	return Summary{
		Mean: stat.Mean(g.Values, nil),
		Std: stat.StdDev(g.Values, nil),
		Min: floats.Min(g.Values),
		Max: floats.Max(g.Values),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
	}
}
