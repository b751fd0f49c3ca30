package project

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/remora/lib/read"
	"github.com/phil-mansfield/remora/lib/table"
)

// hydroData wraps raw columns into the dataset shape Project consumes.
func hydroData(
	t *testing.T, lmax int,
	level []int32, cx, cy, cz []int32, rho []float64,
) *read.HydroData {
	tab, err := table.New(
		table.NewInt32("level", level),
		table.NewInt32("cx", cx),
		table.NewInt32("cy", cy),
		table.NewInt32("cz", cz),
		table.NewFloat64("rho", rho),
	)
	require.NoError(t, err)
	return &read.HydroData{ Table: tab, LMin: 1, LMax: lmax }
}

// uniformData fills the whole box with level-2 cells of a constant value.
func uniformData(t *testing.T, val float64) *read.HydroData {
	level, cx, cy, cz := []int32{}, []int32{}, []int32{}, []int32{}
	rho := []float64{}
	for x := int32(0); x < 4; x++ {
		for y := int32(0); y < 4; y++ {
			for z := int32(0); z < 4; z++ {
				level = append(level, 2)
				cx, cy, cz = append(cx, x), append(cy, y), append(cz, z)
				rho = append(rho, val)
			}
		}
	}
	return hydroData(t, 2, level, cx, cy, cz, rho)
}

func TestProjectUniform(t *testing.T) {
	data := uniformData(t, 2.0)

	for axis := 0; axis < 3; axis++ {
		sum, err := Project(data, "rho", axis, 0, Sum)
		require.NoError(t, err)
		require.Equal(t, 4, sum.N)
		require.Equal(t, 2, sum.Level)
		for p := range sum.Values {
			require.Equal(t, 8.0, sum.Values[p], "axis %d pixel %d", axis, p)
		}

		mean, err := Project(data, "rho", axis, 0, Mean)
		require.NoError(t, err)
		for p := range mean.Values {
			require.Equal(t, 2.0, mean.Values[p])
		}

		max, err := Project(data, "rho", axis, 0, Max)
		require.NoError(t, err)
		for p := range max.Values {
			require.Equal(t, 2.0, max.Values[p])
		}
	}
}

func TestProjectCoarseCellFootprint(t *testing.T) {
	// One level-1 cell projected at level 2 covers a 2x2 pixel patch with
	// depth 2; everything else is empty.
	data := hydroData(t, 2,
		[]int32{1}, []int32{0}, []int32{0}, []int32{0}, []float64{4})

	g, err := Project(data, "rho", 2, 2, Sum)
	require.NoError(t, err)
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			want := 0.0
			if i < 2 && j < 2 { want = 8.0 }
			require.Equal(t, want, g.At(i, j), "pixel (%d, %d)", i, j)
		}
	}
}

func TestProjectFineCellWeight(t *testing.T) {
	// A level-3 cell binned at level 2 fills an eighth of one pixel's
	// volume: half the depth over a quarter of the area.
	data := hydroData(t, 3,
		[]int32{3}, []int32{0}, []int32{0}, []int32{0}, []float64{8})

	g, err := Project(data, "rho", 2, 2, Sum)
	require.NoError(t, err)
	require.Equal(t, 1.0, g.At(0, 0))
	require.Equal(t, 0.0, g.At(1, 0))
}

func TestProjectRefinementInvariance(t *testing.T) {
	// A uniform field must project identically whether the box is stored
	// at the grid's own level or refined finer.
	coarse := hydroData(t, 1,
		[]int32{1, 1, 1, 1, 1, 1, 1, 1},
		[]int32{0, 1, 0, 1, 0, 1, 0, 1},
		[]int32{0, 0, 1, 1, 0, 0, 1, 1},
		[]int32{0, 0, 0, 0, 1, 1, 1, 1},
		[]float64{2, 2, 2, 2, 2, 2, 2, 2})
	fine := uniformData(t, 2.0)

	for _, method := range []Method{Sum, Mean, Max} {
		gc, err := Project(coarse, "rho", 2, 1, method)
		require.NoError(t, err)
		gf, err := Project(fine, "rho", 2, 1, method)
		require.NoError(t, err)
		require.Equal(t, gc.Values, gf.Values, "method %s", method)
	}
}

func TestProjectAxisMapping(t *testing.T) {
	// A single level-2 cell at (cx, cy, cz) = (1, 2, 3).
	data := hydroData(t, 2,
		[]int32{2}, []int32{1}, []int32{2}, []int32{3}, []float64{5})

	// Projecting along x leaves (y, z) coordinates.
	g, err := Project(data, "rho", 0, 2, Max)
	require.NoError(t, err)
	require.Equal(t, 5.0, g.At(2, 3))

	// Along y: (x, z).
	g, err = Project(data, "rho", 1, 2, Max)
	require.NoError(t, err)
	require.Equal(t, 5.0, g.At(1, 3))

	// Along z: (x, y).
	g, err = Project(data, "rho", 2, 2, Max)
	require.NoError(t, err)
	require.Equal(t, 5.0, g.At(1, 2))
}

func TestProjectArgumentChecks(t *testing.T) {
	data := uniformData(t, 1.0)

	_, err := Project(data, "rho", 3, 0, Sum)
	require.Error(t, err)
	_, err = Project(data, "rho", 0, 5, Sum)
	require.Error(t, err)
	_, err = Project(data, "temperature", 0, 0, Sum)
	require.Error(t, err)
	_, err = Project(data, "rho", 0, 0, Method(99))
	require.Error(t, err)
}

func TestSummary(t *testing.T) {
	g := &Grid{ N: 2, Values: []float64{1, 2, 3, 4} }
	s := g.Summary()
	require.Equal(t, 2.5, s.Mean)
	require.Equal(t, 1.0, s.Min)
	require.Equal(t, 4.0, s.Max)
	require.InDelta(t, 1.29099, s.Std, 1e-4)
	require.InDelta(t, 2.0, s.Median, 1.0)
}