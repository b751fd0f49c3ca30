package read

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/remora/lib/mock"
)

// partSim puts four particles on each of two shards, one per octant of the
// x-y plane, at two refinement levels.
func partSim() *mock.Sim {
	part := func(cpu int) *mock.Particles {
		base := float64(cpu) * 0.25
		return &mock.Particles{
			X:     []float64{0.1 + base, 0.6, 0.1 + base, 0.6},
			Y:     []float64{0.1, 0.1, 0.6, 0.6},
			Z:     []float64{0.5, 0.5, 0.5, 0.5},
			VX:    []float64{1, 2, 3, 4},
			VY:    []float64{0, 0, 0, 0},
			VZ:    []float64{0, 0, 0, 0},
			Mass:  []float64{1e-8, 1e-8, 2e-8, 2e-8},
			Birth: []float64{0, 0, 10, 10},
			ID:    []int64{int64(4*cpu + 1), int64(4*cpu + 2),
				int64(4*cpu + 3), int64(4*cpu + 4)},
			Level: []int32{3, 3, 4, 4},
		}
	}

	return &mock.Sim{
		NCPU: 2, LevelMin: 3, LevelMax: 4,
		NStarTot: 3, NDMTot: 5,
		HasPart: true,
		Shards: []*mock.Shard{
			{ IX: []int32{0}, IY: []int32{0}, IZ: []int32{0},
				Refined: [][]uint8{{0}}, Part: part(0) },
			{ IX: []int32{1}, IY: []int32{1}, IZ: []int32{1},
				Refined: [][]uint8{{0}}, Part: part(1) },
		},
	}
}

func TestParticlesFullRead(t *testing.T) {
	info := writeSim(t, partSim())

	pd, err := Particles(info, Options{})
	require.NoError(t, err)
	require.Equal(t, 8, pd.Table.Len())
	require.Equal(t, int64(8), pd.DeclaredTotal())
	require.Equal(t,
		[]string{"level", "x", "y", "z", "vx", "vy", "vz", "mass",
			"id", "birth"},
		pd.Table.Names())

	// Shards merge in canonical CPU order, so ids come out sorted.
	ids, err := pd.Table.Int64s("id")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8}, ids)
}

func TestParticlesBoxFilter(t *testing.T) {
	info := writeSim(t, partSim())

	pd, err := Particles(info, Options{
		XRange: [2]float64{0, 0.5},
		YRange: [2]float64{0, 0.5},
	})
	require.NoError(t, err)

	// Only the particles with x < 0.5 and y < 0.5 survive: one from each
	// shard.
	ids, err := pd.Table.Int64s("id")
	require.NoError(t, err)
	require.Equal(t, []int64{1, 5}, ids)
}

func TestParticlesLevelFilter(t *testing.T) {
	info := writeSim(t, partSim())

	pd, err := Particles(info, Options{ LMax: 3 })
	require.NoError(t, err)
	require.Equal(t, 4, pd.Table.Len())

	level, err := pd.Table.Int32s("level")
	require.NoError(t, err)
	for i := range level {
		require.Equal(t, int32(3), level[i])
	}
}

func TestParticlesVariableSubset(t *testing.T) {
	info := writeSim(t, partSim())

	pd, err := Particles(info, Options{ Vars: []string{"mass", "id"} })
	require.NoError(t, err)
	require.Equal(t, []string{"level", "mass", "id"}, pd.Table.Names())

	mass, err := pd.Table.Float64s("mass")
	require.NoError(t, err)
	require.Len(t, mass, 8)

	// Selecting level twice must not duplicate the structural column.
	pd, err = Particles(info, Options{ Vars: []string{"level", "x"} })
	require.NoError(t, err)
	require.Equal(t, []string{"level", "x"}, pd.Table.Names())

	_, err = Particles(info, Options{ Vars: []string{"metallicity"} })
	require.Error(t, err)
}

func TestParticlesMissingFiles(t *testing.T) {
	sim := blockSim()
	info := writeSim(t, sim)

	_, err := Particles(info, Options{})
	require.Error(t, err)
}
