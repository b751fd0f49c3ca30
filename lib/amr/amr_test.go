package amr

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/phil-mansfield/remora/lib/mock"
)

// writeAndOpen writes a synthetic output containing a single shard and opens
// its AMR file.
func writeAndOpen(t *testing.T, sim *mock.Sim) (string, *os.File) {
	dir := t.TempDir()
	if err := sim.Write(dir); err != nil {
		t.Fatalf("Could not write synthetic output: %s", err.Error())
	}
	fname := filepath.Join(dir, "output_00001", "amr_00001.out00001")
	f, err := os.Open(fname)
	if err != nil {
		t.Fatalf("Could not open synthetic AMR file: %s", err.Error())
	}
	return fname, f
}

func TestUniformShard(t *testing.T) {
	sim := &mock.Sim{
		NCPU: 1, LevelMin: 3, LevelMax: 3,
		Shards: []*mock.Shard{{
			IX: []int32{0, 1, 2, 3},
			IY: []int32{0, 0, 1, 1},
			IZ: []int32{0, 1, 0, 1},
		}},
	}
	fname, f := writeAndOpen(t, sim)
	defer f.Close()

	s, err := ReadShard(fname, f, binary.LittleEndian, 0, 3, 3)
	if err != nil {
		t.Fatalf("ReadShard() failed: %s", err.Error())
	}

	if len(s.Levels) != 1 {
		t.Fatalf("Expected 1 level, got %d.", len(s.Levels))
	}
	lev := &s.Levels[0]
	if lev.L != 3 {
		t.Errorf("Level tag = %d, expected 3.", lev.L)
	}
	if lev.NGrids() != 4 {
		t.Fatalf("NGrids() = %d, expected 4.", lev.NGrids())
	}
	if s.NCells() != 32 {
		t.Errorf("NCells() = %d, expected 32.", s.NCells())
	}

	// Without refinement masks, every cell is a leaf.
	for g := 0; g < lev.NGrids(); g++ {
		for k := 0; k < 8; k++ {
			if !lev.Leaf(g, k) {
				t.Fatalf("Cell (g=%d, k=%d) of a uniform shard is not a "+
					"leaf.", g, k)
			}
		}
	}

	// Octant coordinate arithmetic: grid 1 is the oct at (1, 0, 1), so its
	// octant k=3 (x and y offsets set) is the cell (3, 1, 2).
	cx, cy, cz := lev.CellCoords(1, 3)
	if cx != 3 || cy != 1 || cz != 2 {
		t.Errorf("CellCoords(1, 3) = (%d, %d, %d), expected (3, 1, 2).",
			cx, cy, cz)
	}
}

func TestRefinedShard(t *testing.T) {
	// One root oct at level 1 with octants 0 and 5 refined; the two child
	// octs each terminate at level 2.
	sim := &mock.Sim{
		NCPU: 1, LevelMin: 1, LevelMax: 2,
		Shards: []*mock.Shard{{
			IX: []int32{0}, IY: []int32{0}, IZ: []int32{0},
			Refined: [][]uint8{{1<<0 | 1<<5}},
		}},
	}
	fname, f := writeAndOpen(t, sim)
	defer f.Close()

	s, err := ReadShard(fname, f, binary.LittleEndian, 0, 1, 2)
	if err != nil {
		t.Fatalf("ReadShard() failed: %s", err.Error())
	}

	if len(s.Levels) != 2 {
		t.Fatalf("Expected 2 levels, got %d.", len(s.Levels))
	}

	root := &s.Levels[0]
	if root.NGrids() != 1 {
		t.Fatalf("Root level has %d grids, expected 1.", root.NGrids())
	}
	for k := 0; k < 8; k++ {
		leaf := root.Leaf(0, k)
		if (k == 0 || k == 5) && leaf {
			t.Errorf("Octant %d is refined, but Leaf() says leaf.", k)
		} else if k != 0 && k != 5 && !leaf {
			t.Errorf("Octant %d is unrefined, but Leaf() says refined.", k)
		}
	}

	// Octant 5 is (x=1, y=0, z=1), so its child oct sits at cell (1, 0, 1)
	// of level 1.
	child := &s.Levels[1]
	if child.NGrids() != 2 {
		t.Fatalf("Child level has %d grids, expected 2.", child.NGrids())
	}
	if child.IX[0] != 0 || child.IY[0] != 0 || child.IZ[0] != 0 {
		t.Errorf("First child oct at (%d, %d, %d), expected (0, 0, 0).",
			child.IX[0], child.IY[0], child.IZ[0])
	}
	if child.IX[1] != 1 || child.IY[1] != 0 || child.IZ[1] != 1 {
		t.Errorf("Second child oct at (%d, %d, %d), expected (1, 0, 1).",
			child.IX[1], child.IY[1], child.IZ[1])
	}

	if s.NCells() != 24 {
		t.Errorf("NCells() = %d, expected 24.", s.NCells())
	}
}

func TestGridCountMismatch(t *testing.T) {
	sim := &mock.Sim{
		NCPU: 1, LevelMin: 1, LevelMax: 2,
		Shards: []*mock.Shard{{
			IX: []int32{0}, IY: []int32{0}, IZ: []int32{0},
			Refined: [][]uint8{{1 << 0}},
			FudgeGridCount: true,
		}},
	}
	fname, f := writeAndOpen(t, sim)
	defer f.Close()

	_, err := ReadShard(fname, f, binary.LittleEndian, 0, 1, 2)
	structural := &ShardStructureError{}
	if err == nil {
		t.Fatalf("Expected ReadShard() to fail on a fudged grid count.")
	} else if !errors.As(err, &structural) {
		t.Fatalf("Expected a ShardStructureError, got: %s", err.Error())
	}
}

func TestLevelBoundsMismatch(t *testing.T) {
	sim := &mock.Sim{
		NCPU: 1, LevelMin: 3, LevelMax: 3,
		Shards: []*mock.Shard{{
			IX: []int32{0}, IY: []int32{0}, IZ: []int32{0},
		}},
	}
	fname, f := writeAndOpen(t, sim)
	defer f.Close()

	_, err := ReadShard(fname, f, binary.LittleEndian, 0, 3, 4)
	structural := &ShardStructureError{}
	if err == nil {
		t.Fatalf("Expected ReadShard() to fail on mismatched level bounds.")
	} else if !errors.As(err, &structural) {
		t.Fatalf("Expected a ShardStructureError, got: %s", err.Error())
	}
}
