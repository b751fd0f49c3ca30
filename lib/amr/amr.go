/*package amr reconstructs the refinement structure stored in a single CPU's
AMR file. A grid (an "oct") at level L holds the 8 level-L cells obtained by
splitting one level-(L-1) cell. The file stores explicit oct coordinates only
for the coarsest level; every finer level is reconstructed by walking levels
in increasing order and doubling parent cell coordinates, so no pointer tree
is ever built. All structure lives in flat, per-level parallel arrays indexed
by grid sequence number.*/
package amr

import (
	"fmt"
	"io"
	"math/bits"

	"encoding/binary"

	"github.com/phil-mansfield/remora/lib/record"
)

// ShardStructureError is returned when a shard's declared structure doesn't
// match what its records actually encode: grid counts that disagree with
// refinement masks, level bounds that disagree with the output header, and
// the like. The shard cannot be trusted, but other shards may still be fine,
// so dispatch-level code treats this as a per-shard failure.
type ShardStructureError struct {
	FileName string
	Hint     string
}

func (e *ShardStructureError) Error() string {
	return fmt.Sprintf("The AMR file %s is structurally inconsistent: %s.",
		e.FileName, e.Hint)
}

// Level holds the reconstruction of one refinement level of one shard.
// Grid g's cells are addressed by octant k in [0, 8), where bit 0 of k is
// the x offset, bit 1 the y offset, and bit 2 the z offset.
type Level struct {
	// L is the refinement level. Octs at level L have integer coordinates
	// in [0, 2^(L-1))^3 and cells in [0, 2^L)^3.
	L int
	// IX, IY, IZ are the oct coordinates, parallel arrays over grids.
	IX, IY, IZ []int32
	// Refined is the per-grid octant bitmask: bit k set means octant k is
	// further refined (hosts a child oct at level L+1) and is therefore not
	// a leaf. Refined is nil on the finest level, where every cell is a
	// leaf.
	Refined []uint8
}

// NGrids returns the number of octs at this level.
func (lev *Level) NGrids() int { return len(lev.IX) }

// CellCoords returns the integer coordinates of octant k of grid g, in
// level-L cell units.
func (lev *Level) CellCoords(g, k int) (cx, cy, cz int32) {
	return 2*lev.IX[g] + int32(k&1),
		2*lev.IY[g] + int32((k>>1)&1),
		2*lev.IZ[g] + int32((k>>2)&1)
}

// Leaf reports whether octant k of grid g is a leaf cell.
func (lev *Level) Leaf(g, k int) bool {
	if lev.Refined == nil { return true }
	return lev.Refined[g]&(1<<uint(k)) == 0
}

// Shard is the reconstructed AMR structure of one CPU's file.
type Shard struct {
	CPU int
	LevelMin, LevelMax int
	BoxLen float64
	// Levels[i] describes level LevelMin+i.
	Levels []Level
}

// NCells returns the total number of cells in the shard, leaves and refined
// cells both.
func (s *Shard) NCells() int {
	n := 0
	for i := range s.Levels {
		n += 8 * s.Levels[i].NGrids()
	}
	return n
}

// ReadShard reads and reconstructs one CPU's AMR file. cpu is the shard's
// 0-based index and is only used to tag the result. levelMin and levelMax
// are the global bounds from the output header; the file must agree with
// them.
func ReadShard(
	fname string, f io.ReadSeeker, order binary.ByteOrder,
	cpu, levelMin, levelMax int,
) (*Shard, error) {
	rd := record.NewReader(fname, f, order)

	if _, err := rd.Int32(); err != nil { return nil, err } // ncpu

	ndim, err := rd.Int32()
	if err != nil { return nil, err }
	if ndim != 3 {
		return nil, &ShardStructureError{ fname, fmt.Sprintf(
			"it declares ndim = %d, but only 3D outputs are supported",
			ndim) }
	}

	lims := make([]int32, 2)
	if err := rd.Int32s(lims); err != nil { return nil, err }
	if int(lims[0]) != levelMin || int(lims[1]) != levelMax {
		return nil, &ShardStructureError{ fname, fmt.Sprintf(
			"it declares the level range [%d, %d], but the output header "+
				"declares [%d, %d]", lims[0], lims[1], levelMin, levelMax) }
	}

	boxLen, err := rd.Float64()
	if err != nil { return nil, err }

	nLevel := levelMax - levelMin + 1
	nGrid := make([]int32, nLevel)
	if err := rd.Int32s(nGrid); err != nil { return nil, err }
	for i := range nGrid {
		if nGrid[i] < 0 {
			return nil, &ShardStructureError{ fname, fmt.Sprintf(
				"it declares %d grids at level %d", nGrid[i], levelMin+i) }
		}
	}

	s := &Shard{
		CPU: cpu, LevelMin: levelMin, LevelMax: levelMax,
		BoxLen: boxLen, Levels: make([]Level, nLevel),
	}

	// Explicit oct coordinates exist only for the coarsest level.
	lev0 := &s.Levels[0]
	lev0.L = levelMin
	lev0.IX = make([]int32, nGrid[0])
	lev0.IY = make([]int32, nGrid[0])
	lev0.IZ = make([]int32, nGrid[0])
	if err := rd.Int32s(lev0.IX); err != nil { return nil, err }
	if err := rd.Int32s(lev0.IY); err != nil { return nil, err }
	if err := rd.Int32s(lev0.IZ); err != nil { return nil, err }

	// A forced uniform grid stores no refinement masks at all.
	if nLevel == 1 { return s, nil }

	for i := 0; i < nLevel-1; i++ {
		lev := &s.Levels[i]
		lev.L = levelMin + i
		lev.Refined = make([]uint8, nGrid[i])
		if err := rd.Bytes(lev.Refined); err != nil { return nil, err }

		if err := s.buildChildren(fname, i, int(nGrid[i+1])); err != nil {
			return nil, err
		}
	}
	s.Levels[nLevel-1].L = levelMax

	return s, nil
}

// buildChildren derives level i+1's oct coordinates from level i's masks.
// Children appear in (parent order, octant order), which is the order the
// simulation writes variable arrays in, so no sorting is needed.
func (s *Shard) buildChildren(fname string, i, nDeclared int) error {
	parent := &s.Levels[i]
	child := &s.Levels[i+1]

	nChildren := 0
	for g := range parent.Refined {
		nChildren += bits.OnesCount8(parent.Refined[g])
	}
	if nChildren != nDeclared {
		return &ShardStructureError{ fname, fmt.Sprintf(
			"the refinement masks at level %d mark %d children, but the "+
				"header declares %d grids at level %d",
			parent.L, nChildren, nDeclared, parent.L+1) }
	}

	child.IX = make([]int32, 0, nChildren)
	child.IY = make([]int32, 0, nChildren)
	child.IZ = make([]int32, 0, nChildren)

	for g := range parent.Refined {
		if parent.Refined[g] == 0 { continue }
		for k := 0; k < 8; k++ {
			if parent.Refined[g]&(1<<uint(k)) == 0 { continue }
			// A refined level-L cell is exactly the footprint of its child
			// oct at level L+1, so the cell coordinate is the child's oct
			// coordinate.
			cx, cy, cz := parent.CellCoords(g, k)
			child.IX = append(child.IX, cx)
			child.IY = append(child.IY, cy)
			child.IZ = append(child.IZ, cz)
		}
	}
	return nil
}
