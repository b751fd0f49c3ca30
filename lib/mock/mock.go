/*package mock writes small synthetic simulation outputs with known contents.
It exists so that reader tests can exercise every code path against fixtures
whose exact cell lists, particle counts, and corruption modes are controlled,
without shipping real multi-gigabyte outputs.*/
package mock

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"os"
	"path/filepath"
	"sort"

	"github.com/phil-mansfield/remora/lib/hilbert"
	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/record"
)

// Particles is the per-shard particle content of a synthetic output. All
// slices must have the same length.
type Particles struct {
	X, Y, Z, VX, VY, VZ, Mass, Birth []float64
	ID    []int64
	Level []int32
}

// N returns the number of particles.
func (p *Particles) N() int { return len(p.X) }

// Shard describes the content one CPU contributes to a synthetic output.
type Shard struct {
	// IX, IY, IZ are the oct coordinates at the coarsest level.
	IX, IY, IZ []int32
	// Refined holds one octant bitmask slice per level below the finest;
	// children are implied in (parent, octant) order, exactly as the reader
	// reconstructs them. Leave nil for a uniform (single-level) run.
	Refined [][]uint8

	Part      *Particles
	ClumpRows [][]float64

	// FudgeGridCount inflates the declared grid count of the finest level
	// in the AMR header without writing matching data, producing a
	// structurally broken shard for failure-path tests.
	FudgeGridCount bool
}

// Sim is a complete synthetic output. Zero values get sensible defaults from
// Write.
type Sim struct {
	Snap int
	NCPU int
	LevelMin, LevelMax int
	BoxLen float64
	Time, AExp float64
	UnitL, UnitD, UnitT float64
	NStarTot, NDMTot int64

	// Ordering is "hilbert" (with BoundKeys set) or "none".
	Ordering  string
	BoundKeys []float64

	NVarHydro int
	Gamma     float64

	HasHydro, HasGrav, HasPart, HasClumps bool

	Shards []*Shard

	// HydroValue and GravValue supply cell values. If nil, DefaultValue is
	// used.
	HydroValue func(cpu, level int, cx, cy, cz int32, ivar int) float64
	GravValue  func(cpu, level int, cx, cy, cz int32, ivar int) float64
}

// DefaultValue is the cell-value function used when a Sim doesn't supply
// one. It is deterministic in the cell coordinates so tests can predict it.
func DefaultValue(cpu, level int, cx, cy, cz int32, ivar int) float64 {
	return float64(ivar+1) +
		float64(cx)*1e-3 + float64(cy)*1e-6 + float64(cz)*1e-9
}

// ClumpHeader is the column header line written to synthetic clump files.
var ClumpHeader = []string{
	"index", "lev", "parent", "ncell", "peak_x", "peak_y", "peak_z",
	"rho-", "rho+", "rho_av", "mass_cl", "relevance",
}

// levels reconstructs the per-level oct coordinate arrays of a shard, using
// the same doubling rule as the reader. Index 0 is the coarsest level.
func (s *Shard) levels(nLevel int) (ix, iy, iz [][]int32) {
	ix = make([][]int32, nLevel)
	iy = make([][]int32, nLevel)
	iz = make([][]int32, nLevel)
	ix[0], iy[0], iz[0] = s.IX, s.IY, s.IZ

	for l := 0; l < nLevel-1; l++ {
		mask := s.Refined[l]
		for g := range mask {
			for k := 0; k < 8; k++ {
				if mask[g]&(1<<uint(k)) == 0 { continue }
				ix[l+1] = append(ix[l+1], 2*ix[l][g]+int32(k&1))
				iy[l+1] = append(iy[l+1], 2*iy[l][g]+int32((k>>1)&1))
				iz[l+1] = append(iz[l+1], 2*iz[l][g]+int32((k>>2)&1))
			}
		}
	}
	return ix, iy, iz
}

// Write creates the synthetic output directory under root and fills it with
// header, AMR, and dataset files.
func (sim *Sim) Write(root string) error {
	sim.fillDefaults()

	dir := filepath.Join(root, output.DirName(sim.Snap))
	if err := os.MkdirAll(dir, 0755); err != nil { return err }

	if err := sim.writeInfo(dir); err != nil { return err }

	for cpu := 0; cpu < sim.NCPU; cpu++ {
		s := sim.Shards[cpu]
		if err := sim.writeAmr(dir, cpu, s); err != nil { return err }
		if sim.HasHydro {
			err := sim.writeCells(dir, "hydro", cpu, s, sim.NVarHydro,
				sim.hydroValue())
			if err != nil { return err }
		}
		if sim.HasGrav {
			err := sim.writeCells(dir, "grav", cpu, s, 4, sim.gravValue())
			if err != nil { return err }
		}
		if sim.HasPart {
			if err := sim.writePart(dir, cpu, s); err != nil { return err }
		}
		if sim.HasClumps {
			if err := sim.writeClumps(dir, cpu, s); err != nil { return err }
		}
	}
	return nil
}

func (sim *Sim) fillDefaults() {
	if sim.Snap == 0 { sim.Snap = 1 }
	if sim.NCPU == 0 { sim.NCPU = len(sim.Shards) }
	if sim.BoxLen == 0 { sim.BoxLen = 1.0 }
	if sim.AExp == 0 { sim.AExp = 1.0 }
	if sim.UnitL == 0 { sim.UnitL = 3.08e21 }
	if sim.UnitD == 0 { sim.UnitD = 6.77e-23 }
	if sim.UnitT == 0 { sim.UnitT = 2.53e15 }
	if sim.NVarHydro == 0 { sim.NVarHydro = 5 }
	if sim.Gamma == 0 { sim.Gamma = 5.0 / 3.0 }
	if sim.Ordering == "" { sim.Ordering = "none" }
}

func (sim *Sim) hydroValue() func(int, int, int32, int32, int32, int) float64 {
	if sim.HydroValue != nil { return sim.HydroValue }
	return DefaultValue
}

func (sim *Sim) gravValue() func(int, int, int32, int32, int32, int) float64 {
	if sim.GravValue != nil { return sim.GravValue }
	return DefaultValue
}

func (sim *Sim) writeInfo(dir string) error {
	fname := filepath.Join(dir, fmt.Sprintf("info_%05d.txt", sim.Snap))
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	fmt.Fprintf(f, "ncpu = %d\n", sim.NCPU)
	fmt.Fprintf(f, "ndim = 3\n")
	fmt.Fprintf(f, "levelmin = %d\n", sim.LevelMin)
	fmt.Fprintf(f, "levelmax = %d\n", sim.LevelMax)
	fmt.Fprintf(f, "boxlen = %g\n", sim.BoxLen)
	fmt.Fprintf(f, "time = %g\n", sim.Time)
	fmt.Fprintf(f, "aexp = %g\n", sim.AExp)
	fmt.Fprintf(f, "unit_l = %g\n", sim.UnitL)
	fmt.Fprintf(f, "unit_d = %g\n", sim.UnitD)
	fmt.Fprintf(f, "unit_t = %g\n", sim.UnitT)
	fmt.Fprintf(f, "nstar_tot = %d\n", sim.NStarTot)
	fmt.Fprintf(f, "ndm_tot = %d\n", sim.NDMTot)
	fmt.Fprintf(f, "ordering type = %s\n", sim.Ordering)
	if sim.Ordering == "hilbert" {
		for i := range sim.BoundKeys {
			fmt.Fprintf(f, "%.1f\n", sim.BoundKeys[i])
		}
	}
	return nil
}

func (sim *Sim) writeAmr(dir string, cpu int, s *Shard) error {
	fname := filepath.Join(dir,
		fmt.Sprintf("amr_%05d.out%05d", sim.Snap, cpu+1))
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	wr := record.NewWriter(f, binary.LittleEndian)

	nLevel := sim.LevelMax - sim.LevelMin + 1
	nGrid := make([]int32, nLevel)
	nGrid[0] = int32(len(s.IX))
	for l := 0; l < nLevel-1; l++ {
		n := 0
		for g := range s.Refined[l] {
			n += bits.OnesCount8(s.Refined[l][g])
		}
		nGrid[l+1] = int32(n)
	}
	if s.FudgeGridCount {
		nGrid[nLevel-1]++
	}

	if err := wr.Record(int32(sim.NCPU)); err != nil { return err }
	if err := wr.Record(int32(3)); err != nil { return err }
	lims := []int32{int32(sim.LevelMin), int32(sim.LevelMax)}
	if err := wr.Record(lims); err != nil { return err }
	if err := wr.Record(sim.BoxLen); err != nil { return err }
	if err := wr.Record(nGrid); err != nil { return err }

	if err := wr.Record(s.IX); err != nil { return err }
	if err := wr.Record(s.IY); err != nil { return err }
	if err := wr.Record(s.IZ); err != nil { return err }

	for l := 0; l < nLevel-1; l++ {
		if err := wr.Record(s.Refined[l]); err != nil { return err }
	}
	return nil
}

// writeCells writes a hydro- or gravity-style cell variable file: per level,
// per variable, one record of 8 values per grid in (grid, octant) order.
func (sim *Sim) writeCells(
	dir, kind string, cpu int, s *Shard, nvar int,
	value func(int, int, int32, int32, int32, int) float64,
) error {
	fname := filepath.Join(dir,
		fmt.Sprintf("%s_%05d.out%05d", kind, sim.Snap, cpu+1))
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	wr := record.NewWriter(f, binary.LittleEndian)
	if err := wr.Record(int32(sim.NCPU)); err != nil { return err }
	if err := wr.Record(int32(nvar)); err != nil { return err }
	if err := wr.Record(sim.Gamma); err != nil { return err }

	nLevel := sim.LevelMax - sim.LevelMin + 1
	ix, iy, iz := s.levels(nLevel)

	for l := 0; l < nLevel; l++ {
		level := sim.LevelMin + l
		for ivar := 0; ivar < nvar; ivar++ {
			vals := make([]float64, 8*len(ix[l]))
			for g := range ix[l] {
				for k := 0; k < 8; k++ {
					cx := 2*ix[l][g] + int32(k&1)
					cy := 2*iy[l][g] + int32((k>>1)&1)
					cz := 2*iz[l][g] + int32((k>>2)&1)
					vals[8*g+k] = value(cpu, level, cx, cy, cz, ivar)
				}
			}
			if err := wr.Record(vals); err != nil { return err }
		}
	}
	return nil
}

func (sim *Sim) writePart(dir string, cpu int, s *Shard) error {
	fname := filepath.Join(dir,
		fmt.Sprintf("part_%05d.out%05d", sim.Snap, cpu+1))
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	p := s.Part
	if p == nil { p = &Particles{} }

	wr := record.NewWriter(f, binary.LittleEndian)
	if err := wr.Record(int32(sim.NCPU)); err != nil { return err }
	if err := wr.Record(int32(3)); err != nil { return err }
	if err := wr.Record(int32(p.N())); err != nil { return err }
	if err := wr.Record(int64(sim.NStarTot)); err != nil { return err }

	for _, xs := range [][]float64{p.X, p.Y, p.Z, p.VX, p.VY, p.VZ, p.Mass} {
		if err := wr.Record(xs); err != nil { return err }
	}
	if err := wr.Record(p.ID); err != nil { return err }
	if err := wr.Record(p.Level); err != nil { return err }
	return wr.Record(p.Birth)
}

func (sim *Sim) writeClumps(dir string, cpu int, s *Shard) error {
	fname := filepath.Join(dir,
		fmt.Sprintf("clump_%05d.txt%05d", sim.Snap, cpu+1))
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	for i, name := range ClumpHeader {
		if i > 0 { fmt.Fprint(f, " ") }
		fmt.Fprint(f, name)
	}
	fmt.Fprintln(f)

	for _, row := range s.ClumpRows {
		for i, x := range row {
			if i > 0 { fmt.Fprint(f, " ") }
			fmt.Fprintf(f, "%g", x)
		}
		fmt.Fprintln(f)
	}
	return nil
}

// Uniform builds a fully refined single-level simulation with ncpu shards
// whose cells are partitioned along the Hilbert curve, with a matching
// boundary-key table, so pruning behaves exactly like a real output.
func Uniform(ncpu, level int) *Sim {
	depth := level - 1
	n := 1 << uint(depth)

	type oct struct {
		key        float64
		ix, iy, iz int32
	}
	octs := []oct{}
	for ix := 0; ix < n; ix++ {
		for iy := 0; iy < n; iy++ {
			for iz := 0; iz < n; iz++ {
				octs = append(octs, oct{
					hilbert.Key(ix, iy, iz, depth),
					int32(ix), int32(iy), int32(iz),
				})
			}
		}
	}
	sort.Slice(octs, func(i, j int) bool { return octs[i].key < octs[j].key })

	// An oct at this level spans dkey fine-level keys.
	dkey := 1.0
	for i := 0; i < 3*(level+1-depth); i++ {
		dkey *= 2
	}
	total := dkey * float64(len(octs))

	sim := &Sim{
		NCPU: ncpu, LevelMin: level, LevelMax: level,
		Ordering: "hilbert", HasHydro: true,
		Shards: make([]*Shard, ncpu),
		BoundKeys: make([]float64, ncpu+1),
	}

	for cpu := 0; cpu < ncpu; cpu++ {
		lo := cpu * len(octs) / ncpu
		hi := (cpu + 1) * len(octs) / ncpu
		s := &Shard{}
		for _, o := range octs[lo:hi] {
			s.IX = append(s.IX, o.ix)
			s.IY = append(s.IY, o.iy)
			s.IZ = append(s.IZ, o.iz)
		}
		sim.Shards[cpu] = s
		sim.BoundKeys[cpu] = octs[lo].key * dkey
	}
	sim.BoundKeys[ncpu] = total

	return sim
}
