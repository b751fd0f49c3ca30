/*package output locates simulation output directories and reads their
per-output metadata: the text header file, the optional variable descriptor
files, and the Hilbert domain-decomposition table. The resulting Info struct
is immutable and is shared by every dataset read from that output.*/
package output

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/phil-mansfield/remora/lib/record"
	"github.com/phil-mansfield/remora/lib/units"
)

// ShardCountMismatchError is returned when the header declares a different
// number of CPUs than the number of per-CPU files actually present in the
// output directory. This is always fatal: partial outputs usually mean a
// truncated copy or a simulation that died mid-dump.
type ShardCountMismatchError struct {
	Kind     string
	Dir      string
	Declared, Found int
}

func (e *ShardCountMismatchError) Error() string {
	return fmt.Sprintf("The header in %s declares %d CPUs, but %d %s files "+
		"were found. The output was probably copied incompletely or the "+
		"simulation died while writing it.",
		e.Dir, e.Declared, e.Found, e.Kind)
}

// Info is the immutable per-output metadata. It is created once by ReadInfo
// and shared, read-only, by every dataset built from the output.
type Info struct {
	Snap int
	Dir  string

	NCPU int
	NDim int
	LevelMin, LevelMax int
	BoxLen float64
	Time, AExp float64

	// Total particle counts declared by the header, used as a cross-check
	// against assembled particle tables.
	NStarTot, NDMTot int64

	// Ordering is the domain decomposition scheme, normally "hilbert".
	// BoundKeys has NCPU+1 entries; CPU i owns keys in
	// [BoundKeys[i], BoundKeys[i+1]).
	Ordering  string
	BoundKeys []float64

	Scales *units.Scales

	HydroVars, GravVars, PartVars []string
	Gamma float64

	HasHydro, HasGrav, HasPart, HasClumps bool
}

// infoName returns the name of the header file for a snapshot.
func infoName(snap int) string {
	return fmt.Sprintf("info_%05d.txt", snap)
}

// DirName returns the output directory name for a snapshot number.
func DirName(snap int) string {
	return fmt.Sprintf("output_%05d", snap)
}

// shardName formats a per-CPU file name. cpu is 0-based internally but
// 1-based in file names, matching the simulation code.
func shardName(kind string, snap, cpu int) string {
	ext := "out"
	if kind == "clump" { ext = "txt" }
	return fmt.Sprintf("%s_%05d.%s%05d", kind, snap, ext, cpu+1)
}

// AmrFile returns the path of a CPU's AMR structure file.
func (info *Info) AmrFile(cpu int) string {
	return filepath.Join(info.Dir, shardName("amr", info.Snap, cpu))
}

// HydroFile returns the path of a CPU's hydro variable file.
func (info *Info) HydroFile(cpu int) string {
	return filepath.Join(info.Dir, shardName("hydro", info.Snap, cpu))
}

// GravFile returns the path of a CPU's gravity variable file.
func (info *Info) GravFile(cpu int) string {
	return filepath.Join(info.Dir, shardName("grav", info.Snap, cpu))
}

// PartFile returns the path of a CPU's particle file.
func (info *Info) PartFile(cpu int) string {
	return filepath.Join(info.Dir, shardName("part", info.Snap, cpu))
}

// ClumpFile returns the path of a CPU's clump-finder text file.
func (info *Info) ClumpFile(cpu int) string {
	return filepath.Join(info.Dir, shardName("clump", info.Snap, cpu))
}

// ReadInfo reads the metadata of output number snap under the simulation
// root directory path. It fails before any heavy I/O if the directory is
// missing, the header is unreadable, or the number of per-CPU files doesn't
// match the header's declared CPU count.
func ReadInfo(path string, snap int) (*Info, error) {
	dir := filepath.Join(path, DirName(snap))
	if stat, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("The output directory %s does not exist or "+
			"cannot be accessed.", dir)
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("%s exists, but is not a directory.", dir)
	}

	info := &Info{ Snap: snap, Dir: dir }
	err := info.parseHeader(filepath.Join(dir, infoName(snap)))
	if err != nil { return nil, err }

	info.Scales = units.New(
		info.Scales.UnitL, info.Scales.UnitD, info.Scales.UnitT,
	)

	err = info.findShards()
	if err != nil { return nil, err }

	err = info.readVariableNames()
	if err != nil { return nil, err }

	return info, nil
}

// parseHeader reads the key = value text header plus the trailing Hilbert
// boundary-key table.
func (info *Info) parseHeader(fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("The header file %s does not exist or cannot be "+
			"accessed. Every output directory must contain one.", fname)
	}
	defer f.Close()

	var unitL, unitD, unitT float64
	inBounds := false

	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" { continue }

		if inBounds {
			key, err := strconv.ParseFloat(line, 64)
			if err != nil {
				return fmt.Errorf("The boundary-key table in %s contains "+
					"the non-numeric line \"%s\".", fname, line)
			}
			info.BoundKeys = append(info.BoundKeys, key)
			continue
		}

		i := strings.Index(line, "=")
		if i == -1 { continue }
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])

		switch key {
		case "ncpu": err = parseInt(fname, key, val, &info.NCPU)
		case "ndim": err = parseInt(fname, key, val, &info.NDim)
		case "levelmin": err = parseInt(fname, key, val, &info.LevelMin)
		case "levelmax": err = parseInt(fname, key, val, &info.LevelMax)
		case "boxlen": err = parseFloat(fname, key, val, &info.BoxLen)
		case "time": err = parseFloat(fname, key, val, &info.Time)
		case "aexp": err = parseFloat(fname, key, val, &info.AExp)
		case "unit_l": err = parseFloat(fname, key, val, &unitL)
		case "unit_d": err = parseFloat(fname, key, val, &unitD)
		case "unit_t": err = parseFloat(fname, key, val, &unitT)
		case "nstar_tot": err = parseInt64(fname, key, val, &info.NStarTot)
		case "ndm_tot": err = parseInt64(fname, key, val, &info.NDMTot)
		case "ordering type":
			info.Ordering = val
			inBounds = true
		}
		if err != nil { return err }
	}
	if err := scan.Err(); err != nil { return err }

	if info.NCPU <= 0 {
		return fmt.Errorf("The header file %s does not declare a positive "+
			"CPU count.", fname)
	} else if info.NDim != 3 {
		return fmt.Errorf("The header file %s declares ndim = %d, but only "+
			"three-dimensional outputs are supported.", fname, info.NDim)
	} else if info.LevelMin < 1 || info.LevelMax < info.LevelMin {
		return fmt.Errorf("The header file %s declares the invalid level "+
			"range [%d, %d].", fname, info.LevelMin, info.LevelMax)
	}

	if info.Ordering == "hilbert" &&
		len(info.BoundKeys) != info.NCPU+1 {
		return fmt.Errorf("The header file %s declares %d CPUs, so its "+
			"boundary-key table needs %d entries, but it has %d.",
			fname, info.NCPU, info.NCPU+1, len(info.BoundKeys))
	}

	// Stash the raw factors; ReadInfo derives the full table.
	info.Scales = &units.Scales{ UnitL: unitL, UnitD: unitD, UnitT: unitT }

	return nil
}

func parseInt(fname, key, val string, out *int) error {
	x, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("The field '%s' in %s should be an integer, but "+
			"is \"%s\".", key, fname, val)
	}
	*out = x
	return nil
}

func parseInt64(fname, key, val string, out *int64) error {
	x, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fmt.Errorf("The field '%s' in %s should be an integer, but "+
			"is \"%s\".", key, fname, val)
	}
	*out = x
	return nil
}

func parseFloat(fname, key, val string, out *float64) error {
	x, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fmt.Errorf("The field '%s' in %s should be a number, but "+
			"is \"%s\".", key, fname, val)
	}
	*out = x
	return nil
}

// countShards counts the per-CPU files of one kind present in the output
// directory.
func (info *Info) countShards(kind string) int {
	n := 0
	for cpu := 0; cpu < info.NCPU; cpu++ {
		fname := filepath.Join(info.Dir, shardName(kind, info.Snap, cpu))
		if _, err := os.Stat(fname); err == nil { n++ }
	}
	return n
}

// findShards sets the feature flags and checks declared-versus-found shard
// counts for every dataset kind present in the directory.
func (info *Info) findShards() error {
	for _, kind := range []string{"amr", "hydro", "grav", "part", "clump"} {
		found := info.countShards(kind)
		if found == 0 { continue }
		if found != info.NCPU {
			return &ShardCountMismatchError{
				Kind: kind, Dir: info.Dir,
				Declared: info.NCPU, Found: found,
			}
		}
		switch kind {
		case "hydro": info.HasHydro = true
		case "grav": info.HasGrav = true
		case "part": info.HasPart = true
		case "clump": info.HasClumps = true
		}
	}

	if info.HasHydro || info.HasGrav {
		if info.countShards("amr") != info.NCPU {
			return &ShardCountMismatchError{
				Kind: "amr", Dir: info.Dir,
				Declared: info.NCPU, Found: info.countShards("amr"),
			}
		}
	}
	return nil
}

// defaultHydroVars returns the conventional hydro variable names for a
// simulation with nvar variables: density, velocity, pressure, then unnamed
// passive scalars.
func defaultHydroVars(nvar int) []string {
	std := []string{"rho", "vx", "vy", "vz", "p"}
	vars := make([]string, nvar)
	for i := 0; i < nvar; i++ {
		if i < len(std) {
			vars[i] = std[i]
		} else {
			vars[i] = fmt.Sprintf("var%d", i+1)
		}
	}
	return vars
}

// defaultPartVars is the fixed variable layout of particle files.
func defaultPartVars() []string {
	return []string{
		"x", "y", "z", "vx", "vy", "vz", "mass", "id", "level", "birth",
	}
}

// defaultGravVars returns the gravity variable names: the potential plus one
// acceleration component per dimension.
func defaultGravVars(ndim int) []string {
	vars := []string{"epot"}
	comps := []string{"ax", "ay", "az"}
	return append(vars, comps[:ndim]...)
}

// readDescriptor parses an `ivar, name, type` descriptor file and returns
// the variable names in ivar order. A missing file is not an error; callers
// fall back to the conventional names.
func readDescriptor(fname string) ([]string, error) {
	f, err := os.Open(fname)
	if err != nil { return nil, nil }
	defer f.Close()

	vars := []string{}
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") { continue }
		fields := strings.Split(line, ",")
		if len(fields) < 2 {
			return nil, fmt.Errorf("The descriptor file %s contains the "+
				"unparseable line \"%s\"; expected 'ivar, name, type'.",
				fname, line)
		}
		vars = append(vars, strings.TrimSpace(fields[1]))
	}
	if err := scan.Err(); err != nil { return nil, err }
	return vars, nil
}

// readVariableNames fills in the per-kind variable name lists from the
// descriptor files, falling back to the conventional names, and reads the
// hydro header for nvar and gamma.
func (info *Info) readVariableNames() error {
	if info.HasHydro {
		nvar, gamma, err := readHydroHeader(info.HydroFile(0))
		if err != nil { return err }
		info.Gamma = gamma

		desc, err := readDescriptor(
			filepath.Join(info.Dir, "hydro_file_descriptor.txt"))
		if err != nil { return err }
		if desc != nil {
			if len(desc) != nvar {
				return fmt.Errorf("The hydro descriptor in %s names %d "+
					"variables, but the hydro files contain %d.",
					info.Dir, len(desc), nvar)
			}
			info.HydroVars = desc
		} else {
			info.HydroVars = defaultHydroVars(nvar)
		}
	}

	if info.HasGrav {
		info.GravVars = defaultGravVars(info.NDim)
	}

	if info.HasPart {
		desc, err := readDescriptor(
			filepath.Join(info.Dir, "part_file_descriptor.txt"))
		if err != nil { return err }
		if desc != nil {
			info.PartVars = desc
		} else {
			info.PartVars = defaultPartVars()
		}
	}

	return nil
}

// readHydroHeader reads just the leading scalar records of one hydro file.
func readHydroHeader(fname string) (nvar int, gamma float64, err error) {
	f, err := os.Open(fname)
	if err != nil {
		return 0, 0, fmt.Errorf("The hydro file %s does not exist or "+
			"cannot be accessed.", fname)
	}
	defer f.Close()

	rd := record.NewReader(fname, f, binary.LittleEndian)
	if _, err = rd.Int32(); err != nil { return 0, 0, err } // ncpu
	n, err := rd.Int32()
	if err != nil { return 0, 0, err }
	gamma, err = rd.Float64()
	if err != nil { return 0, 0, err }

	return int(n), gamma, nil
}
