/*remora reads the multi-file outputs of adaptive-mesh cosmological
simulations and assembles them into flat tables: hydro leaf cells, particles,
gravity fields, and clump catalogues. It can also save assembled tables to
compressed archives and collapse hydro tables into 2D projections.

Usage:

    $ remora <mode> <config file> [--<Field1> <value1>] [--<Field2> <value2>]

where mode is one of 'help', 'info', 'hydro', 'particles', 'gravity',
'clumps', 'archive', or 'project'.*/
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/phil-mansfield/remora/lib"
	"github.com/phil-mansfield/remora/lib/archive"
	"github.com/phil-mansfield/remora/lib/output"
	"github.com/phil-mansfield/remora/lib/project"
	"github.com/phil-mansfield/remora/lib/read"
	"github.com/phil-mansfield/remora/lib/table"
)

func main() {
	// Parse arguments.
	mode, configFile, overrides := lib.ParseCommandLine()
	if mode == "help" {
		PrintHelp()
		return
	}

	args := lib.ParseConfigFile(configFile)
	args.Overwrite(overrides)

	lib.SetThreads(args.Threads)

	// Run the chosen mode.
	switch mode {
	case "info":
		Info(args)
	case "hydro":
		Hydro(args)
	case "particles":
		Particles(args)
	case "gravity":
		Gravity(args)
	case "clumps":
		Clumps(args)
	case "archive":
		Archive(args)
	case "project":
		Project(args)
	default:
		lib.ExternalErrorf("You attempted to run remora in the mode '%s', "+
			"but the only valid modes are 'help', 'info', 'hydro', "+
			"'particles', 'gravity', 'clumps', 'archive', and 'project'.",
			mode)
	}
}

// PrintHelp runs the "help" mode, which prints usage and an example config.
func PrintHelp() {
	fmt.Println("Usage: remora <mode> <config file> " +
		"[--<Field1> <value1>] [--<Field2> <value2>]")
	fmt.Println("Modes: help, info, hydro, particles, gravity, clumps, " +
		"archive, project")
	fmt.Println()
	fmt.Println("Example config file:")
	fmt.Println()
	fmt.Println(lib.ExampleConfig)
}

// readInfo loads the output's metadata or dies with a user-facing error.
func readInfo(args *lib.Args) *output.Info {
	args.Check()
	info, err := output.ReadInfo(args.Dir, args.Snap)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }
	return info
}

// Info runs the "info" mode, which prints an output's metadata.
func Info(args *lib.Args) {
	info := readInfo(args)

	fmt.Printf("output %d in %s\n", info.Snap, args.Dir)
	fmt.Printf("  ncpu:      %d\n", info.NCPU)
	fmt.Printf("  levels:    [%d, %d]\n", info.LevelMin, info.LevelMax)
	fmt.Printf("  boxlen:    %g\n", info.BoxLen)
	fmt.Printf("  time:      %g  (aexp = %g)\n", info.Time, info.AExp)
	fmt.Printf("  ordering:  %s\n", info.Ordering)
	fmt.Printf("  particles: %d stars + %d dark matter\n",
		info.NStarTot, info.NDMTot)

	fmt.Printf("  datasets:\n")
	if info.HasHydro {
		fmt.Printf("    hydro (gamma = %g): %v\n", info.Gamma,
			info.HydroVars)
	}
	if info.HasGrav {
		fmt.Printf("    gravity: %v\n", info.GravVars)
	}
	if info.HasPart {
		fmt.Printf("    particles: %v\n", info.PartVars)
	}
	if info.HasClumps {
		fmt.Printf("    clumps\n")
	}

	fmt.Printf("  units:\n")
	fmt.Printf("    length:  %g cm  (box = %g Mpc)\n",
		info.Scales.UnitL, info.BoxLen*info.Scales.Mpc)
	fmt.Printf("    density: %g g/cm^3\n", info.Scales.UnitD)
	fmt.Printf("    time:    %g s\n", info.Scales.UnitT)
}

// save writes an assembled table to the configured archive file, if any.
func save(args *lib.Args, kind string, lmin, lmax int,
	ranges [6]float64, boxLen float64, t *table.Table) {
	if args.Output == "" { return }

	meta := archive.Meta{
		Kind: kind, Snap: args.Snap,
		LMin: lmin, LMax: lmax,
		Ranges: ranges, BoxLen: boxLen,
	}
	if err := archive.Write(args.Output, meta, t); err != nil {
		lib.ExternalErrorf("The archive %s could not be written: %s",
			args.Output, err.Error())
	}
	fmt.Printf("wrote %s\n", args.Output)
}

// report prints the row count and warns about any skipped shards.
func report(kind string, n int, failed []int) {
	fmt.Printf("%s: %d rows\n", kind, n)
	if len(failed) > 0 {
		fmt.Printf("  skipped unreadable CPU files: %v\n", failed)
	}
}

// Hydro runs the "hydro" mode, which assembles the leaf-cell hydro table.
func Hydro(args *lib.Args) {
	info := readInfo(args)
	opt := args.ReadOptions()
	opt.Log = log.New(os.Stderr, "", log.LstdFlags)

	data, err := read.Hydro(info, opt)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	report("hydro", data.Table.Len(), data.FailedCPUs)
	save(args, "hydro", data.LMin, data.LMax, data.Ranges, data.BoxLen,
		data.Table)
}

// Gravity runs the "gravity" mode, which assembles the leaf-cell gravity
// table.
func Gravity(args *lib.Args) {
	info := readInfo(args)
	opt := args.ReadOptions()
	opt.Log = log.New(os.Stderr, "", log.LstdFlags)

	data, err := read.Gravity(info, opt)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	report("gravity", data.Table.Len(), data.FailedCPUs)
	save(args, "gravity", data.LMin, data.LMax, data.Ranges, data.BoxLen,
		data.Table)
}

// Particles runs the "particles" mode, which assembles the particle table.
func Particles(args *lib.Args) {
	info := readInfo(args)
	opt := args.ReadOptions()
	opt.Log = log.New(os.Stderr, "", log.LstdFlags)

	data, err := read.Particles(info, opt)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	report("particles", data.Table.Len(), data.FailedCPUs)

	// An unfiltered read should reproduce the header's declared count.
	unfiltered := args.LMin == 0 && args.LMax == 0 &&
		data.Ranges == [6]float64{0, 1, 0, 1, 0, 1} &&
		len(data.FailedCPUs) == 0
	if unfiltered && data.DeclaredTotal() > 0 &&
		int64(data.Table.Len()) != data.DeclaredTotal() {
		fmt.Printf("  warning: the header declares %d particles\n",
			data.DeclaredTotal())
	}
	save(args, "particles", data.LMin, data.LMax, data.Ranges, data.BoxLen,
		data.Table)
}

// Clumps runs the "clumps" mode, which assembles the clump catalogue.
func Clumps(args *lib.Args) {
	info := readInfo(args)
	opt := args.ReadOptions()
	opt.Log = log.New(os.Stderr, "", log.LstdFlags)

	data, err := read.Clumps(info, opt)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	report("clumps", data.Table.Len(), data.FailedCPUs)
	save(args, "clumps", 0, 0, [6]float64{0, 1, 0, 1, 0, 1}, data.BoxLen,
		data.Table)
}

// Archive runs the "archive" mode, which inspects a saved archive file: its
// selection metadata and column schema.
func Archive(args *lib.Args) {
	if args.Output == "" {
		lib.ExternalErrorf("The 'archive' mode needs the Output field: the " +
			"archive file to inspect.")
	}

	meta, t, err := archive.Read(args.Output)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	fmt.Printf("%s: %s table from output %d, %d rows\n",
		args.Output, meta.Kind, meta.Snap, t.Len())
	fmt.Printf("  levels: [%d, %d]\n", meta.LMin, meta.LMax)
	fmt.Printf("  ranges: x [%g, %g), y [%g, %g), z [%g, %g)\n",
		meta.Ranges[0], meta.Ranges[1], meta.Ranges[2],
		meta.Ranges[3], meta.Ranges[4], meta.Ranges[5])
	fmt.Printf("  boxlen: %g\n", meta.BoxLen)
	fmt.Printf("  columns: %v\n", t.Names())
}

// Project runs the "project" mode: read hydro, collapse one variable along
// an axis, and write the grid as text.
func Project(args *lib.Args) {
	if args.Var == "" {
		lib.ExternalErrorf("The 'project' mode needs the Var field: the " +
			"hydro variable to project.")
	}

	info := readInfo(args)
	opt := args.ReadOptions()
	opt.Log = log.New(os.Stderr, "", log.LstdFlags)

	data, err := read.Hydro(info, opt)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	method := project.Sum
	switch args.Method {
	case "", "sum": method = project.Sum
	case "mean": method = project.Mean
	case "max": method = project.Max
	default:
		lib.ExternalErrorf("Method must be one of [sum | mean | max]. "+
			"'%s' is not recognized.", args.Method)
	}

	grid, err := project.Project(data, args.Var, args.AxisIndex(),
		args.Level, method)
	if err != nil { lib.ExternalErrorf("%s", err.Error()) }

	s := grid.Summary()
	fmt.Printf("%s of %s along %s at level %d: %d x %d pixels\n",
		grid.Method, grid.Var, args.Axis, grid.Level, grid.N, grid.N)
	fmt.Printf("  mean = %g, std = %g, min = %g, max = %g, median = %g\n",
		s.Mean, s.Std, s.Min, s.Max, s.Median)

	if args.Output == "" { return }
	if err := writeGrid(args.Output, grid); err != nil {
		lib.ExternalErrorf("The grid file %s could not be written: %s",
			args.Output, err.Error())
	}
	fmt.Printf("wrote %s\n", args.Output)
}

// writeGrid writes a projection as whitespace-delimited text, one grid row
// per line.
func writeGrid(fname string, g *project.Grid) error {
	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	fmt.Fprintf(f, "# %s of %s, axis %d, level %d, n %d\n",
		g.Method, g.Var, g.Axis, g.Level, g.N)
	for j := 0; j < g.N; j++ {
		for i := 0; i < g.N; i++ {
			if i > 0 {
				if _, err := fmt.Fprint(f, " "); err != nil { return err }
			}
			if _, err := fmt.Fprintf(f, "%g", g.At(i, j)); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(f); err != nil { return err }
	}
	return nil
}
