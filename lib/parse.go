package lib

/* parse.go turns the command line and the config file into an Args struct.
The expected calling convention is

    $ remora <mode> <config file> [--<Field1> <value1>] [--<Field2> <value2>]

where every --Field flag overrides the matching config file field. */

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/remora/lib/read"
)

// ExampleConfig is printed by the "help" mode so users have something to
// copy-paste.
const ExampleConfig = `[Remora]

#######################
# Required Parameters #
#######################

# Directory containing the output_NNNNN directories.
Dir = path/to/simulation

# The snapshot number to read.
Snap = 12

#######################
# Optional Parameters #
#######################

# Comma-separated variables to load. Leave unset to load everything the
# output carries. (Available hydro names are usually rho, vx, vy, vz, p.)
# Vars = rho, p

# Refinement level bounds. 0 means the output's own bound.
# LMin = 0
# LMax = 0

# Spatial selection in code units over the [0, 1] box, as "low, high" pairs.
# A cell is kept when its center is inside the box.
# XRange = 0.5, 1.0
# YRange = 0.0, 1.0
# ZRange = 0.0, 1.0

# Density and sound-speed floors, matching the simulation's smallr/smallc.
# Smallr = 0
# Smallc = 0

# Report negative values found in non-floored variables.
# CheckNeg = false

# Worker threads. -1 uses every logical core.
# Threads = -1

# Memory ceiling, in MB, on shard data held before merging.
# MaxBatchMB = 1024

# Keep going when individual CPU files are unreadable.
# AllowPartial = false

# Write the assembled table to this archive file.
# Output = hydro.rma

# Projection settings ("project" mode only). Axis is X, Y, or Z; Method is
# sum, mean, or max; Level 0 projects at the finest loaded level.
# Var = rho
# Axis = Z
# Method = sum
# Level = 0`

// Args holds one run's fully parsed configuration.
type Args struct {
	Dir  string
	Snap int

	Vars string
	LMin, LMax int
	XRange, YRange, ZRange string
	Smallr, Smallc float64
	CheckNeg bool
	Threads int
	MaxBatchMB int
	AllowPartial bool

	Output string

	Var    string
	Axis   string
	Method string
	Level  int
}

// configWrapper is the gcfg section layout of remora config files.
type configWrapper struct {
	Remora Args
}

// defaultArgs returns an Args with every optional field at its default.
func defaultArgs() Args {
	return Args{ Threads: -1, Axis: "Z", Method: "sum" }
}

// ParseCommandLine splits os.Args into the run mode, the config file name,
// and the --Field value override pairs.
func ParseCommandLine() (mode, configFile string, overrides map[string]string) {
	args := os.Args[1:]
	if len(args) == 0 {
		ExternalErrorf("remora must be run as 'remora <mode> <config " +
			"file>'. Run 'remora help' for details.")
	}

	mode = args[0]
	overrides = map[string]string{}
	if len(args) == 1 { return mode, "", overrides }

	configFile = args[1]
	rest := args[2:]
	for i := 0; i < len(rest); i += 2 {
		if !strings.HasPrefix(rest[i], "--") || i+1 >= len(rest) {
			ExternalErrorf("Arguments after the config file must come in "+
				"'--Field value' pairs, but got '%s'.",
				strings.Join(rest[i:], " "))
		}
		overrides[strings.TrimPrefix(rest[i], "--")] = rest[i+1]
	}
	return mode, configFile, overrides
}

// ParseConfigFile reads the [Remora] section of a config file. An empty file
// name returns the defaults, so modes that only need flags still work.
func ParseConfigFile(fileName string) *Args {
	wrapper := configWrapper{ defaultArgs() }
	if fileName == "" {
		args := wrapper.Remora
		return &args
	}

	if err := gcfg.ReadFileInto(&wrapper, fileName); err != nil {
		ExternalErrorf("The config file %s could not be parsed: %s",
			fileName, err.Error())
	}
	args := wrapper.Remora
	return &args
}

// Overwrite applies --Field value command line pairs on top of args.
func (args *Args) Overwrite(overrides map[string]string) {
	for field, val := range overrides {
		var err error
		switch field {
		case "Dir": args.Dir = val
		case "Snap": args.Snap, err = strconv.Atoi(val)
		case "Vars": args.Vars = val
		case "LMin": args.LMin, err = strconv.Atoi(val)
		case "LMax": args.LMax, err = strconv.Atoi(val)
		case "XRange": args.XRange = val
		case "YRange": args.YRange = val
		case "ZRange": args.ZRange = val
		case "Smallr": args.Smallr, err = strconv.ParseFloat(val, 64)
		case "Smallc": args.Smallc, err = strconv.ParseFloat(val, 64)
		case "CheckNeg": args.CheckNeg, err = strconv.ParseBool(val)
		case "Threads": args.Threads, err = strconv.Atoi(val)
		case "MaxBatchMB": args.MaxBatchMB, err = strconv.Atoi(val)
		case "AllowPartial": args.AllowPartial, err = strconv.ParseBool(val)
		case "Output": args.Output = val
		case "Var": args.Var = val
		case "Axis": args.Axis = val
		case "Method": args.Method = val
		case "Level": args.Level, err = strconv.Atoi(val)
		default:
			ExternalErrorf("'%s' is not a config field remora recognizes. "+
				"Run 'remora help' to see the example config.", field)
		}
		if err != nil {
			ExternalErrorf("The command line value '--%s %s' could not be "+
				"parsed: %s", field, val, err.Error())
		}
	}
}

// Check validates the fields every data-reading mode depends on.
func (args *Args) Check() {
	if args.Dir == "" {
		ExternalErrorf("The config file doesn't set Dir, the simulation " +
			"directory.")
	}
	if args.Snap <= 0 {
		ExternalErrorf("The config file doesn't set Snap, the snapshot " +
			"number, to a positive value.")
	}
}

// parseRange parses a "low, high" axis range. An empty string is the full
// axis.
func parseRange(field, s string) [2]float64 {
	if s == "" { return [2]float64{} }

	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		ExternalErrorf("%s must be a 'low, high' pair, but is \"%s\".",
			field, s)
	}
	r := [2]float64{}
	for i := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil {
			ExternalErrorf("%s must be a 'low, high' pair of numbers, but "+
				"is \"%s\".", field, s)
		}
		r[i] = x
	}
	return r
}

// splitVars splits the comma-separated Vars field; nil means all variables.
func splitVars(s string) []string {
	if strings.TrimSpace(s) == "" { return nil }
	parts := strings.Split(s, ",")
	vars := make([]string, len(parts))
	for i := range parts {
		vars[i] = strings.TrimSpace(parts[i])
	}
	return vars
}

// ReadOptions converts the parsed configuration into the per-call Options
// struct the readers consume.
func (args *Args) ReadOptions() read.Options {
	opt := read.Options{
		Vars: splitVars(args.Vars),
		LMin: args.LMin, LMax: args.LMax,
		XRange: parseRange("XRange", args.XRange),
		YRange: parseRange("YRange", args.YRange),
		ZRange: parseRange("ZRange", args.ZRange),
		Smallr: args.Smallr, Smallc: args.Smallc,
		CheckNeg: args.CheckNeg,
		AllowPartial: args.AllowPartial,
	}
	if args.Threads > 0 { opt.Threads = args.Threads }
	if args.MaxBatchMB > 0 {
		opt.MaxBatchBytes = int64(args.MaxBatchMB) << 20
	}
	return opt
}

// AxisIndex converts the Axis field to the 0/1/2 index the projection code
// uses.
func (args *Args) AxisIndex() int {
	switch strings.ToUpper(strings.TrimSpace(args.Axis)) {
	case "X": return 0
	case "Y": return 1
	case "Z": return 2
	}
	ExternalErrorf("Axis must be one of [X | Y | Z]. '%s' is not "+
		"recognized.", args.Axis)
	return -1
}

// String renders args the way the config file would spell it, for logging.
func (args *Args) String() string {
	return fmt.Sprintf("Dir = %s, Snap = %d, Vars = %q, levels = [%d, %d]",
		args.Dir, args.Snap, args.Vars, args.LMin, args.LMax)
}
