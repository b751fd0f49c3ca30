/*package units converts between the simulation's internal code units and
physical units. Each output stores three cgs scale factors (length, density,
time); everything else is derived from those. Code values are multiplied by a
scale factor to get physical values, so dividing by the same factor is an
exact round trip.*/
package units

const (
	cmPerParsec = 3.0856775814913673e18
	gPerMsun    = 1.9891e33
	sPerYear    = 3.15576e7
	gPerH       = 1.6735575e-24
)

// Scales holds the multiplicative factors taking code units to each
// supported physical unit. The zero value is useless; build one with New.
type Scales struct {
	// Raw cgs factors from the output header.
	UnitL, UnitD, UnitT float64

	// Lengths.
	Mpc, Kpc, Pc, Km, Cm float64
	// Times.
	Gyr, Myr, Yr, S float64
	// Velocities.
	KmS, CmS float64
	// Masses.
	Msol, G float64
	// Densities.
	GCm3, MsolPc3, NH float64
}

// New derives the full scale table from the header's cgs factors: unitL in
// cm, unitD in g/cm^3, and unitT in s, each per code unit.
func New(unitL, unitD, unitT float64) *Scales {
	unitM := unitD * unitL * unitL * unitL
	unitV := unitL / unitT

	return &Scales{
		UnitL: unitL, UnitD: unitD, UnitT: unitT,

		Cm:  unitL,
		Km:  unitL / 1e5,
		Pc:  unitL / cmPerParsec,
		Kpc: unitL / (1e3 * cmPerParsec),
		Mpc: unitL / (1e6 * cmPerParsec),

		S:   unitT,
		Yr:  unitT / sPerYear,
		Myr: unitT / (1e6 * sPerYear),
		Gyr: unitT / (1e9 * sPerYear),

		CmS: unitV,
		KmS: unitV / 1e5,

		G:    unitM,
		Msol: unitM / gPerMsun,

		GCm3: unitD,
		MsolPc3: unitD * cmPerParsec * cmPerParsec * cmPerParsec /
			gPerMsun,
		NH: unitD / gPerH,
	}
}

// Convert applies a scale factor to every element of x in place and returns
// x for chaining.
func Convert(x []float64, scale float64) []float64 {
	for i := range x {
		x[i] *= scale
	}
	return x
}
