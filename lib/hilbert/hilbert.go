/*package hilbert computes the 3D Hilbert space-filling keys that the
simulation code uses to decompose its domain across CPUs. Each CPU owns a
contiguous range of keys, so a spatial selection can skip whole per-CPU files
whose key range cannot intersect the selected box. Skipping is purely an
optimization: scanning every file and filtering afterwards is always correct.*/
package hilbert

// stateDiagram drives the Hilbert traversal. For each of the 12 curve
// orientations, the first row maps an interleaved coordinate digit to the
// next orientation and the second row maps it to the output key digit. The
// table must match the simulation code bit for bit, since file boundaries
// are defined in terms of these keys.
var stateDiagram = [12][2][8]int{
	{{1, 2, 3, 2, 4, 5, 3, 5}, {0, 1, 3, 2, 7, 6, 4, 5}},
	{{2, 6, 0, 7, 8, 8, 0, 7}, {0, 7, 1, 6, 3, 4, 2, 5}},
	{{0, 9, 10, 9, 1, 1, 11, 11}, {0, 3, 7, 4, 1, 2, 6, 5}},
	{{6, 0, 6, 11, 9, 0, 9, 8}, {2, 3, 1, 0, 5, 4, 6, 7}},
	{{11, 11, 0, 7, 5, 9, 0, 7}, {4, 3, 5, 2, 7, 0, 6, 1}},
	{{4, 4, 8, 8, 0, 6, 10, 6}, {6, 5, 1, 2, 7, 4, 0, 3}},
	{{5, 7, 11, 8, 7, 6, 9, 6}, {4, 7, 3, 0, 5, 6, 2, 1}},
	{{6, 1, 6, 10, 9, 4, 9, 10}, {6, 7, 5, 4, 1, 0, 2, 3}},
	{{10, 3, 1, 1, 10, 3, 5, 9}, {2, 5, 3, 4, 1, 6, 0, 7}},
	{{4, 4, 8, 8, 2, 7, 2, 3}, {2, 1, 5, 6, 3, 0, 4, 7}},
	{{7, 2, 11, 2, 7, 5, 8, 5}, {4, 5, 7, 6, 3, 2, 0, 1}},
	{{10, 3, 2, 6, 10, 3, 4, 4}, {6, 1, 7, 0, 5, 2, 4, 3}},
}

// Key returns the Hilbert key of the cell with integer coordinates
// (ix, iy, iz) on a 2^bitLength wide grid. The key is returned as a float64
// because that is how the simulation code stores its domain boundaries in
// the output headers.
func Key(ix, iy, iz, bitLength int) float64 {
	digits := make([]int, bitLength)

	state := 0
	for i := bitLength - 1; i >= 0; i-- {
		bx := (ix >> uint(i)) & 1
		by := (iy >> uint(i)) & 1
		bz := (iz >> uint(i)) & 1
		sdigit := bx*4 + by*2 + bz

		digits[i] = stateDiagram[state][1][sdigit]
		state = stateDiagram[state][0][sdigit]
	}

	key := 0.0
	for i := bitLength - 1; i >= 0; i-- {
		key = key*8.0 + float64(digits[i])
	}
	return key
}

// Box is an axis-aligned selection in code units, [3][2]float64 as
// {xlo, xhi}, {ylo, yhi}, {zlo, zhi} over the [0,1] domain.
type Box [3][2]float64

// maxScanBits caps the coarse grid used when pruning domains. 2^(3*5)
// cells is the most a full-domain selection will ever iterate over.
const maxScanBits = 5

// Domains returns the 0-based CPU indices whose Hilbert key range could hold
// cells inside box. bounds is the ncpu+1 entry boundary-key table from the
// output header, with keys measured at bit length levelMax+1: CPU i owns
// [bounds[i], bounds[i+1]). The returned list is sorted ascending.
func Domains(bounds []float64, box Box, levelMax int) []int {
	ncpu := len(bounds) - 1
	if ncpu <= 0 { return nil }

	bits := levelMax - 1
	if bits > maxScanBits { bits = maxScanBits }
	if bits < 1 { bits = 1 }

	// Keys of one coarse cell at this bit length span dkey fine-level keys.
	dkey := 1.0
	for i := 0; i < 3*(levelMax+1-bits); i++ {
		dkey *= 2.0
	}

	n := 1 << uint(bits)
	lo, hi := [3]int{}, [3]int{}
	for d := 0; d < 3; d++ {
		lo[d] = int(box[d][0] * float64(n))
		hi[d] = int(box[d][1] * float64(n))
		if lo[d] < 0 { lo[d] = 0 }
		if hi[d] >= n { hi[d] = n - 1 }
	}

	included := make([]bool, ncpu)
	for ix := lo[0]; ix <= hi[0]; ix++ {
		for iy := lo[1]; iy <= hi[1]; iy++ {
			for iz := lo[2]; iz <= hi[2]; iz++ {
				keyMin := Key(ix, iy, iz, bits) * dkey
				keyMax := keyMin + dkey
				for cpu := 0; cpu < ncpu; cpu++ {
					if bounds[cpu] < keyMax && bounds[cpu+1] > keyMin {
						included[cpu] = true
					}
				}
			}
		}
	}

	out := []int{}
	for cpu := range included {
		if included[cpu] { out = append(out, cpu) }
	}
	return out
}
