package hilbert

import (
	"testing"
)

// TestKeyBijective checks that every cell on a small grid maps to a unique
// integer key in [0, n^3).
func TestKeyBijective(t *testing.T) {
	for _, bits := range []int{1, 2, 3} {
		n := 1 << uint(bits)
		seen := make([]bool, n*n*n)

		for ix := 0; ix < n; ix++ {
			for iy := 0; iy < n; iy++ {
				for iz := 0; iz < n; iz++ {
					key := Key(ix, iy, iz, bits)
					k := int(key)
					if float64(k) != key {
						t.Fatalf("Key(%d,%d,%d,%d) = %g is not an integer.",
							ix, iy, iz, bits, key)
					} else if k < 0 || k >= len(seen) {
						t.Fatalf("Key(%d,%d,%d,%d) = %d is out of range "+
							"[0, %d).", ix, iy, iz, bits, k, len(seen))
					} else if seen[k] {
						t.Fatalf("Key(%d,%d,%d,%d) = %d collides with an "+
							"earlier cell.", ix, iy, iz, bits, k)
					}
					seen[k] = true
				}
			}
		}
	}
}

// TestKeyContinuous checks the defining property of a Hilbert curve:
// consecutive keys belong to face-adjacent cells.
func TestKeyContinuous(t *testing.T) {
	bits := 3
	n := 1 << uint(bits)

	cells := make([][3]int, n*n*n)
	for ix := 0; ix < n; ix++ {
		for iy := 0; iy < n; iy++ {
			for iz := 0; iz < n; iz++ {
				k := int(Key(ix, iy, iz, bits))
				cells[k] = [3]int{ix, iy, iz}
			}
		}
	}

	for k := 1; k < len(cells); k++ {
		d := 0
		for dim := 0; dim < 3; dim++ {
			diff := cells[k][dim] - cells[k-1][dim]
			if diff < 0 { diff = -diff }
			d += diff
		}
		if d != 1 {
			t.Fatalf("Cells with keys %d and %d are %d steps apart; a "+
				"Hilbert curve only moves one step at a time.", k-1, k, d)
		}
	}
}

func TestDomainsFullBoxReturnsAll(t *testing.T) {
	// Four CPUs evenly splitting the key range of a levelmax=3 run.
	total := 1.0
	for i := 0; i < 3*(3+1); i++ {
		total *= 2
	}
	bounds := []float64{0, total / 4, total / 2, 3 * total / 4, total}

	box := Box{{0, 1}, {0, 1}, {0, 1}}
	cpus := Domains(bounds, box, 3)
	if len(cpus) != 4 {
		t.Fatalf("Full-domain selection returned CPUs %v, expected all 4.",
			cpus)
	}
	for i := range cpus {
		if cpus[i] != i {
			t.Errorf("Domains() = %v, expected [0 1 2 3].", cpus)
			break
		}
	}
}

func TestDomainsSmallBoxPrunes(t *testing.T) {
	total := 1.0
	for i := 0; i < 3*(5+1); i++ {
		total *= 2
	}
	bounds := []float64{0, total / 4, total / 2, 3 * total / 4, total}

	// A corner-sized box should never need every CPU.
	box := Box{{0, 0.05}, {0, 0.05}, {0, 0.05}}
	cpus := Domains(bounds, box, 5)
	if len(cpus) == 0 {
		t.Fatalf("Corner selection returned no candidate CPUs.")
	} else if len(cpus) == 4 {
		t.Errorf("Corner selection failed to prune any of the 4 CPUs.")
	}

	// The origin cell has key 0 and must live on CPU 0.
	if cpus[0] != 0 {
		t.Errorf("Corner selection returned %v, which excludes CPU 0.", cpus)
	}
}
