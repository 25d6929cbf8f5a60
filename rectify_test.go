// seehuhn.de/go/rectify - spectral order rectification
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package rectify

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// uniformFrame returns a ydim×xdim frame filled with v.
func uniformFrame(ydim, xdim int, v float64) *mat.Dense {
	frame := mat.NewDense(ydim, xdim, nil)
	if v != 0 {
		for y := range ydim {
			for x := range xdim {
				frame.Set(y, x, v)
			}
		}
	}
	return frame
}

// patternFrame returns a frame with a deterministic, everywhere non-zero
// pixel pattern.
func patternFrame(ydim, xdim int) *mat.Dense {
	frame := mat.NewDense(ydim, xdim, nil)
	for y := range ydim {
		for x := range xdim {
			frame.Set(y, x, float64((x*7+y*13)%11)+0.5)
		}
	}
	return frame
}

// TestFluxConservation puts a single non-zero pixel strictly inside the
// band. Whatever the sub-pixel geometry does, the output must receive the
// pixel's full value exactly once.
func TestFluxConservation(t *testing.T) {
	frame := mat.NewDense(10, 10, nil)
	frame.Set(5, 4, 2.75)

	// centre line at y = 4.5 so every cell straddles pixel boundaries
	r := NewRectifier(3)
	spec, err := r.SumExtract([]float64{4.5}, frame)
	if err != nil {
		t.Fatal(err)
	}

	var total float64
	for _, v := range spec.Flux {
		total += v
	}
	if math.Abs(total-2.75) > 1e-12 {
		t.Errorf("total flux = %g, want 2.75", total)
	}
	// with unit sampling all flux lands in the pixel's own column
	if math.Abs(spec.Flux[4]-2.75) > 1e-12 {
		t.Errorf("Flux[4] = %g, want 2.75", spec.Flux[4])
	}
}

// TestSumImageEquivalence checks that sum mode equals the row sum of
// image mode for identical inputs.
func TestSumImageEquivalence(t *testing.T) {
	frame := patternFrame(12, 16)
	coeffs := []float64{5.0, 0.05}

	r := NewRectifier(3)
	spec, err := r.SumExtract(coeffs, frame)
	if err != nil {
		t.Fatal(err)
	}
	band, err := r.Rectify(coeffs, frame)
	if err != nil {
		t.Fatal(err)
	}
	collapsed := Collapse(band)

	if len(spec.Flux) != len(collapsed.Flux) {
		t.Fatalf("length mismatch: %d vs %d", len(spec.Flux), len(collapsed.Flux))
	}
	for x := range spec.Flux {
		if math.Abs(spec.Flux[x]-collapsed.Flux[x]) > 1e-9 {
			t.Errorf("column %d: sum %g, collapsed image %g",
				x, spec.Flux[x], collapsed.Flux[x])
		}
	}
	if spec.YCenter != band.YCenter {
		t.Errorf("YCenter: sum %d, image %d", spec.YCenter, band.YCenter)
	}
}

// TestStraightLine checks the zero-curvature special case: rectifying an
// all-ones region along a flat horizontal trace moves no flux at all, so
// the output is exactly all ones.
func TestStraightLine(t *testing.T) {
	frame := uniformFrame(10, 10, 1.0)

	r := NewRectifier(2)
	band, err := r.Rectify([]float64{5.0}, frame)
	if err != nil {
		t.Fatal(err)
	}

	rows, cols := band.Data.Dims()
	if rows != 4 || cols != 10 {
		t.Fatalf("dim = %d×%d, want 4×10", rows, cols)
	}
	for y := range rows {
		for x := range cols {
			if v := band.Data.At(y, x); v != 1.0 {
				t.Errorf("out[%d,%d] = %g, want exactly 1", y, x, v)
			}
		}
	}
}

func TestSumScenario(t *testing.T) {
	// flat trace at y=5 over a 10×10 frame of 2.0: each output column
	// covers upper+lower input rows with unit overlap each.
	frame := uniformFrame(10, 10, 2.0)

	r := NewRectifier(2)
	spec, err := r.SumExtract([]float64{5.0}, frame)
	if err != nil {
		t.Fatal(err)
	}

	if spec.YCenter != 5 {
		t.Errorf("YCenter = %d, want 5", spec.YCenter)
	}
	if len(spec.Flux) != 10 {
		t.Fatalf("len(Flux) = %d, want 10", len(spec.Flux))
	}
	for x, v := range spec.Flux {
		if math.Abs(v-8.0) > 1e-12 {
			t.Errorf("Flux[%d] = %g, want 8", x, v)
		}
	}
}

// TestBoundaryClamp checks that a half-width reaching past the detector
// edge is clamped to exactly the remaining distance.
func TestBoundaryClamp(t *testing.T) {
	frame := uniformFrame(10, 10, 1.0)

	r := NewRectifier(5)
	band, err := r.Rectify([]float64{8.0}, frame)
	if err != nil {
		t.Fatal(err)
	}

	if band.YCenter != 8 {
		t.Errorf("YCenter = %d, want 8", band.YCenter)
	}
	if band.Upper != 2 {
		t.Errorf("Upper = %d, want 2 (distance to the top edge)", band.Upper)
	}
	if band.Lower != 5 {
		t.Errorf("Lower = %d, want 5", band.Lower)
	}
}

func TestOptimalExtract(t *testing.T) {
	// With a uniform flat the weights are equal, so the weighted sum of a
	// uniform science band is the uniform value itself.
	science := uniformFrame(10, 10, 2.0)
	flat := uniformFrame(10, 10, 1.0)

	r := NewRectifier(2)
	spec, err := r.OptimalExtract([]float64{5.0}, science, flat)
	if err != nil {
		t.Fatal(err)
	}

	for x, v := range spec.Flux {
		if math.Abs(v-2.0) > 1e-12 {
			t.Errorf("Flux[%d] = %g, want 2", x, v)
		}
	}
}

func TestOptimalZeroFlat(t *testing.T) {
	r := NewRectifier(2)

	// zero flat under non-zero science: the weights are undefined
	science := uniformFrame(10, 10, 2.0)
	flat := uniformFrame(10, 10, 0.0)
	_, err := r.OptimalExtract([]float64{5.0}, science, flat)
	if !errors.Is(err, ErrZeroWeight) {
		t.Errorf("err = %v, want ErrZeroWeight", err)
	}

	// zero flat under zero science: no flux, no error
	spec, err := r.OptimalExtract([]float64{5.0}, uniformFrame(10, 10, 0.0), flat)
	if err != nil {
		t.Fatal(err)
	}
	for x, v := range spec.Flux {
		if v != 0 {
			t.Errorf("Flux[%d] = %g, want 0", x, v)
		}
	}
}

func TestValidation(t *testing.T) {
	frame := uniformFrame(10, 10, 1.0)

	r := NewRectifier(2)
	r.XRate = -1
	if _, err := r.SumExtract([]float64{5.0}, frame); !errors.Is(err, ErrSamplingRate) {
		t.Errorf("negative rate: err = %v, want ErrSamplingRate", err)
	}

	r = NewRectifier(2)
	r.YRate = math.NaN()
	if _, err := r.Rectify([]float64{5.0}, frame); !errors.Is(err, ErrSamplingRate) {
		t.Errorf("NaN rate: err = %v, want ErrSamplingRate", err)
	}

	r = NewRectifier(2)
	flat := uniformFrame(5, 5, 1.0)
	if _, err := r.OptimalExtract([]float64{5.0}, frame, flat); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("shape mismatch: err = %v, want ErrShapeMismatch", err)
	}
}

// TestSamplingRates checks the output dimensions and flux conservation
// under non-unit sampling rates.
func TestSamplingRates(t *testing.T) {
	t.Run("x", func(t *testing.T) {
		frame := mat.NewDense(10, 10, nil)
		frame.Set(5, 4, 1.0)

		r := NewRectifier(3)
		r.XRate = 2
		spec, err := r.SumExtract([]float64{4.5}, frame)
		if err != nil {
			t.Fatal(err)
		}
		if len(spec.Flux) != 20 {
			t.Fatalf("len(Flux) = %d, want 20", len(spec.Flux))
		}
		var total float64
		for _, v := range spec.Flux {
			total += v
		}
		if math.Abs(total-1.0) > 1e-12 {
			t.Errorf("total flux = %g, want 1", total)
		}
	})

	t.Run("y", func(t *testing.T) {
		frame := mat.NewDense(10, 10, nil)
		frame.Set(4, 2, 1.0)

		// centre line at y=4.5; with YRate=2 each normal step spans half
		// an input pixel, so the clamped band covers y in [4,5] exactly.
		r := NewRectifier(3)
		r.YRate = 2
		band, err := r.Rectify([]float64{4.5}, frame)
		if err != nil {
			t.Fatal(err)
		}
		if band.OutDimY != 20 {
			t.Errorf("OutDimY = %d, want 20", band.OutDimY)
		}
		if band.Upper != 1 || band.Lower != 1 {
			t.Fatalf("width = (%d,%d), want (1,1)", band.Upper, band.Lower)
		}

		var total float64
		rows, _ := band.Data.Dims()
		for y := range rows {
			total += band.Data.At(y, 2)
		}
		if math.Abs(total-1.0) > 1e-12 {
			t.Errorf("flux in column 2 = %g, want 1", total)
		}
	})
}

// TestOffDetectorTrace checks that a centre line lying outside the
// detector clamps the affected band half to zero rows instead of failing,
// and that a band too narrow for a single output row stays usable.
func TestOffDetectorTrace(t *testing.T) {
	frame := uniformFrame(10, 10, 1.0)
	r := NewRectifier(3)

	// centre below the detector: no lower half, no flux on the grid
	band, err := r.Rectify([]float64{-5.0}, frame)
	if err != nil {
		t.Fatal(err)
	}
	if band.Lower != 0 {
		t.Errorf("Lower = %d, want 0", band.Lower)
	}
	for x, v := range Collapse(band).Flux {
		if v != 0 {
			t.Errorf("Flux[%d] = %g, want 0", x, v)
		}
	}

	// centre above the detector: no upper half
	spec, err := r.SumExtract([]float64{15.0}, frame)
	if err != nil {
		t.Fatal(err)
	}
	for x, v := range spec.Flux {
		if v != 0 {
			t.Errorf("Flux[%d] = %g, want 0", x, v)
		}
	}

	// half-width below one output row: the band has no rows at all
	band, err = NewRectifier(0.5).Rectify([]float64{5.0}, frame)
	if err != nil {
		t.Fatal(err)
	}
	if band.Data != nil || band.Upper != 0 || band.Lower != 0 {
		t.Errorf("zero-height band: got width (%d,%d), Data %v",
			band.Upper, band.Lower, band.Data)
	}
	for x, v := range Collapse(band).Flux {
		if v != 0 {
			t.Errorf("Flux[%d] = %g, want 0", x, v)
		}
	}
}

// TestCurvedConservation runs a genuinely tilted trace over a frame with a
// single interior pixel and checks conservation with sub-pixel geometry in
// both axes.
func TestCurvedConservation(t *testing.T) {
	frame := mat.NewDense(20, 20, nil)
	frame.Set(10, 9, 1.5)

	r := NewRectifier(6)
	spec, err := r.SumExtract([]float64{8.0, 0.2}, frame)
	if err != nil {
		t.Fatal(err)
	}

	var total float64
	for _, v := range spec.Flux {
		total += v
	}
	if math.Abs(total-1.5) > 1e-10 {
		t.Errorf("total flux = %g, want 1.5", total)
	}
}
