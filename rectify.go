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

// Package rectify straightens curved spectral orders on echelle detector
// images using exact, area-weighted resampling.
//
// A spectral order is a sub-pixel-wide band whose centre line follows a
// polynomial in detector coordinates. The band is mapped onto a straight
// output grid without losing flux to aliasing: every output pixel receives
// exactly the fraction of each input pixel's value that geometrically
// overlaps it, computed by clipping the output cell's quadrilateral
// against each candidate pixel's unit square.
package rectify

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
	"seehuhn.de/go/geom/vec"
)

// Errors reported by the extraction entry points.
var (
	// ErrShapeMismatch indicates that two frames which must share a shape
	// have different dimensions.
	ErrShapeMismatch = errors.New("rectify: frame dimensions differ")

	// ErrSamplingRate indicates a sampling rate that is not positive.
	ErrSamplingRate = errors.New("rectify: sampling rate must be positive")

	// ErrZeroWeight indicates a flat column whose sum is zero where the
	// science frame carries flux, leaving the extraction weights undefined.
	ErrZeroWeight = errors.New("rectify: flat column sums to zero")

	// ErrDegenerateGeometry indicates collinear clip geometry that left a
	// required line intersection undefined.
	ErrDegenerateGeometry = errors.New("rectify: degenerate clip geometry")
)

// Rectifier straightens and extracts spectral orders. Create one instance
// and reuse it for multiple orders; internal buffers grow as needed but
// never shrink.
//
// A Rectifier is not safe for concurrent use. Separate instances are
// fully independent and may run in parallel.
type Rectifier struct {
	// HalfWidth is the half-width of the extracted band around the centre
	// line, in input pixels. The band is clamped to the detector edges.
	HalfWidth float64

	// XRate and YRate map output-grid spacing to input-grid spacing per
	// axis: the output dimensions are the input dimensions multiplied by
	// the rate. Both must be positive. NewRectifier sets them to 1.
	XRate, YRate float64

	// Internal buffers (reused across calls)
	centers []vec.Vec2 // centre-line points, one per output column
	normals []vec.Vec2 // scaled normals, one per output column
	upper   cornerGrid
	lower   cornerGrid
	clip    clipper
}

// NewRectifier returns a Rectifier for the given band half-width, with
// unit sampling rates.
func NewRectifier(halfWidth float64) *Rectifier {
	return &Rectifier{
		HalfWidth: halfWidth,
		XRate:     1,
		YRate:     1,
	}
}

// Band is a straightened 2-D image of one spectral order. Row 0 is the
// bottom of the band; row Lower sits on the centre line.
type Band struct {
	YCenter int // output-grid row of the band centre
	Upper   int // rows above the centre line
	Lower   int // rows below the centre line
	OutDimY int // full output-grid height (input height · YRate)
	OutDimX int // output-grid width (input width · XRate)

	// Data holds the rectified flux, (Upper+Lower) × OutDimX.
	// It is nil if the clamped band has zero height.
	Data *mat.Dense
}

// Spectrum is a 1-D extracted spectrum, one flux value per output column.
type Spectrum struct {
	YCenter int
	Flux    []float64
}

// bandGeometry is the per-pass output of the build phase.
type bandGeometry struct {
	outX, outY   int
	vMid         int
	upper, lower int // band extent in output rows, clamped to the grid
}

// Rectify straightens the band around the trace described by coeffs
// (lowest-order term first) and returns it as a 2-D image, one row per
// normal step across the band.
func (r *Rectifier) Rectify(coeffs []float64, frame *mat.Dense) (*Band, error) {
	if err := r.validate(frame, nil); err != nil {
		return nil, err
	}
	return r.rectify(NewTrace(coeffs), frame)
}

// SumExtract straightens the band and collapses it into a 1-D spectrum in
// a single pass, adding every cell's flux directly into its column total.
func (r *Rectifier) SumExtract(coeffs []float64, frame *mat.Dense) (*Spectrum, error) {
	if err := r.validate(frame, nil); err != nil {
		return nil, err
	}

	g := r.buildGeometry(NewTrace(coeffs), frame)
	flux := make([]float64, g.outX)
	if err := r.fill(g, frame, nil, flux); err != nil {
		return nil, err
	}
	return &Spectrum{YCenter: g.vMid, Flux: flux}, nil
}

// OptimalExtract rectifies both the science frame and a flat reference of
// identical shape, then collapses each science column using weights
// proportional to the flat. This is a column-normalised weighted sum
// approximating noise-optimal extraction without a full noise model.
func (r *Rectifier) OptimalExtract(coeffs []float64, frame, flat *mat.Dense) (*Spectrum, error) {
	if err := r.validate(frame, flat); err != nil {
		return nil, err
	}

	trace := NewTrace(coeffs)
	sci, err := r.rectify(trace, frame)
	if err != nil {
		return nil, err
	}
	ref, err := r.rectify(trace, flat)
	if err != nil {
		return nil, err
	}
	return weightedCollapse(sci, ref)
}

// rectify runs one image-mode pass. Validation has already happened.
func (r *Rectifier) rectify(trace *Trace, frame *mat.Dense) (*Band, error) {
	g := r.buildGeometry(trace, frame)

	var out *mat.Dense
	if g.upper+g.lower > 0 {
		out = mat.NewDense(g.upper+g.lower, g.outX, nil)
		if err := r.fill(g, frame, out, nil); err != nil {
			return nil, err
		}
	}
	return &Band{
		YCenter: g.vMid,
		Upper:   g.upper,
		Lower:   g.lower,
		OutDimY: g.outY,
		OutDimX: g.outX,
		Data:    out,
	}, nil
}

// validate rejects bad sampling rates and, if flat is non-nil, a shape
// mismatch between the two frames. It runs before any geometry work.
func (r *Rectifier) validate(frame, flat *mat.Dense) error {
	if !(r.XRate > 0) || !(r.YRate > 0) {
		return fmt.Errorf("%w: got (%g, %g)", ErrSamplingRate, r.XRate, r.YRate)
	}
	if flat != nil {
		dy, dx := frame.Dims()
		fy, fx := flat.Dims()
		if fy != dy || fx != dx {
			return fmt.Errorf("%w: science %d×%d, flat %d×%d",
				ErrShapeMismatch, dy, dx, fy, fx)
		}
	}
	return nil
}

// buildGeometry computes the centre line and scaled normal for every
// output column, locates the band's vertical centre on the output grid,
// clamps the band extent to the grid edges, and builds the corner grids
// for both halves of the band.
func (r *Rectifier) buildGeometry(trace *Trace, frame *mat.Dense) bandGeometry {
	inY, inX := frame.Dims()
	outX := int(float64(inX) * r.XRate)
	outY := int(float64(inY) * r.YRate)

	// Both ends of every column are corners, hence outX+1 entries.
	n := outX + 1
	r.centers = slices.Grow(r.centers[:0], n)[:n]
	r.normals = slices.Grow(r.normals[:0], n)[:n]

	yMin, yMax := math.Inf(1), math.Inf(-1)
	for ox := range n {
		x := inputPos(float64(ox), r.XRate)
		y := trace.At(x)
		r.centers[ox] = vec.Vec2{X: x, Y: y}
		r.normals[ox] = trace.Normal(x, r.YRate)
		yMin = min(yMin, y)
		yMax = max(yMax, y)
	}

	vMid := outputPos(math.Floor((yMax+yMin)/2), r.YRate)
	width := int(inputPos(r.HalfWidth, r.YRate))

	// A centre line beyond the detector edge leaves a negative distance
	// to that edge; the affected half clamps to zero rows.
	g := bandGeometry{
		outX:  outX,
		outY:  outY,
		vMid:  vMid,
		upper: max(0, min(width, outY-vMid)),
		lower: max(0, min(width, vMid)),
	}
	r.upper.build(r.centers, r.normals, g.upper, windUpper)
	r.lower.build(r.centers, r.normals, g.lower, windLower)
	return g
}

// fill runs the fill phase over every output column. Exactly one of out
// (image mode: each cell lands in its own row) and sum (sum mode: cells
// add into their column total) is non-nil.
//
// The last corner column has no neighbour to its right and bounds the
// final cell rather than starting one, so the loop stops at outX-1.
func (r *Rectifier) fill(g bandGeometry, frame *mat.Dense, out *mat.Dense, sum []float64) error {
	for ox := 0; ox < g.outX; ox++ {
		for k := 0; k < g.upper; k++ {
			flux, err := r.cellFlux(r.upper.quad(k, ox), frame)
			if err != nil {
				return fmt.Errorf("column %d: %w", ox, err)
			}
			if sum != nil {
				sum[ox] += flux
			} else {
				out.Set(g.lower+k, ox, flux)
			}
		}
		for k := 0; k < g.lower; k++ {
			flux, err := r.cellFlux(r.lower.quad(k, ox), frame)
			if err != nil {
				return fmt.Errorf("column %d: %w", ox, err)
			}
			if sum != nil {
				sum[ox] += flux
			} else {
				out.Set(g.lower-k-1, ox, flux)
			}
		}
	}
	return nil
}
