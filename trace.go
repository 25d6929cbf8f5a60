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
	"math"

	"seehuhn.de/go/geom/vec"
)

// Trace describes the centre line of a spectral order on the detector as a
// polynomial y(x) = c0 + c1·x + … + cn·xⁿ in input-pixel coordinates.
// A Trace is immutable after construction.
type Trace struct {
	coeffs []float64
}

// NewTrace returns a Trace for the given coefficients, lowest-order term
// first. The coefficient slice is copied.
func NewTrace(coeffs []float64) *Trace {
	c := make([]float64, len(coeffs))
	copy(c, coeffs)
	return &Trace{coeffs: c}
}

// At evaluates the centre line at x.
func (t *Trace) At(x float64) float64 {
	var y float64
	for i := len(t.coeffs) - 1; i >= 0; i-- {
		y = y*x + t.coeffs[i]
	}
	return y
}

// Slope evaluates the first derivative of the centre line at x.
func (t *Trace) Slope(x float64) float64 {
	var d float64
	for i := len(t.coeffs) - 1; i >= 1; i-- {
		d = d*x + float64(i)*t.coeffs[i]
	}
	return d
}

// Normal returns the normal vector of the centre line at x, scaled so that
// one step along it spans one output row: the magnitude is
// 1/(yRate·sqrt(slope²+1)).
func (t *Trace) Normal(x, yRate float64) vec.Vec2 {
	s := t.Slope(x)
	scale := 1 / (yRate * math.Sqrt(s*s+1))
	return vec.Vec2{X: -s * scale, Y: scale}
}

// inputPos maps an output-grid position to input-pixel coordinates.
func inputPos(outputPos, rate float64) float64 {
	return outputPos / rate
}

// outputPos maps an input-pixel position to an output-grid index. The
// floor truncation makes this a one-way mapping: inputPos(outputPos(p))
// is not in general p.
func outputPos(inputPos, rate float64) int {
	return int(math.Floor(inputPos * rate))
}

// lineIntersect returns the intersection of the infinite lines through
// (p1,p2) and (p3,p4). It reports false if the lines are parallel and the
// intersection is undefined.
func lineIntersect(p1, p2, p3, p4 vec.Vec2) (vec.Vec2, bool) {
	den := (p1.X-p2.X)*(p3.Y-p4.Y) - (p3.X-p4.X)*(p1.Y-p2.Y)
	if den == 0 {
		return vec.Vec2{}, false
	}
	a := p1.X*p2.Y - p2.X*p1.Y
	b := p3.X*p4.Y - p4.X*p3.Y
	return vec.Vec2{
		X: (a*(p3.X-p4.X) - (p1.X-p2.X)*b) / den,
		Y: (a*(p3.Y-p4.Y) - (p1.Y-p2.Y)*b) / den,
	}, true
}
