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
	"slices"

	"seehuhn.de/go/geom/vec"
)

// winding selects the corner order used to assemble a cell quadrilateral.
// The two halves of the band are built by stepping in opposite directions
// along the normal, so their corner rows wind in mirrored order. The
// clipper's inside test assumes this pairing; assembling a cell with the
// wrong winding flips the sign of the classification.
type winding int

const (
	windUpper winding = iota // rows step in the +normal direction
	windLower                // rows step in the −normal direction
)

// cornerGrid holds the boundary corners of one half of the band, one row
// per normal step. Row 0 is the centre line. The grid is built once per
// rectification pass and read-only afterwards; its backing array is a
// single flat slice reused across passes.
type cornerGrid struct {
	cols int
	wind winding
	pts  []vec.Vec2 // row-major, len = rows·cols
}

// build fills the grid with width+1 rows: the centre line followed by
// width rows, each displaced from the previous one by one normal step in
// the half's direction.
func (g *cornerGrid) build(centers, normals []vec.Vec2, width int, wind winding) {
	g.cols = len(centers)
	g.wind = wind

	n := (width + 1) * g.cols
	g.pts = slices.Grow(g.pts[:0], n)[:n]
	copy(g.pts[:g.cols], centers)

	dir := 1.0
	if wind == windLower {
		dir = -1.0
	}
	for k := 1; k <= width; k++ {
		prev := g.pts[(k-1)*g.cols : k*g.cols]
		row := g.pts[k*g.cols : (k+1)*g.cols]
		for x := range row {
			row[x] = prev[x].Add(normals[x].Mul(dir))
		}
	}
}

// quad returns the quadrilateral of the output cell between rows k and k+1
// and columns x and x+1, with corners ordered according to the grid's
// winding.
func (g *cornerGrid) quad(k, x int) [4]vec.Vec2 {
	r0 := g.pts[k*g.cols : (k+1)*g.cols]
	r1 := g.pts[(k+1)*g.cols : (k+2)*g.cols]
	if g.wind == windUpper {
		return [4]vec.Vec2{r0[x], r1[x], r1[x+1], r0[x+1]}
	}
	return [4]vec.Vec2{r1[x], r0[x], r0[x+1], r1[x+1]}
}
