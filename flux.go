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

	"gonum.org/v1/gonum/mat"
	"seehuhn.de/go/geom/rect"
	"seehuhn.de/go/geom/vec"
)

// cellFlux computes the area-weighted flux of one output cell: the sum,
// over every input pixel overlapping the cell's quadrilateral, of the
// overlap area times the pixel value. Pixels with an exactly zero value
// carry no flux and are skipped without clipping.
//
// Summing cellFlux over an output grid that fully tiles a region of the
// input returns each pixel's value exactly once, since the overlap
// fractions of a pixel against the tiling sum to 1.
func (r *Rectifier) cellFlux(quad [4]vec.Vec2, frame *mat.Dense) (float64, error) {
	ydim, xdim := frame.Dims()

	bbox := rect.Rect{
		LLx: quad[0].X, LLy: quad[0].Y,
		URx: quad[0].X, URy: quad[0].Y,
	}
	for _, p := range quad[1:] {
		bbox.LLx = min(bbox.LLx, p.X)
		bbox.URx = max(bbox.URx, p.X)
		bbox.LLy = min(bbox.LLy, p.Y)
		bbox.URy = max(bbox.URy, p.Y)
	}

	xLo := max(0, int(math.Floor(bbox.LLx)))
	xHi := min(xdim, int(math.Ceil(bbox.URx)))
	yLo := max(0, int(math.Floor(bbox.LLy)))
	yHi := min(ydim, int(math.Ceil(bbox.URy)))

	var flux float64
	for x := xLo; x < xHi; x++ {
		for y := yLo; y < yHi; y++ {
			v := frame.At(y, x)
			if v == 0 {
				continue
			}
			overlap, err := r.clip.clipPixel(quad[:], x, y)
			if err != nil {
				return 0, err
			}
			flux += polygonArea(overlap) * v
		}
	}
	return flux, nil
}
