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
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Collapse reduces a rectified band to a 1-D spectrum by summing each
// column over all rows.
func Collapse(b *Band) *Spectrum {
	flux := make([]float64, b.OutDimX)
	if b.Data != nil {
		col := make([]float64, b.Upper+b.Lower)
		for x := range flux {
			mat.Col(col, x, b.Data)
			flux[x] = floats.Sum(col)
		}
	}
	return &Spectrum{YCenter: b.YCenter, Flux: flux}
}

// weightedCollapse reduces a rectified science band to one row, weighting
// each cell by the flat reference's share of its column sum. A column
// whose flat sum is zero is an error if the science column carries flux,
// and contributes zero otherwise.
func weightedCollapse(sci, ref *Band) (*Spectrum, error) {
	flux := make([]float64, sci.OutDimX)
	height := sci.Upper + sci.Lower
	if height == 0 {
		return &Spectrum{YCenter: sci.YCenter, Flux: flux}, nil
	}

	sciCol := make([]float64, height)
	refCol := make([]float64, height)
	for x := range flux {
		mat.Col(sciCol, x, sci.Data)
		mat.Col(refCol, x, ref.Data)

		wSum := floats.Sum(refCol)
		if wSum == 0 {
			if floats.Sum(sciCol) != 0 {
				return nil, fmt.Errorf("%w (column %d)", ErrZeroWeight, x)
			}
			continue
		}
		var total float64
		for y := range height {
			total += sciCol[y] * refCol[y] / wSum
		}
		flux[x] = total
	}
	return &Spectrum{YCenter: sci.YCenter, Flux: flux}, nil
}

// CopyInto writes the band's rows into dst so that the band's centre line
// lands on row dstCenter. dst must be large enough to hold the band at
// that position.
func (b *Band) CopyInto(dst *mat.Dense, dstCenter int) error {
	if b.Data == nil {
		return nil
	}
	height, width := b.Data.Dims()
	dy, dx := dst.Dims()
	base := dstCenter - b.Lower
	if base < 0 || base+height > dy || width > dx {
		return fmt.Errorf("%w: band %d×%d centred on row %d does not fit in %d×%d",
			ErrShapeMismatch, height, width, dstCenter, dy, dx)
	}
	for y := range height {
		for x := range width {
			dst.Set(base+y, x, b.Data.At(y, x))
		}
	}
	return nil
}

// VerticalRange returns the first and last rows of frame that contain a
// non-zero pixel. ok is false when the frame is entirely zero.
func VerticalRange(frame *mat.Dense) (lo, hi int, ok bool) {
	ydim, xdim := frame.Dims()
	lo, hi = -1, -1
	for y := range ydim {
		for x := range xdim {
			if frame.At(y, x) != 0 {
				if lo < 0 {
					lo = y
				}
				hi = y
				break
			}
		}
	}
	return lo, hi, lo >= 0
}

// VerticalWidth scans column x of frame up and down from the seed rows
// (y0, y1) until a zero pixel or the frame edge is reached, and returns
// the distances travelled in each direction. The seed must lie inside the
// frame.
func VerticalWidth(frame *mat.Dense, x int, y0, y1 float64) (up, down int) {
	ydim, _ := frame.Dims()
	start := int(math.Floor(min(y0, y1)))

	up = ydim - 1 - start
	down = start
	for y := start; y < ydim; y++ {
		if frame.At(y, x) == 0 {
			up = y - start
			break
		}
	}
	for y := start - 1; y > 0; y-- {
		if frame.At(y, x) == 0 {
			down = start - y
			break
		}
	}
	return up, down
}
