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

// clipper intersects cell quadrilaterals with unit pixel squares using the
// Sutherland–Hodgman algorithm. The two working buffers are reused across
// calls; they grow as needed but never shrink.
type clipper struct {
	work []vec.Vec2
	out  []vec.Vec2
}

// clipPixel clips the subject polygon against the unit square of the input
// pixel at (px, py). The returned slice may be empty and is only valid
// until the next call.
//
// The square's corners are traversed in the fixed order (x,y), (x,y+1),
// (x+1,y+1), (x+1,y). The inside/outside test in clipEdge is tied to this
// winding; changing the order silently flips the sign convention.
func (c *clipper) clipPixel(subject []vec.Vec2, px, py int) ([]vec.Vec2, error) {
	x0, y0 := float64(px), float64(py)
	x1, y1 := x0+1, y0+1
	square := [4]vec.Vec2{
		{X: x0, Y: y0},
		{X: x0, Y: y1},
		{X: x1, Y: y1},
		{X: x1, Y: y0},
	}

	cur := append(c.work[:0], subject...)
	next := c.out[:0]
	for i := range square {
		var err error
		next, err = clipEdge(next[:0], cur, square[i], square[(i+1)%len(square)])
		if err != nil {
			return nil, err
		}
		cur, next = next, cur
	}
	c.work, c.out = cur, next

	return dedupConsecutive(cur), nil
}

// clipEdge clips poly against the single directed edge a→b, appending the
// surviving vertices to dst. A vertex v is inside when the cross product
// (b−a)×(v−a) is negative; a zero cross product means v lies exactly on
// the edge, in which case the vertex itself stands in for the intersection
// point.
func clipEdge(dst, poly []vec.Vec2, a, b vec.Vec2) ([]vec.Vec2, error) {
	n := len(poly)
	for i := range n {
		k := (i + 1) % n
		p, q := poly[i], poly[k]
		pPos := (b.X-a.X)*(p.Y-a.Y) - (b.Y-a.Y)*(p.X-a.X)
		qPos := (b.X-a.X)*(q.Y-a.Y) - (b.Y-a.Y)*(q.X-a.X)

		switch {
		case pPos < 0 && qPos < 0:
			// both inside
			dst = append(dst, q)
		case pPos >= 0 && qPos < 0:
			// entering: intersection point, then the inside vertex
			if pPos == 0 {
				dst = append(dst, p)
			} else {
				ip, ok := lineIntersect(a, b, p, q)
				if !ok {
					return dst, ErrDegenerateGeometry
				}
				dst = append(dst, ip)
			}
			dst = append(dst, q)
		case pPos < 0 && qPos >= 0:
			// leaving: intersection point only
			if qPos == 0 {
				dst = append(dst, q)
			} else {
				ip, ok := lineIntersect(a, b, p, q)
				if !ok {
					return dst, ErrDegenerateGeometry
				}
				dst = append(dst, ip)
			}
		}
		// both outside: nothing
	}
	return dst, nil
}

// dedupConsecutive removes consecutive duplicate vertices in place,
// including the wraparound pair. Comparison is exact equality: duplicates
// arise from clipping at shared vertices and carry identical bit patterns.
func dedupConsecutive(pts []vec.Vec2) []vec.Vec2 {
	if len(pts) < 2 {
		return pts
	}
	out := pts[:1]
	for _, p := range pts[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

// polygonArea returns the area of a simple polygon, computed with the
// shoelace formula. Degenerate inputs with fewer than 3 vertices have zero
// area; callers treat this as "no overlap", not as an error.
func polygonArea(pts []vec.Vec2) float64 {
	if len(pts) < 3 {
		return 0
	}
	var sum float64
	for i := range pts {
		k := (i + 1) % len(pts)
		sum += pts[i].X*pts[k].Y - pts[k].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}
