package geometry

import "math"

// normalizeLon wraps a longitude value into [-180, 180).
func normalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Wrap normalizes p's longitude into [-180, 180).
func (p Point) Wrap() Point {
	return Point{X: normalizeLon(p.X), Y: p.Y}
}

// unwrapLongitudes returns, for each point after the first, the longitude shifted by
// whole multiples of 360 so that consecutive points never differ by more
// than 180 degrees — the "continuous" longitude representation used to
// detect and later split dateline crossings.
func unwrapLongitudes(points []Point) []float64 {
	lons := make([]float64, len(points))
	if len(points) == 0 {
		return lons
	}
	lons[0] = normalizeLon(points[0].X)
	for i := 1; i < len(points); i++ {
		lon := normalizeLon(points[i].X)
		prev := lons[i-1]
		for lon-prev > 180 {
			lon -= 360
		}
		for lon-prev < -180 {
			lon += 360
		}
		lons[i] = lon
	}
	return lons
}

// Wrap splits ls at every dateline crossing, inserting a synthetic vertex
// at longitude ±180 with linearly interpolated latitude wherever the
// continuous (unwrapped) longitude of consecutive points crosses a
// multiple of 180 degrees, per the original implementation's line-string
// wrapping contract.
func (ls LineString) Wrap() LineString {
	if len(ls) < 2 {
		out := make(LineString, len(ls))
		for i, p := range ls {
			out[i] = p.Wrap()
		}
		return out
	}

	lons := unwrapLongitudes(ls)
	out := LineString{{X: lons[0], Y: ls[0].Y}}
	for i := 1; i < len(ls); i++ {
		prevLon, curLon := lons[i-1], lons[i]
		prevLat, curLat := ls[i-1].Y, ls[i].Y

		for {
			var boundary float64
			if curLon > prevLon {
				boundary = math.Ceil((prevLon+1e-9)/360-0.5) * 360 + 180
			} else if curLon < prevLon {
				boundary = math.Floor((prevLon-1e-9)/360+0.5)*360 - 180
			} else {
				break
			}
			crossesForward := curLon > prevLon && boundary > prevLon && boundary < curLon
			crossesBackward := curLon < prevLon && boundary < prevLon && boundary > curLon
			if !crossesForward && !crossesBackward {
				break
			}
			frac := (boundary - prevLon) / (curLon - prevLon)
			lat := prevLat + frac*(curLat-prevLat)
			out = append(out, Point{X: boundary, Y: lat})
			prevLon, prevLat = boundary, lat
		}
		out = append(out, Point{X: curLon, Y: curLat})
	}

	for i := range out {
		out[i].X = normalizeLon(out[i].X)
	}
	return out
}

// Wrap applies LineString.Wrap() to the ring's closed point sequence.
func (r LinearRing) Wrap() LinearRing {
	if len(r) == 0 {
		return r
	}
	closed := append(append(LineString{}, r...), r[0])
	wrapped := closed.Wrap()
	if len(wrapped) > 0 && wrapped[len(wrapped)-1] == wrapped[0] {
		wrapped = wrapped[:len(wrapped)-1]
	}
	return LinearRing(wrapped)
}

// Wrap splits the outer ring at the dateline and, if the outer ring's
// winding indicates the polygon covers a pole, inserts polar closing
// edges at ±180 longitude. A polygon with interior (hole) rings keeps
// them: if its outer ring does not cross the dateline every ring is
// wrapped on its own, and if it does the polygon is returned unmodified
// (holes plus dateline splitting are not supported). Pole coverage is
// not checked for polygons with holes.
func (poly Polygon) Wrap() Polygon {
	if len(poly) == 0 {
		return poly
	}
	if len(poly) > 1 {
		// Holes + dateline-split outer ring is an unsupported configuration;
		// return unchanged, matching upstream's bail-out behavior.
		crosses := false
		lons := unwrapLongitudes(append(append(LineString{}, poly[0]...), poly[0][0]))
		for i := 1; i < len(lons); i++ {
			if math.Abs(lons[i]-lons[i-1]) > 1e-9 && math.Floor((lons[i-1]+180)/360) != math.Floor((lons[i]+180)/360) {
				crosses = true
				break
			}
		}
		if crosses {
			return poly
		}
		wrapped := make(Polygon, len(poly))
		for i, ring := range poly {
			wrapped[i] = ring.Wrap()
		}
		return wrapped
	}

	outer := poly[0].Wrap()
	coversPole := IsClockwise(poly[0])
	if !coversPole {
		return Polygon{outer}
	}

	// The outer ring winds clockwise: the polygon covers a pole. Close the
	// ring with edges running along +180/-180 down to the pole and back,
	// so the ring remains a simple (non-self-intersecting) planar polygon.
	pole := 90.0
	if averageLatitude(poly[0]) < 0 {
		pole = -90.0
	}
	closing := LinearRing{}
	closing = append(closing, outer...)
	closing = append(closing, Point{X: 180, Y: pole}, Point{X: -180, Y: pole})
	return Polygon{closing}
}

func averageLatitude(ring LinearRing) float64 {
	if len(ring) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range ring {
		sum += p.Y
	}
	return sum / float64(len(ring))
}

// Wrap wraps every point independently; a MultiPoint has no dateline
// topology to preserve across elements.
func (mp MultiPoint) Wrap() MultiPoint {
	out := make(MultiPoint, len(mp))
	for i, p := range mp {
		out[i] = p.Wrap()
	}
	return out
}

// Wrap wraps every line string independently.
func (mls MultiLineString) Wrap() MultiLineString {
	out := make(MultiLineString, len(mls))
	for i, ls := range mls {
		out[i] = ls.Wrap()
	}
	return out
}

// Wrap wraps every polygon independently.
func (mp MultiPolygon) Wrap() MultiPolygon {
	out := make(MultiPolygon, len(mp))
	for i, p := range mp {
		out[i] = p.Wrap()
	}
	return out
}
