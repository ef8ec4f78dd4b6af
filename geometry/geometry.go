// Package geometry implements the WGS84 point/line/polygon model used by
// the footprint field and by geometry literals in the expression
// language: pure data types, dateline wrapping, and WKT/GeoJSON/EWKB
// codecs. Coordinates are (x=longitude, y=latitude), SRID 4326.
package geometry

// Geometry is implemented by every concrete geometry value in this
// package. It carries no behavior beyond identifying the concrete type to
// visitors (the EWKB encoder, WKT/GeoJSON writers).
type Geometry interface {
	isGeometry()
}

// Point is a single (longitude, latitude) coordinate pair.
type Point struct {
	X, Y float64
}

func (Point) isGeometry() {}

// LineString is an ordered, open sequence of points.
type LineString []Point

func (LineString) isGeometry() {}

// LinearRing is an implicitly closed sequence of points (the first point
// is not repeated in memory; codecs close the ring on the wire).
type LinearRing []Point

func (LinearRing) isGeometry() {}

// Polygon is an outer ring followed by zero or more interior (hole)
// rings.
type Polygon []LinearRing

func (Polygon) isGeometry() {}

// MultiPoint is an unordered collection of points.
type MultiPoint []Point

func (MultiPoint) isGeometry() {}

// MultiLineString is a collection of line strings.
type MultiLineString []LineString

func (MultiLineString) isGeometry() {}

// MultiPolygon is a collection of polygons.
type MultiPolygon []Polygon

func (MultiPolygon) isGeometry() {}

// polygonRotation returns the signed shoelace sum of ring: positive for
// clockwise, negative for counter-clockwise. Used to determine polygon
// orientation (a clockwise outer ring implies the complement region, per
// the original implementation's convention).
func polygonRotation(ring LinearRing) float64 {
	if len(ring) < 3 {
		return 0
	}
	sum := 0.0
	n := len(ring)
	for i := 0; i < n; i++ {
		p0 := ring[i]
		p1 := ring[(i+1)%n]
		sum += (p1.X - p0.X) * (p1.Y + p0.Y)
	}
	return sum
}

// IsClockwise reports whether ring is wound clockwise.
func IsClockwise(ring LinearRing) bool {
	return polygonRotation(ring) > 0
}
