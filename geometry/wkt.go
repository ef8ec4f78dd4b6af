package geometry

import (
	"fmt"
	"strconv"
	"strings"
)

// WKT renders g as Well-Known Text.
func WKT(g Geometry) string {
	switch v := g.(type) {
	case Point:
		return "POINT(" + formatCoord(v) + ")"
	case LineString:
		return "LINESTRING(" + formatCoords(v) + ")"
	case LinearRing:
		return "LINESTRING(" + formatRing(v) + ")"
	case Polygon:
		rings := make([]string, len(v))
		for i, r := range v {
			rings[i] = "(" + formatRing(r) + ")"
		}
		return "POLYGON(" + strings.Join(rings, ",") + ")"
	case MultiPoint:
		pts := make([]string, len(v))
		for i, p := range v {
			pts[i] = "(" + formatCoord(p) + ")"
		}
		return "MULTIPOINT(" + strings.Join(pts, ",") + ")"
	case MultiLineString:
		lines := make([]string, len(v))
		for i, ls := range v {
			lines[i] = "(" + formatCoords(ls) + ")"
		}
		return "MULTILINESTRING(" + strings.Join(lines, ",") + ")"
	case MultiPolygon:
		polys := make([]string, len(v))
		for i, p := range v {
			rings := make([]string, len(p))
			for j, r := range p {
				rings[j] = "(" + formatRing(r) + ")"
			}
			polys[i] = "(" + strings.Join(rings, ",") + ")"
		}
		return "MULTIPOLYGON(" + strings.Join(polys, ",") + ")"
	default:
		return fmt.Sprintf("<unsupported geometry %T>", g)
	}
}

func formatCoord(p Point) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + " " + strconv.FormatFloat(p.Y, 'g', -1, 64)
}

func formatCoords(points []Point) string {
	parts := make([]string, len(points))
	for i, p := range points {
		parts[i] = formatCoord(p)
	}
	return strings.Join(parts, ",")
}

func formatRing(ring LinearRing) string {
	if len(ring) == 0 {
		return ""
	}
	closed := append(append([]Point{}, ring...), ring[0])
	return formatCoords(closed)
}
