package geometry

// GeoJSON renders g as a GeoJSON-shaped value (a map ready for
// json.Marshal), following the original implementation's
// as_point/as_line_string/.../as_multi_polygon coordinate-array
// factories.
func GeoJSON(g Geometry) map[string]any {
	switch v := g.(type) {
	case Point:
		return map[string]any{"type": "Point", "coordinates": []float64{v.X, v.Y}}
	case LineString:
		return map[string]any{"type": "LineString", "coordinates": coordsOf(v)}
	case LinearRing:
		return map[string]any{"type": "LineString", "coordinates": ringCoordsOf(v)}
	case Polygon:
		rings := make([][][]float64, len(v))
		for i, r := range v {
			rings[i] = ringCoordsOf(r)
		}
		return map[string]any{"type": "Polygon", "coordinates": rings}
	case MultiPoint:
		return map[string]any{"type": "MultiPoint", "coordinates": coordsOf(v)}
	case MultiLineString:
		lines := make([][][]float64, len(v))
		for i, ls := range v {
			lines[i] = coordsOf(ls)
		}
		return map[string]any{"type": "MultiLineString", "coordinates": lines}
	case MultiPolygon:
		polys := make([][][][]float64, len(v))
		for i, p := range v {
			rings := make([][][]float64, len(p))
			for j, r := range p {
				rings[j] = ringCoordsOf(r)
			}
			polys[i] = rings
		}
		return map[string]any{"type": "MultiPolygon", "coordinates": polys}
	default:
		return map[string]any{"type": "Unknown"}
	}
}

func coordsOf(points []Point) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}

func ringCoordsOf(ring LinearRing) [][]float64 {
	if len(ring) == 0 {
		return nil
	}
	closed := append(append([]Point{}, ring...), ring[0])
	return coordsOf(closed)
}
