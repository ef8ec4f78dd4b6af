package lang

import (
	"fmt"
	"strconv"

	"eve.evalgo.org/muninn/geometry"
	"eve.evalgo.org/muninn/schema"
)

// parseGeometryLiteral parses one of the WKT-style geometry literal forms
// (POINT(...), LINESTRING(...), POLYGON((...)), and their MULTI* forms)
// that the grammar allows as atoms.
func (p *Parser) parseGeometryLiteral() (Node, error) {
	tag := p.cur.Text
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.cur.Kind != TokLParen {
		return nil, fmt.Errorf("lang: expected '(' after geometry tag %s", tag)
	}

	var g geometry.Geometry
	var err error
	switch tag {
	case "POINT":
		g, err = p.parsePointGeometry()
	case "LINESTRING":
		g, err = p.parseLineStringGeometry()
	case "POLYGON":
		g, err = p.parsePolygonGeometry()
	case "MULTIPOINT":
		g, err = p.parseMultiPointGeometry()
	case "MULTILINESTRING":
		g, err = p.parseMultiLineStringGeometry()
	case "MULTIPOLYGON":
		g, err = p.parseMultiPolygonGeometry()
	default:
		return nil, fmt.Errorf("lang: unknown geometry tag %s", tag)
	}
	if err != nil {
		return nil, err
	}
	return newLiteral(schema.KindGeometry, g), nil
}

func (p *Parser) parseSignedNumber() (float64, error) {
	neg := false
	if p.cur.Kind == TokOperator && (p.cur.Text == "-" || p.cur.Text == "+") {
		neg = p.cur.Text == "-"
		if err := p.advance(); err != nil {
			return 0, err
		}
	}
	if p.cur.Kind != TokInteger && p.cur.Kind != TokReal {
		return 0, fmt.Errorf("lang: expected coordinate number")
	}
	v, err := strconv.ParseFloat(p.cur.Text, 64)
	if err != nil {
		return 0, err
	}
	if err := p.advance(); err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *Parser) parsePointCoord() (geometry.Point, error) {
	x, err := p.parseSignedNumber()
	if err != nil {
		return geometry.Point{}, err
	}
	y, err := p.parseSignedNumber()
	if err != nil {
		return geometry.Point{}, err
	}
	return geometry.Point{X: x, Y: y}, nil
}

func (p *Parser) parsePointGeometry() (geometry.Point, error) {
	if err := p.advance(); err != nil { // '('
		return geometry.Point{}, err
	}
	pt, err := p.parsePointCoord()
	if err != nil {
		return geometry.Point{}, err
	}
	if p.cur.Kind != TokRParen {
		return geometry.Point{}, fmt.Errorf("lang: expected ')' closing POINT")
	}
	return pt, p.advance()
}

func (p *Parser) parsePointSequence() ([]geometry.Point, error) {
	if err := p.advance(); err != nil { // '('
		return nil, err
	}
	var points []geometry.Point
	for {
		pt, err := p.parsePointCoord()
		if err != nil {
			return nil, err
		}
		points = append(points, pt)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, fmt.Errorf("lang: expected ')' closing coordinate sequence")
	}
	return points, p.advance()
}

func (p *Parser) parseLineStringGeometry() (geometry.LineString, error) {
	points, err := p.parsePointSequence()
	if err != nil {
		return nil, err
	}
	return geometry.LineString(points), nil
}

func (p *Parser) parseRing() (geometry.LinearRing, error) {
	points, err := p.parsePointSequence()
	if err != nil {
		return nil, err
	}
	if len(points) > 0 && points[len(points)-1] == points[0] {
		points = points[:len(points)-1]
	}
	return geometry.LinearRing(points), nil
}

func (p *Parser) parsePolygonGeometry() (geometry.Polygon, error) {
	if err := p.advance(); err != nil { // outer '('
		return nil, err
	}
	var rings geometry.Polygon
	for {
		ring, err := p.parseRing()
		if err != nil {
			return nil, err
		}
		rings = append(rings, ring)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, fmt.Errorf("lang: expected ')' closing POLYGON")
	}
	return rings, p.advance()
}

func (p *Parser) parseMultiPointGeometry() (geometry.MultiPoint, error) {
	points, err := p.parsePointSequence()
	if err != nil {
		return nil, err
	}
	return geometry.MultiPoint(points), nil
}

func (p *Parser) parseMultiLineStringGeometry() (geometry.MultiLineString, error) {
	if err := p.advance(); err != nil { // outer '('
		return nil, err
	}
	var lines geometry.MultiLineString
	for {
		line, err := p.parsePointSequence()
		if err != nil {
			return nil, err
		}
		lines = append(lines, geometry.LineString(line))
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, fmt.Errorf("lang: expected ')' closing MULTILINESTRING")
	}
	return lines, p.advance()
}

func (p *Parser) parseMultiPolygonGeometry() (geometry.MultiPolygon, error) {
	if err := p.advance(); err != nil { // outer '('
		return nil, err
	}
	var polys geometry.MultiPolygon
	for {
		poly, err := p.parsePolygonGeometry()
		if err != nil {
			return nil, err
		}
		polys = append(polys, poly)
		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.cur.Kind != TokRParen {
		return nil, fmt.Errorf("lang: expected ')' closing MULTIPOLYGON")
	}
	return polys, p.advance()
}
