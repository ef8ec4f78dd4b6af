package geometry

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EWKB geometry type codes, matching the original implementation's
// GeometryType enum.
const (
	ewkbGeometry = iota
	ewkbPoint
	ewkbLineString
	ewkbPolygon
	ewkbMultiPoint
	ewkbMultiLineString
	ewkbMultiPolygon
)

// sridFlag is OR'd into the EWKB type code to signal a trailing SRID,
// matching PostGIS's EWKB extension.
const sridFlag = 0x20000000

// SRID is the only spatial reference this package supports on decode.
const SRID = 4326

// EncodeEWKB serializes g as little-endian EWKB tagged with SRID 4326.
func EncodeEWKB(g Geometry) ([]byte, error) {
	e := &ewkbEncoder{order: binary.LittleEndian, endiannessByte: 1}
	if err := e.encode(g, true, true); err != nil {
		return nil, err
	}
	return e.buf, nil
}

type ewkbEncoder struct {
	order          binary.ByteOrder
	endiannessByte byte
	buf            []byte
}

func (e *ewkbEncoder) putByte(b byte) { e.buf = append(e.buf, b) }

func (e *ewkbEncoder) putUint32(v uint32) {
	b := make([]byte, 4)
	e.order.PutUint32(b, v)
	e.buf = append(e.buf, b...)
}

func (e *ewkbEncoder) putFloat64(v float64) {
	b := make([]byte, 8)
	e.order.PutUint64(b, math.Float64bits(v))
	e.buf = append(e.buf, b...)
}

func (e *ewkbEncoder) tag(typeCode int, withSRID bool) {
	e.putByte(e.endiannessByte)
	code := uint32(typeCode)
	if withSRID {
		code |= sridFlag
	}
	e.putUint32(code)
	if withSRID {
		e.putUint32(SRID)
	}
}

func (e *ewkbEncoder) point(p Point) {
	e.putFloat64(p.X)
	e.putFloat64(p.Y)
}

func (e *ewkbEncoder) encode(g Geometry, tagged, srid bool) error {
	switch v := g.(type) {
	case Point:
		if tagged {
			e.tag(ewkbPoint, srid)
		}
		e.point(v)
	case LineString:
		if tagged {
			e.tag(ewkbLineString, srid)
		}
		e.putUint32(uint32(len(v)))
		for _, p := range v {
			e.point(p)
		}
	case LinearRing:
		if tagged {
			e.tag(ewkbLineString, srid)
		}
		if len(v) == 0 {
			e.putUint32(0)
			return nil
		}
		e.putUint32(uint32(len(v) + 1))
		for _, p := range v {
			e.point(p)
		}
		e.point(v[0])
	case Polygon:
		if tagged {
			e.tag(ewkbPolygon, srid)
		}
		e.putUint32(uint32(len(v)))
		for _, ring := range v {
			if err := e.encode(ring, false, false); err != nil {
				return err
			}
		}
	case MultiPoint:
		if tagged {
			e.tag(ewkbMultiPoint, srid)
		}
		e.putUint32(uint32(len(v)))
		for _, p := range v {
			if err := e.encode(p, true, false); err != nil {
				return err
			}
		}
	case MultiLineString:
		if tagged {
			e.tag(ewkbMultiLineString, srid)
		}
		e.putUint32(uint32(len(v)))
		for _, ls := range v {
			if err := e.encode(ls, true, false); err != nil {
				return err
			}
		}
	case MultiPolygon:
		if tagged {
			e.tag(ewkbMultiPolygon, srid)
		}
		e.putUint32(uint32(len(v)))
		for _, p := range v {
			if err := e.encode(p, true, false); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("geometry: unsupported type %T", g)
	}
	return nil
}

// DecodeEWKB parses a tagged EWKB byte stream into a Geometry. Only SRID
// 4326 is accepted.
func DecodeEWKB(ewkb []byte) (Geometry, error) {
	s := &ewkbStream{buf: ewkb}
	if err := s.readByteOrder(); err != nil {
		return nil, err
	}
	return s.decode(-1)
}

type ewkbStream struct {
	buf    []byte
	offset int
	order  binary.ByteOrder
}

func (s *ewkbStream) readByteOrder() error {
	b, err := s.readByte()
	if err != nil {
		return err
	}
	if b == 0 {
		s.order = binary.BigEndian
	} else {
		s.order = binary.LittleEndian
	}
	return nil
}

func (s *ewkbStream) readByte() (byte, error) {
	if s.offset+1 > len(s.buf) {
		return 0, fmt.Errorf("geometry: unexpected end of EWKB stream")
	}
	b := s.buf[s.offset]
	s.offset++
	return b, nil
}

func (s *ewkbStream) readUint32() (uint32, error) {
	if s.offset+4 > len(s.buf) {
		return 0, fmt.Errorf("geometry: unexpected end of EWKB stream")
	}
	v := s.order.Uint32(s.buf[s.offset:])
	s.offset += 4
	return v, nil
}

func (s *ewkbStream) readFloat64() (float64, error) {
	if s.offset+8 > len(s.buf) {
		return 0, fmt.Errorf("geometry: unexpected end of EWKB stream")
	}
	v := math.Float64frombits(s.order.Uint64(s.buf[s.offset:]))
	s.offset += 8
	return v, nil
}

func (s *ewkbStream) readPoint() (Point, error) {
	x, err := s.readFloat64()
	if err != nil {
		return Point{}, err
	}
	y, err := s.readFloat64()
	if err != nil {
		return Point{}, err
	}
	return Point{X: x, Y: y}, nil
}

func (s *ewkbStream) decode(expected int) (Geometry, error) {
	if expected >= 0 {
		// Elements of a multi-geometry carry their own byte-order byte.
		if err := s.readByteOrder(); err != nil {
			return nil, err
		}
	}
	raw, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	typeCode := int(raw & 0x00FFFFFF)
	flags := raw >> 28

	if expected >= 0 && typeCode != expected {
		return nil, fmt.Errorf("geometry: unexpected EWKB type code %d (expected %d)", typeCode, expected)
	}

	switch flags {
	case 0x02:
		srid, err := s.readUint32()
		if err != nil {
			return nil, err
		}
		if srid != SRID {
			return nil, fmt.Errorf("geometry: unsupported SRID %d", srid)
		}
	case 0x00:
		// no SRID present
	default:
		return nil, fmt.Errorf("geometry: unsupported EWKB type flags %d", flags)
	}

	switch typeCode {
	case ewkbPoint:
		return s.readPointGeometry()
	case ewkbLineString:
		return s.readLineString()
	case ewkbPolygon:
		return s.readPolygon()
	case ewkbMultiPoint:
		return s.readMultiPoint()
	case ewkbMultiLineString:
		return s.readMultiLineString()
	case ewkbMultiPolygon:
		return s.readMultiPolygon()
	default:
		return nil, fmt.Errorf("geometry: unsupported EWKB type code %d", typeCode)
	}
}

func (s *ewkbStream) readPointGeometry() (Geometry, error) { return s.readPoint() }

func (s *ewkbStream) readLineString() (Geometry, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	ls := make(LineString, count)
	for i := range ls {
		p, err := s.readPoint()
		if err != nil {
			return nil, err
		}
		ls[i] = p
	}
	return ls, nil
}

func (s *ewkbStream) readLinearRing() (LinearRing, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return LinearRing{}, nil
	}
	if count < 4 {
		return nil, fmt.Errorf("geometry: linear ring should be empty or contain >= 4 points")
	}
	points := make([]Point, count)
	for i := range points {
		p, err := s.readPoint()
		if err != nil {
			return nil, err
		}
		points[i] = p
	}
	if points[len(points)-1] != points[0] {
		return nil, fmt.Errorf("geometry: linear ring should be closed")
	}
	return LinearRing(points[:len(points)-1]), nil
}

func (s *ewkbStream) readPolygon() (Geometry, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	poly := make(Polygon, count)
	for i := range poly {
		ring, err := s.readLinearRing()
		if err != nil {
			return nil, err
		}
		poly[i] = ring
	}
	return poly, nil
}

func (s *ewkbStream) readMultiPoint() (Geometry, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	mp := make(MultiPoint, count)
	for i := range mp {
		g, err := s.decode(ewkbPoint)
		if err != nil {
			return nil, err
		}
		mp[i] = g.(Point)
	}
	return mp, nil
}

func (s *ewkbStream) readMultiLineString() (Geometry, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	mls := make(MultiLineString, count)
	for i := range mls {
		g, err := s.decode(ewkbLineString)
		if err != nil {
			return nil, err
		}
		mls[i] = g.(LineString)
	}
	return mls, nil
}

func (s *ewkbStream) readMultiPolygon() (Geometry, error) {
	count, err := s.readUint32()
	if err != nil {
		return nil, err
	}
	mp := make(MultiPolygon, count)
	for i := range mp {
		g, err := s.decode(ewkbPolygon)
		if err != nil {
			return nil, err
		}
		mp[i] = g.(Polygon)
	}
	return mp, nil
}
