package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEWKBPointRoundTrip(t *testing.T) {
	p := Point{X: 4.895, Y: 52.370}
	encoded, err := EncodeEWKB(p)
	require.NoError(t, err)

	decoded, err := DecodeEWKB(encoded)
	require.NoError(t, err)
	require.Equal(t, p, decoded)
}

func TestEWKBPolygonRoundTrip(t *testing.T) {
	ring := LinearRing{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	poly := Polygon{ring}

	encoded, err := EncodeEWKB(poly)
	require.NoError(t, err)

	decoded, err := DecodeEWKB(encoded)
	require.NoError(t, err)
	require.Equal(t, poly, decoded)
}

func TestDecodeEWKBRejectsUnknownSRID(t *testing.T) {
	p := Point{X: 1, Y: 2}
	encoded, err := EncodeEWKB(p)
	require.NoError(t, err)

	// Corrupt the SRID field (bytes 5-8, little-endian) to something other than 4326.
	encoded[5] = 0xFF
	_, err = DecodeEWKB(encoded)
	require.Error(t, err)
}

func TestIsClockwise(t *testing.T) {
	ccw := LinearRing{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	cw := LinearRing{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}}

	require.False(t, IsClockwise(ccw))
	require.True(t, IsClockwise(cw))
}
