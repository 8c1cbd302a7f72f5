package httpfeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeGeoJSON_PositionOnly(t *testing.T) {
	body := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [103.8, 1.3]},
				"properties": {
					"mmsi": "563012300",
					"timestamp": "2026-01-01T00:00:00Z",
					"sog_knots": 12.5,
					"cog_degrees": 90,
					"heading_degrees": 91
				}
			}
		]
	}`)

	positions, statics, err := DecodeGeoJSON(body)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Empty(t, statics)

	p := positions[0]
	assert.Equal(t, "563012300", p.RawMMSI)
	assert.Equal(t, 1.3, p.Lat)
	assert.Equal(t, 103.8, p.Lon)
	assert.Equal(t, "pull_feed", p.Source)
}

func TestDecodeGeoJSON_FeatureWithStaticPropertiesYieldsStaticUpdate(t *testing.T) {
	body := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"geometry": {"type": "Point", "coordinates": [0, 0]},
				"properties": {"mmsi": "563012300", "name": "MV EXAMPLE", "imo": "9123456"}
			}
		]
	}`)

	positions, statics, err := DecodeGeoJSON(body)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Len(t, statics, 1)
	assert.Equal(t, "MV EXAMPLE", statics[0].Name)
	assert.Equal(t, "9123456", statics[0].IMO)
}

func TestDecodeGeoJSON_SkipsNonPointGeometry(t *testing.T) {
	body := []byte(`{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "LineString"}, "properties": {"mmsi": "1"}}
		]
	}`)

	positions, _, err := DecodeGeoJSON(body)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestDecodeGeoJSON_RejectsWrongTopLevelType(t *testing.T) {
	_, _, err := DecodeGeoJSON([]byte(`{"type": "Feature"}`))
	assert.Error(t, err)
}

func TestDecodeGeoJSON_RejectsMalformedJSON(t *testing.T) {
	_, _, err := DecodeGeoJSON([]byte(`not json`))
	assert.Error(t, err)
}
