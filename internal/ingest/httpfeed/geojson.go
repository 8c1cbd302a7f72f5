package httpfeed

import (
	"encoding/json"
	"fmt"

	"github.com/radiancefleet/core/internal/ingest/batch"
)

// geoJSONFeatureCollection is the pull-feed wire format named in §6: a
// standard GeoJSON FeatureCollection of Point features, one per vessel
// position report.
type geoJSONFeatureCollection struct {
	Type     string           `json:"type"`
	Features []geoJSONFeature `json:"features"`
}

type geoJSONFeature struct {
	Geometry struct {
		Type        string     `json:"type"`
		Coordinates [2]float64 `json:"coordinates"`
	} `json:"geometry"`
	Properties geoJSONProperties `json:"properties"`
}

type geoJSONProperties struct {
	MMSI          string   `json:"mmsi"`
	Timestamp     string   `json:"timestamp"`
	SOGKnots      float64  `json:"sog_knots"`
	COGDegrees    float64  `json:"cog_degrees"`
	HeadingDeg    float64  `json:"heading_degrees"`
	NavStatusCode int      `json:"nav_status"`
	DraughtMeters *float64 `json:"draught_meters"`
	Destination   string   `json:"destination"`
	Name          string   `json:"name"`
	Callsign      string   `json:"callsign"`
	IMO           string   `json:"imo"`
	LengthM       float64  `json:"length_m"`
	WidthM        float64  `json:"width_m"`
}

// DecodeGeoJSON parses a GeoJSON FeatureCollection of vessel positions into
// raw ingestion rows. A GeoJSON Point's coordinates are [lon, lat]; a
// feature that also carries name, callsign, or IMO properties yields a
// RawStaticUpdate alongside its RawPosition.
func DecodeGeoJSON(body []byte) ([]batch.RawPosition, []batch.RawStaticUpdate, error) {
	var fc geoJSONFeatureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, nil, fmt.Errorf("httpfeed: decoding GeoJSON FeatureCollection: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("httpfeed: expected a FeatureCollection, got %q", fc.Type)
	}

	var positions []batch.RawPosition
	var statics []batch.RawStaticUpdate
	for _, f := range fc.Features {
		if f.Geometry.Type != "Point" {
			continue
		}
		p := f.Properties
		positions = append(positions, batch.RawPosition{
			RawMMSI:       p.MMSI,
			TimestampRaw:  p.Timestamp,
			Lat:           f.Geometry.Coordinates[1],
			Lon:           f.Geometry.Coordinates[0],
			SOGKnots:      p.SOGKnots,
			COGDegrees:    p.COGDegrees,
			HeadingRaw:    p.HeadingDeg,
			NavStatusCode: p.NavStatusCode,
			DraughtMeters: p.DraughtMeters,
			Destination:   p.Destination,
			Source:        "pull_feed",
		})
		if p.Name != "" || p.Callsign != "" || p.IMO != "" {
			statics = append(statics, batch.RawStaticUpdate{
				RawMMSI:  p.MMSI,
				IMO:      p.IMO,
				Name:     p.Name,
				Callsign: p.Callsign,
				LengthM:  p.LengthM,
				WidthM:   p.WidthM,
			})
		}
	}
	return positions, statics, nil
}
