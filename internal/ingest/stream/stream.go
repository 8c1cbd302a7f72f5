// Package stream implements the push-feed AIS client: a gorilla/websocket
// session that subscribes to PositionReport/ShipStaticData messages within
// a set of bounding boxes and periodically flushes buffered records into
// storage (§4.1 "Inputs... a push-style stream of JSON messages").
//
// Grounded on the teacher's internal/api/websocket.go Hub: one read-pump
// goroutine per connection, a buffered outbound path, and graceful
// handling of disconnects. Here the roles are reversed — we are the
// client subscribing outward rather than the server broadcasting inward —
// but the read-pump/flush-on-interval shape is the same.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radiancefleet/core/internal/ingest/batch"
	"github.com/radiancefleet/core/internal/obs"
)

// BoundingBox restricts the subscription to a geographic area, matching
// the AIS-stream subscription message shape.
type BoundingBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// SessionStats summarizes one StreamFeed call for the orchestrator's
// per-run bookkeeping.
type SessionStats struct {
	PositionsReceived int
	StaticUpdates     int
	BatchesFlushed    int
	Errors            int
	DisconnectReason  string
}

// subscribeMessage is the AIS-stream subscription envelope.
type subscribeMessage struct {
	APIKey        string        `json:"APIKey"`
	BoundingBoxes [][][]float64 `json:"BoundingBoxes"`
}

// inboundMessage mirrors §6's "AIS stream message shape (subscribed)".
type inboundMessage struct {
	MessageType string `json:"MessageType"`
	MetaData    struct {
		MMSI     int64  `json:"MMSI"`
		ShipName string `json:"ShipName"`
		TimeUTC  string `json:"time_utc"`
	} `json:"MetaData"`
	Message struct {
		PositionReport *struct {
			Latitude            float64 `json:"Latitude"`
			Longitude           float64 `json:"Longitude"`
			Sog                 float64 `json:"Sog"`
			Cog                 float64 `json:"Cog"`
			TrueHeading         float64 `json:"TrueHeading"`
			NavigationalStatus  int     `json:"NavigationalStatus"`
		} `json:"PositionReport"`
		ShipStaticData *struct {
			ImoNumber int64  `json:"ImoNumber"`
			Type      int    `json:"Type"`
			CallSign  string `json:"CallSign"`
			Dimension struct {
				A, B, C, D float64
			} `json:"Dimension"`
		} `json:"ShipStaticData"`
	} `json:"Message"`
}

// Dialer abstracts websocket.DefaultDialer for test doubles.
type Dialer interface {
	Dial(urlStr string, requestHeader map[string][]string) (*websocket.Conn, *interface{}, error)
}

const streamURL = "wss://stream.aisstream.io/v0/stream"

// StreamFeed subscribes to the AIS push feed for the given duration,
// accumulating records in two in-memory buffers flushed every
// batchInterval seconds or at session end (§4.1 "Batching").
func StreamFeed(ctx context.Context, apiKey string, boxes []BoundingBox, duration, batchInterval time.Duration, sink batch.Sink) (SessionStats, error) {
	log := obs.From(ctx)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return SessionStats{}, fmt.Errorf("stream: dial failed: %w", err)
	}
	defer conn.Close()

	sub := subscribeMessage{APIKey: apiKey}
	for _, b := range boxes {
		sub.BoundingBoxes = append(sub.BoundingBoxes, [][]float64{
			{b.MinLat, b.MinLon}, {b.MaxLat, b.MaxLon},
		})
	}
	if err := conn.WriteJSON(sub); err != nil {
		return SessionStats{}, fmt.Errorf("stream: subscribe failed: %w", err)
	}

	sessionCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	var positions []batch.RawPosition
	var statics []batch.RawStaticUpdate
	var stats SessionStats

	flush := func() {
		if len(positions) == 0 && len(statics) == 0 {
			return
		}
		result := sink.IngestBatch(sessionCtx, positions, statics)
		stats.Errors += result.Errors
		stats.BatchesFlushed++
		positions = positions[:0]
		statics = statics[:0]
	}

	ticker := time.NewTicker(batchInterval)
	defer ticker.Stop()

	msgCh := make(chan inboundMessage, 256)
	errCh := make(chan error, 1)
	go readPump(conn, msgCh, errCh)

	for {
		select {
		case <-sessionCtx.Done():
			flush()
			stats.DisconnectReason = "session duration elapsed"
			return stats, nil
		case <-ticker.C:
			flush()
		case err := <-errCh:
			flush()
			stats.DisconnectReason = err.Error()
			log.Info("stream session ended", zap.Error(err))
			return stats, nil
		case msg := <-msgCh:
			switch msg.MessageType {
			case "PositionReport":
				if msg.Message.PositionReport == nil {
					continue
				}
				positions = append(positions, toRawPosition(msg))
				stats.PositionsReceived++
			case "ShipStaticData":
				if msg.Message.ShipStaticData == nil {
					continue
				}
				statics = append(statics, toRawStatic(msg))
				stats.StaticUpdates++
			}
		}
	}
}

func readPump(conn *websocket.Conn, out chan<- inboundMessage, errCh chan<- error) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("websocket disconnect: %w", err)
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		out <- msg
	}
}

func toRawPosition(msg inboundMessage) batch.RawPosition {
	pr := msg.Message.PositionReport
	return batch.RawPosition{
		RawMMSI:     fmt.Sprintf("%d", msg.MetaData.MMSI),
		TimestampRaw: msg.MetaData.TimeUTC,
		Lat:         pr.Latitude,
		Lon:         pr.Longitude,
		SOGKnots:    pr.Sog,
		COGDegrees:  pr.Cog,
		HeadingRaw:  pr.TrueHeading,
		NavStatusCode: pr.NavigationalStatus,
		Source:      "aisstream",
	}
}

func toRawStatic(msg inboundMessage) batch.RawStaticUpdate {
	sd := msg.Message.ShipStaticData
	length := sd.Dimension.A + sd.Dimension.B
	width := sd.Dimension.C + sd.Dimension.D
	return batch.RawStaticUpdate{
		RawMMSI:   fmt.Sprintf("%d", msg.MetaData.MMSI),
		IMO:       fmt.Sprintf("%d", sd.ImoNumber),
		Name:      msg.MetaData.ShipName,
		Callsign:  sd.CallSign,
		LengthM:   length,
		WidthM:    width,
	}
}
