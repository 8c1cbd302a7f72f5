// Package upsert coordinates concurrent vessel creation above the
// store.VesselRepo savepoint retry: many ingestion workers racing on a
// brand-new MMSI collapse into a single in-flight database round trip via
// singleflight before any of them touch the database (§4.1 "multiple
// concurrent workers may hit the same new MMSI").
package upsert

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/singleflight"

	"github.com/radiancefleet/core/internal/ingest/normalize"
	"github.com/radiancefleet/core/internal/store"
	"github.com/radiancefleet/core/pkg/models"
)

// Upserter wraps a process-wide singleflight group around VesselRepo's
// per-transaction savepoint retry. The singleflight collapse is an
// optimization over the savepoint path, not a replacement for it: the
// savepoint retry still fires when two Upserters live in separate
// processes and race at the database level.
type Upserter struct {
	group singleflight.Group
}

func New() *Upserter { return &Upserter{} }

// UpsertVessel normalizes mmsi and resolves or creates the vessel record
// within tx, deduplicating concurrent same-MMSI calls within this process.
func (u *Upserter) UpsertVessel(ctx context.Context, tx pgx.Tx, rawMMSI string) (models.Vessel, error) {
	mmsi, err := normalize.MMSI(rawMMSI)
	if err != nil {
		return models.Vessel{}, fmt.Errorf("upsert: %w", err)
	}

	v, err, _ := u.group.Do(mmsi, func() (interface{}, error) {
		repo := store.NewVesselRepo(tx)
		return repo.UpsertVessel(ctx, mmsi, normalize.DeriveFlag)
	})
	if err != nil {
		return models.Vessel{}, err
	}
	return v.(models.Vessel), nil
}
