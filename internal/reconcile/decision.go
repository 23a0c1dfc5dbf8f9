// Package reconcile holds the per-record update decision engine and the
// driver that walks the backend's customers and services, reconciling their
// location metadata against the geocoding providers.
package reconcile

import (
	"github.com/southlink/geosync/internal/address"
	"github.com/southlink/geosync/internal/geocoder"
	"github.com/southlink/geosync/pkg/billing"
)

// Snapshot is the backend's current state for one service, with nullable
// fields flattened to empty strings. Decisions are derived freshly from a
// snapshot; the snapshot itself is never mutated.
type Snapshot struct {
	InstallStreet string
	InstallTown   string
	GeoAddress    string
	GeoMarker     string
}

// SnapshotOf extracts the decision-relevant fields from a service record.
func SnapshotOf(svc billing.Service) Snapshot {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	return Snapshot{
		InstallStreet: deref(svc.InstallStreet),
		InstallTown:   deref(svc.InstallTown),
		GeoAddress:    deref(svc.GeoAddress),
		GeoMarker:     deref(svc.GeoMarker),
	}
}

// Decision is the pre-geocoding verdict for one record. Finalize completes
// it once the orchestrator has run (or been skipped).
type Decision struct {
	Snapshot  Snapshot
	Canonical address.Canonical

	// Attributes is non-nil when the auxiliary attributes need a write-back.
	// Both fields are always written together.
	Attributes *billing.AttributesPatch

	// AddressChanged is true when the canonical address is non-empty and
	// differs from the stored geo address.
	AddressChanged bool

	// NeedsGeocode is true when a provider lookup must be attempted: the
	// address changed, or no marker is stored yet. A record with an empty
	// canonical address has nothing to geocode.
	NeedsGeocode bool
}

// Outcome is the finalized result: zero or more write-back patches plus the
// coordinate to display. Display is nil when the coordinate is unresolved.
type Outcome struct {
	Attributes *billing.AttributesPatch
	Geo        *billing.GeoPatch
	Display    *geocoder.Coordinate
}

// Decide compares the stored state against the canonicalized address.
func Decide(snap Snapshot, canon address.Canonical) Decision {
	d := Decision{Snapshot: snap, Canonical: canon}

	// The attributes patch fires on content drift or on fallback use, and
	// always carries both normalized values. Drift and missing data are one
	// trigger on purpose: the backend updates the pair as a unit.
	if canon.Street != snap.InstallStreet || canon.Town != snap.InstallTown || canon.UsedFallback {
		d.Attributes = &billing.AttributesPatch{Street: canon.Street, Town: canon.Town}
	}

	d.AddressChanged = canon.Address != "" && canon.Address != snap.GeoAddress
	d.NeedsGeocode = canon.Address != "" && (d.AddressChanged || snap.GeoMarker == "")

	return d
}

// Finalize applies the geocoding result. coord is nil when no provider
// resolved the address, or when geocoding was not attempted at all.
func (d Decision) Finalize(coord *geocoder.Coordinate) Outcome {
	out := Outcome{Attributes: d.Attributes}

	if coord != nil {
		c := *coord
		out.Display = &c
		out.Geo = &billing.GeoPatch{Address: d.Canonical.Address, Marker: c.Marker()}
		return out
	}

	// Unresolved: the display coordinate falls back to the stored marker.
	if c, ok := geocoder.ParseMarker(d.Snapshot.GeoMarker); ok {
		out.Display = &c
	}

	// The address component may still need a write-back on its own; the
	// marker rides along unchanged so the clear-then-set pair preserves it.
	if d.AddressChanged {
		out.Geo = &billing.GeoPatch{Address: d.Canonical.Address, Marker: d.Snapshot.GeoMarker}
	}

	return out
}
