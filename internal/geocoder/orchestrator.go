// Package geocoder sequences the external geocoding providers: the free
// rate-limited provider first, the paid provider as fallback, with a
// run-scoped fuse that suppresses the paid provider after an authorization
// failure.
package geocoder

import (
	"context"

	"go.uber.org/zap"

	"github.com/southlink/geosync/internal/resilience"
)

// Provider converts a free-text address into a coordinate. The bool result
// distinguishes "no match" from a successful match; errors cover transport
// and payload failures.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (Coordinate, bool, error)
}

// Orchestrator resolves addresses through the provider chain. State is
// scoped to one run: construct once, discard at process exit.
type Orchestrator struct {
	primary       Provider
	secondary     Provider
	secondaryFuse *resilience.Fuse
	log           *zap.Logger
}

// New creates an orchestrator. secondary may be nil when the paid provider
// has no key configured; it is then suppressed from the start.
func New(primary, secondary Provider, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	o := &Orchestrator{
		primary:   primary,
		secondary: secondary,
		log:       log,
	}

	onTrip := func(reason string) {
		log.Warn("secondary geocoding provider suppressed for this run",
			zap.String("reason", reason),
		)
	}
	if secondary == nil {
		o.secondaryFuse = resilience.NewTrippedFuse("no api key configured", onTrip)
	} else {
		o.secondaryFuse = resilience.NewFuse(onTrip)
	}
	return o
}

// Resolve returns the first coordinate either provider produces for the
// address, or false when neither resolves it. Provider failures are logged
// and treated as "no result"; only an authorization failure from the
// secondary has a lasting effect, tripping its fuse for the rest of the run.
func (o *Orchestrator) Resolve(ctx context.Context, address string) (Coordinate, bool) {
	coord, matched, err := o.primary.Geocode(ctx, address)
	if err != nil {
		o.log.Warn("primary geocoding failed",
			zap.String("provider", o.primary.Name()),
			zap.String("address", address),
			zap.Bool("transient", resilience.IsTransient(err)),
			zap.Error(err),
		)
	} else if matched {
		return coord, true
	}

	if o.secondaryFuse.Tripped() {
		return Coordinate{}, false
	}

	coord, matched, err = o.secondary.Geocode(ctx, address)
	if err != nil {
		if resilience.IsAuth(err) {
			o.secondaryFuse.Trip(err.Error())
		} else {
			o.log.Warn("secondary geocoding failed",
				zap.String("provider", o.secondary.Name()),
				zap.String("address", address),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
		}
		return Coordinate{}, false
	}
	if !matched {
		return Coordinate{}, false
	}
	return coord, true
}

// SecondarySuppressed reports whether the secondary provider is disabled,
// either from construction or after an authorization failure.
func (o *Orchestrator) SecondarySuppressed() bool {
	return o.secondaryFuse.Tripped()
}
