package geocoder

import (
	"context"
	"errors"

	"github.com/southlink/geosync/internal/resilience"
	"github.com/southlink/geosync/pkg/googlemaps"
	"github.com/southlink/geosync/pkg/nominatim"
)

// NominatimProvider adapts the Nominatim client to the Provider interface.
type NominatimProvider struct {
	Client *nominatim.Client
}

func (p NominatimProvider) Name() string { return "nominatim" }

func (p NominatimProvider) Geocode(ctx context.Context, address string) (Coordinate, bool, error) {
	res, err := p.Client.Search(ctx, address)
	if err != nil {
		return Coordinate{}, false, err
	}
	return Coordinate{Lat: res.Lat, Lon: res.Lon}, res.Matched, nil
}

// GoogleProvider adapts the Google Geocoding client to the Provider
// interface, reclassifying key-denied responses as authorization errors so
// the orchestrator can trip the fuse.
type GoogleProvider struct {
	Client *googlemaps.Client
}

func (p GoogleProvider) Name() string { return "google" }

func (p GoogleProvider) Geocode(ctx context.Context, address string) (Coordinate, bool, error) {
	res, err := p.Client.Geocode(ctx, address)
	if err != nil {
		if errors.Is(err, googlemaps.ErrRequestDenied) {
			return Coordinate{}, false, resilience.NewAuthError(err)
		}
		return Coordinate{}, false, err
	}
	return Coordinate{Lat: res.Lat, Lon: res.Lon}, res.Matched, nil
}
