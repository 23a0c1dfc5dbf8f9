package main

import (
	"go.uber.org/zap"

	"github.com/southlink/geosync/internal/geocoder"
	"github.com/southlink/geosync/pkg/googlemaps"
	"github.com/southlink/geosync/pkg/nominatim"
)

// newOrchestrator wires the provider clients from config, shared by the sync
// and geocode commands. A missing Google key leaves the secondary provider
// out entirely; the orchestrator then suppresses it from the start.
func newOrchestrator(log *zap.Logger) *geocoder.Orchestrator {
	primary := geocoder.NominatimProvider{
		Client: nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithCountryCodes(cfg.Nominatim.CountryCodes),
			nominatim.WithMinInterval(cfg.Nominatim.MinInterval()),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
			nominatim.WithTimeout(cfg.Nominatim.Timeout()),
		),
	}

	var secondary geocoder.Provider
	if cfg.Google.Key != "" {
		secondary = geocoder.GoogleProvider{
			Client: googlemaps.NewClient(cfg.Google.Key,
				googlemaps.WithRegion(cfg.Google.Region),
				googlemaps.WithTimeout(cfg.Google.Timeout()),
			),
		}
	}

	return geocoder.New(primary, secondary, log)
}
