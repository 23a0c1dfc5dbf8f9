package geocoder

import (
	"strconv"
	"strings"
)

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64
	Lon float64
}

// Marker renders the coordinate in the backend's "lat,lon" marker format.
func (c Coordinate) Marker() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// ParseMarker parses a stored "lat,lon" marker string. Both parts are
// trimmed before parsing. Returns false for empty or malformed markers.
func ParseMarker(s string) (Coordinate, bool) {
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return Coordinate{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Coordinate{}, false
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Coordinate{}, false
	}
	return Coordinate{Lat: lat, Lon: lon}, true
}
