package billing

// Customer is one active customer returned by the backend listing.
type Customer struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
}

// Service is one internet service attached to a customer. The auxiliary
// attributes and geo fields are nullable on the backend; nil means the
// field has never been written.
type Service struct {
	ID            int     `json:"id"`
	CustomerID    int     `json:"customer_id"`
	Status        string  `json:"status"`
	TariffID      int     `json:"tariff_id"`
	RouterID      int     `json:"router_id"`
	InstallStreet *string `json:"install_street"`
	InstallTown   *string `json:"install_town"`
	GeoAddress    *string `json:"geo_address"`
	GeoMarker     *string `json:"geo_marker"`
}

// Active reports whether the service should be reconciled.
func (s Service) Active() bool {
	return s.Status == "active"
}

// AttributesPatch carries both normalized attribute values. The backend
// updates the pair as a unit, so both fields are always sent together.
type AttributesPatch struct {
	Street string `json:"install_street"`
	Town   string `json:"install_town"`
}

// GeoPatch carries the geo address and marker for one write. The zero value
// is the "clear" payload of the clear-then-set protocol.
type GeoPatch struct {
	Address string `json:"address"`
	Marker  string `json:"marker"`
}
