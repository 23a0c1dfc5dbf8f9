package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southlink/geosync/internal/geocoder"
	"github.com/southlink/geosync/pkg/billing"
)

type fakeBackend struct {
	customers   []billing.Customer
	services    map[int][]billing.Service
	tariffs     map[int]string
	routers     map[int]string
	listErr     error
	servicesErr map[int]error
	attrErr     error
	geoErr      error

	attrCalls   map[int][]billing.AttributesPatch
	geoCalls    map[int][]billing.GeoPatch
	tariffReads int
	routerReads int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		services:    make(map[int][]billing.Service),
		tariffs:     make(map[int]string),
		routers:     make(map[int]string),
		servicesErr: make(map[int]error),
		attrCalls:   make(map[int][]billing.AttributesPatch),
		geoCalls:    make(map[int][]billing.GeoPatch),
	}
}

func (f *fakeBackend) ListActiveCustomers(context.Context) ([]billing.Customer, error) {
	return f.customers, f.listErr
}

func (f *fakeBackend) ListServices(_ context.Context, customerID int) ([]billing.Service, error) {
	if err := f.servicesErr[customerID]; err != nil {
		return nil, err
	}
	return f.services[customerID], nil
}

func (f *fakeBackend) TariffTitle(_ context.Context, id int) (string, error) {
	f.tariffReads++
	return f.tariffs[id], nil
}

func (f *fakeBackend) RouterTitle(_ context.Context, id int) (string, error) {
	f.routerReads++
	return f.routers[id], nil
}

func (f *fakeBackend) UpdateServiceAttributes(_ context.Context, serviceID int, patch billing.AttributesPatch) error {
	f.attrCalls[serviceID] = append(f.attrCalls[serviceID], patch)
	return f.attrErr
}

func (f *fakeBackend) UpdateServiceGeo(_ context.Context, serviceID int, patch billing.GeoPatch) error {
	f.geoCalls[serviceID] = append(f.geoCalls[serviceID], patch)
	return f.geoErr
}

type fakeResolver struct {
	coords map[string]geocoder.Coordinate
	calls  []string
}

func (f *fakeResolver) Resolve(_ context.Context, addr string) (geocoder.Coordinate, bool) {
	f.calls = append(f.calls, addr)
	c, ok := f.coords[addr]
	return c, ok
}

type fakeWriter struct {
	rows []Row
	err  error
}

func (f *fakeWriter) Write(row Row) error {
	f.rows = append(f.rows, row)
	return f.err
}

func TestDriver_FullPass(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{
		{ID: 1, Street: "123 main street", City: "auckland"},
	}
	backend.services[1] = []billing.Service{
		{ID: 10, CustomerID: 1, Status: "active", TariffID: 5, RouterID: 7},
		{ID: 11, CustomerID: 1, Status: "disabled"},
	}
	backend.tariffs[5] = "Fibre 300"
	backend.routers[7] = "AKL-CORE-1"

	resolver := &fakeResolver{coords: map[string]geocoder.Coordinate{
		"123 Main Street, Auckland": {Lat: -36.8485, Lon: 174.7633},
	}}
	out := &fakeWriter{}

	stats, err := NewDriver(backend, resolver, out, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Customers)
	assert.Equal(t, 1, stats.Services, "inactive service is skipped")
	assert.Equal(t, 1, stats.Geocoded)

	require.Len(t, out.rows, 1)
	row := out.rows[0]
	assert.Equal(t, 1, row.CustomerID)
	assert.Equal(t, 10, row.ServiceID)
	assert.Equal(t, "Fibre 300", row.Tariff)
	assert.Equal(t, "AKL-CORE-1", row.Router)
	assert.Equal(t, "123 Main Street", row.Street)
	assert.Equal(t, "Auckland", row.Town)
	assert.Equal(t, "-36.8485", row.Lat)
	assert.Equal(t, "174.7633", row.Lon)

	// Fallback address means the attributes were written.
	require.Len(t, backend.attrCalls[10], 1)
	assert.Equal(t, "123 Main Street", backend.attrCalls[10][0].Street)
}

func TestDriver_GeoWriteIsClearThenSet(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{{ID: 1, Street: "1 way", City: "town"}}
	backend.services[1] = []billing.Service{{ID: 10, Status: "active"}}

	resolver := &fakeResolver{coords: map[string]geocoder.Coordinate{
		"1 Way, Town": {Lat: -41.0, Lon: 174.0},
	}}

	_, err := NewDriver(backend, resolver, &fakeWriter{}, nil).Run(context.Background())
	require.NoError(t, err)

	calls := backend.geoCalls[10]
	require.Len(t, calls, 2)
	assert.Equal(t, billing.GeoPatch{}, calls[0], "first geo call clears")
	assert.Equal(t, "1 Way, Town", calls[1].Address)
	assert.Equal(t, "-41,174", calls[1].Marker)
}

func TestDriver_CurrentRecordSkipsGeocoding(t *testing.T) {
	street := "123 Main Street"
	town := "Auckland"
	addr := "123 Main Street, Auckland"
	marker := "-36.8485,174.7633"

	backend := newFakeBackend()
	backend.customers = []billing.Customer{{ID: 1}}
	backend.services[1] = []billing.Service{{
		ID:            10,
		Status:        "active",
		InstallStreet: &street,
		InstallTown:   &town,
		GeoAddress:    &addr,
		GeoMarker:     &marker,
	}}

	resolver := &fakeResolver{}
	out := &fakeWriter{}

	_, err := NewDriver(backend, resolver, out, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, resolver.calls, "no provider call for a current record")
	assert.Empty(t, backend.geoCalls[10])
	require.Len(t, out.rows, 1)
	assert.Equal(t, "-36.8485", out.rows[0].Lat)
	assert.Equal(t, "174.7633", out.rows[0].Lon)
}

func TestDriver_UnresolvedReportsNA(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{{ID: 1, Street: "nowhere", City: "atlantis"}}
	backend.services[1] = []billing.Service{{ID: 10, Status: "active"}}

	out := &fakeWriter{}
	stats, err := NewDriver(backend, &fakeResolver{}, out, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Unresolved)
	require.Len(t, out.rows, 1)
	assert.Equal(t, "N/A", out.rows[0].Lat)
	assert.Equal(t, "N/A", out.rows[0].Lon)
}

func TestDriver_ServiceListingFailureSkipsCustomer(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{
		{ID: 1},
		{ID: 2, Street: "1 way", City: "town"},
	}
	backend.servicesErr[1] = errors.New("boom")
	backend.services[2] = []billing.Service{{ID: 20, Status: "active"}}

	out := &fakeWriter{}
	resolver := &fakeResolver{coords: map[string]geocoder.Coordinate{
		"1 Way, Town": {Lat: 1, Lon: 2},
	}}

	stats, err := NewDriver(backend, resolver, out, nil).Run(context.Background())
	require.NoError(t, err, "one bad customer does not abort the run")
	assert.Equal(t, 1, stats.Services)
	assert.Len(t, out.rows, 1)
}

func TestDriver_CustomerListingFailureAborts(t *testing.T) {
	backend := newFakeBackend()
	backend.listErr = errors.New("backend down")

	_, err := NewDriver(backend, &fakeResolver{}, &fakeWriter{}, nil).Run(context.Background())
	require.Error(t, err)
}

func TestDriver_WriteFailureIsNonFatal(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{{ID: 1, Street: "1 way", City: "town"}}
	backend.services[1] = []billing.Service{{ID: 10, Status: "active"}}
	backend.attrErr = errors.New("write rejected")
	backend.geoErr = errors.New("write rejected")

	resolver := &fakeResolver{coords: map[string]geocoder.Coordinate{
		"1 Way, Town": {Lat: -41.0, Lon: 174.0},
	}}
	out := &fakeWriter{}

	stats, err := NewDriver(backend, resolver, out, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Positive(t, stats.WriteFailures)
	// The row still reflects the attempted new state.
	require.Len(t, out.rows, 1)
	assert.Equal(t, "-41", out.rows[0].Lat)
	assert.Equal(t, "1 Way", out.rows[0].Street)
}

func TestDriver_TitleLookupsCached(t *testing.T) {
	backend := newFakeBackend()
	backend.customers = []billing.Customer{{ID: 1, Street: "1 way", City: "town"}}
	backend.services[1] = []billing.Service{
		{ID: 10, Status: "active", TariffID: 5, RouterID: 7},
		{ID: 11, Status: "active", TariffID: 5, RouterID: 7},
	}
	backend.tariffs[5] = "Fibre 300"
	backend.routers[7] = "AKL-CORE-1"

	resolver := &fakeResolver{}
	_, err := NewDriver(backend, resolver, &fakeWriter{}, nil).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, backend.tariffReads)
	assert.Equal(t, 1, backend.routerReads)
}
