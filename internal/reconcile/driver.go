package reconcile

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/southlink/geosync/internal/address"
	"github.com/southlink/geosync/internal/geocoder"
	"github.com/southlink/geosync/internal/resilience"
	"github.com/southlink/geosync/pkg/billing"
)

// unresolved is the output sentinel for coordinates that could not be
// determined from either a provider or a stored marker.
const unresolved = "N/A"

// Resolver resolves a canonical address to a coordinate. Satisfied by
// geocoder.Orchestrator.
type Resolver interface {
	Resolve(ctx context.Context, addr string) (geocoder.Coordinate, bool)
}

// Row is one reconciled output record.
type Row struct {
	CustomerID int
	ServiceID  int
	Tariff     string
	Router     string
	Street     string
	Town       string
	Lat        string
	Lon        string
}

// RowWriter receives reconciled rows. Satisfied by CSVWriter.
type RowWriter interface {
	Write(row Row) error
}

// Stats summarizes one reconciliation run.
type Stats struct {
	Customers       int
	Services        int
	Geocoded        int
	Unresolved      int
	AttributeWrites int
	GeoWrites       int
	WriteFailures   int
}

// Driver walks every active customer's services, decides per record what
// needs updating, issues best-effort write-backs, and emits one output row
// per service. Records are processed strictly one at a time so the primary
// provider's pacing limiter stays meaningful.
type Driver struct {
	backend  billing.Client
	resolver Resolver
	out      RowWriter
	log      *zap.Logger

	tariffTitles map[int]string
	routerTitles map[int]string
}

// NewDriver creates a driver. Title lookups are cached for the run.
func NewDriver(backend billing.Client, resolver Resolver, out RowWriter, log *zap.Logger) *Driver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Driver{
		backend:      backend,
		resolver:     resolver,
		out:          out,
		log:          log,
		tariffTitles: make(map[int]string),
		routerTitles: make(map[int]string),
	}
}

// Run executes one full reconciliation pass. Per-record failures are logged
// and isolated; only a failed initial customer listing aborts the run.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	customers, err := d.backend.ListActiveCustomers(ctx)
	if err != nil {
		return stats, err
	}
	stats.Customers = len(customers)

	for _, cust := range customers {
		services, err := d.backend.ListServices(ctx, cust.ID)
		if err != nil {
			d.log.Warn("skipping customer, service listing failed",
				zap.Int("customer_id", cust.ID),
				zap.Error(err),
			)
			continue
		}

		for _, svc := range services {
			if !svc.Active() {
				continue
			}
			stats.Services++
			d.processService(ctx, cust, svc, &stats)
		}
	}

	return stats, nil
}

func (d *Driver) processService(ctx context.Context, cust billing.Customer, svc billing.Service, stats *Stats) {
	snap := SnapshotOf(svc)
	canon := address.Canonicalize(snap.InstallStreet, snap.InstallTown, cust.Street, cust.City)
	dec := Decide(snap, canon)

	var coord *geocoder.Coordinate
	if dec.NeedsGeocode {
		if c, ok := d.resolver.Resolve(ctx, canon.Address); ok {
			coord = &c
		}
	}
	out := dec.Finalize(coord)

	if coord != nil {
		stats.Geocoded++
	} else if out.Display == nil {
		stats.Unresolved++
	}

	d.writeBack(ctx, svc.ID, out, stats)

	tariff, router := d.titles(ctx, svc.TariffID, svc.RouterID)

	row := Row{
		CustomerID: cust.ID,
		ServiceID:  svc.ID,
		Tariff:     tariff,
		Router:     router,
		Street:     canon.Street,
		Town:       canon.Town,
		Lat:        unresolved,
		Lon:        unresolved,
	}
	if out.Display != nil {
		row.Lat = formatDegrees(out.Display.Lat)
		row.Lon = formatDegrees(out.Display.Lon)
	}

	if err := d.out.Write(row); err != nil {
		d.log.Warn("failed to write output row",
			zap.Int("service_id", svc.ID),
			zap.Error(err),
		)
	}
}

// writeBack issues the attribute and geo patches independently. Either may
// fire without the other, and each failure is reported without stopping the
// run. The geo patch is applied as a clear-then-set pair: the backend
// rejects direct overwrites of a populated marker.
func (d *Driver) writeBack(ctx context.Context, serviceID int, out Outcome, stats *Stats) {
	if out.Attributes != nil {
		if err := d.backend.UpdateServiceAttributes(ctx, serviceID, *out.Attributes); err != nil {
			stats.WriteFailures++
			d.log.Warn("attribute write-back failed",
				zap.Int("service_id", serviceID),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
		} else {
			stats.AttributeWrites++
		}
	}

	if out.Geo != nil {
		if err := d.backend.UpdateServiceGeo(ctx, serviceID, billing.GeoPatch{}); err != nil {
			stats.WriteFailures++
			d.log.Warn("geo clear failed",
				zap.Int("service_id", serviceID),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
		}
		if err := d.backend.UpdateServiceGeo(ctx, serviceID, *out.Geo); err != nil {
			stats.WriteFailures++
			d.log.Warn("geo set failed",
				zap.Int("service_id", serviceID),
				zap.Bool("transient", resilience.IsTransient(err)),
				zap.Error(err),
			)
		} else {
			stats.GeoWrites++
		}
	}
}

// titles resolves the tariff and router display titles concurrently; the
// two lookups are independent backend reads and the only concurrency in a
// run. Failures degrade to empty fields.
func (d *Driver) titles(ctx context.Context, tariffID, routerID int) (string, string) {
	var tariff, router string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tariff = d.tariffTitle(gctx, tariffID)
		return nil
	})
	g.Go(func() error {
		router = d.routerTitle(gctx, routerID)
		return nil
	})
	_ = g.Wait()
	return tariff, router
}

func (d *Driver) tariffTitle(ctx context.Context, id int) string {
	if id == 0 {
		return ""
	}
	if title, ok := d.tariffTitles[id]; ok {
		return title
	}
	title, err := d.backend.TariffTitle(ctx, id)
	if err != nil {
		d.log.Warn("tariff title lookup failed", zap.Int("tariff_id", id), zap.Error(err))
		return ""
	}
	d.tariffTitles[id] = title
	return title
}

func (d *Driver) routerTitle(ctx context.Context, id int) string {
	if id == 0 {
		return ""
	}
	if title, ok := d.routerTitles[id]; ok {
		return title
	}
	title, err := d.backend.RouterTitle(ctx, id)
	if err != nil {
		d.log.Warn("router title lookup failed", zap.Int("router_id", id), zap.Error(err))
		return ""
	}
	d.routerTitles[id] = title
	return title
}
