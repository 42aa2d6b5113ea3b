package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/storage"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type ChargesQuery struct {
	Search   string
	Expanded ExpandSet
}

type ChargesView struct {
	Entries     []ChargeEntry   `json:"entries"`
	DefaultRate decimal.Decimal `json:"default_rate"`
	// CatalogDegraded is set when the zip catalog could not be loaded and every
	// customer without a custom rate fell back to the default rate.
	CatalogDegraded bool      `json:"catalog_degraded"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Service assembles per-customer rate and bill aggregates from storage.
type Service struct {
	store       storage.Storage
	resolver    rates.Resolver
	parallelism int
	log         *logger.Logger
	now         func() time.Time
}

func NewService(st storage.Storage, defaultRate decimal.Decimal, parallelism int, log *logger.Logger) *Service {
	if parallelism <= 0 {
		parallelism = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:       st,
		resolver:    rates.Resolver{DefaultRate: defaultRate},
		parallelism: parallelism,
		log:         log,
		now:         time.Now,
	}
}

// ChargesView resolves and aggregates every customer, then filters by search
// and sorts by name. Customers are processed concurrently; a failed bill
// fetch marks only that entry.
func (s *Service) ChargesView(ctx context.Context, q ChargesQuery) (*ChargesView, error) {
	entries, degraded, err := s.aggregateAll(ctx)
	if err != nil {
		return nil, err
	}
	metrics.ChargesViewCustomers.Observe(float64(len(entries)))

	for i := range entries {
		if q.Expanded.Has(entries[i].Customer.ID) {
			entries[i].Expanded = true
		} else {
			entries[i].Bills = nil
		}
	}

	view := BuildChargesView(entries, q.Search)
	SortByName(view)
	return &ChargesView{
		Entries:         view,
		DefaultRate:     s.resolver.DefaultRate,
		CatalogDegraded: degraded,
		GeneratedAt:     s.now().UTC(),
	}, nil
}

// AggregateAll returns an entry with bills for every customer, in listing order.
func (s *Service) AggregateAll(ctx context.Context) ([]ChargeEntry, error) {
	entries, _, err := s.aggregateAll(ctx)
	return entries, err
}

func (s *Service) aggregateAll(ctx context.Context) ([]ChargeEntry, bool, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, false, apperrors.Upstream(err, "list customers")
	}

	degraded := false
	catalog, err := s.store.ListZipRates(ctx)
	if err != nil {
		degraded = true
		catalog = nil
		metrics.AggregationFailuresTotal.WithLabelValues("catalog").Inc()
		s.log.Error(ctx, "zip rate catalog unavailable; falling back to default rates", err)
	}

	entries := make([]ChargeEntry, len(customers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, c := range customers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entries[i] = s.buildEntry(gctx, c, catalog)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, degraded, fmt.Errorf("aggregate customers: %w", err)
	}
	return entries, degraded, nil
}

func (s *Service) buildEntry(ctx context.Context, c storage.Customer, catalog []storage.ZipRate) ChargeEntry {
	res := s.resolver.Resolve(c, catalog)
	metrics.RateResolutionsTotal.WithLabelValues(string(res.Provenance)).Inc()

	entry := ChargeEntry{Customer: c, Rate: res}
	bills, err := s.store.ListBills(ctx, storage.BillFilter{CustomerID: c.ID})
	if err != nil {
		metrics.AggregationFailuresTotal.WithLabelValues("bills").Inc()
		s.log.Error(s.log.WithField(ctx, "customer_id", c.ID), "loading bills failed", err)
		entry.Summary = Aggregate(nil)
		entry.Error = "bills unavailable: " + err.Error()
		return entry
	}
	entry.Summary = Aggregate(bills)
	entry.Bills = bills
	return entry
}

// CustomerBills returns one customer (nil when absent) with the bill list and its summary.
func (s *Service) CustomerBills(ctx context.Context, customerID uint) (*storage.Customer, []storage.Bill, Summary, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, nil, Summary{}, apperrors.Upstream(err, "load customer")
	}
	bills, err := s.store.ListBills(ctx, storage.BillFilter{CustomerID: customerID})
	if err != nil {
		return nil, nil, Summary{}, apperrors.Upstream(err, "list bills")
	}
	return c, bills, Aggregate(bills), nil
}

// Bill returns a bill and its owning customer. The customer is nil when it no longer exists.
func (s *Service) Bill(ctx context.Context, billID uint) (*storage.Bill, *storage.Customer, error) {
	b, err := s.store.GetBill(ctx, billID)
	if err != nil {
		return nil, nil, apperrors.Upstream(err, "load bill")
	}
	if b == nil {
		return nil, nil, apperrors.NotFound(fmt.Sprintf("bill %d not found", billID))
	}
	c, err := s.store.GetCustomer(ctx, b.CustomerID)
	if err != nil {
		return nil, nil, apperrors.Upstream(err, "load customer")
	}
	return b, c, nil
}

// Bills lists bills newest first, optionally for one customer, with their summary.
func (s *Service) Bills(ctx context.Context, customerID uint) ([]storage.Bill, Summary, error) {
	bills, err := s.store.ListBills(ctx, storage.BillFilter{CustomerID: customerID})
	if err != nil {
		return nil, Summary{}, apperrors.Upstream(err, "list bills")
	}
	return bills, Aggregate(bills), nil
}
