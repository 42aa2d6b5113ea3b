package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/storage"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultRate = decimal.RequireFromString("5.72")

func seed(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemory()
	customers := []*storage.Customer{
		{Name: "Zoe", Email: "zoe@example.com", ZipCode: "10001"},
		{Name: "adam", Email: "adam@example.com", CustomRatePerCCF: decimal.NewNullDecimal(dec("6.50")), ZipCode: "10001"},
		{Name: "Mia", Email: "mia@corp.example"},
	}
	for _, c := range customers {
		require.NoError(t, st.UpsertCustomer(ctx, c))
	}
	require.NoError(t, st.CreateZipRate(ctx, &storage.ZipRate{ZipCode: "10001", RatePerCCF: dec("5.00"), Active: true}))

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(cid uint, amount string, status storage.BillStatus, month int) {
		require.NoError(t, st.CreateBill(ctx, &storage.Bill{
			CustomerID:    cid,
			PeriodStart:   start.AddDate(0, month, 0),
			PeriodEnd:     start.AddDate(0, month+1, -1),
			TotalAmount:   dec(amount),
			TotalUsageCCF: dec("10"),
			Status:        status,
		}))
	}
	add(1, "100.00", storage.BillPaid, 0)
	add(1, "250.50", storage.BillOverdue, 1)
	add(1, "0.00", storage.BillPending, 2)
	add(2, "65.00", storage.BillSent, 0)
	return st
}

func TestChargesViewResolvesAggregatesAndSorts(t *testing.T) {
	svc := NewService(seed(t), defaultRate, 4, nil)

	view, err := svc.ChargesView(context.Background(), ChargesQuery{Expanded: NewExpandSet(1)})
	require.NoError(t, err)
	require.Len(t, view.Entries, 3)
	assert.False(t, view.CatalogDegraded)

	assert.Equal(t, []uint{2, 3, 1}, ids(view.Entries))

	adam, mia, zoe := view.Entries[0], view.Entries[1], view.Entries[2]
	assert.Equal(t, rates.ProvenanceCustom, adam.Rate.Provenance)
	assert.Equal(t, rates.ProvenanceDefault, mia.Rate.Provenance)
	assert.True(t, mia.Rate.Rate.Equal(defaultRate))
	assert.Equal(t, rates.ProvenanceZip, zoe.Rate.Provenance)

	assert.Equal(t, "350.5", zoe.Summary.TotalAmount.String())
	assert.Equal(t, 3, zoe.Summary.BillCount)
	assert.True(t, zoe.Expanded)
	assert.Len(t, zoe.Bills, 3)

	assert.False(t, adam.Expanded)
	assert.Nil(t, adam.Bills, "collapsed entries carry no bill detail")
	assert.Equal(t, 1, adam.Summary.BillCount)

	assert.Equal(t, 0, mia.Summary.BillCount)
}

func TestChargesViewSearch(t *testing.T) {
	svc := NewService(seed(t), defaultRate, 2, nil)
	view, err := svc.ChargesView(context.Background(), ChargesQuery{Search: "CORP"})
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, ids(view.Entries))
}

type degradedStore struct {
	storage.Storage
	failCatalog   bool
	failBillsFor  uint
	failCustomers bool
}

func (d degradedStore) ListZipRates(ctx context.Context) ([]storage.ZipRate, error) {
	if d.failCatalog {
		return nil, errors.New("catalog timeout")
	}
	return d.Storage.ListZipRates(ctx)
}

func (d degradedStore) ListBills(ctx context.Context, f storage.BillFilter) ([]storage.Bill, error) {
	if f.CustomerID == d.failBillsFor {
		return nil, errors.New("bills timeout")
	}
	return d.Storage.ListBills(ctx, f)
}

func (d degradedStore) ListCustomers(ctx context.Context) ([]storage.Customer, error) {
	if d.failCustomers {
		return nil, errors.New("customers timeout")
	}
	return d.Storage.ListCustomers(ctx)
}

func TestChargesViewCatalogFailureDegradesToDefault(t *testing.T) {
	svc := NewService(degradedStore{Storage: seed(t), failCatalog: true}, defaultRate, 4, nil)
	view, err := svc.ChargesView(context.Background(), ChargesQuery{})
	require.NoError(t, err)
	assert.True(t, view.CatalogDegraded)

	for _, e := range view.Entries {
		if e.Customer.CustomRatePerCCF.Valid {
			assert.Equal(t, rates.ProvenanceCustom, e.Rate.Provenance)
			continue
		}
		assert.Equal(t, rates.ProvenanceDefault, e.Rate.Provenance)
	}
}

func TestChargesViewBillFailureIsolated(t *testing.T) {
	svc := NewService(degradedStore{Storage: seed(t), failBillsFor: 1}, defaultRate, 4, nil)
	view, err := svc.ChargesView(context.Background(), ChargesQuery{})
	require.NoError(t, err)
	require.Len(t, view.Entries, 3)

	for _, e := range view.Entries {
		if e.Customer.ID == 1 {
			assert.Contains(t, e.Error, "bills timeout")
			assert.Equal(t, 0, e.Summary.BillCount)
			continue
		}
		assert.Empty(t, e.Error)
	}
}

func TestChargesViewCustomerListFailure(t *testing.T) {
	svc := NewService(degradedStore{Storage: seed(t), failCustomers: true}, defaultRate, 4, nil)
	_, err := svc.ChargesView(context.Background(), ChargesQuery{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstream))
}

func TestBillLookup(t *testing.T) {
	st := seed(t)
	svc := NewService(st, defaultRate, 1, nil)
	ctx := context.Background()

	b, c, err := svc.Bill(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint(1), b.CustomerID)
	assert.Equal(t, "Zoe", c.Name)

	_, _, err = svc.Bill(ctx, 999)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	require.NoError(t, st.CreateBill(ctx, &storage.Bill{CustomerID: 77, TotalAmount: dec("1")}))
	bills, _, err := svc.Bills(ctx, 77)
	require.NoError(t, err)
	_, orphanOwner, err := svc.Bill(ctx, bills[0].ID)
	require.NoError(t, err)
	assert.Nil(t, orphanOwner)
}

func TestCustomerBills(t *testing.T) {
	svc := NewService(seed(t), defaultRate, 1, nil)
	c, bills, sum, err := svc.CustomerBills(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Zoe", c.Name)
	assert.Len(t, bills, 3)
	assert.Equal(t, time.March, bills[0].PeriodStart.Month(), "newest period first")
	assert.Equal(t, "350.5", sum.TotalAmount.String())
}
