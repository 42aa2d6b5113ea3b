package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	gs, err := NewGormStorage("sqlite", filepath.Join(t.TempDir(), "ebill.db"))
	require.NoError(t, err)
	require.NoError(t, gs.Migrate(context.Background()))
	t.Cleanup(func() { gs.Close() })
	return map[string]Storage{
		"memory": NewMemory(),
		"sqlite": gs,
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCustomerRateProfile(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := &Customer{Name: "Ada Lovelace", Email: "ada@example.com", ZipCode: "90210"}
			require.NoError(t, st.UpsertCustomer(ctx, c))
			require.NotZero(t, c.ID)

			rate := decimal.NewNullDecimal(decimal.RequireFromString("6.50"))
			require.NoError(t, st.UpdateCustomerRate(ctx, c.ID, rate, ""))

			got, err := st.GetCustomer(ctx, c.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.True(t, got.CustomRatePerCCF.Valid)
			assert.True(t, got.CustomRatePerCCF.Decimal.Equal(decimal.RequireFromString("6.5")))
			assert.Equal(t, "", got.ZipCode)
			assert.Equal(t, CustomerResidential, got.Type)

			require.NoError(t, st.UpdateCustomerRate(ctx, c.ID, decimal.NullDecimal{}, "10001"))
			got, err = st.GetCustomer(ctx, c.ID)
			require.NoError(t, err)
			assert.False(t, got.CustomRatePerCCF.Valid)
			assert.Equal(t, "10001", got.ZipCode)

			err = st.UpdateCustomerRate(ctx, 9999, decimal.NullDecimal{}, "")
			assert.True(t, errors.Is(err, ErrNotFound))

			missing, err := st.GetCustomer(ctx, 9999)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestZipRateCatalogLifecycle(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := &ZipRate{ZipCode: "10001", RatePerCCF: decimal.RequireFromString("5.00"), Active: true}
			second := &ZipRate{ZipCode: "10001", RatePerCCF: decimal.RequireFromString("4.25"), Description: "old", Active: false}
			require.NoError(t, st.CreateZipRate(ctx, first))
			require.NoError(t, st.CreateZipRate(ctx, second))

			list, err := st.ListZipRates(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Less(t, list[0].ID, list[1].ID)
			assert.False(t, list[1].Active)

			require.NoError(t, st.UpdateZipRate(ctx, ZipRate{
				ID:          first.ID,
				ZipCode:     "ignored",
				RatePerCCF:  decimal.RequireFromString("5.25"),
				Description: "summer",
				Active:      true,
			}))
			got, err := st.GetZipRate(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "10001", got.ZipCode)
			assert.Equal(t, "summer", got.Description)
			assert.True(t, got.RatePerCCF.Equal(decimal.RequireFromString("5.25")))

			require.NoError(t, st.DeleteZipRate(ctx, second.ID))
			assert.True(t, errors.Is(st.DeleteZipRate(ctx, second.ID), ErrNotFound))
			assert.True(t, errors.Is(st.UpdateZipRate(ctx, ZipRate{ID: second.ID}), ErrNotFound))

			list, err = st.ListZipRates(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestListBillsNewestFirst(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, m := range []time.Month{time.January, time.March, time.February} {
				b := &Bill{
					CustomerID:    uint(1 + i%2),
					PeriodStart:   day(2025, m, 1),
					PeriodEnd:     day(2025, m, 28),
					TotalUsageCCF: decimal.NewFromInt(10),
					TotalAmount:   decimal.RequireFromString("57.20"),
					DueDate:       day(2025, m+1, 15),
					Status:        BillPaid,
				}
				require.NoError(t, st.CreateBill(ctx, b))
			}

			all, err := st.ListBills(ctx, BillFilter{})
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, time.March, all[0].PeriodStart.Month())
			assert.Equal(t, time.January, all[2].PeriodStart.Month())

			mine, err := st.ListBills(ctx, BillFilter{CustomerID: 2})
			require.NoError(t, err)
			require.Len(t, mine, 1)
			assert.True(t, mine[0].TotalAmount.Equal(decimal.RequireFromString("57.2")))

			b, err := st.GetBill(ctx, mine[0].ID)
			require.NoError(t, err)
			assert.Equal(t, BillPaid, b.Status)
		})
	}
}

func TestAlertsFilterByStatus(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, st.CreateAlert(ctx, &Alert{CustomerID: 1, AlertDate: day(2025, 5, 1), Type: AlertLeak, RiskScore: decimal.NewFromInt(80), Status: AlertNew}))
			require.NoError(t, st.CreateAlert(ctx, &Alert{CustomerID: 1, AlertDate: day(2025, 5, 2), Type: AlertSpike, RiskScore: decimal.NewFromInt(40), Status: AlertResolved}))

			open, err := st.ListAlerts(ctx, AlertFilter{Status: AlertNew})
			require.NoError(t, err)
			require.Len(t, open, 1)
			assert.Equal(t, AlertLeak, open[0].Type)

			all, err := st.ListAlerts(ctx, AlertFilter{})
			require.NoError(t, err)
			require.Len(t, all, 2)
			assert.Equal(t, AlertSpike, all[0].Type)
		})
	}
}

func TestSettingsAndScheduledJobs(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			v, err := st.GetSetting(ctx, "digest.last")
			require.NoError(t, err)
			assert.Empty(t, v)
			require.NoError(t, st.SetSetting(ctx, "digest.last", "a"))
			require.NoError(t, st.SetSetting(ctx, "digest.last", "b"))
			v, err = st.GetSetting(ctx, "digest.last")
			require.NoError(t, err)
			assert.Equal(t, "b", v)

			started := time.Now().UTC()
			require.NoError(t, st.UpdateScheduledJob(ctx, "billing_digest", started, 1500*time.Millisecond, false, "boom"))
			require.NoError(t, st.UpdateScheduledJob(ctx, "billing_digest", started, 2*time.Second, true, ""))
			job, err := st.GetScheduledJob(ctx, "billing_digest")
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, int64(2000), job.LastDurationMs)
			assert.Equal(t, 1, job.LastSuccess)
			assert.Empty(t, job.LastError)

			release, ok, err := st.AcquireAdvisoryLock(ctx, 42)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, release(ctx))
		})
	}
}

func TestMemoryAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	release, ok, err := st.AcquireAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = st.AcquireAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must see the lock held")

	other, ok, err := st.AcquireAdvisoryLock(ctx, 8)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	assert.Error(t, release(ctx), "double release must be reported")

	again, ok, err := st.AcquireAdvisoryLock(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, again(ctx))
}

func TestAlertAcknowledge(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := &Alert{CustomerID: 1, AlertDate: day(2025, 5, 1), Type: AlertLeak, RiskScore: decimal.NewFromInt(80), Status: AlertNew}
			require.NoError(t, st.CreateAlert(ctx, a))

			require.NoError(t, st.UpdateAlertStatus(ctx, a.ID, AlertAcknowledged))
			got, err := st.GetAlert(ctx, a.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, AlertAcknowledged, got.Status)

			assert.True(t, errors.Is(st.UpdateAlertStatus(ctx, 9999, AlertResolved), ErrNotFound))
			missing, err := st.GetAlert(ctx, 9999)
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestCasbinRules(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rule := CasbinRule{PType: "g", V0: "alice", V1: "admin"}
			require.NoError(t, st.AddCasbinRule(ctx, rule))
			require.NoError(t, st.AddCasbinRule(ctx, CasbinRule{PType: "g", V0: "bob", V1: "billing"}))

			rules, err := st.LoadCasbinRules(ctx)
			require.NoError(t, err)
			assert.Len(t, rules, 2)

			require.NoError(t, st.RemoveCasbinRule(ctx, rule))
			rules, err = st.LoadCasbinRules(ctx)
			require.NoError(t, err)
			require.Len(t, rules, 1)
			assert.Equal(t, "bob", rules[0].V0)
		})
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	assert.Error(t, err)

	st, err := Open(context.Background(), Config{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStorage{}, st)
}
