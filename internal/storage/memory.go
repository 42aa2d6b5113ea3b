package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests and
// simple single-process deployments.
type MemoryStorage struct {
	mu        sync.RWMutex
	customers map[uint]Customer
	zipRates  map[uint]ZipRate
	bills     map[uint]Bill
	alerts    map[uint]Alert
	settings  map[string]string
	jobs      map[string]ScheduledJob
	rules     []CasbinRule
	locks     map[int64]struct{}
	nextID    map[string]uint
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		customers: make(map[uint]Customer),
		zipRates:  make(map[uint]ZipRate),
		bills:     make(map[uint]Bill),
		alerts:    make(map[uint]Alert),
		settings:  make(map[string]string),
		jobs:      make(map[string]ScheduledJob),
		locks:     make(map[int64]struct{}),
		nextID:    make(map[string]uint),
	}
}

// assignID returns id when set, otherwise the next sequence value for table.
// Caller holds the write lock.
func (m *MemoryStorage) assignID(table string, id uint) uint {
	if id != 0 {
		if id > m.nextID[table] {
			m.nextID[table] = id
		}
		return id
	}
	m.nextID[table]++
	return m.nextID[table]
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func sortedValues[K comparable, V any](in map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// Customers

func (m *MemoryStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.customers, func(a, b Customer) bool { return a.ID < b.ID }), nil
}

func (m *MemoryStorage) GetCustomer(ctx context.Context, id uint) (*Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryStorage) UpsertCustomer(ctx context.Context, c *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	c.ID = m.assignID("customers", c.ID)
	if c.Type == "" {
		c.Type = CustomerResidential
	}
	if existing, ok := m.customers[c.ID]; ok {
		c.CreatedAt = existing.CreatedAt
	} else if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	m.customers[c.ID] = *c
	return nil
}

func (m *MemoryStorage) UpdateCustomerRate(ctx context.Context, id uint, rate decimal.NullDecimal, zipCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	c.CustomRatePerCCF = rate
	c.ZipCode = zipCode
	c.UpdatedAt = time.Now().UTC()
	m.customers[id] = c
	return nil
}

// Zip rates

func (m *MemoryStorage) ListZipRates(ctx context.Context) ([]ZipRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.zipRates, func(a, b ZipRate) bool { return a.ID < b.ID }), nil
}

func (m *MemoryStorage) GetZipRate(ctx context.Context, id uint) (*ZipRate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	zr, ok := m.zipRates[id]
	if !ok {
		return nil, nil
	}
	return &zr, nil
}

func (m *MemoryStorage) CreateZipRate(ctx context.Context, zr *ZipRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	zr.ID = m.assignID("zip_rates", zr.ID)
	zr.CreatedAt, zr.UpdatedAt = now, now
	m.zipRates[zr.ID] = *zr
	return nil
}

func (m *MemoryStorage) UpdateZipRate(ctx context.Context, zr ZipRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.zipRates[zr.ID]
	if !ok {
		return ErrNotFound
	}
	existing.RatePerCCF = zr.RatePerCCF
	existing.Description = zr.Description
	existing.Active = zr.Active
	existing.UpdatedAt = time.Now().UTC()
	m.zipRates[zr.ID] = existing
	return nil
}

func (m *MemoryStorage) DeleteZipRate(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.zipRates[id]; !ok {
		return ErrNotFound
	}
	delete(m.zipRates, id)
	return nil
}

// Bills

func (m *MemoryStorage) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Bill, 0)
	for _, b := range m.bills {
		if filter.CustomerID != 0 && b.CustomerID != filter.CustomerID {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.After(out[j].PeriodStart)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStorage) GetBill(ctx context.Context, id uint) (*Bill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryStorage) CreateBill(ctx context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = m.assignID("bills", b.ID)
	if b.Status == "" {
		b.Status = BillPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.bills[b.ID] = *b
	return nil
}

// Alerts

func (m *MemoryStorage) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Alert, 0)
	for _, a := range m.alerts {
		if filter.CustomerID != 0 && a.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AlertDate.Equal(out[j].AlertDate) {
			return out[i].AlertDate.After(out[j].AlertDate)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *MemoryStorage) GetAlert(ctx context.Context, id uint) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStorage) UpdateAlertStatus(ctx context.Context, id uint, status AlertStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	m.alerts[id] = a
	return nil
}

func (m *MemoryStorage) CreateAlert(ctx context.Context, a *Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.assignID("alerts", a.ID)
	if a.Status == "" {
		a.Status = AlertNew
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	m.alerts[a.ID] = *a
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Scheduled jobs

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (ReleaseFunc, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, held := m.locks[key]; held {
		return nil, false, nil
	}
	m.locks[key] = struct{}{}
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, held := m.locks[key]; !held {
			return fmt.Errorf("advisory unlock %d: lock not held", key)
		}
		delete(m.locks, key)
		return nil
	}, true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := 0
	if success {
		status = 1
	}
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

func (m *MemoryStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[name]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

// Casbin rules

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CasbinRule, len(m.rules))
	copy(out, m.rules)
	return out, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = m.assignID("casbin_rules", rule.ID)
	m.rules = append(m.rules, rule)
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rule.ID = 0
	kept := m.rules[:0]
	for _, r := range m.rules {
		r2 := r
		r2.ID = 0
		if r2 == rule {
			continue
		}
		kept = append(kept, r)
	}
	m.rules = kept
	return nil
}
