package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by mutations whose target row does not exist.
// Lookups return (nil, nil) instead.
var ErrNotFound = errors.New("storage: record not found")

// ReleaseFunc gives back an advisory lock. It errors when the lock was no
// longer held by the session that took it.
type ReleaseFunc func(ctx context.Context) error

// Storage abstracts persistence for customers, the zip rate catalog, bills and alerts.
type Storage interface {
	// Customers
	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id uint) (*Customer, error)
	UpsertCustomer(ctx context.Context, c *Customer) error
	// UpdateCustomerRate replaces the customer's rate profile. Bills are untouched.
	UpdateCustomerRate(ctx context.Context, id uint, rate decimal.NullDecimal, zipCode string) error

	// Zip rate catalog, ordered by ID.
	ListZipRates(ctx context.Context) ([]ZipRate, error)
	GetZipRate(ctx context.Context, id uint) (*ZipRate, error)
	CreateZipRate(ctx context.Context, zr *ZipRate) error
	UpdateZipRate(ctx context.Context, zr ZipRate) error
	DeleteZipRate(ctx context.Context, id uint) error

	// Bills, newest period first.
	ListBills(ctx context.Context, filter BillFilter) ([]Bill, error)
	GetBill(ctx context.Context, id uint) (*Bill, error)
	CreateBill(ctx context.Context, b *Bill) error

	// Alerts, newest first.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error)
	GetAlert(ctx context.Context, id uint) (*Alert, error)
	CreateAlert(ctx context.Context, a *Alert) error
	UpdateAlertStatus(ctx context.Context, id uint, status AlertStatus) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
	GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error)
	// AcquireAdvisoryLock tries to take the lock without blocking. When ok is
	// true the caller must call release exactly once.
	AcquireAdvisoryLock(ctx context.Context, key int64) (release ReleaseFunc, ok bool, err error)

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}
