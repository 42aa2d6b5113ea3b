package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return &GormStorage{db: db}, nil
}

// Migrate creates or alters tables to match the models. Production deployments
// use the goose migrations in internal/migrate instead.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Customer{},
		&ZipRate{},
		&Bill{},
		&Alert{},
		&Setting{},
		&ScheduledJob{},
		&CasbinRule{},
	)
}

func firstOrNil[T any](ctx context.Context, db *gorm.DB, query string, args ...any) (*T, error) {
	var out T
	result := db.WithContext(ctx).Where(query, args...).First(&out)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &out, nil
}

// Customers

func (s *GormStorage) ListCustomers(ctx context.Context) ([]Customer, error) {
	var customers []Customer
	result := s.db.WithContext(ctx).Order("id").Find(&customers)
	return customers, result.Error
}

func (s *GormStorage) GetCustomer(ctx context.Context, id uint) (*Customer, error) {
	return firstOrNil[Customer](ctx, s.db, "id = ?", id)
}

func (s *GormStorage) UpsertCustomer(ctx context.Context, c *Customer) error {
	if c.Type == "" {
		c.Type = CustomerResidential
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(c).Error
}

func (s *GormStorage) UpdateCustomerRate(ctx context.Context, id uint, rate decimal.NullDecimal, zipCode string) error {
	result := s.db.WithContext(ctx).Model(&Customer{}).Where("id = ?", id).Updates(map[string]any{
		"custom_rate_per_ccf": rate,
		"zip_code":            zipCode,
		"updated_at":          time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Zip rates

func (s *GormStorage) ListZipRates(ctx context.Context) ([]ZipRate, error) {
	var rates []ZipRate
	result := s.db.WithContext(ctx).Order("id").Find(&rates)
	return rates, result.Error
}

func (s *GormStorage) GetZipRate(ctx context.Context, id uint) (*ZipRate, error) {
	return firstOrNil[ZipRate](ctx, s.db, "id = ?", id)
}

func (s *GormStorage) CreateZipRate(ctx context.Context, zr *ZipRate) error {
	return s.db.WithContext(ctx).Create(zr).Error
}

// UpdateZipRate writes rate, description and active flag. The zip code is immutable.
func (s *GormStorage) UpdateZipRate(ctx context.Context, zr ZipRate) error {
	result := s.db.WithContext(ctx).Model(&ZipRate{}).Where("id = ?", zr.ID).Updates(map[string]any{
		"rate_per_ccf": zr.RatePerCCF,
		"description":  zr.Description,
		"active":       zr.Active,
		"updated_at":   time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStorage) DeleteZipRate(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&ZipRate{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Bills

func (s *GormStorage) ListBills(ctx context.Context, filter BillFilter) ([]Bill, error) {
	var bills []Bill
	q := s.db.WithContext(ctx).Order("billing_period_start desc").Order("id desc")
	if filter.CustomerID != 0 {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	result := q.Find(&bills)
	return bills, result.Error
}

func (s *GormStorage) GetBill(ctx context.Context, id uint) (*Bill, error) {
	return firstOrNil[Bill](ctx, s.db, "id = ?", id)
}

func (s *GormStorage) CreateBill(ctx context.Context, b *Bill) error {
	return s.db.WithContext(ctx).Create(b).Error
}

// Alerts

func (s *GormStorage) ListAlerts(ctx context.Context, filter AlertFilter) ([]Alert, error) {
	var alerts []Alert
	q := s.db.WithContext(ctx).Order("alert_date desc").Order("id desc")
	if filter.CustomerID != 0 {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	result := q.Find(&alerts)
	return alerts, result.Error
}

func (s *GormStorage) GetAlert(ctx context.Context, id uint) (*Alert, error) {
	return firstOrNil[Alert](ctx, s.db, "id = ?", id)
}

func (s *GormStorage) UpdateAlertStatus(ctx context.Context, id uint, status AlertStatus) error {
	result := s.db.WithContext(ctx).Model(&Alert{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStorage) CreateAlert(ctx context.Context, a *Alert) error {
	return s.db.WithContext(ctx).Create(a).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	setting, err := firstOrNil[Setting](ctx, s.db, "key = ?", key)
	if err != nil || setting == nil {
		return "", err
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Order("id").Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

// AcquireAdvisoryLock pins one pooled connection for the lifetime of the lock:
// postgres advisory locks belong to the session that took them.
func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (ReleaseFunc, bool, error) {
	if s.db.Dialector.Name() != "postgres" {
		// SQLite runs single instance; there is nothing to contend with.
		return func(context.Context) error { return nil }, true, nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, false, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("advisory lock %d: pin connection: %w", key, err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		discardConn(conn)
		return nil, false, fmt.Errorf("advisory lock %d: %w", key, err)
	}
	if !ok {
		conn.Close()
		return nil, false, nil
	}
	return func(ctx context.Context) error {
		var released bool
		if err := conn.QueryRowContext(ctx, "SELECT pg_advisory_unlock($1)", key).Scan(&released); err != nil {
			discardConn(conn)
			return fmt.Errorf("advisory unlock %d: %w", key, err)
		}
		if !released {
			discardConn(conn)
			return fmt.Errorf("advisory unlock %d: lock not held by this session", key)
		}
		return conn.Close()
	}, true, nil
}

// discardConn drops conn from the pool instead of returning it, which ends the
// postgres session and with it any advisory lock it still holds.
func discardConn(conn *sql.Conn) {
	_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	_ = conn.Close()
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}

func (s *GormStorage) GetScheduledJob(ctx context.Context, name string) (*ScheduledJob, error) {
	return firstOrNil[ScheduledJob](ctx, s.db, "name = ?", name)
}

// DBStats exposes the connection pool statistics of the underlying sql.DB.
func (s *GormStorage) DBStats() (sql.DBStats, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return sql.DBStats{}, err
	}
	return sqlDB.Stats(), nil
}
