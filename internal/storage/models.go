package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerType classifies the account for display and reporting.
type CustomerType string

const (
	CustomerResidential CustomerType = "Residential"
	CustomerCommercial  CustomerType = "Commercial"
	CustomerIndustrial  CustomerType = "Industrial"
)

// Customer holds identity and the rate profile of a billed account.
// ZipCode "" means no zip assignment; CustomRatePerCCF.Valid=false means no custom rate.
type Customer struct {
	ID               uint                `json:"id" gorm:"primaryKey;column:id"`
	Name             string              `json:"customer_name" gorm:"column:customer_name;not null"`
	Email            string              `json:"email" gorm:"column:email"`
	Type             CustomerType        `json:"customer_type" gorm:"column:customer_type;default:Residential"`
	LocationID       string              `json:"location_id,omitempty" gorm:"column:location_id"`
	MailingAddress   string              `json:"mailing_address,omitempty" gorm:"column:mailing_address"`
	ZipCode          string              `json:"zip_code,omitempty" gorm:"column:zip_code;index"`
	CustomRatePerCCF decimal.NullDecimal `json:"custom_rate_per_ccf" gorm:"column:custom_rate_per_ccf;type:numeric(10,4)"`
	CreatedAt        time.Time           `json:"created_at" gorm:"column:created_at"`
	UpdatedAt        time.Time           `json:"updated_at" gorm:"column:updated_at"`
}

// ZipRate is one row of the area rate catalog. Several rows may share a zip code.
type ZipRate struct {
	ID          uint            `json:"id" gorm:"primaryKey;column:id"`
	ZipCode     string          `json:"zip_code" gorm:"column:zip_code;not null;index"`
	RatePerCCF  decimal.Decimal `json:"rate_per_ccf" gorm:"column:rate_per_ccf;type:numeric(10,4);not null"`
	Description string          `json:"description,omitempty" gorm:"column:description"`
	Active      bool            `json:"active" gorm:"column:active"`
	CreatedAt   time.Time       `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time       `json:"updated_at" gorm:"column:updated_at"`
}

type BillStatus string

const (
	BillPending BillStatus = "pending"
	BillSent    BillStatus = "sent"
	BillPaid    BillStatus = "paid"
	BillOverdue BillStatus = "overdue"
)

func (s BillStatus) Valid() bool {
	switch s {
	case BillPending, BillSent, BillPaid, BillOverdue:
		return true
	}
	return false
}

// Bill is an immutable, already generated bill record.
type Bill struct {
	ID            uint            `json:"id" gorm:"primaryKey;column:id"`
	CustomerID    uint            `json:"customer_id" gorm:"column:customer_id;not null;index"`
	PeriodStart   time.Time       `json:"billing_period_start" gorm:"column:billing_period_start"`
	PeriodEnd     time.Time       `json:"billing_period_end" gorm:"column:billing_period_end"`
	TotalUsageCCF decimal.Decimal `json:"total_usage_ccf" gorm:"column:total_usage_ccf;type:numeric(12,4)"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"column:total_amount;type:numeric(12,2)"`
	DueDate       time.Time       `json:"due_date" gorm:"column:due_date"`
	Status        BillStatus      `json:"status" gorm:"column:status;default:pending"`
	IsEstimated   bool            `json:"is_estimated" gorm:"column:is_estimated"`
	SentAt        *time.Time      `json:"sent_at,omitempty" gorm:"column:sent_at"`
	PaidAt        *time.Time      `json:"paid_at,omitempty" gorm:"column:paid_at"`
	CreatedAt     time.Time       `json:"created_at" gorm:"column:created_at"`
}

type AlertType string

const (
	AlertSpike          AlertType = "spike"
	AlertLeak           AlertType = "leak"
	AlertUnusualPattern AlertType = "unusual_pattern"
	AlertOther          AlertType = "other"
)

type AlertStatus string

const (
	AlertNew          AlertStatus = "new"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)

// Alert is a usage anomaly produced by the external detection job.
type Alert struct {
	ID                  uint            `json:"id" gorm:"primaryKey;column:id"`
	CustomerID          uint            `json:"customer_id" gorm:"column:customer_id;index"`
	AlertDate           time.Time       `json:"alert_date" gorm:"column:alert_date"`
	Type                AlertType       `json:"alert_type" gorm:"column:alert_type"`
	RiskScore           decimal.Decimal `json:"risk_score" gorm:"column:risk_score;type:numeric(5,2)"`
	UsageCCF            decimal.Decimal `json:"usage_ccf" gorm:"column:usage_ccf;type:numeric(12,4)"`
	ExpectedUsageCCF    decimal.Decimal `json:"expected_usage_ccf" gorm:"column:expected_usage_ccf;type:numeric(12,4)"`
	DeviationPercentage decimal.Decimal `json:"deviation_percentage" gorm:"column:deviation_percentage;type:numeric(8,2)"`
	Status              AlertStatus     `json:"status" gorm:"column:status;default:new"`
	CreatedAt           time.Time       `json:"created_at" gorm:"column:created_at"`
}

type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

type ScheduledJob struct {
	Name           string    `json:"name" gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `json:"last_run_at" gorm:"column:last_run_at"`
	LastDurationMs int64     `json:"last_duration_ms" gorm:"column:last_duration_ms"`
	LastSuccess    int       `json:"last_success" gorm:"column:last_success"`
	LastError      string    `json:"last_error,omitempty" gorm:"column:last_error"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// BillFilter narrows ListBills. Zero CustomerID lists every customer's bills.
type BillFilter struct {
	CustomerID uint
}

// AlertFilter narrows ListAlerts. Empty Status lists every alert.
type AlertFilter struct {
	CustomerID uint
	Status     AlertStatus
}
