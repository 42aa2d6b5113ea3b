package anomaly

import (
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

var (
	highThreshold   = decimal.NewFromInt(75)
	mediumThreshold = decimal.NewFromInt(50)
)

// Classify maps a 0-100 risk score to a display severity: >= 75 high,
// >= 50 medium, anything lower is low.
func Classify(risk decimal.Decimal) Severity {
	switch {
	case risk.GreaterThanOrEqual(highThreshold):
		return SeverityHigh
	case risk.GreaterThanOrEqual(mediumThreshold):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// View is an alert decorated with its severity for display.
type View struct {
	storage.Alert
	Severity Severity `json:"severity"`
}

func Decorate(alerts []storage.Alert) []View {
	out := make([]View, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, View{Alert: a, Severity: Classify(a.RiskScore)})
	}
	return out
}

// ParseStatus accepts "" (any) or one of the known alert statuses.
func ParseStatus(s string) (storage.AlertStatus, bool) {
	switch st := storage.AlertStatus(s); st {
	case "", storage.AlertNew, storage.AlertAcknowledged, storage.AlertResolved:
		return st, true
	}
	return "", false
}
