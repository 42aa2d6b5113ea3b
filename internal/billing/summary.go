package billing

import (
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/shopspring/decimal"
)

// Summary folds one customer's bills. Amounts are exact decimal sums of the
// stored bill amounts, never recomputed from usage and the current rate.
type Summary struct {
	BillCount     int             `json:"bill_count"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TotalUsageCCF decimal.Decimal `json:"total_usage_ccf"`
	// StatusCounts holds only statuses that occur at least once.
	StatusCounts   map[storage.BillStatus]int             `json:"status_counts"`
	AmountByStatus map[storage.BillStatus]decimal.Decimal `json:"amount_by_status"`
}

// Aggregate does not sort or filter; the result is independent of bill order.
func Aggregate(bills []storage.Bill) Summary {
	s := Summary{
		BillCount:      len(bills),
		TotalAmount:    decimal.Zero,
		TotalUsageCCF:  decimal.Zero,
		StatusCounts:   make(map[storage.BillStatus]int),
		AmountByStatus: make(map[storage.BillStatus]decimal.Decimal),
	}
	for _, b := range bills {
		s.TotalAmount = s.TotalAmount.Add(b.TotalAmount)
		s.TotalUsageCCF = s.TotalUsageCCF.Add(b.TotalUsageCCF)
		s.StatusCounts[b.Status]++
		s.AmountByStatus[b.Status] = s.AmountByStatus[b.Status].Add(b.TotalAmount)
	}
	return s
}

// Paid is the amount already settled.
func (s Summary) Paid() decimal.Decimal {
	return s.AmountByStatus[storage.BillPaid]
}

// Outstanding is the amount billed but not yet paid nor overdue (pending + sent).
func (s Summary) Outstanding() decimal.Decimal {
	return s.AmountByStatus[storage.BillPending].Add(s.AmountByStatus[storage.BillSent])
}

func (s Summary) Overdue() decimal.Decimal {
	return s.AmountByStatus[storage.BillOverdue]
}
