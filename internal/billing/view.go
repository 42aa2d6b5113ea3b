package billing

import (
	"sort"
	"strings"

	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/storage"
)

// ChargeEntry is one customer row of the admin charges screen.
type ChargeEntry struct {
	Customer storage.Customer `json:"customer"`
	Rate     rates.Resolution `json:"rate"`
	Summary  Summary          `json:"summary"`
	Expanded bool             `json:"expanded"`
	// Bills is populated only for expanded entries.
	Bills []storage.Bill `json:"bills,omitempty"`
	// Error is set when this customer's bills could not be loaded; Summary is then empty.
	Error string `json:"error,omitempty"`
}

// BuildChargesView keeps entries whose name or email contains search,
// case-insensitively. An empty or blank search keeps everything. Order is preserved.
func BuildChargesView(entries []ChargeEntry, search string) []ChargeEntry {
	needle := strings.ToLower(strings.TrimSpace(search))
	out := make([]ChargeEntry, 0, len(entries))
	for _, e := range entries {
		if needle == "" ||
			strings.Contains(strings.ToLower(e.Customer.Name), needle) ||
			strings.Contains(strings.ToLower(e.Customer.Email), needle) {
			out = append(out, e)
		}
	}
	return out
}

// SortByName orders entries by customer name ascending, case-insensitive,
// breaking ties by customer ID.
func SortByName(entries []ChargeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := strings.ToLower(entries[i].Customer.Name), strings.ToLower(entries[j].Customer.Name)
		if a != b {
			return a < b
		}
		return entries[i].Customer.ID < entries[j].Customer.ID
	})
}

// ExpandSet tracks which customers have their bill detail expanded. Any
// number may be expanded at once; expanding has no effect on aggregation.
type ExpandSet map[uint]struct{}

func NewExpandSet(ids ...uint) ExpandSet {
	s := make(ExpandSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ExpandSet) Expand(id uint)   { s[id] = struct{}{} }
func (s ExpandSet) Collapse(id uint) { delete(s, id) }

// Toggle flips the state and reports whether id is now expanded.
func (s ExpandSet) Toggle(id uint) bool {
	if s.Has(id) {
		s.Collapse(id)
		return false
	}
	s.Expand(id)
	return true
}

func (s ExpandSet) Has(id uint) bool {
	_, ok := s[id]
	return ok
}
