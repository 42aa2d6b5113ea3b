package rates

import (
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/shopspring/decimal"
)

// Provenance names the rule that produced an effective rate.
type Provenance string

const (
	ProvenanceCustom  Provenance = "custom"
	ProvenanceZip     Provenance = "zip"
	ProvenanceDefault Provenance = "default"
)

// Resolution is the effective per-CCF rate for one customer.
type Resolution struct {
	Rate       decimal.Decimal `json:"rate"`
	Provenance Provenance      `json:"provenance"`
	// ZipRateID is the catalog row used when Provenance is zip.
	ZipRateID uint `json:"zip_rate_id,omitempty"`
}

// Resolve applies custom > zip > default precedence. When several active
// catalog rows share the customer's zip, the lowest ID wins regardless of
// catalog order. Resolve does not modify its arguments.
func Resolve(c storage.Customer, catalog []storage.ZipRate, defaultRate decimal.Decimal) Resolution {
	if c.CustomRatePerCCF.Valid {
		return Resolution{Rate: c.CustomRatePerCCF.Decimal, Provenance: ProvenanceCustom}
	}
	if c.ZipCode != "" {
		if zr, ok := activeZipRate(catalog, c.ZipCode); ok {
			return Resolution{Rate: zr.RatePerCCF, Provenance: ProvenanceZip, ZipRateID: zr.ID}
		}
	}
	return Resolution{Rate: defaultRate, Provenance: ProvenanceDefault}
}

func activeZipRate(catalog []storage.ZipRate, zip string) (storage.ZipRate, bool) {
	var (
		best  storage.ZipRate
		found bool
	)
	for _, zr := range catalog {
		if !zr.Active || zr.ZipCode != zip {
			continue
		}
		if !found || zr.ID < best.ID {
			best, found = zr, true
		}
	}
	return best, found
}

// Resolver binds the configured default rate.
type Resolver struct {
	DefaultRate decimal.Decimal
}

func (r Resolver) Resolve(c storage.Customer, catalog []storage.ZipRate) Resolution {
	return Resolve(c, catalog, r.DefaultRate)
}
