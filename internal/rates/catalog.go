package rates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/storage"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/shopspring/decimal"
)

// RateAssignment replaces a customer's rate profile. An invalid CustomRate
// clears the custom rate; an empty ZipCode clears the zip assignment.
// KeepCustomRate and KeepZipCode leave that half of the profile as stored.
type RateAssignment struct {
	CustomerID     uint
	CustomRate     decimal.NullDecimal
	ZipCode        string
	KeepCustomRate bool
	KeepZipCode    bool
}

type ZipRateInput struct {
	ZipCode     string
	RatePerCCF  *decimal.Decimal
	Description string
}

// ZipRatePatch updates an existing catalog row. The zip code cannot change.
type ZipRatePatch struct {
	RatePerCCF  *decimal.Decimal
	Description *string
	Active      *bool
}

// Service owns the write side of customer rate profiles and the zip catalog.
// Every mutation refetches and returns the full snapshot it touched.
type Service struct {
	store    storage.Storage
	guard    inflight.Guard
	resolver Resolver
}

func NewService(st storage.Storage, guard inflight.Guard, defaultRate decimal.Decimal) *Service {
	if guard == nil {
		guard = inflight.Noop{}
	}
	return &Service{store: st, guard: guard, resolver: Resolver{DefaultRate: defaultRate}}
}

func (s *Service) DefaultRate() decimal.Decimal { return s.resolver.DefaultRate }

// ResolveCustomer fetches the customer and catalog and resolves the effective rate.
func (s *Service) ResolveCustomer(ctx context.Context, customerID uint) (*storage.Customer, Resolution, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return nil, Resolution{}, apperrors.Upstream(err, "load customer")
	}
	if c == nil {
		return nil, Resolution{}, apperrors.NotFound(fmt.Sprintf("customer %d not found", customerID))
	}
	catalog, err := s.store.ListZipRates(ctx)
	if err != nil {
		return nil, Resolution{}, apperrors.Upstream(err, "load zip rate catalog")
	}
	res := s.resolver.Resolve(*c, catalog)
	metrics.RateResolutionsTotal.WithLabelValues(string(res.Provenance)).Inc()
	return c, res, nil
}

func validateRate(field string, rate decimal.Decimal) error {
	if rate.IsNegative() {
		return apperrors.Validation(field + " must not be negative").
			WithDetails(map[string]string{"field": field, "value": rate.String()})
	}
	return nil
}

// SetCustomerRate replaces the customer's rate profile and returns the refreshed customer list.
func (s *Service) SetCustomerRate(ctx context.Context, in RateAssignment) ([]storage.Customer, error) {
	if in.CustomRate.Valid {
		if err := validateRate("custom_rate_per_ccf", in.CustomRate.Decimal); err != nil {
			return nil, err
		}
	}
	release, err := s.guard.Acquire(ctx, inflight.Entity("customer", in.CustomerID))
	if err != nil {
		return nil, err
	}
	defer release()

	rate, zip := in.CustomRate, strings.TrimSpace(in.ZipCode)
	if in.KeepCustomRate || in.KeepZipCode {
		current, err := s.store.GetCustomer(ctx, in.CustomerID)
		if err != nil {
			return nil, apperrors.Upstream(err, "load customer")
		}
		if current == nil {
			return nil, s.mutationError(storage.ErrNotFound, "customer", in.CustomerID, "set_customer_rate")
		}
		if in.KeepCustomRate {
			rate = current.CustomRatePerCCF
		}
		if in.KeepZipCode {
			zip = current.ZipCode
		}
	}

	err = s.store.UpdateCustomerRate(ctx, in.CustomerID, rate, zip)
	if err := s.mutationError(err, "customer", in.CustomerID, "set_customer_rate"); err != nil {
		return nil, err
	}
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, apperrors.Upstream(err, "refetch customers")
	}
	return customers, nil
}

func (s *Service) ZipRates(ctx context.Context) ([]storage.ZipRate, error) {
	catalog, err := s.store.ListZipRates(ctx)
	if err != nil {
		return nil, apperrors.Upstream(err, "load zip rate catalog")
	}
	return catalog, nil
}

// CreateZipRate adds an active catalog row.
func (s *Service) CreateZipRate(ctx context.Context, in ZipRateInput) ([]storage.ZipRate, error) {
	zip := strings.TrimSpace(in.ZipCode)
	if zip == "" {
		return nil, apperrors.Validation("zip_code is required").WithDetails(map[string]string{"field": "zip_code"})
	}
	if in.RatePerCCF == nil {
		return nil, apperrors.Validation("rate_per_ccf is required").WithDetails(map[string]string{"field": "rate_per_ccf"})
	}
	if err := validateRate("rate_per_ccf", *in.RatePerCCF); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, inflight.Entity("zip_rate", "new:"+zip))
	if err != nil {
		return nil, err
	}
	defer release()

	zr := &storage.ZipRate{
		ZipCode:     zip,
		RatePerCCF:  *in.RatePerCCF,
		Description: strings.TrimSpace(in.Description),
		Active:      true,
	}
	if err := s.store.CreateZipRate(ctx, zr); err != nil {
		metrics.RateMutationsTotal.WithLabelValues("create", "error").Inc()
		return nil, apperrors.Upstream(err, "create zip rate")
	}
	metrics.RateMutationsTotal.WithLabelValues("create", "success").Inc()
	return s.ZipRates(ctx)
}

// UpdateZipRate changes rate, and optionally description and active flag, of a catalog row.
func (s *Service) UpdateZipRate(ctx context.Context, id uint, patch ZipRatePatch) ([]storage.ZipRate, error) {
	if patch.RatePerCCF == nil {
		return nil, apperrors.Validation("rate_per_ccf is required").WithDetails(map[string]string{"field": "rate_per_ccf"})
	}
	if err := validateRate("rate_per_ccf", *patch.RatePerCCF); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, inflight.Entity("zip_rate", id))
	if err != nil {
		return nil, err
	}
	defer release()

	current, err := s.store.GetZipRate(ctx, id)
	if err != nil {
		return nil, apperrors.Upstream(err, "load zip rate")
	}
	if current == nil {
		metrics.RateMutationsTotal.WithLabelValues("update", "not_found").Inc()
		return nil, apperrors.NotFound(fmt.Sprintf("zip rate %d not found", id))
	}
	next := *current
	next.RatePerCCF = *patch.RatePerCCF
	if patch.Description != nil {
		next.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Active != nil {
		next.Active = *patch.Active
	}
	err = s.store.UpdateZipRate(ctx, next)
	if err := s.mutationError(err, "zip rate", id, "update"); err != nil {
		return nil, err
	}
	return s.ZipRates(ctx)
}

// DeleteZipRate removes the catalog row permanently.
func (s *Service) DeleteZipRate(ctx context.Context, id uint) ([]storage.ZipRate, error) {
	release, err := s.guard.Acquire(ctx, inflight.Entity("zip_rate", id))
	if err != nil {
		return nil, err
	}
	defer release()

	err = s.store.DeleteZipRate(ctx, id)
	if err := s.mutationError(err, "zip rate", id, "delete"); err != nil {
		return nil, err
	}
	return s.ZipRates(ctx)
}

func (s *Service) mutationError(err error, kind string, id uint, op string) error {
	switch {
	case err == nil:
		metrics.RateMutationsTotal.WithLabelValues(op, "success").Inc()
		return nil
	case errors.Is(err, storage.ErrNotFound):
		metrics.RateMutationsTotal.WithLabelValues(op, "not_found").Inc()
		return apperrors.NotFound(fmt.Sprintf("%s %d not found", kind, id))
	default:
		metrics.RateMutationsTotal.WithLabelValues(op, "error").Inc()
		return apperrors.Upstream(err, op)
	}
}
