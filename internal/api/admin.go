package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/rates"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 32 << 20

// listCharges
// @Summary Customer charges overview
// @Description Effective rate, provenance and bill summary per customer, filtered by name or email
// @Tags admin
// @Produce json
// @Param search query string false "Case-insensitive substring of name or email"
// @Param expand query string false "Comma-separated customer IDs whose bills are included"
// @Success 200 {object} billing.ChargesView
// @Router /admin/charges [get]
func (s *server) listCharges(w http.ResponseWriter, r *http.Request) error {
	expanded, err := parseExpand(r.URL.Query().Get("expand"))
	if err != nil {
		return err
	}
	view, err := s.Billing.ChargesView(r.Context(), billing.ChargesQuery{
		Search:   r.URL.Query().Get("search"),
		Expanded: expanded,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

func parseExpand(raw string) (billing.ExpandSet, error) {
	set := billing.NewExpandSet()
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, apperrors.Validation("invalid expand id").WithDetails(map[string]string{"expand": part})
		}
		set.Expand(uint(id))
	}
	return set, nil
}

// rateAssignmentRequest fields are tri-state: omitted keeps the stored value,
// null (or "" for the zip) clears it.
type rateAssignmentRequest struct {
	CustomRatePerCCF presence[decimal.Decimal] `json:"custom_rate_per_ccf"`
	ZipCode          presence[string]          `json:"zip_code"`
}

const maxZipCodeLen = 10

// setCustomerRate
// @Summary Update a customer's rate profile
// @Description Omitted fields are kept. A null custom rate clears it; a null or empty zip code clears the zip assignment
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {array} storage.Customer
// @Router /admin/customers/{id}/rate [put]
func (s *server) setCustomerRate(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req rateAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	in := rates.RateAssignment{
		CustomerID:     id,
		KeepCustomRate: !req.CustomRatePerCCF.Set,
		KeepZipCode:    !req.ZipCode.Set,
	}
	if v := req.CustomRatePerCCF.Value; v != nil {
		in.CustomRate = decimal.NewNullDecimal(*v)
	}
	if v := req.ZipCode.Value; v != nil {
		if len(*v) > maxZipCodeLen {
			return apperrors.Validation("validation failed").
				WithDetails(map[string]string{"zip_code": fmt.Sprintf("must be at most %d characters", maxZipCodeLen)})
		}
		in.ZipCode = *v
	}
	customers, err := s.Rates.SetCustomerRate(r.Context(), in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, customers)
	return nil
}

// listZipRates
// @Summary List the zip rate catalog
// @Tags admin
// @Produce json
// @Success 200 {array} storage.ZipRate
// @Router /admin/zip-rates [get]
func (s *server) listZipRates(w http.ResponseWriter, r *http.Request) error {
	catalog, err := s.Rates.ZipRates(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, catalog)
	return nil
}

type zipRateRequest struct {
	ZipCode     string           `json:"zip_code" validate:"required,max=10"`
	RatePerCCF  *decimal.Decimal `json:"rate_per_ccf" validate:"required"`
	Description string           `json:"description" validate:"max=255"`
}

// createZipRate
// @Summary Add a zip rate
// @Tags admin
// @Accept json
// @Produce json
// @Success 201 {array} storage.ZipRate
// @Router /admin/zip-rates [post]
func (s *server) createZipRate(w http.ResponseWriter, r *http.Request) error {
	var req zipRateRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	catalog, err := s.Rates.CreateZipRate(r.Context(), rates.ZipRateInput{
		ZipCode:     req.ZipCode,
		RatePerCCF:  req.RatePerCCF,
		Description: req.Description,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, catalog)
	return nil
}

type zipRatePatchRequest struct {
	RatePerCCF  *decimal.Decimal `json:"rate_per_ccf" validate:"required"`
	Description *string          `json:"description" validate:"omitempty,max=255"`
	Active      *bool            `json:"active"`
	// ZipCode is accepted and ignored; catalog rows keep their zip.
	ZipCode string `json:"zip_code"`
}

// updateZipRate
// @Summary Update a zip rate
// @Description The zip code of a catalog row cannot change
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Zip rate ID"
// @Success 200 {array} storage.ZipRate
// @Router /admin/zip-rates/{id} [put]
func (s *server) updateZipRate(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	var req zipRatePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}
	catalog, err := s.Rates.UpdateZipRate(r.Context(), id, rates.ZipRatePatch{
		RatePerCCF:  req.RatePerCCF,
		Description: req.Description,
		Active:      req.Active,
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, catalog)
	return nil
}

// deleteZipRate
// @Summary Delete a zip rate
// @Tags admin
// @Produce json
// @Param id path int true "Zip rate ID"
// @Success 200 {array} storage.ZipRate
// @Router /admin/zip-rates/{id} [delete]
func (s *server) deleteZipRate(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	catalog, err := s.Rates.DeleteZipRate(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, catalog)
	return nil
}

func (s *server) bulk() (BulkOps, error) {
	if s.Bulk == nil {
		return nil, apperrors.New(apperrors.CodeUpstream, "bulk operations service not configured")
	}
	return s.Bulk, nil
}

// importUsage
// @Summary Import a usage file
// @Description Uploads a CSV or XLSX usage file to the import service
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Usage file"
// @Success 200 {object} bulkops.ImportResult
// @Router /admin/import/usage [post]
func (s *server) importUsage(w http.ResponseWriter, r *http.Request) error {
	bulk, err := s.bulk()
	if err != nil {
		return err
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return apperrors.Validation("no file uploaded")
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return apperrors.Validation("no file uploaded")
	}
	defer file.Close()
	if header.Filename == "" {
		return apperrors.Validation("no file selected")
	}

	release, err := s.Guard.Acquire(r.Context(), inflight.Entity("bulk", "import"))
	if err != nil {
		return err
	}
	defer release()

	res, err := bulk.Import(r.Context(), header.Filename, file)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

// detectAnomalies
// @Summary Run anomaly detection for all customers
// @Tags admin
// @Produce json
// @Router /admin/detect-anomalies [post]
func (s *server) detectAnomalies(w http.ResponseWriter, r *http.Request) error {
	bulk, err := s.bulk()
	if err != nil {
		return err
	}
	release, err := s.Guard.Acquire(r.Context(), inflight.Entity("bulk", "detect_anomalies"))
	if err != nil {
		return err
	}
	defer release()

	n, err := bulk.DetectAnomalies(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"anomalies_detected": n})
	return nil
}

// generateHistoricalBills
// @Summary Backfill historical bills for all customers
// @Tags admin
// @Produce json
// @Router /admin/generate-historical-bills [post]
func (s *server) generateHistoricalBills(w http.ResponseWriter, r *http.Request) error {
	bulk, err := s.bulk()
	if err != nil {
		return err
	}
	release, err := s.Guard.Acquire(r.Context(), inflight.Entity("bulk", "generate_historical_bills"))
	if err != nil {
		return err
	}
	defer release()

	n, err := bulk.GenerateHistoricalBills(r.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]int{"bills_generated": n})
	return nil
}
