package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/bher20/ebillmanager/internal/auth"
	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/statement"
	"github.com/bher20/ebillmanager/internal/storage"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/shopspring/decimal"
)

type billsResponse struct {
	Bills       []storage.Bill  `json:"bills"`
	Summary     billing.Summary `json:"summary"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Overdue     decimal.Decimal `json:"overdue"`
}

func forbiddenCustomer(id uint) error {
	return apperrors.New(apperrors.CodeForbidden, fmt.Sprintf("customer %d is not accessible", id))
}

// scopedCustomerID applies customer-role scoping to an optional customer filter.
func scopedCustomerID(r *http.Request, requested uint) (uint, error) {
	p, _ := auth.PrincipalFrom(r.Context())
	if p.Role != auth.RoleCustomer {
		return requested, nil
	}
	if requested != 0 && requested != p.CustomerID {
		return 0, forbiddenCustomer(requested)
	}
	return p.CustomerID, nil
}

// listBills
// @Summary List bills, newest period first
// @Tags billing
// @Produce json
// @Param customer_id query int false "Only this customer's bills"
// @Success 200 {object} billsResponse
// @Router /billing/bills [get]
func (s *server) listBills(w http.ResponseWriter, r *http.Request) error {
	requested, err := queryID(r, "customer_id")
	if err != nil {
		return err
	}
	customerID, err := scopedCustomerID(r, requested)
	if err != nil {
		return err
	}
	bills, summary, err := s.Billing.Bills(r.Context(), customerID)
	if err != nil {
		return err
	}
	if bills == nil {
		bills = []storage.Bill{}
	}
	writeJSON(w, http.StatusOK, billsResponse{
		Bills:       bills,
		Summary:     summary,
		Paid:        summary.Paid(),
		Outstanding: summary.Outstanding(),
		Overdue:     summary.Overdue(),
	})
	return nil
}

func (s *server) accessibleBill(r *http.Request) (*storage.Bill, *storage.Customer, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return nil, nil, err
	}
	b, c, err := s.Billing.Bill(r.Context(), id)
	if err != nil {
		return nil, nil, err
	}
	if !auth.CanAccessCustomer(r.Context(), b.CustomerID) {
		return nil, nil, forbiddenCustomer(b.CustomerID)
	}
	return b, c, nil
}

// getBill
// @Summary Get one bill
// @Tags billing
// @Produce json
// @Param id path int true "Bill ID"
// @Success 200 {object} storage.Bill
// @Router /billing/bills/{id} [get]
func (s *server) getBill(w http.ResponseWriter, r *http.Request) error {
	b, _, err := s.accessibleBill(r)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, b)
	return nil
}

// invoice
// @Summary Download a bill invoice
// @Tags billing
// @Produce application/pdf
// @Produce json
// @Param id path int true "Bill ID"
// @Param format query string false "pdf (default) or json"
// @Router /billing/bills/{id}/invoice [get]
func (s *server) invoice(w http.ResponseWriter, r *http.Request) error {
	b, c, err := s.accessibleBill(r)
	if err != nil {
		return err
	}
	return s.writeDocument(w, r, s.Composer.Invoice(*b, c))
}

func (s *server) customerForDocument(r *http.Request) (uint, *storage.Customer, []storage.Bill, error) {
	id, err := pathID(r, "id")
	if err != nil {
		return 0, nil, nil, err
	}
	if !auth.CanAccessCustomer(r.Context(), id) {
		return 0, nil, nil, forbiddenCustomer(id)
	}
	c, bills, _, err := s.Billing.CustomerBills(r.Context(), id)
	if err != nil {
		return 0, nil, nil, err
	}
	if c == nil && len(bills) == 0 {
		return 0, nil, nil, apperrors.NotFound(fmt.Sprintf("customer %d not found", id))
	}
	return id, c, bills, nil
}

// statement
// @Summary Download a customer's billing statement
// @Tags billing
// @Produce application/pdf
// @Produce json
// @Param id path int true "Customer ID"
// @Param format query string false "pdf (default) or json"
// @Router /billing/customers/{id}/statement [get]
func (s *server) statement(w http.ResponseWriter, r *http.Request) error {
	_, c, bills, err := s.customerForDocument(r)
	if err != nil {
		return err
	}
	return s.writeDocument(w, r, s.Composer.Statement(bills, c))
}

func (s *server) writeDocument(w http.ResponseWriter, r *http.Request, doc statement.Document) error {
	format := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))
	switch format {
	case "json":
		metrics.DocumentsRenderedTotal.WithLabelValues(string(doc.Kind), "json").Inc()
		writeJSON(w, http.StatusOK, doc)
		return nil
	case "", "pdf":
	default:
		return apperrors.Validation("unsupported format").WithDetails(map[string]string{"format": format})
	}

	var buf bytes.Buffer
	if err := statement.RenderPDF(doc, &buf); err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "render pdf")
	}
	metrics.DocumentsRenderedTotal.WithLabelValues(string(doc.Kind), "pdf").Inc()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
	return nil
}

type emailStatementRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// emailStatement
// @Summary E-mail a customer's billing statement
// @Description Sends the statement PDF to the given address, or to the customer's e-mail on file
// @Tags billing
// @Accept json
// @Produce json
// @Param id path int true "Customer ID"
// @Router /billing/customers/{id}/statement/email [post]
func (s *server) emailStatement(w http.ResponseWriter, r *http.Request) error {
	if s.Mailer == nil {
		return apperrors.New(apperrors.CodeUpstream, "email delivery not configured")
	}
	var req emailStatementRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		return err
	}
	id, c, bills, err := s.customerForDocument(r)
	if err != nil {
		return err
	}
	to := req.Email
	if to == "" && c != nil {
		to = c.Email
	}
	if to == "" {
		return apperrors.Validation("customer has no email on file")
	}

	release, err := s.Guard.Acquire(r.Context(), inflight.Entity("statement_email", id))
	if err != nil {
		return err
	}
	defer release()

	doc := s.Composer.Statement(bills, c)
	if err := s.Mailer.SendDocument(r.Context(), to, doc); err != nil {
		if apperrors.As(err) != nil {
			return err
		}
		return apperrors.Upstream(err, "send statement email")
	}
	metrics.DocumentsRenderedTotal.WithLabelValues(string(doc.Kind), "email").Inc()
	writeJSON(w, http.StatusOK, map[string]string{"sent_to": to, "filename": doc.Filename})
	return nil
}

type customerRateResponse struct {
	CustomerID uint            `json:"customer_id"`
	ZipCode    string          `json:"zip_code,omitempty"`
	Rate       decimal.Decimal `json:"rate"`
	Provenance string          `json:"provenance"`
	ZipRateID  uint            `json:"zip_rate_id,omitempty"`
}

// customerRate
// @Summary Effective rate of one customer
// @Tags billing
// @Produce json
// @Param id path int true "Customer ID"
// @Success 200 {object} customerRateResponse
// @Router /billing/customers/{id}/rate [get]
func (s *server) customerRate(w http.ResponseWriter, r *http.Request) error {
	id, err := pathID(r, "id")
	if err != nil {
		return err
	}
	if !auth.CanAccessCustomer(r.Context(), id) {
		return forbiddenCustomer(id)
	}
	c, res, err := s.Rates.ResolveCustomer(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, customerRateResponse{
		CustomerID: c.ID,
		ZipCode:    c.ZipCode,
		Rate:       res.Rate,
		Provenance: string(res.Provenance),
		ZipRateID:  res.ZipRateID,
	})
	return nil
}
