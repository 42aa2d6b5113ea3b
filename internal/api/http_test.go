package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bher20/ebillmanager/internal/auth"
	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/statement"
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/bher20/ebillmanager/pkg/bulkops"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultRate = decimal.RequireFromString("5.72")

type fakeBulk struct {
	filename string
	content  string
	err      error
}

func (f *fakeBulk) Import(_ context.Context, filename string, r io.Reader) (*bulkops.ImportResult, error) {
	data, _ := io.ReadAll(r)
	f.filename, f.content = filename, string(data)
	if f.err != nil {
		return nil, f.err
	}
	return &bulkops.ImportResult{RecordsImported: 2, CustomersCreated: 1, Errors: []string{}}, nil
}

func (f *fakeBulk) DetectAnomalies(context.Context) (int, error) { return 4, f.err }

func (f *fakeBulk) GenerateHistoricalBills(context.Context) (int, error) { return 12, f.err }

type fakeMailer struct {
	to  string
	doc statement.Document
}

func (f *fakeMailer) SendDocument(_ context.Context, to string, doc statement.Document) error {
	f.to, f.doc = to, doc
	return nil
}

type busyGuard struct{}

func (busyGuard) Acquire(_ context.Context, entity string) (func(), error) {
	return nil, apperrors.New(apperrors.CodeConflict, "busy").WithDetails(map[string]string{"entity": entity})
}

type harness struct {
	handler http.Handler
	store   *storage.MemoryStorage
	bulk    *fakeBulk
	mailer  *fakeMailer
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, st storage.Storage) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertCustomer(ctx, &storage.Customer{ID: 1, Name: "Ada Lovelace", Email: "ada@example.com", ZipCode: "10001"}))
	require.NoError(t, st.UpsertCustomer(ctx, &storage.Customer{ID: 2, Name: "bob Stone", Email: "bob@example.com",
		CustomRatePerCCF: decimal.NewNullDecimal(decimal.RequireFromString("6.50"))}))
	require.NoError(t, st.UpsertCustomer(ctx, &storage.Customer{ID: 3, Name: "Cy Young"}))
	require.NoError(t, st.CreateZipRate(ctx, &storage.ZipRate{ZipCode: "10001", RatePerCCF: decimal.RequireFromString("4.80"), Active: true}))

	bills := []storage.Bill{
		{CustomerID: 1, PeriodStart: day(2025, 4, 1), PeriodEnd: day(2025, 4, 30), TotalUsageCCF: decimal.NewFromInt(10), TotalAmount: decimal.RequireFromString("48.00"), DueDate: day(2025, 5, 15), Status: storage.BillPaid},
		{CustomerID: 1, PeriodStart: day(2025, 5, 1), PeriodEnd: day(2025, 5, 31), TotalUsageCCF: decimal.NewFromInt(12), TotalAmount: decimal.RequireFromString("57.60"), DueDate: day(2025, 6, 15), Status: storage.BillSent},
		{CustomerID: 2, PeriodStart: day(2025, 5, 1), PeriodEnd: day(2025, 5, 31), TotalUsageCCF: decimal.NewFromInt(3), TotalAmount: decimal.RequireFromString("19.50"), DueDate: day(2025, 6, 15), Status: storage.BillOverdue},
	}
	for i := range bills {
		require.NoError(t, st.CreateBill(ctx, &bills[i]))
	}
	require.NoError(t, st.CreateAlert(ctx, &storage.Alert{CustomerID: 1, AlertDate: day(2025, 5, 20), Type: storage.AlertLeak, RiskScore: decimal.NewFromInt(82), Status: storage.AlertNew}))
	require.NoError(t, st.CreateAlert(ctx, &storage.Alert{CustomerID: 2, AlertDate: day(2025, 5, 21), Type: storage.AlertSpike, RiskScore: decimal.NewFromInt(55), Status: storage.AlertResolved}))
}

func newHarness(t *testing.T, mutate ...func(*Deps)) *harness {
	t.Helper()
	st := storage.NewMemory()
	seed(t, st)
	authSvc, err := auth.NewService(context.Background(), st)
	require.NoError(t, err)

	h := &harness{store: st, bulk: &fakeBulk{}, mailer: &fakeMailer{}}
	guard := inflight.NewLocal()
	composer := statement.NewComposer("", "")
	composer.Now = func() time.Time { return day(2025, 6, 1) }
	d := Deps{
		Store:    st,
		Rates:    rates.NewService(st, guard, defaultRate),
		Billing:  billing.NewService(st, defaultRate, 4, nil),
		Composer: composer,
		Auth:     authSvc,
		Guard:    guard,
		Bulk:     h.bulk,
		Mailer:   h.mailer,
	}
	for _, fn := range mutate {
		fn(&d)
	}
	h.handler = NewMux(d)
	return h
}

type caller struct {
	role       string
	customerID string
}

var (
	admin    = caller{role: auth.RoleAdmin}
	clerk    = caller{role: auth.RoleBilling}
	customer = caller{role: auth.RoleCustomer, customerID: "1"}
)

func (h *harness) do(t *testing.T, c caller, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if c.role != "" {
		req.Header.Set(auth.HeaderRole, c.role)
	}
	if c.customerID != "" {
		req.Header.Set(auth.HeaderCustomerID, c.customerID)
	}
	req.Header.Set(auth.HeaderSessionID, "sess-"+c.role)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) json(t *testing.T, c caller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return h.do(t, c, method, target, r, "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode[errorEnvelope](t, rec)
	return env.Error.Code
}

func TestChargesViewSearchAndExpand(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, clerk, http.MethodGet, "/admin/charges?expand=1", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[billing.ChargesView](t, rec)
	require.Len(t, view.Entries, 3)
	assert.Equal(t, "Ada Lovelace", view.Entries[0].Customer.Name)
	assert.Equal(t, "bob Stone", view.Entries[1].Customer.Name)

	ada := view.Entries[0]
	assert.Equal(t, rates.ProvenanceZip, ada.Rate.Provenance)
	assert.True(t, ada.Rate.Rate.Equal(decimal.RequireFromString("4.80")))
	assert.True(t, ada.Expanded)
	assert.Len(t, ada.Bills, 2)
	assert.True(t, ada.Summary.TotalAmount.Equal(decimal.RequireFromString("105.60")))

	assert.Equal(t, rates.ProvenanceCustom, view.Entries[1].Rate.Provenance)
	assert.Empty(t, view.Entries[1].Bills)
	assert.Equal(t, rates.ProvenanceDefault, view.Entries[2].Rate.Provenance)

	rec = h.json(t, clerk, http.MethodGet, "/admin/charges?search=BOB@", "")
	view = decode[billing.ChargesView](t, rec)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, uint(2), view.Entries[0].Customer.ID)

	rec = h.json(t, clerk, http.MethodGet, "/admin/charges?expand=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRBAC(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, customer, http.MethodGet, "/admin/charges", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, rec))

	rec = h.json(t, caller{}, http.MethodGet, "/billing/bills", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.json(t, clerk, http.MethodPost, "/admin/zip-rates", `{"zip_code":"1","rate_per_ccf":1}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetCustomerRate(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"custom_rate_per_ccf":"7.10","zip_code":"10001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customers := decode[[]storage.Customer](t, rec)
	require.Len(t, customers, 3)
	assert.True(t, customers[2].CustomRatePerCCF.Valid)
	assert.Equal(t, "10001", customers[2].ZipCode)

	rec = h.json(t, admin, http.MethodGet, "/billing/customers/3/rate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rate := decode[customerRateResponse](t, rec)
	assert.Equal(t, "custom", rate.Provenance)
	assert.True(t, rate.Rate.Equal(decimal.RequireFromString("7.1")))

	// null rate clears the custom rate, leaving the zip assignment
	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"custom_rate_per_ccf":null,"zip_code":"10001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rate = decode[customerRateResponse](t, h.json(t, admin, http.MethodGet, "/billing/customers/3/rate", ""))
	assert.Equal(t, "zip", rate.Provenance)
	assert.NotZero(t, rate.ZipRateID)

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"custom_rate_per_ccf":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/99/rate", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/abc/rate", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"unknown":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetCustomerRateKeepsOmittedFields(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"custom_rate_per_ccf":"7.10","zip_code":"10001"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// zip alone: the custom rate stays
	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"zip_code":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	customers := decode[[]storage.Customer](t, rec)
	assert.Empty(t, customers[2].ZipCode)
	require.True(t, customers[2].CustomRatePerCCF.Valid)
	assert.True(t, customers[2].CustomRatePerCCF.Decimal.Equal(decimal.RequireFromString("7.1")))

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"zip_code":"10001"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rate := decode[customerRateResponse](t, h.json(t, admin, http.MethodGet, "/billing/customers/3/rate", ""))
	assert.Equal(t, "custom", rate.Provenance)

	// empty body is a no-op
	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	customers = decode[[]storage.Customer](t, rec)
	assert.Equal(t, "10001", customers[2].ZipCode)
	assert.True(t, customers[2].CustomRatePerCCF.Valid)

	rec = h.json(t, admin, http.MethodPut, "/admin/customers/3/rate", `{"zip_code":"12345678901"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))
}

func TestZipRateCatalog(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, admin, http.MethodPost, "/admin/zip-rates", `{"zip_code":"20002","rate_per_ccf":"3.25","description":"north"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	catalog := decode[[]storage.ZipRate](t, rec)
	require.Len(t, catalog, 2)
	created := catalog[1]
	assert.True(t, created.Active)

	rec = h.json(t, admin, http.MethodPost, "/admin/zip-rates", `{"zip_code":"20002"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode[errorEnvelope](t, rec)
	assert.Contains(t, env.Error.Details, "rate_per_ccf")

	rec = h.json(t, admin, http.MethodPut, "/admin/zip-rates/2", `{"rate_per_ccf":"3.50","active":false,"zip_code":"99999"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	catalog = decode[[]storage.ZipRate](t, rec)
	assert.Equal(t, "20002", catalog[1].ZipCode)
	assert.False(t, catalog[1].Active)

	rec = h.json(t, admin, http.MethodPut, "/admin/zip-rates/42", `{"rate_per_ccf":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(t, admin, http.MethodDelete, "/admin/zip-rates/2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]storage.ZipRate](t, rec), 1)

	rec = h.json(t, admin, http.MethodDelete, "/admin/zip-rates/2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}

func TestMutationBusy(t *testing.T) {
	h := newHarness(t, func(d *Deps) {
		d.Rates = rates.NewService(d.Store, busyGuard{}, defaultRate)
		d.Guard = busyGuard{}
	})

	rec := h.json(t, admin, http.MethodPut, "/admin/customers/1/rate", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decode[errorEnvelope](t, rec)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.NotNil(t, env.Error.Details)

	rec = h.json(t, admin, http.MethodPost, "/admin/detect-anomalies", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, _ = part.Write([]byte(content))
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBulkOperations(t *testing.T) {
	h := newHarness(t)

	body, ct := multipartBody(t, "usage.csv", "customer_id,ccf\n1,4\n")
	rec := h.do(t, admin, http.MethodPost, "/admin/import/usage", body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[bulkops.ImportResult](t, rec)
	assert.Equal(t, 2, res.RecordsImported)
	assert.Equal(t, "usage.csv", h.bulk.filename)
	assert.Equal(t, "customer_id,ccf\n1,4\n", h.bulk.content)

	rec = h.do(t, admin, http.MethodPost, "/admin/import/usage", strings.NewReader(""), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(t, admin, http.MethodPost, "/admin/detect-anomalies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[map[string]int](t, rec)["anomalies_detected"])

	rec = h.json(t, admin, http.MethodPost, "/admin/generate-historical-bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12, decode[map[string]int](t, rec)["bills_generated"])

	h.bulk.err = apperrors.Upstream(errors.New("status 500"), "generate_historical_bills request failed")
	rec = h.json(t, admin, http.MethodPost, "/admin/generate-historical-bills", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "UPSTREAM_ERROR", errorCode(t, rec))
}

func TestBulkNotConfigured(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Bulk = nil })
	rec := h.json(t, admin, http.MethodPost, "/admin/detect-anomalies", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBillsScopedToCustomer(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, customer, http.MethodGet, "/billing/bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[billsResponse](t, rec)
	require.Len(t, resp.Bills, 2)
	assert.Equal(t, time.May, resp.Bills[0].PeriodStart.Month())
	assert.True(t, resp.Paid.Equal(decimal.RequireFromString("48")))
	assert.True(t, resp.Outstanding.Equal(decimal.RequireFromString("57.6")))
	assert.True(t, resp.Overdue.IsZero())
	assert.Equal(t, 1, resp.Summary.StatusCounts[storage.BillSent])

	rec = h.json(t, customer, http.MethodGet, "/billing/bills?customer_id=2", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.json(t, clerk, http.MethodGet, "/billing/bills", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[billsResponse](t, rec).Bills, 3)

	rec = h.json(t, customer, http.MethodGet, "/billing/bills/3", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.json(t, customer, http.MethodGet, "/billing/bills/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint(1), decode[storage.Bill](t, rec).CustomerID)

	rec = h.json(t, clerk, http.MethodGet, "/billing/bills/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoiceDocument(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, customer, http.MethodGet, "/billing/bills/2/invoice?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := decode[statement.Document](t, rec)
	assert.Equal(t, statement.KindInvoice, doc.Kind)
	assert.Equal(t, "HydroSpark_Invoice_Ada_Lovelace_2025-05.pdf", doc.Filename)

	rec = h.json(t, customer, http.MethodGet, "/billing/bills/2/invoice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "HydroSpark_Invoice_Ada_Lovelace_2025-05.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = h.json(t, customer, http.MethodGet, "/billing/bills/2/invoice?format=docx", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatementDocument(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, clerk, http.MethodGet, "/billing/customers/1/statement?format=json", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	doc := decode[statement.Document](t, rec)
	assert.Equal(t, "HydroSpark_Statement_Ada_Lovelace.pdf", doc.Filename)
	require.Len(t, doc.Rows, 2)
	assert.True(t, doc.TotalAmount.Equal(decimal.RequireFromString("105.60")))

	rec = h.json(t, clerk, http.MethodGet, "/billing/customers/77/statement", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(t, customer, http.MethodGet, "/billing/customers/2/statement", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEmailStatement(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, clerk, http.MethodPost, "/billing/customers/1/statement/email", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.com", h.mailer.to)
	assert.Equal(t, statement.KindStatement, h.mailer.doc.Kind)

	rec = h.json(t, clerk, http.MethodPost, "/billing/customers/1/statement/email", `{"email":"accounts@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "accounts@example.com", h.mailer.to)

	rec = h.json(t, clerk, http.MethodPost, "/billing/customers/1/statement/email", `{"email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(t, clerk, http.MethodPost, "/billing/customers/3/statement/email", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.json(t, customer, http.MethodPost, "/billing/customers/1/statement/email", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAlerts(t *testing.T) {
	h := newHarness(t)

	rec := h.json(t, clerk, http.MethodGet, "/alerts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []struct {
		CustomerID uint   `json:"customer_id"`
		Severity   string `json:"severity"`
		Status     string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "medium", all[0].Severity)
	assert.Equal(t, "high", all[1].Severity)

	rec = h.json(t, clerk, http.MethodGet, "/alerts?status=new", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "new", all[0].Status)

	rec = h.json(t, customer, http.MethodGet, "/alerts", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, uint(1), all[0].CustomerID)

	rec = h.json(t, clerk, http.MethodGet, "/alerts?status=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAcknowledgeAlert(t *testing.T) {
	h := newHarness(t)

	// alert 2 belongs to customer 2
	rec := h.json(t, customer, http.MethodPost, "/alerts/2/acknowledge", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(t, customer, http.MethodPost, "/alerts/1/acknowledge", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got struct {
		ID       uint   `json:"id"`
		Status   string `json:"status"`
		Severity string `json:"severity"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, uint(1), got.ID)
	assert.Equal(t, "acknowledged", got.Status)
	assert.Equal(t, "high", got.Severity)

	rec = h.json(t, clerk, http.MethodGet, "/alerts?status=acknowledged", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var acked []struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acked))
	require.Len(t, acked, 1)
	assert.Equal(t, uint(1), acked[0].ID)

	rec = h.json(t, clerk, http.MethodPost, "/alerts/99/acknowledge", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.json(t, caller{}, http.MethodPost, "/alerts/1/acknowledge", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndDocs(t *testing.T) {
	h := newHarness(t)

	for _, path := range []string{"/healthz", "/readyz", "/livez", "/metrics"} {
		rec := h.do(t, caller{}, http.MethodGet, path, nil, "")
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := h.do(t, caller{}, http.MethodGet, "/swagger/doc.json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/admin/charges")
	assert.Contains(t, paths, "/billing/customers/{id}/statement/email")

	rec = h.do(t, caller{}, http.MethodGet, "/healthz", nil, "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
