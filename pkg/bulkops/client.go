package bulkops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bher20/ebillmanager/internal/metrics"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
)

const (
	defaultTimeout        = 5 * time.Minute
	responseBodyReadLimit = 1024
	MaxImportErrors       = 50

	OpImport             = "import"
	OpDetectAnomalies    = "detect_anomalies"
	OpGenerateHistorical = "generate_historical_bills"
)

var errBaseURLRequired = errors.New("bulk operations base url is required")

// Client calls the upstream service that owns usage import, anomaly
// detection and historical bill generation. Calls are fire-and-wait.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout on a copy of the current client, so a
// shared client passed through WithHTTPClient is left as it was.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.httpClient
			hc.Timeout = d
			c.httpClient = &hc
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	c := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

// ImportResult summarizes a usage file import. Errors holds at most
// MaxImportErrors messages.
type ImportResult struct {
	RecordsImported  int      `json:"records_imported"`
	CustomersCreated int      `json:"customers_created"`
	Errors           []string `json:"errors"`
}

// Import uploads a CSV/XLSX usage file.
func (c *Client) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	if c == nil {
		return nil, apperrors.New(apperrors.CodeUpstream, "bulk operations client not configured")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, apperrors.Validation("no file selected")
	}
	if r == nil {
		return nil, apperrors.Validation("no file uploaded")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "build import request")
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "read import file")
	}
	if err := mw.Close(); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, err, "build import request")
	}

	var resp struct {
		ImportedRecords  int      `json:"imported_records"`
		CustomersCreated int      `json:"customers_created"`
		Errors           []string `json:"errors"`
	}
	if err := c.post(ctx, OpImport, "/import/usage", mw.FormDataContentType(), &body, &resp); err != nil {
		return nil, err
	}

	errs := resp.Errors
	if len(errs) > MaxImportErrors {
		errs = errs[:MaxImportErrors]
	}
	if errs == nil {
		errs = []string{}
	}
	return &ImportResult{
		RecordsImported:  resp.ImportedRecords,
		CustomersCreated: resp.CustomersCreated,
		Errors:           errs,
	}, nil
}

// DetectAnomalies runs detection across all customers and returns how many
// anomalies were found.
func (c *Client) DetectAnomalies(ctx context.Context) (int, error) {
	if c == nil {
		return 0, apperrors.New(apperrors.CodeUpstream, "bulk operations client not configured")
	}
	var resp struct {
		Anomalies []json.RawMessage `json:"anomalies"`
	}
	if err := c.post(ctx, OpDetectAnomalies, "/alerts/detect", "application/json", strings.NewReader("{}"), &resp); err != nil {
		return 0, err
	}
	return len(resp.Anomalies), nil
}

// GenerateHistoricalBills asks the upstream to backfill bills and returns the
// number generated.
func (c *Client) GenerateHistoricalBills(ctx context.Context) (int, error) {
	if c == nil {
		return 0, apperrors.New(apperrors.CodeUpstream, "bulk operations client not configured")
	}
	var resp struct {
		BillsGenerated int `json:"bills_generated"`
	}
	if err := c.post(ctx, OpGenerateHistorical, "/generate-historical-bills", "application/json", strings.NewReader("{}"), &resp); err != nil {
		return 0, err
	}
	return resp.BillsGenerated, nil
}

func (c *Client) post(ctx context.Context, op, path, contentType string, body io.Reader, out any) (err error) {
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		metrics.BulkOperationsTotal.WithLabelValues(op, result).Inc()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, err, "build "+op+" request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.Upstream(err, op+" request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return apperrors.Upstream(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), op+" request failed")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Upstream(err, "decode "+op+" response")
	}
	return nil
}
