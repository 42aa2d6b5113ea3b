package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bher20/ebillmanager/internal/api/swagger"
	"github.com/bher20/ebillmanager/internal/auth"
	"github.com/bher20/ebillmanager/internal/billing"
	"github.com/bher20/ebillmanager/internal/inflight"
	"github.com/bher20/ebillmanager/internal/metrics"
	"github.com/bher20/ebillmanager/internal/rates"
	"github.com/bher20/ebillmanager/internal/statement"
	"github.com/bher20/ebillmanager/internal/storage"
	"github.com/bher20/ebillmanager/pkg/bulkops"
	apperrors "github.com/bher20/ebillmanager/pkg/errors"
	"github.com/bher20/ebillmanager/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BulkOps is the upstream service behind the admin bulk operation endpoints.
type BulkOps interface {
	Import(ctx context.Context, filename string, r io.Reader) (*bulkops.ImportResult, error)
	DetectAnomalies(ctx context.Context) (int, error)
	GenerateHistoricalBills(ctx context.Context) (int, error)
}

// Mailer delivers composed documents by e-mail.
type Mailer interface {
	SendDocument(ctx context.Context, to string, doc statement.Document) error
}

type Deps struct {
	Store    storage.Storage
	Rates    *rates.Service
	Billing  *billing.Service
	Composer *statement.Composer
	Auth     *auth.Service
	Guard    inflight.Guard
	Bulk     BulkOps
	Mailer   Mailer
	Log      *logger.Logger
}

type server struct {
	Deps
}

type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// NewMux constructs the HTTP handler: billing API routes behind RBAC, plus
// metrics, health and API docs.
func NewMux(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Guard == nil {
		d.Guard = inflight.Noop{}
	}
	if d.Composer == nil {
		d.Composer = statement.NewComposer("", "")
	}
	s := &server{Deps: d}

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", s.readyz)
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))

	s.route(mux, "GET /admin/charges", auth.ObjCharges, auth.ActRead, s.listCharges)
	s.route(mux, "PUT /admin/customers/{id}/rate", auth.ObjRates, auth.ActWrite, s.setCustomerRate)
	s.route(mux, "GET /admin/zip-rates", auth.ObjRates, auth.ActRead, s.listZipRates)
	s.route(mux, "POST /admin/zip-rates", auth.ObjRates, auth.ActWrite, s.createZipRate)
	s.route(mux, "PUT /admin/zip-rates/{id}", auth.ObjRates, auth.ActWrite, s.updateZipRate)
	s.route(mux, "DELETE /admin/zip-rates/{id}", auth.ObjRates, auth.ActWrite, s.deleteZipRate)
	s.route(mux, "POST /admin/import/usage", auth.ObjBulk, auth.ActWrite, s.importUsage)
	s.route(mux, "POST /admin/detect-anomalies", auth.ObjBulk, auth.ActWrite, s.detectAnomalies)
	s.route(mux, "POST /admin/generate-historical-bills", auth.ObjBulk, auth.ActWrite, s.generateHistoricalBills)

	s.route(mux, "GET /billing/bills", auth.ObjBills, auth.ActRead, s.listBills)
	s.route(mux, "GET /billing/bills/{id}", auth.ObjBills, auth.ActRead, s.getBill)
	s.route(mux, "GET /billing/bills/{id}/invoice", auth.ObjStatements, auth.ActRead, s.invoice)
	s.route(mux, "GET /billing/customers/{id}/statement", auth.ObjStatements, auth.ActRead, s.statement)
	s.route(mux, "POST /billing/customers/{id}/statement/email", auth.ObjStatements, auth.ActWrite, s.emailStatement)
	s.route(mux, "GET /billing/customers/{id}/rate", auth.ObjRates, auth.ActRead, s.customerRate)

	s.route(mux, "GET /alerts", auth.ObjAlerts, auth.ActRead, s.listAlerts)
	s.route(mux, "POST /alerts/{id}/acknowledge", auth.ObjAlerts, auth.ActWrite, s.acknowledgeAlert)

	var h http.Handler = mux
	h = auth.Middleware(h)
	h = Logging(d.Log)(h)
	h = RequestID(d.Log)(h)
	h = Recoverer(d.Log)(h)
	return h
}

// route registers h under pattern, guarded by an RBAC check on obj/act and
// instrumented with per-route metrics.
func (s *server) route(mux *http.ServeMux, pattern, obj, act string, h handlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.RequestsTotal.WithLabelValues(pattern).Inc()
		defer func() {
			metrics.RequestDurationSeconds.WithLabelValues(pattern).Observe(time.Since(start).Seconds())
		}()

		err := s.authorize(r.Context(), obj, act)
		if err == nil {
			err = h(w, r)
		}
		if err != nil {
			metrics.RequestErrorsTotal.WithLabelValues(pattern, string(apperrors.CodeOf(err))).Inc()
			writeError(r.Context(), s.Log, w, err)
		}
	})
}

func (s *server) authorize(ctx context.Context, obj, act string) error {
	if s.Auth == nil {
		return nil
	}
	return s.Auth.Authorize(ctx, obj, act)
}

func (s *server) readyz(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		s.Log.Error(ctx, "readyz: db ping failed", err)
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
