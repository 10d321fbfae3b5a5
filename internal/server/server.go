// Package server exposes the ledger as a JSON API. Every ledger route is
// scoped to a tenant taken from the path.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simonvc/contaledger/internal/accounting"
	"github.com/simonvc/contaledger/internal/log"
)

type Options struct {
	// Gatherer backs /metrics on the API router; nil leaves it unmounted.
	Gatherer prometheus.Gatherer
	Logger   log.Logger
}

type Server struct {
	registry *accounting.Registry
	router   chi.Router
	addr     string
	log      log.Logger
	http     *http.Server
}

func New(reg *accounting.Registry, addr string, opts Options) *Server {
	lg := opts.Logger
	if lg == nil {
		lg = log.New("server")
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	s := &Server{registry: reg, router: r, addr: addr, log: lg}
	s.http = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Chart of accounts reference
		r.Get("/chart", s.getChart)

		r.Route("/tenants/{tenant}", func(r chi.Router) {
			r.Use(s.withTenant)

			// Accounts
			r.Post("/accounts", s.createAccount)
			r.Get("/accounts", s.listAccounts)
			r.Get("/accounts/{code}", s.getAccount)
			r.Get("/accounts/{code}/balance", s.getAccountBalance)
			r.Patch("/accounts/{code}", s.renameAccount)
			r.Delete("/accounts/{code}", s.deactivateAccount)
			r.Post("/subsidiary-accounts", s.resolveSubsidiary)
			r.Put("/parties/{type}/{id}", s.upsertParty)

			// Journal
			r.Post("/entries", s.postEntry)
			r.Get("/entries", s.listEntries)
			r.Get("/entries/{id}", s.getEntry)
			r.Post("/entries/{id}/void", s.voidEntry)

			// Business documents
			r.Post("/documents/sales-invoices", s.postSalesInvoice)
			r.Post("/documents/purchase-invoices", s.postPurchaseInvoice)
			r.Post("/documents/receipts", s.postReceipt)
			r.Post("/documents/payments", s.postPayment)

			// Reports
			r.Get("/reports/journal", s.journalReport)
			r.Get("/reports/ledger", s.ledgerReport)
			r.Get("/reports/trial-balance", s.trialBalance)
			r.Get("/reports/balance-sheet", s.balanceSheet)
			r.Get("/reports/income-statement", s.incomeStatement)

			// Fiscal configuration, period locks and year end
			r.Get("/config", s.getConfig)
			r.Put("/config", s.putConfig)
			r.Get("/periods/locks", s.listPeriodLocks)
			r.Post("/periods/locks", s.lockPeriod)
			r.Delete("/periods/locks/{year}/{month}", s.unlockPeriod)
			r.Post("/fiscal-years/{year}/close", s.closeYear)
			r.Post("/fiscal-years/{year}/open", s.openYear)
		})
	})

	return s
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("contaledger server listening", "addr", ln.Addr().String())
	err := s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

type ctxKey int

const serviceKey ctxKey = iota

// withTenant opens the tenant named in the path and stores its service in
// the request context.
func (s *Server) withTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := chi.URLParam(r, "tenant")
		svc, err := s.registry.Service(r.Context(), tenant)
		if err != nil {
			writeError(w, err)
			return
		}
		ctx := context.WithValue(r.Context(), serviceKey, svc)
		ctx = log.WithContext(ctx, s.log.With("tenant", tenant))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func service(r *http.Request) *accounting.Service {
	return r.Context().Value(serviceKey).(*accounting.Service)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
