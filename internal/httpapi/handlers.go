// Package httpapi exposes the trading-account ledger over HTTP: account
// lifecycle, cash movements, orders, quotes, a live event stream and the
// usual operational endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"tradebook.org/api/spec"
	"tradebook.org/internal/ledger"
	"tradebook.org/internal/obs"
	"tradebook.org/internal/stream"
)

const (
	serviceName = "tradebook-api"

	defaultRatePerSec = 25
	defaultRateBurst  = 50

	maxBodyBytes = 1 << 20
)

// ReadyProbe gates /readyz. The ledger itself is in memory and always
// ready, so the probe only matters when a caller wires an external check.
type ReadyProbe struct {
	Ping func(ctx context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.Ping == nil {
		return nil
	}
	return rp.Ping(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	svc        ledger.Service
	quotes     ledger.PriceSource
	stream     *stream.Stream
	readyProbe ReadyProbe
	version    string

	ratePerSec int
	rateBurst  int
}

func New(rp ReadyProbe, version string, svc ledger.Service, quotes ledger.PriceSource, str *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		svc:        svc,
		quotes:     quotes,
		stream:     str,
		readyProbe: rp,
		version:    version,
		ratePerSec: defaultRatePerSec,
		rateBurst:  defaultRateBurst,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// domain routes
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)
	a.mux.HandleFunc("/v1/accounts", a.handleAccountsCollection)
	a.mux.HandleFunc("/v1/accounts/", a.handleAccountResource)
	a.mux.HandleFunc("/v1/quotes/", a.handleQuote)
	a.mux.HandleFunc("/v1/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetRateLimit overrides the default per-IP request budget. Zero or
// negative values leave the current setting untouched.
func (a *API) SetRateLimit(perSecond, burst int) {
	if perSecond > 0 {
		a.ratePerSec = perSecond
	}
	if burst > 0 {
		a.rateBurst = burst
	}
}

// Handler assembles the full middleware chain around the mux. Rate
// limiting sits outside authentication so floods are rejected before any
// token work happens.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = RateLimit(h, a.ratePerSec, a.rateBurst)
	h = MaxBodyBytes(h, maxBodyBytes)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
