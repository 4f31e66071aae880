// Package server exposes the lending protocol over HTTP.
package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"memelend/crypto"
	"memelend/observability"
	"memelend/services/lendingd/indexer"
	"memelend/services/lendingd/protocol"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Protocol       *protocol.Protocol
	Index          *indexer.Index
	Hub            *Hub
	Auth           *Authenticator
	RateLimit      RateLimit
	AllowedOrigins []string
	// LedgerAdmin exposes the account and balance seeding endpoints used by
	// local deployments and tests.
	LedgerAdmin bool
	Logger      *slog.Logger
}

// Server encapsulates dependencies for the HTTP API.
type Server struct {
	cfg     Config
	proto   *protocol.Protocol
	index   *indexer.Index
	hub     *Hub
	auth    *Authenticator
	limiter *RateLimiter
	logger  *slog.Logger

	router http.Handler
}

// New constructs the router.
func New(cfg Config) (*Server, error) {
	if cfg.Protocol == nil {
		return nil, errors.New("server: protocol required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("server: authenticator required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hub := cfg.Hub
	if hub == nil {
		hub = NewHub(logger)
	}
	s := &Server{
		cfg:    cfg,
		proto:  cfg.Protocol,
		index:  cfg.Index,
		hub:    hub,
		auth:   cfg.Auth,
		logger: logger.With(slog.String("component", "http")),
	}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit)
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the traced router.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "lendingd")
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		if s.limiter != nil {
			api.Use(s.limiter.Middleware)
		}

		api.Get("/protocol", s.getProtocol)
		api.Get("/tokens", s.listTokens)
		api.Get("/tokens/{mint}", s.getToken)
		api.Get("/loans", s.listLoans)
		api.Get("/loans/{addr}", s.getLoan)
		api.Get("/staking/pool", s.getPool)
		api.Get("/staking/users/{owner}", s.getUserStake)
		api.Get("/fees", s.getReceiver)
		api.Get("/events", s.listEvents)
		api.Get("/events/ws", s.handleEventStream)

		api.Group(func(authed chi.Router) {
			authed.Use(s.auth.Authenticate)

			authed.Post("/loans", s.createLoan)
			authed.Post("/loans/{addr}/repay", s.repayLoan)
			authed.With(RequireScope(ScopeLiquidator)).Post("/loans/{addr}/liquidate", s.liquidateLoan)

			authed.Post("/staking/stake", s.stake)
			authed.Post("/staking/unstake", s.unstake)
			authed.Post("/staking/claim", s.claim)
			authed.Post("/staking/deposit", s.depositRewards)
			authed.Post("/staking/advance", s.advanceEpoch)
			authed.Post("/staking/distribute", s.distributeRewards)

			authed.Post("/fees/record", s.recordFees)
			authed.Post("/fees/distribute", s.distributeFees)

			authed.Post("/admin/admin-transfer/accept", s.acceptAdminTransfer)
			authed.Route("/admin", s.adminRoutes)
		})
	})
	return r
}

// observe records request metrics against the matched route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		observability.API().Observe(route, status, time.Since(start))
	})
}

// exec runs fn as one protocol instruction and renders its result.
func (s *Server) exec(w http.ResponseWriter, r *http.Request, module string, status int, fn func(tx protocol.Tx) (any, error)) {
	var out any
	err := s.proto.Execute(module, func(tx protocol.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

func (s *Server) view(w http.ResponseWriter, r *http.Request, fn func(tx protocol.Tx) (any, error)) {
	var out any
	err := s.proto.View(func(tx protocol.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) now() int64 { return s.proto.Now().Unix() }

// caller is the authenticated address. Authenticate guarantees it is set.
func caller(r *http.Request) crypto.Address {
	id, _ := identityFrom(r.Context())
	return id.Address
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (crypto.Address, bool) {
	addr, err := crypto.ParseAddress(chi.URLParam(r, name))
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid %s: %v", name, err), 0)
		return crypto.Address{}, false
	}
	return addr, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decode(r, dst); err != nil {
		writeProblem(w, r, http.StatusBadRequest, "bad_request", err.Error(), 0)
		return false
	}
	return true
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeProblem(w, r, http.StatusNotFound, "not_found", "event index disabled", 0)
		return
	}
	q := r.URL.Query()
	filter := indexer.Filter{Type: strings.TrimSpace(q.Get("type"))}
	if v := q.Get("after"); v != "" {
		after, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeProblem(w, r, http.StatusBadRequest, "bad_request", "invalid after cursor", 0)
			return
		}
		filter.After = after
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeProblem(w, r, http.StatusBadRequest, "bad_request", "invalid limit", 0)
			return
		}
		filter.Limit = limit
	}
	evts, err := s.index.Query(r.Context(), filter)
	if err != nil {
		s.logger.Error("event query failed", slog.Any("error", err))
		writeProblem(w, r, http.StatusInternalServerError, "internal", "internal error", 0)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts})
}
