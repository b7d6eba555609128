package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/metrics"
	"github.com/MJE43/casino-settle-go/internal/promo"
	"github.com/MJE43/casino-settle-go/internal/scripting"
	"github.com/MJE43/casino-settle-go/internal/scriptstore"
	"github.com/MJE43/casino-settle-go/internal/seedvault"
	"github.com/MJE43/casino-settle-go/internal/settlement"
	"github.com/MJE43/casino-settle-go/internal/store"
)

const (
	defaultIdempotencySize = 1024
	idempotencyTTL         = 10 * time.Minute
	maxBodyBytes           = 1 << 20
)

// Options wires the server to the settlement layer. Vault, Source, Script
// and Sessions are optional; their routes answer 503 when unset.
type Options struct {
	CasinoID  string
	Ledger    *ledger.Ledger
	Rounds    *settlement.RoundSettlement
	Mines     *settlement.MinesSettlement
	Blackjack *settlement.BlackjackSettlement
	Poker     *settlement.PokerSettlement
	Promo     *promo.Redeemer
	DB        store.DB

	Vault    *seedvault.Vault
	Source   *engine.SeededSource
	Script   *scripting.Engine
	Sessions *scriptstore.Store
	// Recorder, when set, is the engine's emitter and is told each
	// script source before the engine starts.
	Recorder *scriptstore.Recorder

	CORSOrigins     []string
	IdempotencySize int
	Logger          *slog.Logger
}

// Server handles HTTP requests
type Server struct {
	opts         Options
	errorHandler *ErrorHandler
	logger       *slog.Logger
	validate     *validator.Validate
	idempotency  *expirable.LRU[string, cachedResponse]
	inflight     sync.Map
	startTime    time.Time
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")
	size := opts.IdempotencySize
	if size <= 0 {
		size = defaultIdempotencySize
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"*"}
	}

	s := &Server{
		opts:         opts,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		validate:     validator.New(),
		idempotency:  expirable.NewLRU[string, cachedResponse](size, nil, idempotencyTTL),
		startTime:    time.Now(),
	}
	logger.Info("api server created",
		"casino_id", opts.CasinoID,
		"games", len(opts.Rounds.Registry().Specs()),
		"scripting", opts.Script != nil,
		"seed_rotation", opts.Vault != nil && opts.Source != nil)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", IdempotencyHeader},
		ExposedHeaders: []string{"X-Engine-Version", "X-Error-Type", "Retry-After", IdempotentReplayHeader},
		MaxAge:         86400,
	}))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/balance", s.handleBalance)
		r.Get("/games", s.handleListGames)
		r.Get("/bonus/wheel", s.handleWheelStatus)
		r.Get("/mines", s.handleMinesState)
		r.Get("/blackjack", s.handleBlackjackState)
		r.Get("/poker", s.handlePokerState)
		r.Get("/rounds", s.handleListRounds)
		r.Get("/rounds/{id}", s.handleGetRound)
		r.Get("/seeds", s.handleSeeds)
		r.Get("/script", s.handleScriptState)
		r.Get("/script/sessions", s.handleListScriptSessions)
		r.Get("/script/sessions/{id}", s.handleGetScriptSession)
		r.Delete("/script/sessions/{id}", s.handleDeleteScriptSession)
		r.Post("/verify", s.handleVerify)

		r.Group(func(r chi.Router) {
			r.Use(s.IdempotencyMiddleware)

			r.Post("/bets/{game}", s.handlePlaceBet)
			r.Post("/bonus/wheel", s.handleSpinWheel)

			r.Post("/mines/start", s.handleMinesStart)
			r.Post("/mines/reveal", s.handleMinesReveal)
			r.Post("/mines/cashout", s.handleMinesCashOut)
			r.Post("/mines/hide", s.handleMinesHide)

			r.Post("/blackjack/deal", s.handleBlackjackDeal)
			r.Post("/blackjack/hit", s.handleBlackjackHit)
			r.Post("/blackjack/stand", s.handleBlackjackStand)

			r.Post("/poker/deal", s.handlePokerDeal)
			r.Post("/poker/advance", s.handlePokerAdvance)
			r.Post("/poker/showdown", s.handlePokerShowdown)

			r.Post("/promo/redeem", s.handlePromoRedeem)
			r.Post("/seeds/rotate", s.handleRotateSeeds)

			r.Post("/script/start", s.handleScriptStart)
			r.Post("/script/stop", s.handleScriptStop)
		})
	})

	return r
}

// decode reads a JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		s.errorHandler.HandleDecodeError(w, r, err)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			s.errorHandler.HandleValidationError(w, r, err)
			return false
		}
	}
	return true
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, what string) {
	s.errorHandler.HandleError(w, r, NewError(ErrTypeServiceUnavailable, what+" is not configured").
		WithRequestID(middleware.GetReqID(r.Context())).
		Build())
}
