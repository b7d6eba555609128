// Command casinod serves the settlement engine over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MJE43/casino-settle-go/internal/api"
	"github.com/MJE43/casino-settle-go/internal/config"
	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/logger"
	"github.com/MJE43/casino-settle-go/internal/metrics"
	"github.com/MJE43/casino-settle-go/internal/promo"
	"github.com/MJE43/casino-settle-go/internal/scripting"
	"github.com/MJE43/casino-settle-go/internal/scriptstore"
	"github.com/MJE43/casino-settle-go/internal/seedvault"
	"github.com/MJE43/casino-settle-go/internal/settlement"
	"github.com/MJE43/casino-settle-go/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "casinod: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.Init(logger.Config{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: logger.DefaultServiceName,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	}, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	wallet, err := ledger.Open(ctx, db, cfg.CasinoID, cfg.DefaultBalance, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	var (
		src    engine.Source
		seeded *engine.SeededSource
		vault  *seedvault.Vault
	)
	switch cfg.RNG {
	case config.RNGSeeded:
		vault = seedvault.New(cfg.KeyringService, cfg.SeedFallback, log)
		if seeded, err = openSeededSource(ctx, vault, db, cfg, log); err != nil {
			return err
		}
		src = seeded
	default:
		src = engine.CryptoSource{}
	}

	catalog := promo.DefaultCatalog()
	if cfg.PromoCatalog != "" {
		if catalog, err = promo.LoadCatalog(cfg.PromoCatalog); err != nil {
			return err
		}
	}

	opts := settlement.Options{
		Wallet:    wallet,
		Source:    src,
		KV:        db,
		CasinoID:  cfg.CasinoID,
		History:   db,
		Observers: []settlement.Observer{metrics.NewRecorder()},
		Logger:    log,
	}
	rounds := settlement.NewRoundSettlement(opts, nil, cfg.WheelCooldown)
	mines := settlement.NewMinesSettlement(opts)
	blackjack := settlement.NewBlackjackSettlement(opts)

	if view, resumed, err := mines.Resume(ctx); err != nil {
		log.Warn("mines board not resumed", "error", err)
	} else if resumed {
		log.Info("resumed mines round", "round_id", view.RoundID, "safe_clicks", view.SafeClicks)
	}

	sessions, err := scriptstore.New(cfg.DBPath)
	if err != nil {
		return err
	}
	defer sessions.Close()
	if err := sessions.Migrate(); err != nil {
		return err
	}
	recorder := scriptstore.NewRecorder(sessions, nil, log)

	script := scripting.NewEngine(&scripting.SettlementPlacer{
		Rounds:    rounds,
		Mines:     mines,
		Blackjack: blackjack,
		Wallet:    wallet,
	}, recorder, log)

	srv := api.NewServer(api.Options{
		CasinoID:        cfg.CasinoID,
		Ledger:          wallet,
		Rounds:          rounds,
		Mines:           mines,
		Blackjack:       blackjack,
		Poker:           settlement.NewPokerSettlement(opts),
		Promo:           promo.NewRedeemer(wallet, db, cfg.CasinoID, catalog, log),
		DB:              db,
		Vault:           vault,
		Source:          seeded,
		Script:          script,
		Sessions:        sessions,
		Recorder:        recorder,
		CORSOrigins:     cfg.CORSOrigins,
		IdempotencySize: cfg.IdempotencyLRU,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("casinod listening",
			"addr", cfg.Addr,
			"casino_id", cfg.CasinoID,
			"rng", cfg.RNG,
			"balance", wallet.Balance().StringFixed(2))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if script.GetState().State == scripting.StateRunning {
		if err := script.Stop(); err != nil {
			log.Warn("stop script", "error", err)
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openSeededSource resumes the seeded stream after the last nonce handed
// out under the vault's server seed.
func openSeededSource(ctx context.Context, vault *seedvault.Vault, db *store.SQLiteDB, cfg *config.Config, log *slog.Logger) (*engine.SeededSource, error) {
	seed, err := vault.ServerSeed(cfg.CasinoID)
	if err != nil {
		return nil, fmt.Errorf("server seed: %w", err)
	}
	last, err := db.ResumeNonce(ctx, cfg.CasinoID, engine.HashServerSeed(seed))
	if err != nil {
		return nil, err
	}
	src, err := vault.Source(cfg.CasinoID, cfg.ClientSeed, last)
	if err != nil {
		return nil, fmt.Errorf("seeded source: %w", err)
	}
	log.Info("seeded rng ready", "server_seed_hash", src.ServerSeedHash(), "nonce", last)
	return src, nil
}
