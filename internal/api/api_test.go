package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/promo"
	"github.com/MJE43/casino-settle-go/internal/scripting"
	"github.com/MJE43/casino-settle-go/internal/scriptstore"
	"github.com/MJE43/casino-settle-go/internal/settlement"
	"github.com/MJE43/casino-settle-go/internal/store"
)

var testSeeds = engine.Seeds{Server: "api-server-seed", Client: "api-client-seed"}

type testEnv struct {
	handler http.Handler
	ledger  *ledger.Ledger
	db      *store.SQLiteDB
	source  *engine.SeededSource
	script  *scripting.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewSQLiteDB(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	l, err := ledger.Open(ctx, db, "api", decimal.NewFromInt(1000), nil)
	require.NoError(t, err)

	src := engine.NewSeededSource(testSeeds, 0)
	opts := settlement.Options{Wallet: l, Source: src, KV: db, CasinoID: "api", History: db}
	rounds := settlement.NewRoundSettlement(opts, nil, time.Hour)
	mines := settlement.NewMinesSettlement(opts)
	blackjack := settlement.NewBlackjackSettlement(opts)

	catalog := promo.Catalog{
		promo.HashCode("TEST100"): {Amount: decimal.NewFromInt(100), Kind: promo.OneTime},
	}
	sessions, err := scriptstore.New(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	require.NoError(t, sessions.Migrate())
	t.Cleanup(func() { sessions.Close() })
	recorder := scriptstore.NewRecorder(sessions, nil, nil)

	script := scripting.NewEngine(&scripting.SettlementPlacer{
		Rounds: rounds, Mines: mines, Blackjack: blackjack, Wallet: l,
	}, recorder, nil)

	srv := NewServer(Options{
		CasinoID:  "api",
		Ledger:    l,
		Rounds:    rounds,
		Mines:     mines,
		Blackjack: blackjack,
		Poker:     settlement.NewPokerSettlement(opts),
		Promo:     promo.NewRedeemer(l, db, "api", catalog, nil),
		DB:        db,
		Source:    src,
		Script:    script,
		Sessions:  sessions,
		Recorder:  recorder,
	})
	return &testEnv{handler: srv.Routes(), ledger: l, db: db, source: src, script: script}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthCheckResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, HealthStatusHealthy, health.Status)
	assert.Equal(t, HealthStatusHealthy, health.Checks["database"].Status)
	assert.Equal(t, EngineVersion, w.Header().Get("X-Engine-Version"))

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health/live", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/balance", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "casino_http_requests_total")
}

func TestGamesAndBalance(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/games", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var gamesResp GamesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &gamesResp))
	assert.Len(t, gamesResp.Games, len(games.DefaultRegistry().Specs()))

	w = env.do(t, http.MethodGet, "/api/v1/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bal BalanceResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bal))
	assert.Equal(t, "api", bal.CasinoID)
	assert.True(t, bal.Balance.Equal(decimal.NewFromInt(1000)))
}

func TestPlaceBetRecordsRound(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/bets/dice", BetRequest{
		Amount: decimal.NewFromInt(10),
		Params: map[string]any{"mode": "less", "target": 7},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res settlement.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, games.KindDice, res.Game)
	assert.True(t, res.Bet.Equal(decimal.NewFromInt(10)))
	assert.True(t, res.BalanceAfter.Equal(env.ledger.Balance()))
	require.NotNil(t, res.Nonce)
	assert.Equal(t, uint64(1), *res.Nonce)

	w = env.do(t, http.MethodGet, "/api/v1/rounds?game=dice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list store.RoundsList
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Rounds, 1)
	assert.Equal(t, res.RoundID, list.Rounds[0].ID)

	w = env.do(t, http.MethodGet, "/api/v1/rounds/"+res.RoundID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/rounds/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBetErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		path    string
		body    any
		status  int
		errType string
	}{
		{"insufficient balance", "/api/v1/bets/coin", BetRequest{Amount: decimal.NewFromInt(5000), Params: map[string]any{"side": "heads"}}, http.StatusPaymentRequired, ErrTypeInsufficientBalance},
		{"zero amount", "/api/v1/bets/coin", BetRequest{Amount: decimal.Zero, Params: map[string]any{"side": "heads"}}, http.StatusBadRequest, ErrTypeInvalidAmount},
		{"bad selection", "/api/v1/bets/dice", BetRequest{Amount: decimal.NewFromInt(1), Params: map[string]any{"mode": "exact", "target": 13}}, http.StatusBadRequest, ErrTypeInvalidSelection},
		{"unknown game", "/api/v1/bets/keno", BetRequest{Amount: decimal.NewFromInt(1)}, http.StatusNotFound, ErrTypeGameNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			body := decodeMap(t, w)
			assert.Equal(t, tt.errType, body["type"])
			assert.NotEmpty(t, body["message"])
			assert.Equal(t, tt.errType, w.Header().Get("X-Error-Type"))
		})
	}
	assert.True(t, env.ledger.Balance().Equal(decimal.NewFromInt(1000)), "failed bets must not move money")
}

func TestInvalidJSON(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bets/dice", bytes.NewReader([]byte("invalid json")))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrTypeValidation, decodeMap(t, w)["type"])
}

func TestValidationErrorListsFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/poker/deal", PokerDealRequest{Opponents: 5, Ante: decimal.NewFromInt(1)})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeMap(t, w)
	assert.Equal(t, ErrTypeValidation, body["type"])
	fields := body["context"].(map[string]any)["fields"].(map[string]any)
	assert.Contains(t, fields, "Opponents")
}

func TestIdempotencyReplay(t *testing.T) {
	env := newTestEnv(t)
	bet := BetRequest{Amount: decimal.NewFromInt(10), Params: map[string]any{"side": "tails"}}

	first := env.do(t, http.MethodPost, "/api/v1/bets/coin", bet, IdempotencyHeader, "bet-1")
	require.Equal(t, http.StatusOK, first.Code)
	balance := env.ledger.Balance()

	second := env.do(t, http.MethodPost, "/api/v1/bets/coin", bet, IdempotencyHeader, "bet-1")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayHeader))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.True(t, env.ledger.Balance().Equal(balance), "replay must not settle again")

	third := env.do(t, http.MethodPost, "/api/v1/bets/coin", bet, IdempotencyHeader, "bet-2")
	require.Equal(t, http.StatusOK, third.Code)
	assert.Empty(t, third.Header().Get(IdempotentReplayHeader))
	assert.NotEqual(t, decodeMap(t, first)["round_id"], decodeMap(t, third)["round_id"])
}

func TestMinesFlow(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/mines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeMap(t, w)["active"])

	start := MinesStartRequest{Rows: 5, Cols: 5, Mines: 3, Bet: decimal.NewFromInt(10)}
	w = env.do(t, http.MethodPost, "/api/v1/mines/start", start)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.ledger.Balance().Equal(decimal.NewFromInt(990)))

	w = env.do(t, http.MethodPost, "/api/v1/mines/start", start)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrTypeRoundInProgress, decodeMap(t, w)["type"])

	w = env.do(t, http.MethodPost, "/api/v1/mines/cashout", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrTypeRoundNotActive, decodeMap(t, w)["type"])

	w = env.do(t, http.MethodGet, "/api/v1/mines", nil)
	state := decodeMap(t, w)
	assert.Equal(t, true, state["active"])
	assert.NotContains(t, state["board"].(map[string]any), "mines", "mine positions stay hidden during play")

	w = env.do(t, http.MethodPost, "/api/v1/mines/hide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var hidden MinesHideResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hidden))
	require.NotNil(t, hidden.Result)
	assert.True(t, hidden.Result.Payout.IsZero())

	w = env.do(t, http.MethodPost, "/api/v1/mines/hide", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{}\n", w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/mines/start", MinesStartRequest{Rows: 5, Cols: 5, Mines: 25, Bet: decimal.NewFromInt(1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMinesRevealValidation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/mines/reveal", MinesRevealRequest{Row: -1, Col: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/mines/reveal", MinesRevealRequest{Row: 0, Col: 0})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWheelCooldown(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/bonus/wheel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeMap(t, w)["available"])

	w = env.do(t, http.MethodPost, "/api/v1/bonus/wheel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.ledger.Balance().GreaterThan(decimal.NewFromInt(1000)))

	w = env.do(t, http.MethodPost, "/api/v1/bonus/wheel", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrTypeCooldownActive, decodeMap(t, w)["type"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w = env.do(t, http.MethodGet, "/api/v1/bonus/wheel", nil)
	status := decodeMap(t, w)
	assert.Equal(t, false, status["available"])
	assert.NotEmpty(t, status["available_at"])
}

func TestBlackjackAndPoker(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/blackjack/stand", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/blackjack/deal", BlackjackDealRequest{Bet: decimal.NewFromInt(5)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	if decodeMap(t, w)["result"] == nil {
		w = env.do(t, http.MethodPost, "/api/v1/blackjack/stand", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotNil(t, decodeMap(t, w)["result"])
	}

	w = env.do(t, http.MethodPost, "/api/v1/poker/deal", PokerDealRequest{Opponents: 2, Ante: decimal.NewFromInt(5)})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, "/api/v1/poker/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeMap(t, w)["community"], 3)

	w = env.do(t, http.MethodPost, "/api/v1/poker/showdown", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "poker", decodeMap(t, w)["game"])

	w = env.do(t, http.MethodGet, "/api/v1/poker", nil)
	assert.Equal(t, false, decodeMap(t, w)["active"])
}

func TestPromoRedeem(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/promo/redeem", PromoRedeemRequest{Code: " TEST100 "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, env.ledger.Balance().Equal(decimal.NewFromInt(1100)))

	w = env.do(t, http.MethodPost, "/api/v1/promo/redeem", PromoRedeemRequest{Code: "TEST100"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrTypePromoRedeemed, decodeMap(t, w)["type"])

	w = env.do(t, http.MethodPost, "/api/v1/promo/redeem", PromoRedeemRequest{Code: "NOPE"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/v1/promo/redeem", PromoRedeemRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyMatchesSettledRound(t *testing.T) {
	env := newTestEnv(t)
	params := map[string]any{"type": "color", "value": "red"}

	w := env.do(t, http.MethodPost, "/api/v1/bets/roulette", BetRequest{Amount: decimal.NewFromInt(3), Params: params})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res settlement.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.Nonce)

	w = env.do(t, http.MethodPost, "/api/v1/verify", VerifyRequest{
		Game:   "roulette",
		Seeds:  testSeeds,
		Nonce:  *res.Nonce,
		Params: params,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var vr VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	require.NotNil(t, vr.Outcome)
	assert.Equal(t, res.Outcome.Summary, vr.Outcome.Summary)
	assert.Equal(t, res.Outcome.Factor, vr.Outcome.Factor)
	assert.Equal(t, res.ServerSeedHash, vr.ServerSeedHash)
	assert.Empty(t, vr.Echo.Seeds.Server)

	w = env.do(t, http.MethodPost, "/api/v1/verify", VerifyRequest{Game: "mines", Seeds: testSeeds, Nonce: 4, Rows: 5, Cols: 5, Mines: 3})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vr))
	assert.Len(t, vr.Mines, 3)

	w = env.do(t, http.MethodPost, "/api/v1/verify", VerifyRequest{Game: "dice", Nonce: 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSeedsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/seeds", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seeds SeedsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seeds))
	assert.Equal(t, engine.HashServerSeed(testSeeds.Server), seeds.ServerSeedHash)
	assert.Equal(t, testSeeds.Client, seeds.ClientSeed)

	// No vault configured.
	w = env.do(t, http.MethodPost, "/api/v1/seeds/rotate", RotateSeedsRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestScriptLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/v1/script/start", ScriptStartRequest{Script: "var x = 1;"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrTypeScript, decodeMap(t, w)["type"])

	script := `
		game = "coin"
		side = "heads"
		nextbet = 1
		dobet = function() { if (bets >= 5) stop() }
	`
	w = env.do(t, http.MethodPost, "/api/v1/script/start", ScriptStartRequest{Script: script})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	env.script.Wait()

	w = env.do(t, http.MethodGet, "/api/v1/script", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state ScriptStateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, scripting.StateStopped, state.State)
	require.NotNil(t, state.Stats)
	assert.Equal(t, 5, state.Stats.Bets)

	list, err := env.db.ListRounds(context.Background(), store.RoundsQuery{Game: "coin"})
	require.NoError(t, err)
	assert.Equal(t, 5, list.TotalCount)

	w = env.do(t, http.MethodPost, "/api/v1/script/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/script/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page scriptstore.SessionsPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	require.Len(t, page.Sessions, 1, "a script that fails to start records no session")
	sess := page.Sessions[0]
	assert.Equal(t, "coin", sess.Game)
	assert.Equal(t, string(scripting.StateStopped), sess.FinalState)
	assert.Equal(t, 5, sess.TotalBets)
	assert.Contains(t, sess.ScriptSource, "dobet")

	w = env.do(t, http.MethodGet, "/api/v1/script/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodDelete, "/api/v1/script/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodGet, "/api/v1/script/sessions/"+sess.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bets/dice", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
