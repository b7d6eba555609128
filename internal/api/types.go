package api

import (
	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/scripting"
	"github.com/MJE43/casino-settle-go/internal/settlement"
)

// EngineError represents a structured error response with context
type EngineError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e EngineError) Error() string {
	return e.Message
}

// Error types
const (
	ErrTypeValidation          = "validation_error"
	ErrTypeInvalidSelection    = "invalid_selection"
	ErrTypeInvalidAmount       = "invalid_amount"
	ErrTypeInsufficientBalance = "insufficient_balance"
	ErrTypeRoundInProgress     = "round_in_progress"
	ErrTypeRoundNotActive      = "round_not_active"
	ErrTypeCooldownActive      = "cooldown_active"
	ErrTypeGameNotFound        = "game_not_found"
	ErrTypeNotFound            = "not_found"

	ErrTypePromoUnknown  = "promo_unknown"
	ErrTypePromoRedeemed = "promo_already_redeemed"
	ErrTypePromoExhaust  = "promo_exhausted"

	ErrTypeScript             = "script_error"
	ErrTypePersistence        = "persistence_error"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory groups error types for monitoring.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryGame       ErrorCategory = "game"
	CategoryWallet     ErrorCategory = "wallet"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidSelection, ErrTypeInvalidAmount,
		ErrTypePromoUnknown, ErrTypePromoRedeemed, ErrTypePromoExhaust:
		return CategoryValidation
	case ErrTypeGameNotFound, ErrTypeRoundInProgress, ErrTypeRoundNotActive, ErrTypeCooldownActive:
		return CategoryGame
	case ErrTypeInsufficientBalance:
		return CategoryWallet
	default:
		return CategorySystem
	}
}

// VersionInfo contains engine version information
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

// BalanceResponse is returned by GET /balance.
type BalanceResponse struct {
	CasinoID string          `json:"casino_id"`
	Balance  decimal.Decimal `json:"balance"`
	// Pending is payout owed from rounds whose credit has not landed yet.
	Pending decimal.Decimal `json:"pending_payout"`
}

// BetRequest places a single-draw bet. Params are game specific.
type BetRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Params map[string]any  `json:"params,omitempty"`
}

// MinesStartRequest opens a mines round.
type MinesStartRequest struct {
	Rows  int             `json:"rows" validate:"required,min=1"`
	Cols  int             `json:"cols" validate:"required,min=1"`
	Mines int             `json:"mines" validate:"required,min=1"`
	Bet   decimal.Decimal `json:"bet"`
}

// MinesRevealRequest reveals one cell.
type MinesRevealRequest struct {
	Row int `json:"row" validate:"min=0"`
	Col int `json:"col" validate:"min=0"`
}

// MinesStateResponse reports the open board, if any.
type MinesStateResponse struct {
	Active bool                  `json:"active"`
	Board  *settlement.MinesView `json:"board,omitempty"`
}

// MinesHideResponse is returned when the board is closed.
type MinesHideResponse struct {
	Result *settlement.Result `json:"result,omitempty"`
}

// BlackjackDealRequest starts a hand.
type BlackjackDealRequest struct {
	Bet decimal.Decimal `json:"bet"`
}

// PokerDealRequest starts a poker hand.
type PokerDealRequest struct {
	Opponents int             `json:"opponents" validate:"required,min=1,max=3"`
	Ante      decimal.Decimal `json:"ante"`
}

// PromoRedeemRequest redeems a code.
type PromoRedeemRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

// WheelStatusResponse reports when the free spin is next available.
type WheelStatusResponse struct {
	Available   bool   `json:"available"`
	AvailableAt string `json:"available_at,omitempty"`
}

// VerifyRequest replays a round from its seeds.
type VerifyRequest struct {
	Game   string         `json:"game" validate:"required"`
	Seeds  engine.Seeds   `json:"seeds"`
	Nonce  uint64         `json:"nonce"`
	Params map[string]any `json:"params,omitempty"`
	// Bet and Available only matter for war, where a tie checks whether
	// the balance left after the bet covers going to war.
	Bet       decimal.Decimal `json:"bet,omitempty"`
	Available decimal.Decimal `json:"available,omitempty"`
	Rows      int             `json:"rows,omitempty"`
	Cols      int             `json:"cols,omitempty"`
	Mines     int             `json:"mines,omitempty"`
}

// VerifyResponse carries the replayed outcome, or the mine layout for mines.
type VerifyResponse struct {
	Nonce          uint64         `json:"nonce"`
	ServerSeedHash string         `json:"server_seed_hash"`
	Outcome        *games.Outcome `json:"outcome,omitempty"`
	Mines          []int          `json:"mines,omitempty"`
	EngineVersion  string         `json:"engine_version"`
	Echo           VerifyRequest  `json:"echo"`
}

// GamesResponse represents the games metadata response
type GamesResponse struct {
	Games         []games.GameSpec `json:"games"`
	EngineVersion string           `json:"engine_version"`
}

// SeedsResponse shows the active commitment.
type SeedsResponse struct {
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          uint64 `json:"nonce"`
}

// RotateSeedsRequest optionally replaces the client seed.
type RotateSeedsRequest struct {
	ClientSeed string `json:"client_seed" validate:"omitempty,max=64"`
}

// ScriptStartRequest starts an autoplay script.
type ScriptStartRequest struct {
	Script string `json:"script" validate:"required"`
}

// ScriptStateResponse reports the autoplay engine.
type ScriptStateResponse struct {
	scripting.EngineSnapshot
	Logs []scripting.LogEntry `json:"logs,omitempty"`
}
