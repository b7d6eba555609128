package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/settlement"
)

// DB represents the database interface
type DB interface {
	Close() error
	Migrate() error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	RecordRound(ctx context.Context, res settlement.Result) error
	GetRound(ctx context.Context, id string) (*Round, error)
	ListRounds(ctx context.Context, query RoundsQuery) (*RoundsList, error)
}

// RoundsQuery represents query parameters for listing rounds
type RoundsQuery struct {
	Game    string `json:"game,omitempty"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

// RoundsList represents paginated rounds response
type RoundsList struct {
	Rounds     []Round `json:"rounds"`
	TotalCount int     `json:"totalCount"`
	Page       int     `json:"page"`
	PerPage    int     `json:"perPage"`
	TotalPages int     `json:"totalPages"`
}

// Round is one settled round as stored in the history table.
type Round struct {
	ID             string          `json:"id"`
	Game           string          `json:"game"`
	Bet            decimal.Decimal `json:"bet"`
	ExtraStake     decimal.Decimal `json:"extraStake"`
	Payout         decimal.Decimal `json:"payout"`
	BalanceBefore  decimal.Decimal `json:"balanceBefore"`
	BalanceAfter   decimal.Decimal `json:"balanceAfter"`
	Win            bool            `json:"win"`
	Nonce          *uint64         `json:"nonce,omitempty"`
	ServerSeedHash string          `json:"serverSeedHash,omitempty"`
	ClientSeed     string          `json:"clientSeed,omitempty"`
	Summary        string          `json:"summary"`
	OutcomeJSON    string          `json:"outcomeJson"`
	Message        string          `json:"message"`
	SettledAt      time.Time       `json:"settledAt"`
	PayoutPending  bool            `json:"payoutPending,omitempty"`
}
