package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/MJE43/casino-settle-go/internal/ledger"
	"github.com/MJE43/casino-settle-go/internal/settlement"
)

const (
	roundsTable     = "rounds"
	defaultPageSize = 50
	maxPageSize     = 500
)

var roundColumns = []string{
	"id", "game", "bet", "extra_stake", "payout", "balance_before", "balance_after",
	"win", "nonce", "server_seed_hash", "client_seed", "summary", "outcome_json",
	"message", "settled_at", "payout_pending",
}

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

var (
	_ DB                         = (*SQLiteDB)(nil)
	_ ledger.KV                  = (*SQLiteDB)(nil)
	_ settlement.HistoryRecorder = (*SQLiteDB)(nil)
)

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is its own database.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteDB) Migrate() error {
	// First, create base tables
	baseMigrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			game TEXT NOT NULL,
			bet TEXT NOT NULL,
			payout TEXT NOT NULL,
			balance_before TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			win INTEGER NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT '',
			settled_at INTEGER NOT NULL
		)`,
	}

	for _, migration := range baseMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("base migration failed: %w", err)
		}
	}

	// Then, add new columns if they don't exist
	alterMigrations := []string{
		`ALTER TABLE rounds ADD COLUMN extra_stake TEXT NOT NULL DEFAULT '0'`,
		`ALTER TABLE rounds ADD COLUMN nonce INTEGER`,
		`ALTER TABLE rounds ADD COLUMN server_seed_hash TEXT`,
		`ALTER TABLE rounds ADD COLUMN client_seed TEXT`,
		`ALTER TABLE rounds ADD COLUMN outcome_json TEXT DEFAULT '{}'`,
		`ALTER TABLE rounds ADD COLUMN message TEXT DEFAULT ''`,
		`ALTER TABLE rounds ADD COLUMN payout_pending INTEGER NOT NULL DEFAULT 0`,
	}

	for _, migration := range alterMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			// Check if it's a duplicate column error (which is expected and safe to ignore)
			if !isDuplicateColumnError(err) {
				return fmt.Errorf("alter migration failed: %w", err)
			}
		}
	}

	// Finally, create performance indexes
	indexMigrations := []string{
		`CREATE INDEX IF NOT EXISTS idx_rounds_settled_at ON rounds(settled_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_game ON rounds(game)`,
		`CREATE INDEX IF NOT EXISTS idx_rounds_game_settled ON rounds(game, settled_at DESC)`,
	}

	for _, migration := range indexMigrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("index migration failed: %w", err)
		}
	}

	return nil
}

// isDuplicateColumnError checks if the error is due to a duplicate column
func isDuplicateColumnError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "duplicate column name")
}

// Get returns the stored value or ledger.ErrNotFound.
func (s *SQLiteDB) Get(ctx context.Context, key string) (string, error) {
	query, args, err := sq.Select("value").From("kv").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return "", err
	}

	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("key %q: %w", key, ledger.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, nil
}

// Set upserts a key.
func (s *SQLiteDB) Set(ctx context.Context, key, value string) error {
	query, args, err := sq.Insert("kv").
		Columns("key", "value", "updated_at").
		Values(key, value, time.Now().UnixMilli()).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *SQLiteDB) Delete(ctx context.Context, key string) error {
	query, args, err := sq.Delete("kv").Where(sq.Eq{"key": key}).ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// RecordRound appends a settled round to the history table.
func (s *SQLiteDB) RecordRound(ctx context.Context, res settlement.Result) error {
	outcomeJSON, err := json.Marshal(res.Outcome)
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}

	var nonce sql.NullInt64
	if res.Nonce != nil {
		nonce = sql.NullInt64{Int64: int64(*res.Nonce), Valid: true}
	}

	query, args, err := sq.Insert(roundsTable).
		Columns(roundColumns...).
		Values(
			res.RoundID, string(res.Game),
			res.Bet.StringFixed(2), res.ExtraStake.StringFixed(2), res.Payout.StringFixed(2),
			res.BalanceBefore.StringFixed(2), res.BalanceAfter.StringFixed(2),
			boolToInt(res.Win), nonce, nullString(res.ServerSeedHash), nullString(res.ClientSeed),
			res.Outcome.Summary, string(outcomeJSON), res.Message, res.SettledAt.UnixMilli(),
			boolToInt(res.PayoutPending),
		).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record round %s: %w", res.RoundID, err)
	}
	return nil
}

// GetRound retrieves a round by ID
func (s *SQLiteDB) GetRound(ctx context.Context, id string) (*Round, error) {
	query, args, err := sq.Select(roundColumns...).From(roundsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}

	round, err := scanRound(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("round %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return round, nil
}

// ListRounds retrieves rounds with pagination and filtering, newest first
func (s *SQLiteDB) ListRounds(ctx context.Context, q RoundsQuery) (*RoundsList, error) {
	count := sq.Select("COUNT(*)").From(roundsTable)
	list := sq.Select(roundColumns...).From(roundsTable)
	if q.Game != "" {
		count = count.Where(sq.Eq{"game": q.Game})
		list = list.Where(sq.Eq{"game": q.Game})
	}

	// Get total count
	countQuery, args, err := count.ToSql()
	if err != nil {
		return nil, err
	}
	var totalCount int
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	// Calculate pagination
	if q.PerPage <= 0 {
		q.PerPage = defaultPageSize
	}
	if q.PerPage > maxPageSize {
		q.PerPage = maxPageSize
	}
	if q.Page <= 0 {
		q.Page = 1
	}

	totalPages := (totalCount + q.PerPage - 1) / q.PerPage
	offset := (q.Page - 1) * q.PerPage

	mainQuery, args, err := list.
		OrderBy("settled_at DESC", "seq DESC").
		Limit(uint64(q.PerPage)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, mainQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []Round{}
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		rounds = append(rounds, *round)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}

	return &RoundsList{
		Rounds:     rounds,
		TotalCount: totalCount,
		Page:       q.Page,
		PerPage:    q.PerPage,
		TotalPages: totalPages,
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRound(row rowScanner) (*Round, error) {
	var round Round
	var winInt, pendingInt int
	var settledAt int64
	var nonce sql.NullInt64
	var serverSeedHash, clientSeed, outcomeJSON, message sql.NullString

	err := row.Scan(
		&round.ID, &round.Game, &round.Bet, &round.ExtraStake, &round.Payout,
		&round.BalanceBefore, &round.BalanceAfter, &winInt, &nonce,
		&serverSeedHash, &clientSeed, &round.Summary, &outcomeJSON, &message, &settledAt,
		&pendingInt,
	)
	if err != nil {
		return nil, err
	}

	// Handle nullable fields
	if nonce.Valid {
		n := uint64(nonce.Int64)
		round.Nonce = &n
	}
	round.ServerSeedHash = serverSeedHash.String
	round.ClientSeed = clientSeed.String
	round.Message = message.String
	if outcomeJSON.Valid {
		round.OutcomeJSON = outcomeJSON.String
	} else {
		round.OutcomeJSON = "{}"
	}
	round.Win = winInt == 1
	round.PayoutPending = pendingInt == 1
	round.SettledAt = time.UnixMilli(settledAt).UTC()

	return &round, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// LastNonce returns the highest nonce recorded under a server seed hash.
// ok is false when no round used that seed.
func (s *SQLiteDB) LastNonce(ctx context.Context, serverSeedHash string) (nonce uint64, ok bool, err error) {
	query, args, err := sq.Select("MAX(nonce)").
		From(roundsTable).
		Where(sq.Eq{"server_seed_hash": serverSeedHash}).
		ToSql()
	if err != nil {
		return 0, false, err
	}
	var n sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, false, fmt.Errorf("failed to read last nonce: %w", err)
	}
	if !n.Valid {
		return 0, false, nil
	}
	return uint64(n.Int64), true, nil
}

// ResumeNonce returns the nonce a restarted seeded source must start from
// so that its first round draws a nonce no earlier round used: the highest
// of the persisted high-water mark, the recorded history and an open mines
// board, all under serverSeedHash.
func (s *SQLiteDB) ResumeNonce(ctx context.Context, casinoID, serverSeedHash string) (uint64, error) {
	last, _, err := s.LastNonce(ctx, serverSeedHash)
	if err != nil {
		return 0, err
	}

	mark, ok, err := settlement.LoadNonceMark(ctx, s, casinoID)
	if err != nil {
		return 0, err
	}
	if ok && mark.ServerSeedHash == serverSeedHash && mark.Nonce > last {
		last = mark.Nonce
	}

	board, err := settlement.LoadMinesBoard(ctx, s, casinoID)
	if err != nil {
		// an unreadable board is discarded on resume; its nonce is still
		// covered by the mark written when it was dealt
		return last, nil
	}
	if board != nil && board.Nonce != nil && board.ServerSeedHash == serverSeedHash && *board.Nonce > last {
		last = *board.Nonce
	}
	return last, nil
}
