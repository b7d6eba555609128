// Package scriptstore keeps a history of scripted autoplay sessions. The
// individual bets live in the round history; a session row records what
// ran and how it ended.
package scriptstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/MJE43/casino-settle-go/internal/ledger"
)

const (
	sessionsTable   = "script_sessions"
	defaultPageSize = 50
	maxPageSize     = 500
)

// Session is one scripting engine run.
type Session struct {
	ID            string     `json:"id"`
	Game          string     `json:"game"`
	ScriptSource  string     `json:"scriptSource"`
	StartBalance  float64    `json:"startBalance"`
	FinalBalance  *float64   `json:"finalBalance,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	FinalState    string     `json:"finalState"`
	Error         string     `json:"error,omitempty"`
	TotalBets     int        `json:"totalBets"`
	TotalWins     int        `json:"totalWins"`
	TotalLosses   int        `json:"totalLosses"`
	TotalProfit   float64    `json:"totalProfit"`
	TotalWagered  float64    `json:"totalWagered"`
	HighestStreak int        `json:"highestStreak"`
	LowestStreak  int        `json:"lowestStreak"`
}

// Outcome is how a session ended.
type Outcome struct {
	State         string
	Error         string
	FinalBalance  float64
	Bets          int
	Wins          int
	Losses        int
	Profit        float64
	Wagered       float64
	HighestStreak int
	LowestStreak  int
}

// SessionsPage is a paginated list, newest first.
type SessionsPage struct {
	Sessions   []Session `json:"sessions"`
	TotalCount int       `json:"totalCount"`
	Page       int       `json:"page"`
	PerPage    int       `json:"perPage"`
	TotalPages int       `json:"totalPages"`
}

var sessionColumns = []string{
	"id", "game", "script_source", "start_balance", "final_balance", "created_at",
	"ended_at", "final_state", "error", "total_bets", "total_wins", "total_losses",
	"total_profit", "total_wagered", "highest_streak", "lowest_streak",
}

// Store persists sessions in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the session store at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("scriptstore: enable WAL: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the sessions table.
func (s *Store) Migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS script_sessions (
			id TEXT PRIMARY KEY,
			game TEXT NOT NULL DEFAULT '',
			script_source TEXT NOT NULL DEFAULT '',
			start_balance REAL NOT NULL DEFAULT 0,
			final_balance REAL,
			created_at INTEGER NOT NULL,
			ended_at INTEGER,
			final_state TEXT NOT NULL DEFAULT 'running',
			error TEXT NOT NULL DEFAULT '',
			total_bets INTEGER NOT NULL DEFAULT 0,
			total_wins INTEGER NOT NULL DEFAULT 0,
			total_losses INTEGER NOT NULL DEFAULT 0,
			total_profit REAL NOT NULL DEFAULT 0,
			total_wagered REAL NOT NULL DEFAULT 0,
			highest_streak INTEGER NOT NULL DEFAULT 0,
			lowest_streak INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_script_sessions_created ON script_sessions(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("scriptstore: migrate: %w", err)
		}
	}
	return nil
}

// CreateSession inserts a running session and returns its id.
func (s *Store) CreateSession(ctx context.Context, game, source string, startBalance float64) (string, error) {
	id := uuid.NewString()
	query, args, err := sq.Insert(sessionsTable).
		Columns("id", "game", "script_source", "start_balance", "created_at").
		Values(id, game, source, startBalance, s.now().UnixMilli()).
		ToSql()
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("scriptstore: create session: %w", err)
	}
	return id, nil
}

// EndSession stores the final state and statistics.
func (s *Store) EndSession(ctx context.Context, id string, out Outcome) error {
	query, args, err := sq.Update(sessionsTable).
		SetMap(map[string]any{
			"final_balance":  out.FinalBalance,
			"ended_at":       s.now().UnixMilli(),
			"final_state":    out.State,
			"error":          out.Error,
			"total_bets":     out.Bets,
			"total_wins":     out.Wins,
			"total_losses":   out.Losses,
			"total_profit":   out.Profit,
			"total_wagered":  out.Wagered,
			"highest_streak": out.HighestStreak,
			"lowest_streak":  out.LowestStreak,
		}).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scriptstore: end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scriptstore: session %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

// GetSession fetches a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*Session, error) {
	query, args, err := sq.Select(sessionColumns...).From(sessionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	sess, err := scanSession(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scriptstore: session %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scriptstore: get session: %w", err)
	}
	return sess, nil
}

// ListSessions returns one page of sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, page, perPage int) (*SessionsPage, error) {
	if perPage <= 0 {
		perPage = defaultPageSize
	}
	if perPage > maxPageSize {
		perPage = maxPageSize
	}
	if page <= 0 {
		page = 1
	}

	var total int
	countQuery, _, err := sq.Select("COUNT(*)").From(sessionsTable).ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return nil, fmt.Errorf("scriptstore: count sessions: %w", err)
	}

	query, args, err := sq.Select(sessionColumns...).
		From(sessionsTable).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scriptstore: scan session: %w", err)
		}
		sessions = append(sessions, *sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &SessionsPage{
		Sessions:   sessions,
		TotalCount: total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + perPage - 1) / perPage,
	}, nil
}

// DeleteSession removes a session.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	query, args, err := sq.Delete(sessionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("scriptstore: delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scriptstore: session %s: %w", id, ledger.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		sess      Session
		final     sql.NullFloat64
		createdAt int64
		endedAt   sql.NullInt64
	)
	err := row.Scan(
		&sess.ID, &sess.Game, &sess.ScriptSource, &sess.StartBalance, &final, &createdAt,
		&endedAt, &sess.FinalState, &sess.Error, &sess.TotalBets, &sess.TotalWins,
		&sess.TotalLosses, &sess.TotalProfit, &sess.TotalWagered, &sess.HighestStreak,
		&sess.LowestStreak,
	)
	if err != nil {
		return nil, err
	}
	if final.Valid {
		f := final.Float64
		sess.FinalBalance = &f
	}
	sess.CreatedAt = time.UnixMilli(createdAt).UTC()
	if endedAt.Valid {
		t := time.UnixMilli(endedAt.Int64).UTC()
		sess.EndedAt = &t
	}
	return &sess, nil
}
