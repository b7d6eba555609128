package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/ledger"
)

// MinesKeyPrefix stores the active board so a round survives a restart.
const MinesKeyPrefix = "minesBoard_"

// MinesBoard is the persisted state of a mines round. The multiplier is
// never stored; it is recomputed from the revealed count.
type MinesBoard struct {
	RoundID        string          `json:"round_id"`
	Rows           int             `json:"rows"`
	Cols           int             `json:"cols"`
	MineCount      int             `json:"mine_count"`
	Bet            decimal.Decimal `json:"bet"`
	Mines          []int           `json:"mines"`
	Revealed       []int           `json:"revealed"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	Nonce          *uint64         `json:"nonce,omitempty"`
	ServerSeedHash string          `json:"server_seed_hash,omitempty"`
	ClientSeed     string          `json:"client_seed,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
}

func (b *MinesBoard) total() int     { return b.Rows * b.Cols }
func (b *MinesBoard) safeCells() int { return b.total() - b.MineCount }

// SafeClicks is the number of safe cells revealed so far.
func (b *MinesBoard) SafeClicks() int { return len(b.Revealed) }

// Multiplier is the fair multiplier for the current reveal count.
func (b *MinesBoard) Multiplier() float64 {
	return games.FairMultiplier(b.total(), b.MineCount, b.SafeClicks())
}

// CashOutValue is what cashing out now would pay, house edge included.
func (b *MinesBoard) CashOutValue() decimal.Decimal {
	if b.SafeClicks() == 0 {
		return decimal.Zero
	}
	return payoutFor(b.Bet, b.Multiplier()*games.HouseEdge)
}

func (b *MinesBoard) isMine(cell int) bool {
	for _, m := range b.Mines {
		if m == cell {
			return true
		}
	}
	return false
}

func (b *MinesBoard) isRevealed(cell int) bool {
	for _, r := range b.Revealed {
		if r == cell {
			return true
		}
	}
	return false
}

func (b *MinesBoard) validate() error {
	if err := games.ValidateMinesBoard(b.Rows, b.Cols, b.MineCount); err != nil {
		return err
	}
	if len(b.Mines) != b.MineCount {
		return fmt.Errorf("board lists %d mines, expected %d", len(b.Mines), b.MineCount)
	}
	for _, c := range append(append([]int{}, b.Mines...), b.Revealed...) {
		if c < 0 || c >= b.total() {
			return fmt.Errorf("cell %d is off a %dx%d board", c, b.Rows, b.Cols)
		}
	}
	for _, r := range b.Revealed {
		if b.isMine(r) {
			return fmt.Errorf("revealed cell %d is a mine", r)
		}
	}
	if !b.Bet.IsPositive() {
		return fmt.Errorf("board bet %s is not positive", b.Bet)
	}
	return nil
}

// MinesView is what a player may see of the board. Mines are only listed
// once the round is over.
type MinesView struct {
	RoundID      string          `json:"round_id"`
	State        State           `json:"state"`
	Rows         int             `json:"rows"`
	Cols         int             `json:"cols"`
	MineCount    int             `json:"mine_count"`
	Bet          decimal.Decimal `json:"bet"`
	Revealed     []int           `json:"revealed"`
	SafeClicks   int             `json:"safe_clicks"`
	Multiplier   float64         `json:"multiplier"`
	CashOutValue decimal.Decimal `json:"cash_out_value"`
	Mines        []int           `json:"mines,omitempty"`
}

// RevealResult describes one reveal. Ignored is set when the cell had
// already been revealed; Result is set when the reveal ended the round.
type RevealResult struct {
	Cell    int       `json:"cell"`
	Row     int       `json:"row"`
	Col     int       `json:"col"`
	Mine    bool      `json:"mine"`
	Ignored bool      `json:"ignored,omitempty"`
	Board   MinesView `json:"board"`
	Result  *Result   `json:"result,omitempty"`
}

// MinesOutcome is the rendered end of a mines round.
type MinesOutcome struct {
	Rows       int     `json:"rows"`
	Cols       int     `json:"cols"`
	Mines      []int   `json:"mines"`
	Revealed   []int   `json:"revealed"`
	SafeClicks int     `json:"safe_clicks"`
	Multiplier float64 `json:"multiplier"`
	HitMine    *int    `json:"hit_mine,omitempty"`
	Forfeited  bool    `json:"forfeited,omitempty"`
}

// MinesSettlement runs the progressive mines round:
// Setup -> Active -> Busted | CashedOut.
type MinesSettlement struct {
	base
	state State
	board *MinesBoard
}

// NewMinesSettlement needs Options.KV for board persistence.
func NewMinesSettlement(opts Options) *MinesSettlement {
	return &MinesSettlement{base: newBase(opts, "mines_settlement"), state: StateSetup}
}

func (s *MinesSettlement) key() string { return MinesKeyPrefix + s.casinoID }

// State reports the current round state.
func (s *MinesSettlement) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Board returns the visible board, or false outside a round.
func (s *MinesSettlement) Board() (MinesView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.board == nil {
		return MinesView{}, false
	}
	return s.view(false), true
}

// Start validates the board, debits the bet and places the mines.
func (s *MinesSettlement) Start(ctx context.Context, rows, cols, mineCount int, bet decimal.Decimal) (MinesView, error) {
	if err := games.ValidateMinesBoard(rows, cols, mineCount); err != nil {
		return MinesView{}, fmt.Errorf("%w: %v", ErrInvalidMineCount, err)
	}
	bet = ledger.Round(bet)
	if !bet.IsPositive() {
		return MinesView{}, fmt.Errorf("%w: bet must be greater than zero", ledger.ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive {
		return MinesView{}, ErrRoundAlreadyInProgress
	}

	proof, err := s.advance(ctx)
	if err != nil {
		return MinesView{}, err
	}
	before := s.wallet.Balance()
	if _, err := s.wallet.Debit(ctx, bet); err != nil {
		return MinesView{}, err
	}

	board := &MinesBoard{
		RoundID:        uuid.NewString(),
		Rows:           rows,
		Cols:           cols,
		MineCount:      mineCount,
		Bet:            bet,
		Mines:          games.PlaceMines(s.src, rows*cols, mineCount),
		Revealed:       []int{},
		BalanceBefore:  before,
		Nonce:          proof.nonce,
		ServerSeedHash: proof.serverHash,
		ClientSeed:     proof.clientSeed,
		StartedAt:      s.now().UTC(),
	}
	sort.Ints(board.Mines)
	if err := s.persist(ctx, board); err != nil {
		// the stake is already gone; without a stored board it could
		// never be cashed out, so hand it back
		if _, cerr := s.wallet.Credit(ctx, bet); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return MinesView{}, err
	}

	s.board = board
	s.setState(StateActive)
	s.logger.Info("mines round started", "round_id", board.RoundID, "rows", rows, "cols", cols, "mines", mineCount, "bet", bet.StringFixed(2))
	return s.view(false), nil
}

// Reveal opens one cell. Revealing a cell twice is ignored.
func (s *MinesSettlement) Reveal(ctx context.Context, row, col int) (RevealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.board == nil {
		return RevealResult{}, ErrRoundNotActive
	}
	b := s.board
	if row < 0 || row >= b.Rows || col < 0 || col >= b.Cols {
		return RevealResult{}, fmt.Errorf("%w: cell (%d,%d) is off the board", games.ErrInvalidSelection, row, col)
	}
	cell := row*b.Cols + col
	rr := RevealResult{Cell: cell, Row: row, Col: col}

	if b.isRevealed(cell) {
		rr.Ignored = true
		rr.Board = s.view(false)
		return rr, nil
	}

	if b.isMine(cell) {
		rr.Mine = true
		res := s.settle(ctx, StateBusted, decimal.Zero, &cell, false)
		rr.Board = res.board
		rr.Result = &res.Result
		return rr, nil
	}

	b.Revealed = append(b.Revealed, cell)
	if b.SafeClicks() == b.safeCells() {
		res := s.settle(ctx, StateCashedOut, b.CashOutValue(), nil, false)
		if res.err != nil {
			b.Revealed = b.Revealed[:len(b.Revealed)-1]
			return RevealResult{}, res.err
		}
		rr.Board = res.board
		rr.Result = &res.Result
		return rr, nil
	}
	if err := s.persist(ctx, b); err != nil {
		b.Revealed = b.Revealed[:len(b.Revealed)-1]
		return RevealResult{}, err
	}
	rr.Board = s.view(false)
	return rr, nil
}

// CashOut pays bet x multiplier x 0.98. At least one safe cell must have
// been revealed.
func (s *MinesSettlement) CashOut(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.board == nil {
		return Result{}, ErrRoundNotActive
	}
	if s.board.SafeClicks() == 0 {
		return Result{}, fmt.Errorf("%w: reveal a cell before cashing out", ErrRoundNotActive)
	}
	res := s.settle(ctx, StateCashedOut, s.board.CashOutValue(), nil, false)
	return res.Result, res.err
}

// Hide resolves a round the player walked away from: cash out with
// progress, forfeit without. It returns nil when no round is active.
func (s *MinesSettlement) Hide(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive || s.board == nil {
		return nil, nil
	}
	var res settled
	if s.board.SafeClicks() > 0 {
		res = s.settle(ctx, StateCashedOut, s.board.CashOutValue(), nil, false)
	} else {
		res = s.settle(ctx, StateBusted, decimal.Zero, nil, true)
	}
	if res.err != nil {
		return nil, res.err
	}
	return &res.Result, nil
}

// Resume reloads an interrupted round from storage. It returns false when
// there is nothing to resume.
func (s *MinesSettlement) Resume(ctx context.Context) (MinesView, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateActive && s.board != nil {
		return s.view(false), true, nil
	}
	if s.kv == nil {
		return MinesView{}, false, nil
	}

	board, err := LoadMinesBoard(ctx, s.kv, s.casinoID)
	if err != nil || board == nil {
		return MinesView{}, false, err
	}
	if err := board.validate(); err != nil {
		s.logger.Warn("discarding invalid stored mines board", "error", err)
		_ = s.kv.Delete(ctx, s.key())
		return MinesView{}, false, nil
	}

	s.board = board
	s.setState(StateActive)
	s.logger.Info("mines round resumed", "round_id", board.RoundID, "safe_clicks", board.SafeClicks())
	return s.view(false), true, nil
}

type settled struct {
	Result
	board MinesView
	err   error
}

// settle ends the round; the caller holds mu. Money moves before the board
// is deleted so a crash in between resumes into a payable round.
func (s *MinesSettlement) settle(ctx context.Context, to State, payout decimal.Decimal, hit *int, forfeit bool) settled {
	b := s.board
	after := s.wallet.Balance()
	var err error
	if payout.IsPositive() {
		if after, err = s.wallet.Credit(ctx, payout); err != nil {
			return settled{err: err, board: s.view(false)}
		}
	}
	if s.kv != nil {
		if derr := s.kv.Delete(ctx, s.key()); derr != nil {
			s.logger.Warn("mines board not deleted", "round_id", b.RoundID, "error", derr)
		}
	}

	mult := b.Multiplier()
	out := games.Outcome{
		Game:   games.KindMines,
		Factor: payout.Div(b.Bet).InexactFloat64(),
		Win:    payout.IsPositive(),
		Details: MinesOutcome{
			Rows:       b.Rows,
			Cols:       b.Cols,
			Mines:      b.Mines,
			Revealed:   b.Revealed,
			SafeClicks: b.SafeClicks(),
			Multiplier: mult,
			HitMine:    hit,
			Forfeited:  forfeit,
		},
	}
	switch {
	case hit != nil:
		out.Summary = fmt.Sprintf("hit a mine after %d safe reveals", b.SafeClicks())
	case forfeit:
		out.Summary = "round abandoned before any reveal"
	default:
		out.Summary = fmt.Sprintf("cashed out at x%.2f after %d safe reveals", mult, b.SafeClicks())
	}

	res := Result{
		RoundID:       b.RoundID,
		Game:          games.KindMines,
		Bet:           b.Bet,
		ExtraStake:    decimal.Zero,
		Payout:        payout,
		BalanceBefore: b.BalanceBefore,
		BalanceAfter:  after,
		Win:           out.Win,
		Outcome:       out,
	}
	s.setState(to)
	view := s.view(true)
	s.finish(ctx, &res, fairProof{nonce: b.Nonce, serverHash: b.ServerSeedHash, clientSeed: b.ClientSeed})
	s.board = nil
	s.setState(StateSetup)
	return settled{Result: res, board: view}
}

func (s *MinesSettlement) persist(ctx context.Context, b *MinesBoard) error {
	if s.kv == nil {
		return nil
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode mines board: %w", err)
	}
	if err := s.kv.Set(ctx, s.key(), string(raw)); err != nil {
		return fmt.Errorf("%w: mines board: %v", ledger.ErrPersistence, err)
	}
	return nil
}

func (s *MinesSettlement) setState(to State) {
	if s.state == to {
		return
	}
	s.transition(games.KindMines, s.state, to)
	s.state = to
}

func (s *MinesSettlement) view(reveal bool) MinesView {
	b := s.board
	v := MinesView{
		RoundID:      b.RoundID,
		State:        s.state,
		Rows:         b.Rows,
		Cols:         b.Cols,
		MineCount:    b.MineCount,
		Bet:          b.Bet,
		Revealed:     append([]int{}, b.Revealed...),
		SafeClicks:   b.SafeClicks(),
		Multiplier:   b.Multiplier(),
		CashOutValue: b.CashOutValue(),
	}
	if reveal {
		v.Mines = append([]int{}, b.Mines...)
	}
	return v
}
