package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/casino-settle-go/internal/games"
)

// handlePlaceBet settles one single-draw round.
func (s *Server) handlePlaceBet(w http.ResponseWriter, r *http.Request) {
	var req BetRequest
	if !s.decode(w, r, &req) {
		return
	}
	kind := games.Kind(chi.URLParam(r, "game"))

	res, err := s.opts.Rounds.PlaceBet(r.Context(), kind, req.Amount, req.Params)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleWheelStatus(w http.ResponseWriter, r *http.Request) {
	available, at, err := s.opts.Rounds.Available(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	resp := WheelStatusResponse{Available: available}
	if !resp.Available {
		resp.AvailableAt = at.UTC().Format(time.RFC3339)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSpinWheel(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Rounds.SpinBonus(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMinesState(w http.ResponseWriter, r *http.Request) {
	board, active := s.opts.Mines.Board()
	resp := MinesStateResponse{Active: active}
	if active {
		resp.Board = &board
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMinesStart(w http.ResponseWriter, r *http.Request) {
	var req MinesStartRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.opts.Mines.Start(r.Context(), req.Rows, req.Cols, req.Mines, req.Bet)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleMinesReveal(w http.ResponseWriter, r *http.Request) {
	var req MinesRevealRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.opts.Mines.Reveal(r.Context(), req.Row, req.Col)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMinesCashOut(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Mines.CashOut(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// handleMinesHide closes the board the way leaving the table does.
func (s *Server) handleMinesHide(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Mines.Hide(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, MinesHideResponse{Result: res})
}

func (s *Server) handleBlackjackState(w http.ResponseWriter, r *http.Request) {
	view, active := s.opts.Blackjack.Hand()
	if !active {
		s.writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBlackjackDeal(w http.ResponseWriter, r *http.Request) {
	var req BlackjackDealRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.opts.Blackjack.Deal(r.Context(), req.Bet)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBlackjackHit(w http.ResponseWriter, r *http.Request) {
	view, err := s.opts.Blackjack.Hit(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleBlackjackStand(w http.ResponseWriter, r *http.Request) {
	view, err := s.opts.Blackjack.Stand(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePokerState(w http.ResponseWriter, r *http.Request) {
	view, active := s.opts.Poker.Hand()
	if !active {
		s.writeJSON(w, http.StatusOK, map[string]any{"active": false})
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePokerDeal(w http.ResponseWriter, r *http.Request) {
	var req PokerDealRequest
	if !s.decode(w, r, &req) {
		return
	}
	view, err := s.opts.Poker.Deal(r.Context(), req.Opponents, req.Ante)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePokerAdvance(w http.ResponseWriter, r *http.Request) {
	view, err := s.opts.Poker.AdvanceStreet(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePokerShowdown(w http.ResponseWriter, r *http.Request) {
	res, err := s.opts.Poker.Showdown(r.Context())
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}
