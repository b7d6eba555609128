package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/casino-settle-go/internal/engine"
	"github.com/MJE43/casino-settle-go/internal/games"
	"github.com/MJE43/casino-settle-go/internal/store"
)

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, BalanceResponse{
		CasinoID: s.opts.Ledger.CasinoID(),
		Balance:  s.opts.Ledger.Balance(),
		Pending:  s.opts.Rounds.PendingPayout(),
	})
}

// handleListGames returns the single-draw games the round settlement accepts.
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GamesResponse{
		Games:         s.opts.Rounds.Registry().Specs(),
		EngineVersion: EngineVersion,
	})
}

func (s *Server) handlePromoRedeem(w http.ResponseWriter, r *http.Request) {
	var req PromoRedeemRequest
	if !s.decode(w, r, &req) {
		return
	}
	red, err := s.opts.Promo.Redeem(r.Context(), req.Code)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, red)
}

func (s *Server) handleListRounds(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB == nil {
		s.unavailable(w, r, "round history")
		return
	}
	q := store.RoundsQuery{Game: r.URL.Query().Get("game")}
	var err error
	if q.Page, err = queryInt(r, "page"); err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "page must be an integer").
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}
	if q.PerPage, err = queryInt(r, "per_page"); err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "per_page must be an integer").
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}

	list, err := s.opts.DB.ListRounds(r.Context(), q)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB == nil {
		s.unavailable(w, r, "round history")
		return
	}
	round, err := s.opts.DB.GetRound(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, round)
}

// handleVerify replays a round from revealed seeds.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !s.decode(w, r, &req) {
		return
	}
	if !req.Seeds.Valid() {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "server and client seeds are required").
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}

	resp := VerifyResponse{
		Nonce:          req.Nonce,
		ServerSeedHash: engine.HashServerSeed(req.Seeds.Server),
		EngineVersion:  EngineVersion,
		Echo:           req,
	}
	// The echo never carries the revealed server seed back.
	resp.Echo.Seeds.Server = ""

	kind := games.Kind(req.Game)
	if kind == games.KindMines {
		mines, err := games.VerifyMines(req.Seeds, req.Nonce, req.Rows, req.Cols, req.Mines)
		if err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
		resp.Mines = mines
		s.writeJSON(w, http.StatusOK, resp)
		return
	}

	out, err := s.opts.Rounds.Registry().Verify(kind, req.Seeds, req.Nonce,
		games.Stake{Bet: req.Bet, Available: req.Available}, req.Params)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	resp.Outcome = &out
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSeeds(w http.ResponseWriter, r *http.Request) {
	if s.opts.Source == nil {
		s.unavailable(w, r, "seeded RNG")
		return
	}
	s.writeJSON(w, http.StatusOK, SeedsResponse{
		ServerSeedHash: s.opts.Source.ServerSeedHash(),
		ClientSeed:     s.opts.Source.ClientSeed(),
		Nonce:          s.opts.Source.Nonce(),
	})
}

// handleRotateSeeds retires the server seed and reveals it.
func (s *Server) handleRotateSeeds(w http.ResponseWriter, r *http.Request) {
	if s.opts.Source == nil || s.opts.Vault == nil {
		s.unavailable(w, r, "seed rotation")
		return
	}
	var req RotateSeedsRequest
	if !s.decode(w, r, &req) {
		return
	}
	rot, err := s.opts.Vault.Rotate(s.opts.CasinoID, s.opts.Source, req.ClientSeed)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rot)
}

func (s *Server) handleScriptState(w http.ResponseWriter, r *http.Request) {
	if s.opts.Script == nil {
		s.unavailable(w, r, "scripting")
		return
	}
	s.writeJSON(w, http.StatusOK, ScriptStateResponse{
		EngineSnapshot: s.opts.Script.GetState(),
		Logs:           s.opts.Script.GetLogs(),
	})
}

func (s *Server) handleScriptStart(w http.ResponseWriter, r *http.Request) {
	if s.opts.Script == nil {
		s.unavailable(w, r, "scripting")
		return
	}
	var req ScriptStartRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.opts.Recorder != nil {
		s.opts.Recorder.Begin(req.Script)
	}
	balance := s.opts.Ledger.Balance().InexactFloat64()
	if err := s.opts.Script.Start(req.Script, balance); err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeScript, err.Error()).
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}
	s.writeJSON(w, http.StatusAccepted, s.opts.Script.GetState())
}

func (s *Server) handleScriptStop(w http.ResponseWriter, r *http.Request) {
	if s.opts.Script == nil {
		s.unavailable(w, r, "scripting")
		return
	}
	if err := s.opts.Script.Stop(); err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeScript, err.Error()).
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}
	s.writeJSON(w, http.StatusOK, s.opts.Script.GetState())
}

func (s *Server) handleListScriptSessions(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		s.unavailable(w, r, "script history")
		return
	}
	page, err := queryInt(r, "page")
	if err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "page must be an integer").
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}
	perPage, err := queryInt(r, "per_page")
	if err != nil {
		s.errorHandler.HandleError(w, r, NewError(ErrTypeValidation, "per_page must be an integer").
			WithRequestID(middleware.GetReqID(r.Context())).Build())
		return
	}
	list, err := s.opts.Sessions.ListSessions(r.Context(), page, perPage)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetScriptSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		s.unavailable(w, r, "script history")
		return
	}
	sess, err := s.opts.Sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteScriptSession(w http.ResponseWriter, r *http.Request) {
	if s.opts.Sessions == nil {
		s.unavailable(w, r, "script history")
		return
	}
	id := chi.URLParam(r, "id")
	if s.opts.Recorder != nil {
		if cur, ok := s.opts.Recorder.Current(); ok && cur == id {
			s.errorHandler.HandleError(w, r, NewError(ErrTypeScript, "session is still running").
				WithRequestID(middleware.GetReqID(r.Context())).Build())
			return
		}
	}
	if err := s.opts.Sessions.DeleteSession(r.Context(), id); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
