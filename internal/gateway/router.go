package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/session"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

// NewRouter mounts the socket endpoint and the small HTTP surface.
func NewRouter(s *Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/ws", s.HandleWS)
	r.With(s.accessLog).Get("/healthz", s.health)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.accessLog)
		r.Post("/games", s.createGame)
		r.Get("/games/{id}", s.getGame)
		r.Get("/users/{id}/game", s.getUserGame)
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		s.logger.Info("http_request",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.games.Live(),
		"queued":   s.mm.QueueLen(),
		"sockets":  s.hub.Len(),
	})
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request) {
	var req arenadto.CreateGameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, readLimit)).Decode(&req); err != nil {
		s.writeError(w, errBadRequest)
		return
	}
	id, err := s.games.CreateSession(r.Context(), session.CreateRequest{
		WhiteID:   req.WhiteID,
		BlackID:   req.BlackID,
		Speed:     req.Speed,
		MatchType: domain.MatchDirect,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, arenadto.CreateGameResponse{SessionID: id})
}

func (s *Server) getGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.games.State(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) getUserGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.games.ActiveGame(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, status := classify(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, errBadRequest) {
		s.logger.Error("http_request_failed", zap.Error(err))
	}
	writeJSON(w, status, arenadto.ErrorPayload{Code: code, Message: s.cat.Error(code, nil)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
