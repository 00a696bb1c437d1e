package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/matchmaking"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/msgcat"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/session"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/pkg/arenadto"
)

const readLimit = 64 << 10

type Games interface {
	CreateSession(ctx context.Context, req session.CreateRequest) (string, error)
	Join(ctx context.Context, conn session.Conn, sessionID, userID string) error
	ApplyMove(ctx context.Context, sessionID, actorID, notation string) (session.MoveResult, error)
	Leave(ctx context.Context, sessionID, userID string) error
	Disconnect(conn session.Conn)
	State(ctx context.Context, sessionID string) (session.Snapshot, error)
	ActiveGame(ctx context.Context, userID string) (session.Snapshot, error)
	Live() int
}

type Matchmaker interface {
	Enqueue(ctx context.Context, userID, socketID, speed, color string) (string, error)
	Cancel(userID string) bool
	RemoveSocket(socketID string) int
	Challenge(ctx context.Context, challengerID, opponentID, speed, color string) (*matchmaking.Challenge, error)
	Respond(ctx context.Context, challengeID, userID string, accept bool) (string, error)
	CancelChallenge(challengeID, userID string) error
	Pending(opponentID string) (*matchmaking.Challenge, bool)
	QueueLen() int
}

type Deps struct {
	Games          Games
	Matchmaker     Matchmaker
	Hub            *Hub
	Catalog        *msgcat.Catalog
	Logger         *zap.Logger
	AllowedOrigins []string
}

type Server struct {
	games   Games
	mm      Matchmaker
	hub     *Hub
	cat     *msgcat.Catalog
	logger  *zap.Logger
	origins []string
}

func NewServer(deps Deps) *Server {
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Server{
		games:   deps.Games,
		mm:      deps.Matchmaker,
		hub:     deps.Hub,
		cat:     deps.Catalog,
		logger:  deps.Logger,
		origins: deps.AllowedOrigins,
	}
}

// HandleWS upgrades GET /ws?userId=<id>. The socket lives until the client
// goes away or the server closes it.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		s.writeError(w, errBadRequest)
		return
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  s.origins,
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	ws.SetReadLimit(readLimit)

	c := newConn(uuid.NewString(), userID, ws)
	s.hub.add(c)
	s.logger.Info("ws_connected", zap.String("user_id", userID), zap.String("conn_id", c.id))
	go c.writeLoop()
	if ch, ok := s.mm.Pending(userID); ok {
		_ = c.Send(arenadto.EventGameChallenge, matchmaking.ToDTOChallenge(ch))
	}

	s.readLoop(r.Context(), c)

	c.Close("bye")
	s.hub.remove(c)
	s.games.Disconnect(c)
	if n := s.mm.RemoveSocket(c.id); n > 0 {
		s.logger.Info("queue_socket_removed", zap.String("user_id", userID), zap.Int("tickets", n))
	}
	s.logger.Info("ws_disconnected", zap.String("user_id", userID), zap.String("conn_id", c.id))
}

func (s *Server) readLoop(ctx context.Context, c *Conn) {
	for {
		var env arenadto.Envelope
		if err := wsjson.Read(ctx, c.ws, &env); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				s.logger.Debug("ws_read_end", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		s.dispatch(ctx, c, env)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errBadRequest
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errBadRequest
	}
	return nil
}

// identity resolves the acting user for a frame. An empty id means the
// socket's own user; a different one is refused.
func identity(c *Conn, claimed string) (string, error) {
	claimed = strings.TrimSpace(claimed)
	if claimed == "" || claimed == c.userID {
		return c.userID, nil
	}
	return "", errIdentityMismatch
}

func (s *Server) dispatch(ctx context.Context, c *Conn, env arenadto.Envelope) {
	start := time.Now()
	err := s.handle(ctx, c, env)
	if err != nil {
		s.sendError(c, env.Event, err)
	}
	s.logger.Debug("ws_event",
		zap.String("event", env.Event),
		zap.String("user_id", c.userID),
		zap.Duration("took", time.Since(start)),
		zap.Error(err),
	)
}

func (s *Server) handle(ctx context.Context, c *Conn, env arenadto.Envelope) error {
	switch env.Event {
	case arenadto.EventJoinGame, arenadto.EventRejoinGame:
		var req arenadto.JoinGameRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		return s.games.Join(ctx, c, req.SessionID, uid)

	case arenadto.EventMakeMove:
		var req arenadto.MakeMoveRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		_, err = s.games.ApplyMove(ctx, req.SessionID, uid, req.MoveNotation)
		return err

	case arenadto.EventLeaveGame, arenadto.EventResign:
		var req arenadto.LeaveGameRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		return s.games.Leave(ctx, req.SessionID, uid)

	case arenadto.EventFindMatch:
		var req arenadto.FindMatchRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		_, err = s.mm.Enqueue(ctx, uid, c.id, req.Speed, req.ColorChoice)
		return err

	case arenadto.EventCancelMatchmaking:
		var req arenadto.CancelMatchmakingRequest
		_ = json.Unmarshal(env.Data, &req)
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		s.mm.Cancel(uid)
		return nil

	case arenadto.EventChallengeUser:
		var req arenadto.ChallengeUserRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.ChallengerID)
		if err != nil {
			return err
		}
		_, err = s.mm.Challenge(ctx, uid, req.OpponentID, req.Speed, req.ColorChoice)
		return err

	case arenadto.EventRespondToChallenge:
		var req arenadto.RespondToChallengeRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		_, err = s.mm.Respond(ctx, req.ChallengeID, uid, req.Accept)
		return err

	case arenadto.EventCancelChallenge:
		var req arenadto.CancelChallengeRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		uid, err := identity(c, req.UserID)
		if err != nil {
			return err
		}
		return s.mm.CancelChallenge(req.ChallengeID, uid)
	}
	return unknownEvent(env.Event)
}

type unknownEvent string

func (e unknownEvent) Error() string { return "unknown event " + string(e) }

func (s *Server) sendError(c *Conn, event string, err error) {
	var payload arenadto.ErrorPayload
	if ue, ok := err.(unknownEvent); ok {
		payload.Code = "unknown_event"
		payload.Message = s.cat.Error("unknown_event", map[string]any{"Event": string(ue)})
	} else {
		code, status := classify(err)
		payload.Code = code
		payload.Message = s.cat.Error(code, nil)
		payload.Retryable = status >= http.StatusInternalServerError
		if status >= http.StatusInternalServerError {
			s.logger.Error("ws_event_failed", zap.String("event", event), zap.String("user_id", c.userID), zap.Error(err))
		}
	}
	_ = c.Send(arenadto.EventError, payload)
}
