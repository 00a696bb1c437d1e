package gateway

import (
	"errors"
	"net/http"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/matchmaking"
	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/session"
)

var (
	errBadRequest       = errors.New("bad request")
	errIdentityMismatch = errors.New("user id does not match connection")
)

type errorCode struct {
	err    error
	code   string
	status int
}

var errorCodes = []errorCode{
	{errBadRequest, "bad_request", http.StatusBadRequest},
	{errIdentityMismatch, "identity_mismatch", http.StatusForbidden},
	{session.ErrNotFound, "not_found", http.StatusNotFound},
	{session.ErrNotParticipant, "not_participant", http.StatusForbidden},
	{session.ErrNotYourTurn, "not_your_turn", http.StatusConflict},
	{session.ErrIllegalMove, "illegal_move", http.StatusUnprocessableEntity},
	{session.ErrNotActive, "session_not_active", http.StatusConflict},
	{session.ErrFinished, "session_finished", http.StatusConflict},
	{session.ErrUserBusy, "duplicate_join", http.StatusConflict},
	{session.ErrInvalidPlayers, "invalid_players", http.StatusBadRequest},
	{session.ErrUnknownSpeed, "unknown_speed", http.StatusBadRequest},
	{session.ErrUnknownUser, "unknown_user", http.StatusNotFound},
	{matchmaking.ErrInvalidArgs, "bad_request", http.StatusBadRequest},
	{matchmaking.ErrUnknownSpeed, "unknown_speed", http.StatusBadRequest},
	{matchmaking.ErrAlreadyQueued, "already_queued", http.StatusConflict},
	{matchmaking.ErrInGame, "in_game", http.StatusConflict},
	{matchmaking.ErrSelfChallenge, "self_challenge", http.StatusBadRequest},
	{matchmaking.ErrOpponentOffline, "opponent_offline", http.StatusConflict},
	{matchmaking.ErrChallengePending, "challenge_pending", http.StatusConflict},
	{matchmaking.ErrChallengeNotFound, "challenge_not_found", http.StatusNotFound},
	{matchmaking.ErrNotChallengeParty, "not_challenge_party", http.StatusForbidden},
}

// classify maps an error to its stable code and HTTP status.
func classify(err error) (string, int) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code, ec.status
		}
	}
	return "internal", http.StatusInternalServerError
}
