package arenadto

import "encoding/json"

// Client → server events.
const (
	EventJoinGame           = "joinGame"
	EventRejoinGame         = "rejoinGame"
	EventMakeMove           = "makeMove"
	EventLeaveGame          = "leaveGame"
	EventResign             = "resign"
	EventFindMatch          = "findMatch"
	EventCancelMatchmaking  = "cancelMatchmaking"
	EventChallengeUser      = "challengeUser"
	EventRespondToChallenge = "respondToChallenge"
	EventCancelChallenge    = "cancelChallenge"
)

// Server → client events.
const (
	EventGameState            = "gameState"
	EventMoveHistory          = "moveHistory"
	EventMoveAnalysis         = "moveAnalysis"
	EventMatchFound           = "matchFound"
	EventInQueue              = "inQueue"
	EventMatchmakingCancelled = "matchmakingCancelled"
	EventGameChallenge        = "gameChallenge"
	EventChallengeSent        = "challengeSent"
	EventChallengeResponse    = "challengeResponse"
	EventChallengeExpired     = "challengeExpired"
	EventChallengeCancelled   = "challengeCancelled"
	EventGameOver             = "gameOver"
	EventTimeUpdate           = "timeUpdate"
	EventOpponentDisconnected = "opponentDisconnected"
	EventGameResumed          = "gameResumed"
	EventError                = "error"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame.
func NewEnvelope(event string, data any) (Envelope, error) {
	env := Envelope{Event: event}
	if data == nil {
		return env, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	env.Data = raw
	return env, nil
}
