package domain

import (
	"strconv"
	"strings"
	"time"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

// Status is the lifecycle state of a live session.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusFinished Status = "finished"
)

// Speed names a time-control family.
type Speed string

const (
	SpeedBullet    Speed = "bullet"
	SpeedBlitz     Speed = "blitz"
	SpeedRapid     Speed = "rapid"
	SpeedClassical Speed = "classical"
)

type TimeControl struct {
	Initial   time.Duration
	Increment time.Duration
}

var timeControls = map[Speed]TimeControl{
	SpeedBullet:    {Initial: 1 * time.Minute},
	SpeedBlitz:     {Initial: 3 * time.Minute, Increment: 2 * time.Second},
	SpeedRapid:     {Initial: 10 * time.Minute},
	SpeedClassical: {Initial: 30 * time.Minute},
}

func ParseSpeed(s string) (Speed, bool) {
	sp := Speed(strings.ToLower(strings.TrimSpace(s)))
	_, ok := timeControls[sp]
	return sp, ok
}

func (s Speed) TimeControl() TimeControl { return timeControls[s] }

// String renders the PGN TimeControl tag value, e.g. "180+2".
func (tc TimeControl) String() string {
	return strconv.Itoa(int(tc.Initial/time.Second)) + "+" + strconv.Itoa(int(tc.Increment/time.Second))
}

// MatchType tells downstream consumers how a session came to be.
type MatchType string

const (
	MatchQueue     MatchType = "matchmaking"
	MatchChallenge MatchType = "challenge"
	MatchDirect    MatchType = "direct"
)

// Reason explains why a session finished.
type Reason string

const (
	ReasonCheckmate            Reason = "checkmate"
	ReasonStalemate            Reason = "stalemate"
	ReasonRepetition           Reason = "repetition"
	ReasonMoveRule             Reason = "move_rule"
	ReasonInsufficientMaterial Reason = "insufficient_material"
	ReasonTimeout              Reason = "timeout"
	ReasonDisconnect           Reason = "disconnect"
	ReasonAbandon              Reason = "abandon"
	ReasonAborted              Reason = "aborted"
)

// Outcome is the input to finalize. An empty Winner means a draw unless
// Reason is ReasonAborted.
type Outcome struct {
	Winner Color  `json:"winner,omitempty"`
	Reason Reason `json:"reason"`
}

func (o Outcome) Aborted() bool { return o.Reason == ReasonAborted }

// Result maps the outcome onto the PGN result token.
func (o Outcome) Result() string {
	switch {
	case o.Aborted():
		return "*"
	case o.Winner == White:
		return "1-0"
	case o.Winner == Black:
		return "0-1"
	default:
		return "1/2-1/2"
	}
}
