// Package rules adapts the chess library to the narrow legality and
// terminal-state oracle the session coordinator consumes.
package rules

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

var ErrIllegalMove = errors.New("illegal move")

// Oracle creates positions.
type Oracle interface {
	NewPosition() Position
	FromFEN(fen string) (Position, error)
}

// Position is a mutable game owned by exactly one session.
type Position interface {
	Apply(notation string) (Move, error)
	FEN() string
	Turn() domain.Color
	Status() Status
	Material() Material
	Clone() Position
	PGN(outcome domain.Outcome, tags map[string]string) string
}

type Move struct {
	UCI string
	SAN string
}

// Status reports whether the position ended the game and how.
type Status struct {
	Terminal bool
	Winner   domain.Color
	Reason   domain.Reason
}

func (s Status) Outcome() domain.Outcome {
	return domain.Outcome{Winner: s.Winner, Reason: s.Reason}
}

// Chess is the Oracle backed by github.com/corentings/chess.
type Chess struct{}

func New() Chess { return Chess{} }

func (Chess) NewPosition() Position { return &Game{g: nchess.NewGame()} }

func (Chess) FromFEN(fen string) (Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return &Game{g: nchess.NewGame()}, nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("parse fen: %w", err)
	}
	return &Game{g: nchess.NewGame(opt)}, nil
}

// Game wraps a library game. Not safe for concurrent use.
type Game struct {
	g *nchess.Game
}

// Apply plays a move given in UCI (e2e4, e7e8q) or SAN (Nf3, O-O).
// A rejected move leaves the position untouched.
func (p *Game) Apply(notation string) (Move, error) {
	raw := strings.TrimSpace(notation)
	if raw == "" {
		return Move{}, ErrIllegalMove
	}
	if p.g.Outcome() != nchess.NoOutcome {
		return Move{}, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	pos := p.g.Position()

	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil {
		mv, err = nchess.AlgebraicNotation{}.Decode(pos, raw)
		if err != nil {
			return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
	}
	out := Move{
		UCI: nchess.UCINotation{}.Encode(pos, mv),
		SAN: nchess.AlgebraicNotation{}.Encode(pos, mv),
	}
	if err := p.g.Move(mv, nil); err != nil {
		return Move{}, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	p.claimDraws()
	return out, nil
}

// claimDraws applies threefold repetition and the fifty-move rule as soon as
// they become available; nobody is asked to claim them.
func (p *Game) claimDraws() {
	if p.g.Outcome() != nchess.NoOutcome {
		return
	}
	for _, m := range p.g.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			_ = p.g.Draw(m)
			return
		}
	}
}

func (p *Game) FEN() string { return p.g.FEN() }

func (p *Game) Turn() domain.Color { return colorFrom(p.g.Position().Turn()) }

func (p *Game) Status() Status {
	var st Status
	switch p.g.Outcome() {
	case nchess.NoOutcome:
		return st
	case nchess.WhiteWon:
		st.Winner = domain.White
	case nchess.BlackWon:
		st.Winner = domain.Black
	}
	st.Terminal = true
	st.Reason = reasonFrom(p.g.Method())
	return st
}

func (p *Game) Clone() Position { return &Game{g: p.g.Clone()} }

// PGN renders the game with the given tags. Outcomes the board cannot know
// about (timeouts, forfeits) are written as a resignation of the loser.
func (p *Game) PGN(outcome domain.Outcome, tags map[string]string) string {
	g := p.g.Clone()
	for k, v := range tags {
		if strings.TrimSpace(v) != "" {
			g.AddTagPair(k, sanitizeTag(v))
		}
	}
	if g.Outcome() == nchess.NoOutcome && outcome.Winner != "" {
		g.Resign(toLib(outcome.Winner.Opposite()))
	}
	if outcome.Reason != "" {
		g.AddTagPair("Termination", string(outcome.Reason))
	}
	return g.String()
}

func reasonFrom(m nchess.Method) domain.Reason {
	switch m {
	case nchess.Checkmate:
		return domain.ReasonCheckmate
	case nchess.Stalemate:
		return domain.ReasonStalemate
	case nchess.ThreefoldRepetition, nchess.FivefoldRepetition:
		return domain.ReasonRepetition
	case nchess.FiftyMoveRule, nchess.SeventyFiveMoveRule:
		return domain.ReasonMoveRule
	case nchess.InsufficientMaterial:
		return domain.ReasonInsufficientMaterial
	case nchess.Resignation:
		return domain.ReasonAbandon
	default:
		return domain.Reason("draw")
	}
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}

func toLib(c domain.Color) nchess.Color {
	if c == domain.White {
		return nchess.White
	}
	return nchess.Black
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
