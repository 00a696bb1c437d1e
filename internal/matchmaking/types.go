package matchmaking

import (
	"strings"
	"time"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

type ColorChoice string

const (
	ColorWhite  ColorChoice = "white"
	ColorBlack  ColorChoice = "black"
	ColorRandom ColorChoice = "random"
)

func ParseColorChoice(s string) ColorChoice {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "white", "w":
		return ColorWhite
	case "black", "b":
		return ColorBlack
	default:
		return ColorRandom
	}
}

func (c ColorChoice) fixed() bool { return c == ColorWhite || c == ColorBlack }

// Ticket is one waiting player.
type Ticket struct {
	UserID     string
	SocketID   string
	Speed      domain.Speed
	Color      ColorChoice
	Rating     int
	EnqueuedAt time.Time
}

type Challenge struct {
	ID           string
	ChallengerID string
	OpponentID   string
	Speed        domain.Speed
	Color        ColorChoice
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
