package matchmaking

import (
	"crypto/rand"
	"math/big"
)

// compatible reports whether two tickets may be paired.
func compatible(a, b *Ticket, ratingRange int) bool {
	if a.UserID == b.UserID || a.Speed != b.Speed {
		return false
	}
	d := a.Rating - b.Rating
	if d < 0 {
		d = -d
	}
	if d > ratingRange {
		return false
	}
	return !(a.Color.fixed() && a.Color == b.Color)
}

// assignColors honours a fixed preference on either side, otherwise flips a coin.
func assignColors(a, b *Ticket) (white, black string) {
	switch {
	case a.Color == ColorWhite || b.Color == ColorBlack:
		return a.UserID, b.UserID
	case a.Color == ColorBlack || b.Color == ColorWhite:
		return b.UserID, a.UserID
	}
	if coinFlip() {
		return b.UserID, a.UserID
	}
	return a.UserID, b.UserID
}

// challengeColors resolves the challenger's preference.
func challengeColors(ch *Challenge) (white, black string) {
	switch ch.Color {
	case ColorWhite:
		return ch.ChallengerID, ch.OpponentID
	case ColorBlack:
		return ch.OpponentID, ch.ChallengerID
	}
	if coinFlip() {
		return ch.OpponentID, ch.ChallengerID
	}
	return ch.ChallengerID, ch.OpponentID
}

func coinFlip() bool {
	n, err := rand.Int(rand.Reader, big.NewInt(2))
	return err == nil && n.Int64() == 0
}
