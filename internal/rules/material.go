package rules

import (
	nchess "github.com/corentings/chess/v2"

	"github.com/RMIT-FinTech-Club/History-Chess-Game-Back-End-sub000/internal/domain"
)

var pieceValues = map[nchess.PieceType]int{
	nchess.Pawn:   1,
	nchess.Knight: 3,
	nchess.Bishop: 3,
	nchess.Rook:   5,
	nchess.Queen:  9,
}

// Material is the pawn-unit material on the board per side.
type Material struct {
	White int
	Black int
}

// Balance is the given side's material minus the opponent's.
func (m Material) Balance(c domain.Color) int {
	if c == domain.White {
		return m.White - m.Black
	}
	return m.Black - m.White
}

func (p *Game) Material() Material {
	var m Material
	board := p.g.Position().Board()
	for file := nchess.FileA; file <= nchess.FileH; file++ {
		for rank := nchess.Rank1; rank <= nchess.Rank8; rank++ {
			piece := board.Piece(nchess.NewSquare(file, rank))
			if piece == nchess.NoPiece {
				continue
			}
			v := pieceValues[piece.Type()]
			if piece.Color() == nchess.White {
				m.White += v
			} else {
				m.Black += v
			}
		}
	}
	return m
}
