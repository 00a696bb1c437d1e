package domain

import "time"

// Classification labels move quality.
type Classification string

const (
	ClassBrilliant  Classification = "Brilliant"
	ClassGreat      Classification = "Great"
	ClassBest       Classification = "Best"
	ClassExcellent  Classification = "Excellent"
	ClassGood       Classification = "Good"
	ClassInaccuracy Classification = "Inaccuracy"
	ClassMistake    Classification = "Mistake"
	ClassBlunder    Classification = "Blunder"
	ClassCheckmate  Classification = "Checkmate"
)

// AnalysisResult is derived per move and never drives game state.
type AnalysisResult struct {
	EvalBeforeCP    int            `json:"evalBeforeCp"`
	EvalAfterCP     int            `json:"evalAfterCp"`
	WinProbBefore   float64        `json:"winProbBefore"`
	WinProbAfter    float64        `json:"winProbAfter"`
	BestMoveWinProb float64        `json:"bestMoveWinProb"`
	PointsLost      float64        `json:"pointsLost"`
	Classification  Classification `json:"classification"`
	BestMove        string         `json:"bestMove,omitempty"`
	MaterialDelta   int            `json:"materialDelta"`
	Error           string         `json:"error,omitempty"`
}

// Analyzed reports whether the result counts toward accuracy.
func (a *AnalysisResult) Analyzed() bool { return a != nil && a.Error == "" }

// MoveRecord is appended once per accepted move. Analysis is attached later,
// keyed by Seq.
type MoveRecord struct {
	Seq           int             `json:"sequenceNumber"`
	Notation      string          `json:"notation"`
	UCI           string          `json:"uci"`
	Color         Color           `json:"colorToMove"`
	ActorID       string          `json:"actorId"`
	PositionAfter string          `json:"positionAfter"`
	DurationMs    int64           `json:"durationMs"`
	PlayedAt      time.Time       `json:"playedAt"`
	Analysis      *AnalysisResult `json:"analysis,omitempty"`
}

// User is the subset of the user record the arena needs.
type User struct {
	ID     string `json:"id"`
	Rating int    `json:"rating"`
	Wallet string `json:"walletAddress"`
}

// Accuracy holds per-side 0..100 scores.
type Accuracy struct {
	White float64 `json:"white"`
	Black float64 `json:"black"`
}

// GameRecord is the durable projection of a finished session.
type GameRecord struct {
	ID        string       `json:"id"`
	WhiteID   string       `json:"whiteId"`
	BlackID   string       `json:"blackId"`
	Speed     Speed        `json:"speed"`
	MatchType MatchType    `json:"matchType"`
	Result    string       `json:"result"`
	Reason    Reason       `json:"reason"`
	WinnerID  string       `json:"winnerId,omitempty"`
	FinalFEN  string       `json:"finalFen"`
	PGN       string       `json:"pgn"`
	Moves     []MoveRecord `json:"moves"`
	Accuracy  Accuracy     `json:"accuracy"`
	StartedAt time.Time    `json:"startedAt"`
	EndedAt   time.Time    `json:"endedAt"`
}

// RatingChange is one finalize's rating write for both sides.
type RatingChange struct {
	GameID      string `json:"gameId"`
	WhiteID     string `json:"whiteId"`
	BlackID     string `json:"blackId"`
	WhiteBefore int    `json:"whiteBefore"`
	BlackBefore int    `json:"blackBefore"`
	WhiteDelta  int    `json:"whiteDelta"`
	BlackDelta  int    `json:"blackDelta"`
}

func (r RatingChange) WhiteAfter() int { return r.WhiteBefore + r.WhiteDelta }
func (r RatingChange) BlackAfter() int { return r.BlackBefore + r.BlackDelta }
