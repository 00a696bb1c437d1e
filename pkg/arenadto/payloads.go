package arenadto

import "time"

// Analysis mirrors a finished move analysis.
type Analysis struct {
	EvalBeforeCP    int     `json:"evalBefore"`
	EvalAfterCP     int     `json:"evalAfter"`
	WinProbBefore   float64 `json:"winProbBefore"`
	WinProbAfter    float64 `json:"winProbAfter"`
	BestMoveWinProb float64 `json:"bestMoveWinProb"`
	PointsLost      float64 `json:"pointsLost"`
	Classification  string  `json:"classification"`
	BestMove        string  `json:"bestMove,omitempty"`
	MaterialDelta   int     `json:"materialDelta"`
	Error           string  `json:"error,omitempty"`
}

type Move struct {
	Seq           int       `json:"sequenceNumber"`
	Notation      string    `json:"moveNotation"`
	UCI           string    `json:"uci"`
	Color         string    `json:"colorToMove"`
	ActorID       string    `json:"userId"`
	PositionAfter string    `json:"positionAfter"`
	DurationMs    int64     `json:"durationMs"`
	PlayedAt      time.Time `json:"playedAt"`
	Analysis      *Analysis `json:"analysis,omitempty"`
}

type GameState struct {
	SessionID   string `json:"sessionId"`
	WhiteID     string `json:"whiteId"`
	BlackID     string `json:"blackId"`
	Speed       string `json:"speed"`
	MatchType   string `json:"matchType"`
	Status      string `json:"status"`
	FEN         string `json:"fen"`
	Turn        string `json:"turn"`
	WhiteTimeMs int64  `json:"whiteTimeMs"`
	BlackTimeMs int64  `json:"blackTimeMs"`
	MoveCount   int    `json:"moveCount"`
	LastMove    *Move  `json:"lastMove,omitempty"`
}

type MoveHistory struct {
	SessionID string `json:"sessionId"`
	Moves     []Move `json:"moves"`
}

type MoveAnalysis struct {
	SessionID string   `json:"sessionId"`
	Seq       int      `json:"sequenceNumber"`
	Analysis  Analysis `json:"analysis"`
}

type TimeUpdate struct {
	SessionID   string `json:"sessionId"`
	WhiteTimeMs int64  `json:"whiteTimeMs"`
	BlackTimeMs int64  `json:"blackTimeMs"`
	Turn        string `json:"turn"`
}

type PlayerPresence struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	GraceMs   int64  `json:"graceMs,omitempty"`
}

type EloSide struct {
	Before int `json:"before"`
	After  int `json:"after"`
	Delta  int `json:"delta"`
}

type EloUpdate struct {
	White EloSide `json:"white"`
	Black EloSide `json:"black"`
}

type Accuracy struct {
	White float64 `json:"white"`
	Black float64 `json:"black"`
}

type GameOver struct {
	SessionID string     `json:"sessionId"`
	Result    string     `json:"result"`
	Reason    string     `json:"reason"`
	WinnerID  string     `json:"winnerId,omitempty"`
	EloUpdate *EloUpdate `json:"eloUpdate,omitempty"`
	Accuracy  Accuracy   `json:"accuracy"`
}

type MatchFound struct {
	SessionID  string `json:"sessionId"`
	Color      string `json:"color"`
	OpponentID string `json:"opponentId"`
	Speed      string `json:"speed"`
}

type InQueue struct {
	UserID string `json:"userId"`
	Speed  string `json:"speed"`
}

type Challenge struct {
	ChallengeID  string    `json:"challengeId"`
	ChallengerID string    `json:"challengerId"`
	OpponentID   string    `json:"opponentId"`
	Speed        string    `json:"speed"`
	ColorChoice  string    `json:"colorChoice"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type ChallengeResponse struct {
	ChallengeID string `json:"challengeId"`
	Accepted    bool   `json:"accepted"`
	SessionID   string `json:"sessionId,omitempty"`
}
