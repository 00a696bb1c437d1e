package arenadto

type JoinGameRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type MakeMoveRequest struct {
	SessionID    string `json:"sessionId"`
	MoveNotation string `json:"moveNotation"`
	UserID       string `json:"userId"`
}

type LeaveGameRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type FindMatchRequest struct {
	UserID      string `json:"userId"`
	Speed       string `json:"speed"`
	ColorChoice string `json:"colorChoice,omitempty"`
}

type CancelMatchmakingRequest struct {
	UserID string `json:"userId"`
}

type ChallengeUserRequest struct {
	ChallengerID string `json:"challengerId"`
	OpponentID   string `json:"opponentId"`
	Speed        string `json:"speed"`
	ColorChoice  string `json:"colorChoice,omitempty"`
}

type RespondToChallengeRequest struct {
	ChallengeID string `json:"challengeId"`
	UserID      string `json:"userId"`
	Accept      bool   `json:"accept"`
}

type CancelChallengeRequest struct {
	ChallengeID string `json:"challengeId"`
	UserID      string `json:"userId"`
}

// CreateGameRequest is the body of POST /api/games.
type CreateGameRequest struct {
	WhiteID string `json:"whiteId"`
	BlackID string `json:"blackId"`
	Speed   string `json:"speed"`
}

type CreateGameResponse struct {
	SessionID string `json:"sessionId"`
}
