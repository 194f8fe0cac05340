package ws

// Frame type constants for the battle wire protocol.
const (
	// Server -> Client
	TypeWait      = "wait"
	TypeStartGame = "start_game"

	// Both directions
	TypeAnswer = "answer"
)

// Frames are flat JSON objects; the field names below are the wire
// contract shared with the game clients.

// WaitFrame tells a freshly queued host that no opponent is available yet.
type WaitFrame struct {
	Type string `json:"type"`
}

// ProblemFrame is one randomized quiz problem as delivered to clients.
// Answer already points into the shuffled Options slice.
type ProblemFrame struct {
	Problem string   `json:"problem"`
	Options []string `json:"options"`
	Answer  int      `json:"answer"`
}

// StartGameFrame opens the round for both members of a room. Usernames
// and Names are ordered host first, guest second.
type StartGameFrame struct {
	Type      string         `json:"type"`
	Problems  []ProblemFrame `json:"problems"`
	Usernames []string       `json:"usernames"`
	Names     []string       `json:"names"`
}

// AnswerFrame relays one player's self-reported answer to every member of
// the room, the sender included. OptionIndex is null when the player let
// the timer run out.
type AnswerFrame struct {
	Type         string  `json:"type"`
	AnsweredUser string  `json:"answered_user"`
	OptionIndex  *int    `json:"option_index"`
	AddedScore   float64 `json:"added_score"`
}

// ErrorFrame is the last message written before the server closes a
// misbehaving or unlucky connection.
type ErrorFrame struct {
	Error string `json:"error"`
}
