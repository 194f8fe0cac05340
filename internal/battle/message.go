package battle

// AnswerMessage is the inbound gameplay message. Fields are pointers so
// a missing field can be told apart from a zero value: type, userID and
// score are required, optionIndex may be absent or null (no option was
// picked before the timer ran out).
type AnswerMessage struct {
	Type        *string  `json:"type"`
	UserID      *string  `json:"userID"`
	OptionIndex *int     `json:"optionIndex"`
	Score       *float64 `json:"score"`
}
