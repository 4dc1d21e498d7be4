package game

// MaxStage is the last quiz stage; AdvanceStage clamps here.
const MaxStage = 3

// StageName returns the display name used in invite prompts and result
// summaries.
func StageName(stage int) string {
	switch stage {
	case 1:
		return "Icebreakers"
	case 2:
		return "Deep Questions"
	case 3:
		return "Final Round"
	}
	return "Unknown"
}

// Match is the opponent a session is played against.
type Match struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	ID       string   `json:"id"`
	Text     string   `json:"question"`
	Category string   `json:"category"`
	Points   int      `json:"points"`
	Options  []Option `json:"options"`
	Required bool     `json:"required"`
}

// Results is the local tally of a finished stage: the player's own answer
// sequence and the count of positions where both players answered the same.
type Results struct {
	Answers []string `json:"answers"`
	Shared  int      `json:"shared"`
}

// ResultSubmission is the POST body of the quiz-result endpoint.
type ResultSubmission struct {
	QuizSessionID  string   `json:"quizSessionId"`
	ReceiverID     string   `json:"receiverId"`
	Answers        []string `json:"answers"`
	TotalQuestions int      `json:"totalQuestions"`
}

// SessionResult is one player's row in the authoritative result fetched
// from the quiz-result endpoint once both players submitted.
type SessionResult struct {
	UserID   string   `json:"userId"`
	UserName string   `json:"userName"`
	Answers  []string `json:"answers"`
	Score    int      `json:"score"`
}

// ResultReport is the full server response for a finished session. Both
// the server-computed compatibility percentage and the shared-answer count
// are kept; compatibility is what the next-stage gate checks.
type ResultReport struct {
	Results       []SessionResult `json:"results"`
	Compatibility int             `json:"compatibility"`
	Shared        int             `json:"shared"`
}
