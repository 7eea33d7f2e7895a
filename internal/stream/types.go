package stream

import (
	"superengulfing/internal/quiz"
	"superengulfing/pkg/pattern"
	"superengulfing/pkg/scenario"
)

// Client operations.
const (
	OpScenario = "scenario"
	OpQuiz     = "quiz"
	OpAnswer   = "answer"
)

// ClientMessage is a request sent over the websocket, e.g.
// {"op":"scenario","kind":"RUN","plus":true,"bullish":true,"depth":3,"seed":7}.
type ClientMessage struct {
	Op      string        `json:"op"`
	Kind    scenario.Kind `json:"kind,omitempty"`
	Plus    bool          `json:"plus,omitempty"`
	Bullish bool          `json:"bullish,omitempty"`
	Depth   int           `json:"depth,omitempty"` // 0 uses engine.sweep_depth
	Seed    *uint64       `json:"seed,omitempty"`  // nil draws from the session
	ID      string        `json:"id,omitempty"`    // question id for answers
}

// BarMessage carries one bar of a streamed sequence. Classification is null
// when the bar has no pattern or the stream is a quiz prompt.
type BarMessage struct {
	Type           string          `json:"type"` // "bar"
	Index          int             `json:"index"`
	Bar            pattern.Bar     `json:"bar"`
	Classification *pattern.Result `json:"classification"`
}

// DoneMessage ends a scenario stream.
type DoneMessage struct {
	Type         string `json:"type"` // "done"
	TriggerIndex int    `json:"triggerIndex"`
	Verified     bool   `json:"verified"`
}

// QuestionMessage follows a quiz prompt and names the question to answer.
type QuestionMessage struct {
	Type         string `json:"type"` // "question"
	ID           string `json:"id"`
	TriggerIndex int    `json:"triggerIndex"`
	Depth        int    `json:"depth"`
}

// GradedMessage answers a guess.
type GradedMessage struct {
	Type    string           `json:"type"` // "graded"
	Correct bool             `json:"correct"`
	Request scenario.Request `json:"request"`
	Answer  pattern.Result   `json:"answer"`
	Score   quiz.Scorecard   `json:"score"`
}

// ErrorMessage reports a failed operation. The connection stays open.
type ErrorMessage struct {
	Type  string `json:"type"` // "error"
	Error string `json:"error"`
}

// ClassifyRequest is the body of POST /api/classify.
type ClassifyRequest struct {
	Bars  []pattern.Bar `json:"bars"`
	Depth int           `json:"depth"`
}

// ClassifyResponse lists every classified bar of the request.
type ClassifyResponse struct {
	Matches []pattern.Match `json:"matches"`
}
