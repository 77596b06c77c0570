package attempt

import "encoding/json"

const (
	StatusNotAttempted = "Not attempted"
	StatusStarted      = "Started"
	StatusCompleted    = "Completed"
)

// Answer is one recorded submission. Answers are stored in question order
// and never change once appended.
type Answer struct {
	QuestionIndex int             `json:"questionIndex"`
	Correct       bool            `json:"correct"`
	Points        float64         `json:"points"`
	Value         json.RawMessage `json:"value"`
	AnsweredAt    int64           `json:"answeredAt"`
}

// Attempt is the single progress record of one user on one quiz.
type Attempt struct {
	ID                string   `json:"id"`
	UserID            string   `json:"userId"`
	QuizID            string   `json:"quizId"`
	QuizRevision      int64    `json:"quizRevision"` // question set the answers were graded against
	Answers           []Answer `json:"answers"`
	QuestionsAnswered int      `json:"questionsAnswered"`
	Completed         bool     `json:"completed"`
	CurrentScore      float64  `json:"currentScore"`
	StartedAt         int64    `json:"startedAt"`
	UpdatedAt         int64    `json:"updatedAt"`
}

// Status maps the completion flag to its display string.
func (a Attempt) Status() string {
	if a.Completed {
		return StatusCompleted
	}
	return StatusStarted
}

// withAnswer returns a copy with ans appended and the counters advanced.
// The receiver is left untouched.
func (a Attempt) withAnswer(ans Answer, questionCount int) Attempt {
	next := a
	next.Answers = make([]Answer, len(a.Answers), len(a.Answers)+1)
	copy(next.Answers, a.Answers)
	next.Answers = append(next.Answers, ans)
	next.QuestionsAnswered = a.QuestionsAnswered + 1
	next.CurrentScore = a.CurrentScore + ans.Points
	next.Completed = next.QuestionsAnswered >= questionCount
	next.UpdatedAt = ans.AnsweredAt
	return next
}

// Feedback is returned for each accepted answer.
type Feedback struct {
	Correct       bool `json:"correct"`
	CorrectAnswer any  `json:"correctAnswer"`
}

// ScoreReport is the summary shown on the quiz score endpoint.
type ScoreReport struct {
	Status     string  `json:"status"`
	Percentage float64 `json:"percentage"`
}

type ListOpts struct {
	QuizID    string
	UserID    string
	Completed *bool
	Limit     int
	Offset    int
}
