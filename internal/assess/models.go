package assess

// AssessmentType distinguishes low-stakes practice from proctored exams.
type AssessmentType string

const (
	TypePractice AssessmentType = "practice"
	TypeExam     AssessmentType = "exam"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionEssay          QuestionType = "essay"
	QuestionNumeric        QuestionType = "numeric"
	QuestionDate           QuestionType = "date"
)

type Option struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Position int    `json:"position"`
	// Correct is stripped before an assessment is served to a learner and
	// only reappears in post-grading feedback when the assessment allows it.
	Correct bool `json:"correct,omitempty"`
}

// Constraints carries optional per-question bounds. Length bounds apply to
// text answers, value bounds to numeric ones.
type Constraints struct {
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	MinValue  *float64 `json:"min_value,omitempty"`
	MaxValue  *float64 `json:"max_value,omitempty"`
}

type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Points      float64      `json:"points"`
	Position    int          `json:"position"`
	Required    bool         `json:"required"`
	MediaURL    string       `json:"media_url,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
	Options     []Option     `json:"options,omitempty"`
	// AnswerKey is server-side only, never serialized to learners.
	AnswerKey []string `json:"answer_key,omitempty"`
}

// Assessment is immutable once fetched for an attempt session.
type Assessment struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Type               AssessmentType `json:"type"`
	DurationSec        int            `json:"duration_sec"`
	TotalPoints        float64        `json:"total_points"`
	PassingScore       float64        `json:"passing_score"` // percent, 0-100
	MaxAttempts        int            `json:"max_attempts"`
	ShuffleQuestions   bool           `json:"shuffle_questions"`
	ShuffleOptions     bool           `json:"shuffle_options"`
	ShowCorrectAnswers bool           `json:"show_correct_answers"`
	ShowFeedback       bool           `json:"show_feedback"`
	Questions          []Question     `json:"questions"`

	CreatedAt int64 `json:"created_at,omitempty"`
}

type AttemptStatus string

const (
	StatusInProgress AttemptStatus = "in_progress"
	StatusSubmitted  AttemptStatus = "submitted"
	StatusGraded     AttemptStatus = "graded"
)

// Attempt is the server-side record of one learner's try at an assessment.
type Attempt struct {
	ID            string            `json:"id"`
	AssessmentID  string            `json:"assessment_id"`
	UserID        string            `json:"user_id"`
	AttemptNumber int               `json:"attempt_number"` // 1-based
	Status        AttemptStatus     `json:"status"`
	Score         float64           `json:"score"`
	Responses     map[string]Answer `json:"responses"` // questionID -> answer
	StartedAt     int64             `json:"started_at"`
	SubmittedAt   int64             `json:"submitted_at,omitempty"`
}

// AnswerEntry is one committed answer within a submission payload.
type AnswerEntry struct {
	QuestionID       string `json:"questionId"`
	Answer           Answer `json:"answer"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// SubmissionPayload is the commit-ready shape handed to the grading backend.
type SubmissionPayload struct {
	Answers               []AnswerEntry `json:"answers"`
	TotalTimeSpentSeconds int           `json:"totalTimeSpentSeconds"`
	StartedAt             int64         `json:"startedAt"`
	SubmittedAt           int64         `json:"submittedAt"`
}

// QuestionFeedback is the graded breakdown for one question. CorrectAnswer
// and Explanation are present only when the assessment reveals them.
type QuestionFeedback struct {
	QuestionID    string   `json:"questionId"`
	Correct       bool     `json:"correct"`
	PointsAwarded float64  `json:"pointsAwarded"`
	PointsMax     float64  `json:"pointsMax"`
	CorrectAnswer []string `json:"correctAnswer,omitempty"`
	Explanation   string   `json:"explanation,omitempty"`
}

// Result is the server-derived outcome of grading one attempt. It is created
// once per attempt and never mutated client-side; a fresh fetch is required
// to observe later changes (e.g. manual essay grading).
type Result struct {
	AttemptID         string             `json:"attemptId"`
	Score             float64            `json:"score"`
	Percentage        float64            `json:"percentage"`
	Passed            bool               `json:"passed"`
	PerQuestion       []QuestionFeedback `json:"perQuestionFeedback,omitempty"`
	AttemptsRemaining int                `json:"attemptsRemaining"`
}

type ViolationCategory string

const (
	ViolationTabSwitch      ViolationCategory = "tab_switch"
	ViolationWindowBlur     ViolationCategory = "window_blur"
	ViolationFullscreenExit ViolationCategory = "fullscreen_exit"
	ViolationCopy           ViolationCategory = "copy"
	ViolationPaste          ViolationCategory = "paste"
	ViolationContextMenu    ViolationCategory = "context_menu"
	ViolationPrint          ViolationCategory = "print"
	ViolationDevTools       ViolationCategory = "devtools"
)

// Violation is one detected academic-integrity event. Ordinal is the
// 1-based count of this category at the time the event was recorded.
type Violation struct {
	Category  ViolationCategory `json:"category"`
	Ordinal   int               `json:"ordinal"`
	UnixMilli int64             `json:"at"`
}
