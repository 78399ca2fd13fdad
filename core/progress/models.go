package progress

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Question types
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionTrueFalse      = "true_false"
	QuestionShortAnswer    = "short_answer"
)

type (
	// Record tracks one user's progress on one lesson; at most one row per
	// (UserID, LessonID) pair, maintained by upsert.
	Record struct {
		ID                  string    `json:"id"`
		UserID              string    `json:"user_id"`
		LessonID            string    `json:"lesson_id"`
		Completed           bool      `json:"completed"`
		CompletedAt         null.Time `json:"completed_at,omitempty"`
		LastWatchedPosition null.Int  `json:"last_watched_position,omitempty"` // seconds
		CreatedAt           time.Time `json:"created_at"`                      // UTC
		UpdatedAt           time.Time `json:"updated_at"`                      // UTC
	}

	// Quiz is the assessment attached to a lesson. Questions are ordered by
	// position ascending when loaded for grading.
	Quiz struct {
		ID             string     `json:"id"`
		LessonID       string     `json:"lesson_id"`
		Title          string     `json:"title"`
		PassPercentage int        `json:"pass_percentage"` // [0,100]
		Questions      []Question `json:"questions,omitempty"`
	}

	Question struct {
		ID       string   `json:"id"`
		QuizID   string   `json:"quiz_id"`
		Position int      `json:"position"`
		Prompt   string   `json:"prompt"`
		Type     string   `json:"type"`
		Answers  []Answer `json:"answers,omitempty"`
	}

	Answer struct {
		ID         string `json:"id"`
		QuestionID string `json:"question_id"`
		Position   int    `json:"position"`
		Text       string `json:"text"`
		IsCorrect  bool   `json:"is_correct"`
	}

	// Attempt is created at start with Score=0, Passed=false, then finalized
	// by grading. Regrading overwrites the same row, never appends.
	Attempt struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		QuizID      string    `json:"quiz_id"`
		Score       int       `json:"score"` // [0,100]
		Passed      bool      `json:"passed"`
		StartedAt   time.Time `json:"started_at"` // UTC
		CompletedAt null.Time `json:"completed_at,omitempty"`
	}

	// Submission maps question id to the submitted answer: an answer id for
	// multiple_choice/true_false questions, free text for short_answer.
	Submission map[string]string

	// NewQuiz contains information needed to create or replace a lesson's
	// quiz. Question and answer positions follow slice order.
	NewQuiz struct {
		Title          string        `json:"title" validate:"required"`
		PassPercentage int           `json:"pass_percentage" validate:"gte=0,lte=100"`
		Questions      []NewQuestion `json:"questions" validate:"omitempty,dive"`
	}

	NewQuestion struct {
		Prompt  string      `json:"prompt" validate:"required"`
		Type    string      `json:"type" validate:"required,questiontype"`
		Answers []NewAnswer `json:"answers" validate:"omitempty,dive"`
	}

	NewAnswer struct {
		Text      string `json:"text" validate:"required"`
		IsCorrect bool   `json:"is_correct"`
	}
)

var AllQuestionTypes = []string{QuestionMultipleChoice, QuestionTrueFalse, QuestionShortAnswer}

func (nq *NewQuiz) Validate() error {
	nq.Title = core.CleanString(nq.Title)
	for i := range nq.Questions {
		nq.Questions[i].Prompt = core.CleanString(nq.Questions[i].Prompt)
	}
	return core.Validate.Struct(nq)
}
