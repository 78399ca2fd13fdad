package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/progress"
)

type progressRepository struct {
	db *sqlx.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *sqlx.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetRecord(ctx context.Context, userID, lessonID string) (progress.Record, error) {
	const q = `SELECT * FROM progress_record WHERE user_id = $1 AND lesson_id = $2`

	var row recordRow
	if err := repo.db.GetContext(ctx, &row, q, userID, lessonID); err != nil {
		return progress.Record{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return row.toDomain(), nil
}

// CreateRecord relies on the (user_id, lesson_id) unique constraint to stay
// race-free: a conflicting insert folds into an update of the same row.
func (repo *progressRepository) CreateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	const q = `
INSERT INTO progress_record (id, user_id, lesson_id, completed, completed_at, last_watched_position, created_at, updated_at)
VALUES (:id, :user_id, :lesson_id, :completed, :completed_at, :last_watched_position, :created_at, :updated_at)
ON CONFLICT (user_id, lesson_id)
DO UPDATE SET completed = EXCLUDED.completed, completed_at = EXCLUDED.completed_at,
              last_watched_position = EXCLUDED.last_watched_position, updated_at = EXCLUDED.updated_at`

	if _, err := repo.db.NamedExecContext(ctx, q, recordRow(rec)); err != nil {
		return progress.Record{}, errors.Wrap(err, "inserting progress record")
	}
	return repo.GetRecord(ctx, rec.UserID, rec.LessonID)
}

func (repo *progressRepository) UpdateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	const q = `
UPDATE progress_record
SET completed = :completed, completed_at = :completed_at,
    last_watched_position = :last_watched_position, updated_at = :updated_at
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, recordRow(rec))
	if err != nil {
		return progress.Record{}, errors.Wrap(err, "updating progress record")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progress.Record{}, progress.ErrNotFound
	}
	return rec, nil
}

func (repo *progressRepository) CountCompleted(ctx context.Context, userID string, lessonIDs []string) (int, error) {
	if len(lessonIDs) == 0 {
		return 0, nil
	}
	q, args, err := sqlx.In(
		`SELECT COUNT(*) FROM progress_record WHERE user_id = ? AND completed AND lesson_id IN (?)`,
		userID, lessonIDs)
	if err != nil {
		return 0, errors.Wrap(err, "building completed count query")
	}

	var count int
	if err = repo.db.GetContext(ctx, &count, repo.db.Rebind(q), args...); err != nil {
		return 0, errors.Wrap(err, "counting completed lessons")
	}
	return count, nil
}

func (repo *progressRepository) GetQuizByLesson(ctx context.Context, lessonID string) (progress.Quiz, error) {
	const q = `SELECT * FROM quiz WHERE lesson_id = $1`

	var row quizRow
	if err := repo.db.GetContext(ctx, &row, q, lessonID); err != nil {
		return progress.Quiz{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *progressRepository) GetQuizWithQuestions(ctx context.Context, quizID string) (progress.Quiz, error) {
	var row quizRow
	if err := repo.db.GetContext(ctx, &row, `SELECT * FROM quiz WHERE id = $1`, quizID); err != nil {
		return progress.Quiz{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	quiz := row.toDomain()

	var qRows []questionRow
	if err := repo.db.SelectContext(ctx, &qRows, `SELECT * FROM question WHERE quiz_id = $1 ORDER BY "position"`, quizID); err != nil {
		return progress.Quiz{}, errors.Wrap(err, "fetching questions")
	}
	if len(qRows) == 0 {
		return quiz, nil
	}

	questionIDs := make([]string, len(qRows))
	for i, row := range qRows {
		questionIDs[i] = row.ID
	}
	ansQ, args, err := sqlx.In(`SELECT * FROM answer WHERE question_id IN (?) ORDER BY "position"`, questionIDs)
	if err != nil {
		return progress.Quiz{}, errors.Wrap(err, "building answers query")
	}
	var aRows []answerRow
	if err = repo.db.SelectContext(ctx, &aRows, repo.db.Rebind(ansQ), args...); err != nil {
		return progress.Quiz{}, errors.Wrap(err, "fetching answers")
	}

	byQuestion := make(map[string][]progress.Answer, len(qRows))
	for _, row := range aRows {
		byQuestion[row.QuestionID] = append(byQuestion[row.QuestionID], row.toDomain())
	}
	quiz.Questions = make([]progress.Question, len(qRows))
	for i, row := range qRows {
		question := row.toDomain()
		question.Answers = byQuestion[question.ID]
		quiz.Questions[i] = question
	}
	return quiz, nil
}

// UpsertQuiz replaces the quiz row and its entire question set in one
// transaction; answer rows cascade with their questions.
func (repo *progressRepository) UpsertQuiz(ctx context.Context, quiz progress.Quiz) (progress.Quiz, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return progress.Quiz{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const quizQ = `
INSERT INTO quiz (id, lesson_id, title, pass_percentage)
VALUES (:id, :lesson_id, :title, :pass_percentage)
ON CONFLICT (lesson_id)
DO UPDATE SET title = EXCLUDED.title, pass_percentage = EXCLUDED.pass_percentage`

	row := quizRow{ID: quiz.ID, LessonID: quiz.LessonID, Title: quiz.Title, PassPercentage: quiz.PassPercentage}
	if _, err = tx.NamedExecContext(ctx, quizQ, row); err != nil {
		return progress.Quiz{}, errors.Wrap(err, "upserting quiz")
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM question WHERE quiz_id = $1`, quiz.ID); err != nil {
		return progress.Quiz{}, errors.Wrap(err, "clearing questions")
	}

	const questionQ = `
INSERT INTO question (id, quiz_id, "position", prompt, "type")
VALUES (:id, :quiz_id, :position, :prompt, :type)`
	const answerQ = `
INSERT INTO answer (id, question_id, "position", "text", is_correct)
VALUES (:id, :question_id, :position, :text, :is_correct)`

	for _, question := range quiz.Questions {
		qr := questionRow{
			ID:       question.ID,
			QuizID:   question.QuizID,
			Position: question.Position,
			Prompt:   question.Prompt,
			Type:     question.Type,
		}
		if _, err = tx.NamedExecContext(ctx, questionQ, qr); err != nil {
			return progress.Quiz{}, errors.Wrap(err, "inserting question")
		}
		for _, answer := range question.Answers {
			if _, err = tx.NamedExecContext(ctx, answerQ, answerRow(answer)); err != nil {
				return progress.Quiz{}, errors.Wrap(err, "inserting answer")
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return progress.Quiz{}, errors.Wrap(err, "committing quiz")
	}
	return quiz, nil
}

func (repo *progressRepository) DeleteQuiz(ctx context.Context, lessonID string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM quiz WHERE lesson_id = $1`, lessonID); err != nil {
		return errors.Wrap(err, "deleting quiz")
	}
	return nil
}

func (repo *progressRepository) CreateAttempt(ctx context.Context, att progress.Attempt) (progress.Attempt, error) {
	const q = `
INSERT INTO quiz_attempt (id, user_id, quiz_id, score, passed, started_at, completed_at)
VALUES (:id, :user_id, :quiz_id, :score, :passed, :started_at, :completed_at)`

	if _, err := repo.db.NamedExecContext(ctx, q, attemptRow(att)); err != nil {
		return progress.Attempt{}, errors.Wrap(err, "inserting attempt")
	}
	return att, nil
}

func (repo *progressRepository) GetAttemptByID(ctx context.Context, id string) (progress.Attempt, error) {
	const q = `SELECT * FROM quiz_attempt WHERE id = $1`

	var row attemptRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return progress.Attempt{}, trapNoRowsErr(err, progress.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *progressRepository) UpdateAttempt(ctx context.Context, att progress.Attempt) (progress.Attempt, error) {
	const q = `
UPDATE quiz_attempt SET score = :score, passed = :passed, completed_at = :completed_at
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, attemptRow(att))
	if err != nil {
		return progress.Attempt{}, errors.Wrap(err, "updating attempt")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progress.Attempt{}, progress.ErrNotFound
	}
	return att, nil
}

func (repo *progressRepository) FilterAttempts(ctx context.Context, userID string) ([]progress.Attempt, error) {
	const q = `SELECT * FROM quiz_attempt WHERE user_id = $1 ORDER BY started_at DESC`

	var rows []attemptRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "filtering attempts")
	}
	atts := make([]progress.Attempt, len(rows))
	for i, row := range rows {
		atts[i] = row.toDomain()
	}
	return atts, nil
}
