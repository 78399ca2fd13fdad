package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/academia/core/progress"
)

type progressRepository struct {
	db *progressTables
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) *progressRepository {
	return &progressRepository{db: db.progress}
}

// SeedQuiz installs a quiz fixture with its nested questions and answers.
func (repo *progressRepository) SeedQuiz(quiz progress.Quiz) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.quizzes[quiz.ID] = &quiz
}

func (repo *progressRepository) GetRecord(ctx context.Context, userID, lessonID string) (progress.Record, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, rec := range repo.db.records {
		if rec.UserID == userID && rec.LessonID == lessonID {
			return *rec, nil
		}
	}
	return progress.Record{}, progress.ErrNotFound
}

func (repo *progressRepository) CreateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// honor the (user, lesson) uniqueness constraint; the existing row keeps
	// its id, as ON CONFLICT does
	for _, r := range repo.db.records {
		if r.UserID == rec.UserID && r.LessonID == rec.LessonID {
			rec.ID = r.ID
			*r = rec
			return *r, nil
		}
	}
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *progressRepository) UpdateRecord(ctx context.Context, rec progress.Record) (progress.Record, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.records[rec.ID]; !ok {
		return progress.Record{}, progress.ErrNotFound
	}
	repo.db.records[rec.ID] = &rec
	return rec, nil
}

func (repo *progressRepository) CountCompleted(ctx context.Context, userID string, lessonIDs []string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	ids := make(map[string]bool, len(lessonIDs))
	for _, id := range lessonIDs {
		ids[id] = true
	}
	count := 0
	for _, rec := range repo.db.records {
		if rec.UserID == userID && rec.Completed && ids[rec.LessonID] {
			count++
		}
	}
	return count, nil
}

func (repo *progressRepository) GetQuizByLesson(ctx context.Context, lessonID string) (progress.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, quiz := range repo.db.quizzes {
		if quiz.LessonID == lessonID {
			q := *quiz
			q.Questions = nil // bare quiz, no answer key
			return q, nil
		}
	}
	return progress.Quiz{}, progress.ErrNotFound
}

func (repo *progressRepository) GetQuizWithQuestions(ctx context.Context, quizID string) (progress.Quiz, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	quiz, ok := repo.db.quizzes[quizID]
	if !ok {
		return progress.Quiz{}, progress.ErrNotFound
	}
	q := *quiz
	q.Questions = append([]progress.Question(nil), quiz.Questions...)
	sort.Slice(q.Questions, func(i, j int) bool { return q.Questions[i].Position < q.Questions[j].Position })
	for i := range q.Questions {
		answers := append([]progress.Answer(nil), q.Questions[i].Answers...)
		sort.Slice(answers, func(x, y int) bool { return answers[x].Position < answers[y].Position })
		q.Questions[i].Answers = answers
	}
	return q, nil
}

func (repo *progressRepository) UpsertQuiz(ctx context.Context, quiz progress.Quiz) (progress.Quiz, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// honor the lesson_id uniqueness constraint
	for id, q := range repo.db.quizzes {
		if q.LessonID == quiz.LessonID && id != quiz.ID {
			delete(repo.db.quizzes, id)
		}
	}
	repo.db.quizzes[quiz.ID] = &quiz
	return quiz, nil
}

func (repo *progressRepository) DeleteQuiz(ctx context.Context, lessonID string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, q := range repo.db.quizzes {
		if q.LessonID == lessonID {
			delete(repo.db.quizzes, id)
		}
	}
	return nil
}

func (repo *progressRepository) CreateAttempt(ctx context.Context, att progress.Attempt) (progress.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.attempts[att.ID] = &att
	return att, nil
}

func (repo *progressRepository) GetAttemptByID(ctx context.Context, id string) (progress.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if att, ok := repo.db.attempts[id]; ok {
		return *att, nil
	}
	return progress.Attempt{}, progress.ErrNotFound
}

func (repo *progressRepository) UpdateAttempt(ctx context.Context, att progress.Attempt) (progress.Attempt, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attempts[att.ID]; !ok {
		return progress.Attempt{}, progress.ErrNotFound
	}
	repo.db.attempts[att.ID] = &att
	return att, nil
}

func (repo *progressRepository) FilterAttempts(ctx context.Context, userID string) ([]progress.Attempt, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var atts []progress.Attempt
	for _, att := range repo.db.attempts {
		if att.UserID == userID {
			atts = append(atts, *att)
		}
	}
	sort.Slice(atts, func(i, j int) bool { return atts[i].StartedAt.After(atts[j].StartedAt) })
	return atts, nil
}
