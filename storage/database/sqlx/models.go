package sqlxrepos

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

// Row types mirror the table columns; domain structs stay free of db tags.

type identityRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	Role         string    `db:"role"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r identityRow) toDomain() auth.Identity {
	return auth.Identity(r)
}

type profileRow struct {
	ID        string      `db:"id"`
	Email     string      `db:"email"`
	Name      string      `db:"name"`
	Role      string      `db:"role"`
	AvatarURL null.String `db:"avatar_url"`
	Bio       null.String `db:"bio"`
	IsActive  bool        `db:"is_active"`
	CreatedAt time.Time   `db:"created_at"`
	UpdatedAt time.Time   `db:"updated_at"`
	LastLogin null.Time   `db:"last_login"`
}

func (r profileRow) toDomain() user.User {
	return user.User{
		ID:        r.ID,
		Email:     r.Email,
		Name:      r.Name,
		Role:      r.Role,
		AvatarURL: r.AvatarURL,
		Bio:       r.Bio,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		LastLogin: r.LastLogin.Time,
	}
}

type courseRow struct {
	ID              string      `db:"id"`
	Title           string      `db:"title"`
	Description     string      `db:"description"`
	InstructorID    string      `db:"instructor_id"`
	InstructorName  string      `db:"instructor_name"`
	Published       bool        `db:"published"`
	Level           string      `db:"level"`
	Price           float64     `db:"price"`
	ThumbnailURL    null.String `db:"thumbnail_url"`
	EnrollmentCount int         `db:"enrollment_count"`
	CreatedAt       time.Time   `db:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"`
}

func (r courseRow) toDomain() course.Course {
	return course.Course(r)
}

type moduleRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	Title     string    `db:"title"`
	Position  int       `db:"position"`
	CreatedAt time.Time `db:"created_at"`
}

func (r moduleRow) toDomain() course.Module {
	return course.Module{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		Position:  r.Position,
		CreatedAt: r.CreatedAt,
	}
}

type lessonRow struct {
	ID         string      `db:"id"`
	ModuleID   string      `db:"module_id"`
	Title      string      `db:"title"`
	Position   int         `db:"position"`
	Duration   null.Int    `db:"duration"`
	ContentURL null.String `db:"content_url"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r lessonRow) toDomain() course.Lesson {
	return course.Lesson(r)
}

type enrollmentRow struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	CourseID   string    `db:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (r enrollmentRow) toDomain() course.Enrollment {
	return course.Enrollment{
		ID:         r.ID,
		UserID:     r.UserID,
		CourseID:   r.CourseID,
		EnrolledAt: r.EnrolledAt,
	}
}

type reviewRow struct {
	ID             string      `db:"id"`
	UserID         string      `db:"user_id"`
	CourseID       string      `db:"course_id"`
	Rating         int         `db:"rating"`
	Comment        null.String `db:"comment"`
	ReviewerName   string      `db:"reviewer_name"`
	ReviewerAvatar null.String `db:"reviewer_avatar"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func (r reviewRow) toDomain() course.Review {
	return course.Review(r)
}

type recordRow struct {
	ID                  string    `db:"id"`
	UserID              string    `db:"user_id"`
	LessonID            string    `db:"lesson_id"`
	Completed           bool      `db:"completed"`
	CompletedAt         null.Time `db:"completed_at"`
	LastWatchedPosition null.Int  `db:"last_watched_position"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (r recordRow) toDomain() progress.Record {
	return progress.Record(r)
}

type quizRow struct {
	ID             string `db:"id"`
	LessonID       string `db:"lesson_id"`
	Title          string `db:"title"`
	PassPercentage int    `db:"pass_percentage"`
}

func (r quizRow) toDomain() progress.Quiz {
	return progress.Quiz{
		ID:             r.ID,
		LessonID:       r.LessonID,
		Title:          r.Title,
		PassPercentage: r.PassPercentage,
	}
}

type questionRow struct {
	ID       string `db:"id"`
	QuizID   string `db:"quiz_id"`
	Position int    `db:"position"`
	Prompt   string `db:"prompt"`
	Type     string `db:"type"`
}

func (r questionRow) toDomain() progress.Question {
	return progress.Question{
		ID:       r.ID,
		QuizID:   r.QuizID,
		Position: r.Position,
		Prompt:   r.Prompt,
		Type:     r.Type,
	}
}

type answerRow struct {
	ID         string `db:"id"`
	QuestionID string `db:"question_id"`
	Position   int    `db:"position"`
	Text       string `db:"text"`
	IsCorrect  bool   `db:"is_correct"`
}

func (r answerRow) toDomain() progress.Answer {
	return progress.Answer(r)
}

type attemptRow struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	QuizID      string    `db:"quiz_id"`
	Score       int       `db:"score"`
	Passed      bool      `db:"passed"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt null.Time `db:"completed_at"`
}

func (r attemptRow) toDomain() progress.Attempt {
	return progress.Attempt(r)
}

// trapNoRowsErr translates an sql.ErrNoRows into the domain sentinel.
func trapNoRowsErr(err, sentinel error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return sentinel
	}
	return err
}
