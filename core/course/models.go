package course

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

// Levels
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelAdvanced     = "advanced"
)

var AllLevels = []string{LevelBeginner, LevelIntermediate, LevelAdvanced}

type (
	// Course is the catalog root. InstructorName and EnrollmentCount are
	// flattened from joined rows by the repository; they are never written.
	Course struct {
		ID              string      `json:"id"`
		Title           string      `json:"title"`
		Description     string      `json:"description"`
		InstructorID    string      `json:"instructor_id"`
		InstructorName  string      `json:"instructor_name"`
		Published       bool        `json:"published"`
		Level           string      `json:"level"`
		Price           float64     `json:"price"`
		ThumbnailURL    null.String `json:"thumbnail_url,omitempty"`
		EnrollmentCount int         `json:"enrollment_count"`
		CreatedAt       time.Time   `json:"created_at"` // UTC
		UpdatedAt       time.Time   `json:"updated_at"` // UTC
	}

	// Module groups lessons; ordering is by Position, ascending, unique
	// within the course.
	Module struct {
		ID        string    `json:"id"`
		CourseID  string    `json:"course_id"`
		Title     string    `json:"title"`
		Position  int       `json:"position"`
		CreatedAt time.Time `json:"created_at"` // UTC
		Lessons   []Lesson  `json:"lessons,omitempty"`
	}

	// Lesson ordering is by Position, ascending, unique within the module.
	Lesson struct {
		ID         string      `json:"id"`
		ModuleID   string      `json:"module_id"`
		Title      string      `json:"title"`
		Position   int         `json:"position"`
		Duration   null.Int    `json:"duration,omitempty"` // seconds
		ContentURL null.String `json:"content_url,omitempty"`
		CreatedAt  time.Time   `json:"created_at"` // UTC
	}

	// Enrollment links a student to a course; at most one per (user, course).
	Enrollment struct {
		ID         string    `json:"id"`
		UserID     string    `json:"user_id"`
		CourseID   string    `json:"course_id"`
		EnrolledAt time.Time `json:"enrolled_at"` // UTC
		Course     *Course   `json:"course,omitempty"`
	}

	// Review holds at most one rating per (user, course); writes are upserts.
	// ReviewerName and ReviewerAvatar are flattened from the profile row.
	Review struct {
		ID             string      `json:"id"`
		UserID         string      `json:"user_id"`
		CourseID       string      `json:"course_id"`
		Rating         int         `json:"rating"`
		Comment        null.String `json:"comment,omitempty"`
		ReviewerName   string      `json:"reviewer_name,omitempty"`
		ReviewerAvatar null.String `json:"reviewer_avatar,omitempty"`
		CreatedAt      time.Time   `json:"created_at"` // UTC
		UpdatedAt      time.Time   `json:"updated_at"` // UTC
	}
)

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title        string      `json:"title" validate:"required"`
	Description  string      `json:"description"`
	Level        string      `json:"level" validate:"required,courselevel"`
	Price        float64     `json:"price" validate:"gte=0"`
	ThumbnailURL null.String `json:"thumbnail_url"`
	Published    bool        `json:"published"`
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	nc.Level = core.CleanString(nc.Level, true /* lower */)
	return core.Validate.Struct(nc)
}

// UpdateCourse: zero-valued fields are left unchanged.
type UpdateCourse struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Level        string      `json:"level" validate:"omitempty,courselevel"`
	Price        *float64    `json:"price" validate:"omitempty,gte=0"`
	ThumbnailURL null.String `json:"thumbnail_url"`
	Published    *bool       `json:"published"`
}

func (uc *UpdateCourse) Validate() error {
	uc.Title = core.CleanString(uc.Title)
	uc.Level = core.CleanString(uc.Level, true /* lower */)
	return core.Validate.Struct(uc)
}

type NewModule struct {
	Title    string `json:"title" validate:"required"`
	Position int    `json:"position" validate:"gte=0"`
}

func (nm *NewModule) Validate() error {
	nm.Title = core.CleanString(nm.Title)
	return core.Validate.Struct(nm)
}

type NewLesson struct {
	Title      string      `json:"title" validate:"required"`
	Position   int         `json:"position" validate:"gte=0"`
	Duration   null.Int    `json:"duration" validate:"omitempty"`
	ContentURL null.String `json:"content_url"`
}

func (nl *NewLesson) Validate() error {
	nl.Title = core.CleanString(nl.Title)
	return core.Validate.Struct(nl)
}

type NewReview struct {
	Rating  int         `json:"rating" validate:"required,gte=1,lte=5"`
	Comment null.String `json:"comment"`
}

func (nr *NewReview) Validate() error {
	return core.Validate.Struct(nr)
}

// QueryFilter filters the course catalog; Search does a case-insensitive
// match on Course.Title or Course.Description.
type QueryFilter struct {
	Search       string `query:"search"`
	Level        string `query:"level"`
	InstructorID string `query:"instructor_id"`
	Published    *bool  `query:"published"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Level = core.CleanString(qf.Level, true /* lower */)
}
