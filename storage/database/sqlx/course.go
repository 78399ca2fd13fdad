package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
)

// courseCols flattens the instructor name and enrollment count into the
// course row, the output shape the services expose upward.
const courseCols = `
c.id, c.title, c.description, c.instructor_id, c.published, c.level, c.price,
c.thumbnail_url, c.created_at, c.updated_at,
p.name AS instructor_name,
(SELECT COUNT(*) FROM enrollment e WHERE e.course_id = c.id) AS enrollment_count`

type courseRepository struct {
	db *sqlx.DB
}

var (
	_ course.Repository          = (*courseRepository)(nil) // interface compliance check
	_ progress.ContentRepository = (*courseRepository)(nil)
)

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	const q = `
INSERT INTO course (id, title, description, instructor_id, published, level, price, thumbnail_url, created_at, updated_at)
VALUES (:id, :title, :description, :instructor_id, :published, :level, :price, :thumbnail_url, :created_at, :updated_at)`

	if _, err := repo.db.NamedExecContext(ctx, q, courseRow(crs)); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return repo.GetCourseByID(ctx, crs.ID)
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	q := `SELECT ` + courseCols + ` FROM course c JOIN profile p ON p.id = c.instructor_id WHERE c.id = $1`

	var row courseRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	q := `SELECT ` + courseCols + ` FROM course c JOIN profile p ON p.id = c.instructor_id`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Published != nil {
		conds = append(conds, "c.published = "+arg(*filter.Published))
	}
	if filter.InstructorID != "" {
		conds = append(conds, "c.instructor_id = "+arg(filter.InstructorID))
	}
	if filter.Level != "" {
		conds = append(conds, "c.level = "+arg(filter.Level))
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(c.title ILIKE %s OR c.description ILIKE %s)", p, p))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY c.created_at DESC"

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering courses")
	}
	courses := make([]course.Course, len(rows))
	for i, row := range rows {
		courses[i] = row.toDomain()
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	const q = `
UPDATE course
SET title = :title, description = :description, published = :published, level = :level,
    price = :price, thumbnail_url = :thumbnail_url, updated_at = :updated_at
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, courseRow(crs))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return repo.GetCourseByID(ctx, crs.ID)
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM course WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}

func (repo *courseRepository) GetCourseContent(ctx context.Context, courseID string) ([]course.Module, error) {
	const modQ = `SELECT * FROM course_module WHERE course_id = $1 ORDER BY "position"`

	var modRows []moduleRow
	if err := repo.db.SelectContext(ctx, &modRows, modQ, courseID); err != nil {
		return nil, errors.Wrap(err, "fetching modules")
	}
	if len(modRows) == 0 {
		return nil, nil
	}

	moduleIDs := make([]string, len(modRows))
	for i, row := range modRows {
		moduleIDs[i] = row.ID
	}
	lsnQ, args, err := sqlx.In(`SELECT * FROM lesson WHERE module_id IN (?) ORDER BY "position"`, moduleIDs)
	if err != nil {
		return nil, errors.Wrap(err, "building lessons query")
	}
	var lsnRows []lessonRow
	if err = repo.db.SelectContext(ctx, &lsnRows, repo.db.Rebind(lsnQ), args...); err != nil {
		return nil, errors.Wrap(err, "fetching lessons")
	}

	byModule := make(map[string][]course.Lesson, len(modRows))
	for _, row := range lsnRows {
		byModule[row.ModuleID] = append(byModule[row.ModuleID], row.toDomain())
	}
	mods := make([]course.Module, len(modRows))
	for i, row := range modRows {
		mod := row.toDomain()
		mod.Lessons = byModule[mod.ID]
		mods[i] = mod
	}
	return mods, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	const q = `
INSERT INTO course_module (id, course_id, title, "position", created_at)
VALUES (:id, :course_id, :title, :position, :created_at)`

	row := moduleRow{ID: mod.ID, CourseID: mod.CourseID, Title: mod.Title, Position: mod.Position, CreatedAt: mod.CreatedAt}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	return mod, nil
}

func (repo *courseRepository) GetModuleByID(ctx context.Context, id string) (course.Module, error) {
	const q = `SELECT * FROM course_module WHERE id = $1`

	var row moduleRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Module{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	const q = `UPDATE course_module SET title = $2, "position" = $3 WHERE id = $1`

	res, err := repo.db.ExecContext(ctx, q, mod.ID, mod.Title, mod.Position)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "updating module")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Module{}, course.ErrNotFound
	}
	return mod, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM course_module WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	const q = `
INSERT INTO lesson (id, module_id, title, "position", duration, content_url, created_at)
VALUES (:id, :module_id, :title, :position, :duration, :content_url, :created_at)`

	if _, err := repo.db.NamedExecContext(ctx, q, lessonRow(lsn)); err != nil {
		return course.Lesson{}, errors.Wrap(err, "inserting lesson")
	}
	return lsn, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	const q = `SELECT * FROM lesson WHERE id = $1`

	var row lessonRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Lesson{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	const q = `
UPDATE lesson SET title = :title, "position" = :position, duration = :duration, content_url = :content_url
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, lessonRow(lsn))
	if err != nil {
		return course.Lesson{}, errors.Wrap(err, "updating lesson")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Lesson{}, course.ErrNotFound
	}
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	if _, err := repo.db.ExecContext(ctx, `DELETE FROM lesson WHERE id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return nil
}

// CreateEnrollment relies on the (user_id, course_id) unique constraint:
// conflicting inserts return the existing row untouched.
func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	const q = `
INSERT INTO enrollment (id, user_id, course_id, enrolled_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, course_id) DO NOTHING`

	if _, err := repo.db.ExecContext(ctx, q, enr.ID, enr.UserID, enr.CourseID, enr.EnrolledAt); err != nil {
		return course.Enrollment{}, errors.Wrap(err, "inserting enrollment")
	}
	return repo.GetEnrollment(ctx, enr.UserID, enr.CourseID)
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, userID, courseID string) (course.Enrollment, error) {
	const q = `SELECT * FROM enrollment WHERE user_id = $1 AND course_id = $2`

	var row enrollmentRow
	if err := repo.db.GetContext(ctx, &row, q, userID, courseID); err != nil {
		return course.Enrollment{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) FilterEnrollments(ctx context.Context, userID string) ([]course.Enrollment, error) {
	const q = `SELECT * FROM enrollment WHERE user_id = $1 ORDER BY enrolled_at DESC`

	var rows []enrollmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "filtering enrollments")
	}
	enrs := make([]course.Enrollment, len(rows))
	for i, row := range rows {
		enr := row.toDomain()
		if crs, err := repo.GetCourseByID(ctx, enr.CourseID); err == nil {
			enr.Course = &crs
		}
		enrs[i] = enr
	}
	return enrs, nil
}

// UpsertReview keeps at most one review per (user, course); resubmissions
// overwrite rating and comment in place.
func (repo *courseRepository) UpsertReview(ctx context.Context, rev course.Review) (course.Review, error) {
	const q = `
INSERT INTO review (id, user_id, course_id, rating, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, course_id)
DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
RETURNING id`

	var id string
	err := repo.db.GetContext(ctx, &id, q, rev.ID, rev.UserID, rev.CourseID, rev.Rating, rev.Comment, rev.CreatedAt, rev.UpdatedAt)
	if err != nil {
		return course.Review{}, errors.Wrap(err, "upserting review")
	}
	return repo.getReview(ctx, id)
}

func (repo *courseRepository) getReview(ctx context.Context, id string) (course.Review, error) {
	const q = `
SELECT r.*, p.name AS reviewer_name, p.avatar_url AS reviewer_avatar
FROM review r JOIN profile p ON p.id = r.user_id
WHERE r.id = $1`

	var row reviewRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return course.Review{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *courseRepository) FilterReviews(ctx context.Context, courseID string) ([]course.Review, error) {
	const q = `
SELECT r.*, p.name AS reviewer_name, p.avatar_url AS reviewer_avatar
FROM review r JOIN profile p ON p.id = r.user_id
WHERE r.course_id = $1
ORDER BY r.created_at DESC`

	var rows []reviewRow
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "filtering reviews")
	}
	revs := make([]course.Review, len(rows))
	for i, row := range rows {
		revs[i] = row.toDomain()
	}
	return revs, nil
}

// CourseLessonIDs implements the content contract the progress engine reads.
func (repo *courseRepository) CourseLessonIDs(ctx context.Context, courseID string) ([]string, error) {
	const q = `
SELECT l.id FROM lesson l
JOIN course_module m ON m.id = l.module_id
WHERE m.course_id = $1`

	var ids []string
	if err := repo.db.SelectContext(ctx, &ids, q, courseID); err != nil {
		return nil, errors.Wrap(err, "fetching course lesson ids")
	}
	return ids, nil
}

// LessonInstructorID resolves the instructor owning the lesson's course.
func (repo *courseRepository) LessonInstructorID(ctx context.Context, lessonID string) (string, error) {
	const q = `
SELECT c.instructor_id FROM lesson l
JOIN course_module m ON m.id = l.module_id
JOIN course c ON c.id = m.course_id
WHERE l.id = $1`

	var instructorID string
	if err := repo.db.GetContext(ctx, &instructorID, q, lessonID); err != nil {
		return "", trapNoRowsErr(err, progress.ErrNotFound)
	}
	return instructorID, nil
}
