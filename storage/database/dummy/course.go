package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
)

type courseRepository struct {
	db      *courseTables
	profile *profileTable
}

var (
	_ course.Repository          = (*courseRepository)(nil) // interface compliance check
	_ progress.ContentRepository = (*courseRepository)(nil)
)

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db.course, profile: db.profile}
}

// flatten fills the joined fields a SQL query would produce.
func (repo *courseRepository) flatten(crs course.Course) course.Course {
	repo.profile.RLock()
	if usr, ok := repo.profile.table[crs.InstructorID]; ok {
		crs.InstructorName = usr.Name
	}
	repo.profile.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.CourseID == crs.ID {
			crs.EnrollmentCount++
		}
	}
	return crs
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.courses[crs.ID] = &crs
	return repo.flatten(crs), nil
}

func (repo *courseRepository) GetCourseByID(ctx context.Context, id string) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return repo.flatten(*crs), nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, 0, len(repo.db.courses))
	for _, crs := range repo.db.courses {
		if filter.Published != nil && crs.Published != *filter.Published {
			continue
		}
		if filter.InstructorID != "" && crs.InstructorID != filter.InstructorID {
			continue
		}
		if filter.Level != "" && crs.Level != filter.Level {
			continue
		}
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(crs.Title), search) &&
				!strings.Contains(strings.ToLower(crs.Description), search) {
				continue
			}
		}
		courses = append(courses, repo.flatten(*crs))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].CreatedAt.After(courses[j].CreatedAt) })
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return repo.flatten(crs), nil
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.courses, id)
	return nil
}

func (repo *courseRepository) GetCourseContent(ctx context.Context, courseID string) ([]course.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var mods []course.Module
	for _, mod := range repo.db.modules {
		if mod.CourseID != courseID {
			continue
		}
		m := *mod
		m.Lessons = nil
		for _, lsn := range repo.db.lessons {
			if lsn.ModuleID == m.ID {
				m.Lessons = append(m.Lessons, *lsn)
			}
		}
		sort.Slice(m.Lessons, func(i, j int) bool { return m.Lessons[i].Position < m.Lessons[j].Position })
		mods = append(mods, m)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Position < mods[j].Position })
	return mods, nil
}

func (repo *courseRepository) CreateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) GetModuleByID(ctx context.Context, id string) (course.Module, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		return *mod, nil
	}
	return course.Module{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateModule(ctx context.Context, mod course.Module) (course.Module, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.modules[mod.ID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) DeleteModule(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for lid, lsn := range repo.db.lessons {
		if lsn.ModuleID == id {
			delete(repo.db.lessons, lid)
		}
	}
	delete(repo.db.modules, id)
	return nil
}

func (repo *courseRepository) CreateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) GetLessonByID(ctx context.Context, id string) (course.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lsn, ok := repo.db.lessons[id]; ok {
		return *lsn, nil
	}
	return course.Lesson{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateLesson(ctx context.Context, lsn course.Lesson) (course.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lessons[lsn.ID]; !ok {
		return course.Lesson{}, course.ErrNotFound
	}
	repo.db.lessons[lsn.ID] = &lsn
	return lsn, nil
}

func (repo *courseRepository) DeleteLesson(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.lessons, id)
	return nil
}

func (repo *courseRepository) CreateEnrollment(ctx context.Context, enr course.Enrollment) (course.Enrollment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// honor the (user, course) uniqueness constraint
	for _, e := range repo.db.enrollments {
		if e.UserID == enr.UserID && e.CourseID == enr.CourseID {
			return *e, nil
		}
	}
	repo.db.enrollments[enr.ID] = &enr
	return enr, nil
}

func (repo *courseRepository) GetEnrollment(ctx context.Context, userID, courseID string) (course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, enr := range repo.db.enrollments {
		if enr.UserID == userID && enr.CourseID == courseID {
			return *enr, nil
		}
	}
	return course.Enrollment{}, course.ErrNotFound
}

func (repo *courseRepository) FilterEnrollments(ctx context.Context, userID string) ([]course.Enrollment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var enrs []course.Enrollment
	for _, enr := range repo.db.enrollments {
		if enr.UserID != userID {
			continue
		}
		e := *enr
		if crs, ok := repo.db.courses[e.CourseID]; ok {
			flat := repo.flatten(*crs)
			e.Course = &flat
		}
		enrs = append(enrs, e)
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].EnrolledAt.After(enrs[j].EnrolledAt) })
	return enrs, nil
}

func (repo *courseRepository) UpsertReview(ctx context.Context, rev course.Review) (course.Review, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, r := range repo.db.reviews {
		if r.UserID == rev.UserID && r.CourseID == rev.CourseID {
			r.Rating = rev.Rating
			r.Comment = rev.Comment
			r.UpdatedAt = rev.UpdatedAt
			return repo.flattenReview(*r), nil
		}
	}
	repo.db.reviews[rev.ID] = &rev
	return repo.flattenReview(rev), nil
}

func (repo *courseRepository) FilterReviews(ctx context.Context, courseID string) ([]course.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var revs []course.Review
	for _, rev := range repo.db.reviews {
		if rev.CourseID == courseID {
			revs = append(revs, repo.flattenReview(*rev))
		}
	}
	sort.Slice(revs, func(i, j int) bool { return revs[i].CreatedAt.After(revs[j].CreatedAt) })
	return revs, nil
}

func (repo *courseRepository) flattenReview(rev course.Review) course.Review {
	repo.profile.RLock()
	defer repo.profile.RUnlock()

	if usr, ok := repo.profile.table[rev.UserID]; ok {
		rev.ReviewerName = usr.Name
		rev.ReviewerAvatar = usr.AvatarURL
	}
	return rev
}

// CourseLessonIDs implements the content contract the progress engine reads.
func (repo *courseRepository) CourseLessonIDs(ctx context.Context, courseID string) ([]string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	moduleIDs := make(map[string]bool)
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			moduleIDs[mod.ID] = true
		}
	}
	var ids []string
	for _, lsn := range repo.db.lessons {
		if moduleIDs[lsn.ModuleID] {
			ids = append(ids, lsn.ID)
		}
	}
	return ids, nil
}

// LessonInstructorID resolves the instructor owning the lesson's course.
func (repo *courseRepository) LessonInstructorID(ctx context.Context, lessonID string) (string, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lsn, ok := repo.db.lessons[lessonID]
	if !ok {
		return "", progress.ErrNotFound
	}
	mod, ok := repo.db.modules[lsn.ModuleID]
	if !ok {
		return "", progress.ErrNotFound
	}
	crs, ok := repo.db.courses[mod.CourseID]
	if !ok {
		return "", progress.ErrNotFound
	}
	return crs.InstructorID, nil
}
