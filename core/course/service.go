package course

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("course not found")
	ErrNotCourseOwner = errors.New("course does not belong to this instructor")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		// FilterCourses applies AND operation on available QueryFilter fields.
		FilterCourses(ctx context.Context, filter QueryFilter) ([]Course, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		DeleteCourse(ctx context.Context, id string) error

		// GetCourseContent returns the course's modules with nested lessons,
		// both ordered by position ascending.
		GetCourseContent(ctx context.Context, courseID string) ([]Module, error)
		CreateModule(ctx context.Context, mod Module) (Module, error)
		GetModuleByID(ctx context.Context, id string) (Module, error)
		UpdateModule(ctx context.Context, mod Module) (Module, error)
		DeleteModule(ctx context.Context, id string) error

		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		GetLessonByID(ctx context.Context, id string) (Lesson, error)
		UpdateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, id string) error

		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		// FilterEnrollments returns the user's enrollments with the joined
		// Course attached, newest first.
		FilterEnrollments(ctx context.Context, userID string) ([]Enrollment, error)

		// UpsertReview inserts or overwrites the (user, course) review.
		UpsertReview(ctx context.Context, rev Review) (Review, error)
		FilterReviews(ctx context.Context, courseID string) ([]Review, error)
	}

	Service interface {
		Catalog(ctx context.Context, filter QueryFilter) ([]Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		Content(ctx context.Context, courseID string) ([]Module, error)
		InstructorCourses(ctx context.Context, instructorID string) ([]Course, error)

		Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error)
		Update(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, actor user.User, id string) error
		AddModule(ctx context.Context, actor user.User, courseID string, nm NewModule) (Module, error)
		UpdateModule(ctx context.Context, actor user.User, moduleID string, nm NewModule) (Module, error)
		DeleteModule(ctx context.Context, actor user.User, moduleID string) error
		AddLesson(ctx context.Context, actor user.User, moduleID string, nl NewLesson) (Lesson, error)
		UpdateLesson(ctx context.Context, actor user.User, lessonID string, nl NewLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, actor user.User, lessonID string) error

		Enroll(ctx context.Context, usr user.User, courseID string) (Enrollment, error)
		Enrollments(ctx context.Context, userID string) ([]Enrollment, error)
		IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
		Review(ctx context.Context, usr user.User, courseID string, nr NewReview) (Review, error)
		Reviews(ctx context.Context, courseID string) ([]Review, error)
	}

	service struct {
		conf    *core.Config
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository, mailSvc core.EmailService) Service {
	return &service{
		conf:    conf,
		repo:    repo,
		mailSvc: mailSvc,
	}
}

// Catalog lists published courses only, whatever the filter says.
func (svc *service) Catalog(ctx context.Context, filter QueryFilter) ([]Course, error) {
	filter.Clean()
	published := true
	filter.Published = &published
	return svc.repo.FilterCourses(ctx, filter)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) Content(ctx context.Context, courseID string) ([]Module, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	return svc.repo.GetCourseContent(ctx, courseID)
}

func (svc *service) InstructorCourses(ctx context.Context, instructorID string) ([]Course, error) {
	return svc.repo.FilterCourses(ctx, QueryFilter{InstructorID: instructorID})
}

func (svc *service) Create(ctx context.Context, actor user.User, nc NewCourse) (Course, error) {
	now := nowFunc().UTC()
	crs := Course{
		ID:           uuid.New().String(),
		Title:        nc.Title,
		Description:  nc.Description,
		InstructorID: actor.ID,
		Published:    nc.Published,
		Level:        nc.Level,
		Price:        nc.Price,
		ThumbnailURL: nc.ThumbnailURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) Update(ctx context.Context, actor user.User, id string, uc UpdateCourse) (Course, error) {
	crs, err := svc.ownedCourse(ctx, actor, id)
	if err != nil {
		return Course{}, err
	}

	if uc.Title != "" {
		crs.Title = uc.Title
	}
	if uc.Description != "" {
		crs.Description = uc.Description
	}
	if uc.Level != "" {
		crs.Level = uc.Level
	}
	if uc.Price != nil {
		crs.Price = *uc.Price
	}
	if uc.ThumbnailURL.Valid {
		crs.ThumbnailURL = uc.ThumbnailURL
	}
	if uc.Published != nil {
		crs.Published = *uc.Published
	}
	crs.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id string) error {
	if _, err := svc.ownedCourse(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

func (svc *service) AddModule(ctx context.Context, actor user.User, courseID string, nm NewModule) (Module, error) {
	if _, err := svc.ownedCourse(ctx, actor, courseID); err != nil {
		return Module{}, err
	}
	return svc.repo.CreateModule(ctx, Module{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     nm.Title,
		Position:  nm.Position,
		CreatedAt: nowFunc().UTC(),
	})
}

func (svc *service) UpdateModule(ctx context.Context, actor user.User, moduleID string, nm NewModule) (Module, error) {
	mod, err := svc.ownedModule(ctx, actor, moduleID)
	if err != nil {
		return Module{}, err
	}
	mod.Title = nm.Title
	mod.Position = nm.Position
	return svc.repo.UpdateModule(ctx, mod)
}

func (svc *service) DeleteModule(ctx context.Context, actor user.User, moduleID string) error {
	if _, err := svc.ownedModule(ctx, actor, moduleID); err != nil {
		return err
	}
	return svc.repo.DeleteModule(ctx, moduleID)
}

func (svc *service) AddLesson(ctx context.Context, actor user.User, moduleID string, nl NewLesson) (Lesson, error) {
	if _, err := svc.ownedModule(ctx, actor, moduleID); err != nil {
		return Lesson{}, err
	}
	return svc.repo.CreateLesson(ctx, Lesson{
		ID:         uuid.New().String(),
		ModuleID:   moduleID,
		Title:      nl.Title,
		Position:   nl.Position,
		Duration:   nl.Duration,
		ContentURL: nl.ContentURL,
		CreatedAt:  nowFunc().UTC(),
	})
}

func (svc *service) UpdateLesson(ctx context.Context, actor user.User, lessonID string, nl NewLesson) (Lesson, error) {
	lsn, err := svc.ownedLesson(ctx, actor, lessonID)
	if err != nil {
		return Lesson{}, err
	}
	lsn.Title = nl.Title
	lsn.Position = nl.Position
	lsn.Duration = nl.Duration
	lsn.ContentURL = nl.ContentURL
	return svc.repo.UpdateLesson(ctx, lsn)
}

func (svc *service) DeleteLesson(ctx context.Context, actor user.User, lessonID string) error {
	if _, err := svc.ownedLesson(ctx, actor, lessonID); err != nil {
		return err
	}
	return svc.repo.DeleteLesson(ctx, lessonID)
}

// Enroll is idempotent: enrolling in an already-enrolled course returns the
// existing Enrollment untouched.
func (svc *service) Enroll(ctx context.Context, usr user.User, courseID string) (Enrollment, error) {
	crs, err := svc.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	if enr, err := svc.repo.GetEnrollment(ctx, usr.ID, courseID); err == nil {
		return enr, nil
	} else if err != ErrNotFound {
		return Enrollment{}, err
	}

	enr, err := svc.repo.CreateEnrollment(ctx, Enrollment{
		ID:         uuid.New().String(),
		UserID:     usr.ID,
		CourseID:   courseID,
		EnrolledAt: nowFunc().UTC(),
	})
	if err != nil {
		return Enrollment{}, err
	}
	svc.sendEnrollmentEmail(usr, crs)
	return enr, nil
}

func (svc *service) Enrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	return svc.repo.FilterEnrollments(ctx, userID)
}

func (svc *service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, courseID); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Review upserts the caller's review: one row per (user, course), overwritten
// on resubmission.
func (svc *service) Review(ctx context.Context, usr user.User, courseID string, nr NewReview) (Review, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Review{}, err
	}
	now := nowFunc().UTC()
	return svc.repo.UpsertReview(ctx, Review{
		ID:        uuid.New().String(),
		UserID:    usr.ID,
		CourseID:  courseID,
		Rating:    nr.Rating,
		Comment:   nr.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Reviews(ctx context.Context, courseID string) ([]Review, error) {
	return svc.repo.FilterReviews(ctx, courseID)
}

func (svc *service) ownedCourse(ctx context.Context, actor user.User, id string) (Course, error) {
	crs, err := svc.repo.GetCourseByID(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if !actor.IsAdmin() && crs.InstructorID != actor.ID {
		return Course{}, ErrNotCourseOwner
	}
	return crs, nil
}

func (svc *service) ownedModule(ctx context.Context, actor user.User, id string) (Module, error) {
	mod, err := svc.repo.GetModuleByID(ctx, id)
	if err != nil {
		return Module{}, err
	}
	if _, err = svc.ownedCourse(ctx, actor, mod.CourseID); err != nil {
		return Module{}, err
	}
	return mod, nil
}

func (svc *service) ownedLesson(ctx context.Context, actor user.User, id string) (Lesson, error) {
	lsn, err := svc.repo.GetLessonByID(ctx, id)
	if err != nil {
		return Lesson{}, err
	}
	if _, err = svc.ownedModule(ctx, actor, lsn.ModuleID); err != nil {
		return Lesson{}, err
	}
	return lsn, nil
}

func (svc *service) sendEnrollmentEmail(usr user.User, crs Course) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "You are enrolled in " + crs.Title,
		TemplateName: "enrollment",
		TemplateData: crs,
	})
}
