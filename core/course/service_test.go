package course_test

import (
	"context"
	"os"
	"testing"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	appfs "github.com/trezcool/academia/fs"
	emailsvc "github.com/trezcool/academia/services/email"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

func TestMain(m *testing.M) {
	core.InitMailTemplates(appfs.FS)
	os.Exit(m.Run())
}

type courseFixture struct {
	svc        course.Service
	repo       course.Repository
	usrRepo    user.Repository
	mailSvc    interface{ SentMessages() []core.EmailMessage }
	instructor user.User
	student    user.User
	intruder   user.User
}

func setup(t *testing.T) *courseFixture {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	conf := &core.Config{AppName: "Academia", TestMode: true}
	repo := dummydb.NewCourseRepository(db)
	usrRepo := dummydb.NewProfileRepository(db)
	mailSvc := emailsvc.NewMockService(conf)

	return &courseFixture{
		svc:        course.NewService(conf, repo, mailSvc),
		repo:       repo,
		usrRepo:    usrRepo,
		mailSvc:    mailSvc,
		instructor: testutil.CreateUser(t, usrRepo, "Awe", "awe@test.cd", user.RoleInstructor, true),
		student:    testutil.CreateUser(t, usrRepo, "Hello", "hello@test.cd", user.RoleStudent, true),
		intruder:   testutil.CreateUser(t, usrRepo, "Lol", "lol@test.cd", user.RoleInstructor, true),
	}
}

func Test_service_Catalog(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)

	testutil.CreateCourse(t, fix.repo, fix.instructor.ID, "Published Go", true)
	testutil.CreateCourse(t, fix.repo, fix.instructor.ID, "Draft Rust", false)

	t.Run("lists published only", func(t *testing.T) {
		courses, err := fix.svc.Catalog(ctx, course.QueryFilter{})
		if err != nil {
			t.Fatalf("Catalog(): %v", err)
		}
		if len(courses) != 1 || courses[0].Title != "Published Go" {
			t.Errorf("Catalog() = %+v, want only the published course", courses)
		}
	})

	t.Run("drafts stay hidden even when asked for", func(t *testing.T) {
		published := false
		courses, err := fix.svc.Catalog(ctx, course.QueryFilter{Published: &published})
		if err != nil {
			t.Fatalf("Catalog(): %v", err)
		}
		if len(courses) != 1 || !courses[0].Published {
			t.Errorf("Catalog() leaked drafts: %+v", courses)
		}
	})

	t.Run("search", func(t *testing.T) {
		courses, err := fix.svc.Catalog(ctx, course.QueryFilter{Search: "go"})
		if err != nil {
			t.Fatalf("Catalog(): %v", err)
		}
		if len(courses) != 1 {
			t.Errorf("Catalog(search=go) = %+v, want 1 course", courses)
		}
	})

	t.Run("flattens the instructor name", func(t *testing.T) {
		courses, err := fix.svc.Catalog(ctx, course.QueryFilter{})
		if err != nil {
			t.Fatalf("Catalog(): %v", err)
		}
		if courses[0].InstructorName != fix.instructor.Name {
			t.Errorf("InstructorName = %q, want %q", courses[0].InstructorName, fix.instructor.Name)
		}
	})
}

func Test_service_authoring(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)

	crs, err := fix.svc.Create(ctx, fix.instructor, course.NewCourse{
		Title: "Intro to Go",
		Level: course.LevelBeginner,
		Price: 25,
	})
	if err != nil {
		t.Fatalf("Create(): %v", err)
	}
	if crs.InstructorID != fix.instructor.ID {
		t.Errorf("InstructorID = %q, want %q", crs.InstructorID, fix.instructor.ID)
	}

	t.Run("update by a stranger", func(t *testing.T) {
		_, err := fix.svc.Update(ctx, fix.intruder, crs.ID, course.UpdateCourse{Title: "Hijacked"})
		if err != course.ErrNotCourseOwner {
			t.Errorf("Update() error = %v, want %v", err, course.ErrNotCourseOwner)
		}
	})

	t.Run("partial update keeps unset fields", func(t *testing.T) {
		price := 30.0
		updated, err := fix.svc.Update(ctx, fix.instructor, crs.ID, course.UpdateCourse{Price: &price})
		if err != nil {
			t.Fatalf("Update(): %v", err)
		}
		if updated.Title != crs.Title || updated.Price != 30 || updated.Level != crs.Level {
			t.Errorf("Update() = %+v", updated)
		}
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		admin := user.User{ID: "root", Role: user.RoleAdmin}
		if _, err := fix.svc.Update(ctx, admin, crs.ID, course.UpdateCourse{Title: "Renamed"}); err != nil {
			t.Errorf("Update(): %v", err)
		}
	})

	t.Run("unknown course", func(t *testing.T) {
		if _, err := fix.svc.Update(ctx, fix.instructor, "nope", course.UpdateCourse{}); err != course.ErrNotFound {
			t.Errorf("Update() error = %v, want %v", err, course.ErrNotFound)
		}
	})

	t.Run("modules and lessons inherit ownership", func(t *testing.T) {
		mod, err := fix.svc.AddModule(ctx, fix.instructor, crs.ID, course.NewModule{Title: "Basics", Position: 1})
		if err != nil {
			t.Fatalf("AddModule(): %v", err)
		}
		if _, err = fix.svc.AddModule(ctx, fix.intruder, crs.ID, course.NewModule{Title: "Nope", Position: 2}); err != course.ErrNotCourseOwner {
			t.Errorf("AddModule() error = %v, want %v", err, course.ErrNotCourseOwner)
		}

		lsn, err := fix.svc.AddLesson(ctx, fix.instructor, mod.ID, course.NewLesson{Title: "Hello", Position: 1})
		if err != nil {
			t.Fatalf("AddLesson(): %v", err)
		}
		if _, err = fix.svc.UpdateLesson(ctx, fix.intruder, lsn.ID, course.NewLesson{Title: "Nope", Position: 1}); err != course.ErrNotCourseOwner {
			t.Errorf("UpdateLesson() error = %v, want %v", err, course.ErrNotCourseOwner)
		}
		if err = fix.svc.DeleteLesson(ctx, fix.instructor, lsn.ID); err != nil {
			t.Errorf("DeleteLesson(): %v", err)
		}

		content, err := fix.svc.Content(ctx, crs.ID)
		if err != nil {
			t.Fatalf("Content(): %v", err)
		}
		if len(content) != 1 || len(content[0].Lessons) != 0 {
			t.Errorf("Content() = %+v, want 1 empty module", content)
		}
	})
}

func Test_service_Enroll(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)
	crs := testutil.CreateCourse(t, fix.repo, fix.instructor.ID, "Intro to Go", true)

	t.Run("unknown course", func(t *testing.T) {
		if _, err := fix.svc.Enroll(ctx, fix.student, "nope"); err != course.ErrNotFound {
			t.Errorf("Enroll() error = %v, want %v", err, course.ErrNotFound)
		}
	})

	t.Run("enrolls once and emails once", func(t *testing.T) {
		enr, err := fix.svc.Enroll(ctx, fix.student, crs.ID)
		if err != nil {
			t.Fatalf("Enroll(): %v", err)
		}

		again, err := fix.svc.Enroll(ctx, fix.student, crs.ID)
		if err != nil {
			t.Fatalf("Enroll() again: %v", err)
		}
		if again.ID != enr.ID {
			t.Errorf("re-enrollment created a new row: %s != %s", again.ID, enr.ID)
		}

		msgs := fix.mailSvc.SentMessages()
		if len(msgs) != 1 {
			t.Fatalf("sent emails = %d, want 1", len(msgs))
		}
		if msgs[0].To[0].Address != fix.student.Email {
			t.Errorf("email sent to %q, want %q", msgs[0].To[0].Address, fix.student.Email)
		}

		enrolled, err := fix.svc.IsEnrolled(ctx, fix.student.ID, crs.ID)
		if err != nil {
			t.Fatalf("IsEnrolled(): %v", err)
		}
		if !enrolled {
			t.Error("IsEnrolled() = false, want true")
		}

		enrs, err := fix.svc.Enrollments(ctx, fix.student.ID)
		if err != nil {
			t.Fatalf("Enrollments(): %v", err)
		}
		if len(enrs) != 1 || enrs[0].Course == nil || enrs[0].Course.ID != crs.ID {
			t.Errorf("Enrollments() = %+v, want 1 with joined course", enrs)
		}
	})
}

func Test_service_Review(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)
	crs := testutil.CreateCourse(t, fix.repo, fix.instructor.ID, "Intro to Go", true)

	t.Run("unknown course", func(t *testing.T) {
		if _, err := fix.svc.Review(ctx, fix.student, "nope", course.NewReview{Rating: 5}); err != course.ErrNotFound {
			t.Errorf("Review() error = %v, want %v", err, course.ErrNotFound)
		}
	})

	t.Run("resubmission overwrites", func(t *testing.T) {
		rev, err := fix.svc.Review(ctx, fix.student, crs.ID, course.NewReview{Rating: 3, Comment: null.StringFrom("meh")})
		if err != nil {
			t.Fatalf("Review(): %v", err)
		}
		if rev.ReviewerName != fix.student.Name {
			t.Errorf("ReviewerName = %q, want %q", rev.ReviewerName, fix.student.Name)
		}

		redo, err := fix.svc.Review(ctx, fix.student, crs.ID, course.NewReview{Rating: 5, Comment: null.StringFrom("grew on me")})
		if err != nil {
			t.Fatalf("Review() redo: %v", err)
		}
		if redo.ID != rev.ID || redo.Rating != 5 {
			t.Errorf("Review() redo = %+v, want same row with rating 5", redo)
		}

		revs, err := fix.svc.Reviews(ctx, crs.ID)
		if err != nil {
			t.Fatalf("Reviews(): %v", err)
		}
		if len(revs) != 1 {
			t.Errorf("review count = %d, want 1", len(revs))
		}
	})
}

func Test_service_InstructorCourses(t *testing.T) {
	ctx := context.Background()
	fix := setup(t)

	testutil.CreateCourse(t, fix.repo, fix.instructor.ID, "Mine", false)
	testutil.CreateCourse(t, fix.repo, fix.intruder.ID, "Theirs", true)

	courses, err := fix.svc.InstructorCourses(ctx, fix.instructor.ID)
	if err != nil {
		t.Fatalf("InstructorCourses(): %v", err)
	}
	if len(courses) != 1 || courses[0].Title != "Mine" {
		t.Errorf("InstructorCourses() = %+v, want only the instructor's draft", courses)
	}
}
