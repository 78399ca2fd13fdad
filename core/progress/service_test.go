package progress_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
	dummydb "github.com/trezcool/academia/storage/database/dummy"
	testutil "github.com/trezcool/academia/tests"
)

type progressFixture struct {
	svc        progress.Service
	courseRepo course.Repository
	seedQuiz   func(progress.Quiz)

	instructor user.User
	course     course.Course
	lessonIDs  []string
}

// setup seeds one course with lessonCount lessons spread over a single module.
func setup(t *testing.T, lessonCount int) *progressFixture {
	t.Helper()
	ctx := context.Background()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}
	courseRepo := dummydb.NewCourseRepository(db)
	progRepo := dummydb.NewProgressRepository(db)

	instructor := testutil.CreateUser(t, dummydb.NewProfileRepository(db), "Awe", "awe@test.cd", user.RoleInstructor, true)
	crs := testutil.CreateCourse(t, courseRepo, instructor.ID, "Intro to Go", true)

	mod, err := courseRepo.CreateModule(ctx, course.Module{ID: uuid.New().String(), CourseID: crs.ID, Title: "Basics", Position: 1})
	if err != nil {
		t.Fatalf("CreateModule(): %v", err)
	}
	lessonIDs := make([]string, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		lsn, err := courseRepo.CreateLesson(ctx, course.Lesson{
			ID:       uuid.New().String(),
			ModuleID: mod.ID,
			Title:    "Lesson",
			Position: i + 1,
		})
		if err != nil {
			t.Fatalf("CreateLesson(): %v", err)
		}
		lessonIDs = append(lessonIDs, lsn.ID)
	}

	return &progressFixture{
		svc:        progress.NewService(progRepo, courseRepo),
		courseRepo: courseRepo,
		seedQuiz:   progRepo.SeedQuiz,
		instructor: instructor,
		course:     crs,
		lessonIDs:  lessonIDs,
	}
}

func Test_service_CourseProgress(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		lessons   int
		completed int
		want      int
	}{
		{name: "no lessons", lessons: 0, completed: 0, want: 0},
		{name: "none completed", lessons: 3, completed: 0, want: 0},
		{name: "one third", lessons: 3, completed: 1, want: 33},
		{name: "two thirds rounds up", lessons: 3, completed: 2, want: 67},
		{name: "half up on .5", lessons: 8, completed: 1, want: 13},
		{name: "all completed", lessons: 4, completed: 4, want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fix := setup(t, tt.lessons)
			for i := 0; i < tt.completed; i++ {
				if _, err := fix.svc.MarkLessonComplete(ctx, "std-1", fix.lessonIDs[i]); err != nil {
					t.Fatalf("MarkLessonComplete(): %v", err)
				}
			}

			got, err := fix.svc.CourseProgress(ctx, "std-1", fix.course.ID)
			if err != nil {
				t.Fatalf("CourseProgress(): %v", err)
			}
			if got != tt.want {
				t.Errorf("CourseProgress() = %d, want %d", got, tt.want)
			}
		})
	}
}

func Test_service_MarkLessonComplete_idempotent(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 2)
	lessonID := fix.lessonIDs[0]

	rec1, err := fix.svc.MarkLessonComplete(ctx, "std-1", lessonID)
	if err != nil {
		t.Fatalf("MarkLessonComplete(): %v", err)
	}
	if !rec1.Completed || !rec1.CompletedAt.Valid {
		t.Errorf("record not completed: %+v", rec1)
	}

	rec2, err := fix.svc.MarkLessonComplete(ctx, "std-1", lessonID)
	if err != nil {
		t.Fatalf("MarkLessonComplete() remark: %v", err)
	}
	if rec2.ID != rec1.ID {
		t.Errorf("remark created a new record: %s != %s", rec2.ID, rec1.ID)
	}

	got, err := fix.svc.CourseProgress(ctx, "std-1", fix.course.ID)
	if err != nil {
		t.Fatalf("CourseProgress(): %v", err)
	}
	if got != 50 {
		t.Errorf("CourseProgress() = %d, want 50", got)
	}
}

func Test_service_MarkLessonComplete_concurrent(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	lessonID := fix.lessonIDs[0]

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := fix.svc.MarkLessonComplete(ctx, "std-1", lessonID); err != nil {
				t.Errorf("MarkLessonComplete(): %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := fix.svc.CourseProgress(ctx, "std-1", fix.course.ID)
	if err != nil {
		t.Fatalf("CourseProgress(): %v", err)
	}
	if got != 100 {
		t.Errorf("CourseProgress() = %d, want 100", got)
	}
}

func Test_service_UpdateLessonPosition(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	lessonID := fix.lessonIDs[0]

	rec, err := fix.svc.UpdateLessonPosition(ctx, "std-1", lessonID, 42)
	if err != nil {
		t.Fatalf("UpdateLessonPosition(): %v", err)
	}
	if rec.Completed {
		t.Error("position update flipped the completion flag")
	}
	if rec.LastWatchedPosition.Int != 42 {
		t.Errorf("LastWatchedPosition = %d, want 42", rec.LastWatchedPosition.Int)
	}

	// completing afterwards keeps the watched position
	rec, err = fix.svc.MarkLessonComplete(ctx, "std-1", lessonID)
	if err != nil {
		t.Fatalf("MarkLessonComplete(): %v", err)
	}
	if !rec.Completed || rec.LastWatchedPosition.Int != 42 {
		t.Errorf("completion lost state: %+v", rec)
	}
}

// seedGradableQuiz installs a 4-question quiz (pass mark 70) on the fixture's
// first lesson and returns it with its answer key.
func seedGradableQuiz(fix *progressFixture) progress.Quiz {
	quiz := progress.Quiz{
		ID:             uuid.New().String(),
		LessonID:       fix.lessonIDs[0],
		Title:          "Checkpoint",
		PassPercentage: 70,
	}
	mkQuestion := func(pos int, typ, prompt string, answers ...progress.Answer) {
		q := progress.Question{
			ID:       uuid.New().String(),
			QuizID:   quiz.ID,
			Position: pos,
			Prompt:   prompt,
			Type:     typ,
		}
		for i := range answers {
			answers[i].ID = uuid.New().String()
			answers[i].QuestionID = q.ID
			answers[i].Position = i + 1
		}
		q.Answers = answers
		quiz.Questions = append(quiz.Questions, q)
	}
	mkQuestion(1, progress.QuestionMultipleChoice, "What does := do?",
		progress.Answer{Text: "declares and assigns", IsCorrect: true},
		progress.Answer{Text: "compares"},
	)
	mkQuestion(2, progress.QuestionTrueFalse, "Slices are reference types.",
		progress.Answer{Text: "true", IsCorrect: true},
		progress.Answer{Text: "false"},
	)
	mkQuestion(3, progress.QuestionShortAnswer, "Keyword starting a goroutine?",
		progress.Answer{Text: "go", IsCorrect: true},
	)
	mkQuestion(4, progress.QuestionMultipleChoice, "Zero value of a pointer?",
		progress.Answer{Text: "nil", IsCorrect: true},
		progress.Answer{Text: "0"},
	)
	fix.seedQuiz(quiz)
	return quiz
}

func correctAnswerID(q progress.Question) string {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.ID
		}
	}
	return ""
}

func Test_service_StartAttempt(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	quiz := seedGradableQuiz(fix)

	if _, err := fix.svc.StartAttempt(ctx, "std-1", "nope"); err != progress.ErrNotFound {
		t.Errorf("StartAttempt() error = %v, want %v", err, progress.ErrNotFound)
	}

	att1, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt(): %v", err)
	}
	att2, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt() retake: %v", err)
	}
	if att1.ID == att2.ID {
		t.Error("retake reused the attempt row")
	}
	if att1.Score != 0 || att1.Passed || att1.CompletedAt.Valid {
		t.Errorf("fresh attempt not blank: %+v", att1)
	}
}

func Test_service_GradeAttempt(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	quiz := seedGradableQuiz(fix)
	qs := quiz.Questions

	att, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
	if err != nil {
		t.Fatalf("StartAttempt(): %v", err)
	}

	// someone else's attempt
	if _, err = fix.svc.GradeAttempt(ctx, att.ID, "std-2", progress.Submission{}); err != progress.ErrUnauthorized {
		t.Errorf("GradeAttempt() error = %v, want %v", err, progress.ErrUnauthorized)
	}

	// 3 of 4 correct, short answer padded and upper-cased
	sub := progress.Submission{
		qs[0].ID: correctAnswerID(qs[0]),
		qs[1].ID: correctAnswerID(qs[1]),
		qs[2].ID: "  GO ",
		qs[3].ID: qs[3].Answers[1].ID, // wrong choice
	}
	graded, err := fix.svc.GradeAttempt(ctx, att.ID, "std-1", sub)
	if err != nil {
		t.Fatalf("GradeAttempt(): %v", err)
	}
	if graded.Score != 75 {
		t.Errorf("Score = %d, want 75", graded.Score)
	}
	if !graded.Passed {
		t.Error("Passed = false, want true (75 >= 70)")
	}
	if !graded.CompletedAt.Valid {
		t.Error("CompletedAt not set")
	}

	// regrading overwrites the same row
	sub[qs[3].ID] = correctAnswerID(qs[3])
	regraded, err := fix.svc.GradeAttempt(ctx, att.ID, "std-1", sub)
	if err != nil {
		t.Fatalf("GradeAttempt() regrade: %v", err)
	}
	if regraded.ID != graded.ID {
		t.Errorf("regrade created a new attempt: %s != %s", regraded.ID, graded.ID)
	}
	if regraded.Score != 100 || !regraded.Passed {
		t.Errorf("regrade = %+v, want score 100 passed", regraded)
	}
	atts, err := fix.svc.Attempts(ctx, "std-1")
	if err != nil {
		t.Fatalf("Attempts(): %v", err)
	}
	if len(atts) != 1 {
		t.Errorf("attempt count = %d, want 1", len(atts))
	}
}

func Test_service_GradeAttempt_edgeCases(t *testing.T) {
	ctx := context.Background()

	t.Run("pass mark is inclusive", func(t *testing.T) {
		fix := setup(t, 1)
		quiz := seedGradableQuiz(fix)
		qs := quiz.Questions

		att, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
		if err != nil {
			t.Fatalf("StartAttempt(): %v", err)
		}
		// 2 of 4 correct against a pass mark of 50
		quiz.PassPercentage = 50
		fix.seedQuiz(quiz)
		graded, err := fix.svc.GradeAttempt(ctx, att.ID, "std-1", progress.Submission{
			qs[0].ID: correctAnswerID(qs[0]),
			qs[1].ID: correctAnswerID(qs[1]),
		})
		if err != nil {
			t.Fatalf("GradeAttempt(): %v", err)
		}
		if graded.Score != 50 || !graded.Passed {
			t.Errorf("graded = %+v, want score 50 passed", graded)
		}
	})

	t.Run("empty quiz is ungradable", func(t *testing.T) {
		fix := setup(t, 1)
		quiz := progress.Quiz{ID: uuid.New().String(), LessonID: fix.lessonIDs[0], Title: "Empty", PassPercentage: 50}
		fix.seedQuiz(quiz)

		att, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
		if err != nil {
			t.Fatalf("StartAttempt(): %v", err)
		}
		if _, err = fix.svc.GradeAttempt(ctx, att.ID, "std-1", progress.Submission{}); err != progress.ErrUngradableQuiz {
			t.Errorf("GradeAttempt() error = %v, want %v", err, progress.ErrUngradableQuiz)
		}
	})

	t.Run("unknown attempt", func(t *testing.T) {
		fix := setup(t, 1)
		if _, err := fix.svc.GradeAttempt(ctx, "nope", "std-1", progress.Submission{}); err != progress.ErrNotFound {
			t.Errorf("GradeAttempt() error = %v, want %v", err, progress.ErrNotFound)
		}
	})

	t.Run("short answer mismatch", func(t *testing.T) {
		fix := setup(t, 1)
		quiz := seedGradableQuiz(fix)
		qs := quiz.Questions

		att, err := fix.svc.StartAttempt(ctx, "std-1", quiz.ID)
		if err != nil {
			t.Fatalf("StartAttempt(): %v", err)
		}
		graded, err := fix.svc.GradeAttempt(ctx, att.ID, "std-1", progress.Submission{
			qs[2].ID: "goes", // no partial credit
		})
		if err != nil {
			t.Fatalf("GradeAttempt(): %v", err)
		}
		if graded.Score != 0 || graded.Passed {
			t.Errorf("graded = %+v, want score 0 failed", graded)
		}
	})
}

func Test_service_SaveQuiz(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	lessonID := fix.lessonIDs[0]

	nq := progress.NewQuiz{
		Title:          "Checkpoint",
		PassPercentage: 70,
		Questions: []progress.NewQuestion{
			{
				Prompt: "Is Go compiled?",
				Type:   progress.QuestionTrueFalse,
				Answers: []progress.NewAnswer{
					{Text: "true", IsCorrect: true},
					{Text: "false"},
				},
			},
		},
	}

	t.Run("validation", func(t *testing.T) {
		bad := progress.NewQuiz{PassPercentage: 200}
		if _, err := fix.svc.SaveQuiz(ctx, fix.instructor, lessonID, bad); err == nil {
			t.Error("SaveQuiz() accepted an invalid quiz")
		}
	})

	t.Run("not the owner", func(t *testing.T) {
		other := user.User{ID: "other", Role: user.RoleInstructor}
		if _, err := fix.svc.SaveQuiz(ctx, other, lessonID, nq); err != progress.ErrUnauthorized {
			t.Errorf("SaveQuiz() error = %v, want %v", err, progress.ErrUnauthorized)
		}
	})

	t.Run("unknown lesson", func(t *testing.T) {
		if _, err := fix.svc.SaveQuiz(ctx, fix.instructor, "nope", nq); err != progress.ErrNotFound {
			t.Errorf("SaveQuiz() error = %v, want %v", err, progress.ErrNotFound)
		}
	})

	t.Run("create then replace", func(t *testing.T) {
		quiz, err := fix.svc.SaveQuiz(ctx, fix.instructor, lessonID, nq)
		if err != nil {
			t.Fatalf("SaveQuiz(): %v", err)
		}
		if len(quiz.Questions) != 1 || len(quiz.Questions[0].Answers) != 2 {
			t.Errorf("quiz content lost: %+v", quiz)
		}

		nq.Title = "Checkpoint v2"
		nq.Questions = append(nq.Questions, progress.NewQuestion{
			Prompt:  "Name the builtin that appends to a slice.",
			Type:    progress.QuestionShortAnswer,
			Answers: []progress.NewAnswer{{Text: "append", IsCorrect: true}},
		})
		replaced, err := fix.svc.SaveQuiz(ctx, fix.instructor, lessonID, nq)
		if err != nil {
			t.Fatalf("SaveQuiz() replace: %v", err)
		}
		if replaced.ID != quiz.ID {
			t.Errorf("replace changed the quiz id: %s != %s", replaced.ID, quiz.ID)
		}
		if len(replaced.Questions) != 2 {
			t.Errorf("question count = %d, want 2", len(replaced.Questions))
		}
	})

	t.Run("admin bypasses ownership", func(t *testing.T) {
		admin := user.User{ID: "root", Role: user.RoleAdmin}
		if _, err := fix.svc.SaveQuiz(ctx, admin, lessonID, nq); err != nil {
			t.Errorf("SaveQuiz(): %v", err)
		}
	})
}

func Test_service_DeleteQuiz(t *testing.T) {
	ctx := context.Background()
	fix := setup(t, 1)
	lessonID := fix.lessonIDs[0]

	if err := fix.svc.DeleteQuiz(ctx, fix.instructor, lessonID); err != progress.ErrNotFound {
		t.Errorf("DeleteQuiz() error = %v, want %v", err, progress.ErrNotFound)
	}

	seedGradableQuiz(fix)
	other := user.User{ID: "other", Role: user.RoleInstructor}
	if err := fix.svc.DeleteQuiz(ctx, other, lessonID); err != progress.ErrUnauthorized {
		t.Errorf("DeleteQuiz() error = %v, want %v", err, progress.ErrUnauthorized)
	}

	if err := fix.svc.DeleteQuiz(ctx, fix.instructor, lessonID); err != nil {
		t.Fatalf("DeleteQuiz(): %v", err)
	}
	if _, err := fix.svc.QuizByLesson(ctx, lessonID); err != progress.ErrNotFound {
		t.Errorf("QuizByLesson() after delete error = %v, want %v", err, progress.ErrNotFound)
	}
}
