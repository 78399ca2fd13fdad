package tests

import (
	"net/http"
	"testing"

	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

// buildCourse publishes a one-module course and returns it with its lessons.
func buildCourse(t *testing.T, token, title string, lessonCount int) (course.Course, []course.Lesson) {
	t.Helper()

	var crs course.Course
	body := marchallObj(t, course.NewCourse{Title: title, Level: course.LevelBeginner, Published: true})
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create course: code = %d; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &crs)

	var mod course.Module
	body = marchallObj(t, course.NewModule{Title: "Basics", Position: 1})
	req, rec = newAuthRequest(http.MethodPost, "/v1/courses/"+crs.ID+"/modules", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add module: code = %d; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &mod)

	lessons := make([]course.Lesson, 0, lessonCount)
	for i := 0; i < lessonCount; i++ {
		var lsn course.Lesson
		body = marchallObj(t, course.NewLesson{Title: "Lesson", Position: i + 1, Duration: null.IntFrom(300)})
		req, rec = newAuthRequest(http.MethodPost, "/v1/modules/"+mod.ID+"/lessons", token, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("add lesson: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &lsn)
		lessons = append(lessons, lsn)
	}
	return crs, lessons
}

func TestProgressAPI_lessons(t *testing.T) {
	_, instrToken := createAccount(t, "Prog Instr", "prog-instr@test.cd", user.RoleInstructor, "s3cr3t-pwd")
	_, studentToken := createAccount(t, "Prog Student", "prog-student@test.cd", user.RoleStudent, "s3cr3t-pwd")
	crs, lessons := buildCourse(t, instrToken, "Progress Go", 2)

	progressOf := func(t *testing.T) int {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, "/v1/courses/"+crs.ID+"/progress", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("progress: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var resp ProgressResponse
		decodeBody(t, rec, &resp)
		return resp.Progress
	}

	if got := progressOf(t); got != 0 {
		t.Errorf("initial progress = %d, want 0", got)
	}

	t.Run("watch position", func(t *testing.T) {
		body := marchallObj(t, PositionRequest{Seconds: 90})
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+lessons[0].ID+"/position", studentToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var rec2 progress.Record
		decodeBody(t, rec, &rec2)
		if rec2.LastWatchedPosition.Int != 90 || rec2.Completed {
			t.Errorf("record = %+v", rec2)
		}
	})

	t.Run("negative position", func(t *testing.T) {
		body := marchallObj(t, PositionRequest{Seconds: -1})
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+lessons[0].ID+"/position", studentToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusBadRequest, rec.Body.String())
		}
	})

	t.Run("completion drives progress", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/lessons/"+lessons[0].ID+"/complete", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		if got := progressOf(t); got != 50 {
			t.Errorf("progress = %d, want 50", got)
		}

		// remarking does not double-count
		req, rec = newAuthRequest(http.MethodPost, "/v1/lessons/"+lessons[0].ID+"/complete", studentToken)
		app.ServeHTTP(rec, req)
		if got := progressOf(t); got != 50 {
			t.Errorf("progress after remark = %d, want 50", got)
		}

		req, rec = newAuthRequest(http.MethodPost, "/v1/lessons/"+lessons[1].ID+"/complete", studentToken)
		app.ServeHTTP(rec, req)
		if got := progressOf(t); got != 100 {
			t.Errorf("progress = %d, want 100", got)
		}
	})
}

func TestProgressAPI_quizzes(t *testing.T) {
	_, instrToken := createAccount(t, "Quiz Instr", "quiz-instr@test.cd", user.RoleInstructor, "s3cr3t-pwd")
	_, studentToken := createAccount(t, "Quiz Student", "quiz-student@test.cd", user.RoleStudent, "s3cr3t-pwd")
	_, otherToken := createAccount(t, "Quiz Other", "quiz-other@test.cd", user.RoleStudent, "s3cr3t-pwd")
	_, lessons := buildCourse(t, instrToken, "Quiz Go", 2)
	lessonID := lessons[0].ID

	nq := progress.NewQuiz{
		Title:          "Checkpoint",
		PassPercentage: 50,
		Questions: []progress.NewQuestion{
			{
				Prompt: "Is Go compiled?",
				Type:   progress.QuestionTrueFalse,
				Answers: []progress.NewAnswer{
					{Text: "true", IsCorrect: true},
					{Text: "false"},
				},
			},
			{
				Prompt:  "Keyword starting a goroutine?",
				Type:    progress.QuestionShortAnswer,
				Answers: []progress.NewAnswer{{Text: "go", IsCorrect: true}},
			},
		},
	}

	t.Run("students cannot author quizzes", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+lessonID+"/quiz", studentToken, marchallObj(t, nq))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("code = %d, want %d; body = %s", rec.Code, http.StatusForbidden, rec.Body.String())
		}
	})

	var quiz progress.Quiz
	req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+lessonID+"/quiz", instrToken, marchallObj(t, nq))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("save quiz: code = %d; body = %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &quiz)
	if len(quiz.Questions) != 2 {
		t.Fatalf("question count = %d, want 2", len(quiz.Questions))
	}

	t.Run("lesson quiz hides the answer key", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/lessons/"+lessonID+"/quiz", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var bare progress.Quiz
		decodeBody(t, rec, &bare)
		if bare.ID != quiz.ID || len(bare.Questions) != 0 {
			t.Errorf("quiz = %+v, want bare quiz", bare)
		}
	})

	t.Run("attempt lifecycle", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/"+quiz.ID+"/attempts", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("start attempt: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var att progress.Attempt
		decodeBody(t, rec, &att)

		// someone else cannot submit it
		tt := httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: progress.ErrUnauthorized.Error()}),
		}
		req, rec = newAuthRequest(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", otherToken, []byte("{}"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		// one of two correct: 50, pass mark inclusive
		tf := quiz.Questions[0]
		var correctID string
		for _, a := range tf.Answers {
			if a.IsCorrect {
				correctID = a.ID
			}
		}
		sub := progress.Submission{tf.ID: correctID, quiz.Questions[1].ID: "nope"}
		req, rec = newAuthRequest(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", studentToken, marchallObj(t, sub))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var graded progress.Attempt
		decodeBody(t, rec, &graded)
		if graded.Score != 50 || !graded.Passed || !graded.CompletedAt.Valid {
			t.Errorf("graded = %+v, want score 50 passed", graded)
		}

		// the attempt shows up in the student's history
		req, rec = newAuthRequest(http.MethodGet, "/v1/attempts", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("attempts: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var atts []progress.Attempt
		decodeBody(t, rec, &atts)
		if len(atts) != 1 || atts[0].ID != att.ID {
			t.Errorf("attempts = %+v", atts)
		}
	})

	t.Run("blank sheet grades to zero", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/quizzes/"+quiz.ID+"/attempts", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("start attempt: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var att progress.Attempt
		decodeBody(t, rec, &att)

		// no body at all
		req, rec = newAuthRequest(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("submit: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		var graded progress.Attempt
		decodeBody(t, rec, &graded)
		if graded.Score != 0 || graded.Passed {
			t.Errorf("graded = %+v, want score 0 not passed", graded)
		}
	})

	t.Run("empty quiz is ungradable", func(t *testing.T) {
		empty := progress.NewQuiz{Title: "Empty", PassPercentage: 50}
		var emptyQuiz progress.Quiz
		req, rec := newAuthRequest(http.MethodPut, "/v1/lessons/"+lessons[1].ID+"/quiz", instrToken, marchallObj(t, empty))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("save quiz: code = %d; body = %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &emptyQuiz)

		req, rec = newAuthRequest(http.MethodPost, "/v1/quizzes/"+emptyQuiz.ID+"/attempts", studentToken)
		app.ServeHTTP(rec, req)
		var att progress.Attempt
		decodeBody(t, rec, &att)

		tt := httpTest{
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, httpErr{Error: progress.ErrUngradableQuiz.Error()}),
		}
		req, rec = newAuthRequest(http.MethodPost, "/v1/attempts/"+att.ID+"/submit", studentToken, []byte("{}"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("delete quiz", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/lessons/"+lessonID+"/quiz", instrToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("code = %d; body = %s", rec.Code, rec.Body.String())
		}

		tt := httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: progress.ErrNotFound.Error()}),
		}
		req, rec = newAuthRequest(http.MethodGet, "/v1/lessons/"+lessonID+"/quiz", studentToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}
