package dummydb

import (
	"sync"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/progress"
	"github.com/trezcool/academia/core/user"
)

type (
	// DB is an in-memory stand-in for the Postgres store, used as a test
	// fixture and for local hacking without a database.
	DB struct {
		identity *identityTable
		profile  *profileTable
		course   *courseTables
		progress *progressTables
	}

	identityTable struct {
		sync.RWMutex
		table map[string]*auth.Identity
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTables struct {
		sync.RWMutex
		courses     map[string]*course.Course
		modules     map[string]*course.Module
		lessons     map[string]*course.Lesson
		enrollments map[string]*course.Enrollment
		reviews     map[string]*course.Review
	}

	progressTables struct {
		sync.RWMutex
		records  map[string]*progress.Record
		quizzes  map[string]*progress.Quiz
		attempts map[string]*progress.Attempt
	}
)

func Open() (*DB, error) {
	db := &DB{
		identity: &identityTable{table: make(map[string]*auth.Identity)},
		profile:  &profileTable{table: make(map[string]*user.User)},
		course: &courseTables{
			courses:     make(map[string]*course.Course),
			modules:     make(map[string]*course.Module),
			lessons:     make(map[string]*course.Lesson),
			enrollments: make(map[string]*course.Enrollment),
			reviews:     make(map[string]*course.Review),
		},
		progress: &progressTables{
			records:  make(map[string]*progress.Record),
			quizzes:  make(map[string]*progress.Quiz),
			attempts: make(map[string]*progress.Attempt),
		},
	}
	return db, nil
}
