package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr, err := repo.CreateProfile(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateProfile(): %v", err)
	}
	return usr
}

func CreateIdentity(t *testing.T, repo auth.Repository, email, name, role, pwd string) auth.Identity {
	t.Helper()

	ident := auth.Identity{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := ident.SetPassword(pwd); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	ident, err := repo.CreateIdentity(context.Background(), ident)
	if err != nil {
		t.Fatalf("CreateIdentity(): %v", err)
	}
	return ident
}

func CreateCourse(
	t *testing.T,
	repo course.Repository,
	instructorID, title string,
	published bool,
) course.Course {
	t.Helper()

	now := time.Now().UTC()
	crs := course.Course{
		ID:           uuid.New().String(),
		Title:        title,
		InstructorID: instructorID,
		Published:    published,
		Level:        course.LevelBeginner,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	crs, err := repo.CreateCourse(context.Background(), crs)
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return crs
}
