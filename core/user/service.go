package user

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateProfile(ctx context.Context, usr User) (User, error)
		GetProfileByID(ctx context.Context, id string) (User, error)
		GetProfileByEmail(ctx context.Context, email string) (User, error)
		// FilterProfiles applies AND operation on available QueryFilter fields.
		FilterProfiles(ctx context.Context, filter QueryFilter) ([]User, error)
		UpdateProfile(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id string, t time.Time) error
	}

	Service interface {
		Create(ctx context.Context, np NewProfile) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Filter(ctx context.Context, filter QueryFilter) ([]User, error)
		Update(ctx context.Context, id string, up UpdateProfile) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
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

func (svc *service) Create(ctx context.Context, np NewProfile) (User, error) {
	if _, err := svc.repo.GetProfileByEmail(ctx, core.CleanString(np.Email, true /* lower */)); err == nil {
		return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	} else if err != ErrNotFound {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		ID:        np.ID,
		Email:     np.Email,
		Name:      np.Name,
		Role:      np.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr, err := svc.repo.CreateProfile(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendWelcomeEmail(usr)
	return usr, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetProfileByID(ctx, id)
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetProfileByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) Filter(ctx context.Context, filter QueryFilter) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterProfiles(ctx, filter)
}

func (svc *service) Update(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr := User{
		ID:        id,
		Name:      up.Name,
		AvatarURL: up.AvatarURL,
		Bio:       up.Bio,
		UpdatedAt: nowFunc().UTC(),
	}
	return svc.repo.UpdateProfile(ctx, usr)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := nowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return usr, err
	}
	usr.LastLogin = now
	return usr, nil
}

func (svc *service) sendWelcomeEmail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome to " + svc.conf.AppName,
		TemplateName: "welcome",
		TemplateData: usr,
	})
}
