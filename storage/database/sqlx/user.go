package sqlxrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core/user"
)

type profileRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) user.Repository {
	return &profileRepository{db: db}
}

func (repo *profileRepository) CreateProfile(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
INSERT INTO profile (id, email, name, role, avatar_url, bio, is_active, created_at, updated_at)
VALUES (:id, :email, :name, :role, :avatar_url, :bio, :is_active, :created_at, :updated_at)`

	row := profileRow{
		ID:        usr.ID,
		Email:     usr.Email,
		Name:      usr.Name,
		Role:      usr.Role,
		AvatarURL: usr.AvatarURL,
		Bio:       usr.Bio,
		IsActive:  usr.IsActive,
		CreatedAt: usr.CreatedAt,
		UpdatedAt: usr.UpdatedAt,
	}
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting profile")
	}
	return usr, nil
}

func (repo *profileRepository) GetProfileByID(ctx context.Context, id string) (user.User, error) {
	const q = `SELECT * FROM profile WHERE id = $1`

	var row profileRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *profileRepository) GetProfileByEmail(ctx context.Context, email string) (user.User, error) {
	const q = `SELECT * FROM profile WHERE email = $1`

	var row profileRow
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *profileRepository) FilterProfiles(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	q := `SELECT * FROM profile`
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf("(name ILIKE %s OR email ILIKE %s)", p, p))
	}
	if filter.Role != "" {
		conds = append(conds, "role = "+arg(filter.Role))
	}
	if filter.IsActive != nil {
		conds = append(conds, "is_active = "+arg(*filter.IsActive))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, "created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, "created_at <= "+arg(filter.CreatedTo.UTC()))
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at"

	var rows []profileRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering profiles")
	}
	users := make([]user.User, len(rows))
	for i, row := range rows {
		users[i] = row.toDomain()
	}
	return users, nil
}

func (repo *profileRepository) UpdateProfile(ctx context.Context, usr user.User) (user.User, error) {
	const q = `
UPDATE profile
SET name       = COALESCE(NULLIF($2, ''), name),
    avatar_url = COALESCE($3, avatar_url),
    bio        = COALESCE($4, bio),
    updated_at = $5
WHERE id = $1
RETURNING *`

	var row profileRow
	err := repo.db.GetContext(ctx, &row, q, usr.ID, usr.Name, usr.AvatarURL, usr.Bio, usr.UpdatedAt)
	if err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (repo *profileRepository) SetLastLogin(ctx context.Context, id string, t time.Time) error {
	const q = `UPDATE profile SET last_login = $2 WHERE id = $1`

	res, err := repo.db.ExecContext(ctx, q, id, null.TimeFrom(t))
	if err != nil {
		return errors.Wrap(err, "setting last login")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}
