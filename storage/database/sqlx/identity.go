package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/auth"
)

type identityRepository struct {
	db *sqlx.DB
}

var _ auth.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *sqlx.DB) auth.Repository {
	return &identityRepository{db: db}
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, ident auth.Identity) (auth.Identity, error) {
	const q = `
INSERT INTO identity (id, email, name, role, password_hash, created_at)
VALUES (:id, :email, :name, :role, :password_hash, :created_at)`

	row := identityRow(ident)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return auth.Identity{}, errors.Wrap(err, "inserting identity")
	}
	return ident, nil
}

func (repo *identityRepository) GetIdentityByID(ctx context.Context, id string) (auth.Identity, error) {
	const q = `SELECT * FROM identity WHERE id = $1`

	var row identityRow
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return auth.Identity{}, trapNoRowsErr(err, auth.ErrIdentityNotFound)
	}
	return row.toDomain(), nil
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, ident auth.Identity) (auth.Identity, error) {
	const q = `
UPDATE identity SET email = :email, name = :name, role = :role, password_hash = :password_hash
WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, identityRow(ident))
	if err != nil {
		return auth.Identity{}, errors.Wrap(err, "updating identity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return auth.Identity{}, auth.ErrIdentityNotFound
	}
	return ident, nil
}

func (repo *identityRepository) GetIdentityByEmail(ctx context.Context, email string) (auth.Identity, error) {
	const q = `SELECT * FROM identity WHERE email = $1`

	var row identityRow
	if err := repo.db.GetContext(ctx, &row, q, email); err != nil {
		return auth.Identity{}, trapNoRowsErr(err, auth.ErrIdentityNotFound)
	}
	return row.toDomain(), nil
}
