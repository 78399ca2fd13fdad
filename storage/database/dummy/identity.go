package dummydb

import (
	"context"

	"github.com/trezcool/academia/core/auth"
)

type identityRepository struct {
	db *identityTable
}

var _ auth.Repository = (*identityRepository)(nil) // interface compliance check

func NewIdentityRepository(db *DB) auth.Repository {
	return &identityRepository{db: db.identity}
}

func (repo *identityRepository) CreateIdentity(ctx context.Context, ident auth.Identity) (auth.Identity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.table[ident.ID] = &ident
	return ident, nil
}

func (repo *identityRepository) GetIdentityByID(ctx context.Context, id string) (auth.Identity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ident, ok := repo.db.table[id]; ok {
		return *ident, nil
	}
	return auth.Identity{}, auth.ErrIdentityNotFound
}

func (repo *identityRepository) UpdateIdentity(ctx context.Context, ident auth.Identity) (auth.Identity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[ident.ID]; !ok {
		return auth.Identity{}, auth.ErrIdentityNotFound
	}
	repo.db.table[ident.ID] = &ident
	return ident, nil
}

func (repo *identityRepository) GetIdentityByEmail(ctx context.Context, email string) (auth.Identity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ident := range repo.db.table {
		if ident.Email == email {
			return *ident, nil
		}
	}
	return auth.Identity{}, auth.ErrIdentityNotFound
}
