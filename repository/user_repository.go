package repository

import (
	"context"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/recordstore"
	"hopperGateway/models"
)

type UserRepository struct {
	store recordstore.Store
}

var _ UserRepositoryI = (*UserRepository)(nil)

func NewUserRepository(store recordstore.Store) *UserRepository {
	return &UserRepository{store: store}
}

// Get returns the user, or a NotFound error.
func (r *UserRepository) Get(ctx context.Context, id string) (*models.User, error) {
	raw, err := r.store.Get(ctx, recordstore.CollectionUsers, id)
	if err != nil {
		return nil, err
	}
	return decode[models.User](raw)
}

func (r *UserRepository) List(ctx context.Context, page, perPage int) (*models.UserPage, error) {
	res, err := r.store.List(ctx, recordstore.CollectionUsers, recordstore.ListOptions{Page: page, PerPage: perPage})
	if err != nil {
		return nil, err
	}
	users, err := decodePage[models.User](res)
	if err != nil {
		return nil, err
	}
	return &models.UserPage{
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
		Users:      users,
	}, nil
}

// Create inserts an auth_users record. verified marks accounts created by an
// administrator, which skip email verification. Passwords must match.
func (r *UserRepository) Create(ctx context.Context, in models.UserInput, verified bool) (*models.User, error) {
	if in.Password != in.PasswordConfirm {
		return nil, apperrors.Validation("Password and password confirmation do not match")
	}
	if in.Role == "" {
		in.Role = models.RoleUser
	}
	if !in.Role.Valid() {
		return nil, apperrors.Validation("role must be one of user, admin")
	}
	body := map[string]any{
		"username":        in.Username,
		"email":           in.Email,
		"password":        in.Password,
		"passwordConfirm": in.PasswordConfirm,
		"role":            in.Role,
		"emailVisibility": true,
	}
	if verified {
		body["verified"] = true
	}
	raw, err := r.store.Create(ctx, recordstore.CollectionUsers, body)
	if err != nil {
		return nil, err
	}
	return decode[models.User](raw)
}

func (r *UserRepository) Update(ctx context.Context, id string, in models.UserUpdate) (*models.User, error) {
	if in.Role != nil && !in.Role.Valid() {
		return nil, apperrors.Validation("role must be one of user, admin")
	}
	raw, err := r.store.Update(ctx, recordstore.CollectionUsers, id, in)
	if err != nil {
		return nil, err
	}
	return decode[models.User](raw)
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, recordstore.CollectionUsers, id)
}
