package repository

import (
	"context"
	"strings"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/recordstore"
	"hopperGateway/models"
)

type GroupRepository struct {
	store recordstore.Store
}

var _ GroupRepositoryI = (*GroupRepository)(nil)

func NewGroupRepository(store recordstore.Store) *GroupRepository {
	return &GroupRepository{store: store}
}

func (r *GroupRepository) Get(ctx context.Context, id string) (*models.Group, error) {
	raw, err := r.store.Get(ctx, recordstore.CollectionGroups, id)
	if err != nil {
		return nil, err
	}
	return decode[models.Group](raw)
}

func (r *GroupRepository) List(ctx context.Context, page, perPage int) (*models.GroupPage, error) {
	res, err := r.store.List(ctx, recordstore.CollectionGroups, recordstore.ListOptions{Page: page, PerPage: perPage})
	if err != nil {
		return nil, err
	}
	groups, err := decodePage[models.Group](res)
	if err != nil {
		return nil, err
	}
	return &models.GroupPage{
		Page:       res.Page,
		PerPage:    res.PerPage,
		TotalItems: res.TotalItems,
		TotalPages: res.TotalPages,
		Items:      groups,
	}, nil
}

func (r *GroupRepository) Create(ctx context.Context, in models.GroupInput) (*models.Group, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, apperrors.Validation("name is required")
	}
	raw, err := r.store.Create(ctx, recordstore.CollectionGroups, in)
	if err != nil {
		return nil, err
	}
	return decode[models.Group](raw)
}

func (r *GroupRepository) Update(ctx context.Context, id string, in models.GroupUpdate) (*models.Group, error) {
	raw, err := r.store.Update(ctx, recordstore.CollectionGroups, id, in)
	if err != nil {
		return nil, err
	}
	return decode[models.Group](raw)
}

func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	return r.store.Delete(ctx, recordstore.CollectionGroups, id)
}
