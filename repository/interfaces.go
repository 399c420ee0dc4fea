package repository

import (
	"context"

	"hopperGateway/models"
)

// UserRepositoryI defines operations on auth_users records.
type UserRepositoryI interface {
	Get(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, page, perPage int) (*models.UserPage, error)
	Create(ctx context.Context, in models.UserInput, verified bool) (*models.User, error)
	Update(ctx context.Context, id string, in models.UserUpdate) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// GroupRepositoryI defines operations on groups records.
type GroupRepositoryI interface {
	Get(ctx context.Context, id string) (*models.Group, error)
	List(ctx context.Context, page, perPage int) (*models.GroupPage, error)
	Create(ctx context.Context, in models.GroupInput) (*models.Group, error)
	Update(ctx context.Context, id string, in models.GroupUpdate) (*models.Group, error)
	Delete(ctx context.Context, id string) error
}

// AssociationRepositoryI defines operations on the three join collections.
type AssociationRepositoryI interface {
	GroupUsersByGroup(ctx context.Context, groupID string) ([]models.GroupUser, error)
	GroupUsersByUser(ctx context.Context, userID string) ([]models.GroupUser, error)
	GroupDashboardsByGroup(ctx context.Context, groupID string) ([]models.GroupDashboard, error)
	PipelineDashboards(ctx context.Context) ([]models.PipelineDashboard, error)
	PipelineDashboardsByDashboard(ctx context.Context, dashboardID string) ([]models.PipelineDashboard, error)
	PipelineDashboardsByPipeline(ctx context.Context, pipelineID string) ([]models.PipelineDashboard, error)

	Find(ctx context.Context, kind models.AssociationKind, left, right string) ([]models.Association, error)
	Create(ctx context.Context, kind models.AssociationKind, left, right string) (*models.Association, error)
	Delete(ctx context.Context, kind models.AssociationKind, id string) error
}
