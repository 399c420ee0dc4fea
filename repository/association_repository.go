package repository

import (
	"context"
	"fmt"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/recordstore"
	"hopperGateway/models"
)

// AssociationRepository reads and writes join rows. Lists always cover every
// page of the collection so callers see all rows, duplicates included, in
// insertion order.
type AssociationRepository struct {
	store recordstore.Store
}

var _ AssociationRepositoryI = (*AssociationRepository)(nil)

func NewAssociationRepository(store recordstore.Store) *AssociationRepository {
	return &AssociationRepository{store: store}
}

func collectionFor(kind models.AssociationKind) (string, error) {
	switch kind {
	case models.KindGroupUser:
		return recordstore.CollectionGroupUsers, nil
	case models.KindGroupDashboard:
		return recordstore.CollectionGroupDashboards, nil
	case models.KindPipelineDashboard:
		return recordstore.CollectionPipelineDashboards, nil
	default:
		return "", apperrors.Validation(fmt.Sprintf("unknown association kind %q", kind))
	}
}

func listRows[T any](ctx context.Context, s recordstore.Store, collection string, filter recordstore.Eq) ([]T, error) {
	items, err := recordstore.ListAll(ctx, s, collection, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll[T](items)
}

func (r *AssociationRepository) GroupUsersByGroup(ctx context.Context, groupID string) ([]models.GroupUser, error) {
	return listRows[models.GroupUser](ctx, r.store, recordstore.CollectionGroupUsers, recordstore.Eq{"group_id": groupID})
}

func (r *AssociationRepository) GroupUsersByUser(ctx context.Context, userID string) ([]models.GroupUser, error) {
	return listRows[models.GroupUser](ctx, r.store, recordstore.CollectionGroupUsers, recordstore.Eq{"user_id": userID})
}

func (r *AssociationRepository) GroupDashboardsByGroup(ctx context.Context, groupID string) ([]models.GroupDashboard, error) {
	return listRows[models.GroupDashboard](ctx, r.store, recordstore.CollectionGroupDashboards, recordstore.Eq{"group_id": groupID})
}

func (r *AssociationRepository) PipelineDashboards(ctx context.Context) ([]models.PipelineDashboard, error) {
	return listRows[models.PipelineDashboard](ctx, r.store, recordstore.CollectionPipelineDashboards, nil)
}

func (r *AssociationRepository) PipelineDashboardsByDashboard(ctx context.Context, dashboardID string) ([]models.PipelineDashboard, error) {
	return listRows[models.PipelineDashboard](ctx, r.store, recordstore.CollectionPipelineDashboards, recordstore.Eq{"dashboard_id": dashboardID})
}

func (r *AssociationRepository) PipelineDashboardsByPipeline(ctx context.Context, pipelineID string) ([]models.PipelineDashboard, error) {
	return listRows[models.PipelineDashboard](ctx, r.store, recordstore.CollectionPipelineDashboards, recordstore.Eq{"pipeline_id": pipelineID})
}

// Find returns the rows of kind matching left and right. An empty id leaves
// that side unconstrained.
func (r *AssociationRepository) Find(ctx context.Context, kind models.AssociationKind, left, right string) ([]models.Association, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	lf, rf := kind.Fields()
	filter := recordstore.Eq{}
	if left != "" {
		filter[lf] = left
	}
	if right != "" {
		filter[rf] = right
	}
	rows, err := listRows[map[string]any](ctx, r.store, collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]models.Association, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.Association{
			Kind:  kind,
			ID:    str(row["id"]),
			Left:  str(row[lf]),
			Right: str(row[rf]),
		})
	}
	return out, nil
}

func (r *AssociationRepository) Create(ctx context.Context, kind models.AssociationKind, left, right string) (*models.Association, error) {
	collection, err := collectionFor(kind)
	if err != nil {
		return nil, err
	}
	lf, rf := kind.Fields()
	raw, err := r.store.Create(ctx, collection, map[string]string{lf: left, rf: right})
	if err != nil {
		return nil, err
	}
	row, err := decode[map[string]any](raw)
	if err != nil {
		return nil, err
	}
	return &models.Association{Kind: kind, ID: str((*row)["id"]), Left: left, Right: right}, nil
}

// Delete removes one join row by its own id.
func (r *AssociationRepository) Delete(ctx context.Context, kind models.AssociationKind, id string) error {
	collection, err := collectionFor(kind)
	if err != nil {
		return err
	}
	return r.store.Delete(ctx, collection, id)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
