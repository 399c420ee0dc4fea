// Package resolver answers the cross-entity questions the record store cannot
// answer on its own: join rows there reference users and groups held locally
// and dashboards that live on the BI platform.
//
// Every call re-reads current state; nothing is cached between calls and no
// upstream call is retried.
package resolver

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/logger"
	"hopperGateway/models"
	"hopperGateway/repository"
)

// Options tunes a Resolver.
type Options struct {
	// MaxGoroutines bounds the per-group fan-out of UserVisibleDashboards.
	MaxGoroutines int
	// UniqueAssociations makes AddAssociation return an existing row for
	// the same pair instead of writing a duplicate. It is best-effort: the
	// lookup and the write are separate store calls, so two concurrent adds
	// of one pair can both write.
	UniqueAssociations bool
}

type Resolver struct {
	users  repository.UserRepositoryI
	groups repository.GroupRepositoryI
	assoc  repository.AssociationRepositoryI
	bi     DashboardLister
	logger logger.Logger
	opts   Options
}

func New(
	users repository.UserRepositoryI,
	groups repository.GroupRepositoryI,
	assoc repository.AssociationRepositoryI,
	bi DashboardLister,
	log logger.Logger,
	opts Options,
) *Resolver {
	if opts.MaxGoroutines <= 0 {
		opts.MaxGoroutines = 1
	}
	if log == nil {
		log = logger.NewNoopLogger()
	}
	return &Resolver{users: users, groups: groups, assoc: assoc, bi: bi, logger: log, opts: opts}
}

// GroupDashboards returns the dashboards associated with groupID, in join-row
// order. all is the full BI dashboard list, fetched once by the caller. Rows
// referencing a dashboard absent from all are skipped.
func (r *Resolver) GroupDashboards(ctx context.Context, groupID string, all []models.Dashboard) ([]models.Dashboard, error) {
	rows, err := r.assoc.GroupDashboardsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := []models.Dashboard{}
	for _, row := range rows {
		d, ok := findDashboard(all, row.DashboardID)
		if !ok {
			r.logger.Debug("skipping stale dashboard association",
				zap.String("group_id", groupID),
				zap.String("dashboard_id", row.DashboardID),
				zap.String("row_id", row.ID))
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func findDashboard(all []models.Dashboard, id string) (models.Dashboard, bool) {
	for _, d := range all {
		if d.ID == id {
			return d, true
		}
	}
	return models.Dashboard{}, false
}

// GroupUsers returns the members of groupID. A member whose user record
// cannot be fetched fails the whole call.
func (r *Resolver) GroupUsers(ctx context.Context, groupID string) ([]models.GroupMember, error) {
	rows, err := r.assoc.GroupUsersByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	out := make([]models.GroupMember, 0, len(rows))
	for _, row := range rows {
		u, err := r.users.Get(ctx, row.UserID)
		if err != nil {
			return nil, fmt.Errorf("group %s member %s: %w", groupID, row.UserID, err)
		}
		out = append(out, models.GroupMember{
			ID:       row.ID,
			UserID:   u.ID,
			Username: u.Username,
			Email:    u.Email,
			Role:     u.Role,
			Active:   u.Active,
			Created:  u.Created,
			Updated:  u.Updated,
		})
	}
	return out, nil
}

// UserGroups returns the groups userID belongs to. Rows referencing a group
// that no longer exists are skipped; any other failure is returned.
func (r *Resolver) UserGroups(ctx context.Context, userID string) (*models.UserGroups, error) {
	rows, err := r.assoc.GroupUsersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := []models.Group{}
	for _, row := range rows {
		g, err := r.groups.Get(ctx, row.GroupID)
		if apperrors.IsNotFound(err) || (err == nil && g.ID == "") {
			r.logger.Debug("skipping membership of missing group",
				zap.String("user_id", userID),
				zap.String("group_id", row.GroupID))
			continue
		}
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	return &models.UserGroups{Groups: groups, Total: len(groups)}, nil
}

// UserVisibleDashboards returns the dashboards reachable through any of the
// user's groups, each once, in the BI platform's list order. The BI list is
// fetched once and only when the user has at least one group.
func (r *Resolver) UserVisibleDashboards(ctx context.Context, userID string) ([]models.Dashboard, error) {
	ug, err := r.UserGroups(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ug.Groups) == 0 {
		return []models.Dashboard{}, nil
	}
	all, err := r.bi.ListDashboards(ctx)
	if err != nil {
		return nil, err
	}

	perGroup := make([][]models.Dashboard, len(ug.Groups))
	p := pool.New().
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError().
		WithMaxGoroutines(r.opts.MaxGoroutines)
	for i, g := range ug.Groups {
		p.Go(func(ctx context.Context) error {
			ds, err := r.GroupDashboards(ctx, g.ID, all)
			if err != nil {
				return err
			}
			perGroup[i] = ds
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}

	visible := make(map[string]struct{})
	for _, ds := range perGroup {
		for _, d := range ds {
			visible[d.ID] = struct{}{}
		}
	}
	out := []models.Dashboard{}
	for _, d := range all {
		if _, ok := visible[d.ID]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

// DashboardPipeline returns the pipeline association of dashboardID. When
// duplicates exist the first row wins.
func (r *Resolver) DashboardPipeline(ctx context.Context, dashboardID string) (*models.PipelineDashboard, error) {
	rows, err := r.assoc.PipelineDashboardsByDashboard(ctx, dashboardID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &apperrors.Error{
			Kind: apperrors.KindNotFound,
			Msg:  "No pipeline found for this dashboard",
			Detail: map[string]string{
				"message":      "No pipeline found for this dashboard",
				"dashboard_id": dashboardID,
			},
		}
	}
	return &rows[0], nil
}

// PipelineDashboards returns every association row of pipelineID.
func (r *Resolver) PipelineDashboards(ctx context.Context, pipelineID string) ([]models.PipelineDashboard, error) {
	return r.assoc.PipelineDashboardsByPipeline(ctx, pipelineID)
}

// PipelineAssociations returns every pipeline-dashboard row.
func (r *Resolver) PipelineAssociations(ctx context.Context) ([]models.PipelineDashboard, error) {
	return r.assoc.PipelineDashboards(ctx)
}

// AddAssociation writes a join row relating a and b. With unique
// associations enabled an existing row for the pair is returned instead and
// created is false.
func (r *Resolver) AddAssociation(ctx context.Context, kind models.AssociationKind, a, b string) (row *models.Association, created bool, err error) {
	if !kind.Valid() {
		return nil, false, apperrors.Validation(fmt.Sprintf("unknown association kind %q", kind))
	}
	if a == "" || b == "" {
		return nil, false, apperrors.Validation("both ids of an association are required")
	}
	if r.opts.UniqueAssociations {
		existing, err := r.assoc.Find(ctx, kind, a, b)
		if err != nil {
			return nil, false, err
		}
		if len(existing) > 0 {
			return &existing[0], false, nil
		}
	}
	row, err = r.assoc.Create(ctx, kind, a, b)
	if err != nil {
		return nil, false, err
	}
	return row, true, nil
}

// RemoveAssociation deletes the first join row relating a and b and returns
// it. Only one row is removed even when duplicates exist. No matching row is
// a NotFound error. For pipeline-dashboard rows a may be empty, in which case
// the row is found by dashboard id alone.
func (r *Resolver) RemoveAssociation(ctx context.Context, kind models.AssociationKind, a, b string) (*models.Association, error) {
	if !kind.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("unknown association kind %q", kind))
	}
	if b == "" || (a == "" && kind != models.KindPipelineDashboard) {
		return nil, apperrors.Validation("both ids of an association are required")
	}
	rows, err := r.assoc.Find(ctx, kind, a, b)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound(notFoundMessage(kind))
	}
	if err := r.assoc.Delete(ctx, kind, rows[0].ID); err != nil {
		return nil, err
	}
	if len(rows) > 1 {
		r.logger.InfoWithContext(ctx, "duplicate association rows remain",
			zap.String("kind", string(kind)),
			zap.String("left", a),
			zap.String("right", b),
			zap.Int("remaining", len(rows)-1))
	}
	return &rows[0], nil
}

func notFoundMessage(kind models.AssociationKind) string {
	switch kind {
	case models.KindGroupUser:
		return "User not found in this group"
	case models.KindGroupDashboard:
		return "Dashboard not found in this group"
	default:
		return "No pipeline associated with this dashboard"
	}
}
