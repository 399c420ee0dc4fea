package repository

import (
	"context"
	"testing"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/testutil"
	"hopperGateway/models"
)

func TestAssociationRepository_CreateFindDelete(t *testing.T) {
	repo := NewAssociationRepository(testutil.NewStore(t, "assocrepo"))
	ctx := context.Background()

	a, err := repo.Create(ctx, models.KindGroupUser, "g1", "u1")
	if err != nil || a.ID == "" || a.Left != "g1" || a.Right != "u1" {
		t.Fatalf("create: %v %+v", err, a)
	}
	if _, err := repo.Create(ctx, models.KindGroupUser, "g1", "u1"); err != nil {
		t.Fatalf("duplicate create is allowed at this layer: %v", err)
	}
	if _, err := repo.Create(ctx, models.KindGroupUser, "g2", "u1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	rows, err := repo.Find(ctx, models.KindGroupUser, "g1", "u1")
	if err != nil || len(rows) != 2 || rows[0].ID != a.ID {
		t.Fatalf("find pair: %v %+v", err, rows)
	}
	byUser, err := repo.GroupUsersByUser(ctx, "u1")
	if err != nil || len(byUser) != 3 {
		t.Fatalf("by user: %v %+v", err, byUser)
	}
	byGroup, err := repo.GroupUsersByGroup(ctx, "g2")
	if err != nil || len(byGroup) != 1 || byGroup[0].UserID != "u1" {
		t.Fatalf("by group: %v %+v", err, byGroup)
	}

	if err := repo.Delete(ctx, models.KindGroupUser, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, models.KindGroupUser, a.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssociationRepository_KindsAreSeparateCollections(t *testing.T) {
	repo := NewAssociationRepository(testutil.NewStore(t, "assockinds"))
	ctx := context.Background()

	if _, err := repo.Create(ctx, models.KindGroupDashboard, "g1", "d1"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, models.KindPipelineDashboard, "p1", "d1"); err != nil {
		t.Fatalf("create: %v", err)
	}

	gd, err := repo.GroupDashboardsByGroup(ctx, "g1")
	if err != nil || len(gd) != 1 || gd[0].DashboardID != "d1" {
		t.Fatalf("group dashboards: %v %+v", err, gd)
	}
	pd, err := repo.PipelineDashboardsByDashboard(ctx, "d1")
	if err != nil || len(pd) != 1 || pd[0].PipelineID != "p1" {
		t.Fatalf("pipeline by dashboard: %v %+v", err, pd)
	}
	pp, err := repo.PipelineDashboardsByPipeline(ctx, "p1")
	if err != nil || len(pp) != 1 {
		t.Fatalf("pipeline by pipeline: %v %+v", err, pp)
	}
	all, err := repo.PipelineDashboards(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("all pipeline rows: %v %+v", err, all)
	}

	if _, err := repo.Find(ctx, models.AssociationKind("bogus"), "a", "b"); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for unknown kind, got %v", err)
	}
}
