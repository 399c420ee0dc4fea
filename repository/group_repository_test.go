package repository

import (
	"context"
	"testing"

	"hopperGateway/internal/apperrors"
	"hopperGateway/internal/testutil"
	"hopperGateway/models"
)

func TestGroupRepository_CRUD(t *testing.T) {
	repo := NewGroupRepository(testutil.NewStore(t, "grouprepo"))
	ctx := context.Background()

	if _, err := repo.Create(ctx, models.GroupInput{Name: "  "}); !apperrors.IsValidation(err) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}

	g, err := repo.Create(ctx, models.GroupInput{Name: "ops", Description: "operators", Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if g.ID == "" || g.Name != "ops" || !g.Active || g.Created == "" {
		t.Fatalf("unexpected group: %+v", g)
	}

	desc := "platform team"
	upd, err := repo.Update(ctx, g.ID, models.GroupUpdate{Description: &desc})
	if err != nil || upd.Description != desc || upd.Name != "ops" {
		t.Fatalf("update: %v %+v", err, upd)
	}

	page, err := repo.List(ctx, 0, 0)
	if err != nil || page.Page != 1 || len(page.Items) != 1 {
		t.Fatalf("list: %v %+v", err, page)
	}

	if err := repo.Delete(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, g.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}
