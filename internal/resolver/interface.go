//go:generate mockgen -source interface.go -destination ../mocks/mock_dashboard_lister.go -package mocks DashboardLister

package resolver

import (
	"context"

	"hopperGateway/models"
)

// DashboardLister returns every dashboard known to the BI platform.
type DashboardLister interface {
	ListDashboards(ctx context.Context) ([]models.Dashboard, error)
}
