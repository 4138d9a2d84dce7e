package tenant

import (
	"context"
	"time"
)

// Organization is the isolation boundary for all queue data.
type Organization struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Team groups agents and queues inside an organization.
type Team struct {
	ID             string
	OrganizationID string
	Name           string
}

// Directory lists organizations and teams. Background loops use it to walk
// tenants; request paths never do.
type Directory interface {
	CreateOrganization(ctx context.Context, org *Organization) error
	ListOrganizations(ctx context.Context) ([]*Organization, error)
	CreateTeam(ctx context.Context, team *Team) error
	ListTeams(ctx context.Context, orgID string) ([]*Team, error)
}
