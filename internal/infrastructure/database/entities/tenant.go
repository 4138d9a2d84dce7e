package entities

import (
	"time"

	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// Organization represents the database schema for tenants.
type Organization struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID string `gorm:"type:varchar(64);uniqueIndex;not null"`
	Name     string `gorm:"type:varchar(128);not null"`
}

// TableName specifies the table name for Organization.
func (Organization) TableName() string {
	return "organizations"
}

// ToDomain maps the row to the domain model.
func (e *Organization) ToDomain() *tenant.Organization {
	return &tenant.Organization{ID: e.PublicID, Name: e.Name, CreatedAt: e.CreatedAt}
}

// Team represents the database schema for teams.
type Team struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID       string `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrganizationID string `gorm:"type:varchar(64);not null;index"`
	Name           string `gorm:"type:varchar(128);not null"`
}

// TableName specifies the table name for Team.
func (Team) TableName() string {
	return "teams"
}

// ToDomain maps the row to the domain model.
func (e *Team) ToDomain() *tenant.Team {
	return &tenant.Team{ID: e.PublicID, OrganizationID: e.OrganizationID, Name: e.Name}
}

// Queue represents the database schema for queues.
type Queue struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	PublicID       string  `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrganizationID string  `gorm:"type:varchar(64);not null;index"`
	TeamID         *string `gorm:"type:varchar(64)"`
	Name           string  `gorm:"type:varchar(128);not null"`
}

// TableName specifies the table name for Queue.
func (Queue) TableName() string {
	return "queues"
}

// ToDomain maps the row to the domain model.
func (e *Queue) ToDomain() *queue.Queue {
	return &queue.Queue{
		ID:             e.PublicID,
		OrganizationID: e.OrganizationID,
		TeamID:         e.TeamID,
		Name:           e.Name,
		CreatedAt:      e.CreatedAt,
	}
}

// All lists every entity managed by the service, in dependency order.
func All() []any {
	return []any{
		&Organization{},
		&Team{},
		&Queue{},
		&AgentProfile{},
		&Conversation{},
		&Message{},
	}
}
