package entities

import (
	"time"

	"gorm.io/datatypes"

	"github.com/deskline/queue-api/internal/domain/conversation"
)

// Conversation represents the database schema for conversations.
// ID doubles as the insertion sequence used to break queue ordering ties.
type Conversation struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	PublicID        string              `gorm:"type:varchar(64);uniqueIndex;not null"`
	OrganizationID  string              `gorm:"type:varchar(64);not null;index:idx_conversation_org_status,priority:1;uniqueIndex:idx_conversation_open_contact,priority:1,where:status <> 'finished'"`
	QueueID         *string             `gorm:"type:varchar(64);index"`
	ContactID       string              `gorm:"type:varchar(128);not null;uniqueIndex:idx_conversation_open_contact,priority:2"`
	ChannelType     string              `gorm:"type:varchar(32);not null;uniqueIndex:idx_conversation_open_contact,priority:3"`
	Status          conversation.Status `gorm:"type:varchar(20);not null;default:'waiting';index:idx_conversation_org_status,priority:2"`
	Priority        int                 `gorm:"not null;default:0"`
	AssignedAgentID *string             `gorm:"type:varchar(64);index"`
	StartedAt       time.Time           `gorm:"not null"`
	AssignedAt      *time.Time
	FinishedAt      *time.Time
	Metadata        datatypes.JSONMap
}

// TableName specifies the table name for Conversation.
func (Conversation) TableName() string {
	return "conversations"
}

// ToDomain maps the row to the domain model.
func (e *Conversation) ToDomain() *conversation.Conversation {
	c := &conversation.Conversation{
		ID:              e.PublicID,
		Sequence:        e.ID,
		OrganizationID:  e.OrganizationID,
		QueueID:         e.QueueID,
		ContactID:       e.ContactID,
		ChannelType:     e.ChannelType,
		Status:          e.Status,
		Priority:        e.Priority,
		AssignedAgentID: e.AssignedAgentID,
		StartedAt:       e.StartedAt.UTC(),
		AssignedAt:      utcPtr(e.AssignedAt),
		FinishedAt:      utcPtr(e.FinishedAt),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
	if len(e.Metadata) > 0 {
		c.Metadata = map[string]any(e.Metadata)
	}
	return c
}

// NewConversation maps a domain conversation to a row.
func NewConversation(c *conversation.Conversation) *Conversation {
	e := &Conversation{
		PublicID:        c.ID,
		OrganizationID:  c.OrganizationID,
		QueueID:         c.QueueID,
		ContactID:       c.ContactID,
		ChannelType:     c.ChannelType,
		Status:          c.Status,
		Priority:        c.Priority,
		AssignedAgentID: c.AssignedAgentID,
		StartedAt:       c.StartedAt.UTC(),
		AssignedAt:      c.AssignedAt,
		FinishedAt:      c.FinishedAt,
	}
	if len(c.Metadata) > 0 {
		e.Metadata = datatypes.JSONMap(c.Metadata)
	}
	return e
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
