package messagerepo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/infrastructure/database/entities"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

const defaultListLimit = 200

// GormRepository persists conversation messages.
type GormRepository struct {
	db *gorm.DB
}

var _ message.Repository = (*GormRepository)(nil)

// NewGormRepository constructs the repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Append stores a message. The conversation must belong to the message's
// organization; the check and the insert share one statement.
func (r *GormRepository) Append(ctx context.Context, m *message.Message) error {
	if m == nil || strings.TrimSpace(m.OrganizationID) == "" || strings.TrimSpace(m.ConversationID) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"organization and conversation are required", nil, "msg-append-invalid")
	}
	if strings.TrimSpace(m.Body) == "" {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"message body is empty", nil, "msg-append-empty")
	}
	if !m.SenderType.IsValid() {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation,
			"unknown sender type", nil, "msg-append-sender")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now().UTC()

	res := r.db.WithContext(ctx).Exec(
		`INSERT INTO messages (created_at, public_id, organization_id, conversation_id, sender_type, sender_id, body)
		 SELECT ?, ?, ?, ?, ?, ?, ?
		 WHERE EXISTS (SELECT 1 FROM conversations c WHERE c.public_id = ? AND c.organization_id = ?)`,
		m.CreatedAt, m.ID, m.OrganizationID, m.ConversationID, m.SenderType, m.SenderID, m.Body,
		m.ConversationID, m.OrganizationID,
	)
	if res.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to append message", res.Error, "msg-append-db")
	}
	if res.RowsAffected == 0 {
		return r.missingConversation(ctx, m.OrganizationID, m.ConversationID)
	}
	return nil
}

// ListByConversation returns a conversation's messages oldest first.
func (r *GormRepository) ListByConversation(ctx context.Context, orgID, conversationID string, limit int) ([]*message.Message, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}

	var rows []entities.Message
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND conversation_id = ?", orgID, conversationID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to list messages", err, "msg-list-db")
	}
	if len(rows) == 0 {
		// Empty could mean a foreign conversation; make that loud.
		if err := r.checkConversation(ctx, orgID, conversationID); err != nil {
			return nil, err
		}
	}

	result := make([]*message.Message, 0, len(rows))
	for i := range rows {
		result = append(result, rows[i].ToDomain())
	}
	return result, nil
}

func (r *GormRepository) checkConversation(ctx context.Context, orgID, conversationID string) error {
	var rows []entities.Conversation
	if err := r.db.WithContext(ctx).Select("organization_id").Where("public_id = ?", conversationID).Limit(1).Find(&rows).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError,
			"failed to load conversation", err, "msg-conv-db")
	}
	if len(rows) == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound,
			"conversation not found", nil, "msg-conv-notfound")
	}
	if rows[0].OrganizationID != orgID {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeForbidden,
			"conversation belongs to another organization", nil, "msg-conv-tenant")
	}
	return nil
}

func (r *GormRepository) missingConversation(ctx context.Context, orgID, conversationID string) error {
	if err := r.checkConversation(ctx, orgID, conversationID); err != nil {
		return err
	}
	return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeConflict,
		"message was not stored", nil, "msg-append-conflict")
}
