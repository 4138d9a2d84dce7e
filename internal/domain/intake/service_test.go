package intake_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/database/dbtest"
	"github.com/deskline/queue-api/internal/infrastructure/repository/conversationrepo"
	"github.com/deskline/queue-api/internal/infrastructure/repository/messagerepo"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

func TestReceiveOpensOnceAndAppends(t *testing.T) {
	db := dbtest.Open(t)
	svc := intake.NewService(conversationrepo.NewGormRepository(db), messagerepo.NewGormRepository(db), zerolog.Nop())
	ctx := context.Background()
	system := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleSystem}

	first, err := svc.Receive(ctx, system, intake.InboundMessage{
		ContactID: "+15550100", ChannelType: "whatsapp", Priority: 6, Body: "my order is late",
		Metadata: map[string]any{"order": "A-17"},
	})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, conversation.StatusWaiting, first.Conversation.Status)
	assert.Equal(t, conversation.BandHigh, first.Conversation.Band())

	second, err := svc.Receive(ctx, system, intake.InboundMessage{
		ContactID: "+15550100", ChannelType: "whatsapp", Body: "hello?",
	})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Conversation.ID, second.Conversation.ID)

	agent := tenant.Caller{OrganizationID: "org-1", AgentID: "alice", Role: tenant.RoleAgent}
	_, err = svc.Reply(ctx, agent, first.Conversation.ID, "", "on it")
	require.NoError(t, err)

	transcript, err := svc.Transcript(ctx, agent, first.Conversation.ID, 0)
	require.NoError(t, err)
	require.Len(t, transcript, 3)
	assert.Equal(t, message.SenderCustomer, transcript[0].SenderType)
	assert.Equal(t, message.SenderAgent, transcript[2].SenderType)
	assert.Equal(t, "alice", transcript[2].SenderID)
}

func TestReceiveValidation(t *testing.T) {
	db := dbtest.Open(t)
	svc := intake.NewService(conversationrepo.NewGormRepository(db), messagerepo.NewGormRepository(db), zerolog.Nop())
	system := tenant.Caller{OrganizationID: "org-1", Role: tenant.RoleSystem}

	_, err := svc.Receive(context.Background(), system, intake.InboundMessage{ChannelType: "email", Body: "x"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = svc.Receive(context.Background(), system, intake.InboundMessage{ContactID: "c", ChannelType: "email"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeValidation))

	_, err = svc.Receive(context.Background(), tenant.Caller{Role: tenant.RoleSystem}, intake.InboundMessage{ContactID: "c", ChannelType: "email", Body: "x"})
	assert.True(t, platformerrors.IsErrorType(err, platformerrors.ErrorTypeUnauthorized))
}
