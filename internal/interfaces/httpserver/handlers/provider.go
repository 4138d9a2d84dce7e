package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/assignment"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/message"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/realtime"
	"github.com/deskline/queue-api/internal/domain/sla"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/infrastructure/auth"
)

// Assigner is the assignment surface the handlers call.
type Assigner interface {
	ClaimFor(ctx context.Context, caller tenant.Caller, conversationID, agentID string) (bool, error)
	AttendNext(ctx context.Context, caller tenant.Caller, opts assignment.Options) (*assignment.Attempt, error)
	Transfer(ctx context.Context, caller tenant.Caller, conversationID, toAgentID string) (bool, error)
	Pause(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	Resume(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	Finish(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	HeldBy(ctx context.Context, caller tenant.Caller, agentID string) ([]*conversation.Conversation, error)
}

// Intake receives inbound messages and replies.
type Intake interface {
	Receive(ctx context.Context, caller tenant.Caller, in intake.InboundMessage) (*intake.Result, error)
	Reply(ctx context.Context, caller tenant.Caller, conversationID string, sender message.SenderType, body string) (*message.Message, error)
	Transcript(ctx context.Context, caller tenant.Caller, conversationID string, limit int) ([]*message.Message, error)
}

// QueueViewer reads the caller's ordered queue.
type QueueViewer interface {
	ViewFor(ctx context.Context, caller tenant.Caller, filter queue.Filter) (queue.Result, error)
}

// AgentDirectory manages agent profiles.
type AgentDirectory interface {
	Register(ctx context.Context, caller tenant.Caller, a *agent.Agent) error
	List(ctx context.Context, caller tenant.Caller, filter agent.ListFilter) ([]*agent.Agent, error)
	SetStatus(ctx context.Context, caller tenant.Caller, agentID string, status agent.Status) (bool, error)
}

// SLAReporter computes the organization's SLA report.
type SLAReporter interface {
	ReportFor(ctx context.Context, caller tenant.Caller) (sla.Report, error)
}

// Watcher starts a dashboard watcher for a connected caller.
type Watcher interface {
	Watch(ctx context.Context, caller tenant.Caller, filter queue.Filter) (*realtime.QueueWatcher, error)
}

// Provider holds all HTTP handlers.
type Provider struct {
	Conversation *ConversationHandler
	Queue        *QueueHandler
	Agent        *AgentHandler
	SLA          *SLAHandler
	Stream       *StreamHandler
}

// NewProvider constructs every handler from the domain services.
func NewProvider(
	assigner Assigner,
	intakeService Intake,
	viewer QueueViewer,
	agents AgentDirectory,
	reporter SLAReporter,
	watcher Watcher,
	log zerolog.Logger,
) *Provider {
	return &Provider{
		Conversation: NewConversationHandler(assigner, intakeService, log),
		Queue:        NewQueueHandler(viewer, assigner, log),
		Agent:        NewAgentHandler(agents, assigner, log),
		SLA:          NewSLAHandler(reporter, log),
		Stream:       NewStreamHandler(watcher, log),
	}
}

// HandlerProvider provides all handlers for wire.
var HandlerProvider = wire.NewSet(
	wire.Bind(new(Assigner), new(*assignment.Coordinator)),
	wire.Bind(new(Intake), new(*intake.Service)),
	wire.Bind(new(QueueViewer), new(*queue.Service)),
	wire.Bind(new(AgentDirectory), new(*agent.Service)),
	wire.Bind(new(SLAReporter), new(*sla.Service)),
	wire.Bind(new(Watcher), new(*realtime.Streams)),
	NewProvider,
)

func callerFrom(c *gin.Context) tenant.Caller {
	caller, _ := auth.CallerFrom(c)
	return caller
}
