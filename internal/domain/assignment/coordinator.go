// Package assignment moves conversations between agents. Every transition
// is a single guarded store update; the coordinator adds caller checks,
// the attend-next retry loop and instrumentation on top.
package assignment

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

const (
	DefaultMaxAttempts = 5

	tracerName = "deskline/queue-api/assignment"
)

// Claim outcomes reported to the Recorder.
const (
	OutcomeWon   = "won"
	OutcomeLost  = "lost"
	OutcomeError = "error"
)

// Viewer reads the caller's ordered queue.
type Viewer interface {
	ViewFor(ctx context.Context, caller tenant.Caller, filter queue.Filter) (queue.Result, error)
}

// Recorder receives assignment metrics.
type Recorder interface {
	RecordClaim(operation, outcome string)
	RecordAttendNext(tries int)
}

type nopRecorder struct{}

func (nopRecorder) RecordClaim(string, string) {}
func (nopRecorder) RecordAttendNext(int)       {}

// Options narrows attend-next to one queue.
type Options struct {
	QueueID *string
	// Team restricts the candidates to work the team may take, see
	// queue.Filter.
	Team *string
}

// Coordinator implements claim, attend-next, transfer, pause, resume and
// finish for callers of one organization at a time.
type Coordinator struct {
	conversations conversation.Repository
	viewer        Viewer
	maxAttempts   int
	recorder      Recorder
	tracer        trace.Tracer
	log           zerolog.Logger
}

// NewCoordinator constructs a coordinator. A nil recorder disables metrics.
func NewCoordinator(conversations conversation.Repository, viewer Viewer, maxAttempts int, recorder Recorder, log zerolog.Logger) *Coordinator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Coordinator{
		conversations: conversations,
		viewer:        viewer,
		maxAttempts:   maxAttempts,
		recorder:      recorder,
		tracer:        otel.Tracer(tracerName),
		log:           log.With().Str("component", "assignment-coordinator").Logger(),
	}
}

// Claim assigns a waiting conversation to the caller. It returns true only
// when this call performed the waiting to active transition.
func (c *Coordinator) Claim(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	return c.ClaimFor(ctx, caller, conversationID, caller.AgentID)
}

// ClaimFor assigns a waiting conversation to agentID. Only admins, managers
// and system callers may name an agent other than themselves.
func (c *Coordinator) ClaimFor(ctx context.Context, caller tenant.Caller, conversationID, agentID string) (bool, error) {
	if err := caller.Validate(ctx); err != nil {
		return false, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"agent id is required", nil, "assign-agent-required")
	}
	if agentID != caller.AgentID && !caller.CanActForOthers() {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"agents may only assign conversations to themselves", nil, "assign-other-agent")
	}

	return c.claim(ctx, caller.OrganizationID, conversationID, agentID, "claim")
}

func (c *Coordinator) claim(ctx context.Context, orgID, conversationID, agentID, operation string) (bool, error) {
	ctx, span := c.startSpan(ctx, operation, orgID, conversationID, agentID)
	defer span.End()

	// A claim is one store statement; the caller giving up must not leave
	// its outcome unknown.
	ok, err := c.conversations.TryClaim(context.WithoutCancel(ctx), orgID, conversationID, agentID)
	c.finishSpan(span, operation, ok, err)
	return ok, err
}

// AttendNext claims the head of the caller's queue. When another agent wins
// the head first it re-reads and tries the new head, up to the configured
// number of attempts.
func (c *Coordinator) AttendNext(ctx context.Context, caller tenant.Caller, opts Options) (*Attempt, error) {
	attempt := newAttempt()
	if err := caller.Validate(ctx); err != nil {
		return attempt.failed(err), err
	}
	if strings.TrimSpace(caller.AgentID) == "" {
		err := platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"attend next requires an agent", nil, "attend-next-agent")
		return attempt.failed(err), err
	}

	ctx, span := c.tracer.Start(ctx, "assignment.attend_next",
		trace.WithAttributes(
			attribute.String("tenant.organization_id", caller.OrganizationID),
			attribute.String("agent.id", caller.AgentID),
		),
	)
	defer span.End()
	defer func() {
		c.recorder.RecordAttendNext(attempt.Tries)
		span.SetAttributes(
			attribute.String("attempt.state", string(attempt.State)),
			attribute.String("attempt.reason", string(attempt.Reason)),
			attribute.Int("attempt.tries", attempt.Tries),
		)
	}()

	filter := queue.Filter{QueueID: opts.QueueID, Team: opts.Team}
	for attempt.Tries < c.maxAttempts {
		if err := ctx.Err(); err != nil {
			return attempt.failed(err), err
		}
		attempt.begin()

		view, err := c.viewer.ViewFor(ctx, caller, filter)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return attempt.failed(err), err
		}

		head, ok := view.Head()
		if !ok {
			if attempt.Tries == 1 {
				return attempt.unavailable(ReasonNothingWaiting), nil
			}
			return attempt.unavailable(ReasonTaken), nil
		}

		won, err := c.claim(ctx, caller.OrganizationID, head.ID, caller.AgentID, "attend_next")
		if err != nil {
			return attempt.failed(err), err
		}
		if won {
			return attempt.claimed(c.claimedCopy(ctx, caller.OrganizationID, head, caller.AgentID)), nil
		}

		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("retry.attempt", attempt.Tries),
			attribute.String("retry.lost_conversation", head.ID),
		))
		c.log.Debug().
			Str("organization_id", caller.OrganizationID).
			Str("agent_id", caller.AgentID).
			Str("conversation_id", head.ID).
			Int("try", attempt.Tries).
			Msg("lost claim race, re-reading queue")
	}

	return attempt.unavailable(ReasonTaken), nil
}

// claimedCopy re-reads the conversation after a won claim. If the read
// fails the snapshot row is patched instead; the claim itself stands.
func (c *Coordinator) claimedCopy(ctx context.Context, orgID string, head *conversation.Conversation, agentID string) *conversation.Conversation {
	fresh, err := c.conversations.Get(context.WithoutCancel(ctx), orgID, head.ID)
	if err == nil {
		return fresh
	}
	c.log.Warn().Err(err).Str("conversation_id", head.ID).Msg("re-read after claim failed")
	patched := *head
	patched.Status = conversation.StatusActive
	patched.AssignedAgentID = &agentID
	return &patched
}

// Transfer moves a held conversation to another agent without passing
// through waiting. Agents transfer from themselves; managers and admins
// transfer from whoever currently holds it.
func (c *Coordinator) Transfer(ctx context.Context, caller tenant.Caller, conversationID, toAgentID string) (bool, error) {
	if err := caller.Validate(ctx); err != nil {
		return false, err
	}
	toAgentID = strings.TrimSpace(toAgentID)
	if toAgentID == "" {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"target agent is required", nil, "transfer-target-required")
	}

	from := caller.AgentID
	if caller.CanActForOthers() {
		current, err := c.conversations.Get(ctx, caller.OrganizationID, conversationID)
		if err != nil {
			return false, err
		}
		if current.AssignedAgentID == nil || !current.Status.IsHeld() {
			c.recorder.RecordClaim("transfer", OutcomeLost)
			return false, nil
		}
		// Used only as the expected holder; the update re-checks it.
		from = *current.AssignedAgentID
	}
	if strings.TrimSpace(from) == "" {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"transfer requires the current agent", nil, "transfer-from-required")
	}
	if from == toAgentID {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			"conversation is already assigned to that agent", nil, "transfer-same-agent")
	}

	ctx, span := c.startSpan(ctx, "transfer", caller.OrganizationID, conversationID, toAgentID)
	defer span.End()
	span.SetAttributes(attribute.String("transfer.from", from))

	ok, err := c.conversations.Transfer(context.WithoutCancel(ctx), caller.OrganizationID, conversationID, from, toAgentID)
	c.finishSpan(span, "transfer", ok, err)
	return ok, err
}

// Pause parks a conversation the caller holds.
func (c *Coordinator) Pause(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	return c.ownerTransition(ctx, caller, conversationID, "pause", c.conversations.Pause)
}

// Resume reactivates a conversation the caller paused.
func (c *Coordinator) Resume(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	return c.ownerTransition(ctx, caller, conversationID, "resume", c.conversations.Resume)
}

type ownerUpdate func(ctx context.Context, orgID, conversationID, agentID string) (bool, error)

func (c *Coordinator) ownerTransition(ctx context.Context, caller tenant.Caller, conversationID, operation string, update ownerUpdate) (bool, error) {
	if err := caller.Validate(ctx); err != nil {
		return false, err
	}
	if strings.TrimSpace(caller.AgentID) == "" {
		return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation,
			operation+" requires the holding agent", nil, operation+"-agent-required")
	}

	ctx, span := c.startSpan(ctx, operation, caller.OrganizationID, conversationID, caller.AgentID)
	defer span.End()

	ok, err := update(context.WithoutCancel(ctx), caller.OrganizationID, conversationID, caller.AgentID)
	c.finishSpan(span, operation, ok, err)
	return ok, err
}

// Finish closes a held conversation. A second call returns false.
func (c *Coordinator) Finish(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	if err := caller.Validate(ctx); err != nil {
		return false, err
	}

	ctx, span := c.startSpan(ctx, "finish", caller.OrganizationID, conversationID, caller.AgentID)
	defer span.End()

	ok, err := c.conversations.Finish(context.WithoutCancel(ctx), caller.OrganizationID, conversationID)
	c.finishSpan(span, "finish", ok, err)
	return ok, err
}

// HeldBy lists the conversations agentID currently holds. Agents may only
// list their own.
func (c *Coordinator) HeldBy(ctx context.Context, caller tenant.Caller, agentID string) ([]*conversation.Conversation, error) {
	if err := caller.Validate(ctx); err != nil {
		return nil, err
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		agentID = caller.AgentID
	}
	if agentID != caller.AgentID && !caller.CanActForOthers() {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeForbidden,
			"agents may only list their own conversations", nil, "held-other-agent")
	}
	return c.conversations.ListHeld(ctx, caller.OrganizationID, &agentID)
}

func (c *Coordinator) startSpan(ctx context.Context, operation, orgID, conversationID, agentID string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, "assignment."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tenant.organization_id", orgID),
			attribute.String("conversation.id", conversationID),
			attribute.String("agent.id", agentID),
		),
	)
}

func (c *Coordinator) finishSpan(span trace.Span, operation string, ok bool, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.recorder.RecordClaim(operation, OutcomeError)
	case ok:
		span.SetAttributes(attribute.Bool("assignment.applied", true))
		c.recorder.RecordClaim(operation, OutcomeWon)
	default:
		span.SetAttributes(attribute.Bool("assignment.applied", false))
		c.recorder.RecordClaim(operation, OutcomeLost)
	}
}
