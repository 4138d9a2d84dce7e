package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	"github.com/deskline/queue-api/internal/interfaces/httpserver/handlers"
	v1 "github.com/deskline/queue-api/internal/interfaces/httpserver/routes/v1"
	"github.com/deskline/queue-api/internal/utils/platformerrors"
)

// MockAssigner implements handlers.Assigner with overridable funcs.
type MockAssigner struct {
	ClaimForFunc   func(ctx context.Context, caller tenant.Caller, conversationID, agentID string) (bool, error)
	AttendNextFunc func(ctx context.Context, caller tenant.Caller, opts assignment.Options) (*assignment.Attempt, error)
	TransferFunc   func(ctx context.Context, caller tenant.Caller, conversationID, toAgentID string) (bool, error)
	PauseFunc      func(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	ResumeFunc     func(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	FinishFunc     func(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error)
	HeldByFunc     func(ctx context.Context, caller tenant.Caller, agentID string) ([]*conversation.Conversation, error)
}

func (m *MockAssigner) ClaimFor(ctx context.Context, caller tenant.Caller, conversationID, agentID string) (bool, error) {
	if m.ClaimForFunc != nil {
		return m.ClaimForFunc(ctx, caller, conversationID, agentID)
	}
	return false, nil
}

func (m *MockAssigner) AttendNext(ctx context.Context, caller tenant.Caller, opts assignment.Options) (*assignment.Attempt, error) {
	if m.AttendNextFunc != nil {
		return m.AttendNextFunc(ctx, caller, opts)
	}
	return &assignment.Attempt{State: assignment.StateUnavailable}, nil
}

func (m *MockAssigner) Transfer(ctx context.Context, caller tenant.Caller, conversationID, toAgentID string) (bool, error) {
	if m.TransferFunc != nil {
		return m.TransferFunc(ctx, caller, conversationID, toAgentID)
	}
	return false, nil
}

func (m *MockAssigner) Pause(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	if m.PauseFunc != nil {
		return m.PauseFunc(ctx, caller, conversationID)
	}
	return false, nil
}

func (m *MockAssigner) Resume(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	if m.ResumeFunc != nil {
		return m.ResumeFunc(ctx, caller, conversationID)
	}
	return false, nil
}

func (m *MockAssigner) Finish(ctx context.Context, caller tenant.Caller, conversationID string) (bool, error) {
	if m.FinishFunc != nil {
		return m.FinishFunc(ctx, caller, conversationID)
	}
	return false, nil
}

func (m *MockAssigner) HeldBy(ctx context.Context, caller tenant.Caller, agentID string) ([]*conversation.Conversation, error) {
	if m.HeldByFunc != nil {
		return m.HeldByFunc(ctx, caller, agentID)
	}
	return nil, nil
}

// MockIntake implements handlers.Intake.
type MockIntake struct {
	ReceiveFunc    func(ctx context.Context, caller tenant.Caller, in intake.InboundMessage) (*intake.Result, error)
	ReplyFunc      func(ctx context.Context, caller tenant.Caller, conversationID string, sender message.SenderType, body string) (*message.Message, error)
	TranscriptFunc func(ctx context.Context, caller tenant.Caller, conversationID string, limit int) ([]*message.Message, error)
}

func (m *MockIntake) Receive(ctx context.Context, caller tenant.Caller, in intake.InboundMessage) (*intake.Result, error) {
	return m.ReceiveFunc(ctx, caller, in)
}

func (m *MockIntake) Reply(ctx context.Context, caller tenant.Caller, conversationID string, sender message.SenderType, body string) (*message.Message, error) {
	return m.ReplyFunc(ctx, caller, conversationID, sender, body)
}

func (m *MockIntake) Transcript(ctx context.Context, caller tenant.Caller, conversationID string, limit int) ([]*message.Message, error) {
	return m.TranscriptFunc(ctx, caller, conversationID, limit)
}

// MockViewer implements handlers.QueueViewer.
type MockViewer struct {
	ViewForFunc func(ctx context.Context, caller tenant.Caller, filter queue.Filter) (queue.Result, error)
}

func (m *MockViewer) ViewFor(ctx context.Context, caller tenant.Caller, filter queue.Filter) (queue.Result, error) {
	return m.ViewForFunc(ctx, caller, filter)
}

// MockAgents implements handlers.AgentDirectory.
type MockAgents struct {
	RegisterFunc  func(ctx context.Context, caller tenant.Caller, a *agent.Agent) error
	ListFunc      func(ctx context.Context, caller tenant.Caller, filter agent.ListFilter) ([]*agent.Agent, error)
	SetStatusFunc func(ctx context.Context, caller tenant.Caller, agentID string, status agent.Status) (bool, error)
}

func (m *MockAgents) Register(ctx context.Context, caller tenant.Caller, a *agent.Agent) error {
	return m.RegisterFunc(ctx, caller, a)
}

func (m *MockAgents) List(ctx context.Context, caller tenant.Caller, filter agent.ListFilter) ([]*agent.Agent, error) {
	return m.ListFunc(ctx, caller, filter)
}

func (m *MockAgents) SetStatus(ctx context.Context, caller tenant.Caller, agentID string, status agent.Status) (bool, error) {
	return m.SetStatusFunc(ctx, caller, agentID, status)
}

// MockReporter implements handlers.SLAReporter.
type MockReporter struct {
	ReportForFunc func(ctx context.Context, caller tenant.Caller) (sla.Report, error)
}

func (m *MockReporter) ReportFor(ctx context.Context, caller tenant.Caller) (sla.Report, error) {
	return m.ReportForFunc(ctx, caller)
}

type noWatcher struct{}

func (noWatcher) Watch(context.Context, tenant.Caller, queue.Filter) (*realtime.QueueWatcher, error) {
	return nil, platformerrors.NewError(context.Background(), platformerrors.LayerDomain, platformerrors.ErrorTypeUnavailable, "streams disabled", nil, "")
}

type fixture struct {
	assigner *MockAssigner
	intake   *MockIntake
	viewer   *MockViewer
	agents   *MockAgents
	reporter *MockReporter
}

func newFixture() *fixture {
	return &fixture{
		assigner: &MockAssigner{},
		intake:   &MockIntake{},
		viewer:   &MockViewer{},
		agents:   &MockAgents{},
		reporter: &MockReporter{},
	}
}

func (f *fixture) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	provider := handlers.NewProvider(f.assigner, f.intake, f.viewer, f.agents, f.reporter, noWatcher{}, zerolog.Nop())
	r := gin.New()
	var validator *auth.Validator
	v1.NewRoutes(provider).Register(r, validator.Middleware())
	return r
}

func do(r http.Handler, method, path, body string, caller tenant.Caller) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(auth.HeaderOrganizationID, caller.OrganizationID)
	req.Header.Set(auth.HeaderAgentID, caller.AgentID)
	req.Header.Set(auth.HeaderTeamID, caller.TeamID)
	req.Header.Set(auth.HeaderAgentRole, string(caller.Role))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

var alice = tenant.Caller{OrganizationID: "org-1", AgentID: "alice", Role: tenant.RoleAgent}

func TestOpenConversation(t *testing.T) {
	f := newFixture()
	var got intake.InboundMessage
	f.intake.ReceiveFunc = func(_ context.Context, caller tenant.Caller, in intake.InboundMessage) (*intake.Result, error) {
		got = in
		return &intake.Result{
			Conversation: &conversation.Conversation{ID: "conv-1", OrganizationID: caller.OrganizationID, Status: conversation.StatusWaiting, Priority: in.Priority},
			Message:      &message.Message{ID: "msg-1", ConversationID: "conv-1", SenderType: message.SenderCustomer, Body: in.Body},
			Created:      true,
		}, nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/conversations", `{"contact_id":"c-1","channel_type":"whatsapp","priority":9,"body":"hi"}`, alice)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "c-1", got.ContactID)

	body := decode(t, w)
	assert.Equal(t, true, body["created"])
	conv := body["conversation"].(map[string]any)
	assert.Equal(t, "urgent", conv["band"])
	assert.Equal(t, "waiting", conv["status"])

	w = do(r, http.MethodPost, "/v1/conversations", `{"channel_type":"whatsapp"}`, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAssignDefaultsToCaller(t *testing.T) {
	f := newFixture()
	var assignedTo []string
	f.assigner.ClaimForFunc = func(_ context.Context, _ tenant.Caller, id, agentID string) (bool, error) {
		assignedTo = append(assignedTo, agentID)
		return len(assignedTo) == 1, nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/conversations/conv-1/assign", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["assigned"])

	w = do(r, http.MethodPost, "/v1/conversations/conv-1/assign", `{"agent_id":"bob"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["assigned"])

	assert.Equal(t, []string{"alice", "bob"}, assignedTo)
}

func TestDomainErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name      string
		errorType platformerrors.ErrorType
		status    int
		errType   string
	}{
		{"forbidden", platformerrors.ErrorTypeForbidden, http.StatusForbidden, "forbidden_error"},
		{"not found", platformerrors.ErrorTypeNotFound, http.StatusNotFound, "not_found_error"},
		{"validation", platformerrors.ErrorTypeValidation, http.StatusBadRequest, "validation_error"},
		{"unauthorized", platformerrors.ErrorTypeUnauthorized, http.StatusUnauthorized, "unauthorized_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.assigner.FinishFunc = func(ctx context.Context, _ tenant.Caller, _ string) (bool, error) {
				return false, platformerrors.NewError(ctx, platformerrors.LayerDomain, tt.errorType, "nope", nil, "test-code")
			}
			w := do(f.router(), http.MethodPost, "/v1/conversations/conv-1/finish", "", alice)
			assert.Equal(t, tt.status, w.Code)

			detail := decode(t, w)["error"].(map[string]any)
			assert.Equal(t, tt.errType, detail["type"])
			assert.Equal(t, "test-code", detail["code"])
		})
	}
}

func TestFinishIsIdempotent(t *testing.T) {
	f := newFixture()
	finished := false
	f.assigner.FinishFunc = func(context.Context, tenant.Caller, string) (bool, error) {
		if finished {
			return false, nil
		}
		finished = true
		return true, nil
	}
	r := f.router()

	assert.Equal(t, true, decode(t, do(r, http.MethodPost, "/v1/conversations/c/finish", "", alice))["finished"])
	assert.Equal(t, false, decode(t, do(r, http.MethodPost, "/v1/conversations/c/finish", "", alice))["finished"])
}

func TestTransferRequiresTarget(t *testing.T) {
	f := newFixture()
	f.assigner.TransferFunc = func(_ context.Context, _ tenant.Caller, _, to string) (bool, error) {
		return to == "bob", nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/conversations/c/transfer", `{}`, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/v1/conversations/c/transfer", `{"agent_id":"bob"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["transferred"])
}

func TestAttendNext(t *testing.T) {
	f := newFixture()
	var gotQueue *string
	f.assigner.AttendNextFunc = func(_ context.Context, _ tenant.Caller, opts assignment.Options) (*assignment.Attempt, error) {
		gotQueue = opts.QueueID
		agentID := "alice"
		return &assignment.Attempt{
			State: assignment.StateClaimed,
			Tries: 2,
			Conversation: &conversation.Conversation{
				ID: "conv-2", Status: conversation.StatusActive, AssignedAgentID: &agentID,
			},
		}, nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/queue/attend-next", `{"queue_id":"sales"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotQueue)
	assert.Equal(t, "sales", *gotQueue)

	body := decode(t, w)
	assert.Equal(t, "claimed", body["state"])
	assert.Equal(t, float64(2), body["tries"])
	assert.Equal(t, "conv-2", body["conversation"].(map[string]any)["id"])

	f.assigner.AttendNextFunc = nil
	w = do(r, http.MethodPost, "/v1/queue/attend-next", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "unavailable", decode(t, w)["state"])
}

func TestQueueViewPassesFilterAndCaller(t *testing.T) {
	f := newFixture()
	var gotCaller tenant.Caller
	var gotFilter queue.Filter
	started := time.Now().Add(-2 * time.Minute)
	f.viewer.ViewForFunc = func(_ context.Context, caller tenant.Caller, filter queue.Filter) (queue.Result, error) {
		gotCaller, gotFilter = caller, filter
		c := &conversation.Conversation{ID: "conv-1", Status: conversation.StatusWaiting, StartedAt: started}
		return queue.Result{
			OrganizationID: caller.OrganizationID,
			Scope:          "agent:alice",
			Waiting:        []queue.Item{{Conversation: c, Band: c.Band(), Position: 1, Wait: 2 * time.Minute}},
		}, nil
	}

	w := do(f.router(), http.MethodGet, "/v1/queue?queue_id=support", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, alice, gotCaller)
	require.NotNil(t, gotFilter.QueueID)
	assert.Equal(t, "support", *gotFilter.QueueID)

	body := decode(t, w)
	waiting := body["waiting"].([]any)
	require.Len(t, waiting, 1)
	assert.Equal(t, float64(120), waiting[0].(map[string]any)["wait_seconds"])
	assert.Empty(t, body["assigned"])
}

func TestAgentEndpoints(t *testing.T) {
	f := newFixture()
	f.agents.ListFunc = func(_ context.Context, _ tenant.Caller, filter agent.ListFilter) ([]*agent.Agent, error) {
		if filter.Status != nil && *filter.Status == agent.StatusOnline {
			return []*agent.Agent{{ID: "alice", DisplayName: "Alice", Status: agent.StatusOnline}}, nil
		}
		return nil, nil
	}
	f.agents.SetStatusFunc = func(_ context.Context, _ tenant.Caller, agentID string, status agent.Status) (bool, error) {
		return agentID == "alice" && status == agent.StatusAway, nil
	}
	f.assigner.HeldByFunc = func(_ context.Context, _ tenant.Caller, agentID string) ([]*conversation.Conversation, error) {
		return []*conversation.Conversation{{ID: "conv-9", Status: conversation.StatusPaused, AssignedAgentID: &agentID}}, nil
	}
	r := f.router()

	w := do(r, http.MethodGet, "/v1/agents?status=online", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].([]any), 1)

	w = do(r, http.MethodGet, "/v1/agents?status=sleepy", "", alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, "/v1/agents/alice/status", `{"status":"AWAY"}`, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["changed"])

	w = do(r, http.MethodGet, "/v1/agents/alice/conversations", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "paused", data[0].(map[string]any)["status"])
}

func TestRegisterAgentValidatesBody(t *testing.T) {
	f := newFixture()
	var registered *agent.Agent
	f.agents.RegisterFunc = func(_ context.Context, _ tenant.Caller, a *agent.Agent) error {
		a.ID = "carol"
		registered = a
		return nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/agents", `{"display_name":" Carol ","status":"Online","max_concurrent":2}`, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, registered)
	assert.Equal(t, "Carol", registered.DisplayName)
	assert.Equal(t, agent.StatusOnline, registered.Status)
	assert.Equal(t, "carol", decode(t, w)["id"])

	registered = nil
	for _, body := range []string{
		`{"display_name":"Carol","status":"asleep"}`,
		`{"display_name":"Carol","max_concurrent":-1}`,
		`{"status":"online"}`,
	} {
		w = do(r, http.MethodPost, "/v1/agents", body, alice)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
	assert.Nil(t, registered)
}

func TestMessages(t *testing.T) {
	f := newFixture()
	f.intake.ReplyFunc = func(_ context.Context, caller tenant.Caller, id string, sender message.SenderType, body string) (*message.Message, error) {
		return &message.Message{ID: "m-1", ConversationID: id, SenderType: message.SenderAgent, SenderID: caller.AgentID, Body: body}, nil
	}
	f.intake.TranscriptFunc = func(_ context.Context, _ tenant.Caller, id string, limit int) ([]*message.Message, error) {
		assert.Equal(t, 5, limit)
		return []*message.Message{{ID: "m-1", ConversationID: id}}, nil
	}
	r := f.router()

	w := do(r, http.MethodPost, "/v1/conversations/conv-1/messages", `{"body":"hello"}`, alice)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "alice", decode(t, w)["sender_id"])

	w = do(r, http.MethodPost, "/v1/conversations/conv-1/messages", `{"body":"x","sender_type":"robot"}`, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/v1/conversations/conv-1/messages?limit=5", "", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"].([]any), 1)

	w = do(r, http.MethodGet, "/v1/conversations/conv-1/messages?limit=-1", "", alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSLAReport(t *testing.T) {
	f := newFixture()
	f.reporter.ReportForFunc = func(_ context.Context, caller tenant.Caller) (sla.Report, error) {
		return sla.Report{
			OrganizationID: caller.OrganizationID,
			Threshold:      30 * time.Minute,
			QueueDepth:     3,
			DepthByBand:    map[conversation.Band]int{conversation.BandUrgent: 1, conversation.BandNormal: 2},
			NearBreach:     1,
			Breaches:       []sla.Breach{{ConversationID: "conv-1", AgentID: "alice", Age: 45 * time.Minute}},
			Agents:         []sla.AgentLoad{{AgentID: "alice", Active: 3, MaxConcurrent: 2, OverCapacity: true}},
		}, nil
	}

	w := do(f.router(), http.MethodGet, "/v1/metrics/sla", "", alice)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, float64(1800), body["threshold_seconds"])
	assert.Equal(t, float64(3), body["queue_depth"])
	assert.Equal(t, float64(1), body["depth_by_band"].(map[string]any)["urgent"])
	breach := body["breaches"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(2700), breach["age_seconds"])
	load := body["agents"].([]any)[0].(map[string]any)
	assert.Equal(t, true, load["over_capacity"])
}

func TestMissingOrganizationIsUnauthorized(t *testing.T) {
	f := newFixture()
	f.reporter.ReportForFunc = func(ctx context.Context, caller tenant.Caller) (sla.Report, error) {
		return sla.Report{}, caller.Validate(ctx)
	}
	w := do(f.router(), http.MethodGet, "/v1/metrics/sla", "", tenant.Caller{AgentID: "alice"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
