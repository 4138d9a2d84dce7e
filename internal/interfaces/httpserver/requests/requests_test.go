package requests

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorCustomTags(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name  string
		req   any
		valid bool
	}{
		{name: "agent defaults", req: CreateAgentRequest{DisplayName: "Alice"}, valid: true},
		{name: "agent status", req: CreateAgentRequest{DisplayName: "Alice", Status: "busy"}, valid: true},
		{name: "agent unknown status", req: CreateAgentRequest{DisplayName: "Alice", Status: "asleep"}, valid: false},
		{name: "agent negative capacity", req: CreateAgentRequest{DisplayName: "Alice", MaxConcurrent: -1}, valid: false},
		{name: "status change", req: AgentStatusRequest{Status: "offline"}, valid: true},
		{name: "status change empty", req: AgentStatusRequest{}, valid: false},
		{name: "message default sender", req: MessageRequest{Body: "hi"}, valid: true},
		{name: "message system sender", req: MessageRequest{Body: "hi", SenderType: "system"}, valid: true},
		{name: "message unknown sender", req: MessageRequest{Body: "hi", SenderType: "robot"}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.req)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	create := CreateAgentRequest{DisplayName: "  Alice ", Status: " ONLINE"}
	create.Normalize()
	assert.Equal(t, "Alice", create.DisplayName)
	assert.Equal(t, "online", create.Status)

	status := AgentStatusRequest{Status: "Away "}
	status.Normalize()
	assert.Equal(t, "away", status.Status)

	msg := MessageRequest{Body: "x", SenderType: "Agent"}
	msg.Normalize()
	assert.Equal(t, "agent", msg.SenderType)
}
