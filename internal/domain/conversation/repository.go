package conversation

import "context"

// Repository is the tenant-scoped store for conversations. Every method
// takes the caller's organization explicitly. Mutations are single guarded
// updates; a false result means the guard no longer held.
type Repository interface {
	// Open creates a waiting conversation, or returns the conversation
	// already open for the same contact and channel. created reports which.
	Open(ctx context.Context, c *Conversation) (result *Conversation, created bool, err error)
	Get(ctx context.Context, orgID, conversationID string) (*Conversation, error)
	ListWaiting(ctx context.Context, orgID string, queueID *string) ([]*Conversation, error)
	// ListOpen returns every non-finished conversation in one read.
	ListOpen(ctx context.Context, orgID string) ([]*Conversation, error)
	ListHeld(ctx context.Context, orgID string, agentID *string) ([]*Conversation, error)

	TryClaim(ctx context.Context, orgID, conversationID, agentID string) (bool, error)
	Transfer(ctx context.Context, orgID, conversationID, fromAgentID, toAgentID string) (bool, error)
	Pause(ctx context.Context, orgID, conversationID, agentID string) (bool, error)
	Resume(ctx context.Context, orgID, conversationID, agentID string) (bool, error)
	Finish(ctx context.Context, orgID, conversationID string) (bool, error)
}
