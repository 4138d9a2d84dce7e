package tenant

// Scope selects which conversations of an organization a caller may see.
// The set of variants is closed: AllOfOrg, TeamOf and OwnPlusWaiting.
type Scope interface {
	scope()
	String() string
}

// AllOfOrg admits every conversation of the organization.
type AllOfOrg struct{}

// TeamOf admits conversations routed to the team's queues or held by
// one of the team's agents.
type TeamOf struct {
	TeamID string
}

// OwnPlusWaiting admits every waiting conversation plus the ones assigned
// to the agent.
type OwnPlusWaiting struct {
	AgentID string
}

func (AllOfOrg) scope()       {}
func (TeamOf) scope()         {}
func (OwnPlusWaiting) scope() {}

func (AllOfOrg) String() string         { return "all" }
func (s TeamOf) String() string         { return "team:" + s.TeamID }
func (s OwnPlusWaiting) String() string { return "agent:" + s.AgentID }

// ScopeFor maps a caller's role to its default scope.
func ScopeFor(c Caller) Scope {
	switch c.Role {
	case RoleAdmin, RoleSystem:
		return AllOfOrg{}
	case RoleManager:
		return TeamOf{TeamID: c.TeamID}
	default:
		return OwnPlusWaiting{AgentID: c.AgentID}
	}
}
