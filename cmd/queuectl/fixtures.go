package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/intake"
	"github.com/deskline/queue-api/internal/domain/queue"
	"github.com/deskline/queue-api/internal/domain/tenant"
)

// Fixtures describe organizations to load into an empty database.
type Fixtures struct {
	Organizations []OrganizationFixture `yaml:"organizations"`
}

type OrganizationFixture struct {
	ID            string                `yaml:"id"`
	Name          string                `yaml:"name"`
	Teams         []TeamFixture         `yaml:"teams"`
	Queues        []QueueFixture        `yaml:"queues"`
	Agents        []AgentFixture        `yaml:"agents"`
	Conversations []ConversationFixture `yaml:"conversations"`
}

type TeamFixture struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type QueueFixture struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Team string `yaml:"team"`
}

type AgentFixture struct {
	ID            string `yaml:"id"`
	DisplayName   string `yaml:"display_name"`
	Team          string `yaml:"team"`
	Status        string `yaml:"status"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// ConversationFixture opens a conversation with its first customer message.
// WaitingFor backdates it so SLA bands can be demonstrated.
type ConversationFixture struct {
	ContactID   string        `yaml:"contact_id"`
	ChannelType string        `yaml:"channel_type"`
	Queue       string        `yaml:"queue"`
	Priority    int           `yaml:"priority"`
	Body        string        `yaml:"body"`
	WaitingFor  time.Duration `yaml:"waiting_for"`
	AssignedTo  string        `yaml:"assigned_to"`
}

// ParseFixtures decodes and validates a fixture document. Unknown keys are
// rejected.
func ParseFixtures(r io.Reader) (*Fixtures, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f Fixtures
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("fixtures: empty document")
		}
		return nil, fmt.Errorf("fixtures: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks required fields and that every reference resolves inside
// its own organization.
func (f *Fixtures) Validate() error {
	if len(f.Organizations) == 0 {
		return fmt.Errorf("fixtures: no organizations")
	}
	for i, org := range f.Organizations {
		where := fmt.Sprintf("organizations[%d]", i)
		if strings.TrimSpace(org.Name) == "" {
			return fmt.Errorf("%s: name is required", where)
		}

		teams := map[string]bool{}
		for j, t := range org.Teams {
			if strings.TrimSpace(t.Name) == "" {
				return fmt.Errorf("%s.teams[%d]: name is required", where, j)
			}
			teams[t.Name] = true
			if t.ID != "" {
				teams[t.ID] = true
			}
		}

		queues := map[string]bool{}
		for j, q := range org.Queues {
			if strings.TrimSpace(q.Name) == "" {
				return fmt.Errorf("%s.queues[%d]: name is required", where, j)
			}
			if q.Team != "" && !teams[q.Team] {
				return fmt.Errorf("%s.queues[%d]: unknown team %q", where, j, q.Team)
			}
			queues[q.Name] = true
			if q.ID != "" {
				queues[q.ID] = true
			}
		}

		agents := map[string]bool{}
		for j, a := range org.Agents {
			if strings.TrimSpace(a.DisplayName) == "" {
				return fmt.Errorf("%s.agents[%d]: display_name is required", where, j)
			}
			if a.Status != "" && !agent.Status(a.Status).IsValid() {
				return fmt.Errorf("%s.agents[%d]: unknown status %q", where, j, a.Status)
			}
			if a.Team != "" && !teams[a.Team] {
				return fmt.Errorf("%s.agents[%d]: unknown team %q", where, j, a.Team)
			}
			if a.MaxConcurrent < 0 {
				return fmt.Errorf("%s.agents[%d]: max_concurrent must not be negative", where, j)
			}
			if a.ID != "" {
				agents[a.ID] = true
			}
		}

		for j, c := range org.Conversations {
			at := fmt.Sprintf("%s.conversations[%d]", where, j)
			if strings.TrimSpace(c.ContactID) == "" || strings.TrimSpace(c.ChannelType) == "" {
				return fmt.Errorf("%s: contact_id and channel_type are required", at)
			}
			if strings.TrimSpace(c.Body) == "" {
				return fmt.Errorf("%s: body is required", at)
			}
			if c.WaitingFor < 0 {
				return fmt.Errorf("%s: waiting_for must not be negative", at)
			}
			if c.Queue != "" && !queues[c.Queue] {
				return fmt.Errorf("%s: unknown queue %q", at, c.Queue)
			}
			if c.AssignedTo != "" && !agents[c.AssignedTo] {
				return fmt.Errorf("%s: assigned_to must name an agent id of the organization", at)
			}
		}
	}
	return nil
}

// OrganizationStore creates tenants and their queue definitions.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *tenant.Organization) error
	CreateTeam(ctx context.Context, team *tenant.Team) error
	CreateQueue(ctx context.Context, q *queue.Queue) error
}

// Receiver opens conversations from inbound messages.
type Receiver interface {
	Receive(ctx context.Context, caller tenant.Caller, in intake.InboundMessage) (*intake.Result, error)
}

// SeedSummary counts what was created.
type SeedSummary struct {
	Organizations int `json:"organizations"`
	Teams         int `json:"teams"`
	Queues        int `json:"queues"`
	Agents        int `json:"agents"`
	Conversations int `json:"conversations"`
	Assigned      int `json:"assigned"`
}

// Seeder loads fixtures through the regular repositories so every write is
// announced like any other.
type Seeder struct {
	orgs          OrganizationStore
	agents        agent.Repository
	conversations conversation.Repository
	intake        Receiver
}

func NewSeeder(orgs OrganizationStore, agents agent.Repository, conversations conversation.Repository, receiver Receiver) *Seeder {
	return &Seeder{orgs: orgs, agents: agents, conversations: conversations, intake: receiver}
}

// Seed creates every fixture. now anchors waiting_for.
func (s *Seeder) Seed(ctx context.Context, f *Fixtures, now time.Time) (SeedSummary, error) {
	var sum SeedSummary
	for _, of := range f.Organizations {
		org := &tenant.Organization{ID: of.ID, Name: of.Name}
		if err := s.orgs.CreateOrganization(ctx, org); err != nil {
			return sum, fmt.Errorf("organization %q: %w", of.Name, err)
		}
		sum.Organizations++

		teamIDs := map[string]string{}
		for _, tf := range of.Teams {
			team := &tenant.Team{ID: tf.ID, OrganizationID: org.ID, Name: tf.Name}
			if err := s.orgs.CreateTeam(ctx, team); err != nil {
				return sum, fmt.Errorf("team %q: %w", tf.Name, err)
			}
			teamIDs[tf.Name] = team.ID
			teamIDs[team.ID] = team.ID
			sum.Teams++
		}

		queueIDs := map[string]string{}
		for _, qf := range of.Queues {
			q := &queue.Queue{ID: qf.ID, OrganizationID: org.ID, Name: qf.Name, TeamID: lookup(teamIDs, qf.Team)}
			if err := s.orgs.CreateQueue(ctx, q); err != nil {
				return sum, fmt.Errorf("queue %q: %w", qf.Name, err)
			}
			queueIDs[qf.Name] = q.ID
			queueIDs[q.ID] = q.ID
			sum.Queues++
		}

		for _, af := range of.Agents {
			a := &agent.Agent{
				ID:             af.ID,
				OrganizationID: org.ID,
				TeamID:         lookup(teamIDs, af.Team),
				DisplayName:    af.DisplayName,
				Status:         agent.Status(af.Status),
				MaxConcurrent:  af.MaxConcurrent,
			}
			if err := s.agents.Create(ctx, a); err != nil {
				return sum, fmt.Errorf("agent %q: %w", af.DisplayName, err)
			}
			sum.Agents++
		}

		system := tenant.Caller{OrganizationID: org.ID, AgentID: "queuectl", Role: tenant.RoleSystem}
		for _, cf := range of.Conversations {
			res, err := s.intake.Receive(ctx, system, intake.InboundMessage{
				ContactID:   cf.ContactID,
				ChannelType: cf.ChannelType,
				QueueID:     lookup(queueIDs, cf.Queue),
				Priority:    cf.Priority,
				Body:        cf.Body,
				ReceivedAt:  now.Add(-cf.WaitingFor),
			})
			if err != nil {
				return sum, fmt.Errorf("conversation for %q: %w", cf.ContactID, err)
			}
			if res.Created {
				sum.Conversations++
			}
			if cf.AssignedTo == "" {
				continue
			}
			claimed, err := s.conversations.TryClaim(ctx, org.ID, res.Conversation.ID, cf.AssignedTo)
			if err != nil {
				return sum, fmt.Errorf("assign %q: %w", res.Conversation.ID, err)
			}
			if claimed {
				sum.Assigned++
			}
		}
	}
	return sum, nil
}

func lookup(ids map[string]string, key string) *string {
	if key == "" {
		return nil
	}
	id, ok := ids[key]
	if !ok {
		return nil
	}
	return &id
}
