// Package sla derives queue health from a snapshot: depth, waits, SLA
// breaches and per-agent load. Nothing here mutates conversations.
package sla

import (
	"sort"
	"time"

	"github.com/deskline/queue-api/internal/domain/agent"
	"github.com/deskline/queue-api/internal/domain/conversation"
	"github.com/deskline/queue-api/internal/domain/queue"
)

const (
	DefaultThreshold    = 30 * time.Minute
	DefaultWarningRatio = 0.8
)

// Breach is an active conversation open longer than the threshold.
type Breach struct {
	ConversationID string
	AgentID        string
	Priority       int
	Age            time.Duration
}

// AgentLoad is one agent's share of the held conversations.
type AgentLoad struct {
	AgentID       string
	DisplayName   string
	Status        agent.Status
	Active        int
	Paused        int
	MaxConcurrent int
	// OverCapacity is informational; claims never check it.
	OverCapacity bool
}

// Held is the number of conversations the agent currently holds.
func (l AgentLoad) Held() int {
	return l.Active + l.Paused
}

// Report summarizes one organization at a point in time.
type Report struct {
	OrganizationID string
	TakenAt        time.Time
	Threshold      time.Duration

	QueueDepth   int
	DepthByBand  map[conversation.Band]int
	DepthByQueue map[string]int
	AverageWait  time.Duration
	LongestWait  time.Duration

	Active int
	Paused int
	// NearBreach counts active conversations started longer ago than the
	// threshold. AtRisk counts those past the warning ratio but not yet
	// over the threshold.
	NearBreach int
	AtRisk     int
	Breaches   []Breach

	Agents []AgentLoad
}

// AvailableAgents returns online agents, least loaded first.
func (r Report) AvailableAgents() []AgentLoad {
	var out []AgentLoad
	for _, l := range r.Agents {
		if l.Status == agent.StatusOnline {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Held() != out[j].Held() {
			return out[i].Held() < out[j].Held()
		}
		return out[i].AgentID < out[j].AgentID
	})
	return out
}

// Monitor computes reports against a fixed threshold.
type Monitor struct {
	threshold    time.Duration
	warningRatio float64
}

// NewMonitor returns a monitor; non-positive arguments fall back to the
// defaults.
func NewMonitor(threshold time.Duration, warningRatio float64) *Monitor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if warningRatio <= 0 || warningRatio >= 1 {
		warningRatio = DefaultWarningRatio
	}
	return &Monitor{threshold: threshold, warningRatio: warningRatio}
}

// Threshold returns the configured SLA threshold.
func (m *Monitor) Threshold() time.Duration {
	return m.threshold
}

// Compute derives the report for snap as of now.
func (m *Monitor) Compute(snap *queue.Snapshot, now time.Time) Report {
	report := Report{
		OrganizationID: snap.OrganizationID,
		TakenAt:        snap.TakenAt,
		Threshold:      m.threshold,
		DepthByBand: map[conversation.Band]int{
			conversation.BandUrgent: 0,
			conversation.BandHigh:   0,
			conversation.BandNormal: 0,
		},
		DepthByQueue: map[string]int{},
	}
	warning := time.Duration(float64(m.threshold) * m.warningRatio)

	loads := make(map[string]*AgentLoad, len(snap.Agents))
	order := make([]string, 0, len(snap.Agents))
	for _, a := range snap.Agents {
		loads[a.ID] = &AgentLoad{
			AgentID:       a.ID,
			DisplayName:   a.DisplayName,
			Status:        a.Status,
			MaxConcurrent: a.MaxConcurrent,
		}
		order = append(order, a.ID)
	}
	loadFor := func(agentID string) *AgentLoad {
		l, ok := loads[agentID]
		if !ok {
			l = &AgentLoad{AgentID: agentID}
			loads[agentID] = l
			order = append(order, agentID)
		}
		return l
	}

	var totalWait time.Duration
	for _, c := range snap.Conversations {
		if c == nil {
			continue
		}
		age := c.WaitTime(now)

		switch c.Status {
		case conversation.StatusWaiting:
			report.QueueDepth++
			report.DepthByBand[c.Band()]++
			queueID := ""
			if c.QueueID != nil {
				queueID = *c.QueueID
			}
			report.DepthByQueue[queueID]++
			totalWait += age
			if age > report.LongestWait {
				report.LongestWait = age
			}

		case conversation.StatusActive:
			report.Active++
			agentID := ""
			if c.AssignedAgentID != nil {
				agentID = *c.AssignedAgentID
				loadFor(agentID).Active++
			}
			switch {
			case age > m.threshold:
				report.NearBreach++
				report.Breaches = append(report.Breaches, Breach{
					ConversationID: c.ID,
					AgentID:        agentID,
					Priority:       c.Priority,
					Age:            age,
				})
			case age > warning:
				report.AtRisk++
			}

		case conversation.StatusPaused:
			report.Paused++
			if c.AssignedAgentID != nil {
				loadFor(*c.AssignedAgentID).Paused++
			}
		}
	}

	if report.QueueDepth > 0 {
		report.AverageWait = totalWait / time.Duration(report.QueueDepth)
	}

	sort.SliceStable(report.Breaches, func(i, j int) bool {
		return report.Breaches[i].Age > report.Breaches[j].Age
	})

	report.Agents = make([]AgentLoad, 0, len(order))
	for _, id := range order {
		l := loads[id]
		l.OverCapacity = l.MaxConcurrent > 0 && l.Held() > l.MaxConcurrent
		report.Agents = append(report.Agents, *l)
	}

	return report
}
