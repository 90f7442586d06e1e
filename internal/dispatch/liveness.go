package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskplane/internal/store"
)

// Agent statuses.
const (
	AgentOnline  = "online"
	AgentOffline = "offline"
)

// AgentSummary is an agent as seen at read time.
type AgentSummary struct {
	ID       string
	Name     string
	Sites    []string
	Status   string // declared status, or "offline" when not alive
	LastSeen time.Time
	Online   bool
}

// RegisterAgent records an agent with its capabilities and marks it seen now.
func (e *Engine) RegisterAgent(ctx context.Context, agentID, name string, sites []string) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return fmt.Errorf("%w: agent_id required", ErrInvalidInput)
	}

	var caps []string
	for _, s := range sites {
		caps = append(caps, store.SplitSites(s)...)
	}

	err := e.repo.RegisterAgent(ctx, &store.Agent{
		ID:       agentID,
		Name:     name,
		Sites:    caps,
		Status:   AgentOnline,
		LastSeen: e.now(),
	})
	if err != nil {
		return err
	}

	e.log(ctx).Info("agent registered", "agent_id", agentID, "sites", caps)
	return nil
}

// Heartbeat marks the agent seen now with the declared status, creating the
// agent if it never registered. It returns the global pause flag.
func (e *Engine) Heartbeat(ctx context.Context, agentID, status string) (paused bool, err error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return false, fmt.Errorf("%w: agent_id required", ErrInvalidInput)
	}
	if status == "" {
		status = AgentOnline
	}

	if err := e.repo.TouchAgentHeartbeat(ctx, agentID, status, e.now()); err != nil {
		return false, err
	}
	return e.repo.Paused(ctx)
}

// IsAlive reports whether the agent was seen within the liveness window.
func (e *Engine) IsAlive(agent *store.Agent, now time.Time) bool {
	if agent.LastSeen.IsZero() {
		return false
	}
	return now.Sub(agent.LastSeen) < e.config.LivenessWindow
}

// ListOnlineAgents returns every agent with liveness derived now. When
// onlyAlive is set, agents outside the liveness window are omitted.
func (e *Engine) ListOnlineAgents(ctx context.Context, onlyAlive bool) ([]AgentSummary, error) {
	agents, err := e.repo.ListAgents(ctx)
	if err != nil {
		return nil, err
	}

	now := e.now()
	out := make([]AgentSummary, 0, len(agents))
	for _, a := range agents {
		alive := e.IsAlive(a, now)
		if onlyAlive && !alive {
			continue
		}

		status := a.Status
		if !alive {
			status = AgentOffline
		} else if status == "" {
			status = AgentOnline
		}

		out = append(out, AgentSummary{
			ID:       a.ID,
			Name:     a.Name,
			Sites:    a.Sites,
			Status:   status,
			LastSeen: a.LastSeen,
			Online:   alive,
		})
	}
	return out, nil
}

// CountOnline returns the number of agents inside the liveness window.
func (e *Engine) CountOnline(ctx context.Context) (int64, error) {
	agents, err := e.ListOnlineAgents(ctx, true)
	if err != nil {
		return 0, err
	}
	return int64(len(agents)), nil
}
