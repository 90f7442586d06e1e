package handlers

import (
	"net/http"

	"taskplane/internal/dispatch"
	"taskplane/pkg/api"
)

// RegisterAgent handles POST /agents/register.
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterAgentRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.engine.RegisterAgent(r.Context(), req.AgentID, req.Name, req.Sites); err != nil {
		h.engineError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.OKResponse{OK: true})
}

// Heartbeat handles POST /agents/heartbeat.
// The response tells the agent whether dispatch is paused.
func (h *Handlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	var req api.HeartbeatRequest
	if !h.decode(w, r, &req) {
		return
	}

	paused, err := h.engine.Heartbeat(r.Context(), req.AgentID, req.Status)
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.HeartbeatResponse{OK: true, Paused: paused})
}

// ListAgents handles GET /agents/online.
// ?alive=true limits the list to agents inside the liveness window.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	onlyAlive := r.URL.Query().Get("alive") == "true"

	agents, err := h.engine.ListOnlineAgents(ctx, onlyAlive)
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	paused, err := h.engine.Paused(ctx)
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	resp := api.ListAgentsResponse{Agents: make([]api.AgentResponse, 0, len(agents)), Paused: paused}
	for _, a := range agents {
		resp.Agents = append(resp.Agents, toAgentResponse(a))
	}
	h.respondJson(w, http.StatusOK, resp)
}

func toAgentResponse(a dispatch.AgentSummary) api.AgentResponse {
	sites := a.Sites
	if sites == nil {
		sites = []string{}
	}
	return api.AgentResponse{
		ID:       a.ID,
		Name:     a.Name,
		Sites:    sites,
		Status:   a.Status,
		Online:   a.Online,
		LastSeen: a.LastSeen,
	}
}
