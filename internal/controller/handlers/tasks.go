package handlers

import (
	"net/http"

	"taskplane/internal/dispatch"
	"taskplane/internal/store"
	"taskplane/pkg/api"
)

// ClaimTask handles POST /tasks/claim-auto.
// Agents poll this endpoint; {"task": null} is the normal idle answer.
func (h *Handlers) ClaimTask(w http.ResponseWriter, r *http.Request) {
	var req api.ClaimRequest
	if !h.decode(w, r, &req) {
		return
	}

	task, err := h.engine.ClaimNext(r.Context(), req.AgentID, req.Sites)
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	var resp api.ClaimResponse
	if task != nil {
		tr := toTaskResponse(task)
		resp.Task = &tr
	}
	h.respondJson(w, http.StatusOK, resp)
}

// ReportTask handles POST /tasks/report.
func (h *Handlers) ReportTask(w http.ResponseWriter, r *http.Request) {
	var req api.ReportRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.TaskID == "" {
		h.httpError(w, "task_id is required", http.StatusBadRequest)
		return
	}

	_, err := h.engine.ReportStatus(r.Context(), dispatch.ReportRequest{
		TaskID:     req.TaskID,
		AgentID:    req.AgentID,
		Status:     req.Status,
		ResultLink: req.ResultLink,
		Error:      req.Error,
	})
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.OKResponse{OK: true})
}

func toTaskResponse(t *store.Task) api.TaskResponse {
	return api.TaskResponse{
		ID:          t.ID,
		JobID:       t.JobID,
		FirstName:   t.FirstName,
		LastName:    t.LastName,
		ProductLink: t.ProductLink,
		Qty:         t.Qty,
		Site:        t.Site,
		Status:      string(t.Status),
		AssignedTo:  t.AssignedTo,
		ResultLink:  t.ResultLink,
		Error:       t.Error,
		ClaimedAt:   t.ClaimedAt,
		ReportedAt:  t.ReportedAt,
	}
}
