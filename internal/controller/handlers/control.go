package handlers

import (
	"net/http"

	"taskplane/pkg/api"
)

// Control handles POST /control/{action} where action is pause or resume.
func (h *Handlers) Control(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var err error
	switch r.PathValue("action") {
	case "pause":
		err = h.engine.Pause(ctx)
	case "resume":
		err = h.engine.Resume(ctx)
	default:
		h.httpError(w, "action must be pause or resume", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	paused, err := h.engine.Paused(ctx)
	if err != nil {
		h.engineError(w, r, err)
		return
	}
	h.respondJson(w, http.StatusOK, api.ControlResponse{Paused: paused})
}
