package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"taskplane/internal/dispatch"
	"taskplane/internal/ingest"
	"taskplane/pkg/api"
)

// maxUploadSize bounds the multipart body of POST /jobs/create.
const maxUploadSize = 10 << 20

// CreateJob handles POST /jobs/create.
// It reads a multipart form with the site, price, total, random_sample and a
// csv_file of recipients, samples the rows and creates one task per row.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		h.httpError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	site := strings.TrimSpace(r.FormValue(api.FormSite))
	price, err := strconv.Atoi(strings.TrimSpace(r.FormValue(api.FormPrice)))
	if err != nil {
		h.httpError(w, "price must be an integer", http.StatusBadRequest)
		return
	}
	total, err := strconv.Atoi(strings.TrimSpace(r.FormValue(api.FormTotal)))
	if err != nil {
		h.httpError(w, "total must be an integer", http.StatusBadRequest)
		return
	}
	random := true
	if v := strings.TrimSpace(r.FormValue(api.FormRandomSample)); v != "" {
		random, err = strconv.ParseBool(v)
		if err != nil {
			h.httpError(w, "random_sample must be a boolean", http.StatusBadRequest)
			return
		}
	}

	file, _, err := r.FormFile(api.FormCSVFile)
	if err != nil {
		h.httpError(w, "csv_file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	rows, err := ingest.ParseCSV(file)
	if err != nil {
		h.httpError(w, "Invalid CSV file", http.StatusBadRequest)
		return
	}
	if len(rows) == 0 {
		h.httpError(w, "CSV empty or headers missing (first_name,last_name)", http.StatusBadRequest)
		return
	}

	res, err := h.engine.CreateJob(r.Context(), dispatch.CreateJobRequest{
		Site:      site,
		Price:     price,
		Requested: total,
		Rows:      ingest.Select(rows, total, random, nil),
	})
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	h.respondJson(w, http.StatusOK, api.CreateJobResponse{JobID: res.JobID, TotalTasks: res.TaskCount})
}

// GetJobStatus handles GET /jobs/{id}/status.
func (h *Handlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.JobStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		h.engineError(w, r, err)
		return
	}

	job := report.Job
	h.respondJson(w, http.StatusOK, api.JobStatusResponse{
		Job: api.JobResponse{
			ID:        job.ID,
			Site:      job.Site,
			Price:     job.Price,
			Requested: job.Requested,
			Total:     job.Total,
			Status:    string(job.Status),
			CreatedAt: job.CreatedAt,
		},
		Stats: api.JobStats{
			Total:   report.Stats.Total,
			Pending: report.Stats.Pending,
			Running: report.Stats.Running,
			Success: report.Stats.Success,
			Failed:  report.Stats.Failed,
		},
		QueueDepth: report.QueueDepth,
	})
}
