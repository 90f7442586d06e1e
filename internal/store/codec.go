package store

import (
	"strconv"
	"strings"
	"time"
)

// Field names as stored on the kv.Store.
const (
	fieldID          = "id"
	fieldName        = "name"
	fieldSites       = "sites"
	fieldStatus      = "status"
	fieldLastSeen    = "last_seen_ts"
	fieldSite        = "site"
	fieldPrice       = "price"
	fieldRequested   = "requested"
	fieldTotal       = "total"
	fieldCreatedAt   = "created_at"
	fieldJobID       = "job_id"
	fieldFirstName   = "first_name"
	fieldLastName    = "last_name"
	fieldProductLink = "product_link"
	fieldQty         = "qty"
	fieldAssignedTo  = "assigned_to"
	fieldResultLink  = "result_link"
	fieldError       = "error"
	fieldClaimedAt   = "claimed_at"
	fieldReportedAt  = "reported_at"
	fieldPaused      = "paused"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t := parseTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// SplitSites parses a comma separated capability list, dropping blanks.
func SplitSites(s string) []string {
	var sites []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			sites = append(sites, p)
		}
	}
	return sites
}

func encodeAgent(a *Agent) map[string]string {
	return map[string]string{
		fieldID:       a.ID,
		fieldName:     a.Name,
		fieldSites:    strings.Join(a.Sites, ","),
		fieldStatus:   a.Status,
		fieldLastSeen: formatTime(a.LastSeen),
	}
}

func decodeAgent(id string, m map[string]string) *Agent {
	return &Agent{
		ID:       id,
		Name:     m[fieldName],
		Sites:    SplitSites(m[fieldSites]),
		Status:   m[fieldStatus],
		LastSeen: parseTime(m[fieldLastSeen]),
	}
}

func encodeJob(j *Job) map[string]string {
	return map[string]string{
		fieldSite:      j.Site,
		fieldPrice:     strconv.Itoa(j.Price),
		fieldRequested: strconv.Itoa(j.Requested),
		fieldTotal:     strconv.Itoa(j.Total),
		fieldStatus:    string(j.Status),
		fieldCreatedAt: formatTime(j.CreatedAt),
	}
}

func decodeJob(id string, m map[string]string) *Job {
	return &Job{
		ID:        id,
		Site:      m[fieldSite],
		Price:     atoi(m[fieldPrice]),
		Requested: atoi(m[fieldRequested]),
		Total:     atoi(m[fieldTotal]),
		Status:    JobStatus(m[fieldStatus]),
		CreatedAt: parseTime(m[fieldCreatedAt]),
	}
}

func encodeTask(t *Task) map[string]string {
	m := map[string]string{
		fieldJobID:       t.JobID,
		fieldFirstName:   t.FirstName,
		fieldLastName:    t.LastName,
		fieldProductLink: t.ProductLink,
		fieldQty:         strconv.Itoa(t.Qty),
		fieldSite:        t.Site,
		fieldStatus:      string(t.Status),
		fieldAssignedTo:  t.AssignedTo,
		fieldResultLink:  t.ResultLink,
		fieldError:       t.Error,
		fieldCreatedAt:   formatTime(t.CreatedAt),
	}
	if t.ClaimedAt != nil {
		m[fieldClaimedAt] = formatTime(*t.ClaimedAt)
	}
	if t.ReportedAt != nil {
		m[fieldReportedAt] = formatTime(*t.ReportedAt)
	}
	return m
}

func decodeTask(id string, m map[string]string) *Task {
	return &Task{
		ID:          id,
		JobID:       m[fieldJobID],
		FirstName:   m[fieldFirstName],
		LastName:    m[fieldLastName],
		ProductLink: m[fieldProductLink],
		Qty:         atoi(m[fieldQty]),
		Site:        m[fieldSite],
		Status:      TaskStatus(m[fieldStatus]),
		AssignedTo:  m[fieldAssignedTo],
		ResultLink:  m[fieldResultLink],
		Error:       m[fieldError],
		CreatedAt:   parseTime(m[fieldCreatedAt]),
		ClaimedAt:   parseTimePtr(m[fieldClaimedAt]),
		ReportedAt:  parseTimePtr(m[fieldReportedAt]),
	}
}
