package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"taskplane/pkg/api"
)

func TestClient_SendsAPIKeyAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(api.APIKeyHeader) != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "Invalid API key", Code: "401"})
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/agents/heartbeat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req api.HeartbeatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AgentID != "a1" {
			t.Errorf("agent_id = %q", req.AgentID)
		}
		json.NewEncoder(w).Encode(api.HeartbeatResponse{OK: true, Paused: true})
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "secret")
	resp, err := c.Heartbeat(context.Background(), api.HeartbeatRequest{AgentID: "a1"})
	if err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if !resp.Paused {
		t.Error("expected paused=true")
	}

	bad := New(srv.URL, "wrong")
	_, err = bad.Heartbeat(context.Background(), api.HeartbeatRequest{AgentID: "a1"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "Invalid API key" {
		t.Errorf("APIError = %+v", apiErr)
	}
}

func TestClient_ClaimNullTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"task":null}`)
	}))
	defer srv.Close()

	task, err := New(srv.URL, "").Claim(context.Background(), api.ClaimRequest{AgentID: "a1", Sites: []string{"site-1"}})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if task != nil {
		t.Errorf("task = %+v, want nil", task)
	}
}

func TestClient_CreateJobMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if r.FormValue(api.FormSite) != "site-1" || r.FormValue(api.FormPrice) != "10" ||
			r.FormValue(api.FormTotal) != "2" || r.FormValue(api.FormRandomSample) != "false" {
			t.Errorf("form = %v", r.MultipartForm.Value)
		}
		f, hdr, err := r.FormFile(api.FormCSVFile)
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		b, _ := io.ReadAll(f)
		if hdr.Filename != "people.csv" || !strings.HasPrefix(string(b), "first_name") {
			t.Errorf("file %s = %q", hdr.Filename, b)
		}
		json.NewEncoder(w).Encode(api.CreateJobResponse{JobID: "j1", TotalTasks: 2})
	}))
	defer srv.Close()

	resp, err := New(srv.URL, "").CreateJob(context.Background(), CreateJobParams{
		Site:     "site-1",
		Price:    10,
		Total:    2,
		FileName: "people.csv",
		CSV:      strings.NewReader("first_name,last_name\nAda,Lovelace\n"),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if resp.JobID != "j1" || resp.TotalTasks != 2 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestClient_JobStatusNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/missing/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, "plain text")
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").JobStatus(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(err.Error(), "plain text") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_Control(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.ControlResponse{Paused: r.URL.Path == "/control/pause"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	resp, err := c.Control(context.Background(), "pause")
	if err != nil || !resp.Paused {
		t.Fatalf("pause: %+v, %v", resp, err)
	}
	resp, err = c.Control(context.Background(), "resume")
	if err != nil || resp.Paused {
		t.Fatalf("resume: %+v, %v", resp, err)
	}
}
