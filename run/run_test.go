package run_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/restapi"
	"github.com/tellurio-ai/tellurio-go/run"
)

func TestInitCreatesProjectWhenMissingAndSetsActiveRun(t *testing.T) {
	var sawCreateProject bool

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/acme/projects/my-experiment/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/api/v0/acme/projects/", func(w http.ResponseWriter, r *http.Request) {
		sawCreateProject = true
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{
			"slug": "my-experiment", "display_name": "My Experiment", "visibility": "RESTRICTED",
		})
	})
	mux.HandleFunc("/api/v0/acme/projects/my-experiment/runs/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"uuid":        "run-1",
			"name":        "brave-run",
			"description": "",
			"status":      "RUNNING",
			"created_at":  "2026-01-01T00:00:00Z",
			"project":     map[string]string{"slug": "my-experiment", "display_name": "My Experiment"},
			"user":        map[string]string{"username": "ada", "email": "ada@example.com"},
		})
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := restapi.New(server.URL, "test-key")
	r, err := run.Init(t.Context(), client, "acme", "My Experiment", "brave-run", "", nil)
	require.NoError(t, err)
	assert.True(t, sawCreateProject)
	assert.Equal(t, "run-1", r.UUID)
	assert.Equal(t, run.StatusRunning, r.Status)

	active, err := run.ActiveRunUUID()
	require.NoError(t, err)
	assert.Equal(t, "run-1", active)
}

func TestFinishMarksCompletedAndClearsActiveRun(t *testing.T) {
	var patchedStatus string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/acme/projects/my-experiment/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"slug": "my-experiment", "display_name": "My Experiment"})
	})
	mux.HandleFunc("/api/v0/acme/projects/my-experiment/runs/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"uuid": "run-2", "name": "n", "status": "RUNNING",
			"project": map[string]string{"slug": "my-experiment"},
			"user":    map[string]string{},
		})
	})
	mux.HandleFunc("/api/v0/acme/projects/my-experiment/runs/run-2/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		patchedStatus = body["status"]
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := restapi.New(server.URL, "test-key")
	r, err := run.Init(t.Context(), client, "acme", "My Experiment", "", "", nil)
	require.NoError(t, err)

	require.NoError(t, r.Finish(t.Context()))
	assert.Equal(t, "COMPLETED", patchedStatus)
	assert.Equal(t, run.StatusCompleted, r.Status)

	_, err = run.ActiveRunUUID()
	require.Error(t, err)
}

func TestActiveRunUUIDErrorsWhenUnset(t *testing.T) {
	run.SetActiveRunUUID("")
	_, err := run.ActiveRunUUID()
	require.Error(t, err)
}
