package restapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tellurio-ai/tellurio-go/errkit"
	"github.com/tellurio-ai/tellurio-go/restapi"
)

func TestVerifyAPIKeySuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v0/verify-api-key/", r.URL.Path)
		assert.Equal(t, "Api-Key test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "ada@example.com"})
	}))
	defer server.Close()

	client := restapi.New(server.URL, "test-key")
	result, err := client.VerifyAPIKey(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.Email)
}

func TestVerifyAPIKeyUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := restapi.New(server.URL, "bad-key")
	_, err := client.VerifyAPIKey(t.Context())
	require.Error(t, err)

	var invalid *errkit.InvalidCredential
	require.ErrorAs(t, err, &invalid)
}

func TestGetProjectMissingReturnsNilNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := restapi.New(server.URL, "k")
	project, err := client.GetProject(t.Context(), "acme", "ghost")
	require.NoError(t, err)
	assert.Nil(t, project)
}

func TestCreateRunPostsExpectedBody(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"uuid": "run-9", "name": gotBody["name"], "status": gotBody["status"],
		})
	}))
	defer server.Close()

	client := restapi.New(server.URL, "k")
	run, err := client.CreateRun(t.Context(), "acme", "proj", "brave-run", "desc", "RUNNING")
	require.NoError(t, err)
	assert.Equal(t, "run-9", run.UUID)
	assert.Equal(t, "brave-run", gotBody["name"])
	assert.Equal(t, "RUNNING", gotBody["status"])
}

func TestPatchRunStatusFailsOnUnexpectedStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := restapi.New(server.URL, "k")
	err := client.PatchRunStatus(t.Context(), "acme", "proj", "run-1", "COMPLETED")
	require.Error(t, err)
}
