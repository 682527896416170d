// Package restapi implements the REST surface named as an external
// collaborator by spec.md §6: API key verification and project/run CRUD,
// grounded on client.py and run.py.
//
// No ecosystem REST client appears in the example pack's complete repos for
// this kind of plain JSON-over-HTTP surface (httpx's closest Go ecosystem
// counterparts, e.g. resty, are absent from the pack), so this package is
// built directly on net/http — see DESIGN.md for the stdlib justification.
package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tellurio-ai/tellurio-go/errkit"
)

// Client is a thin REST client authenticating every request with
// `Authorization: Api-Key <key>`, per spec.md §9's resolution of the
// Bearer-vs-Api-Key open question in favor of Api-Key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying *http.Client, e.g. for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger attaches a structured logger. Default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client against baseURL (e.g. "https://platform.tellurio.ai:443")
// authenticating with apiKey.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("rest request", zap.String("method", method), zap.String("endpoint", endpoint))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing %s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

// VerifyAPIKeyResult is the decoded body of a successful
// `/api/v0/verify-api-key/` call.
type VerifyAPIKeyResult struct {
	Email string `json:"email"`
}

// VerifyAPIKey calls GET /api/v0/verify-api-key/. A 401 response yields
// errkit.InvalidCredential.
func (c *Client) VerifyAPIKey(ctx context.Context) (*VerifyAPIKeyResult, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v0/verify-api-key/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result VerifyAPIKeyResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, errkit.NewProtocolError("decoding verify-api-key response: %v", err)
		}
		return &result, nil
	case http.StatusUnauthorized:
		return nil, errkit.NewInvalidCredential(fmt.Errorf("status %d", resp.StatusCode))
	default:
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected verify-api-key status %d: %s", resp.StatusCode, data)
	}
}

// Project is the decoded project resource under
// `/api/v0/{namespace}/projects/`.
type Project struct {
	Slug         string `json:"slug"`
	DisplayName  string `json:"display_name"`
	Visibility   string `json:"visibility"`
	NamespaceURL string `json:"namespace,omitempty"`
}

// GetProject fetches a project by its slugified display name, returning
// (nil, nil) when the project does not exist (HTTP 404).
func (c *Client) GetProject(ctx context.Context, namespace, slug string) (*Project, error) {
	endpoint := fmt.Sprintf("/api/v0/%s/projects/%s/", namespace, slug)
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected get-project status %d: %s", resp.StatusCode, data)
	}
	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, errkit.NewProtocolError("decoding project response: %v", err)
	}
	return &project, nil
}

// CreateProject creates a project with the given display name, always
// RESTRICTED visibility per run.py's get-or-create flow.
func (c *Client) CreateProject(ctx context.Context, namespace, displayName string) (*Project, error) {
	endpoint := fmt.Sprintf("/api/v0/%s/projects/", namespace)
	resp, err := c.do(ctx, http.MethodPost, endpoint, map[string]string{
		"display_name": displayName,
		"visibility":   "RESTRICTED",
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected create-project status %d: %s", resp.StatusCode, data)
	}
	var project Project
	if err := json.NewDecoder(resp.Body).Decode(&project); err != nil {
		return nil, errkit.NewProtocolError("decoding project response: %v", err)
	}
	return &project, nil
}

// RunResource is the decoded run resource returned by run creation.
type RunResource struct {
	UUID        string    `json:"uuid"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Org         struct {
		Slug string `json:"slug"`
	} `json:"org"`
	Project struct {
		Slug        string `json:"slug"`
		DisplayName string `json:"display_name"`
	} `json:"project"`
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// CreateRun creates a run under namespace/projectSlug.
func (c *Client) CreateRun(ctx context.Context, namespace, projectSlug, name, description, status string) (*RunResource, error) {
	endpoint := fmt.Sprintf("/api/v0/%s/projects/%s/runs/", namespace, projectSlug)
	resp, err := c.do(ctx, http.MethodPost, endpoint, map[string]string{
		"name":        name,
		"description": description,
		"status":      status,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("unexpected create-run status %d: %s", resp.StatusCode, data)
	}
	var run RunResource
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return nil, errkit.NewProtocolError("decoding run response: %v", err)
	}
	return &run, nil
}

// PatchRunStatus PATCHes a run's status, used by Run.finish() to mark a run
// COMPLETED.
func (c *Client) PatchRunStatus(ctx context.Context, namespace, projectSlug, runUUID, status string) error {
	endpoint := fmt.Sprintf("/api/v0/%s/projects/%s/runs/%s/", namespace, projectSlug, runUUID)
	resp, err := c.do(ctx, http.MethodPatch, endpoint, map[string]string{"status": status})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected patch-run status %d: %s", resp.StatusCode, data)
	}
	return nil
}
