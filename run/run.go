// Package run implements the Run Context of spec.md §4.7, supplemented
// from afnio/tellurio/run.py and run_context.py: Status, the
// Org/Project/User value objects attached to a Run, and
// Init's get-or-create-project-then-create-run flow.
package run

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tellurio-ai/tellurio-go/restapi"
)

// Status mirrors afnio/tellurio/run.py's RunStatus enum.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCrashed   Status = "CRASHED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Org is the namespace (organization or user) a Run belongs to.
type Org struct {
	Slug string
}

// Project is the project a Run belongs to.
type Project struct {
	DisplayName string
	Slug        string
}

// User is the run's owning user.
type User struct {
	Username string
	Email    string
}

// Run is a Tellurio Run: identity, status and the organization/project/user
// it belongs to.
type Run struct {
	mu sync.Mutex

	client *restapi.Client

	UUID        string
	Name        string
	Description string
	Status      Status
	CreatedAt   time.Time

	Org     Org
	Project Project
	User    User
}

// activeRunID is the process-wide optional active-run id of spec.md
// §4.7, guarded by its own mutex independent of any individual Run.
var (
	activeRunMu  sync.Mutex
	activeRunID  string
	hasActiveRun bool
)

// SetActiveRunUUID sets the process-wide active run id. Passing "" clears
// it, mirroring set_active_run_uuid(None).
func SetActiveRunUUID(uuid string) {
	activeRunMu.Lock()
	defer activeRunMu.Unlock()
	activeRunID = uuid
	hasActiveRun = uuid != ""
}

// ActiveRunUUID returns the active run id, or an error if none is set,
// mirroring get_active_run_uuid's raise-on-unset behavior.
func ActiveRunUUID() (string, error) {
	activeRunMu.Lock()
	defer activeRunMu.Unlock()
	if !hasActiveRun {
		return "", fmt.Errorf("no active run UUID is set")
	}
	return activeRunID, nil
}

// Init ensures a project exists under namespace (creating one with
// RESTRICTED visibility if necessary), creates a run, sets it as the active
// run, and returns it. name/description may be empty.
func Init(ctx context.Context, client *restapi.Client, namespace, projectDisplayName, name, description string, logger *zap.Logger) (*Run, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	projectSlug := slugify(projectDisplayName)

	project, err := client.GetProject(ctx, namespace, projectSlug)
	if err != nil {
		return nil, err
	}
	if project == nil {
		logger.Info("project does not exist, creating with RESTRICTED visibility",
			zap.String("namespace", namespace), zap.String("slug", projectSlug))
		project, err = client.CreateProject(ctx, namespace, projectDisplayName)
		if err != nil {
			return nil, err
		}
	}

	resource, err := client.CreateRun(ctx, namespace, project.Slug, name, description, string(StatusRunning))
	if err != nil {
		return nil, err
	}

	r := &Run{
		client:      client,
		UUID:        resource.UUID,
		Name:        resource.Name,
		Description: resource.Description,
		Status:      Status(resource.Status),
		CreatedAt:   resource.CreatedAt,
		Org:         Org{Slug: namespace},
		Project:     Project{DisplayName: resource.Project.DisplayName, Slug: resource.Project.Slug},
		User:        User{Username: resource.User.Username, Email: resource.User.Email},
	}
	SetActiveRunUUID(r.UUID)
	logger.Info("run created", zap.String("name", r.Name), zap.String("uuid", r.UUID))
	return r, nil
}

// Finish marks the run COMPLETED via PATCH and clears the active run id.
// Idempotent: a Run already COMPLETED is left as-is and still clears the
// active run id, matching finish()'s unconditional set_active_run_uuid(None)
// in a finally-equivalent best-effort.
func (r *Run) Finish(ctx context.Context) error {
	defer SetActiveRunUUID("")

	r.mu.Lock()
	status := r.Status
	namespace := r.Org.Slug
	projectSlug := r.Project.Slug
	uuid := r.UUID
	r.mu.Unlock()

	if status != StatusCompleted {
		if err := r.client.PatchRunStatus(ctx, namespace, projectSlug, uuid, string(StatusCompleted)); err != nil {
			return err
		}
		r.mu.Lock()
		r.Status = StatusCompleted
		r.mu.Unlock()
	}

	return nil
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// slugify lowercases s and collapses runs of non-alphanumeric characters
// into a single hyphen, trimming leading/trailing hyphens. No slug library
// appears in the example pack's complete repos; see DESIGN.md.
func slugify(s string) string {
	lowered := strings.ToLower(s)
	replaced := slugInvalid.ReplaceAllString(lowered, "-")
	return strings.Trim(replaced, "-")
}
