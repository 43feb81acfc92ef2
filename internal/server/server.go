package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"rollplane/internal/domain"
	"rollplane/internal/engine"
	"rollplane/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"bad_request"`
	Message string         `json:"message" example:"database name is required"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Rollplane API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Rollplane API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerMetadata(group, cfg.Engine)
	registerPlans(group, cfg.Engine)
	registerRollouts(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var me *engine.EnvironmentMismatchError
	if errors.As(err, &me) {
		return newAPIError(http.StatusConflict, "environment_mismatch", err.Error(), map[string]any{"want": me.Want, "got": me.Got})
	}
	var ie *engine.InvalidError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusBadRequest, "bad_request", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerMetadata(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-environment",
		Method:      http.MethodPost,
		Path:        "/environments",
		Summary:     "Register an environment",
	}, func(ctx context.Context, input *struct {
		Body struct {
			ID        string `json:"id" example:"prod"`
			Title     string `json:"title,omitempty"`
			SortOrder int    `json:"sort_order,omitempty"`
		}
	}) (*struct {
		Body domain.Environment `json:"body"`
	}, error) {
		env, err := e.CreateEnvironment(ctx, input.Body.ID, input.Body.Title, input.Body.SortOrder, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Environment `json:"body"`
		}{Body: env}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-environments",
		Method:      http.MethodGet,
		Path:        "/environments",
		Summary:     "List environments",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Environment `json:"body"`
	}, error) {
		envs, err := e.Repo.ListEnvironments(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Environment `json:"body"`
		}{Body: envs}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-instance",
		Method:      http.MethodPost,
		Path:        "/instances",
		Summary:     "Register an instance",
	}, func(ctx context.Context, input *struct {
		Body struct {
			ID            string `json:"id" example:"inst1"`
			EnvironmentID string `json:"environment_id" example:"prod"`
			Engine        string `json:"engine" example:"MYSQL"`
			Title         string `json:"title,omitempty"`
			AdminUser     string `json:"admin_user,omitempty"`
		}
	}) (*struct {
		Body domain.Instance `json:"body"`
	}, error) {
		instance, err := e.CreateInstance(ctx, input.Body.ID, input.Body.EnvironmentID, domain.EngineType(input.Body.Engine), input.Body.Title, input.Body.AdminUser, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Instance `json:"body"`
		}{Body: instance}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-instances",
		Method:      http.MethodGet,
		Path:        "/instances",
		Summary:     "List instances",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Instance `json:"body"`
	}, error) {
		instances, err := e.Repo.ListInstances(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Instance `json:"body"`
		}{Body: instances}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-project",
		Method:      http.MethodPost,
		Path:        "/projects",
		Summary:     "Register a project",
	}, func(ctx context.Context, input *struct {
		Body struct {
			ID         string `json:"id" example:"shop"`
			Title      string `json:"title,omitempty"`
			TenantMode bool   `json:"tenant_mode,omitempty"`
		}
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		project, err := e.CreateProject(ctx, input.Body.ID, input.Body.Title, input.Body.TenantMode, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: project}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		projects, err := e.Repo.ListProjects(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-database",
		Method:      http.MethodPost,
		Path:        "/instances/{instance_id}/databases",
		Summary:     "Register a database",
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
		Body       struct {
			Name      string `json:"name" example:"shop"`
			ProjectID string `json:"project_id" example:"shop"`
		}
	}) (*struct {
		Body domain.Database `json:"body"`
	}, error) {
		database, err := e.CreateDatabase(ctx, input.InstanceID, input.Body.Name, input.Body.ProjectID, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Database `json:"body"`
		}{Body: database}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-databases",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/databases",
		Summary:     "List databases in a project",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Database `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		databases, err := e.Repo.ListDatabases(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Database `json:"body"`
		}{Body: databases}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-sheet",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/sheets",
		Summary:     "Create a sheet",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Title     string `json:"title,omitempty"`
			Statement string `json:"statement"`
		}
	}) (*struct {
		Body domain.Sheet `json:"body"`
	}, error) {
		sheet, err := e.CreateSheet(ctx, input.ProjectID, input.Body.Title, input.Body.Statement, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Sheet `json:"body"`
		}{Body: sheet}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-sheets",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/sheets",
		Summary:     "List sheets in a project",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []domain.Sheet `json:"body"`
	}, error) {
		if _, err := e.Repo.GetProject(ctx, input.ProjectID); err != nil {
			return nil, handleError(err)
		}
		sheets, err := e.Repo.ListSheets(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Sheet `json:"body"`
		}{Body: sheets}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-backup",
		Method:      http.MethodPost,
		Path:        "/instances/{instance_id}/databases/{database}/backups",
		Summary:     "Register a backup",
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
		Database   string `path:"database"`
		Body       struct {
			Name  string `json:"name" example:"nightly-1"`
			State string `json:"state,omitempty" enum:"PENDING_CREATE,DONE,FAILED"`
		}
	}) (*struct {
		Body domain.Backup `json:"body"`
	}, error) {
		backup, err := e.CreateBackup(ctx, input.InstanceID, input.Database, input.Body.Name, input.Body.State, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Backup `json:"body"`
		}{Body: backup}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-backups",
		Method:      http.MethodGet,
		Path:        "/instances/{instance_id}/databases/{database}/backups",
		Summary:     "List backups for a database",
	}, func(ctx context.Context, input *struct {
		InstanceID string `path:"instance_id"`
		Database   string `path:"database"`
	}) (*struct {
		Body []domain.Backup `json:"body"`
	}, error) {
		if _, err := e.Repo.GetDatabase(ctx, input.InstanceID, input.Database); err != nil {
			return nil, handleError(err)
		}
		backups, err := e.Repo.ListBackups(ctx, input.InstanceID, input.Database)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Backup `json:"body"`
		}{Body: backups}, nil
	})
}

func registerPlans(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "create-plan",
		Method:      http.MethodPost,
		Path:        "/projects/{project_id}/plans",
		Summary:     "Create a plan and compile its rollout",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		Body      struct {
			Title       string        `json:"title"`
			Description string        `json:"description,omitempty"`
			Steps       []domain.Step `json:"steps"`
		}
	}) (*struct {
		Body PlanBody `json:"body"`
	}, error) {
		plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
			ProjectID:   input.ProjectID,
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Steps:       input.Body.Steps,
			CreatorID:   e.Config.Actor.ID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanBody `json:"body"`
		}{Body: convertPlan(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-plan",
		Method:      http.MethodPatch,
		Path:        "/projects/{project_id}/plans/{plan_uid}",
		Summary:     "Update a plan's sheets",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		PlanUID   int64  `path:"plan_uid"`
		Body      struct {
			Steps []domain.Step `json:"steps"`
		}
	}) (*struct {
		Body PlanBody `json:"body"`
	}, error) {
		plan, err := e.UpdatePlan(ctx, input.ProjectID, input.PlanUID, input.Body.Steps, e.Config.Actor.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanBody `json:"body"`
		}{Body: convertPlan(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-plan",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/plans/{plan_uid}",
		Summary:     "Get a plan",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
		PlanUID   int64  `path:"plan_uid"`
	}) (*struct {
		Body PlanBody `json:"body"`
	}, error) {
		plan, err := e.GetPlan(ctx, input.ProjectID, input.PlanUID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PlanBody `json:"body"`
		}{Body: convertPlan(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-plans",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/plans",
		Summary:     "List plans",
	}, func(ctx context.Context, input *struct {
		ProjectID string `path:"project_id"`
	}) (*struct {
		Body []PlanBody `json:"body"`
	}, error) {
		plans, err := e.ListPlans(ctx, input.ProjectID)
		if err != nil {
			return nil, handleError(err)
		}
		bodies := make([]PlanBody, len(plans))
		for i, p := range plans {
			bodies[i] = convertPlan(p)
		}
		return &struct {
			Body []PlanBody `json:"body"`
		}{Body: bodies}, nil
	})
}

func registerRollouts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-rollout",
		Method:      http.MethodGet,
		Path:        "/projects/{project_id}/rollouts/{rollout_uid}",
		Summary:     "Get a rollout",
	}, func(ctx context.Context, input *struct {
		ProjectID  string `path:"project_id"`
		RolloutUID int64  `path:"rollout_uid"`
	}) (*struct {
		Body RolloutBody `json:"body"`
	}, error) {
		rollout, err := e.GetRollout(ctx, input.ProjectID, input.RolloutUID)
		if err != nil {
			return nil, handleError(err)
		}
		body, err := convertRollout(ctx, e, rollout)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RolloutBody `json:"body"`
		}{Body: body}, nil
	})
}
