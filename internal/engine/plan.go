package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"rollplane/internal/domain"
	"rollplane/internal/events"
)

// PlanCreateOptions are parameters for creating a plan.
type PlanCreateOptions struct {
	ProjectID   string
	Title       string
	Description string
	Steps       []domain.Step
	CreatorID   string
}

// CreatePlan compiles the steps into a pipeline, persists both in one
// transaction, and returns the stored plan.
func (e Engine) CreatePlan(ctx context.Context, opts PlanCreateOptions) (domain.Plan, error) {
	if opts.Title == "" {
		return domain.Plan{}, invalidf("plan title is required")
	}
	project, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("project %q: %w", opts.ProjectID, err)
	}

	pipelineCreate, err := e.compilePipeline(ctx, opts.Steps, project)
	if err != nil {
		return domain.Plan{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()

	pipelineUID, err := e.materializePipeline(ctx, tx, pipelineCreate, opts.CreatorID)
	if err != nil {
		return domain.Plan{}, err
	}

	now := e.nowRFC3339()
	plan := domain.Plan{
		ProjectID:   project.ID,
		PipelineUID: &pipelineUID,
		Title:       opts.Title,
		Description: opts.Description,
		Steps:       opts.Steps,
		CreatorID:   opts.CreatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	planUID, err := e.Repo.InsertPlanTx(ctx, tx, plan)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	plan.UID = planUID

	if err := e.Events.Append(ctx, tx, events.TypePlanCreated, project.ID, "plan", fmt.Sprintf("%d", planUID), opts.CreatorID,
		events.EventPayload{"title": plan.Title, "pipeline_uid": pipelineUID}); err != nil {
		return domain.Plan{}, err
	}
	if err := e.Events.Append(ctx, tx, events.TypeRolloutCreated, project.ID, "rollout", fmt.Sprintf("%d", pipelineUID), opts.CreatorID,
		events.EventPayload{"stages": len(pipelineCreate.StageList)}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (e Engine) GetPlan(ctx context.Context, projectID string, uid int64) (domain.Plan, error) {
	plan, err := e.Repo.GetPlan(ctx, projectID, uid)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan %d: %w", uid, err)
	}
	return plan, nil
}

func (e Engine) ListPlans(ctx context.Context, projectID string) ([]domain.Plan, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return nil, fmt.Errorf("project %q: %w", projectID, err)
	}
	return e.Repo.ListPlans(ctx, projectID)
}

// Task types whose payload sheet pointer follows the plan's sheet reference.
var sheetPatchableTaskTypes = map[domain.TaskType]bool{
	domain.TaskDatabaseSchemaUpdate:          true,
	domain.TaskDatabaseSchemaUpdateSDL:       true,
	domain.TaskDatabaseSchemaUpdateGhostSync: true,
	domain.TaskDatabaseDataUpdate:            true,
}

// UpdatePlan replaces the plan's steps. The only legal change is swapping the
// sheet of existing change specs; adding or removing specs is rejected. The
// diff-and-patch sequence runs in one transaction.
func (e Engine) UpdatePlan(ctx context.Context, projectID string, uid int64, newSteps []domain.Step, updaterID string) (domain.Plan, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()

	oldPlan, err := e.Repo.GetPlanTx(ctx, tx, projectID, uid)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("plan %d: %w", uid, err)
	}

	removed, added, updated := diffSpecs(oldPlan.Steps, newSteps)
	if len(removed) > 0 {
		return domain.Plan{}, invalidf("cannot remove specs from plan")
	}
	if len(added) > 0 {
		return domain.Plan{}, invalidf("cannot add specs to plan")
	}
	if len(updated) == 0 {
		return domain.Plan{}, invalidf("no specs updated")
	}

	updatedByID := make(map[string]domain.Spec)
	for _, spec := range updated {
		updatedByID[spec.ID] = spec
	}

	if oldPlan.PipelineUID != nil {
		tasks, err := e.Repo.ListTasksByPipelineTx(ctx, tx, *oldPlan.PipelineUID)
		if err != nil {
			return domain.Plan{}, fmt.Errorf("list tasks: %w", err)
		}
		for _, task := range tasks {
			if !sheetPatchableTaskTypes[task.Type] {
				continue
			}
			var taskPayload struct {
				SpecID string `json:"spec_id"`
			}
			if err := json.Unmarshal([]byte(task.Payload), &taskPayload); err != nil {
				return domain.Plan{}, fmt.Errorf("unmarshal task %d payload: %w", task.UID, err)
			}
			spec, ok := updatedByID[taskPayload.SpecID]
			if !ok {
				continue
			}
			if spec.ChangeDatabase == nil {
				continue
			}
			_, sheetUID, err := ParseSheetName(spec.ChangeDatabase.Sheet)
			if err != nil {
				return domain.Plan{}, fmt.Errorf("get sheet id from %q: %w", spec.ChangeDatabase.Sheet, err)
			}
			sheet, err := e.Repo.GetSheetTx(ctx, tx, sheetUID)
			if err != nil {
				return domain.Plan{}, fmt.Errorf("sheet %d: %w", sheetUID, err)
			}
			patched, err := patchPayloadSheet(task.Payload, sheet.UID)
			if err != nil {
				return domain.Plan{}, fmt.Errorf("patch task %d payload: %w", task.UID, err)
			}
			if err := e.Repo.UpdateTaskPayloadTx(ctx, tx, task.UID, patched); err != nil {
				return domain.Plan{}, fmt.Errorf("update task %d: %w", task.UID, err)
			}
		}
	}

	now := e.nowRFC3339()
	if err := e.Repo.UpdatePlanStepsTx(ctx, tx, oldPlan.UID, newSteps, now); err != nil {
		return domain.Plan{}, fmt.Errorf("update plan %d: %w", oldPlan.UID, err)
	}
	if err := e.Events.Append(ctx, tx, events.TypePlanUpdated, projectID, "plan", fmt.Sprintf("%d", oldPlan.UID), updaterID,
		events.EventPayload{"updated_specs": len(updated)}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}

	oldPlan.Steps = newSteps
	oldPlan.UpdatedAt = now
	return oldPlan, nil
}

// patchPayloadSheet rewrites only the sheet pointer of a task payload,
// leaving every other field untouched.
func patchPayloadSheet(payload string, sheetUID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return "", err
	}
	m["sheet_uid"] = sheetUID
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
