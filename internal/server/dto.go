package server

import (
	"context"
	"encoding/json"
	"fmt"

	"rollplane/internal/domain"
	"rollplane/internal/engine"
)

// PlanBody is the wire representation of a plan.
type PlanBody struct {
	Name        string        `json:"name" example:"projects/shop/plans/1"`
	UID         string        `json:"uid"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Steps       []domain.Step `json:"steps"`
	Rollout     string        `json:"rollout,omitempty" example:"projects/shop/rollouts/1"`
	CreatedAt   string        `json:"created_at"`
	UpdatedAt   string        `json:"updated_at"`
}

// RolloutBody is the wire representation of a pipeline with its stages.
type RolloutBody struct {
	Name   string      `json:"name" example:"projects/shop/rollouts/1"`
	UID    string      `json:"uid"`
	Plan   string      `json:"plan,omitempty"`
	Title  string      `json:"title"`
	Stages []StageBody `json:"stages"`
}

type StageBody struct {
	Name        string     `json:"name"`
	UID         string     `json:"uid"`
	Environment string     `json:"environment" example:"environments/prod"`
	Title       string     `json:"title"`
	Tasks       []TaskBody `json:"tasks"`
}

type TaskBody struct {
	Name              string   `json:"name"`
	UID               string   `json:"uid"`
	Title             string   `json:"title"`
	SpecID            string   `json:"spec_id,omitempty"`
	Type              string   `json:"type"`
	Status            string   `json:"status"`
	Target            string   `json:"target"`
	Sheet             string   `json:"sheet,omitempty"`
	SchemaVersion     string   `json:"schema_version,omitempty"`
	RollbackEnabled   bool     `json:"rollback_enabled,omitempty"`
	RollbackSQLStatus string   `json:"rollback_sql_status,omitempty"`
	RollbackFromPlan  string   `json:"rollback_from_plan,omitempty"`
	RollbackFromTask  string   `json:"rollback_from_task,omitempty"`
	Backup            string   `json:"backup,omitempty"`
	PointInTimeTs     *int64   `json:"point_in_time_ts,omitempty"`
	TargetInstance    string   `json:"target_instance,omitempty"`
	DatabaseName      string   `json:"database_name,omitempty"`
	EarliestAllowedTs int64    `json:"earliest_allowed_ts,omitempty"`
	BlockedBy         []string `json:"blocked_by,omitempty"`
}

func convertPlan(p domain.Plan) PlanBody {
	body := PlanBody{
		Name:        engine.FormatPlanName(p.ProjectID, p.UID),
		UID:         fmt.Sprintf("%d", p.UID),
		Title:       p.Title,
		Description: p.Description,
		Steps:       p.Steps,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.PipelineUID != nil {
		body.Rollout = engine.FormatRolloutName(p.ProjectID, *p.PipelineUID)
	}
	return body
}

func convertRollout(ctx context.Context, e engine.Engine, r engine.Rollout) (RolloutBody, error) {
	body := RolloutBody{
		Name:  engine.FormatRolloutName(r.ProjectID, r.UID),
		UID:   fmt.Sprintf("%d", r.UID),
		Title: r.Title,
	}
	if r.PlanUID != nil {
		body.Plan = engine.FormatPlanName(r.ProjectID, *r.PlanUID)
	}
	for _, stage := range r.Stages {
		stageBody := StageBody{
			Name:        engine.FormatStageName(r.ProjectID, r.UID, stage.Stage.UID),
			UID:         fmt.Sprintf("%d", stage.Stage.UID),
			Environment: engine.FormatEnvironmentName(stage.Stage.EnvironmentID),
			Title:       stage.Stage.Name,
		}
		for _, task := range stage.Tasks {
			taskBody, err := convertTask(ctx, e, r.ProjectID, r.UID, task)
			if err != nil {
				return RolloutBody{}, err
			}
			stageBody.Tasks = append(stageBody.Tasks, taskBody)
		}
		body.Stages = append(body.Stages, stageBody)
	}
	return body, nil
}

func convertTask(ctx context.Context, e engine.Engine, projectID string, rolloutUID int64, t domain.Task) (TaskBody, error) {
	body := TaskBody{
		Name:              engine.FormatTaskName(projectID, rolloutUID, t.StageUID, t.UID),
		UID:               fmt.Sprintf("%d", t.UID),
		Title:             t.Name,
		Type:              string(t.Type),
		Status:            engine.RenderTaskStatus(t),
		Target:            engine.FormatInstanceName(t.InstanceID),
		EarliestAllowedTs: t.EarliestAllowedTs,
	}
	if t.DatabaseName != nil {
		body.Target = engine.FormatDatabaseName(t.InstanceID, *t.DatabaseName)
	}
	for _, from := range t.BlockedBy {
		body.BlockedBy = append(body.BlockedBy, engine.FormatTaskName(projectID, rolloutUID, t.StageUID, from))
	}

	switch t.Type {
	case domain.TaskDatabaseCreate:
		var p domain.CreateDatabasePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		body.Sheet = engine.FormatSheetName(p.ProjectID, p.SheetUID)
		body.SchemaVersion = p.SchemaVersion
		body.DatabaseName = p.DatabaseName
	case domain.TaskDatabaseSchemaBaseline:
		var p domain.SchemaBaselinePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		body.SchemaVersion = p.SchemaVersion
	case domain.TaskDatabaseSchemaUpdate, domain.TaskDatabaseSchemaUpdateSDL, domain.TaskDatabaseSchemaUpdateGhostSync:
		var p domain.SchemaUpdatePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		body.Sheet = engine.FormatSheetName(projectID, p.SheetUID)
		body.SchemaVersion = p.SchemaVersion
	case domain.TaskDatabaseSchemaUpdateGhostCutover:
		var p domain.SchemaUpdateGhostCutoverPayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
	case domain.TaskDatabaseDataUpdate:
		var p domain.DataUpdatePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		body.Sheet = engine.FormatSheetName(projectID, p.SheetUID)
		body.SchemaVersion = p.SchemaVersion
		body.RollbackEnabled = p.RollbackEnabled
		body.RollbackSQLStatus = string(p.RollbackSQLStatus)
		if p.RollbackFromPlanUID != nil {
			body.RollbackFromPlan = engine.FormatPlanName(projectID, *p.RollbackFromPlanUID)
		}
		if p.RollbackFromTaskUID != nil {
			from, err := e.Repo.GetTask(ctx, *p.RollbackFromTaskUID)
			if err != nil {
				return TaskBody{}, fmt.Errorf("rollback source task %d: %w", *p.RollbackFromTaskUID, err)
			}
			body.RollbackFromTask = engine.FormatTaskName(projectID, from.PipelineUID, from.StageUID, from.UID)
		}
	case domain.TaskDatabaseBackup:
		var p domain.BackupPayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		backup, err := e.Repo.GetBackup(ctx, p.BackupUID)
		if err != nil {
			return TaskBody{}, fmt.Errorf("backup %d: %w", p.BackupUID, err)
		}
		body.Backup = engine.FormatBackupName(backup.InstanceID, backup.DatabaseName, backup.Name)
	case domain.TaskDatabaseRestoreRestore:
		var p domain.RestorePayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
		body.DatabaseName = p.DatabaseName
		body.PointInTimeTs = p.PointInTimeTs
		if p.TargetInstanceID != nil {
			body.TargetInstance = engine.FormatInstanceName(*p.TargetInstanceID)
		}
		if p.BackupUID != nil {
			backup, err := e.Repo.GetBackup(ctx, *p.BackupUID)
			if err != nil {
				return TaskBody{}, fmt.Errorf("backup %d: %w", *p.BackupUID, err)
			}
			body.Backup = engine.FormatBackupName(backup.InstanceID, backup.DatabaseName, backup.Name)
		}
	case domain.TaskDatabaseRestoreCutover:
		var p domain.RestoreCutoverPayload
		if err := json.Unmarshal([]byte(t.Payload), &p); err != nil {
			return TaskBody{}, fmt.Errorf("unmarshal task %d payload: %w", t.UID, err)
		}
		body.SpecID = p.SpecID
	}
	return body, nil
}
