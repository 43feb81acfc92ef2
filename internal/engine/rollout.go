package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"rollplane/internal/domain"
	"rollplane/internal/repo"
)

// Rollout is the composed read model of a pipeline: its stages with their
// tasks, each task carrying its blocked-by list.
type Rollout struct {
	UID       int64
	ProjectID string
	PlanUID   *int64
	Title     string
	Stages    []RolloutStage
}

type RolloutStage struct {
	Stage domain.Stage
	Tasks []domain.Task
}

// materializePipeline persists a compiled pipeline inside the caller's
// transaction: generated sheets first, then the pipeline, its stages, tasks,
// and DAG edges. Any failure rolls back everything.
func (e Engine) materializePipeline(ctx context.Context, tx *sql.Tx, pc *PipelineCreate, creatorID string) (int64, error) {
	now := e.nowRFC3339()
	pipelineUID, err := e.Repo.InsertPipelineTx(ctx, tx, domain.Pipeline{
		Name:      pc.Name,
		CreatorID: creatorID,
		CreatedAt: now,
	})
	if err != nil {
		return 0, fmt.Errorf("insert pipeline: %w", err)
	}

	for _, stageCreate := range pc.StageList {
		stageUID, err := e.Repo.InsertStageTx(ctx, tx, domain.Stage{
			PipelineUID:   pipelineUID,
			EnvironmentID: stageCreate.EnvironmentID,
			Name:          stageCreate.Name,
		})
		if err != nil {
			return 0, fmt.Errorf("insert stage %q: %w", stageCreate.Name, err)
		}

		taskUIDs := make([]int64, len(stageCreate.TaskList))
		for i, taskCreate := range stageCreate.TaskList {
			payload := taskCreate.Payload
			if taskCreate.sheetDraft != nil {
				sheetUID, err := e.Repo.InsertSheetTx(ctx, tx, *taskCreate.sheetDraft)
				if err != nil {
					return 0, fmt.Errorf("insert sheet for task %q: %w", taskCreate.Name, err)
				}
				taskCreate.createPayload.SheetUID = sheetUID
				payload, err = marshalPayload(taskCreate.createPayload)
				if err != nil {
					return 0, err
				}
			}
			taskUID, err := e.Repo.InsertTaskTx(ctx, tx, domain.Task{
				PipelineUID:       pipelineUID,
				StageUID:          stageUID,
				InstanceID:        taskCreate.InstanceID,
				DatabaseName:      taskCreate.DatabaseName,
				Name:              taskCreate.Name,
				Type:              taskCreate.Type,
				Status:            domain.TaskPendingApproval,
				Payload:           payload,
				EarliestAllowedTs: taskCreate.EarliestAllowedTs,
				CreatorID:         creatorID,
				CreatedAt:         now,
			})
			if err != nil {
				return 0, fmt.Errorf("insert task %q: %w", taskCreate.Name, err)
			}
			taskUIDs[i] = taskUID
		}

		for _, edge := range stageCreate.TaskIndexDAGList {
			if edge.From < 0 || edge.From >= len(taskUIDs) || edge.To < 0 || edge.To >= len(taskUIDs) {
				return 0, fmt.Errorf("task index dag edge (%d,%d) out of range for stage %q with %d tasks", edge.From, edge.To, stageCreate.Name, len(taskUIDs))
			}
			if err := e.Repo.InsertTaskDAGTx(ctx, tx, domain.TaskDAGEdge{
				FromTaskUID: taskUIDs[edge.From],
				ToTaskUID:   taskUIDs[edge.To],
			}); err != nil {
				return 0, fmt.Errorf("insert task dag edge: %w", err)
			}
		}
	}
	return pipelineUID, nil
}

// GetRollout rehydrates a pipeline into stages with their tasks and
// blocked-by lists. Dangling stage or dependency references are integrity
// errors.
func (e Engine) GetRollout(ctx context.Context, projectID string, uid int64) (Rollout, error) {
	pipeline, err := e.Repo.GetPipeline(ctx, uid)
	if err != nil {
		return Rollout{}, fmt.Errorf("rollout %d: %w", uid, err)
	}

	rollout := Rollout{
		UID:       pipeline.UID,
		ProjectID: projectID,
		Title:     pipeline.Name,
	}
	plan, err := e.Repo.GetPlanByPipeline(ctx, pipeline.UID)
	switch {
	case err == nil:
		if plan.ProjectID != projectID {
			return Rollout{}, fmt.Errorf("rollout %d in project %q: %w", uid, projectID, repo.ErrNotFound)
		}
		rollout.PlanUID = &plan.UID
	case errors.Is(err, repo.ErrNotFound):
		// A pipeline without a plan is legal.
	default:
		return Rollout{}, fmt.Errorf("plan for rollout %d: %w", uid, err)
	}

	stages, err := e.Repo.ListStagesByPipeline(ctx, uid)
	if err != nil {
		return Rollout{}, fmt.Errorf("list stages: %w", err)
	}
	tasks, err := e.Repo.ListTasksByPipeline(ctx, uid)
	if err != nil {
		return Rollout{}, fmt.Errorf("list tasks: %w", err)
	}
	edges, err := e.Repo.ListTaskDAGsByPipeline(ctx, uid)
	if err != nil {
		return Rollout{}, fmt.Errorf("list task dag edges: %w", err)
	}

	taskByUID := make(map[int64]*domain.Task, len(tasks))
	for i := range tasks {
		taskByUID[tasks[i].UID] = &tasks[i]
	}
	for _, edge := range edges {
		to, ok := taskByUID[edge.ToTaskUID]
		if !ok {
			return Rollout{}, fmt.Errorf("task dag edge references unknown task %d", edge.ToTaskUID)
		}
		if _, ok := taskByUID[edge.FromTaskUID]; !ok {
			return Rollout{}, fmt.Errorf("task dag edge references unknown task %d", edge.FromTaskUID)
		}
		to.BlockedBy = append(to.BlockedBy, edge.FromTaskUID)
	}

	stageIndex := make(map[int64]int, len(stages))
	rollout.Stages = make([]RolloutStage, len(stages))
	for i, stage := range stages {
		stageIndex[stage.UID] = i
		rollout.Stages[i] = RolloutStage{Stage: stage}
	}
	for i := range tasks {
		idx, ok := stageIndex[tasks[i].StageUID]
		if !ok {
			return Rollout{}, fmt.Errorf("task %d references unknown stage %d", tasks[i].UID, tasks[i].StageUID)
		}
		rollout.Stages[idx].Tasks = append(rollout.Stages[idx].Tasks, tasks[i])
	}
	return rollout, nil
}

// RenderTaskStatus is the wire-level task status. A RUNNING task whose
// payload carries the skipped flag renders as SKIPPED.
func RenderTaskStatus(t domain.Task) string {
	if t.Status == domain.TaskRunning {
		var p struct {
			Skipped bool `json:"skipped"`
		}
		if err := json.Unmarshal([]byte(t.Payload), &p); err == nil && p.Skipped {
			return "SKIPPED"
		}
	}
	return string(t.Status)
}
