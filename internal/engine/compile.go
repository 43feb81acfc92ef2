package engine

import (
	"context"
	"errors"
	"fmt"

	"rollplane/internal/domain"
)

// StageCreate is one compiled stage: the tasks of one step, all bound to a
// single environment, plus the blocking edges between them in stage-local
// indices.
type StageCreate struct {
	EnvironmentID    string
	Name             string
	TaskList         []TaskCreate
	TaskIndexDAGList []IndexEdge
}

// PipelineCreate is the compiled form of a plan, ready to be materialized.
type PipelineCreate struct {
	Name      string
	StageList []StageCreate
}

// translateEdges shifts spec-local edge indices into stage-local indices.
// The offset is the number of tasks already in the stage before the spec's
// tasks are appended.
func translateEdges(edges []IndexEdge, offset int) []IndexEdge {
	translated := make([]IndexEdge, len(edges))
	for i, edge := range edges {
		translated[i] = IndexEdge{From: edge.From + offset, To: edge.To + offset}
	}
	return translated
}

// validateSteps runs plan-level checks before compilation. Target uniqueness
// within a step is deliberately not enforced; duplicate targets execute in
// list order.
func validateSteps(steps []domain.Step) error {
	if len(steps) == 0 {
		return invalidf("plan has no steps")
	}
	return nil
}

// compilePipeline expands every spec of every step and assembles the stages.
// A step whose specs produce no tasks is dropped; a plan compiling to zero
// stages is an error.
func (e Engine) compilePipeline(ctx context.Context, steps []domain.Step, project domain.Project) (*PipelineCreate, error) {
	if err := validateSteps(steps); err != nil {
		return nil, err
	}
	pipelineCreate := &PipelineCreate{
		Name: "Rollout Pipeline",
	}
	for _, step := range steps {
		stageCreate := StageCreate{}

		var stageEnvironmentID string
		registerEnvironmentID := func(environmentID string) error {
			if stageEnvironmentID == "" {
				stageEnvironmentID = environmentID
				return nil
			}
			if stageEnvironmentID != environmentID {
				return &EnvironmentMismatchError{Want: stageEnvironmentID, Got: environmentID}
			}
			return nil
		}

		for _, spec := range step.Specs {
			taskCreates, indexEdges, err := e.taskCreatesFromSpec(ctx, spec, project, registerEnvironmentID)
			if err != nil {
				var mismatch *EnvironmentMismatchError
				if errors.As(err, &mismatch) && mismatch.StageName == "" {
					// The stage is bound to the first environment seen.
					if environment, envErr := e.Repo.GetEnvironment(ctx, mismatch.Want); envErr == nil {
						mismatch.StageName = fmt.Sprintf("%s Stage", environment.Title)
					}
				}
				return nil, fmt.Errorf("get task creates from spec %s: %w", spec.ID, err)
			}

			offset := len(stageCreate.TaskList)
			stageCreate.TaskList = append(stageCreate.TaskList, taskCreates...)
			stageCreate.TaskIndexDAGList = append(stageCreate.TaskIndexDAGList, translateEdges(indexEdges, offset)...)
		}

		if len(stageCreate.TaskList) == 0 {
			continue
		}

		environment, err := e.Repo.GetEnvironment(ctx, stageEnvironmentID)
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", stageEnvironmentID, err)
		}
		stageCreate.EnvironmentID = environment.ID
		stageCreate.Name = fmt.Sprintf("%s Stage", environment.Title)

		pipelineCreate.StageList = append(pipelineCreate.StageList, stageCreate)
	}
	if len(pipelineCreate.StageList) == 0 {
		return nil, invalidf("plan compiles to an empty pipeline")
	}
	return pipelineCreate, nil
}
