package engine_test

import (
	"encoding/json"
	"errors"
	"testing"

	"rollplane/internal/domain"
	"rollplane/internal/engine"
	"rollplane/internal/repo"
)

func TestRestoreToNewDatabase(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	backup, err := e.CreateBackup(ctx, "mysql-prod", "shop_db", "nightly", "", "tester")
	if err != nil {
		t.Fatalf("create backup: %v", err)
	}

	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "restore to clone",
		Steps: []domain.Step{{Specs: []domain.Spec{{
			ID: "spec-restore",
			RestoreDatabase: &domain.RestoreDatabaseConfig{
				Target: "instances/mysql-prod/databases/shop_db",
				Source: &domain.RestoreSource{
					Backup: engine.FormatBackupName("mysql-prod", "shop_db", "nightly"),
				},
				CreateDatabase: &domain.CreateDatabaseConfig{
					Target:       "instances/mysql-prod",
					Database:     "shop_clone",
					CharacterSet: "utf8mb4",
					Collation:    "utf8mb4_general_ci",
				},
			},
		}}}},
		CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	rollout, err := e.GetRollout(ctx, "shop", *plan.PipelineUID)
	if err != nil {
		t.Fatalf("get rollout: %v", err)
	}
	tasks := rollout.Stages[0].Tasks
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Type != domain.TaskDatabaseCreate || tasks[0].Name != "Create database shop_clone" {
		t.Fatalf("unexpected create task: %+v", tasks[0])
	}
	if tasks[1].Type != domain.TaskDatabaseRestoreRestore || tasks[1].Name != `Restore to new database "shop_clone"` {
		t.Fatalf("unexpected restore task: %+v", tasks[1])
	}
	if len(tasks[1].BlockedBy) != 1 || tasks[1].BlockedBy[0] != tasks[0].UID {
		t.Fatalf("restore blocked by %v, want [%d]", tasks[1].BlockedBy, tasks[0].UID)
	}
	var payload domain.RestorePayload
	if err := json.Unmarshal([]byte(tasks[1].Payload), &payload); err != nil {
		t.Fatalf("unmarshal restore payload: %v", err)
	}
	if payload.BackupUID == nil || *payload.BackupUID != backup.UID {
		t.Fatalf("restore backup uid = %v, want %d", payload.BackupUID, backup.UID)
	}
	if payload.TargetInstanceID == nil || *payload.TargetInstanceID != "mysql-prod" {
		t.Fatalf("restore target instance = %v", payload.TargetInstanceID)
	}
	if payload.PointInTimeTs != nil {
		t.Fatalf("backup restore must not carry a point in time")
	}
}

func TestInPlacePointInTimeRestore(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx

	ts := int64(1704067200)
	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "pitr",
		Steps: []domain.Step{{Specs: []domain.Spec{{
			ID: "spec-pitr",
			RestoreDatabase: &domain.RestoreDatabaseConfig{
				Target: "instances/mysql-prod/databases/shop_db",
				Source: &domain.RestoreSource{PointInTimeTs: &ts},
			},
		}}}},
		CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	rollout, err := e.GetRollout(ctx, "shop", *plan.PipelineUID)
	if err != nil {
		t.Fatalf("get rollout: %v", err)
	}
	tasks := rollout.Stages[0].Tasks
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != `Restore to PITR database "shop_db"` || tasks[0].Type != domain.TaskDatabaseRestoreRestore {
		t.Fatalf("unexpected restore task: %+v", tasks[0])
	}
	if tasks[1].Name != `Swap PITR and the original database "shop_db"` || tasks[1].Type != domain.TaskDatabaseRestoreCutover {
		t.Fatalf("unexpected cutover task: %+v", tasks[1])
	}
	if len(tasks[1].BlockedBy) != 1 || tasks[1].BlockedBy[0] != tasks[0].UID {
		t.Fatalf("cutover blocked by %v, want [%d]", tasks[1].BlockedBy, tasks[0].UID)
	}
	var payload domain.RestorePayload
	if err := json.Unmarshal([]byte(tasks[0].Payload), &payload); err != nil {
		t.Fatalf("unmarshal restore payload: %v", err)
	}
	if payload.PointInTimeTs == nil || *payload.PointInTimeTs != ts {
		t.Fatalf("point in time = %v, want %d", payload.PointInTimeTs, ts)
	}
}

func TestRestoreSourceExactlyOne(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	ts := int64(1704067200)

	cases := []struct {
		name   string
		source *domain.RestoreSource
	}{
		{"both", &domain.RestoreSource{Backup: engine.FormatBackupName("mysql-prod", "shop_db", "nightly"), PointInTimeTs: &ts}},
		{"neither", &domain.RestoreSource{}},
		{"missing", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
				ProjectID: "shop",
				Title:     "bad restore",
				Steps: []domain.Step{{Specs: []domain.Spec{{
					ID: "spec-bad",
					RestoreDatabase: &domain.RestoreDatabaseConfig{
						Target: "instances/mysql-prod/databases/shop_db",
						Source: tc.source,
					},
				}}}},
				CreatorID: "tester",
			})
			var ie *engine.InvalidError
			if !asInvalid(err, &ie) {
				t.Fatalf("expected invalid error, got %v", err)
			}
		})
	}
}

func TestRestoreRejectsForeignDatabase(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	if _, err := e.CreateProject(ctx, "other", "Other", false, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := e.CreateDatabase(ctx, "mysql-prod", "other_db", "other", "tester"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	ts := int64(1704067200)

	_, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "cross project",
		Steps: []domain.Step{{Specs: []domain.Spec{{
			ID: "spec-cross",
			RestoreDatabase: &domain.RestoreDatabaseConfig{
				Target: "instances/mysql-prod/databases/other_db",
				Source: &domain.RestoreSource{PointInTimeTs: &ts},
			},
		}}}},
		CreatorID: "tester",
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestGetRolloutScopedToProject(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	sheet := seedSheet(t, env, "SELECT 1;")

	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "scoped",
		Steps: []domain.Step{{Specs: []domain.Spec{
			migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", engine.FormatSheetName("shop", sheet.UID)),
		}}},
		CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, err := e.CreateProject(ctx, "other", "Other", false, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	_, err = e.GetRollout(ctx, "other", *plan.PipelineUID)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRenderTaskStatus(t *testing.T) {
	running := domain.Task{Status: domain.TaskRunning, Payload: `{"spec_id":"s","skipped":true}`}
	if got := engine.RenderTaskStatus(running); got != "SKIPPED" {
		t.Fatalf("skipped running task renders %q", got)
	}
	running.Payload = `{"spec_id":"s"}`
	if got := engine.RenderTaskStatus(running); got != "RUNNING" {
		t.Fatalf("running task renders %q", got)
	}
	done := domain.Task{Status: domain.TaskDone, Payload: `{"skipped":true}`}
	if got := engine.RenderTaskStatus(done); got != "DONE" {
		t.Fatalf("done task renders %q", got)
	}
}
