package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"rollplane/internal/config"
	"rollplane/internal/db"
	"rollplane/internal/domain"
	"rollplane/internal/engine"
	"rollplane/internal/events"
	"rollplane/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

// seedTopology registers two environments with one MySQL instance each, a
// project, and a database per instance.
func seedTopology(t *testing.T, env testEnv) {
	t.Helper()
	e, ctx := env.Engine, env.Ctx
	if _, err := e.CreateEnvironment(ctx, "dev", "Dev", 0, "tester"); err != nil {
		t.Fatalf("create dev: %v", err)
	}
	if _, err := e.CreateEnvironment(ctx, "prod", "Prod", 1, "tester"); err != nil {
		t.Fatalf("create prod: %v", err)
	}
	if _, err := e.CreateInstance(ctx, "mysql-dev", "dev", domain.EngineMySQL, "MySQL Dev", "root", "tester"); err != nil {
		t.Fatalf("create mysql-dev: %v", err)
	}
	if _, err := e.CreateInstance(ctx, "mysql-prod", "prod", domain.EngineMySQL, "MySQL Prod", "root", "tester"); err != nil {
		t.Fatalf("create mysql-prod: %v", err)
	}
	if _, err := e.CreateProject(ctx, "shop", "Shop", false, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := e.CreateDatabase(ctx, "mysql-dev", "shop_dev", "shop", "tester"); err != nil {
		t.Fatalf("create shop_dev: %v", err)
	}
	if _, err := e.CreateDatabase(ctx, "mysql-prod", "shop_db", "shop", "tester"); err != nil {
		t.Fatalf("create shop_db: %v", err)
	}
}

func seedSheet(t *testing.T, env testEnv, statement string) domain.Sheet {
	t.Helper()
	sheet, err := env.Engine.CreateSheet(env.Ctx, "shop", "change", statement, "tester")
	if err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	return sheet
}

func asInvalid(err error, target **engine.InvalidError) bool {
	return errors.As(err, target)
}

func migrateSpec(id, target, sheetName string) domain.Spec {
	return domain.Spec{
		ID: id,
		ChangeDatabase: &domain.ChangeDatabaseConfig{
			Target:        target,
			Sheet:         sheetName,
			Type:          domain.ChangeMigrate,
			SchemaVersion: "v1",
		},
	}
}

func TestCreatePlanCompilesRollout(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	sheet := seedSheet(t, env, "ALTER TABLE orders ADD COLUMN note TEXT;")
	e, ctx := env.Engine, env.Ctx

	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "Add note column",
		Steps: []domain.Step{
			{Specs: []domain.Spec{{
				ID: "spec-create",
				CreateDatabase: &domain.CreateDatabaseConfig{
					Target:       "instances/mysql-dev",
					Database:     "newdb",
					CharacterSet: "utf8mb4",
					Collation:    "utf8mb4_general_ci",
				},
			}}},
			{Specs: []domain.Spec{migrateSpec("spec-migrate", "instances/mysql-prod/databases/shop_db", engine.FormatSheetName("shop", sheet.UID))}},
		},
		CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if plan.UID == 0 || plan.PipelineUID == nil {
		t.Fatalf("plan not persisted with pipeline: %+v", plan)
	}

	rollout, err := e.GetRollout(ctx, "shop", *plan.PipelineUID)
	if err != nil {
		t.Fatalf("get rollout: %v", err)
	}
	if rollout.Title != "Rollout Pipeline" {
		t.Fatalf("rollout title = %q", rollout.Title)
	}
	if len(rollout.Stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(rollout.Stages))
	}
	if rollout.Stages[0].Stage.Name != "Dev Stage" || rollout.Stages[1].Stage.Name != "Prod Stage" {
		t.Fatalf("stage names = %q, %q", rollout.Stages[0].Stage.Name, rollout.Stages[1].Stage.Name)
	}

	createTask := rollout.Stages[0].Tasks[0]
	if createTask.Name != "Create database newdb" || createTask.Type != domain.TaskDatabaseCreate {
		t.Fatalf("unexpected create task: %+v", createTask)
	}
	if createTask.Status != domain.TaskPendingApproval {
		t.Fatalf("new task status = %q", createTask.Status)
	}
	var createPayload domain.CreateDatabasePayload
	if err := json.Unmarshal([]byte(createTask.Payload), &createPayload); err != nil {
		t.Fatalf("unmarshal create payload: %v", err)
	}
	if createPayload.SpecID != "spec-create" {
		t.Fatalf("create payload spec id = %q", createPayload.SpecID)
	}
	if createPayload.SheetUID == 0 {
		t.Fatalf("create payload missing generated sheet")
	}
	generated, err := e.Repo.GetSheet(ctx, createPayload.SheetUID)
	if err != nil {
		t.Fatalf("get generated sheet: %v", err)
	}
	if generated.Source != domain.SheetSourceArtifact {
		t.Fatalf("generated sheet source = %q", generated.Source)
	}
	want := "CREATE DATABASE `newdb` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;"
	if generated.Statement != want {
		t.Fatalf("generated statement = %q, want %q", generated.Statement, want)
	}

	migrateTask := rollout.Stages[1].Tasks[0]
	if migrateTask.Name != `DDL(schema) for database "shop_db"` || migrateTask.Type != domain.TaskDatabaseSchemaUpdate {
		t.Fatalf("unexpected migrate task: %+v", migrateTask)
	}
	var migratePayload domain.SchemaUpdatePayload
	if err := json.Unmarshal([]byte(migrateTask.Payload), &migratePayload); err != nil {
		t.Fatalf("unmarshal migrate payload: %v", err)
	}
	if migratePayload.SheetUID != sheet.UID || migratePayload.SchemaVersion != "v1" {
		t.Fatalf("migrate payload = %+v", migratePayload)
	}
}

func TestMetadataCreatesRecordEvents(t *testing.T) {
	env := newTestEnv(t)
	e, ctx := env.Engine, env.Ctx
	if _, err := e.CreateEnvironment(ctx, "dev", "Dev", 0, "tester"); err != nil {
		t.Fatalf("create environment: %v", err)
	}
	if _, err := e.CreateInstance(ctx, "mysql-dev", "dev", domain.EngineMySQL, "", "root", "tester"); err != nil {
		t.Fatalf("create instance: %v", err)
	}
	if _, err := e.CreateProject(ctx, "shop", "Shop", false, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if _, err := e.CreateDatabase(ctx, "mysql-dev", "shop_dev", "shop", "tester"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	sheet := seedSheet(t, env, "SELECT 1;")
	if _, err := e.CreateBackup(ctx, "mysql-dev", "shop_dev", "nightly", "", "tester"); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	recorded, err := e.Repo.LatestEvents(ctx, 10, "", "")
	if err != nil {
		t.Fatalf("latest events: %v", err)
	}
	// Newest first; every committed registration has its event.
	want := []string{
		events.TypeBackupCreated,
		events.TypeSheetCreated,
		events.TypeDatabaseCreated,
		events.TypeProjectCreated,
		events.TypeInstanceCreated,
		events.TypeEnvironmentCreated,
	}
	if len(recorded) != len(want) {
		t.Fatalf("recorded %d events, want %d", len(recorded), len(want))
	}
	for i, evt := range recorded {
		if evt.Type != want[i] {
			t.Fatalf("event %d type = %q, want %q", i, evt.Type, want[i])
		}
	}
	if recorded[1].EntityID != fmt.Sprintf("%d", sheet.UID) {
		t.Fatalf("sheet event entity = %q, want %d", recorded[1].EntityID, sheet.UID)
	}
}

func TestCreatePlanRequiresTitle(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	_, err := env.Engine.CreatePlan(env.Ctx, engine.PlanCreateOptions{ProjectID: "shop", CreatorID: "tester"})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestCreatePlanRejectsEmptySteps(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	_, err := env.Engine.CreatePlan(env.Ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "empty",
		CreatorID: "tester",
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestCreatePlanScheduledTasksGate(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	sheet := seedSheet(t, env, "SELECT 1;")
	env.Engine.Config.Features.ScheduledTasks = false

	spec := migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", engine.FormatSheetName("shop", sheet.UID))
	spec.EarliestAllowedTs = 1736000000
	_, err := env.Engine.CreatePlan(env.Ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "scheduled",
		Steps:     []domain.Step{{Specs: []domain.Spec{spec}}},
		CreatorID: "tester",
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestUpdatePlanSwapsSheet(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	sheetA := seedSheet(t, env, "ALTER TABLE a ADD COLUMN x INT;")
	sheetB := seedSheet(t, env, "ALTER TABLE a ADD COLUMN y INT;")

	steps := []domain.Step{{Specs: []domain.Spec{
		migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", engine.FormatSheetName("shop", sheetA.UID)),
	}}}
	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop", Title: "swap", Steps: steps, CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	newSteps := []domain.Step{{Specs: []domain.Spec{
		migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", engine.FormatSheetName("shop", sheetB.UID)),
	}}}
	updated, err := e.UpdatePlan(ctx, "shop", plan.UID, newSteps, "tester")
	if err != nil {
		t.Fatalf("update plan: %v", err)
	}
	if updated.Steps[0].Specs[0].ChangeDatabase.Sheet != engine.FormatSheetName("shop", sheetB.UID) {
		t.Fatalf("plan steps not replaced: %+v", updated.Steps)
	}

	rollout, err := e.GetRollout(ctx, "shop", *plan.PipelineUID)
	if err != nil {
		t.Fatalf("get rollout: %v", err)
	}
	var payload domain.SchemaUpdatePayload
	if err := json.Unmarshal([]byte(rollout.Stages[0].Tasks[0].Payload), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.SheetUID != sheetB.UID {
		t.Fatalf("task sheet uid = %d, want %d", payload.SheetUID, sheetB.UID)
	}
	if payload.SpecID != "spec-1" || payload.SchemaVersion != "v1" {
		t.Fatalf("payload fields lost in patch: %+v", payload)
	}
}

func TestUpdatePlanRejections(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	sheet := seedSheet(t, env, "SELECT 1;")
	sheetName := engine.FormatSheetName("shop", sheet.UID)

	steps := []domain.Step{{Specs: []domain.Spec{
		migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", sheetName),
		migrateSpec("spec-2", "instances/mysql-prod/databases/shop_db", sheetName),
	}}}
	plan, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "shop", Title: "guarded", Steps: steps, CreatorID: "tester",
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	var ie *engine.InvalidError

	// Removing a spec.
	removedSteps := []domain.Step{{Specs: []domain.Spec{
		migrateSpec("spec-1", "instances/mysql-prod/databases/shop_db", sheetName),
	}}}
	if _, err := e.UpdatePlan(ctx, "shop", plan.UID, removedSteps, "tester"); !asInvalid(err, &ie) {
		t.Fatalf("expected removal rejection, got %v", err)
	}

	// Adding a spec.
	addedSteps := append([]domain.Step{}, steps...)
	addedSteps = append(addedSteps, domain.Step{Specs: []domain.Spec{
		migrateSpec("spec-3", "instances/mysql-prod/databases/shop_db", sheetName),
	}})
	if _, err := e.UpdatePlan(ctx, "shop", plan.UID, addedSteps, "tester"); !asInvalid(err, &ie) {
		t.Fatalf("expected addition rejection, got %v", err)
	}

	// No change at all.
	if _, err := e.UpdatePlan(ctx, "shop", plan.UID, steps, "tester"); !asInvalid(err, &ie) {
		t.Fatalf("expected no-op rejection, got %v", err)
	}

	// None of the rejected updates may touch the stored plan.
	stored, err := e.GetPlan(ctx, "shop", plan.UID)
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	if len(stored.Steps) != 1 || len(stored.Steps[0].Specs) != 2 {
		t.Fatalf("plan steps mutated by rejected update: %+v", stored.Steps)
	}
}
