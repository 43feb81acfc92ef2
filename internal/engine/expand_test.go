package engine_test

import (
	"context"
	"encoding/json"
	"testing"

	"rollplane/internal/domain"
	"rollplane/internal/engine"
)

func createDatabasePlan(t *testing.T, env testEnv, spec domain.Spec) (engine.Rollout, error) {
	t.Helper()
	plan, err := env.Engine.CreatePlan(env.Ctx, engine.PlanCreateOptions{
		ProjectID: "shop",
		Title:     "provision",
		Steps:     []domain.Step{{Specs: []domain.Spec{spec}}},
		CreatorID: "tester",
	})
	if err != nil {
		return engine.Rollout{}, err
	}
	return env.Engine.GetRollout(env.Ctx, "shop", *plan.PipelineUID)
}

func TestCreateDatabaseSnowflakeUppercases(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	if _, err := e.CreateInstance(ctx, "snow-dev", "dev", domain.EngineSnowflake, "Snowflake", "", "tester"); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	rollout, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-snow",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:   "instances/snow-dev",
			Database: "Sales",
		},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	task := rollout.Stages[0].Tasks[0]
	if task.Name != "Create database SALES" {
		t.Fatalf("task name = %q", task.Name)
	}
	var payload domain.CreateDatabasePayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.DatabaseName != "SALES" {
		t.Fatalf("payload database = %q", payload.DatabaseName)
	}
	sheet, err := e.Repo.GetSheet(ctx, payload.SheetUID)
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if sheet.Statement != "CREATE DATABASE SALES;" {
		t.Fatalf("statement = %q", sheet.Statement)
	}
}

func TestCreateDatabaseOracleRejected(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	if _, err := env.Engine.CreateInstance(env.Ctx, "ora-dev", "dev", domain.EngineOracle, "Oracle", "", "tester"); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	_, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-ora",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:   "instances/ora-dev",
			Database: "legacy",
		},
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}
}

func TestCreateDatabaseMongoNeedsCollection(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	if _, err := env.Engine.CreateInstance(env.Ctx, "mongo-dev", "dev", domain.EngineMongoDB, "Mongo", "", "tester"); err != nil {
		t.Fatalf("create instance: %v", err)
	}

	_, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-mongo",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:   "instances/mongo-dev",
			Database: "events_db",
		},
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}

	rollout, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-mongo-ok",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:   "instances/mongo-dev",
			Database: "events_db",
			Table:    "events",
		},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	var payload domain.CreateDatabasePayload
	if err := json.Unmarshal([]byte(rollout.Stages[0].Tasks[0].Payload), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	sheet, err := env.Engine.Repo.GetSheet(env.Ctx, payload.SheetUID)
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if sheet.Statement != `db.createCollection("events");` {
		t.Fatalf("statement = %q", sheet.Statement)
	}
}

func TestCreateDatabaseLabels(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)

	tooMany := map[string]string{"a": "1", "b": "2", "c": "3", "d": "4", "e": "5"}
	_, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-labels-over",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:       "instances/mysql-dev",
			Database:     "labeled",
			CharacterSet: "utf8mb4",
			Collation:    "utf8mb4_general_ci",
			Labels:       tooMany,
		},
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}

	rollout, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-labels",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:       "instances/mysql-dev",
			Database:     "labeled",
			CharacterSet: "utf8mb4",
			Collation:    "utf8mb4_general_ci",
			Labels:       map[string]string{"tenant": "acme"},
		},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	var payload domain.CreateDatabasePayload
	if err := json.Unmarshal([]byte(rollout.Stages[0].Tasks[0].Payload), &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Labels != `[{"key":"tenant","value":"acme"}]` {
		t.Fatalf("labels = %q", payload.Labels)
	}
}

func TestCreateDatabaseCaseProbe(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	env.Engine.CaseProbe = func(ctx context.Context, instance domain.Instance) (engine.CasePolicy, error) {
		return engine.CaseLower, nil
	}

	rollout, err := createDatabasePlan(t, env, domain.Spec{
		ID: "spec-case",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:       "instances/mysql-dev",
			Database:     "MixedCase",
			CharacterSet: "utf8mb4",
			Collation:    "utf8mb4_general_ci",
		},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if got := rollout.Stages[0].Tasks[0].Name; got != "Create database mixedcase" {
		t.Fatalf("task name = %q", got)
	}
}

func TestTenantModeRequiresMultiTenancy(t *testing.T) {
	env := newTestEnv(t)
	seedTopology(t, env)
	e, ctx := env.Engine, env.Ctx
	if _, err := e.CreateProject(ctx, "tenants", "Tenants", true, "tester"); err != nil {
		t.Fatalf("create project: %v", err)
	}

	spec := domain.Spec{
		ID: "spec-tenant",
		CreateDatabase: &domain.CreateDatabaseConfig{
			Target:       "instances/mysql-dev",
			Database:     "tenant_db",
			CharacterSet: "utf8mb4",
			Collation:    "utf8mb4_general_ci",
		},
	}
	_, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "tenants",
		Title:     "tenant provision",
		Steps:     []domain.Step{{Specs: []domain.Spec{spec}}},
		CreatorID: "tester",
	})
	var ie *engine.InvalidError
	if !asInvalid(err, &ie) {
		t.Fatalf("expected invalid error, got %v", err)
	}

	e.Config.Features.MultiTenancy = true
	if _, err := e.CreatePlan(ctx, engine.PlanCreateOptions{
		ProjectID: "tenants",
		Title:     "tenant provision",
		Steps:     []domain.Step{{Specs: []domain.Spec{spec}}},
		CreatorID: "tester",
	}); err != nil {
		t.Fatalf("create plan with feature on: %v", err)
	}
}
