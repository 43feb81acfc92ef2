package engine_test

import (
	"testing"

	"rollplane/internal/engine"
)

func TestParseTaskName(t *testing.T) {
	project, rollout, stage, task, err := engine.ParseTaskName("projects/shop/rollouts/3/stages/5/tasks/9")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if project != "shop" || rollout != 3 || stage != 5 || task != 9 {
		t.Fatalf("parsed %q %d %d %d", project, rollout, stage, task)
	}

	bad := []string{
		"projects/shop/rollouts/3/stages/5",
		"projects/shop/plans/3/stages/5/tasks/9",
		"projects//rollouts/3/stages/5/tasks/9",
		"projects/shop/rollouts/x/stages/5/tasks/9",
	}
	for _, name := range bad {
		if _, _, _, _, err := engine.ParseTaskName(name); err == nil {
			t.Fatalf("expected error for %q", name)
		}
	}
}

func TestNameRoundTrips(t *testing.T) {
	if got := engine.FormatSheetName("shop", 12); got != "projects/shop/sheets/12" {
		t.Fatalf("sheet name = %q", got)
	}
	projectID, uid, err := engine.ParseSheetName("projects/shop/sheets/12")
	if err != nil || projectID != "shop" || uid != 12 {
		t.Fatalf("parse sheet: %q %d %v", projectID, uid, err)
	}

	instanceID, databaseName, backupName, err := engine.ParseBackupName(engine.FormatBackupName("inst", "db", "b1"))
	if err != nil || instanceID != "inst" || databaseName != "db" || backupName != "b1" {
		t.Fatalf("parse backup: %q %q %q %v", instanceID, databaseName, backupName, err)
	}

	if _, _, err := engine.ParseDatabaseName("instances/inst"); err == nil {
		t.Fatalf("expected error for instance-only name")
	}
}
