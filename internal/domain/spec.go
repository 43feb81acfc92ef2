package domain

import (
	"errors"
	"fmt"
)

// Step is an ordered list of specs that must all resolve to the same
// deployment environment.
type Step struct {
	Specs []Spec `json:"specs"`
}

// Spec is one atomic intended change. Exactly one of the config fields is
// set; ID is the client-generated identity that survives plan updates.
type Spec struct {
	ID                string                 `json:"id"`
	EarliestAllowedTs int64                  `json:"earliest_allowed_ts,omitempty"`
	CreateDatabase    *CreateDatabaseConfig  `json:"create_database_config,omitempty"`
	ChangeDatabase    *ChangeDatabaseConfig  `json:"change_database_config,omitempty"`
	RestoreDatabase   *RestoreDatabaseConfig `json:"restore_database_config,omitempty"`
}

// ChangeType selects the migration mode of a ChangeDatabaseConfig.
type ChangeType string

const (
	ChangeBaseline     ChangeType = "BASELINE"
	ChangeMigrate      ChangeType = "MIGRATE"
	ChangeMigrateSDL   ChangeType = "MIGRATE_SDL"
	ChangeMigrateGhost ChangeType = "MIGRATE_GHOST"
	ChangeData         ChangeType = "DATA"
)

type CreateDatabaseConfig struct {
	// Target is an instance resource name, instances/{instance}.
	Target       string            `json:"target"`
	Database     string            `json:"database"`
	Table        string            `json:"table,omitempty"`
	CharacterSet string            `json:"character_set,omitempty"`
	Collation    string            `json:"collation,omitempty"`
	Cluster      string            `json:"cluster,omitempty"`
	Owner        string            `json:"owner,omitempty"`
	Backup       string            `json:"backup,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

type ChangeDatabaseConfig struct {
	// Target is a database resource name, instances/{instance}/databases/{database}.
	Target          string          `json:"target"`
	Sheet           string          `json:"sheet,omitempty"`
	Type            ChangeType      `json:"type"`
	SchemaVersion   string          `json:"schema_version,omitempty"`
	RollbackEnabled bool            `json:"rollback_enabled,omitempty"`
	RollbackDetail  *RollbackDetail `json:"rollback_detail,omitempty"`
}

// RollbackDetail records where a rollback data change originates from.
type RollbackDetail struct {
	// RollbackFromPlan is a plan resource name, projects/{project}/plans/{plan}.
	RollbackFromPlan string `json:"rollback_from_plan"`
	// RollbackFromTask is a task resource name,
	// projects/{project}/rollouts/{rollout}/stages/{stage}/tasks/{task}.
	RollbackFromTask string `json:"rollback_from_task"`
}

type RestoreDatabaseConfig struct {
	// Target is a database resource name, instances/{instance}/databases/{database}.
	Target string         `json:"target"`
	Source *RestoreSource `json:"source"`
	// CreateDatabase, when set, restores into a brand-new database instead
	// of restoring in place.
	CreateDatabase *CreateDatabaseConfig `json:"create_database_config,omitempty"`
}

// RestoreSource selects exactly one of a backup or a point-in-time timestamp.
type RestoreSource struct {
	// Backup is a backup resource name,
	// instances/{instance}/databases/{database}/backups/{backup}.
	Backup string `json:"backup,omitempty"`
	// PointInTimeTs is a unix timestamp in seconds.
	PointInTimeTs *int64 `json:"point_in_time_ts,omitempty"`
}

// Validate checks the tagged-union shape of the spec. It does not resolve
// any references; that is the expander's job.
func (s Spec) Validate() error {
	if s.ID == "" {
		return errors.New("spec id is required")
	}
	n := 0
	if s.CreateDatabase != nil {
		n++
	}
	if s.ChangeDatabase != nil {
		n++
	}
	if s.RestoreDatabase != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("spec %s must have exactly one config, got %d", s.ID, n)
	}
	return nil
}
