package domain

// Task payloads are stored as JSON in the tasks.payload column. Every payload
// carries the originating spec id so plan updates can find the tasks a spec
// compiled into.

type CreateDatabasePayload struct {
	SpecID        string `json:"spec_id"`
	ProjectID     string `json:"project_id"`
	DatabaseName  string `json:"database_name"`
	TableName     string `json:"table_name,omitempty"`
	CharacterSet  string `json:"character_set,omitempty"`
	Collation     string `json:"collation,omitempty"`
	EnvironmentID string `json:"environment_id"`
	// Labels is a JSON-encoded map, kept opaque here.
	Labels        string `json:"labels,omitempty"`
	SheetUID      int64  `json:"sheet_uid"`
	SchemaVersion string `json:"schema_version"`
	Skipped       bool   `json:"skipped,omitempty"`
}

type SchemaBaselinePayload struct {
	SpecID        string `json:"spec_id"`
	SchemaVersion string `json:"schema_version"`
	Skipped       bool   `json:"skipped,omitempty"`
}

type SchemaUpdatePayload struct {
	SpecID        string `json:"spec_id"`
	SheetUID      int64  `json:"sheet_uid"`
	SchemaVersion string `json:"schema_version"`
	Skipped       bool   `json:"skipped,omitempty"`
}

type SchemaUpdateSDLPayload struct {
	SpecID        string `json:"spec_id"`
	SheetUID      int64  `json:"sheet_uid"`
	SchemaVersion string `json:"schema_version"`
	Skipped       bool   `json:"skipped,omitempty"`
}

type SchemaUpdateGhostSyncPayload struct {
	SpecID        string `json:"spec_id"`
	SheetUID      int64  `json:"sheet_uid"`
	SchemaVersion string `json:"schema_version"`
	Skipped       bool   `json:"skipped,omitempty"`
}

type SchemaUpdateGhostCutoverPayload struct {
	SpecID  string `json:"spec_id"`
	Skipped bool   `json:"skipped,omitempty"`
}

type DataUpdatePayload struct {
	SpecID              string            `json:"spec_id"`
	SheetUID            int64             `json:"sheet_uid"`
	SchemaVersion       string            `json:"schema_version"`
	RollbackEnabled     bool              `json:"rollback_enabled,omitempty"`
	RollbackSQLStatus   RollbackSQLStatus `json:"rollback_sql_status,omitempty"`
	RollbackSheetUID    *int64            `json:"rollback_sheet_uid,omitempty"`
	RollbackFromPlanUID *int64            `json:"rollback_from_plan_uid,omitempty"`
	RollbackFromTaskUID *int64            `json:"rollback_from_task_uid,omitempty"`
	Skipped             bool              `json:"skipped,omitempty"`
}

type BackupPayload struct {
	SpecID    string `json:"spec_id,omitempty"`
	BackupUID int64  `json:"backup_uid"`
	Skipped   bool   `json:"skipped,omitempty"`
}

// RestorePayload covers both restore flavors. For restore-to-new-database,
// TargetInstanceID and DatabaseName point at the destination created by the
// preceding create task. Exactly one of BackupUID and PointInTimeTs is set.
type RestorePayload struct {
	SpecID           string  `json:"spec_id"`
	DatabaseName     string  `json:"database_name"`
	TargetInstanceID *string `json:"target_instance_id,omitempty"`
	BackupUID        *int64  `json:"backup_uid,omitempty"`
	PointInTimeTs    *int64  `json:"point_in_time_ts,omitempty"`
	Skipped          bool    `json:"skipped,omitempty"`
}

type RestoreCutoverPayload struct {
	SpecID  string `json:"spec_id"`
	Skipped bool   `json:"skipped,omitempty"`
}
