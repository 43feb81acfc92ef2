package domain

// EngineType identifies the database engine of an instance.
type EngineType string

const (
	EngineMySQL      EngineType = "MYSQL"
	EngineTiDB       EngineType = "TIDB"
	EngineMariaDB    EngineType = "MARIADB"
	EngineOceanBase  EngineType = "OCEANBASE"
	EnginePostgres   EngineType = "POSTGRES"
	EngineRedshift   EngineType = "REDSHIFT"
	EngineMSSQL      EngineType = "MSSQL"
	EngineClickHouse EngineType = "CLICKHOUSE"
	EngineSnowflake  EngineType = "SNOWFLAKE"
	EngineSpanner    EngineType = "SPANNER"
	EngineSQLite     EngineType = "SQLITE"
	EngineMongoDB    EngineType = "MONGODB"
	EngineOracle     EngineType = "ORACLE"
)

// TaskType identifies what a task does when executed.
type TaskType string

const (
	TaskGeneral                          TaskType = "GENERAL"
	TaskDatabaseCreate                   TaskType = "DATABASE_CREATE"
	TaskDatabaseSchemaBaseline           TaskType = "DATABASE_SCHEMA_BASELINE"
	TaskDatabaseSchemaUpdate             TaskType = "DATABASE_SCHEMA_UPDATE"
	TaskDatabaseSchemaUpdateSDL          TaskType = "DATABASE_SCHEMA_UPDATE_SDL"
	TaskDatabaseSchemaUpdateGhostSync    TaskType = "DATABASE_SCHEMA_UPDATE_GHOST_SYNC"
	TaskDatabaseSchemaUpdateGhostCutover TaskType = "DATABASE_SCHEMA_UPDATE_GHOST_CUTOVER"
	TaskDatabaseDataUpdate               TaskType = "DATABASE_DATA_UPDATE"
	TaskDatabaseBackup                   TaskType = "DATABASE_BACKUP"
	TaskDatabaseRestoreRestore           TaskType = "DATABASE_RESTORE_RESTORE"
	TaskDatabaseRestoreCutover           TaskType = "DATABASE_RESTORE_CUTOVER"
)

// TaskStatus is the persisted execution status of a task.
// The engine only ever creates tasks in PENDING_APPROVAL; every other
// transition is driven by the external execution runtime.
type TaskStatus string

const (
	TaskPendingApproval TaskStatus = "PENDING_APPROVAL"
	TaskPending         TaskStatus = "PENDING"
	TaskRunning         TaskStatus = "RUNNING"
	TaskDone            TaskStatus = "DONE"
	TaskFailed          TaskStatus = "FAILED"
	TaskCanceled        TaskStatus = "CANCELED"
)

// RollbackSQLStatus tracks generation of rollback SQL for data-update tasks.
type RollbackSQLStatus string

const (
	RollbackSQLPending RollbackSQLStatus = "PENDING"
	RollbackSQLDone    RollbackSQLStatus = "DONE"
	RollbackSQLFailed  RollbackSQLStatus = "FAILED"
)

// Sheet sources.
const (
	SheetSourceUser     = "user"
	SheetSourceArtifact = "system-artifact"
)

type Environment struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Instance struct {
	ID            string     `json:"id"`
	EnvironmentID string     `json:"environment_id"`
	Engine        EngineType `json:"engine"`
	Title         string     `json:"title,omitempty"`
	AdminUser     string     `json:"admin_user,omitempty"`
	CreatedAt     string     `json:"created_at" format:"date-time"`
}

// Database is keyed by (InstanceID, Name).
type Database struct {
	InstanceID    string `json:"instance_id"`
	Name          string `json:"name"`
	ProjectID     string `json:"project_id"`
	EnvironmentID string `json:"environment_id"`
	CreatedAt     string `json:"created_at" format:"date-time"`
}

type Project struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	TenantMode bool   `json:"tenant_mode,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

type Sheet struct {
	UID       int64  `json:"uid"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	Statement string `json:"statement"`
	Source    string `json:"source" enum:"user,system-artifact"`
	CreatorID string `json:"creator_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Backup struct {
	UID          int64  `json:"uid"`
	InstanceID   string `json:"instance_id"`
	DatabaseName string `json:"database_name"`
	Name         string `json:"name"`
	State        string `json:"state" enum:"PENDING_CREATE,DONE,FAILED"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

// Plan is the declarative, user-authored change description. Steps are
// stored as JSON; PipelineUID links to the compiled rollout.
type Plan struct {
	UID         int64  `json:"uid"`
	ProjectID   string `json:"project_id"`
	PipelineUID *int64 `json:"pipeline_uid,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Steps       []Step `json:"steps"`
	CreatorID   string `json:"creator_id"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type Pipeline struct {
	UID       int64  `json:"uid"`
	Name      string `json:"name"`
	CreatorID string `json:"creator_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Stage struct {
	UID           int64  `json:"uid"`
	PipelineUID   int64  `json:"pipeline_uid"`
	EnvironmentID string `json:"environment_id"`
	Name          string `json:"name"`
}

type Task struct {
	UID               int64      `json:"uid"`
	PipelineUID       int64      `json:"pipeline_uid"`
	StageUID          int64      `json:"stage_uid"`
	InstanceID        string     `json:"instance_id"`
	DatabaseName      *string    `json:"database_name,omitempty"`
	Name              string     `json:"name"`
	Type              TaskType   `json:"type"`
	Status            TaskStatus `json:"status"`
	Payload           string     `json:"payload"`
	EarliestAllowedTs int64      `json:"earliest_allowed_ts,omitempty"`
	CreatorID         string     `json:"creator_id"`
	CreatedAt         string     `json:"created_at" format:"date-time"`
	// BlockedBy holds the UIDs of tasks that must finish before this one.
	BlockedBy []int64 `json:"blocked_by,omitempty"`
}

// TaskDAGEdge is a "from blocks to" relationship between two tasks of the
// same pipeline.
type TaskDAGEdge struct {
	FromTaskUID int64 `json:"from_task_uid"`
	ToTaskUID   int64 `json:"to_task_uid"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ProjectID  string `json:"project_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
