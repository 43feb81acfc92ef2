package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"rollplane/internal/config"
	"rollplane/internal/domain"
)

// For scalability, each database can have up to four labels for now.
const databaseLabelSizeMax = 4

// TaskCreate is a draft task produced by spec expansion. It becomes a
// persisted task when the pipeline is materialized.
type TaskCreate struct {
	InstanceID        string
	DatabaseName      *string
	Name              string
	Type              domain.TaskType
	Payload           string
	EarliestAllowedTs int64

	// sheetDraft, when set, is a system-artifact sheet that must be persisted
	// in the same transaction as the task; createPayload is completed with
	// the sheet uid and marshaled into Payload at that point.
	sheetDraft    *domain.Sheet
	createPayload *domain.CreateDatabasePayload
}

// IndexEdge is a blocking edge between two tasks of one spec, expressed in
// local indices into the spec's task list.
type IndexEdge struct {
	From int
	To   int
}

type registerEnvironmentFunc func(environmentID string) error

func (e Engine) taskCreatesFromSpec(ctx context.Context, spec domain.Spec, project domain.Project, register registerEnvironmentFunc) ([]TaskCreate, []IndexEdge, error) {
	if err := spec.Validate(); err != nil {
		return nil, nil, invalidf("%v", err)
	}
	if spec.EarliestAllowedTs != 0 && !e.Config.IsFeatureEnabled(config.FeatureScheduledTasks) {
		return nil, nil, invalidf("feature %s is not enabled", config.FeatureScheduledTasks)
	}

	switch {
	case spec.CreateDatabase != nil:
		return e.taskCreatesFromCreateDatabase(ctx, spec, spec.CreateDatabase, project, register)
	case spec.ChangeDatabase != nil:
		return e.taskCreatesFromChangeDatabase(ctx, spec, spec.ChangeDatabase, register)
	case spec.RestoreDatabase != nil:
		return e.taskCreatesFromRestoreDatabase(ctx, spec, spec.RestoreDatabase, project, register)
	}
	return nil, nil, invalidf("spec %s has no config", spec.ID)
}

func (e Engine) taskCreatesFromCreateDatabase(ctx context.Context, spec domain.Spec, c *domain.CreateDatabaseConfig, project domain.Project, register registerEnvironmentFunc) ([]TaskCreate, []IndexEdge, error) {
	if c.Database == "" {
		return nil, nil, invalidf("database name is required")
	}
	instanceID, err := ParseInstanceName(c.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("get instance id from %q: %w", c.Target, err)
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("instance %q: %w", instanceID, err)
	}
	if instance.Engine == domain.EngineOracle {
		return nil, nil, invalidf("creating Oracle database is not supported")
	}
	environment, err := e.Repo.GetEnvironment(ctx, instance.EnvironmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("environment %q: %w", instance.EnvironmentID, err)
	}
	if err := register(environment.ID); err != nil {
		return nil, nil, err
	}
	if instance.Engine == domain.EngineMongoDB && c.Table == "" {
		return nil, nil, invalidf("collection name is required for MongoDB")
	}
	if err := CheckCharacterSetCollationOwner(instance.Engine, c.CharacterSet, c.Collation, c.Owner); err != nil {
		return nil, nil, err
	}
	labelsJSON, err := convertDatabaseLabels(c.Labels)
	if err != nil {
		return nil, nil, invalidf("invalid database labels: %v", err)
	}
	if project.TenantMode && !e.Config.IsFeatureEnabled(config.FeatureMultiTenancy) {
		return nil, nil, invalidf("feature %s is not enabled", config.FeatureMultiTenancy)
	}

	databaseName := c.Database
	switch instance.Engine {
	case domain.EngineSnowflake:
		// Snowflake needs the upper case of the database name.
		databaseName = strings.ToUpper(databaseName)
	case domain.EngineMySQL, domain.EngineTiDB, domain.EngineMariaDB, domain.EngineOceanBase:
		// The effective name depends on the instance's lower_case_table_names
		// setting. The probe is best-effort.
		databaseName = e.databaseCase(ctx, instance, databaseName)
	}

	statement, err := GenerateCreateStatement(instance.Engine, c, databaseName, instance.AdminUser)
	if err != nil {
		return nil, nil, err
	}
	sheetDraft := &domain.Sheet{
		ProjectID: project.ID,
		Title:     fmt.Sprintf("Sheet for creating database %v", databaseName),
		Statement: statement,
		Source:    domain.SheetSourceArtifact,
		CreatorID: e.Config.Actor.ID,
		CreatedAt: e.nowRFC3339(),
	}
	payload := &domain.CreateDatabasePayload{
		SpecID:        spec.ID,
		ProjectID:     project.ID,
		DatabaseName:  databaseName,
		TableName:     c.Table,
		CharacterSet:  c.CharacterSet,
		Collation:     c.Collation,
		EnvironmentID: environment.ID,
		Labels:        labelsJSON,
	}
	return []TaskCreate{
		{
			InstanceID:        instance.ID,
			Name:              fmt.Sprintf("Create database %v", databaseName),
			Type:              domain.TaskDatabaseCreate,
			EarliestAllowedTs: spec.EarliestAllowedTs,
			sheetDraft:        sheetDraft,
			createPayload:     payload,
		},
	}, nil, nil
}

// resolveSheet parses a sheet resource name and loads the sheet record.
func (e Engine) resolveSheet(ctx context.Context, name string) (domain.Sheet, error) {
	_, sheetUID, err := ParseSheetName(name)
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("get sheet id from %q: %w", name, err)
	}
	sheet, err := e.Repo.GetSheet(ctx, sheetUID)
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("sheet %d: %w", sheetUID, err)
	}
	return sheet, nil
}

func (e Engine) taskCreatesFromChangeDatabase(ctx context.Context, spec domain.Spec, c *domain.ChangeDatabaseConfig, register registerEnvironmentFunc) ([]TaskCreate, []IndexEdge, error) {
	instanceID, databaseName, err := ParseDatabaseName(c.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("get database from target %q: %w", c.Target, err)
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("instance %q: %w", instanceID, err)
	}
	database, err := e.Repo.GetDatabase(ctx, instanceID, databaseName)
	if err != nil {
		return nil, nil, fmt.Errorf("database %q: %w", databaseName, err)
	}
	if err := register(database.EnvironmentID); err != nil {
		return nil, nil, err
	}

	switch c.Type {
	case domain.ChangeBaseline:
		payload, err := marshalPayload(domain.SchemaBaselinePayload{
			SpecID:        spec.ID,
			SchemaVersion: c.SchemaVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		return []TaskCreate{
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("Establish baseline for database %q", database.Name),
				Type:              domain.TaskDatabaseSchemaBaseline,
				Payload:           payload,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
		}, nil, nil

	case domain.ChangeMigrate:
		sheet, err := e.resolveSheet(ctx, c.Sheet)
		if err != nil {
			return nil, nil, err
		}
		payload, err := marshalPayload(domain.SchemaUpdatePayload{
			SpecID:        spec.ID,
			SheetUID:      sheet.UID,
			SchemaVersion: c.SchemaVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		return []TaskCreate{
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("DDL(schema) for database %q", database.Name),
				Type:              domain.TaskDatabaseSchemaUpdate,
				Payload:           payload,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
		}, nil, nil

	case domain.ChangeMigrateSDL:
		sheet, err := e.resolveSheet(ctx, c.Sheet)
		if err != nil {
			return nil, nil, err
		}
		payload, err := marshalPayload(domain.SchemaUpdateSDLPayload{
			SpecID:        spec.ID,
			SheetUID:      sheet.UID,
			SchemaVersion: c.SchemaVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		return []TaskCreate{
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("SDL for database %q", database.Name),
				Type:              domain.TaskDatabaseSchemaUpdateSDL,
				Payload:           payload,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
		}, nil, nil

	case domain.ChangeMigrateGhost:
		sheet, err := e.resolveSheet(ctx, c.Sheet)
		if err != nil {
			return nil, nil, err
		}
		syncPayload, err := marshalPayload(domain.SchemaUpdateGhostSyncPayload{
			SpecID:        spec.ID,
			SheetUID:      sheet.UID,
			SchemaVersion: c.SchemaVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		cutoverPayload, err := marshalPayload(domain.SchemaUpdateGhostCutoverPayload{
			SpecID: spec.ID,
		})
		if err != nil {
			return nil, nil, err
		}
		taskCreates := []TaskCreate{
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("Update schema gh-ost sync for database %q", database.Name),
				Type:              domain.TaskDatabaseSchemaUpdateGhostSync,
				Payload:           syncPayload,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("Update schema gh-ost cutover for database %q", database.Name),
				Type:              domain.TaskDatabaseSchemaUpdateGhostCutover,
				Payload:           cutoverPayload,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
		}
		// Sync blocks cutover.
		return taskCreates, []IndexEdge{{From: 0, To: 1}}, nil

	case domain.ChangeData:
		sheet, err := e.resolveSheet(ctx, c.Sheet)
		if err != nil {
			return nil, nil, err
		}
		payload := domain.DataUpdatePayload{
			SpecID:            spec.ID,
			SheetUID:          sheet.UID,
			SchemaVersion:     c.SchemaVersion,
			RollbackEnabled:   c.RollbackEnabled,
			RollbackSQLStatus: domain.RollbackSQLPending,
		}
		if c.RollbackDetail != nil {
			_, planUID, err := ParsePlanName(c.RollbackDetail.RollbackFromPlan)
			if err != nil {
				return nil, nil, fmt.Errorf("get plan id from %q: %w", c.RollbackDetail.RollbackFromPlan, err)
			}
			_, _, _, taskUID, err := ParseTaskName(c.RollbackDetail.RollbackFromTask)
			if err != nil {
				return nil, nil, fmt.Errorf("get task id from %q: %w", c.RollbackDetail.RollbackFromTask, err)
			}
			payload.RollbackFromPlanUID = &planUID
			payload.RollbackFromTaskUID = &taskUID
		}
		payloadString, err := marshalPayload(payload)
		if err != nil {
			return nil, nil, err
		}
		return []TaskCreate{
			{
				InstanceID:        instance.ID,
				DatabaseName:      &database.Name,
				Name:              fmt.Sprintf("DML(data) for database %q", database.Name),
				Type:              domain.TaskDatabaseDataUpdate,
				Payload:           payloadString,
				EarliestAllowedTs: spec.EarliestAllowedTs,
			},
		}, nil, nil

	default:
		return nil, nil, invalidf("unsupported change database config type %q", c.Type)
	}
}

func (e Engine) taskCreatesFromRestoreDatabase(ctx context.Context, spec domain.Spec, c *domain.RestoreDatabaseConfig, project domain.Project, register registerEnvironmentFunc) ([]TaskCreate, []IndexEdge, error) {
	if c.Source == nil {
		return nil, nil, invalidf("missing source in restore database config")
	}
	if (c.Source.Backup == "") == (c.Source.PointInTimeTs == nil) {
		return nil, nil, invalidf("restore source must be exactly one of backup or point in time")
	}
	instanceID, databaseName, err := ParseDatabaseName(c.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("get database from target %q: %w", c.Target, err)
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, nil, fmt.Errorf("instance %q: %w", instanceID, err)
	}
	database, err := e.Repo.GetDatabase(ctx, instanceID, databaseName)
	if err != nil {
		return nil, nil, fmt.Errorf("database %q: %w", databaseName, err)
	}
	if database.ProjectID != project.ID {
		return nil, nil, invalidf("database %q is not in project %q", databaseName, project.ID)
	}
	if err := register(database.EnvironmentID); err != nil {
		return nil, nil, err
	}

	var taskCreates []TaskCreate

	if c.CreateDatabase != nil {
		// Restore to a new database. The create task runs first; it also
		// registers the target instance's environment.
		targetInstanceID, err := ParseInstanceName(c.CreateDatabase.Target)
		if err != nil {
			return nil, nil, fmt.Errorf("get instance id from %q: %w", c.CreateDatabase.Target, err)
		}
		targetInstance, err := e.Repo.GetInstance(ctx, targetInstanceID)
		if err != nil {
			return nil, nil, fmt.Errorf("instance %q: %w", targetInstanceID, err)
		}

		createTasks, _, err := e.taskCreatesFromCreateDatabase(ctx, spec, c.CreateDatabase, project, register)
		if err != nil {
			return nil, nil, fmt.Errorf("create the database create task: %w", err)
		}
		if len(createTasks) != 1 {
			return nil, nil, fmt.Errorf("expected 1 task to create the database, got %d", len(createTasks))
		}
		taskCreates = append(taskCreates, createTasks[0])

		restorePayload := domain.RestorePayload{
			SpecID:           spec.ID,
			DatabaseName:     c.CreateDatabase.Database,
			TargetInstanceID: &targetInstance.ID,
		}
		if err := e.resolveRestoreSource(ctx, c.Source, &restorePayload); err != nil {
			return nil, nil, err
		}
		payloadString, err := marshalPayload(restorePayload)
		if err != nil {
			return nil, nil, err
		}
		taskCreates = append(taskCreates, TaskCreate{
			InstanceID:   instance.ID,
			DatabaseName: &database.Name,
			Name:         fmt.Sprintf("Restore to new database %q", restorePayload.DatabaseName),
			Type:         domain.TaskDatabaseRestoreRestore,
			Payload:      payloadString,
		})
	} else {
		// In-place restore: restore into a temporary database, then cut over.
		restorePayload := domain.RestorePayload{
			SpecID:       spec.ID,
			DatabaseName: database.Name,
		}
		if err := e.resolveRestoreSource(ctx, c.Source, &restorePayload); err != nil {
			return nil, nil, err
		}
		payloadString, err := marshalPayload(restorePayload)
		if err != nil {
			return nil, nil, err
		}
		taskCreates = append(taskCreates, TaskCreate{
			InstanceID:   instance.ID,
			DatabaseName: &database.Name,
			Name:         fmt.Sprintf("Restore to PITR database %q", database.Name),
			Type:         domain.TaskDatabaseRestoreRestore,
			Payload:      payloadString,
		})

		cutoverPayload, err := marshalPayload(domain.RestoreCutoverPayload{SpecID: spec.ID})
		if err != nil {
			return nil, nil, err
		}
		taskCreates = append(taskCreates, TaskCreate{
			InstanceID:   instance.ID,
			DatabaseName: &database.Name,
			Name:         fmt.Sprintf("Swap PITR and the original database %q", database.Name),
			Type:         domain.TaskDatabaseRestoreCutover,
			Payload:      cutoverPayload,
		})
	}

	// Both branches produce exactly two tasks; the first blocks the second.
	return taskCreates, []IndexEdge{{From: 0, To: 1}}, nil
}

func (e Engine) resolveRestoreSource(ctx context.Context, source *domain.RestoreSource, payload *domain.RestorePayload) error {
	if source.Backup != "" {
		backupInstanceID, backupDatabaseName, backupName, err := ParseBackupName(source.Backup)
		if err != nil {
			return fmt.Errorf("parse backup name %q: %w", source.Backup, err)
		}
		if _, err := e.Repo.GetDatabase(ctx, backupInstanceID, backupDatabaseName); err != nil {
			return fmt.Errorf("database %q where backup %q is created: %w", backupDatabaseName, source.Backup, err)
		}
		backup, err := e.Repo.GetBackupByName(ctx, backupInstanceID, backupDatabaseName, backupName)
		if err != nil {
			return fmt.Errorf("backup %q: %w", backupName, err)
		}
		payload.BackupUID = &backup.UID
		return nil
	}
	payload.PointInTimeTs = source.PointInTimeTs
	return nil
}

// convertDatabaseLabels validates and renders labels as a JSON list of
// key/value pairs.
func convertDatabaseLabels(labelsMap map[string]string) (string, error) {
	if len(labelsMap) == 0 {
		return "", nil
	}
	if len(labelsMap) > databaseLabelSizeMax {
		return "", fmt.Errorf("database labels are up to a maximum of %d", databaseLabelSizeMax)
	}
	type databaseLabel struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	var labels []databaseLabel
	for k, v := range labelsMap {
		labels = append(labels, databaseLabel{Key: k, Value: v})
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("marshal labels: %w", err)
	}
	return string(data), nil
}

func marshalPayload(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal task payload: %w", err)
	}
	return string(data), nil
}
