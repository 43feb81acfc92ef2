package engine

import (
	"context"
	"fmt"

	"rollplane/internal/domain"
	"rollplane/internal/events"
)

var validEngines = map[domain.EngineType]bool{
	domain.EngineMySQL:      true,
	domain.EngineTiDB:       true,
	domain.EngineMariaDB:    true,
	domain.EngineOceanBase:  true,
	domain.EnginePostgres:   true,
	domain.EngineRedshift:   true,
	domain.EngineMSSQL:      true,
	domain.EngineClickHouse: true,
	domain.EngineSnowflake:  true,
	domain.EngineSpanner:    true,
	domain.EngineSQLite:     true,
	domain.EngineMongoDB:    true,
	domain.EngineOracle:     true,
}

// CreateEnvironment registers a deployment environment.
func (e Engine) CreateEnvironment(ctx context.Context, id, title string, sortOrder int, actorID string) (domain.Environment, error) {
	if id == "" {
		return domain.Environment{}, invalidf("environment id is required")
	}
	if title == "" {
		title = id
	}
	env := domain.Environment{
		ID:        id,
		Title:     title,
		SortOrder: sortOrder,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Environment{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEnvironmentTx(ctx, tx, env); err != nil {
		return domain.Environment{}, fmt.Errorf("insert environment: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeEnvironmentCreated, "", "environment", env.ID, actorID, events.EventPayload{"title": env.Title}); err != nil {
		return domain.Environment{}, err
	}
	return env, tx.Commit()
}

// CreateInstance registers a database instance in an environment.
func (e Engine) CreateInstance(ctx context.Context, id, environmentID string, engineType domain.EngineType, title, adminUser, actorID string) (domain.Instance, error) {
	if id == "" {
		return domain.Instance{}, invalidf("instance id is required")
	}
	if !validEngines[engineType] {
		return domain.Instance{}, invalidf("unknown engine type %q", string(engineType))
	}
	if _, err := e.Repo.GetEnvironment(ctx, environmentID); err != nil {
		return domain.Instance{}, fmt.Errorf("environment %q: %w", environmentID, err)
	}
	instance := domain.Instance{
		ID:            id,
		EnvironmentID: environmentID,
		Engine:        engineType,
		Title:         title,
		AdminUser:     adminUser,
		CreatedAt:     e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Instance{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertInstanceTx(ctx, tx, instance); err != nil {
		return domain.Instance{}, fmt.Errorf("insert instance: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeInstanceCreated, "", "instance", instance.ID, actorID, events.EventPayload{"engine": string(engineType)}); err != nil {
		return domain.Instance{}, err
	}
	return instance, tx.Commit()
}

// CreateProject registers a project.
func (e Engine) CreateProject(ctx context.Context, id, title string, tenantMode bool, actorID string) (domain.Project, error) {
	if id == "" {
		return domain.Project{}, invalidf("project id is required")
	}
	if title == "" {
		title = id
	}
	project := domain.Project{
		ID:         id,
		Title:      title,
		TenantMode: tenantMode,
		CreatedAt:  e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProjectTx(ctx, tx, project); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeProjectCreated, project.ID, "project", project.ID, actorID, events.EventPayload{"title": project.Title}); err != nil {
		return domain.Project{}, err
	}
	return project, tx.Commit()
}

// CreateDatabase registers an existing database on an instance.
func (e Engine) CreateDatabase(ctx context.Context, instanceID, name, projectID, actorID string) (domain.Database, error) {
	if name == "" {
		return domain.Database{}, invalidf("database name is required")
	}
	instance, err := e.Repo.GetInstance(ctx, instanceID)
	if err != nil {
		return domain.Database{}, fmt.Errorf("instance %q: %w", instanceID, err)
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Database{}, fmt.Errorf("project %q: %w", projectID, err)
	}
	database := domain.Database{
		InstanceID:    instance.ID,
		Name:          name,
		ProjectID:     projectID,
		EnvironmentID: instance.EnvironmentID,
		CreatedAt:     e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Database{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertDatabaseTx(ctx, tx, database); err != nil {
		return domain.Database{}, fmt.Errorf("insert database: %w", err)
	}
	if err := e.Events.Append(ctx, tx, events.TypeDatabaseCreated, projectID, "database", FormatDatabaseName(instance.ID, name), actorID, nil); err != nil {
		return domain.Database{}, err
	}
	return database, tx.Commit()
}

// CreateSheet stores a user-authored SQL sheet.
func (e Engine) CreateSheet(ctx context.Context, projectID, title, statement, creatorID string) (domain.Sheet, error) {
	if statement == "" {
		return domain.Sheet{}, invalidf("sheet statement is required")
	}
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		return domain.Sheet{}, fmt.Errorf("project %q: %w", projectID, err)
	}
	sheet := domain.Sheet{
		ProjectID: projectID,
		Title:     title,
		Statement: statement,
		Source:    domain.SheetSourceUser,
		CreatorID: creatorID,
		CreatedAt: e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Sheet{}, err
	}
	defer tx.Rollback()
	uid, err := e.Repo.InsertSheetTx(ctx, tx, sheet)
	if err != nil {
		return domain.Sheet{}, fmt.Errorf("insert sheet: %w", err)
	}
	sheet.UID = uid
	if err := e.Events.Append(ctx, tx, events.TypeSheetCreated, projectID, "sheet", fmt.Sprintf("%d", uid), creatorID, events.EventPayload{"title": title}); err != nil {
		return domain.Sheet{}, err
	}
	return sheet, tx.Commit()
}

// CreateBackup registers a backup record for a database.
func (e Engine) CreateBackup(ctx context.Context, instanceID, databaseName, name, state, actorID string) (domain.Backup, error) {
	if name == "" {
		return domain.Backup{}, invalidf("backup name is required")
	}
	if state == "" {
		state = "DONE"
	}
	database, err := e.Repo.GetDatabase(ctx, instanceID, databaseName)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("database %q: %w", databaseName, err)
	}
	backup := domain.Backup{
		InstanceID:   database.InstanceID,
		DatabaseName: database.Name,
		Name:         name,
		State:        state,
		CreatedAt:    e.nowRFC3339(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Backup{}, err
	}
	defer tx.Rollback()
	uid, err := e.Repo.InsertBackupTx(ctx, tx, backup)
	if err != nil {
		return domain.Backup{}, fmt.Errorf("insert backup: %w", err)
	}
	backup.UID = uid
	if err := e.Events.Append(ctx, tx, events.TypeBackupCreated, database.ProjectID, "backup", fmt.Sprintf("%d", uid), actorID, nil); err != nil {
		return domain.Backup{}, err
	}
	return backup, tx.Commit()
}
