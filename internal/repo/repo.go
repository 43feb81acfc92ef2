package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"rollplane/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

func (r Repo) InsertEnvironmentTx(ctx context.Context, tx *sql.Tx, e domain.Environment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO environments(id,title,sort_order,created_at) VALUES (?,?,?,?)`,
		e.ID, e.Title, e.SortOrder, e.CreatedAt)
	return err
}

func (r Repo) GetEnvironment(ctx context.Context, id string) (domain.Environment, error) {
	var e domain.Environment
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,sort_order,created_at FROM environments WHERE id=?`, id).
		Scan(&e.ID, &e.Title, &e.SortOrder, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	return e, err
}

func (r Repo) ListEnvironments(ctx context.Context) ([]domain.Environment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,sort_order,created_at FROM environments ORDER BY sort_order ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Environment
	for rows.Next() {
		var e domain.Environment
		if err := rows.Scan(&e.ID, &e.Title, &e.SortOrder, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func (r Repo) InsertInstanceTx(ctx context.Context, tx *sql.Tx, i domain.Instance) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO instances(id,environment_id,engine,title,admin_user,created_at) VALUES (?,?,?,?,?,?)`,
		i.ID, i.EnvironmentID, i.Engine, nullable(i.Title), nullable(i.AdminUser), i.CreatedAt)
	return err
}

func (r Repo) GetInstance(ctx context.Context, id string) (domain.Instance, error) {
	var i domain.Instance
	var title, adminUser sql.NullString
	err := r.DB.QueryRowContext(ctx, `SELECT id,environment_id,engine,title,admin_user,created_at FROM instances WHERE id=?`, id).
		Scan(&i.ID, &i.EnvironmentID, &i.Engine, &title, &adminUser, &i.CreatedAt)
	if err == sql.ErrNoRows {
		return i, ErrNotFound
	}
	if err != nil {
		return i, err
	}
	i.Title = title.String
	i.AdminUser = adminUser.String
	return i, nil
}

func (r Repo) ListInstances(ctx context.Context) ([]domain.Instance, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,environment_id,engine,title,admin_user,created_at FROM instances ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Instance
	for rows.Next() {
		var i domain.Instance
		var title, adminUser sql.NullString
		if err := rows.Scan(&i.ID, &i.EnvironmentID, &i.Engine, &title, &adminUser, &i.CreatedAt); err != nil {
			return nil, err
		}
		i.Title = title.String
		i.AdminUser = adminUser.String
		res = append(res, i)
	}
	return res, nil
}

func (r Repo) InsertDatabaseTx(ctx context.Context, tx *sql.Tx, d domain.Database) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO databases(instance_id,name,project_id,environment_id,created_at) VALUES (?,?,?,?,?)`,
		d.InstanceID, d.Name, d.ProjectID, d.EnvironmentID, d.CreatedAt)
	return err
}

func (r Repo) GetDatabase(ctx context.Context, instanceID, name string) (domain.Database, error) {
	var d domain.Database
	err := r.DB.QueryRowContext(ctx, `SELECT instance_id,name,project_id,environment_id,created_at FROM databases WHERE instance_id=? AND name=?`, instanceID, name).
		Scan(&d.InstanceID, &d.Name, &d.ProjectID, &d.EnvironmentID, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

func (r Repo) ListDatabases(ctx context.Context, projectID string) ([]domain.Database, error) {
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	query := `SELECT instance_id,name,project_id,environment_id,created_at FROM databases WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY instance_id ASC, name ASC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Database
	for rows.Next() {
		var d domain.Database
		if err := rows.Scan(&d.InstanceID, &d.Name, &d.ProjectID, &d.EnvironmentID, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func (r Repo) InsertProjectTx(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO projects(id,title,tenant_mode,created_at) VALUES (?,?,?,?)`,
		p.ID, p.Title, boolInt(p.TenantMode), p.CreatedAt)
	return err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	var p domain.Project
	var tenant int
	err := r.DB.QueryRowContext(ctx, `SELECT id,title,tenant_mode,created_at FROM projects WHERE id=?`, id).
		Scan(&p.ID, &p.Title, &tenant, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	p.TenantMode = tenant != 0
	return p, err
}

func (r Repo) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,tenant_mode,created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		var p domain.Project
		var tenant int
		if err := rows.Scan(&p.ID, &p.Title, &tenant, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.TenantMode = tenant != 0
		res = append(res, p)
	}
	return res, nil
}

// LatestEvents returns the newest events first, optionally filtered.
func (r Repo) LatestEvents(ctx context.Context, limit int, projectID, evtType string) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if projectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, projectID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	query := `SELECT id,ts,type,COALESCE(project_id,''),entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM events WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.ProjectID, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
