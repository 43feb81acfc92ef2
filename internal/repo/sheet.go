package repo

import (
	"context"
	"database/sql"

	"rollplane/internal/domain"
)

func (r Repo) InsertSheetTx(ctx context.Context, tx *sql.Tx, s domain.Sheet) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO sheets(project_id,title,statement,source,creator_id,created_at) VALUES (?,?,?,?,?,?)`,
		s.ProjectID, s.Title, s.Statement, s.Source, s.CreatorID, s.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetSheet(ctx context.Context, uid int64) (domain.Sheet, error) {
	var s domain.Sheet
	err := r.DB.QueryRowContext(ctx, `SELECT uid,project_id,title,statement,source,creator_id,created_at FROM sheets WHERE uid=?`, uid).
		Scan(&s.UID, &s.ProjectID, &s.Title, &s.Statement, &s.Source, &s.CreatorID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) GetSheetTx(ctx context.Context, tx *sql.Tx, uid int64) (domain.Sheet, error) {
	var s domain.Sheet
	err := tx.QueryRowContext(ctx, `SELECT uid,project_id,title,statement,source,creator_id,created_at FROM sheets WHERE uid=?`, uid).
		Scan(&s.UID, &s.ProjectID, &s.Title, &s.Statement, &s.Source, &s.CreatorID, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return s, ErrNotFound
	}
	return s, err
}

func (r Repo) ListSheets(ctx context.Context, projectID string) ([]domain.Sheet, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT uid,project_id,title,statement,source,creator_id,created_at FROM sheets WHERE project_id=? ORDER BY uid ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Sheet
	for rows.Next() {
		var s domain.Sheet
		if err := rows.Scan(&s.UID, &s.ProjectID, &s.Title, &s.Statement, &s.Source, &s.CreatorID, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) InsertBackupTx(ctx context.Context, tx *sql.Tx, b domain.Backup) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO backups(instance_id,database_name,name,state,created_at) VALUES (?,?,?,?,?)`,
		b.InstanceID, b.DatabaseName, b.Name, b.State, b.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetBackup(ctx context.Context, uid int64) (domain.Backup, error) {
	var b domain.Backup
	err := r.DB.QueryRowContext(ctx, `SELECT uid,instance_id,database_name,name,state,created_at FROM backups WHERE uid=?`, uid).
		Scan(&b.UID, &b.InstanceID, &b.DatabaseName, &b.Name, &b.State, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

// GetBackupByName resolves a backup by its name within one database.
func (r Repo) GetBackupByName(ctx context.Context, instanceID, databaseName, name string) (domain.Backup, error) {
	var b domain.Backup
	err := r.DB.QueryRowContext(ctx, `SELECT uid,instance_id,database_name,name,state,created_at FROM backups WHERE instance_id=? AND database_name=? AND name=?`,
		instanceID, databaseName, name).
		Scan(&b.UID, &b.InstanceID, &b.DatabaseName, &b.Name, &b.State, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return b, ErrNotFound
	}
	return b, err
}

func (r Repo) ListBackups(ctx context.Context, instanceID, databaseName string) ([]domain.Backup, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT uid,instance_id,database_name,name,state,created_at FROM backups WHERE instance_id=? AND database_name=? ORDER BY uid ASC`,
		instanceID, databaseName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Backup
	for rows.Next() {
		var b domain.Backup
		if err := rows.Scan(&b.UID, &b.InstanceID, &b.DatabaseName, &b.Name, &b.State, &b.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, nil
}
