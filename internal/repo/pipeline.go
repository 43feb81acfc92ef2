package repo

import (
	"context"
	"database/sql"

	"rollplane/internal/domain"
)

func (r Repo) InsertPipelineTx(ctx context.Context, tx *sql.Tx, p domain.Pipeline) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO pipelines(name,creator_id,created_at) VALUES (?,?,?)`,
		p.Name, p.CreatorID, p.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPipeline(ctx context.Context, uid int64) (domain.Pipeline, error) {
	var p domain.Pipeline
	err := r.DB.QueryRowContext(ctx, `SELECT uid,name,creator_id,created_at FROM pipelines WHERE uid=?`, uid).
		Scan(&p.UID, &p.Name, &p.CreatorID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) InsertStageTx(ctx context.Context, tx *sql.Tx, s domain.Stage) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO stages(pipeline_uid,environment_id,name) VALUES (?,?,?)`,
		s.PipelineUID, s.EnvironmentID, s.Name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) ListStagesByPipeline(ctx context.Context, pipelineUID int64) ([]domain.Stage, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT uid,pipeline_uid,environment_id,name FROM stages WHERE pipeline_uid=? ORDER BY uid ASC`, pipelineUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Stage
	for rows.Next() {
		var s domain.Stage
		if err := rows.Scan(&s.UID, &s.PipelineUID, &s.EnvironmentID, &s.Name); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, nil
}

func (r Repo) InsertTaskTx(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO tasks(pipeline_uid,stage_uid,instance_id,database_name,name,type,status,payload,earliest_allowed_ts,creator_id,created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.PipelineUID, t.StageUID, t.InstanceID, nullableStringPtr(t.DatabaseName), t.Name, t.Type, t.Status, t.Payload,
		t.EarliestAllowedTs, t.CreatorID, t.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var databaseName sql.NullString
	err := scan(&t.UID, &t.PipelineUID, &t.StageUID, &t.InstanceID, &databaseName, &t.Name, &t.Type, &t.Status, &t.Payload,
		&t.EarliestAllowedTs, &t.CreatorID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if databaseName.Valid {
		t.DatabaseName = &databaseName.String
	}
	return t, nil
}

const taskColumns = `uid,pipeline_uid,stage_uid,instance_id,database_name,name,type,status,payload,earliest_allowed_ts,creator_id,created_at`

func (r Repo) GetTask(ctx context.Context, uid int64) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE uid=?`, uid)
	return scanTask(row.Scan)
}

func (r Repo) ListTasksByPipeline(ctx context.Context, pipelineUID int64) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE pipeline_uid=? ORDER BY uid ASC`, pipelineUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) ListTasksByPipelineTx(ctx context.Context, tx *sql.Tx, pipelineUID int64) ([]domain.Task, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE pipeline_uid=? ORDER BY uid ASC`, pipelineUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, nil
}

func (r Repo) UpdateTaskPayloadTx(ctx context.Context, tx *sql.Tx, uid int64, payload string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET payload=? WHERE uid=?`, payload, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTaskDAGTx(ctx context.Context, tx *sql.Tx, e domain.TaskDAGEdge) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_dags(from_task_uid,to_task_uid) VALUES (?,?)`,
		e.FromTaskUID, e.ToTaskUID)
	return err
}

func (r Repo) ListTaskDAGsByPipeline(ctx context.Context, pipelineUID int64) ([]domain.TaskDAGEdge, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT d.from_task_uid, d.to_task_uid FROM task_dags d
JOIN tasks t ON t.uid = d.from_task_uid WHERE t.pipeline_uid=? ORDER BY d.to_task_uid ASC, d.from_task_uid ASC`, pipelineUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskDAGEdge
	for rows.Next() {
		var e domain.TaskDAGEdge
		if err := rows.Scan(&e.FromTaskUID, &e.ToTaskUID); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, nil
}
