package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"rollplane/internal/domain"
)

func scanPlan(scan func(dest ...any) error) (domain.Plan, error) {
	var p domain.Plan
	var pipelineUID sql.NullInt64
	var description sql.NullString
	var steps string
	err := scan(&p.UID, &p.ProjectID, &pipelineUID, &p.Title, &description, &steps, &p.CreatorID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if pipelineUID.Valid {
		p.PipelineUID = &pipelineUID.Int64
	}
	if description.Valid {
		p.Description = description.String
	}
	if err := json.Unmarshal([]byte(steps), &p.Steps); err != nil {
		return p, fmt.Errorf("decode plan %d steps: %w", p.UID, err)
	}
	return p, nil
}

const planColumns = `uid,project_id,pipeline_uid,title,description,steps_json,creator_id,created_at,updated_at`

func (r Repo) InsertPlanTx(ctx context.Context, tx *sql.Tx, p domain.Plan) (int64, error) {
	steps, err := json.Marshal(p.Steps)
	if err != nil {
		return 0, fmt.Errorf("encode plan steps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO plans(project_id,pipeline_uid,title,description,steps_json,creator_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?)`,
		p.ProjectID, nullableInt64Ptr(p.PipelineUID), p.Title, nullable(p.Description), string(steps), p.CreatorID, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetPlan(ctx context.Context, projectID string, uid int64) (domain.Plan, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE project_id=? AND uid=?`, projectID, uid)
	return scanPlan(row.Scan)
}

func (r Repo) GetPlanTx(ctx context.Context, tx *sql.Tx, projectID string, uid int64) (domain.Plan, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE project_id=? AND uid=?`, projectID, uid)
	return scanPlan(row.Scan)
}

// GetPlanByPipeline finds the plan a pipeline was compiled from, if any.
func (r Repo) GetPlanByPipeline(ctx context.Context, pipelineUID int64) (domain.Plan, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE pipeline_uid=?`, pipelineUID)
	return scanPlan(row.Scan)
}

func (r Repo) ListPlans(ctx context.Context, projectID string) ([]domain.Plan, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+planColumns+` FROM plans WHERE project_id=? ORDER BY uid DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// UpdatePlanStepsTx rewrites the stored steps and bumps updated_at.
func (r Repo) UpdatePlanStepsTx(ctx context.Context, tx *sql.Tx, uid int64, steps []domain.Step, updatedAt string) error {
	data, err := json.Marshal(steps)
	if err != nil {
		return fmt.Errorf("encode plan steps: %w", err)
	}
	res, err := tx.ExecContext(ctx, `UPDATE plans SET steps_json=?, updated_at=? WHERE uid=?`, string(data), updatedAt, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
