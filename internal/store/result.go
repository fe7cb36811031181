package store

import (
	"context"
	"fmt"

	"github.com/joshharrison/shotloom/internal/tj"
)

// ApplyScheduleResult writes solver dates (and, when computeResources is
// set, the computed resources) for the reported rows in one transaction.
func (db *DB) ApplyScheduleResult(ctx context.Context, rows []tj.Row, computeResources bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if computeResources {
		if _, err := tx.ExecContext(ctx, `DELETE FROM task_users WHERE role = ?`, roleComputed); err != nil {
			return fmt.Errorf("clear computed resources: %w", err)
		}
	}

	var tasks, projects int
	for _, r := range rows {
		start, end := formatTime(r.Start), formatTime(r.End)
		// Zero-length spans (milestones) only update the computed dates.
		span := r.End.After(r.Start)
		switch r.Kind {
		case tj.RowProject:
			if _, err := tx.ExecContext(ctx, `
				UPDATE projects SET computed_start = ?, computed_end = ?,
					start_at = CASE WHEN ? THEN ? ELSE start_at END,
					end_at = CASE WHEN ? THEN ? ELSE end_at END
				WHERE id = ?
			`, start, end, boolInt(span), start, boolInt(span), end, r.ID); err != nil {
				return fmt.Errorf("update Project_%d: %w", r.ID, err)
			}
			projects++
		case tj.RowTask:
			res, err := tx.ExecContext(ctx, `
				UPDATE tasks SET computed_start = ?, computed_end = ?,
					start_at = CASE WHEN ? AND NOT EXISTS (SELECT 1 FROM tasks c WHERE c.parent_id = tasks.id) THEN ? ELSE start_at END,
					end_at = CASE WHEN ? AND NOT EXISTS (SELECT 1 FROM tasks c WHERE c.parent_id = tasks.id) THEN ? ELSE end_at END
				WHERE id = ?
			`, start, end, boolInt(span), start, boolInt(span), end, r.ID)
			if err != nil {
				return fmt.Errorf("update Task_%d: %w", r.ID, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				db.log.WithField("task", r.ID).Warn("schedule result names an unknown task")
				continue
			}
			tasks++
			if !computeResources {
				continue
			}
			for i, uid := range r.Resources {
				if _, err := tx.ExecContext(ctx, `
					INSERT OR IGNORE INTO task_users (task_id, user_id, role, position) VALUES (?, ?, ?, ?)
				`, r.ID, uid, roleComputed, i); err != nil {
					return fmt.Errorf("store computed resources of Task_%d: %w", r.ID, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.log.WithField("tasks", tasks).WithField("projects", projects).Info("schedule result stored")
	return nil
}
