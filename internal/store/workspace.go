package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

// Roles of a user on a task.
const (
	roleResource    = "resource"
	roleAlternative = "alternative"
	roleResponsible = "responsible"
	roleWatcher     = "watcher"
	roleComputed    = "computed"
)

// Save replaces the stored workspace with ws in one transaction. Time logs,
// versions and reviews without an id get the next free one.
func (db *DB) Save(ctx context.Context, ws *task.Workspace) error {
	assignIDs(ws)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"reviews", "versions", "time_logs", "dependencies", "task_users", "tasks", "users", "projects"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, p := range ws.Projects {
		start, end := p.PinnedDates()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, name, code, start_at, end_at, computed_start, computed_end)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Code, zeroNull(start), zeroNull(end), nullTime(p.ComputedStart), nullTime(p.ComputedEnd)); err != nil {
			return fmt.Errorf("insert %s: %w", p.TJPID(), err)
		}
	}
	for _, u := range ws.Users {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name, login, email, efficiency) VALUES (?, ?, ?, ?, ?)
		`, u.ID, u.Name, u.Login, u.Email, u.Efficiency); err != nil {
			return fmt.Errorf("insert %s: %w", u.TJPID(), err)
		}
	}

	tasks := ws.Tasks()
	for _, t := range tasks {
		if err := insertTask(ctx, tx, t); err != nil {
			return err
		}
	}
	for _, t := range tasks {
		if err := insertRelations(ctx, tx, t); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	db.log.WithField("tasks", len(tasks)).Debug("workspace saved")
	return nil
}

func insertTask(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	var parentID sql.NullInt64
	position := 0
	siblings := t.Project().Roots()
	if p := t.Parent(); p != nil {
		parentID = sql.NullInt64{Int64: p.ID, Valid: true}
		siblings = p.Children()
	}
	for i, s := range siblings {
		if s == t {
			position = i
		}
	}
	s := t.Schedule()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO tasks (id, project_id, parent_id, position, name, description,
			schedule_timing, schedule_unit, schedule_model, schedule_constraint, start_at, end_at,
			bid_timing, bid_unit, priority, is_milestone, allocation_strategy, persistent_allocation,
			status, review_number, computed_start, computed_end)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Project().ID, parentID, position, t.Name, t.Description,
		s.Timing, string(s.Unit), string(s.Model), int(s.Constraint), formatTime(s.Start), formatTime(s.End),
		t.BidTiming, string(t.BidUnit), t.Priority(), boolInt(t.IsMilestone()), t.AllocationStrategy(), boolInt(t.PersistentAllocation()),
		string(t.Status()), t.ReviewNumber(), nullTime(t.ComputedStart), nullTime(t.ComputedEnd))
	if err != nil {
		return fmt.Errorf("insert %s: %w", t.TJPID(), err)
	}
	return nil
}

func insertRelations(ctx context.Context, tx *sql.Tx, t *task.Task) error {
	roles := []struct {
		role  string
		users []*task.User
	}{
		{roleResource, t.Resources()},
		{roleAlternative, t.AlternativeResources()},
		{roleResponsible, t.OwnResponsible()},
		{roleWatcher, t.Watchers()},
		{roleComputed, t.ComputedResources},
	}
	for _, r := range roles {
		for i, u := range r.users {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO task_users (task_id, user_id, role, position) VALUES (?, ?, ?, ?)
			`, t.ID, u.ID, r.role, i); err != nil {
				return fmt.Errorf("insert %s %s: %w", t.TJPID(), r.role, err)
			}
		}
	}
	for _, d := range t.Depends() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dependencies (task_id, depends_on_id, target, gap_timing, gap_unit, gap_model)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ID, d.DependsOn.ID, string(d.Target), d.GapTiming, string(d.GapUnit), string(d.GapModel)); err != nil {
			return fmt.Errorf("insert dependency %s: %w", d, err)
		}
	}
	for _, l := range t.TimeLogs() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO time_logs (id, task_id, user_id, start_at, end_at) VALUES (?, ?, ?, ?, ?)
		`, l.ID, t.ID, l.Resource().ID, formatTime(l.Start()), formatTime(l.End())); err != nil {
			return fmt.Errorf("insert time log %d: %w", l.ID, err)
		}
	}
	for _, v := range t.Versions() {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO versions (id, task_id, number, description) VALUES (?, ?, ?, ?)
		`, v.ID, t.ID, v.Number, v.Description); err != nil {
			return fmt.Errorf("insert version %d: %w", v.ID, err)
		}
	}
	for _, r := range t.Reviews() {
		var versionID sql.NullInt64
		if v := r.Version(); v != nil {
			versionID = sql.NullInt64{Int64: v.ID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO reviews (id, task_id, reviewer_id, version_id, review_number, status,
				schedule_timing, schedule_unit, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, t.ID, r.Reviewer().ID, versionID, r.ReviewNumber(), string(r.Status()),
			r.ScheduleTiming(), string(r.ScheduleUnit()), r.Description); err != nil {
			return fmt.Errorf("insert review %d: %w", r.ID, err)
		}
	}
	return nil
}

// assignIDs numbers new time logs, versions and reviews.
func assignIDs(ws *task.Workspace) {
	var logID, versionID, reviewID int64
	tasks := ws.Tasks()
	for _, t := range tasks {
		for _, l := range t.TimeLogs() {
			logID = max(logID, l.ID)
		}
		for _, v := range t.Versions() {
			versionID = max(versionID, v.ID)
		}
		for _, r := range t.Reviews() {
			reviewID = max(reviewID, r.ID)
		}
	}
	for _, t := range tasks {
		for _, l := range t.TimeLogs() {
			if l.ID == 0 {
				logID++
				l.ID = logID
			}
		}
		for _, v := range t.Versions() {
			if v.ID == 0 {
				versionID++
				v.ID = versionID
			}
		}
		for _, r := range t.Reviews() {
			if r.ID == 0 {
				reviewID++
				r.ID = reviewID
			}
		}
	}
}

// Load rebuilds the workspace. Every project measures time in wh.
func (db *DB) Load(ctx context.Context, wh timeunit.Source) (*task.Workspace, error) {
	ws := &task.Workspace{}
	if err := db.loadProjects(ctx, ws, wh); err != nil {
		return nil, err
	}
	if err := db.loadUsers(ctx, ws); err != nil {
		return nil, err
	}
	restored, err := db.loadTasks(ctx, ws)
	if err != nil {
		return nil, err
	}
	if err := db.loadTaskUsers(ctx, ws); err != nil {
		return nil, err
	}
	if err := db.loadDependencies(ctx, ws); err != nil {
		return nil, err
	}
	if err := db.loadTimeLogs(ctx, ws); err != nil {
		return nil, err
	}
	versions, err := db.loadVersions(ctx, ws)
	if err != nil {
		return nil, err
	}
	if err := db.loadReviews(ctx, ws, versions); err != nil {
		return nil, err
	}
	// Statuses last so adding edges above can not overwrite them.
	for _, r := range restored {
		r.task.RestoreStatus(r.status)
		r.task.RestoreReviewNumber(r.reviewNumber)
	}
	return ws, nil
}

func (db *DB) loadProjects(ctx context.Context, ws *task.Workspace, wh timeunit.Source) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, code, start_at, end_at, computed_start, computed_end FROM projects ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id                                     int64
			name, code                             string
			start, end, computedStart, computedEnd sql.NullString
		)
		if err := rows.Scan(&id, &name, &code, &start, &end, &computedStart, &computedEnd); err != nil {
			return err
		}
		p := task.NewProject(id, name, wh)
		p.Code = code
		cs, ce, err := parseNullTimes(computedStart, computedEnd)
		if err != nil {
			return fmt.Errorf("%s: %w", p.TJPID(), err)
		}
		if cs != nil && ce != nil {
			p.SetComputed(*cs, *ce)
		}
		s, e, err := parseNullTimes(start, end)
		if err != nil {
			return fmt.Errorf("%s: %w", p.TJPID(), err)
		}
		if s != nil && e != nil {
			if err := p.SetDates(*s, *e); err != nil {
				return err
			}
		}
		ws.AddProject(p)
	}
	return rows.Err()
}

func parseNullTimes(a, b sql.NullString) (*time.Time, *time.Time, error) {
	ta, err := parseNullTime(a)
	if err != nil {
		return nil, nil, err
	}
	tb, err := parseNullTime(b)
	if err != nil {
		return nil, nil, err
	}
	return ta, tb, nil
}

func (db *DB) loadUsers(ctx context.Context, ws *task.Workspace) error {
	rows, err := db.QueryContext(ctx, `SELECT id, name, login, email, efficiency FROM users ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		u := &task.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Login, &u.Email, &u.Efficiency); err != nil {
			return err
		}
		ws.AddUser(u)
	}
	return rows.Err()
}

type restoredStatus struct {
	task         *task.Task
	status       task.Status
	reviewNumber int
}

// taskTreeQuery enumerates tasks parent first along their materialized path.
const taskTreeQuery = `
	WITH RECURSIVE tree(id, path) AS (
		SELECT id, printf('%010d.%010d', project_id, position) FROM tasks WHERE parent_id IS NULL
		UNION ALL
		SELECT t.id, tree.path || '.' || printf('%010d', t.position)
		FROM tasks t JOIN tree ON t.parent_id = tree.id
	)
	SELECT t.id, t.project_id, t.parent_id, t.name, t.description,
		t.schedule_timing, t.schedule_unit, t.schedule_model, t.schedule_constraint, t.start_at, t.end_at,
		t.bid_timing, t.bid_unit, t.priority, t.is_milestone, t.allocation_strategy, t.persistent_allocation,
		t.status, t.review_number, t.computed_start, t.computed_end
	FROM tree JOIN tasks t ON t.id = tree.id
	ORDER BY tree.path
`

func (db *DB) loadTasks(ctx context.Context, ws *task.Workspace) ([]restoredStatus, error) {
	rows, err := db.QueryContext(ctx, taskTreeQuery)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*task.Task)
	var restored []restoredStatus
	for rows.Next() {
		var (
			id, projectID              int64
			parentID                   sql.NullInt64
			name, desc                 string
			s                          task.Schedule
			unit, model                string
			constraint                 int
			start, end                 string
			bidTiming                  float64
			bidUnit                    string
			priority                   int
			milestone, persistent      bool
			strategy, status           string
			reviewNumber               int
			computedStart, computedEnd sql.NullString
		)
		if err := rows.Scan(&id, &projectID, &parentID, &name, &desc,
			&s.Timing, &unit, &model, &constraint, &start, &end,
			&bidTiming, &bidUnit, &priority, &milestone, &strategy, &persistent,
			&status, &reviewNumber, &computedStart, &computedEnd); err != nil {
			return nil, err
		}
		s.Unit, s.Model, s.Constraint = timeunit.Unit(unit), timeunit.Model(model), timeunit.Constraint(constraint)
		if s.Start, err = parseTime(start); err != nil {
			return nil, err
		}
		if s.End, err = parseTime(end); err != nil {
			return nil, err
		}

		opts := task.Options{Description: desc, Schedule: s, IsMilestone: milestone, Logger: db.log}
		if parentID.Valid {
			opts.Parent = byID[parentID.Int64]
			if opts.Parent == nil {
				return nil, fmt.Errorf("task %d: parent %d not loaded", id, parentID.Int64)
			}
		} else {
			opts.Project = ws.Project(projectID)
		}
		t, err := task.New(id, name, opts)
		if err != nil {
			return nil, fmt.Errorf("restore task %d: %w", id, err)
		}
		t.BidTiming, t.BidUnit = bidTiming, timeunit.Unit(bidUnit)
		t.SetPriority(priority)
		if err := t.SetAllocation(strategy, persistent); err != nil {
			return nil, err
		}
		cs, err := parseNullTime(computedStart)
		if err != nil {
			return nil, err
		}
		ce, err := parseNullTime(computedEnd)
		if err != nil {
			return nil, err
		}
		if cs != nil && ce != nil {
			t.SetComputed(*cs, *ce)
		}
		if err := t.SetDates(s.Start, s.End); err != nil {
			return nil, err
		}
		byID[id] = t
		restored = append(restored, restoredStatus{task: t, status: task.Status(status), reviewNumber: reviewNumber})
	}
	return restored, rows.Err()
}

func (db *DB) loadTaskUsers(ctx context.Context, ws *task.Workspace) error {
	rows, err := db.QueryContext(ctx, `SELECT task_id, user_id, role FROM task_users ORDER BY task_id, role, position`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type key struct {
		task int64
		role string
	}
	users := make(map[key][]*task.User)
	var order []key
	for rows.Next() {
		var k key
		var uid int64
		if err := rows.Scan(&k.task, &uid, &k.role); err != nil {
			return err
		}
		if _, seen := users[k]; !seen {
			order = append(order, k)
		}
		users[k] = append(users[k], ws.User(uid))
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, k := range order {
		t := ws.Task(k.task)
		if t == nil {
			continue
		}
		us := users[k]
		var err error
		switch k.role {
		case roleResource:
			err = t.SetResources(us...)
		case roleAlternative:
			err = t.SetAlternativeResources(us...)
		case roleResponsible:
			err = t.SetResponsible(us...)
		case roleWatcher:
			for _, u := range us {
				t.AddWatcher(u)
			}
		case roleComputed:
			t.ComputedResources = us
		}
		if err != nil {
			return fmt.Errorf("restore %s of %s: %w", k.role, t.TJPID(), err)
		}
	}
	return nil
}

func (db *DB) loadDependencies(ctx context.Context, ws *task.Workspace) error {
	rows, err := db.QueryContext(ctx, `
		SELECT task_id, depends_on_id, target, gap_timing, gap_unit, gap_model FROM dependencies ORDER BY rowid
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type edge struct {
		from, to            int64
		target, unit, model string
		gap                 float64
	}
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.from, &e.to, &e.target, &e.gap, &e.unit, &e.model); err != nil {
			return err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, e := range edges {
		t, dep := ws.Task(e.from), ws.Task(e.to)
		if t == nil || dep == nil {
			return fmt.Errorf("dependency %d -> %d references a missing task", e.from, e.to)
		}
		if _, err := t.AddDependency(dep,
			task.WithTarget(task.DependencyTarget(e.target)),
			task.WithGap(e.gap, timeunit.Unit(e.unit), task.GapModel(e.model)),
		); err != nil {
			return fmt.Errorf("restore dependency: %w", err)
		}
	}
	return nil
}

func (db *DB) loadTimeLogs(ctx context.Context, ws *task.Workspace) error {
	rows, err := db.QueryContext(ctx, `SELECT id, task_id, user_id, start_at, end_at FROM time_logs ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type logRow struct {
		id, taskID, userID int64
		start, end         string
	}
	var logs []logRow
	for rows.Next() {
		var l logRow
		if err := rows.Scan(&l.id, &l.taskID, &l.userID, &l.start, &l.end); err != nil {
			return err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, l := range logs {
		t := ws.Task(l.taskID)
		if t == nil {
			return fmt.Errorf("time log %d: task %d missing", l.id, l.taskID)
		}
		start, err := parseTime(l.start)
		if err != nil {
			return err
		}
		end, err := parseTime(l.end)
		if err != nil {
			return err
		}
		if _, err := t.AttachTimeLog(l.id, ws.User(l.userID), start, end); err != nil {
			return fmt.Errorf("restore time log %d: %w", l.id, err)
		}
	}
	return nil
}

func (db *DB) loadVersions(ctx context.Context, ws *task.Workspace) (map[int64]*task.Version, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, task_id, description FROM versions ORDER BY task_id, number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type versionRow struct {
		id, taskID int64
		desc       string
	}
	var vs []versionRow
	for rows.Next() {
		var v versionRow
		if err := rows.Scan(&v.id, &v.taskID, &v.desc); err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make(map[int64]*task.Version)
	for _, v := range vs {
		t := ws.Task(v.taskID)
		if t == nil {
			return nil, fmt.Errorf("version %d: task %d missing", v.id, v.taskID)
		}
		ver := t.NewVersion(v.desc)
		ver.ID = v.id
		out[v.id] = ver
	}
	return out, nil
}

func (db *DB) loadReviews(ctx context.Context, ws *task.Workspace, versions map[int64]*task.Version) error {
	rows, err := db.QueryContext(ctx, `
		SELECT id, task_id, reviewer_id, version_id, review_number, status, schedule_timing, schedule_unit, description
		FROM reviews ORDER BY id
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	type reviewRow struct {
		id, taskID, reviewerID int64
		versionID              sql.NullInt64
		number                 int
		status, unit, desc     string
		timing                 float64
	}
	var rs []reviewRow
	for rows.Next() {
		var r reviewRow
		if err := rows.Scan(&r.id, &r.taskID, &r.reviewerID, &r.versionID, &r.number, &r.status, &r.timing, &r.unit, &r.desc); err != nil {
			return err
		}
		rs = append(rs, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, r := range rs {
		t := ws.Task(r.taskID)
		if t == nil {
			return fmt.Errorf("review %d: task %d missing", r.id, r.taskID)
		}
		var v *task.Version
		if r.versionID.Valid {
			v = versions[r.versionID.Int64]
		}
		t.AttachReview(r.id, ws.User(r.reviewerID), v, r.number, task.Status(r.status),
			r.timing, timeunit.Unit(r.unit), r.desc)
	}
	return nil
}
