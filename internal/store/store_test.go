package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
	"github.com/joshharrison/shotloom/internal/tj"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "shotloom.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type fixture struct {
	ws                *task.Workspace
	asset, model, rig *task.Task
	artist, lead      *task.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{ws: &task.Workspace{}}
	p := task.NewProject(1, "Feature", timeunit.Defaults)
	p.Code = "FT"
	f.ws.AddProject(p)
	f.artist = task.NewUser(1, "Ada Artist", "ada")
	f.lead = task.NewUser(2, "Lee Lead", "lee")
	f.ws.AddUser(f.artist)
	f.ws.AddUser(f.lead)

	mk := func(id int64, name string, parent *task.Task) *task.Task {
		opts := task.Options{Project: p, Parent: parent, Schedule: task.Schedule{Start: t0}}
		tk, err := task.New(id, name, opts)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		return tk
	}
	f.asset = mk(1, "Asset", nil)
	f.model = mk(2, "Model", f.asset)
	f.rig = mk(3, "Rig", f.asset)

	f.model.SetSchedule(2, timeunit.Hour)
	f.model.SetPriority(700)
	if err := f.model.SetResources(f.artist); err != nil {
		t.Fatal(err)
	}
	if err := f.model.SetResponsible(f.lead); err != nil {
		t.Fatal(err)
	}
	f.model.AddWatcher(f.lead)
	if _, err := f.rig.AddDependency(f.model, task.WithGap(1, timeunit.Day, task.GapDuration)); err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if _, err := f.model.CreateTimeLog(f.artist, t0, t0.Add(2*time.Hour)); err != nil {
		t.Fatalf("CreateTimeLog: %v", err)
	}
	if _, err := f.model.RequestReview(f.model.NewVersion("first pass")); err != nil {
		t.Fatalf("RequestReview: %v", err)
	}
	return f
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if v, err := db.GetSetting(ctx, "last_schedule"); err != nil || v != "" {
		t.Fatalf("missing setting = %q, %v", v, err)
	}
	if err := db.SetSetting(ctx, "last_schedule", "a"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSetting(ctx, "last_schedule", "b"); err != nil {
		t.Fatal(err)
	}
	if v, _ := db.GetSetting(ctx, "last_schedule"); v != "b" {
		t.Errorf("setting = %q, want b", v)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := newFixture(t)

	if err := db.Save(ctx, f.ws); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ws, err := db.Load(ctx, timeunit.Defaults)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(ws.Projects) != 1 || ws.Projects[0].Code != "FT" {
		t.Fatalf("projects = %+v", ws.Projects)
	}
	if u := ws.UserByLogin("lee"); u == nil || u.Name != "Lee Lead" {
		t.Errorf("user lee = %+v", u)
	}

	asset, model, rig := ws.Task(1), ws.Task(2), ws.Task(3)
	if asset == nil || model == nil || rig == nil {
		t.Fatalf("tasks missing: %v", ws.Tasks())
	}
	kids := asset.Children()
	if len(kids) != 2 || kids[0] != model || kids[1] != rig {
		t.Errorf("children = %v, want [Model Rig]", kids)
	}

	if model.Status() != task.StatusPREV || rig.Status() != task.StatusWFD {
		t.Errorf("statuses = %s, %s; want PREV, WFD", model.Status(), rig.Status())
	}
	if asset.Status() != f.asset.Status() {
		t.Errorf("asset status = %s, want %s", asset.Status(), f.asset.Status())
	}
	if model.Priority() != 700 {
		t.Errorf("priority = %d", model.Priority())
	}
	s := model.Schedule()
	if s.Timing != 2 || s.Unit != timeunit.Hour || !s.Start.Equal(f.model.Start()) || !s.End.Equal(f.model.End()) {
		t.Errorf("schedule = %+v", s)
	}

	if r := model.Resources(); len(r) != 1 || r[0].Login != "ada" {
		t.Errorf("resources = %v", r)
	}
	if r := model.OwnResponsible(); len(r) != 1 || r[0].Login != "lee" {
		t.Errorf("responsible = %v", r)
	}
	if w := model.Watchers(); len(w) != 1 {
		t.Errorf("watchers = %v", w)
	}

	deps := rig.Depends()
	if len(deps) != 1 {
		t.Fatalf("depends = %v", deps)
	}
	d := deps[0]
	if d.DependsOn != model || d.Target != task.OnEnd || d.GapTiming != 1 || d.GapUnit != timeunit.Day || d.GapModel != task.GapDuration {
		t.Errorf("dependency = %+v", d)
	}

	logs := model.TimeLogs()
	if len(logs) != 1 || logs[0].ID != 1 || !logs[0].Start().Equal(t0) {
		t.Fatalf("time logs = %v", logs)
	}
	if got := ws.UserByLogin("ada").TimeLogs(); len(got) != 1 {
		t.Errorf("user time logs = %d", len(got))
	}

	reviews := model.Reviews()
	if len(reviews) != 1 {
		t.Fatalf("reviews = %v", reviews)
	}
	r := reviews[0]
	if r.ID != 1 || r.ReviewNumber() != 1 || r.Status() != task.StatusNEW || r.Reviewer().Login != "lee" {
		t.Errorf("review = %+v", r)
	}
	if r.Version() == nil || r.Version().Description != "first pass" {
		t.Errorf("review version = %+v", r.Version())
	}
	if model.ReviewNumber() != 0 {
		t.Errorf("review number = %d, want 0", model.ReviewNumber())
	}
}

func TestSaveLoad_ReviewCanBeFinalizedAfterReload(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Save(ctx, newFixture(t).ws); err != nil {
		t.Fatal(err)
	}
	ws, err := db.Load(ctx, timeunit.Defaults)
	if err != nil {
		t.Fatal(err)
	}
	r := ws.Task(2).Reviews()[0]
	if err := r.Approve(); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if got := ws.Task(2).Status(); got != task.StatusCMPL {
		t.Errorf("model = %s, want CMPL", got)
	}
	if got := ws.Task(3).Status(); got != task.StatusRTS {
		t.Errorf("rig = %s, want RTS", got)
	}
	if err := db.Save(ctx, ws); err != nil {
		t.Fatalf("second Save: %v", err)
	}
}

func TestSave_AssignsIDs(t *testing.T) {
	db := openTestDB(t)
	f := newFixture(t)
	start := t0.Add(24 * time.Hour)
	if _, err := f.rig.AttachTimeLog(0, f.lead, start, start.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := db.Save(context.Background(), f.ws); err != nil {
		t.Fatal(err)
	}
	if id := f.rig.TimeLogs()[0].ID; id != 2 {
		t.Errorf("new time log id = %d, want 2", id)
	}
}

func TestApplyScheduleResult(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := newFixture(t)
	if err := db.Save(ctx, f.ws); err != nil {
		t.Fatal(err)
	}

	start, end := t0.Add(48*time.Hour), t0.Add(50*time.Hour)
	rows := []tj.Row{
		{Kind: tj.RowProject, ID: 1, Start: t0, End: end},
		{Kind: tj.RowTask, ID: 1, Start: t0, End: end},
		{Kind: tj.RowTask, ID: 3, Start: start, End: end, Resources: []int64{2}},
		{Kind: tj.RowTask, ID: 99, Start: start, End: end},
	}
	if err := db.ApplyScheduleResult(ctx, rows, true); err != nil {
		t.Fatalf("ApplyScheduleResult: %v", err)
	}

	ws, err := db.Load(ctx, timeunit.Defaults)
	if err != nil {
		t.Fatal(err)
	}
	rig := ws.Task(3)
	if !rig.IsScheduled() || !rig.ComputedStart.Equal(start) || !rig.Start().Equal(start) || !rig.End().Equal(end) {
		t.Errorf("rig computed = %v - %v, dates %v - %v", rig.ComputedStart, rig.ComputedEnd, rig.Start(), rig.End())
	}
	if cr := rig.ComputedResources; len(cr) != 1 || cr[0].Login != "lee" {
		t.Errorf("computed resources = %v", cr)
	}
	if asset := ws.Task(1); !asset.IsScheduled() || !asset.ComputedEnd.Equal(end) {
		t.Errorf("asset computed = %v - %v", asset.ComputedStart, asset.ComputedEnd)
	}
	if p := ws.Project(1); !p.IsScheduled() || !p.ComputedStart.Equal(t0) {
		t.Errorf("project computed = %v - %v", p.ComputedStart, p.ComputedEnd)
	}
}

func TestApplyScheduleResult_MilestoneReloads(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := newFixture(t)

	review := task.NewProject(2, "Review", timeunit.Defaults)
	f.ws.AddProject(review)
	delivery, err := task.New(10, "Delivery", task.Options{
		Project:     review,
		IsMilestone: true,
		Schedule:    task.Schedule{Start: t0},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.Save(ctx, f.ws); err != nil {
		t.Fatal(err)
	}

	due := t0.Add(72 * time.Hour)
	rows := []tj.Row{
		{Kind: tj.RowProject, ID: 2, Start: due, End: due},
		{Kind: tj.RowTask, ID: 10, Start: due, End: due},
	}
	if err := db.ApplyScheduleResult(ctx, rows, false); err != nil {
		t.Fatalf("ApplyScheduleResult: %v", err)
	}

	ws, err := db.Load(ctx, timeunit.Defaults)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	m := ws.Task(10)
	if !m.IsScheduled() || !m.ComputedStart.Equal(due) || !m.ComputedEnd.Equal(due) {
		t.Errorf("milestone computed = %v - %v, want %v", m.ComputedStart, m.ComputedEnd, due)
	}
	if !m.Start().Equal(delivery.Start()) || !m.End().Equal(delivery.End()) {
		t.Errorf("milestone dates = %v - %v, want %v - %v", m.Start(), m.End(), delivery.Start(), delivery.End())
	}
	if p := ws.Project(2); !p.IsScheduled() || !p.ComputedStart.Equal(due) {
		t.Errorf("project computed = %v - %v", p.ComputedStart, p.ComputedEnd)
	}
}

func TestLoad_RejectsMalformedProjectDates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	if err := db.Save(ctx, newFixture(t).ws); err != nil {
		t.Fatal(err)
	}
	if _, err := db.ExecContext(ctx, `UPDATE projects SET computed_start = 'yesterday', computed_end = 'today'`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Load(ctx, timeunit.Defaults); err == nil {
		t.Fatal("Load accepted a malformed project date")
	}
}
