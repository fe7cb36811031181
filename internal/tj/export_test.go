package tj

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joshharrison/shotloom/internal/studio"
	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ws                      *task.Workspace
	project                 *task.Project
	asset, model, rig, shot *task.Task
}

// newFixture builds an asset container with a model and a rig plus a shot
// milestone waiting on the asset.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ws := &task.Workspace{}
	p := task.NewProject(1, "Feature", timeunit.Defaults)
	ws.AddProject(p)
	ada, bob, cy := task.NewUser(1, "Ada", "ada"), task.NewUser(2, "Bob", "bob"), task.NewUser(3, "Cy", "cy")
	ws.AddUser(cy)
	ws.AddUser(ada)
	ws.AddUser(bob)

	mk := func(id int64, name string, parent *task.Task) *task.Task {
		tk, err := task.New(id, name, task.Options{Project: p, Parent: parent, Schedule: task.Schedule{Start: t0}})
		if err != nil {
			t.Fatalf("task.New(%d): %v", id, err)
		}
		return tk
	}
	f := &fixture{ws: ws, project: p}
	f.asset = mk(1, "Asset", nil)
	f.model = mk(2, "Model", f.asset)
	f.rig = mk(3, "Rig", f.asset)
	f.shot = mk(4, "Shot", nil)

	f.model.SetSchedule(3, timeunit.Hour)
	f.model.SetPriority(800)
	must(t, f.model.SetResources(ada))
	must(t, f.model.SetAlternativeResources(bob, cy))
	must(t, f.model.SetAllocation(task.AllocOrder, true))
	if _, err := f.model.CreateTimeLog(ada, t0, t0.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.rig.AddDependency(f.model, task.WithGap(2, timeunit.Day, task.GapLength)); err != nil {
		t.Fatal(err)
	}
	if _, err := f.shot.AddDependency(f.asset); err != nil {
		t.Fatal(err)
	}
	f.shot.SetMilestone(true)
	f.shot.SetScheduleConstraint(timeunit.ConstrainStart)
	return f
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func testStudio() studio.Studio {
	s := studio.Default()
	s.Start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.End = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = t0
	s.Vacations = []studio.Vacation{{
		Name:  "Spring break",
		Start: time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 4, 11, 0, 0, 0, 0, time.UTC),
	}}
	return s
}

func TestProjectBuffer(t *testing.T) {
	f := newFixture(t)
	want := `task Project_1 "Project_1" {
  task Task_1 "Task_1" {
    task Task_2 "Task_2" {
      priority 800
      effort 3h
      allocate User_1 { alternative User_2, User_3 select order persistent }
      booking User_1 2026-03-02-09:00 - 2026-03-02-11:00 { overtime 2 }
    }
    task Task_3 "Task_3" {
      depends Project_1.Task_1.Task_2 {onend gaplength 2d}
    }
  }
  task Task_4 "Task_4" {
    depends Project_1.Task_1 {onend}
    milestone
    start 2026-03-02-09:00
  }
}`
	if got := ProjectBuffer(f.project); got != want {
		t.Errorf("ProjectBuffer mismatch\n got:\n%s\nwant:\n%s", got, want)
	}
}

func TestProjectBuffer_ClosesDeepNesting(t *testing.T) {
	p := task.NewProject(7, "Deep", nil)
	var parent *task.Task
	for id := int64(1); id <= 3; id++ {
		tk, err := task.New(id, "level", task.Options{Project: p, Parent: parent, Schedule: task.Schedule{Start: t0}})
		if err != nil {
			t.Fatal(err)
		}
		parent = tk
	}
	if _, err := task.New(4, "sibling", task.Options{Project: p, Schedule: task.Schedule{Start: t0}}); err != nil {
		t.Fatal(err)
	}

	got := ProjectBuffer(p)
	if strings.Count(got, "{") != strings.Count(got, "}") {
		t.Fatalf("unbalanced brackets:\n%s", got)
	}
	want := "      }\n    }\n  }\n  task Task_4"
	if !strings.Contains(got, want) {
		t.Errorf("expected three closes before the sibling:\n%s", got)
	}
}

func TestProjectBuffer_DependencyOnStartWithDurationGap(t *testing.T) {
	p := task.NewProject(1, "Feature", nil)
	a, err := task.New(1, "a", task.Options{Project: p, Schedule: task.Schedule{Start: t0}})
	must(t, err)
	b, err := task.New(2, "b", task.Options{Project: p, Schedule: task.Schedule{Start: t0}})
	must(t, err)
	if _, err := b.AddDependency(a, task.WithTarget(task.OnStart), task.WithGap(1.5, timeunit.Hour, task.GapDuration)); err != nil {
		t.Fatal(err)
	}
	if got := ProjectBuffer(p); !strings.Contains(got, "depends Project_1.Task_1 {onstart gapduration 1.5h}") {
		t.Errorf("depends clause missing:\n%s", got)
	}
}

func TestRender_StudioSettings(t *testing.T) {
	f := newFixture(t)
	out, err := Exporter{Studio: testStudio()}.Render(f.ws, "Studio_1")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for _, want := range []string{
		`project Studio_1 "Studio_1" 2026-01-01-00:00 - 2027-01-01-00:00 {`,
		"  timingresolution 60min\n",
		"  now 2026-03-02-09:00\n",
		"  dailyworkinghours 9\n",
		"  workinghours mon 09:00 - 18:00\n",
		"  workinghours sun off\n",
		`leaves holiday "Spring break" 2026-04-06-00:00 - 2026-04-11-00:00`,
		"resource User_1 \"User_1\" {\n  efficiency 1\n}",
		ProjectBuffer(f.project),
		`taskreport breakdown "Studio_1" {`,
		"  columns id, start, end\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("tjp missing %q\n%s", want, out)
		}
	}
	if strings.Index(out, "User_1") > strings.Index(out, "resource User_3") {
		t.Error("resources should be sorted by id")
	}

	out, err = Exporter{Studio: testStudio(), ComputeResources: true}.Render(f.ws, "Studio_1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "columns id, start, end, resources") {
		t.Errorf("resources column missing:\n%s", out)
	}
}

func TestRender_CustomTemplate(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "studio.tjp.tmpl")
	if err := os.WriteFile(path, []byte(`{{.ID}} {{len .Projects}} {{.Report}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := Exporter{Studio: testStudio(), TemplatePath: path}.Render(f.ws, "r")
	if err != nil {
		t.Fatal(err)
	}
	if out != "Studio_1 1 r" {
		t.Errorf("out = %q", out)
	}

	if _, err := (Exporter{Studio: testStudio(), TemplatePath: path + ".missing"}).Render(f.ws, "r"); err == nil {
		t.Error("expected error for missing template")
	}
}

func TestRender_ProjectFilter(t *testing.T) {
	f := newFixture(t)
	other := task.NewProject(2, "Commercial", nil)
	f.ws.AddProject(other)
	if _, err := task.New(10, "Edit", task.Options{Project: other, Schedule: task.Schedule{Start: t0}}); err != nil {
		t.Fatal(err)
	}

	out, err := Exporter{Studio: testStudio(), ProjectIDs: []int64{2}}.Render(f.ws, "r")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "task Project_1") || !strings.Contains(out, "task Project_2") {
		t.Errorf("filter not applied:\n%s", out)
	}
}

func TestRender_ProjectFilterRejectsOutsideDependency(t *testing.T) {
	f := newFixture(t)
	other := task.NewProject(2, "Commercial", nil)
	f.ws.AddProject(other)
	edit, err := task.New(10, "Edit", task.Options{Project: other, Schedule: task.Schedule{Start: t0}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := edit.AddDependency(f.model); err != nil {
		t.Fatal(err)
	}

	_, err = Exporter{Studio: testStudio(), ProjectIDs: []int64{2}}.Render(f.ws, "r")
	if !errors.Is(err, ErrOutsideExport) {
		t.Fatalf("err = %v, want ErrOutsideExport", err)
	}
	if !strings.Contains(err.Error(), "Task_10 depends on Task_2 in Project_1") {
		t.Errorf("error = %q", err)
	}

	if _, err := (Exporter{Studio: testStudio(), ProjectIDs: []int64{1, 2}}).Render(f.ws, "r"); err != nil {
		t.Errorf("full export: %v", err)
	}
}
