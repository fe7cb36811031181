package tj

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type fakeSolver struct {
	csv    string
	err    error
	tjp    string
	outDir string
}

func (f *fakeSolver) Run(_ context.Context, tjpPath, outDir string) error {
	content, err := os.ReadFile(tjpPath)
	if err != nil {
		return err
	}
	f.tjp, f.outDir = string(content), outDir
	if f.err != nil {
		return f.err
	}
	if f.csv == "" {
		return nil
	}
	return os.WriteFile(filepath.Join(outDir, "Studio_1.csv"), []byte(f.csv), 0o644)
}

type fakeSink struct {
	rows []Row
	err  error
}

func (s *fakeSink) ApplyScheduleResult(_ context.Context, rows []Row, _ bool) error {
	if s.err != nil {
		return s.err
	}
	s.rows = rows
	return nil
}

const partialCSV = `"Id";"Start";"End";"Resources"
"Project_1";"2026-03-02-09:00";"2026-03-06-18:00";"User_1 (User_1)"
"Project_1.Task_1.Task_2";"2026-03-03-09:00";"2026-03-03-12:00";"User_2 (User_2)"
"Project_1.Task_99";"2026-03-03-09:00";"2026-03-03-12:00";""
`

func newScheduler(f *fixture, solver Solver, sink ResultSink) *Scheduler {
	s := testStudio()
	s.Scheduler.ComputeResources = true
	return &Scheduler{Studio: &s, Workspace: f.ws, Solver: solver, Sink: sink}
}

func TestSchedule_ImportsOnlyReportedEntities(t *testing.T) {
	f := newFixture(t)
	solver := &fakeSolver{csv: partialCSV}
	sink := &fakeSink{}

	res, err := newScheduler(f, solver, sink).Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if res.Applied.Tasks != 1 || res.Applied.Projects != 1 || res.Applied.Skipped != 1 {
		t.Errorf("applied = %+v", res.Applied)
	}
	if len(sink.rows) != 3 {
		t.Errorf("sink rows = %d, want 3", len(sink.rows))
	}
	if !strings.Contains(solver.tjp, "task Project_1") {
		t.Errorf("solver got no project:\n%s", solver.tjp)
	}

	start := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !f.model.IsScheduled() || !f.model.ComputedStart.Equal(start) || !f.model.Start().Equal(start) {
		t.Errorf("model computed = %v", f.model.ComputedStart)
	}
	if got := f.model.ComputedResources; len(got) != 1 || got[0].ID != 2 {
		t.Errorf("model computed resources = %v", got)
	}
	for _, tk := range []interface{ IsScheduled() bool }{f.asset, f.rig, f.shot} {
		if tk.IsScheduled() {
			t.Errorf("%v scheduled without a result row", tk)
		}
	}
	if !f.project.IsScheduled() || !f.project.End().Equal(time.Date(2026, 3, 6, 18, 0, 0, 0, time.UTC)) {
		t.Errorf("project end = %v", f.project.End())
	}
	if _, err := os.Stat(solver.outDir); !os.IsNotExist(err) {
		t.Errorf("run dir %s was not removed", solver.outDir)
	}
}

func TestSchedule_NoResultLeavesDatesAlone(t *testing.T) {
	f := newFixture(t)
	if _, err := newScheduler(f, &fakeSolver{csv: partialCSV}, nil).Schedule(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := *f.model.ComputedStart

	res, err := newScheduler(f, &fakeSolver{}, nil).Schedule(context.Background())
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(res.Rows) != 0 || !f.model.ComputedStart.Equal(before) {
		t.Errorf("rows = %d, model start = %v, want unchanged %v", len(res.Rows), f.model.ComputedStart, before)
	}
	if len(f.model.ComputedResources) != 1 {
		t.Errorf("computed resources were reset: %v", f.model.ComputedResources)
	}
}

func TestSchedule_SolverFailure(t *testing.T) {
	f := newFixture(t)
	solver := &fakeSolver{csv: partialCSV, err: &SolverError{ExitCode: 1, Stderr: "Error: unknown resource"}}

	_, err := newScheduler(f, solver, &fakeSink{}).Schedule(context.Background())
	var se *SolverError
	if !errors.As(err, &se) || se.ExitCode != 1 {
		t.Fatalf("err = %v, want SolverError", err)
	}
	if f.model.IsScheduled() || f.project.IsScheduled() {
		t.Error("solver failure must not import anything")
	}
	if _, err := os.Stat(solver.outDir); !os.IsNotExist(err) {
		t.Errorf("run dir %s was not removed", solver.outDir)
	}
}

func TestSchedule_SinkFailure(t *testing.T) {
	f := newFixture(t)
	_, err := newScheduler(f, &fakeSolver{csv: partialCSV}, &fakeSink{err: errors.New("disk full")}).Schedule(context.Background())
	if err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("err = %v", err)
	}
	if f.model.IsScheduled() {
		t.Error("workspace updated although the sink failed")
	}
}

func TestSchedule_RequiresStudio(t *testing.T) {
	f := newFixture(t)
	s := &Scheduler{Workspace: f.ws, Solver: &fakeSolver{}}
	if _, err := s.Schedule(context.Background()); !errors.Is(err, ErrNoStudio) {
		t.Errorf("err = %v, want ErrNoStudio", err)
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(newFixture(t).ws); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
