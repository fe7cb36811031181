package task

import (
	"errors"
	"testing"
	"time"

	"github.com/joshharrison/shotloom/internal/graph"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

// Monday morning.
var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newProject(id int64) *Project {
	return NewProject(id, "Feature", timeunit.Defaults)
}

func newTask(t *testing.T, p *Project, parent *Task, id int64, name string) *Task {
	t.Helper()
	tk, err := New(id, name, Options{Project: p, Parent: parent, Schedule: Schedule{Start: t0}})
	if err != nil {
		t.Fatalf("New(%d, %q): %v", id, name, err)
	}
	return tk
}

func TestNew_Defaults(t *testing.T) {
	p := newProject(1)
	tk := newTask(t, p, nil, 1, "Layout")

	s := tk.Schedule()
	if s.Timing != 1 || s.Unit != timeunit.Hour || s.Model != timeunit.Effort {
		t.Errorf("schedule = %v %s %s, want 1 h effort", s.Timing, s.Unit, s.Model)
	}
	if !tk.Start().Equal(t0) || !tk.End().Equal(t0.Add(time.Hour)) {
		t.Errorf("dates = %v - %v, want %v - %v", tk.Start(), tk.End(), t0, t0.Add(time.Hour))
	}
	if tk.Status() != StatusRTS {
		t.Errorf("status = %s, want RTS", tk.Status())
	}
	if tk.Priority() != DefaultPriority {
		t.Errorf("priority = %d, want %d", tk.Priority(), DefaultPriority)
	}
	if tk.AllocationStrategy() != AllocMinAllocated {
		t.Errorf("allocation = %s, want %s", tk.AllocationStrategy(), AllocMinAllocated)
	}
	if !tk.IsLeaf() || !tk.IsRoot() {
		t.Error("new root task should be a leaf and a root")
	}
	if len(p.Roots()) != 1 || p.Roots()[0] != tk {
		t.Errorf("project roots = %v, want [%v]", p.Roots(), tk)
	}
}

func TestNew_RequiresProject(t *testing.T) {
	if _, err := New(1, "Orphan", Options{}); !errors.Is(err, ErrNoProject) {
		t.Fatalf("err = %v, want ErrNoProject", err)
	}
	if _, err := New(1, " ", Options{Project: newProject(1)}); !errors.Is(err, ErrInvalidTask) {
		t.Fatalf("err = %v, want ErrInvalidTask", err)
	}
}

func TestNew_ParentProjectWins(t *testing.T) {
	p1, p2 := newProject(1), newProject(2)
	parent := newTask(t, p1, nil, 1, "Asset")

	child, err := New(2, "Model", Options{Project: p2, Parent: parent, Schedule: Schedule{Start: t0}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if child.Project() != p1 {
		t.Errorf("child project = %s, want %s", child.Project().TJPID(), p1.TJPID())
	}
	if len(p2.Roots()) != 0 {
		t.Errorf("p2 should have no roots, got %v", p2.Roots())
	}
}

func TestNew_ParentDropsResources(t *testing.T) {
	p := newProject(1)
	u := NewUser(1, "Ada", "ada")
	parent := newTask(t, p, nil, 1, "Asset")
	if err := parent.SetResources(u); err != nil {
		t.Fatalf("SetResources: %v", err)
	}

	newTask(t, p, parent, 2, "Model")

	if len(parent.Resources()) != 0 {
		t.Errorf("container resources = %v, want none", parent.Resources())
	}
	if err := parent.SetResources(u); !errors.Is(err, ErrContainerResources) {
		t.Errorf("err = %v, want ErrContainerResources", err)
	}
}

func TestSetResources_Validation(t *testing.T) {
	p := newProject(1)
	u := NewUser(1, "Ada", "ada")
	tk := newTask(t, p, nil, 1, "Layout")

	if err := tk.SetResources(u, nil); !errors.Is(err, ErrInvalidResource) {
		t.Errorf("nil user: err = %v, want ErrInvalidResource", err)
	}
	if err := tk.SetResources(u, u); err != nil {
		t.Fatalf("SetResources: %v", err)
	}
	if len(tk.Resources()) != 1 {
		t.Errorf("resources = %d, want duplicates collapsed to 1", len(tk.Resources()))
	}

	tk.SetMilestone(true)
	if len(tk.Resources()) != 0 {
		t.Errorf("milestone kept resources %v", tk.Resources())
	}
	if err := tk.SetResources(u); !errors.Is(err, ErrMilestoneResources) {
		t.Errorf("err = %v, want ErrMilestoneResources", err)
	}
}

func TestPriority(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	tk.SetPriority(1500)
	if tk.Priority() != MaxPriority {
		t.Errorf("priority = %d, want %d", tk.Priority(), MaxPriority)
	}
	tk.SetPriority(-3)
	if tk.Priority() != MinPriority {
		t.Errorf("priority = %d, want %d", tk.Priority(), MinPriority)
	}

	cases := map[string]int{"42": 42, "abc": DefaultPriority, "": DefaultPriority, "1200": MaxPriority, "-5": MinPriority}
	for in, want := range cases {
		if got := ParsePriority(in); got != want {
			t.Errorf("ParsePriority(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSetAllocation(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	if err := tk.SetAllocation(AllocOrder, true); err != nil {
		t.Fatalf("SetAllocation: %v", err)
	}
	if tk.AllocationStrategy() != AllocOrder || !tk.PersistentAllocation() {
		t.Errorf("allocation = %s persistent=%v", tk.AllocationStrategy(), tk.PersistentAllocation())
	}
	if err := tk.SetAllocation("cheapest", false); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestSetSchedule_Reschedules(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")

	tk.SetSchedule(2, timeunit.Day)
	if want := t0.Add(18 * time.Hour); !tk.End().Equal(want) {
		t.Errorf("effort 2d: end = %v, want %v", tk.End(), want)
	}

	tk.SetScheduleConstraint(timeunit.ConstrainEnd)
	tk.SetSchedule(3, timeunit.Hour)
	if want := t0.Add(15 * time.Hour); !tk.Start().Equal(want) {
		t.Errorf("end constraint: start = %v, want %v", tk.Start(), want)
	}
	if want := t0.Add(18 * time.Hour); !tk.End().Equal(want) {
		t.Errorf("end constraint moved end to %v", tk.End())
	}

	tk.SetScheduleConstraint(timeunit.ConstrainBoth)
	start, end := tk.Start(), tk.End()
	tk.SetSchedule(10, timeunit.Hour)
	if !tk.Start().Equal(start) || !tk.End().Equal(end) {
		t.Errorf("both constraint moved dates to %v - %v", tk.Start(), tk.End())
	}

	tk.SetScheduleConstraint(timeunit.ConstrainNone)
	tk.SetScheduleModel(timeunit.Duration)
	tk.SetSchedule(2, timeunit.Day)
	if got := tk.Duration(); got != 48*time.Hour {
		t.Errorf("duration model 2d spans %v, want 48h", got)
	}
}

func TestSetSchedule_StartConstraintHoldsStart(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	start := t0.Add(2 * time.Hour)
	if err := tk.SetDates(start, start.Add(2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	tk.SetScheduleConstraint(timeunit.ConstrainStart)

	tk.SetSchedule(5, timeunit.Hour)
	if !tk.Start().Equal(start) {
		t.Errorf("start constraint moved start to %v, want %v", tk.Start(), start)
	}
	if want := start.Add(5 * time.Hour); !tk.End().Equal(want) {
		t.Errorf("end = %v, want %v", tk.End(), want)
	}

	tk.SetSchedule(1, timeunit.Hour)
	if !tk.Start().Equal(start) || !tk.End().Equal(start.Add(time.Hour)) {
		t.Errorf("shrunk schedule = %v - %v", tk.Start(), tk.End())
	}
}

func TestSetSchedule_ZeroKeepsEndAfterStart(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	tk.SetSchedule(0, timeunit.Hour)
	if !tk.End().After(tk.Start()) {
		t.Errorf("end %v not after start %v", tk.End(), tk.Start())
	}
}

func TestSetDates(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	if err := tk.SetDates(t0, t0); !errors.Is(err, ErrInvalidDates) {
		t.Errorf("err = %v, want ErrInvalidDates", err)
	}
	if err := tk.SetDates(t0, t0.Add(-time.Hour)); !errors.Is(err, ErrInvalidDates) {
		t.Errorf("err = %v, want ErrInvalidDates", err)
	}
	if err := tk.SetDates(t0, t0.Add(4*time.Hour)); err != nil {
		t.Fatalf("SetDates: %v", err)
	}
	if tk.Duration() != 4*time.Hour {
		t.Errorf("duration = %v, want 4h", tk.Duration())
	}
}

func TestContainer_AggregatesDates(t *testing.T) {
	p := newProject(1)
	parent := newTask(t, p, nil, 1, "Asset")
	newTask(t, p, parent, 2, "Model")
	c2 := newTask(t, p, parent, 3, "Rig")
	if err := c2.SetDates(t0.Add(2*time.Hour), t0.Add(5*time.Hour)); err != nil {
		t.Fatal(err)
	}

	if !parent.IsContainer() {
		t.Fatal("parent should be a container")
	}
	if !parent.Start().Equal(t0) || !parent.End().Equal(t0.Add(5*time.Hour)) {
		t.Errorf("container dates = %v - %v", parent.Start(), parent.End())
	}
	if parent.Duration() != 5*time.Hour {
		t.Errorf("container duration = %v, want 5h", parent.Duration())
	}
	if got := parent.ScheduleSeconds(); got != 2*3600 {
		t.Errorf("container schedule seconds = %v, want 7200", got)
	}
	if !p.Start().Equal(t0) || !p.End().Equal(t0.Add(5*time.Hour)) {
		t.Errorf("project span = %v - %v", p.Start(), p.End())
	}
}

func TestIDsAndPath(t *testing.T) {
	p := newProject(1)
	parent := newTask(t, p, nil, 2, "Asset")
	child := newTask(t, p, parent, 3, "Model")

	if child.TJPID() != "Task_3" {
		t.Errorf("TJPID = %s", child.TJPID())
	}
	if got := child.TJPAbsID(); got != "Project_1.Task_2.Task_3" {
		t.Errorf("TJPAbsID = %s", got)
	}
	if got := child.Path(); got != "Feature | Asset | Model" {
		t.Errorf("Path = %s", got)
	}
}

func TestIsScheduled(t *testing.T) {
	tk := newTask(t, newProject(1), nil, 1, "Layout")
	if tk.IsScheduled() {
		t.Fatal("new task should not be scheduled")
	}
	tk.SetComputed(t0.Add(time.Hour), t0.Add(3*time.Hour))
	if !tk.IsScheduled() {
		t.Fatal("task should be scheduled after SetComputed")
	}
	if !tk.Start().Equal(t0.Add(time.Hour)) {
		t.Errorf("leaf start = %v, want computed start", tk.Start())
	}
}

func TestResponsible_Inherited(t *testing.T) {
	p := newProject(1)
	lead := NewUser(1, "Lead", "lead")
	parent := newTask(t, p, nil, 1, "Asset")
	child := newTask(t, p, parent, 2, "Model")
	if err := parent.SetResponsible(lead); err != nil {
		t.Fatal(err)
	}

	if got := child.Responsible(); len(got) != 1 || got[0] != lead {
		t.Errorf("child responsible = %v, want [lead]", got)
	}
	other := NewUser(2, "Sup", "sup")
	if err := child.SetResponsible(other); err != nil {
		t.Fatal(err)
	}
	if got := child.Responsible(); got[0] != other {
		t.Errorf("own responsible should win, got %v", got)
	}
}

func TestAddDependency_Status(t *testing.T) {
	p := newProject(1)
	a := newTask(t, p, nil, 1, "Model")
	b := newTask(t, p, nil, 2, "Rig")

	d, err := b.AddDependency(a)
	if err != nil {
		t.Fatalf("AddDependency: %v", err)
	}
	if d.Target != OnEnd || d.GapModel != GapLength {
		t.Errorf("edge = %s %s, want onend length", d.Target, d.GapModel)
	}
	if b.Status() != StatusWFD {
		t.Errorf("b status = %s, want WFD", b.Status())
	}
	if again, _ := b.AddDependency(a); again != d {
		t.Error("duplicate dependency should return the existing edge")
	}
	if len(a.Dependents()) != 1 {
		t.Errorf("a dependents = %d, want 1", len(a.Dependents()))
	}

	b.RemoveDependency(a)
	if b.Status() != StatusRTS || len(a.Dependents()) != 0 {
		t.Errorf("after remove: status %s, dependents %d", b.Status(), len(a.Dependents()))
	}
}

func TestAddDependency_Options(t *testing.T) {
	p := newProject(1)
	a := newTask(t, p, nil, 1, "Model")
	b := newTask(t, p, nil, 2, "Rig")

	d, err := b.AddDependency(a, WithTarget(OnStart), WithGap(2, timeunit.Day, GapDuration))
	if err != nil {
		t.Fatal(err)
	}
	if d.Target != OnStart || d.GapTiming != 2 || d.GapUnit != timeunit.Day || d.GapModel != GapDuration {
		t.Errorf("edge = %+v", d)
	}
}

func TestAddDependency_ExistingEdgeTakesNewOptions(t *testing.T) {
	p := newProject(1)
	a := startedTask(t, p, 1, "Model", NewUser(1, "Ada", "ada"))
	b := newTask(t, p, nil, 2, "Rig")

	d, err := b.AddDependency(a)
	if err != nil {
		t.Fatal(err)
	}
	if b.Status() != StatusWFD {
		t.Fatalf("b status = %s, want WFD", b.Status())
	}

	again, err := b.AddDependency(a, WithTarget(OnStart), WithGap(1, timeunit.Day, GapDuration))
	if err != nil {
		t.Fatal(err)
	}
	if again != d || len(b.Depends()) != 1 {
		t.Fatalf("re-adding created a second edge: %v", b.Depends())
	}
	if d.Target != OnStart || d.GapTiming != 1 || d.GapModel != GapDuration {
		t.Errorf("edge = %+v, want onstart with a 1d duration gap", d)
	}
	if b.Status() != StatusRTS {
		t.Errorf("b status = %s, want RTS once the edge waits on start", b.Status())
	}
}

func TestAddDependency_RejectsCycles(t *testing.T) {
	p := newProject(1)
	a := newTask(t, p, nil, 1, "Model")
	b := newTask(t, p, nil, 2, "Rig")
	c := newTask(t, p, nil, 3, "Anim")

	if _, err := b.AddDependency(a); err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddDependency(b); err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddDependency(c); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("err = %v, want ErrCircularDependency", err)
	}
	if _, err := a.AddDependency(a); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("self: err = %v, want ErrCircularDependency", err)
	}
	if _, err := a.AddDependency(nil); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("nil: err = %v, want ErrInvalidTask", err)
	}
}

func TestAddDependency_RejectsHierarchy(t *testing.T) {
	p := newProject(1)
	parent := newTask(t, p, nil, 1, "Asset")
	child := newTask(t, p, parent, 2, "Model")

	if _, err := child.AddDependency(parent); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("child on parent: err = %v", err)
	}
	if _, err := parent.AddDependency(child); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("parent on child: err = %v", err)
	}
}

func TestSetParent(t *testing.T) {
	p := newProject(1)
	a := newTask(t, p, nil, 1, "Asset")
	b := newTask(t, p, nil, 2, "Model")

	if err := b.SetParent(a); err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if b.Parent() != a || len(p.Roots()) != 1 {
		t.Errorf("parent = %v, roots = %v", b.Parent(), p.Roots())
	}
	if err := a.SetParent(b); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("err = %v, want ErrCircularDependency", err)
	}
	if err := a.SetParent(a); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("self parent: err = %v", err)
	}

	if err := b.SetParent(nil); err != nil {
		t.Fatal(err)
	}
	if !b.IsRoot() || len(p.Roots()) != 2 || !a.IsLeaf() {
		t.Errorf("after unparent: root=%v roots=%d leaf=%v", b.IsRoot(), len(p.Roots()), a.IsLeaf())
	}
}

func TestSetParent_RejectsDependencyCycle(t *testing.T) {
	p := newProject(1)
	a := newTask(t, p, nil, 1, "Model")
	b := newTask(t, p, nil, 2, "Rig")
	if _, err := b.AddDependency(a); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParent(b); !errors.Is(err, graph.ErrCircularDependency) {
		t.Errorf("err = %v, want ErrCircularDependency", err)
	}
}

func TestSetParent_MovesProject(t *testing.T) {
	p1, p2 := newProject(1), newProject(2)
	a := newTask(t, p1, nil, 1, "Asset")
	b := newTask(t, p2, nil, 2, "Model")
	c := newTask(t, p2, b, 3, "Sculpt")

	if err := b.SetParent(a); err != nil {
		t.Fatal(err)
	}
	if b.Project() != p1 || c.Project() != p1 {
		t.Errorf("projects = %s, %s, want both %s", b.Project().TJPID(), c.Project().TJPID(), p1.TJPID())
	}
	if len(p2.Roots()) != 0 {
		t.Errorf("p2 roots = %v", p2.Roots())
	}
}

func TestWorkspace_Lookups(t *testing.T) {
	w := &Workspace{}
	p := newProject(3)
	w.AddProject(p)
	u := NewUser(4, "Ada", "ada")
	w.AddUser(u)
	a := newTask(t, p, nil, 7, "Asset")
	newTask(t, p, a, 9, "Model")

	if w.Task(9) == nil || w.Task(9).Parent() != a {
		t.Error("Task(9) lookup failed")
	}
	if w.Task(99) != nil {
		t.Error("Task(99) should be nil")
	}
	if w.Project(3) != p || w.User(4) != u || w.UserByLogin("ada") != u {
		t.Error("project/user lookup failed")
	}
	if w.NextTaskID() != 10 || w.NextProjectID() != 4 || w.NextUserID() != 5 {
		t.Errorf("next ids = %d %d %d", w.NextTaskID(), w.NextProjectID(), w.NextUserID())
	}
	if len(w.Tasks()) != 2 {
		t.Errorf("tasks = %d, want 2", len(w.Tasks()))
	}
}

func TestLookupStatus(t *testing.T) {
	if s, ok := LookupStatus("HREV"); !ok || s.Name() != "Has Revision" {
		t.Errorf("LookupStatus(HREV) = %v %v", s, ok)
	}
	if _, ok := LookupStatus("NOPE"); ok {
		t.Error("unknown status should not resolve")
	}
}
