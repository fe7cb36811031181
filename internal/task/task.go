package task

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

const (
	MinPriority     = 0
	MaxPriority     = 1000
	DefaultPriority = 500
)

// Allocation strategies understood by TaskJuggler.
const (
	AllocMinAllocated = "minallocated"
	AllocMaxLoaded    = "maxloaded"
	AllocMinLoaded    = "minloaded"
	AllocOrder        = "order"
	AllocRandom       = "random"
)

var allocationStrategies = []string{AllocMinAllocated, AllocMaxLoaded, AllocMinLoaded, AllocOrder, AllocRandom}

// Task is a node of a project's work breakdown. Leaf tasks carry effort,
// bookings and reviews; containers aggregate their children.
type Task struct {
	ID          int64
	Name        string
	Description string

	BidTiming float64
	BidUnit   timeunit.Unit

	ComputedStart     *time.Time
	ComputedEnd       *time.Time
	ComputedResources []*User

	sched                Schedule
	priority             int
	milestone            bool
	allocationStrategy   string
	persistentAllocation bool
	status               Status
	reviewNumber         int

	project    *Project
	parent     *Task
	children   []*Task
	depends    []*Dependency
	dependents []*Dependency

	resources            []*User
	alternativeResources []*User
	watchers             []*User
	responsible          []*User

	timeLogs []*TimeLog
	reviews  []*Review
	versions []*Version

	log *logrus.Entry
}

// Options configures a new task. Zero values fall back to defaults.
type Options struct {
	Project     *Project
	Parent      *Task
	Description string

	Schedule    Schedule
	IsMilestone bool

	Resources   []*User
	Responsible []*User
	Watchers    []*User

	Logger *logrus.Entry
}

// New creates a task under opts.Parent, or as a root of opts.Project. The
// parent's project wins over an explicit one.
func New(id int64, name string, opts Options) (*Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("task %d: %w: empty name", id, ErrInvalidTask)
	}
	log := opts.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	t := &Task{
		ID:                 id,
		Name:               name,
		Description:        opts.Description,
		priority:           DefaultPriority,
		allocationStrategy: AllocMinAllocated,
		status:             StatusRTS,
		log:                log.WithField("task", fmt.Sprintf("Task_%d", id)),
	}

	t.sched = opts.Schedule
	def := DefaultSchedule()
	if t.sched.Timing <= 0 {
		t.sched.Timing = def.Timing
	}
	if t.sched.Unit == "" {
		t.sched.Unit = def.Unit
	}
	if t.sched.Model == "" {
		t.sched.Model = def.Model
	}
	if t.sched.Start.IsZero() {
		t.sched.Start = time.Now().UTC().Truncate(time.Hour)
	}

	switch {
	case opts.Parent != nil:
		if opts.Project != nil && opts.Project != opts.Parent.project {
			t.log.WithFields(logrus.Fields{
				"project": opts.Project.TJPID(),
				"parent":  opts.Parent.project.TJPID(),
			}).Warn("task project differs from its parent's, using the parent's project")
		}
		if len(opts.Parent.timeLogs) > 0 {
			return nil, fmt.Errorf("%s can not become a container: %w", opts.Parent.label(), ErrHasTimeLogs)
		}
		t.project = opts.Parent.project
		opts.Parent.adopt(t)
	case opts.Project != nil:
		t.project = opts.Project
		t.project.addRoot(t)
	default:
		return nil, fmt.Errorf("task %d %q: %w", id, name, ErrNoProject)
	}

	t.sched.reschedule(t.workingHours())
	t.responsible = append(t.responsible, opts.Responsible...)
	t.watchers = append(t.watchers, opts.Watchers...)
	t.SetMilestone(opts.IsMilestone)
	if len(opts.Resources) > 0 {
		if err := t.SetResources(opts.Resources...); err != nil {
			t.detach()
			return nil, err
		}
	}
	t.UpdateParentStatuses()
	return t, nil
}

// Project returns the project owning the task.
func (t *Task) Project() *Project { return t.project }

// Parent returns the parent task or nil for roots.
func (t *Task) Parent() *Task { return t.parent }

// Children returns the direct children.
func (t *Task) Children() []*Task { return t.children }

// Depends returns the edges this task waits on.
func (t *Task) Depends() []*Dependency { return t.depends }

// Dependents returns the edges waiting on this task.
func (t *Task) Dependents() []*Dependency { return t.dependents }

func (t *Task) IsLeaf() bool      { return len(t.children) == 0 }
func (t *Task) IsContainer() bool { return len(t.children) > 0 }
func (t *Task) IsRoot() bool      { return t.parent == nil }
func (t *Task) IsMilestone() bool { return t.milestone }
func (t *Task) Status() Status    { return t.status }
func (t *Task) Priority() int     { return t.priority }

// Schedule returns a copy of the task's schedule with aggregated dates for
// containers.
func (t *Task) Schedule() Schedule {
	s := t.sched
	s.Start, s.End = t.Start(), t.End()
	return s
}

// ReviewNumber is the number of the latest review round.
func (t *Task) ReviewNumber() int { return t.reviewNumber }

// Resources returns the users allocated to the task.
func (t *Task) Resources() []*User { return t.resources }

// AlternativeResources returns the users TaskJuggler may pick instead.
func (t *Task) AlternativeResources() []*User { return t.alternativeResources }

// Watchers returns the users following the task.
func (t *Task) Watchers() []*User { return t.watchers }

// TimeLogs returns the bookings on the task.
func (t *Task) TimeLogs() []*TimeLog { return t.timeLogs }

// Reviews returns every review of every round.
func (t *Task) Reviews() []*Review { return t.reviews }

// Versions returns the published versions.
func (t *Task) Versions() []*Version { return t.versions }

// AllocationStrategy returns the TaskJuggler select strategy.
func (t *Task) AllocationStrategy() string { return t.allocationStrategy }

// PersistentAllocation reports whether TaskJuggler keeps the first pick.
func (t *Task) PersistentAllocation() bool { return t.persistentAllocation }

// Responsible returns the reviewers of the task, inherited from the closest
// ancestor that has any.
func (t *Task) Responsible() []*User {
	for n := t; n != nil; n = n.parent {
		if len(n.responsible) > 0 {
			return n.responsible
		}
	}
	return nil
}

// OwnResponsible returns the responsible users set on the task itself.
func (t *Task) OwnResponsible() []*User { return t.responsible }

// SetResponsible replaces the task's own responsible users.
func (t *Task) SetResponsible(users ...*User) error {
	for _, u := range users {
		if u == nil {
			return fmt.Errorf("%s: %w", t.label(), ErrInvalidResource)
		}
	}
	t.responsible = dedupeUsers(users)
	return nil
}

// AddWatcher subscribes a user to the task.
func (t *Task) AddWatcher(u *User) {
	if u != nil && !containsUser(t.watchers, u) {
		t.watchers = append(t.watchers, u)
	}
}

// SetResources replaces the allocated users. Containers and milestones take
// no resources.
func (t *Task) SetResources(users ...*User) error {
	if err := t.checkResources(users); err != nil {
		return err
	}
	t.resources = dedupeUsers(users)
	return nil
}

// SetAlternativeResources replaces the alternatives offered to the solver.
func (t *Task) SetAlternativeResources(users ...*User) error {
	if err := t.checkResources(users); err != nil {
		return err
	}
	t.alternativeResources = dedupeUsers(users)
	return nil
}

func (t *Task) checkResources(users []*User) error {
	if len(users) == 0 {
		return nil
	}
	if t.milestone {
		return fmt.Errorf("%s: %w", t.label(), ErrMilestoneResources)
	}
	if t.IsContainer() {
		return fmt.Errorf("%s: %w", t.label(), ErrContainerResources)
	}
	for _, u := range users {
		if u == nil {
			return fmt.Errorf("%s: %w", t.label(), ErrInvalidResource)
		}
	}
	return nil
}

// SetAllocation sets the solver's select strategy and persistence.
func (t *Task) SetAllocation(strategy string, persistent bool) error {
	if strategy == "" {
		strategy = AllocMinAllocated
	}
	valid := false
	for _, s := range allocationStrategies {
		if s == strategy {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("%s: unknown allocation strategy %q (want one of %s)",
			t.label(), strategy, strings.Join(allocationStrategies, ", "))
	}
	t.allocationStrategy, t.persistentAllocation = strategy, persistent
	return nil
}

// SetMilestone marks the task as a milestone. Milestones drop their resources.
func (t *Task) SetMilestone(v bool) {
	t.milestone = v
	if v {
		t.resources, t.alternativeResources = nil, nil
	}
}

// SetPriority stores p clamped to the valid range.
func (t *Task) SetPriority(p int) {
	t.priority = clampPriority(p)
}

// ParsePriority reads a priority, using the default for non-numeric input.
func ParsePriority(s string) int {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return DefaultPriority
	}
	return clampPriority(p)
}

func clampPriority(p int) int {
	if p < MinPriority {
		return MinPriority
	}
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

// SetSchedule changes the planned timing. Negative timings clamp to zero.
func (t *Task) SetSchedule(timing float64, unit timeunit.Unit) {
	if timing < 0 {
		timing = 0
	}
	t.sched.Timing, t.sched.Unit = timing, unit
	t.reschedule()
}

// SetScheduleModel changes how the timing is interpreted.
func (t *Task) SetScheduleModel(m timeunit.Model) {
	t.sched.Model = m
	t.reschedule()
}

// SetScheduleConstraint changes which dates stay pinned.
func (t *Task) SetScheduleConstraint(c timeunit.Constraint) {
	t.sched.Constraint = c
	t.reschedule()
}

// SetDates pins a leaf task's own dates. Container dates follow their children.
func (t *Task) SetDates(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%s: %w", t.label(), ErrInvalidDates)
	}
	t.sched.Start, t.sched.End = start, end
	return nil
}

// SetComputed stores the solver dates. Leaf tasks also move their own dates.
func (t *Task) SetComputed(start, end time.Time) {
	t.ComputedStart, t.ComputedEnd = &start, &end
	if t.IsLeaf() && end.After(start) {
		t.sched.Start, t.sched.End = start, end
	}
}

// IsScheduled reports whether the solver computed both dates.
func (t *Task) IsScheduled() bool {
	return t.ComputedStart != nil && t.ComputedEnd != nil
}

func (t *Task) reschedule() {
	if t.IsContainer() {
		return
	}
	t.sched.reschedule(t.workingHours())
}

// Start is the task's own start, or the earliest child start for containers.
func (t *Task) Start() time.Time {
	if t.IsLeaf() {
		return t.sched.Start
	}
	s := t.children[0].Start()
	for _, c := range t.children[1:] {
		if cs := c.Start(); cs.Before(s) {
			s = cs
		}
	}
	return s
}

// End is the task's own end, or the latest child end for containers.
func (t *Task) End() time.Time {
	if t.IsLeaf() {
		return t.sched.End
	}
	e := t.children[0].End()
	for _, c := range t.children[1:] {
		if ce := c.End(); ce.After(e) {
			e = ce
		}
	}
	return e
}

// Duration is the calendar span between Start and End.
func (t *Task) Duration() time.Duration { return t.End().Sub(t.Start()) }

// ScheduleSeconds is the planned effort in working seconds, summed over the
// children for containers.
func (t *Task) ScheduleSeconds() float64 {
	if t.IsContainer() {
		var total float64
		for _, c := range t.children {
			total += c.ScheduleSeconds()
		}
		return total
	}
	return timeunit.ToSeconds(t.workingHours(), t.sched.Timing, t.sched.Unit)
}

// TotalLoggedSeconds sums the bookings of the task or its subtree.
func (t *Task) TotalLoggedSeconds() float64 {
	if t.IsContainer() {
		var total float64
		for _, c := range t.children {
			total += c.TotalLoggedSeconds()
		}
		return total
	}
	var total float64
	for _, l := range t.timeLogs {
		total += l.TotalSeconds()
	}
	return total
}

// RemainingSeconds is the planned effort not booked yet.
func (t *Task) RemainingSeconds() float64 {
	return t.ScheduleSeconds() - t.TotalLoggedSeconds()
}

// PercentComplete is the booked share of the planned effort.
func (t *Task) PercentComplete() float64 {
	if t.status == StatusCMPL {
		return 100
	}
	planned := t.ScheduleSeconds()
	if planned <= 0 {
		return 0
	}
	return math.Min(100, t.TotalLoggedSeconds()/planned*100)
}

// TJPID is the task id used in the tjp file.
func (t *Task) TJPID() string { return fmt.Sprintf("Task_%d", t.ID) }

// TJPAbsID is the dotted id TaskJuggler resolves the task by.
func (t *Task) TJPAbsID() string {
	ids := []string{t.TJPID()}
	for p := t.parent; p != nil; p = p.parent {
		ids = append([]string{p.TJPID()}, ids...)
	}
	return t.project.TJPID() + "." + strings.Join(ids, ".")
}

// Path is the human readable location of the task.
func (t *Task) Path() string {
	names := []string{t.Name}
	for p := t.parent; p != nil; p = p.parent {
		names = append([]string{p.Name}, names...)
	}
	return t.project.Name + " | " + strings.Join(names, " | ")
}

func (t *Task) workingHours() timeunit.Source {
	if t.project == nil {
		return timeunit.Defaults
	}
	return t.project.WorkingHours
}

func (t *Task) label() string { return fmt.Sprintf("%s (%s)", t.TJPID(), t.Name) }

func (t *Task) String() string { return t.label() }

func dedupeUsers(users []*User) []*User {
	var out []*User
	for _, u := range users {
		if !containsUser(out, u) {
			out = append(out, u)
		}
	}
	return out
}

func removeTask(ts []*Task, t *Task) []*Task {
	out := ts[:0]
	for _, x := range ts {
		if x != t {
			out = append(out, x)
		}
	}
	return out
}
