package task

import (
	"fmt"
	"time"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// Schedulable is anything the solver computes dates for.
type Schedulable interface {
	Start() time.Time
	End() time.Time
	SetComputed(start, end time.Time)
}

// Project owns a forest of tasks and the working hours they are measured in.
type Project struct {
	ID           int64
	Name         string
	Code         string
	WorkingHours timeunit.Source

	ComputedStart *time.Time
	ComputedEnd   *time.Time

	start, end time.Time
	roots      []*Task
}

// NewProject returns a project measured in the given working hours. A nil
// source falls back to the default working hours.
func NewProject(id int64, name string, wh timeunit.Source) *Project {
	if wh == nil {
		wh = timeunit.Defaults
	}
	return &Project{ID: id, Name: name, WorkingHours: wh}
}

// TJPID is the project id used in the tjp file.
func (p *Project) TJPID() string { return fmt.Sprintf("Project_%d", p.ID) }

// Roots returns the top level tasks of the project.
func (p *Project) Roots() []*Task { return p.roots }

// Tasks returns every task of the project, parents before children.
func (p *Project) Tasks() []*Task {
	var out []*Task
	var walk func(ts []*Task)
	walk = func(ts []*Task) {
		for _, t := range ts {
			out = append(out, t)
			walk(t.children)
		}
	}
	walk(p.roots)
	return out
}

// Start is the stored start, or the earliest root start when none is stored.
func (p *Project) Start() time.Time {
	if !p.start.IsZero() || len(p.roots) == 0 {
		return p.start
	}
	s := p.roots[0].Start()
	for _, t := range p.roots[1:] {
		if ts := t.Start(); ts.Before(s) {
			s = ts
		}
	}
	return s
}

// End is the stored end, or the latest root end when none is stored.
func (p *Project) End() time.Time {
	if !p.end.IsZero() || len(p.roots) == 0 {
		return p.end
	}
	e := p.roots[0].End()
	for _, t := range p.roots[1:] {
		if te := t.End(); te.After(e) {
			e = te
		}
	}
	return e
}

// PinnedDates returns the stored span, zero when the project follows its tasks.
func (p *Project) PinnedDates() (start, end time.Time) { return p.start, p.end }

// SetDates pins the project span.
func (p *Project) SetDates(start, end time.Time) error {
	if !end.After(start) {
		return fmt.Errorf("%s: %w", p.TJPID(), ErrInvalidDates)
	}
	p.start, p.end = start, end
	return nil
}

// SetComputed stores the solver result and moves the project span to it
// unless the result is empty.
func (p *Project) SetComputed(start, end time.Time) {
	p.ComputedStart, p.ComputedEnd = &start, &end
	if end.After(start) {
		p.start, p.end = start, end
	}
}

// IsScheduled reports whether the solver computed both dates.
func (p *Project) IsScheduled() bool {
	return p.ComputedStart != nil && p.ComputedEnd != nil
}

// Status aggregates the statuses of the root tasks.
func (p *Project) Status() Status { return containerStatus(p.roots) }

func (p *Project) addRoot(t *Task) {
	for _, r := range p.roots {
		if r == t {
			return
		}
	}
	p.roots = append(p.roots, t)
}

func (p *Project) removeRoot(t *Task) { p.roots = removeTask(p.roots, t) }
