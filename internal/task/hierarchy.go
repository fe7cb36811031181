package task

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/graph"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

// relations exposes the task forest to the graph checks.
type relations struct{}

func (relations) Parent(t *Task) (*Task, bool) { return t.parent, t.parent != nil }
func (relations) Children(t *Task) []*Task     { return t.children }
func (relations) Name(t *Task) string          { return t.label() }

func (relations) Depends(t *Task) []*Task {
	out := make([]*Task, 0, len(t.depends))
	for _, d := range t.depends {
		out = append(out, d.DependsOn)
	}
	return out
}

// SetParent moves the task under parent, or to the project roots when parent
// is nil. Moves creating a cycle across the parent and depends relations are
// rejected.
func (t *Task) SetParent(parent *Task) error {
	if parent == t.parent {
		return nil
	}
	if parent != nil {
		if err := graph.CheckParent[*Task](relations{}, t, parent); err != nil {
			return fmt.Errorf("set parent of %s: %w", t.label(), err)
		}
		if len(parent.timeLogs) > 0 {
			return fmt.Errorf("%s can not become a container: %w", parent.label(), ErrHasTimeLogs)
		}
	}

	old := t.parent
	t.detach()
	if parent == nil {
		t.project.addRoot(t)
	} else {
		if parent.project != t.project {
			t.log.WithFields(logrus.Fields{
				"from": t.project.TJPID(),
				"to":   parent.project.TJPID(),
			}).Warn("task moved to another project with its parent")
			t.setProject(parent.project)
		}
		parent.adopt(t)
	}

	if old != nil {
		old.status = containerStatus(old.children)
		if old.IsLeaf() {
			old.status = StatusRTS
			old.UpdateStatusWithDependentStatuses()
		}
		old.UpdateParentStatuses()
	}
	t.UpdateParentStatuses()
	return nil
}

// adopt appends child and strips the resources a container can not hold.
func (t *Task) adopt(child *Task) {
	child.parent = t
	t.children = append(t.children, child)
	t.resources, t.alternativeResources = nil, nil
}

func (t *Task) detach() {
	if t.parent != nil {
		t.parent.children = removeTask(t.parent.children, t)
		t.parent = nil
		return
	}
	if t.project != nil {
		t.project.removeRoot(t)
	}
}

func (t *Task) setProject(p *Project) {
	t.project = p
	for _, c := range t.children {
		c.setProject(p)
	}
}

// AddDependency makes the task wait on dep. Adding an existing edge applies
// opts to it.
func (t *Task) AddDependency(dep *Task, opts ...DependencyOption) (*Dependency, error) {
	if dep == nil {
		return nil, fmt.Errorf("%s: %w: nil dependency", t.label(), ErrInvalidTask)
	}
	for _, d := range t.depends {
		if d.DependsOn != dep {
			continue
		}
		for _, opt := range opts {
			opt(d)
		}
		t.UpdateStatusWithDependentStatuses()
		t.UpdateParentStatuses()
		return d, nil
	}
	if err := graph.CheckDepends[*Task](relations{}, t, dep); err != nil {
		return nil, fmt.Errorf("add dependency %s -> %s: %w", t.label(), dep.label(), err)
	}
	d := &Dependency{
		Task:      t,
		DependsOn: dep,
		Target:    OnEnd,
		GapModel:  GapLength,
		GapUnit:   timeunit.Hour,
	}
	for _, opt := range opts {
		opt(d)
	}
	t.depends = append(t.depends, d)
	dep.dependents = append(dep.dependents, d)

	t.UpdateStatusWithDependentStatuses()
	t.UpdateParentStatuses()
	return d, nil
}

// RemoveDependency drops the edge to dep, if any.
func (t *Task) RemoveDependency(dep *Task) {
	for i, d := range t.depends {
		if d.DependsOn != dep {
			continue
		}
		t.depends = append(t.depends[:i], t.depends[i+1:]...)
		for j, back := range dep.dependents {
			if back == d {
				dep.dependents = append(dep.dependents[:j], dep.dependents[j+1:]...)
				break
			}
		}
		t.UpdateStatusWithDependentStatuses()
		t.UpdateParentStatuses()
		return
	}
}
