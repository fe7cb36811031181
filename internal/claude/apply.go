package claude

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/task"
)

// Summaries lists the tasks of the given projects (all when empty) for
// InferDeps. Completed and stopped leaves are left out.
func Summaries(ws *task.Workspace, projectIDs []int64) []TaskSummary {
	want := make(map[int64]bool, len(projectIDs))
	for _, id := range projectIDs {
		want[id] = true
	}
	var out []TaskSummary
	for _, t := range ws.Tasks() {
		if len(want) > 0 && !want[t.Project().ID] {
			continue
		}
		if t.IsLeaf() && (t.Status() == task.StatusCMPL || t.Status() == task.StatusSTOP) {
			continue
		}
		s := TaskSummary{ID: t.TJPID(), Path: t.Path(), Description: t.Description, Kind: "leaf"}
		switch {
		case t.IsContainer():
			s.Kind = "container"
		case t.IsMilestone():
			s.Kind = "milestone"
		}
		for _, d := range t.Depends() {
			s.DependsOn = append(s.DependsOn, d.DependsOn.TJPID())
		}
		out = append(out, s)
	}
	return out
}

// Rejection is an inferred edge that could not be applied.
type Rejection struct {
	Edge DepEdge
	Err  error
}

// Outcome reports what Apply did with the inferred edges.
type Outcome struct {
	Added    []*task.Dependency
	Rejected []Rejection
}

// Apply adds the inferred edges to the workspace in order. Each edge goes
// through the same cycle checks as a manual dependency, so a suggestion
// closing a loop with earlier ones is rejected rather than applied.
func Apply(ws *task.Workspace, result *InferDepsResult, log *logrus.Entry) Outcome {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("operation", "infer-deps")

	var out Outcome
	reject := func(e DepEdge, err error) {
		out.Rejected = append(out.Rejected, Rejection{Edge: e, Err: err})
		log.WithFields(logrus.Fields{
			"task":       e.TaskID,
			"depends_on": e.DependsOnID,
		}).WithError(err).Warn("inferred dependency rejected")
	}

	for _, e := range result.Edges {
		t, dep := lookup(ws, e.TaskID), lookup(ws, e.DependsOnID)
		if t == nil || dep == nil {
			reject(e, fmt.Errorf("unknown task id"))
			continue
		}
		target, err := task.ParseDependencyTarget(e.Target)
		if err != nil {
			reject(e, err)
			continue
		}
		d, err := t.AddDependency(dep, task.WithTarget(target))
		if err != nil {
			reject(e, err)
			continue
		}
		out.Added = append(out.Added, d)
		log.WithFields(logrus.Fields{
			"task":       t.TJPID(),
			"depends_on": dep.TJPID(),
			"reason":     e.Reason,
		}).Info("inferred dependency added")
	}
	return out
}

// lookup resolves "Task_12" or "12".
func lookup(ws *task.Workspace, id string) *task.Task {
	n, err := strconv.ParseInt(strings.TrimPrefix(id, "Task_"), 10, 64)
	if err != nil {
		return nil
	}
	return ws.Task(n)
}
