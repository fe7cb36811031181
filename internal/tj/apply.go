package tj

import (
	"github.com/sirupsen/logrus"

	"github.com/joshharrison/shotloom/internal/task"
)

// Applied counts what an import touched.
type Applied struct {
	Tasks    int
	Projects int
	Skipped  int
}

// Apply writes parsed rows into the workspace. With computeResources every
// task's computed resources are replaced, tasks without a row end up with none.
func Apply(ws *task.Workspace, rows []Row, computeResources bool, log *logrus.Entry) Applied {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	tasks := make(map[int64]*task.Task)
	for _, t := range ws.Tasks() {
		tasks[t.ID] = t
		if computeResources {
			t.ComputedResources = nil
		}
	}

	var n Applied
	for _, row := range rows {
		var target task.Schedulable
		switch row.Kind {
		case RowTask:
			t, ok := tasks[row.ID]
			if !ok {
				break
			}
			if computeResources {
				for _, uid := range row.Resources {
					if u := ws.User(uid); u != nil {
						t.ComputedResources = append(t.ComputedResources, u)
					}
				}
			}
			target = t
			n.Tasks++
		case RowProject:
			if p := ws.Project(row.ID); p != nil {
				target = p
				n.Projects++
			}
		}
		if target == nil {
			n.Skipped++
			log.WithFields(logrus.Fields{"kind": row.Kind, "id": row.ID}).Warn("result row for unknown entity")
			continue
		}
		target.SetComputed(row.Start, row.End)
	}
	return n
}
