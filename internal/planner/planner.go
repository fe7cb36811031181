package planner

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/joshharrison/shotloom/internal/cpm"
	"github.com/joshharrison/shotloom/internal/graph"
	"github.com/joshharrison/shotloom/internal/task"
)

// Generate builds a critical path preview of the workspace's leaf tasks.
// A dependency on or from a container applies to every leaf under it, and
// a leaf inherits the dependencies of its ancestors. Gaps are ignored.
func Generate(ws *task.Workspace, opts Options) (*Plan, error) {
	leaves := selectLeaves(ws, opts)
	nodes := make([]graph.Node, 0, len(leaves))
	included := make(map[*task.Task]bool, len(leaves))
	for _, l := range leaves {
		included[l] = true
	}

	for _, l := range leaves {
		n := graph.Node{
			ID:       l.TJPID(),
			Title:    l.Path(),
			Priority: l.Priority(),
		}
		if !l.IsMilestone() && !done(l) {
			n.DurationSecs = math.Max(l.RemainingSeconds(), 0)
		}
		seen := make(map[string]bool)
		for a := l; a != nil; a = a.Parent() {
			for _, d := range a.Depends() {
				for _, m := range leavesUnder(d.DependsOn) {
					if included[m] && m != l && !seen[m.TJPID()] {
						seen[m.TJPID()] = true
						n.BlockedBy = append(n.BlockedBy, m.TJPID())
					}
				}
			}
		}
		nodes = append(nodes, n)
	}

	g, err := graph.Build(nodes)
	if err != nil {
		return nil, fmt.Errorf("build plan graph: %w", err)
	}
	result, err := cpm.Analyze(g)
	if err != nil {
		return nil, fmt.Errorf("critical path: %w", err)
	}

	byID := make(map[string]*task.Task, len(leaves))
	for _, l := range leaves {
		byID[l.TJPID()] = l
	}
	now := time.Now()
	plan := &Plan{
		ID:           fmt.Sprintf("plan-%s", now.Format("2006-01-02-150405")),
		CreatedAt:    now,
		TotalTasks:   g.TaskCount(),
		TotalWaves:   len(result.Waves),
		TotalSeconds: result.TotalDuration,
		CriticalPath: result.CriticalPath,
		Tasks:        make(map[string]*PlannedTask),
		Deps: TaskDeps{
			Predecessors: g.RevAdj,
			Successors:   g.Adj,
		},
	}

	for _, wave := range result.Waves {
		w := Wave{Index: wave.Index}
		if wave.Index > 0 {
			w.DependsOn = []int{wave.Index - 1}
		}
		for _, id := range wave.TaskIDs {
			t, s := byID[id], result.Tasks[id]
			pt := PlannedTask{
				TaskID:      id,
				Path:        t.Path(),
				Status:      string(t.Status()),
				IsCritical:  s.IsCritical,
				IsMilestone: t.IsMilestone(),
				WaveIndex:   wave.Index,
				Remaining:   s.EF - s.ES,
				EarlyStart:  s.ES,
				EarlyFinish: s.EF,
				Slack:       s.Slack,
			}
			for _, u := range t.Resources() {
				pt.Resources = append(pt.Resources, u.Login)
			}
			w.Tasks = append(w.Tasks, pt)
		}
		plan.Waves = append(plan.Waves, w)
	}
	for i := range plan.Waves {
		for j := range plan.Waves[i].Tasks {
			pt := &plan.Waves[i].Tasks[j]
			plan.Tasks[pt.TaskID] = pt
		}
	}
	return plan, nil
}

func selectLeaves(ws *task.Workspace, opts Options) []*task.Task {
	want := make(map[int64]bool, len(opts.ProjectIDs))
	for _, id := range opts.ProjectIDs {
		want[id] = true
	}
	var out []*task.Task
	for _, t := range ws.Tasks() {
		if len(want) > 0 && !want[t.Project().ID] {
			continue
		}
		if !t.IsLeaf() || (!opts.IncludeDone && done(t)) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func leavesUnder(t *task.Task) []*task.Task {
	if t.IsLeaf() {
		return []*task.Task{t}
	}
	var out []*task.Task
	for _, c := range t.Children() {
		out = append(out, leavesUnder(c)...)
	}
	return out
}

func done(t *task.Task) bool {
	s := t.Status()
	return s == task.StatusCMPL || s == task.StatusSTOP
}
