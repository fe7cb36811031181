package planner

import "time"

// TaskDeps holds per-task predecessor and successor lists, keyed by TJP id.
type TaskDeps struct {
	Predecessors map[string][]string `json:"predecessors"`
	Successors   map[string][]string `json:"successors"`
}

// Plan is a local critical path preview over the leaf tasks of a workspace.
// Offsets are working seconds from the start of the plan; calendar dates
// come only from the solver.
type Plan struct {
	ID           string                  `json:"id"`
	CreatedAt    time.Time               `json:"created_at"`
	TotalTasks   int                     `json:"total_tasks"`
	TotalWaves   int                     `json:"total_waves"`
	TotalSeconds int64                   `json:"total_seconds"`
	CriticalPath []string                `json:"critical_path"`
	Waves        []Wave                  `json:"waves"`
	Tasks        map[string]*PlannedTask `json:"tasks"`
	Deps         TaskDeps                `json:"deps"`
}

// Wave is a group of tasks that may start at the same working offset.
type Wave struct {
	Index     int           `json:"index"`
	Tasks     []PlannedTask `json:"tasks"`
	DependsOn []int         `json:"depends_on"`
}

// PlannedTask is one leaf task placed in the preview.
type PlannedTask struct {
	TaskID      string   `json:"task_id"`
	Path        string   `json:"path"`
	Status      string   `json:"status"`
	IsCritical  bool     `json:"is_critical"`
	IsMilestone bool     `json:"is_milestone"`
	WaveIndex   int      `json:"wave_index"`
	Remaining   int64    `json:"remaining_seconds"`
	EarlyStart  int64    `json:"early_start"`
	EarlyFinish int64    `json:"early_finish"`
	Slack       int64    `json:"slack"`
	Resources   []string `json:"resources,omitempty"`
}

// Options narrows what goes into a plan.
type Options struct {
	// ProjectIDs limits the plan to these projects. Empty means all.
	ProjectIDs []int64
	// IncludeDone keeps completed and stopped tasks as zero-length nodes.
	IncludeDone bool
}
