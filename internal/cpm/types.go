package cpm

// CPMResult holds the complete critical path analysis.
type CPMResult struct {
	Tasks         map[string]*TaskSchedule
	CriticalPath  []string // ordered task IDs on critical path
	TotalDuration int64    // working seconds
	Waves         []Wave   // parallelizable groups
	TopoOrder     []string
}

// TaskSchedule holds the scheduling info for a single task, in working
// seconds from the start of the plan.
type TaskSchedule struct {
	TaskID     string
	ES, EF     int64 // earliest start/finish
	LS, LF     int64 // latest start/finish
	Slack      int64
	IsCritical bool
	Wave       int
}

// Wave represents a group of tasks that can start at the same time.
type Wave struct {
	Index      int
	TaskIDs    []string
	IsCritical bool // true if wave contains critical path tasks
}
