package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/joshharrison/shotloom/internal/planner"
	"github.com/joshharrison/shotloom/internal/state"
	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
	"github.com/joshharrison/shotloom/internal/ui"
)

const dateFormat = "2006-01-02 15:04"

// Reporter renders workspace status, plan previews and run summaries.
type Reporter struct {
	Workspace    *task.Workspace
	Plan         *planner.Plan   // optional, marks critical tasks
	Run          *state.RunState // optional, last scheduling run
	WorkingHours timeunit.Source
}

// New creates a new Reporter. plan and run may be nil.
func New(ws *task.Workspace, plan *planner.Plan, run *state.RunState, wh timeunit.Source) *Reporter {
	if wh == nil {
		wh = timeunit.Defaults
	}
	return &Reporter{Workspace: ws, Plan: plan, Run: run, WorkingHours: wh}
}

type counts struct {
	total, done, wip, review, blocked int
}

func (r *Reporter) count() counts {
	var c counts
	for _, t := range r.Workspace.Tasks() {
		if !t.IsLeaf() {
			continue
		}
		c.total++
		switch t.Status() {
		case task.StatusCMPL, task.StatusSTOP:
			c.done++
		case task.StatusWIP:
			c.wip++
		case task.StatusPREV, task.StatusHREV, task.StatusDREV:
			c.review++
		case task.StatusWFD, task.StatusOH:
			c.blocked++
		}
	}
	return c
}

// PrintStatus writes a terminal-friendly status tree of every project.
func (r *Reporter) PrintStatus(w io.Writer) {
	c := r.count()
	fmt.Fprintf(w, "%s %s %d of %d tasks complete",
		ui.BoldCyan("🎬 Shotloom"), ui.Dim("|"), c.done, c.total)
	if c.review > 0 {
		fmt.Fprintf(w, " %s", ui.Magenta(fmt.Sprintf("(%d in review)", c.review)))
	}
	if c.blocked > 0 {
		fmt.Fprintf(w, " %s", ui.Yellow(fmt.Sprintf("(%d waiting)", c.blocked)))
	}
	fmt.Fprintln(w)
	if r.Run != nil {
		fmt.Fprintf(w, "%s\n", ui.Dim(r.runLine()))
	}
	fmt.Fprintln(w)

	for _, p := range r.Workspace.Projects {
		dates := ui.Dim("unscheduled")
		if p.IsScheduled() {
			dates = ui.Dim(fmt.Sprintf("%s → %s", p.ComputedStart.Format(dateFormat), p.ComputedEnd.Format(dateFormat)))
		}
		fmt.Fprintf(w, "  📁 %s %s (%s)  %s\n", ui.Bold(p.TJPID()), p.Name, ui.Status(statusOf(p)), dates)
		for _, t := range p.Roots() {
			r.printTask(w, t, 2)
		}
		fmt.Fprintln(w)
	}
}

func (r *Reporter) runLine() string {
	run := r.Run
	line := fmt.Sprintf("last schedule: %s %s", run.Status, run.StartedAt.Local().Format(dateFormat))
	if run.FinishedAt != nil {
		line += fmt.Sprintf(" (%s)", run.Duration().Truncate(time.Second))
	}
	if run.Message != "" {
		line += " " + run.Message
	}
	return line
}

func (r *Reporter) printTask(w io.Writer, t *task.Task, depth int) {
	status := statusOf(t)
	critical := " "
	if r.isCritical(t) {
		critical = ui.BoldYellow("⚡")
	}

	name := t.Name
	if len(name) > 32 {
		name = name[:29] + "..."
	}
	pad := strings.Repeat("  ", depth)

	dates := ui.Dim("unscheduled")
	if t.IsScheduled() {
		dates = fmt.Sprintf("%s → %s", t.ComputedStart.Format(dateFormat), t.ComputedEnd.Format(dateFormat))
	}

	extra := ""
	if t.IsLeaf() && !t.IsMilestone() {
		extra = ui.Dim(fmt.Sprintf("%3.0f%% of %s", t.PercentComplete(), r.formatWork(t.ScheduleSeconds())))
	}
	if t.IsMilestone() {
		extra = ui.Dim("milestone")
	}

	fmt.Fprintf(w, "%s%s %s %-32s %-4s %s  %s  %s\n",
		pad, ui.StatusIcon(status), ui.TaskPrefix(t.TJPID()), name, ui.Status(status), critical, dates, extra)
	for _, c := range t.Children() {
		r.printTask(w, c, depth+1)
	}
}

func statusOf(s task.Statusable) string { return string(s.Status()) }

func (r *Reporter) isCritical(t *task.Task) bool {
	if r.Plan == nil {
		return false
	}
	pt, ok := r.Plan.Tasks[t.TJPID()]
	return ok && pt.IsCritical
}

// formatWork renders working seconds in the coarsest exact unit.
func (r *Reporter) formatWork(secs float64) string {
	timing, unit := timeunit.LeastMeaningful(r.WorkingHours, secs)
	return fmt.Sprintf("%g%s", timing, unit)
}

// PrintPlan writes the critical path preview wave by wave.
func (r *Reporter) PrintPlan(w io.Writer) {
	p := r.Plan
	if p == nil {
		fmt.Fprintln(w, ui.Dim("no plan"))
		return
	}
	fmt.Fprintf(w, "%s %s %d tasks in %d waves, %s of work on the critical path\n\n",
		ui.BoldCyan("🎬 Plan"), ui.Dim(p.ID), p.TotalTasks, p.TotalWaves, ui.Bold(r.formatWork(float64(p.TotalSeconds))))

	for _, wave := range p.Waves {
		label := "parallel"
		if wave.DependsOn != nil {
			label = fmt.Sprintf("after wave %d", wave.DependsOn[0]+1)
		}
		fmt.Fprintf(w, "  🌊 %s %d (%s)\n", ui.Bold("WAVE"), wave.Index+1, ui.Dim(label))
		for _, pt := range wave.Tasks {
			critical := " "
			if pt.IsCritical {
				critical = ui.BoldYellow("⚡")
			}
			path := pt.Path
			if len(path) > 48 {
				path = "..." + path[len(path)-45:]
			}
			slack := ""
			if pt.Slack > 0 {
				slack = ui.Dim("slack " + r.formatWork(float64(pt.Slack)))
			}
			fmt.Fprintf(w, "    %s %s %-48s %s  +%s %s  %s\n",
				ui.StatusIcon(pt.Status), ui.TaskPrefix(pt.TaskID), path, critical,
				r.formatWork(float64(pt.EarlyStart)), ui.Dim(r.formatWork(float64(pt.Remaining))), slack)
		}
		fmt.Fprintln(w)
	}

	if len(p.CriticalPath) > 0 {
		fmt.Fprintf(w, "Critical:  %s\n", ui.BoldYellow("⚡ "+strings.Join(p.CriticalPath, " → ")))
	}
}

// JSON returns machine-readable status.
func (r *Reporter) JSON() ([]byte, error) {
	type taskStatus struct {
		TaskID          string     `json:"task_id"`
		Path            string     `json:"path"`
		Status          string     `json:"status"`
		IsContainer     bool       `json:"is_container"`
		IsMilestone     bool       `json:"is_milestone"`
		IsCritical      bool       `json:"is_critical"`
		PercentComplete float64    `json:"percent_complete"`
		ComputedStart   *time.Time `json:"computed_start,omitempty"`
		ComputedEnd     *time.Time `json:"computed_end,omitempty"`
		Resources       []string   `json:"computed_resources,omitempty"`
	}
	type projectStatus struct {
		ProjectID     string       `json:"project_id"`
		Name          string       `json:"name"`
		Status        string       `json:"status"`
		ComputedStart *time.Time   `json:"computed_start,omitempty"`
		ComputedEnd   *time.Time   `json:"computed_end,omitempty"`
		Tasks         []taskStatus `json:"tasks"`
	}
	type output struct {
		TotalTasks   int             `json:"total_tasks"`
		Completed    int             `json:"completed"`
		LastRun      *state.RunState `json:"last_run,omitempty"`
		CriticalPath []string        `json:"critical_path,omitempty"`
		Projects     []projectStatus `json:"projects"`
	}

	c := r.count()
	o := output{TotalTasks: c.total, Completed: c.done, LastRun: r.Run}
	if r.Plan != nil {
		o.CriticalPath = r.Plan.CriticalPath
	}
	for _, p := range r.Workspace.Projects {
		ps := projectStatus{
			ProjectID:     p.TJPID(),
			Name:          p.Name,
			Status:        string(p.Status()),
			ComputedStart: p.ComputedStart,
			ComputedEnd:   p.ComputedEnd,
		}
		for _, t := range p.Tasks() {
			ts := taskStatus{
				TaskID:          t.TJPID(),
				Path:            t.Path(),
				Status:          string(t.Status()),
				IsContainer:     t.IsContainer(),
				IsMilestone:     t.IsMilestone(),
				IsCritical:      r.isCritical(t),
				PercentComplete: t.PercentComplete(),
				ComputedStart:   t.ComputedStart,
				ComputedEnd:     t.ComputedEnd,
			}
			for _, u := range t.ComputedResources {
				ts.Resources = append(ts.Resources, u.Login)
			}
			ps.Tasks = append(ps.Tasks, ts)
		}
		o.Projects = append(o.Projects, ps)
	}
	return json.MarshalIndent(o, "", "  ")
}

// Summary returns the outcome of the last scheduling run.
func (r *Reporter) Summary() string {
	var b strings.Builder
	run := r.Run
	if run == nil {
		return ""
	}

	statusText := ui.BoldGreen("completed")
	statusEmoji := "✅"
	switch run.Status {
	case state.StatusFailed:
		statusText = ui.BoldRed("failed")
		statusEmoji = "❌"
	case state.StatusCancelled:
		statusText = ui.Yellow("cancelled")
		statusEmoji = "🚫"
	case state.StatusRunning:
		statusText = ui.Cyan("running")
		statusEmoji = "⏳"
	}

	fmt.Fprintf(&b, "\n%s %s\n", statusEmoji, ui.BoldCyan("Schedule Run"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("════════════"))
	fmt.Fprintf(&b, "Run:       %s\n", ui.Dim(run.RunID))
	fmt.Fprintf(&b, "Duration:  %s\n", ui.Bold(run.Duration().Truncate(time.Second)))
	fmt.Fprintf(&b, "Tasks:     %d scheduled\n", run.Tasks)
	fmt.Fprintf(&b, "Status:    %s\n", statusText)
	if run.Message != "" {
		fmt.Fprintf(&b, "Message:   %s\n", run.Message)
	}

	if run.Status == state.StatusFailed && run.Stderr != "" {
		fmt.Fprintf(&b, "\n%s\n", ui.BoldRed("Solver output:"))
		for _, line := range strings.Split(strings.TrimRight(run.Stderr, "\n"), "\n") {
			fmt.Fprintf(&b, "  %s %s\n", ui.Red("✗"), line)
		}
	}
	return b.String()
}
