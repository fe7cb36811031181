// Package tj bridges the task graph to the TaskJuggler solver: it renders the
// graph as a tjp file, runs tj3 over it and imports the computed dates.
package tj

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/joshharrison/shotloom/internal/studio"
	"github.com/joshharrison/shotloom/internal/task"
	"github.com/joshharrison/shotloom/internal/timeunit"
)

// TimeFormat is how TaskJuggler spells timestamps in both directions.
const TimeFormat = "2006-01-02-15:04"

const defaultTemplate = `project {{.ID}} "{{.ID}}" {{.Start}} - {{.End}} {
  timingresolution {{.Resolution}}min
  now {{.Now}}
  dailyworkinghours {{.DailyHours}}
  weekstartsmonday
{{- range .WorkingHours}}
  {{.}}
{{- end}}
  timeformat "%Y-%m-%d"
  scenario plan "Plan"
  trackingscenario plan
}
{{range .Vacations}}
leaves holiday "{{.Name}}" {{.Start}} - {{.End}}
{{- end}}
{{range .Resources}}
resource {{.ID}} "{{.ID}}" {
  efficiency {{.Efficiency}}
}
{{- end}}
{{range .Projects}}
{{.}}
{{- end}}

taskreport breakdown "{{.Report}}" {
  formats csv
  timeformat "%Y-%m-%d-%H:%M"
  columns id, start, end{{if .ComputeResources}}, resources{{end}}
}
`

// ErrOutsideExport is returned when an exported task depends on a task in a
// project that is not part of the export.
var ErrOutsideExport = errors.New("dependency leaves the exported projects")

// Exporter renders a workspace as a tjp file.
type Exporter struct {
	Studio           studio.Studio
	TemplatePath     string
	ComputeResources bool
	// ProjectIDs limits the export to these projects. Empty means all.
	ProjectIDs []int64
}

// TemplateData is what the tjp template is rendered with.
type TemplateData struct {
	ID               string
	Start            string
	End              string
	Now              string
	Resolution       int
	DailyHours       string
	WorkingHours     []string
	Vacations        []VacationData
	Resources        []ResourceData
	Projects         []string
	Report           string
	ComputeResources bool
}

type VacationData struct {
	Name, Start, End string
}

type ResourceData struct {
	ID, Efficiency string
}

// Render returns the tjp content. report is the name of the csv report
// TaskJuggler writes into its output directory.
func (e Exporter) Render(ws *task.Workspace, report string) (string, error) {
	s := e.Studio
	data := TemplateData{
		ID:               s.TJPID(),
		Start:            tjTime(s.Start),
		End:              tjTime(s.End),
		Now:              tjTime(s.ScheduleNow()),
		Resolution:       int(s.TimingResolution / time.Minute),
		DailyHours:       num(s.DailyWorkingHours()),
		WorkingHours:     s.TJPWorkingHours(),
		Report:           report,
		ComputeResources: e.ComputeResources,
	}
	for _, v := range s.Vacations {
		data.Vacations = append(data.Vacations, VacationData{
			Name:  strings.ReplaceAll(v.Name, `"`, "'"),
			Start: tjTime(v.Start),
			End:   tjTime(v.End),
		})
	}
	users := append([]*task.User(nil), ws.Users...)
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	for _, u := range users {
		eff := u.Efficiency
		if eff <= 0 {
			eff = 1
		}
		data.Resources = append(data.Resources, ResourceData{ID: u.TJPID(), Efficiency: num(eff)})
	}
	projects := e.projects(ws)
	if err := checkScope(projects); err != nil {
		return "", err
	}
	for _, p := range projects {
		data.Projects = append(data.Projects, ProjectBuffer(p))
	}

	tmplStr := defaultTemplate
	if e.TemplatePath != "" {
		content, err := os.ReadFile(e.TemplatePath)
		if err != nil {
			return "", fmt.Errorf("read tjp template: %w", err)
		}
		tmplStr = string(content)
	}
	tmpl, err := template.New("tjp").Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parse tjp template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render tjp: %w", err)
	}
	return buf.String(), nil
}

func (e Exporter) projects(ws *task.Workspace) []*task.Project {
	if len(e.ProjectIDs) == 0 {
		return ws.Projects
	}
	var out []*task.Project
	for _, id := range e.ProjectIDs {
		if p := ws.Project(id); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// checkScope makes sure every depends target is rendered too, tj3 rejects
// references to unknown tasks.
func checkScope(projects []*task.Project) error {
	in := make(map[*task.Project]bool, len(projects))
	for _, p := range projects {
		in[p] = true
	}
	for _, p := range projects {
		for _, t := range p.Tasks() {
			for _, d := range t.Depends() {
				if other := d.DependsOn.Project(); !in[other] {
					return fmt.Errorf("%s depends on %s in %s: %w",
						t.TJPID(), d.DependsOn.TJPID(), other.TJPID(), ErrOutsideExport)
				}
			}
		}
	}
	return nil
}

// pathEntry is a task with its materialized path and nesting depth.
type pathEntry struct {
	task  *task.Task
	path  string
	depth int
}

// enumerate lists the project's tasks parent first with their paths.
func enumerate(p *task.Project) []pathEntry {
	var out []pathEntry
	var walk func(ts []*task.Task, prefix string, depth int)
	walk = func(ts []*task.Task, prefix string, depth int) {
		for _, t := range ts {
			path := prefix + "." + t.TJPID()
			out = append(out, pathEntry{task: t, path: path, depth: depth})
			walk(t.Children(), path, depth+1)
		}
	}
	walk(p.Roots(), p.TJPID(), 1)
	return out
}

// ProjectBuffer renders one project block with all of its tasks nested inside.
func ProjectBuffer(p *task.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "task %s %q {\n", p.TJPID(), p.TJPID())

	prev := 0
	for _, e := range enumerate(p) {
		for d := prev; d >= e.depth; d-- {
			closeBlock(&b, d)
		}
		writeTask(&b, e)
		prev = e.depth
	}
	for d := prev; d >= 1; d-- {
		closeBlock(&b, d)
	}
	b.WriteString("}")
	return b.String()
}

func closeBlock(b *strings.Builder, depth int) {
	b.WriteString(indent(depth))
	b.WriteString("}\n")
}

func writeTask(b *strings.Builder, e pathEntry) {
	t := e.task
	in := indent(e.depth + 1)
	fmt.Fprintf(b, "%stask %s %q {\n", indent(e.depth), t.TJPID(), t.TJPID())

	if t.Priority() != task.DefaultPriority {
		fmt.Fprintf(b, "%spriority %d\n", in, t.Priority())
	}
	if deps := t.Depends(); len(deps) > 0 {
		parts := make([]string, 0, len(deps))
		for _, d := range deps {
			parts = append(parts, dependsClause(d))
		}
		fmt.Fprintf(b, "%sdepends %s\n", in, strings.Join(parts, ", "))
	}
	if t.IsContainer() {
		return
	}

	s := t.Schedule()
	if t.IsMilestone() {
		fmt.Fprintf(b, "%smilestone\n", in)
	}
	if s.Constraint == timeunit.ConstrainStart || s.Constraint == timeunit.ConstrainBoth {
		fmt.Fprintf(b, "%sstart %s\n", in, tjTime(s.Start))
	}
	if s.Constraint == timeunit.ConstrainEnd || s.Constraint == timeunit.ConstrainBoth {
		fmt.Fprintf(b, "%send %s\n", in, tjTime(s.End))
	}
	if len(t.Resources()) == 0 || t.IsMilestone() {
		return
	}
	fmt.Fprintf(b, "%s%s %s%s\n", in, s.Model, num(s.Timing), s.Unit)
	fmt.Fprintf(b, "%sallocate %s\n", in, allocateClause(t))
	for _, l := range t.TimeLogs() {
		fmt.Fprintf(b, "%sbooking %s %s - %s { overtime 2 }\n",
			in, l.Resource().TJPID(), tjTime(l.Start()), tjTime(l.End()))
	}
}

func dependsClause(d *task.Dependency) string {
	clause := string(d.Target)
	if d.GapTiming > 0 {
		clause += fmt.Sprintf(" gap%s %s%s", d.GapModel, num(d.GapTiming), d.GapUnit)
	}
	return fmt.Sprintf("%s {%s}", d.DependsOn.TJPAbsID(), clause)
}

func allocateClause(t *task.Task) string {
	var alt string
	if alts := t.AlternativeResources(); len(alts) > 0 {
		ids := make([]string, 0, len(alts))
		for _, u := range alts {
			ids = append(ids, u.TJPID())
		}
		alt = fmt.Sprintf(" { alternative %s select %s", strings.Join(ids, ", "), t.AllocationStrategy())
		if t.PersistentAllocation() {
			alt += " persistent"
		}
		alt += " }"
	}
	parts := make([]string, 0, len(t.Resources()))
	for _, u := range t.Resources() {
		parts = append(parts, u.TJPID()+alt)
	}
	return strings.Join(parts, ", ")
}

func indent(depth int) string { return strings.Repeat("  ", depth) }

func tjTime(t time.Time) string { return t.UTC().Format(TimeFormat) }

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
