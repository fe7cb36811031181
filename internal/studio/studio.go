// Package studio holds the studio wide scheduling configuration: the planning
// window, the working calendar and how the solver is invoked. A Studio is an
// immutable snapshot; callers load one and pass it explicitly.
package studio

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joshharrison/shotloom/internal/timeunit"
)

// FileName is the default studio config file name.
const FileName = "studio.yaml"

// Weekdays in TaskJuggler spelling, Monday first.
var Weekdays = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

// Vacation is a studio wide closure.
type Vacation struct {
	Name  string    `yaml:"name"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// SchedulerConfig says how the solver is run.
type SchedulerConfig struct {
	Binary           string        `yaml:"binary"`
	Timeout          time.Duration `yaml:"timeout"`
	ComputeResources bool          `yaml:"compute_resources"`
	Template         string        `yaml:"template,omitempty"`
}

// Studio models studio.yaml.
type Studio struct {
	ID               int64               `yaml:"id"`
	Name             string              `yaml:"name"`
	Start            time.Time           `yaml:"start"`
	End              time.Time           `yaml:"end"`
	Now              time.Time           `yaml:"now,omitempty"`
	TimingResolution time.Duration       `yaml:"timing_resolution"`
	DailyHours       float64             `yaml:"daily_working_hours"`
	YearlyDays       float64             `yaml:"yearly_working_days,omitempty"`
	WorkingHours     map[string][]string `yaml:"working_hours"`
	Vacations        []Vacation          `yaml:"vacations,omitempty"`
	Scheduler        SchedulerConfig     `yaml:"scheduler"`
}

// Span is a working interval of a day in minutes after midnight.
type Span struct {
	From, To int
}

// Default returns the fallback studio: Monday to Friday 09:00-18:00, a two
// year planning window from the start of the current year.
func Default() Studio {
	year := time.Now().UTC().Year()
	wh := map[string][]string{}
	for _, d := range Weekdays[:5] {
		wh[d] = []string{"09:00-18:00"}
	}
	return Studio{
		ID:               1,
		Name:             "Studio",
		Start:            time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC),
		End:              time.Date(year+2, 1, 1, 0, 0, 0, 0, time.UTC),
		TimingResolution: time.Hour,
		DailyHours:       timeunit.Defaults.Daily,
		WorkingHours:     wh,
		Scheduler: SchedulerConfig{
			Binary:  "tj3",
			Timeout: 10 * time.Minute,
		},
	}
}

// Load reads a studio config on top of the defaults. A missing file yields
// the defaults.
func Load(path string) (Studio, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("studio: read %s: %w", path, err)
	}

	var parsed Studio
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return s, fmt.Errorf("studio: parse %s: %w", path, err)
	}
	s.merge(parsed)
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("studio: %s: %w", path, err)
	}
	return s, nil
}

// Save writes the studio as yaml.
func (s Studio) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("studio: encode: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Studio) merge(o Studio) {
	if o.ID != 0 {
		s.ID = o.ID
	}
	if o.Name != "" {
		s.Name = o.Name
	}
	if !o.Start.IsZero() {
		s.Start = o.Start.UTC()
	}
	if !o.End.IsZero() {
		s.End = o.End.UTC()
	}
	if !o.Now.IsZero() {
		s.Now = o.Now.UTC()
	}
	if o.TimingResolution != 0 {
		s.TimingResolution = o.TimingResolution
	}
	if o.DailyHours != 0 {
		s.DailyHours = o.DailyHours
	}
	if o.YearlyDays != 0 {
		s.YearlyDays = o.YearlyDays
	}
	if o.WorkingHours != nil {
		s.WorkingHours = o.WorkingHours
	}
	if o.Vacations != nil {
		s.Vacations = o.Vacations
	}
	if o.Scheduler.Binary != "" {
		s.Scheduler.Binary = o.Scheduler.Binary
	}
	if o.Scheduler.Timeout != 0 {
		s.Scheduler.Timeout = o.Scheduler.Timeout
	}
	if o.Scheduler.Template != "" {
		s.Scheduler.Template = o.Scheduler.Template
	}
	s.Scheduler.ComputeResources = o.Scheduler.ComputeResources
}

// Validate checks the planning window and the working calendar.
func (s Studio) Validate() error {
	if !s.End.After(s.Start) {
		return fmt.Errorf("end %s must be after start %s", s.End.Format(time.RFC3339), s.Start.Format(time.RFC3339))
	}
	if s.TimingResolution <= 0 {
		return fmt.Errorf("timing_resolution must be positive, got %s", s.TimingResolution)
	}
	if s.DailyHours <= 0 || s.DailyHours > 24 {
		return fmt.Errorf("daily_working_hours must be in (0, 24], got %v", s.DailyHours)
	}
	for day := range s.WorkingHours {
		if !isWeekday(day) {
			return fmt.Errorf("working_hours: unknown day %q", day)
		}
		if _, err := s.Spans(day); err != nil {
			return err
		}
	}
	for _, v := range s.Vacations {
		if !v.End.After(v.Start) {
			return fmt.Errorf("vacation %q: end must be after start", v.Name)
		}
	}
	return nil
}

// Spans parses the working intervals of a weekday.
func (s Studio) Spans(day string) ([]Span, error) {
	var out []Span
	for _, r := range s.WorkingHours[day] {
		from, to, ok := strings.Cut(r, "-")
		if !ok {
			return nil, fmt.Errorf("working_hours %s: %q is not HH:MM-HH:MM", day, r)
		}
		f, err := parseClock(from)
		if err != nil {
			return nil, fmt.Errorf("working_hours %s: %w", day, err)
		}
		t, err := parseClock(to)
		if err != nil {
			return nil, fmt.Errorf("working_hours %s: %w", day, err)
		}
		if t <= f {
			return nil, fmt.Errorf("working_hours %s: %q ends before it starts", day, r)
		}
		out = append(out, Span{From: f, To: t})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].From < out[j].From })
	return out, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		if strings.TrimSpace(s) == "24:00" {
			return 24 * 60, nil
		}
		return 0, fmt.Errorf("bad time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func isWeekday(d string) bool {
	for _, w := range Weekdays {
		if w == d {
			return true
		}
	}
	return false
}

// DailyWorkingHours is the length of a working day used for unit conversion.
func (s Studio) DailyWorkingHours() float64 { return s.DailyHours }

// WeeklyWorkingHours sums the working intervals of the week.
func (s Studio) WeeklyWorkingHours() float64 {
	var minutes int
	for _, d := range Weekdays {
		spans, _ := s.Spans(d)
		for _, sp := range spans {
			minutes += sp.To - sp.From
		}
	}
	return float64(minutes) / 60
}

// WeeklyWorkingDays counts the weekdays with any working time.
func (s Studio) WeeklyWorkingDays() int {
	n := 0
	for _, d := range Weekdays {
		if len(s.WorkingHours[d]) > 0 {
			n++
		}
	}
	return n
}

// YearlyWorkingDays is the configured value or the working weekdays spread
// over a year.
func (s Studio) YearlyWorkingDays() float64 {
	if s.YearlyDays > 0 {
		return s.YearlyDays
	}
	return math.Ceil(float64(s.WeeklyWorkingDays()) / 7 * 365)
}

// WorkingHoursSnapshot freezes the calendar figures for unit conversion.
func (s Studio) WorkingHoursSnapshot() timeunit.WorkingHours {
	return timeunit.WorkingHours{
		Daily:      s.DailyWorkingHours(),
		Weekly:     s.WeeklyWorkingHours(),
		YearlyDays: s.YearlyWorkingDays(),
	}
}

// ScheduleNow is the configured now, or the current time truncated to the
// timing resolution.
func (s Studio) ScheduleNow() time.Time {
	if !s.Now.IsZero() {
		return s.Now
	}
	res := s.TimingResolution
	if res <= 0 {
		res = time.Hour
	}
	return time.Now().UTC().Truncate(res)
}

// TJPID is the id of the studio project in the tjp file.
func (s Studio) TJPID() string { return fmt.Sprintf("Studio_%d", s.ID) }

// TJPWorkingHours renders one workinghours line per weekday.
func (s Studio) TJPWorkingHours() []string {
	var lines []string
	for _, d := range Weekdays {
		spans, _ := s.Spans(d)
		if len(spans) == 0 {
			lines = append(lines, fmt.Sprintf("workinghours %s off", d))
			continue
		}
		parts := make([]string, 0, len(spans))
		for _, sp := range spans {
			parts = append(parts, fmt.Sprintf("%s - %s", clock(sp.From), clock(sp.To)))
		}
		lines = append(lines, fmt.Sprintf("workinghours %s %s", d, strings.Join(parts, ", ")))
	}
	return lines
}

func clock(m int) string { return fmt.Sprintf("%02d:%02d", m/60, m%60) }
