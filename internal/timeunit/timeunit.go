package timeunit

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Unit is a schedule unit as TaskJuggler spells it.
type Unit string

const (
	Minute Unit = "min"
	Hour   Unit = "h"
	Day    Unit = "d"
	Week   Unit = "w"
	Month  Unit = "m"
	Year   Unit = "y"
)

// Units lists every unit from the coarsest to the finest.
var Units = []Unit{Year, Month, Week, Day, Hour, Minute}

// ParseUnit accepts the tjp spelling plus a few long forms.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "mins", "minute", "minutes":
		return Minute, nil
	case "h", "hour", "hours":
		return Hour, nil
	case "d", "day", "days":
		return Day, nil
	case "w", "week", "weeks":
		return Week, nil
	case "m", "month", "months":
		return Month, nil
	case "y", "year", "years":
		return Year, nil
	}
	return "", fmt.Errorf("unknown schedule unit %q (want one of min, h, d, w, m, y)", s)
}

// Model is how TaskJuggler interprets a task's timing.
type Model string

const (
	Effort   Model = "effort"
	Duration Model = "duration"
	Length   Model = "length"
)

// ParseModel parses a schedule model name.
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case Effort:
		return Effort, nil
	case Duration:
		return Duration, nil
	case Length:
		return Length, nil
	}
	return "", fmt.Errorf("unknown schedule model %q (want effort, duration or length)", s)
}

// Constraint says which of a task's dates are pinned when its timing changes.
type Constraint int

const (
	ConstrainNone Constraint = iota
	ConstrainStart
	ConstrainEnd
	ConstrainBoth
)

func (c Constraint) String() string {
	switch c {
	case ConstrainStart:
		return "start"
	case ConstrainEnd:
		return "end"
	case ConstrainBoth:
		return "both"
	default:
		return "none"
	}
}

// ParseConstraint parses none, start, end or both.
func ParseConstraint(s string) (Constraint, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ConstrainNone, nil
	case "start":
		return ConstrainStart, nil
	case "end":
		return ConstrainEnd, nil
	case "both":
		return ConstrainBoth, nil
	}
	return ConstrainNone, fmt.Errorf("unknown schedule constraint %q", s)
}

// Source provides the working-hour figures every conversion depends on.
type Source interface {
	DailyWorkingHours() float64
	WeeklyWorkingHours() float64
	YearlyWorkingDays() float64
}

// WorkingHours is a plain Source value.
type WorkingHours struct {
	Daily      float64 `yaml:"daily" json:"daily"`
	Weekly     float64 `yaml:"weekly" json:"weekly"`
	YearlyDays float64 `yaml:"yearly_days" json:"yearly_days"`
}

func (w WorkingHours) DailyWorkingHours() float64  { return w.Daily }
func (w WorkingHours) WeeklyWorkingHours() float64 { return w.Weekly }
func (w WorkingHours) YearlyWorkingDays() float64  { return w.YearlyDays }

// Defaults is substituted whenever a caller passes a nil Source.
var Defaults = WorkingHours{Daily: 9, Weekly: 45, YearlyDays: 261}

func orDefault(src Source) Source {
	if src == nil {
		return Defaults
	}
	return src
}

// Ratio returns the number of working seconds in one unit.
func Ratio(src Source, unit Unit) float64 {
	src = orDefault(src)
	switch unit {
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return src.DailyWorkingHours() * 3600
	case Week:
		return src.WeeklyWorkingHours() * 3600
	case Month:
		return src.WeeklyWorkingHours() * 4 * 3600
	case Year:
		return src.YearlyWorkingDays() * src.DailyWorkingHours() * 3600
	}
	return 3600
}

// CalendarRatio returns the number of wall-clock seconds in one unit.
func CalendarRatio(unit Unit) float64 {
	switch unit {
	case Minute:
		return 60
	case Hour:
		return 3600
	case Day:
		return 86400
	case Week:
		return 7 * 86400
	case Month:
		return 30 * 86400
	case Year:
		return 365 * 86400
	}
	return 3600
}

// ToSeconds converts timing expressed in unit into working seconds.
func ToSeconds(src Source, timing float64, unit Unit) float64 {
	return timing * Ratio(src, unit)
}

// FromSeconds converts working seconds into a timing expressed in unit.
func FromSeconds(src Source, seconds float64, unit Unit) float64 {
	return seconds / Ratio(src, unit)
}

// ToDuration is the span a task occupies on the calendar for the given model.
// Effort and length count working time, duration counts wall-clock time.
func ToDuration(src Source, model Model, timing float64, unit Unit) time.Duration {
	var seconds float64
	if model == Duration {
		seconds = timing * CalendarRatio(unit)
	} else {
		seconds = ToSeconds(src, timing, unit)
	}
	return time.Duration(math.Round(seconds)) * time.Second
}

const divisibleEpsilon = 1e-6

// LeastMeaningful picks the coarsest unit that represents seconds as a whole
// number. When nothing divides evenly the result is fractional minutes.
func LeastMeaningful(src Source, seconds float64) (float64, Unit) {
	if seconds <= 0 {
		return 0, Hour
	}
	for _, u := range Units {
		ratio := Ratio(src, u)
		if ratio <= 0 {
			continue
		}
		q := seconds / ratio
		if q < 1-divisibleEpsilon {
			continue
		}
		if math.Abs(q-math.Round(q)) < divisibleEpsilon {
			return math.Round(q), u
		}
	}
	return seconds / 60, Minute
}
