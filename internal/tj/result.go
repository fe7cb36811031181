package tj

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// RowKind says which entity a result row belongs to.
type RowKind string

const (
	RowTask    RowKind = "task"
	RowProject RowKind = "project"
)

// Row is one line of the solver's csv report.
type Row struct {
	Kind      RowKind
	ID        int64
	Start     time.Time
	End       time.Time
	Resources []int64
}

var userRe = regexp.MustCompile(`User_(\d+)`)

// ParseResult reads the csv report written by tj3. A missing file means
// nothing was scheduled and yields no rows.
func ParseResult(path string, computeResources bool) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open result: %w", err)
	}
	defer f.Close()
	return readResult(f, computeResources)
}

func readResult(r io.Reader, computeResources bool) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows []Row
	header := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read result: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("result line %q: want id, start, end", strings.Join(rec, ";"))
		}
		kind, id, ok := parseID(rec[0])
		if !ok {
			continue
		}
		start, err := time.ParseInLocation(TimeFormat, strings.TrimSpace(rec[1]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("result %s: start: %w", rec[0], err)
		}
		end, err := time.ParseInLocation(TimeFormat, strings.TrimSpace(rec[2]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("result %s: end: %w", rec[0], err)
		}
		row := Row{Kind: kind, ID: id, Start: start, End: end}
		if computeResources && len(rec) > 3 {
			row.Resources = parseResources(rec[3])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseID resolves the entity from the last segment of a dotted tjp id.
func parseID(path string) (RowKind, int64, bool) {
	seg := strings.TrimSpace(path)
	if i := strings.LastIndex(seg, "."); i >= 0 {
		seg = seg[i+1:]
	}
	var kind RowKind
	switch {
	case strings.HasPrefix(seg, "Task_"):
		kind, seg = RowTask, strings.TrimPrefix(seg, "Task_")
	case strings.HasPrefix(seg, "Project_"):
		kind, seg = RowProject, strings.TrimPrefix(seg, "Project_")
	default:
		return "", 0, false
	}
	id, err := strconv.ParseInt(seg, 10, 64)
	if err != nil {
		return "", 0, false
	}
	return kind, id, true
}

func parseResources(s string) []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, m := range userRe.FindAllStringSubmatch(s, -1) {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
