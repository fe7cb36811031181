package tj

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleCSV = `"Id";"Start";"End";"Resources"
"Project_1";"2026-03-02-09:00";"2026-03-06-18:00";"Ada (User_1), Bob (User_2)"
"Project_1.Task_1";"2026-03-02-09:00";"2026-03-05-12:00";""
"Project_1.Task_1.Task_2";"2026-03-02-09:00";"2026-03-02-12:00";"User_1 (User_1), User_1 (User_1)"
"Project_1.Task_1.Task_3";"2026-03-04-09:00";"2026-03-05-12:00";""
"Project_1.Task_4";"2026-03-05-12:00";"2026-03-05-12:00";""
`

func TestReadResult(t *testing.T) {
	rows, err := readResult(strings.NewReader(sampleCSV), true)
	if err != nil {
		t.Fatalf("readResult: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(rows))
	}
	if rows[0].Kind != RowProject || rows[0].ID != 1 {
		t.Errorf("row 0 = %+v", rows[0])
	}
	r := rows[2]
	if r.Kind != RowTask || r.ID != 2 {
		t.Errorf("row 2 = %+v", r)
	}
	if !r.Start.Equal(t0) || !r.End.Equal(t0.Add(3*time.Hour)) || r.Start.Location() != time.UTC {
		t.Errorf("row 2 dates = %v - %v", r.Start, r.End)
	}
	if len(r.Resources) != 1 || r.Resources[0] != 1 {
		t.Errorf("row 2 resources = %v, want [1]", r.Resources)
	}
	if got := rows[0].Resources; len(got) != 2 || got[1] != 2 {
		t.Errorf("project resources = %v", got)
	}
}

func TestReadResult_WithoutResources(t *testing.T) {
	rows, err := readResult(strings.NewReader(sampleCSV), false)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Resources != nil {
			t.Errorf("row %d has resources %v", r.ID, r.Resources)
		}
	}
}

func TestReadResult_SkipsForeignIDs(t *testing.T) {
	in := "id;start;end\nStudio_1;2026-03-02-09:00;2026-03-02-10:00\nProject_1.Task_x;2026-03-02-09:00;2026-03-02-10:00\n"
	rows, err := readResult(strings.NewReader(in), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %+v, want none", rows)
	}
}

func TestReadResult_BadTimestamp(t *testing.T) {
	in := "id;start;end\nProject_1.Task_2;yesterday;2026-03-02-10:00\n"
	if _, err := readResult(strings.NewReader(in), false); err == nil {
		t.Error("expected error for bad timestamp")
	}
}

func TestParseResult_MissingFile(t *testing.T) {
	rows, err := ParseResult(filepath.Join(t.TempDir(), "nope.csv"), true)
	if err != nil || rows != nil {
		t.Errorf("rows = %v err = %v, want nothing", rows, err)
	}
}

func TestParseResult_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Studio_1.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := ParseResult(path, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 5 {
		t.Errorf("rows = %d, want 5", len(rows))
	}
}
