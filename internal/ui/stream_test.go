package ui

import (
	"fmt"
	"testing"
)

func TestLineWriter_SplitsAcrossWrites(t *testing.T) {
	var lines []string
	lw := NewLineWriter(func(l string) { lines = append(lines, l) }, nil)

	fmt.Fprint(lw, "Warning: first")
	fmt.Fprint(lw, " line\r\n\nsecond\nthi")
	if len(lines) != 2 || lines[0] != "Warning: first line" || lines[1] != "second" {
		t.Fatalf("lines = %q", lines)
	}

	lw.Flush()
	if len(lines) != 3 || lines[2] != "thi" {
		t.Fatalf("after flush lines = %q", lines)
	}
	lw.Flush()
	if len(lines) != 3 {
		t.Errorf("second flush emitted again: %q", lines)
	}
}

func TestStatusIcon_KnownCodes(t *testing.T) {
	for _, s := range []string{"WFD", "RTS", "WIP", "PREV", "HREV", "DREV", "OH", "STOP", "CMPL"} {
		if StatusIcon(s) == "" || Status(s) == "" {
			t.Errorf("status %s rendered empty", s)
		}
	}
}
