package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"Channel", "Videos"},
		[][]string{{"chanA", "3"}, {"chanB"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected trailing newline, got %q", out)
	}
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	// top border, header, separator, two rows, bottom border
	if len(lines) != 6 {
		t.Fatalf("expected 6 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.Contains(lines[3], "chanA") || !strings.Contains(lines[3], "3") {
		t.Fatalf("unexpected first row %q", lines[3])
	}
	if !strings.Contains(lines[4], "chanB") {
		t.Fatalf("unexpected second row %q", lines[4])
	}
}

func TestRenderTableNoHeaders(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
