package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sample struct {
	Device string `json:"device"`
	Bytes  int64  `json:"bytes"`
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"table", FormatTable, false},
		{"yaml", FormatYAML, false},
		{"", "", false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatJSON, &buf)

	if err := r.Render(sample{Device: "/dev/sdb", Bytes: 42}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	var got sample
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Device != "/dev/sdb" || got.Bytes != 42 {
		t.Errorf("got %+v", got)
	}
}

func TestRender_TableStruct(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render(sample{Device: "/dev/sdb", Bytes: 42}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "device:") || !strings.Contains(out, "/dev/sdb") {
		t.Errorf("table output missing fields: %q", out)
	}
}

func TestRender_TableSlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	rows := []sample{
		{Device: "/dev/sdb", Bytes: 1},
		{Device: "/dev/sdc", Bytes: 2},
	}
	if err := r.Render(rows); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header plus 2 rows: %q", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "device") {
		t.Errorf("header = %q", lines[0])
	}
}

func TestRender_TableEmptySlice(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatTable, &buf)

	if err := r.Render([]sample{}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "(no results)") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRender_YAML(t *testing.T) {
	var buf bytes.Buffer
	r := NewRendererWithWriter(FormatYAML, &buf)

	if err := r.Render(map[string]int{"written": 7}); err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(buf.String(), "written: 7") {
		t.Errorf("output = %q", buf.String())
	}
}
