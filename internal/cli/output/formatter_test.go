package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, "yaml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON, false).(*JSONFormatter); !ok {
		t.Error("json formatter type")
	}
	if _, ok := NewFormatter(FormatYAML, false).(*YAMLFormatter); !ok {
		t.Error("yaml formatter type")
	}
	if f, ok := NewFormatter(FormatTable, true).(*TableFormatter); !ok || !f.Wide {
		t.Error("table formatter type or wide flag")
	}
}

type report struct {
	RoomID string   `json:"room_id"`
	Count  int      `json:"count"`
	Tags   []string `json:"tags,omitempty"`
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{}).Format(&buf, report{RoomID: "<r>", Count: 2}); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"room_id\": \"<r>\",\n  \"count\": 2\n}\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestYAMLFormatter_UsesJSONNames(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLFormatter{}).Format(&buf, report{RoomID: "r1", Count: 2, Tags: []string{"a"}}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"room_id: r1", "count: 2", "tags:", "  - a"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
