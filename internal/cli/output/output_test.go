package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestPrinter_QuietAndJSONSuppressHumanOutput(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		empty bool
	}{
		{"default", nil, false},
		{"quiet", []Option{WithQuiet(true)}, true},
		{"json", []Option{WithJSON(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p := New(append(tt.opts, WithOutput(&buf), WithNoColor(true))...)
			p.Success("created %s", "acme")
			p.Info("queued")
			p.KeyValue("ID", "42")
			if got := buf.Len() == 0; got != tt.empty {
				t.Errorf("empty output = %v, want %v (%q)", got, tt.empty, buf.String())
			}
		})
	}
}

func TestPrinter_ErrorGoesToErrOutput(t *testing.T) {
	var out, errOut bytes.Buffer
	p := New(WithOutput(&out), WithErrOutput(&errOut), WithNoColor(true), WithQuiet(true))

	p.Error("job %s failed", "abc")
	if !strings.Contains(errOut.String(), "job abc failed") {
		t.Errorf("error output = %q", errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("stdout = %q, want empty", out.String())
	}
}

func TestPrinter_Result(t *testing.T) {
	var buf bytes.Buffer
	called := false
	p := New(WithOutput(&buf), WithJSON(true))

	if err := p.Result(map[string]string{"jobId": "abc"}, func() { called = true }); err != nil {
		t.Fatal(err)
	}
	if called {
		t.Error("human printer must not run in JSON mode")
	}
	var got map[string]string
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if got["jobId"] != "abc" {
		t.Errorf("jobId = %q", got["jobId"])
	}
}

func TestTable_Render(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, "FILENAME", "STATUS", "SIZE")
	tbl.Append("portrait.webp", "temporary", "50.0 KB")
	tbl.Append("a.webp", "active", "1.0 KB")
	tbl.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[2], "a.webp         active") {
		t.Errorf("row not padded: %q", lines[2])
	}
}

func TestJobProgress_Quiet(t *testing.T) {
	var buf bytes.Buffer
	p := NewJobProgress(&buf, "transcoding", true)
	p.Update(50, "transcoding")
	p.Finish()
	if buf.Len() != 0 {
		t.Errorf("quiet progress wrote %q", buf.String())
	}
}

func TestJobProgress_NeverMovesBack(t *testing.T) {
	var buf bytes.Buffer
	p := NewJobProgress(&buf, "job", false)
	p.Update(60, "processing")
	p.Update(30, "processing")
	if got := p.bar.State().CurrentNum; got != 60 {
		t.Errorf("current = %d, want 60", got)
	}
	p.Finish()
}
