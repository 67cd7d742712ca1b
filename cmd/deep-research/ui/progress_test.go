package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/24601/agent-deep-research/internal/poll"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate(short)=%q", got)
	}
	if got := Truncate("héllo wörld", 5); got != "héllo..." {
		t.Errorf("Truncate multibyte=%q", got)
	}
	if got := Truncate("exact", 5); got != "exact" {
		t.Errorf("Truncate at limit=%q", got)
	}
}

func TestStatusStyle(t *testing.T) {
	if got := StatusStyle("completed").GetForeground(); got != Success {
		t.Errorf("completed foreground=%v", got)
	}
	if got := StatusStyle("failed").GetForeground(); got != Destructive {
		t.Errorf("failed foreground=%v", got)
	}
	if got := StatusStyle("cancelled").GetForeground(); got != Destructive {
		t.Errorf("cancelled foreground=%v", got)
	}
	if got := StatusStyle("running").GetForeground(); got != Warning {
		t.Errorf("running foreground=%v", got)
	}
}

func TestPlainProgress(t *testing.T) {
	var buf bytes.Buffer
	p := &PlainProgress{Out: &buf, ShowThoughts: true}

	p.Strategy(false)
	p.Step(poll.StepEvent{Status: "running", Index: 0, Total: 1, Text: "searching\nthe web", Elapsed: 5 * time.Second})
	p.Transient(errors.New("http 503: unavailable"), 10*time.Second)

	out := buf.String()
	if !strings.Contains(out, "Fixed polling") {
		t.Errorf("missing strategy notice in %q", out)
	}
	if !strings.Contains(out, "[5s] status=running step=1: searching the web") {
		t.Errorf("missing flattened step line in %q", out)
	}
	if !strings.Contains(out, "[10s] poll failed, retrying: http 503: unavailable") {
		t.Errorf("missing transient line in %q", out)
	}
}

func TestPlainProgressHidesThoughts(t *testing.T) {
	var buf bytes.Buffer
	p := &PlainProgress{Out: &buf, ShowThoughts: false}

	p.Step(poll.StepEvent{Status: "running", Index: 2, Total: 3, Text: "secret reasoning", Elapsed: time.Minute})

	out := buf.String()
	if strings.Contains(out, "secret reasoning") {
		t.Errorf("step text leaked: %q", out)
	}
	if !strings.Contains(out, "[60s] status=running step=3") {
		t.Errorf("missing step line in %q", out)
	}
}

func TestProgressModelLifecycle(t *testing.T) {
	m := newProgressModel(true)

	next, _ := m.Update(noticeMsg{adaptive: true})
	m = next.(progressModel)
	next, _ = m.Update(stepMsg(poll.StepEvent{Status: "running", Index: 1, Total: 2, Text: "reading sources", Elapsed: 12 * time.Second}))
	m = next.(progressModel)

	view := m.View()
	if !strings.Contains(view, "Status: running (") {
		t.Errorf("missing status line in %q", view)
	}
	if !strings.Contains(view, "Adaptive polling") {
		t.Errorf("missing strategy notice in %q", view)
	}
	if !strings.Contains(view, "Step 2") {
		t.Errorf("missing step label in %q", view)
	}
	if !strings.Contains(view, "reading sources") {
		t.Errorf("missing step text in %q", view)
	}

	next, _ = m.Update(transientMsg{err: errors.New("http 500")})
	m = next.(progressModel)
	if !strings.Contains(m.View(), "poll failed, retrying: http 500") {
		t.Errorf("missing transient warning in %q", m.View())
	}

	// A new step clears the transient warning.
	next, _ = m.Update(stepMsg(poll.StepEvent{Status: "running", Index: 2, Total: 3, Text: "drafting", Elapsed: 30 * time.Second}))
	m = next.(progressModel)
	if strings.Contains(m.View(), "poll failed") {
		t.Errorf("transient warning not cleared: %q", m.View())
	}

	next, cmd := m.Update(doneMsg{line: "Research complete!", ok: true})
	m = next.(progressModel)
	if !m.done {
		t.Error("expected done after doneMsg")
	}
	if cmd == nil {
		t.Error("expected quit command after doneMsg")
	}
	if got, want := m.View(), SuccessLine("Research complete!")+"\n"; got != want {
		t.Errorf("final view=%q, want %q", got, want)
	}
}

func TestProgressModelHidesThoughts(t *testing.T) {
	m := newProgressModel(false)
	next, _ := m.Update(stepMsg(poll.StepEvent{Status: "running", Index: 0, Total: 1, Text: "hidden", Elapsed: time.Second}))
	m = next.(progressModel)
	if strings.Contains(m.View(), "hidden") {
		t.Errorf("step text leaked: %q", m.View())
	}
}
