package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/taskstorm/internal/runner"
)

func TestPlainSelector_ByNumber(t *testing.T) {
	var out bytes.Buffer
	s := &PlainSelector{In: strings.NewReader("2\n"), Out: &out}

	got, ok := s.Select([]string{"debug", "release"}, "Configure preset")
	if !ok || got != "release" {
		t.Errorf("Select = %q/%v, want release", got, ok)
	}
	if !strings.Contains(out.String(), "1) debug") {
		t.Errorf("prompt missing numbered items: %q", out.String())
	}
}

func TestPlainSelector_ByName(t *testing.T) {
	s := &PlainSelector{In: strings.NewReader("debug\n"), Out: &bytes.Buffer{}}
	got, ok := s.Select([]string{"debug", "release"}, "preset")
	if !ok || got != "debug" {
		t.Errorf("Select = %q/%v, want debug", got, ok)
	}
}

func TestPlainSelector_Declines(t *testing.T) {
	cases := []string{"", "\n", "q\n", "99\n", "0\n", "nope\n"}
	for _, input := range cases {
		s := &PlainSelector{In: strings.NewReader(input), Out: &bytes.Buffer{}}
		if got, ok := s.Select([]string{"a", "b"}, "x"); ok {
			t.Errorf("input %q accepted as %q", input, got)
		}
	}
}

func TestPlainSelector_SequentialPrompts(t *testing.T) {
	// One dispatch can prompt more than once (configure preset, then build
	// preset). Piped answers for later prompts must not be swallowed by the
	// first read.
	s := &PlainSelector{In: strings.NewReader("1\n2\n"), Out: &bytes.Buffer{}}

	got, ok := s.Select([]string{"debug", "release"}, "Configure preset")
	if !ok || got != "debug" {
		t.Fatalf("first Select = %q/%v, want debug", got, ok)
	}
	got, ok = s.Select([]string{"fast", "slow"}, "Build preset")
	if !ok || got != "slow" {
		t.Errorf("second Select = %q/%v, want slow (second piped answer)", got, ok)
	}
}

func TestPlainSelector_NoItems(t *testing.T) {
	s := &PlainSelector{In: strings.NewReader("1\n"), Out: &bytes.Buffer{}}
	if _, ok := s.Select(nil, "x"); ok {
		t.Error("empty list accepted")
	}
}

func newSimSelector(t *testing.T) (*TcellSelector, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	sel := &TcellSelector{newScreen: func() (tcell.Screen, error) {
		return sim, nil
	}}
	return sel, sim
}

func TestTcellSelector_MoveAndAccept(t *testing.T) {
	sel, sim := newSimSelector(t)

	go func() {
		// Give Select time to init the screen and enter its loop.
		time.Sleep(50 * time.Millisecond)
		sim.InjectKey(tcell.KeyDown, ' ', tcell.ModNone)
		sim.InjectKey(tcell.KeyEnter, ' ', tcell.ModNone)
	}()

	got, ok := sel.Select([]string{"debug", "release"}, "preset")
	if !ok || got != "release" {
		t.Errorf("Select = %q/%v, want release", got, ok)
	}
}

func TestTcellSelector_EscapeDeclines(t *testing.T) {
	sel, sim := newSimSelector(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		sim.InjectKey(tcell.KeyEscape, ' ', tcell.ModNone)
	}()

	if got, ok := sel.Select([]string{"a"}, "x"); ok {
		t.Errorf("escape accepted as %q", got)
	}
}

// simRow renders one row of the simulation screen as a string.
func simRow(sim tcell.SimulationScreen, row int) string {
	cells, width, _ := sim.GetContents()
	var b strings.Builder
	for x := 0; x < width; x++ {
		cell := cells[row*width+x]
		if len(cell.Runes) > 0 {
			b.WriteRune(cell.Runes[0])
		}
	}
	return b.String()
}

func TestDrawList_ScrollsToSelection(t *testing.T) {
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatal(err)
	}
	defer sim.Fini()
	sim.SetSize(20, 4)

	items := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}
	drawList(sim, items, "Target", len(items)-1)

	// Three rows below the label: the window slides so the last item is
	// visible and marked selected.
	if got := simRow(sim, 3); !strings.Contains(got, "> foxtrot") {
		t.Errorf("bottom row = %q, want the selection scrolled into view", got)
	}
	if got := simRow(sim, 1); !strings.Contains(got, "delta") {
		t.Errorf("top row = %q, want the window to start at delta", got)
	}
}

func TestStreamSink(t *testing.T) {
	var out, errOut bytes.Buffer
	s := &StreamSink{Out: &out, Err: &errOut}

	s.Start([]string{"cmake", "--build", "build"}, "/proj")
	s.Line(runner.Line{Content: "compiling", Stream: runner.StreamStdout})
	s.Line(runner.Line{Content: "warning: unused", Stream: runner.StreamStderr})
	s.Complete(runner.Result{ExitCode: 0, Duration: 120 * time.Millisecond})

	if !strings.Contains(out.String(), "$ cmake --build build") {
		t.Errorf("header missing: %q", out.String())
	}
	if !strings.Contains(out.String(), "compiling") {
		t.Errorf("stdout line missing: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "warning: unused") {
		t.Errorf("stderr line missing: %q", errOut.String())
	}
	if !strings.Contains(out.String(), "[done in") {
		t.Errorf("completion missing: %q", out.String())
	}

	s.Complete(runner.Result{ExitCode: 2})
	if !strings.Contains(errOut.String(), "[exit 2]") {
		t.Errorf("failure status missing: %q", errOut.String())
	}

	s.Canceled()
	if !strings.Contains(errOut.String(), "[canceled]") {
		t.Errorf("cancel marker missing: %q", errOut.String())
	}
}

func TestWriteNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := &WriteNotifier{Out: &buf}

	n.Info("configured %s", "debug")
	n.Warn("no presets")
	n.Error("task failed")

	got := buf.String()
	for _, want := range []string{"configured debug\n", "warning: no presets\n", "error: task failed\n"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}
