package assertrt

import (
	"fmt"
	"strings"
	"testing"
)

func TestPutPassesThrough(t *testing.T) {
	cells := NewCheck(5)

	if got := PutInt(&cells[0], -4); got != -4 {
		t.Errorf("PutInt returned %d", got)
	}
	if got := PutUint(&cells[1], 9); got != 9 {
		t.Errorf("PutUint returned %d", got)
	}
	if got := PutFloat(&cells[2], 1.5); got != 1.5 {
		t.Errorf("PutFloat returned %g", got)
	}
	if got := PutBool(&cells[3], true); got != true {
		t.Errorf("PutBool returned %t", got)
	}
	if got := PutStr(&cells[4], "hi"); got != "hi" {
		t.Errorf("PutStr returned %q", got)
	}

	for i := range cells {
		if !cells[i].Set() {
			t.Errorf("cell %d not marked set", i)
		}
	}
	if cells[0].Int() != -4 || cells[1].Uint() != 9 || cells[2].Float() != 1.5 ||
		!cells[3].Truth() || cells[4].Str() != "hi" {
		t.Error("cached values do not round-trip")
	}
}

func TestNewCheckStartsCleared(t *testing.T) {
	cells := NewCheck(3)
	for i := range cells {
		if cells[i].Set() {
			t.Errorf("cell %d set before any evaluation", i)
		}
	}
}

func TestRecorderAssemblesDiagnostic(t *testing.T) {
	cells := NewCheck(2)
	PutInt(&cells[0], 5)
	PutInt(&cells[1], 42)

	r := NewRecorder(0)
	r.IntArg(&cells[0])
	r.Frag(" == ")
	r.IntArg(&cells[1])

	if got := r.Template(); got != "%d == %d" {
		t.Errorf("Template = %q", got)
	}
	if got := fmt.Sprintf(r.Template(), r.Args()...); got != "5 == 42" {
		t.Errorf("rendered = %q", got)
	}
}

func TestRecorderEscapesPercent(t *testing.T) {
	cells := NewCheck(1)
	PutInt(&cells[0], 1)

	r := NewRecorder(0)
	r.IntArg(&cells[0])
	r.Frag(" % 2 == ")
	if got := r.Template(); got != "%d %% 2 == " {
		t.Errorf("Template = %q", got)
	}
}

func TestRecorderTruncates(t *testing.T) {
	cells := NewCheck(1)
	PutInt(&cells[0], 7)

	r := NewRecorder(4)
	for i := 0; i < 10; i++ {
		r.IntArg(&cells[0])
	}
	if !r.Truncated() {
		t.Fatal("recorder not truncated")
	}
	if !strings.HasSuffix(r.Template(), TruncationMark) {
		t.Errorf("Template %q missing truncation mark", r.Template())
	}
	if len(r.Args()) != 2 {
		t.Errorf("args = %d, want 2 within a 4-byte bound", len(r.Args()))
	}
}

func TestEmit(t *testing.T) {
	cells := NewCheck(1)
	PutBool(&cells[0], false)

	r := NewRecorder(0)
	r.BoolArg(&cells[0])

	var got string
	r.Emit(func(format string, args ...any) {
		got = fmt.Sprintf(format, args...)
	})
	if got != "false\n" {
		t.Errorf("Emit produced %q", got)
	}
}
