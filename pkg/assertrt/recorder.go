package assertrt

import (
	"fmt"
	"os"
	"strings"
)

// DefaultLimit bounds the assembled diagnostic template. Kept in sync with
// the engine-side renderer default.
const DefaultLimit = 1024

// TruncationMark is appended once when a diagnostic was cut short.
const TruncationMark = " ...[truncated]"

// ReportFunc is the diagnostic-printing routine. The rewriter resolves it
// once per build from configuration and bakes the reference into generated
// code; there is no runtime lookup.
type ReportFunc func(format string, args ...any)

// Report is the default routine when none is configured: stderr, printf
// conventions.
var Report ReportFunc = func(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// Recorder accumulates the failure diagnostic for one check: format
// fragments and cached values in strict source order. All state is
// initialized by NewRecorder; generated code never uses a zero Recorder.
type Recorder struct {
	frags     []string
	args      []any
	limit     int
	length    int
	truncated bool
}

// NewRecorder returns a recorder bounded to limit template bytes.
// limit <= 0 selects DefaultLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{
		frags:  make([]string, 0, 16),
		args:   make([]any, 0, 8),
		limit:  limit,
		length: 0,
	}
}

// Frag appends a literal fragment. Past the limit, fragments are dropped and
// the recorder is flagged truncated; storage is never overrun.
func (r *Recorder) Frag(s string) {
	s = strings.ReplaceAll(s, "%", "%%")
	if r.truncated || r.length+len(s) > r.limit {
		r.truncated = true
		return
	}
	r.frags = append(r.frags, s)
	r.length += len(s)
}

func (r *Recorder) arg(verb string, v any) {
	if r.truncated || r.length+len(verb) > r.limit {
		r.truncated = true
		return
	}
	r.frags = append(r.frags, verb)
	r.args = append(r.args, v)
	r.length += len(verb)
}

// IntArg appends a placeholder for a cached integer operand.
func (r *Recorder) IntArg(c *Cell) { r.arg("%d", c.Int()) }

// UintArg appends a placeholder for a cached unsigned operand.
func (r *Recorder) UintArg(c *Cell) { r.arg("%d", c.Uint()) }

// FloatArg appends a placeholder for a cached floating-point operand.
func (r *Recorder) FloatArg(c *Cell) { r.arg("%g", c.Float()) }

// BoolArg appends a placeholder for a cached truth-valued operand.
func (r *Recorder) BoolArg(c *Cell) { r.arg("%t", c.Truth()) }

// StrArg appends a placeholder for a cached string operand.
func (r *Recorder) StrArg(c *Cell) { r.arg("%q", c.Str()) }

// Template returns the concatenated format string, including the truncation
// mark when the bound was hit.
func (r *Recorder) Template() string {
	t := strings.Join(r.frags, "")
	if r.truncated {
		t += TruncationMark
	}
	return t
}

// Args returns the positional arguments in source order.
func (r *Recorder) Args() []any { return r.args }

// Truncated reports whether the bound was hit.
func (r *Recorder) Truncated() bool { return r.truncated }

// Emit hands the assembled diagnostic to report, followed by a newline.
// A nil report falls back to the package default.
func (r *Recorder) Emit(report ReportFunc) {
	if report == nil {
		report = Report
	}
	report(r.Template()+"\n", r.args...)
}
