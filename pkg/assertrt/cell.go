// Package assertrt is the runtime support imported by instrumented source.
// Rewritten assertion sites route every sub-expression through a capture
// cell as the condition evaluates, so the failure branch can reconstruct the
// expression from cached values without re-running anything. The package is
// dependency-free on purpose: instrumented programs pull in nothing beyond
// what they already had, plus this.
package assertrt

// Cell is one per-operand capture slot: an explicit guard flag plus typed
// storage. A cell is written at most once per check, exactly when (and only
// when) short-circuit evaluation reaches its operand.
type Cell struct {
	set bool
	b   bool
	i   int64
	u   uint64
	f   float64
	s   string
}

// NewCheck returns an explicitly cleared cell bank for one assertion check.
// Generated code allocates the bank at the top of the instrumented block;
// guards are never assumed zero from surrounding state.
func NewCheck(n int) []Cell {
	return make([]Cell, n)
}

// PutInt captures an integer operand and passes it through unchanged.
func PutInt(c *Cell, v int64) int64 {
	c.i = v
	c.set = true
	return v
}

// PutUint captures an unsigned operand and passes it through unchanged.
func PutUint(c *Cell, v uint64) uint64 {
	c.u = v
	c.set = true
	return v
}

// PutFloat captures a floating-point operand and passes it through unchanged.
func PutFloat(c *Cell, v float64) float64 {
	c.f = v
	c.set = true
	return v
}

// PutBool captures a truth-valued operand and passes it through unchanged.
func PutBool(c *Cell, v bool) bool {
	c.b = v
	c.set = true
	return v
}

// PutStr captures a string operand and passes it through unchanged.
func PutStr(c *Cell, v string) string {
	c.s = v
	c.set = true
	return v
}

// Set reports whether evaluation reached this operand.
func (c *Cell) Set() bool { return c.set }

// Truth returns the cached truth value. The failure branch only reads cells
// that short-circuit rules guarantee were filled.
func (c *Cell) Truth() bool { return c.b }

// Int returns the cached integer value.
func (c *Cell) Int() int64 { return c.i }

// Uint returns the cached unsigned value.
func (c *Cell) Uint() uint64 { return c.u }

// Float returns the cached floating-point value.
func (c *Cell) Float() float64 { return c.f }

// Str returns the cached string value.
func (c *Cell) Str() string { return c.s }
