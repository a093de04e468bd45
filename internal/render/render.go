// Package render declares the contract of the external LaTeX renderer. The
// core never parses or validates LaTeX itself: expressions pass through
// untouched and renderer failures surface to the author without altering
// question data.
package render

import "fmt"

// Renderer turns a raw math-markup string into visual output.
type Renderer interface {
	Render(latex string) (string, error)
}

// RenderError carries the offending expression and a human-readable message.
type RenderError struct {
	Expr string `json:"expr"`
	Msg  string `json:"msg"`
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %q: %s", e.Expr, e.Msg)
}

// Passthrough is the default renderer when no external one is wired: every
// expression renders as itself. Author-facing previews then show raw markup
// instead of failing.
type Passthrough struct{}

func (Passthrough) Render(latex string) (string, error) { return latex, nil }
