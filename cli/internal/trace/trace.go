// Package trace provides a small Tracer for writing internal step output to
// stderr when --verbose is set. No-op when the writer is nil.
package trace

import (
	"fmt"
	"io"
	"strings"
)

// Tracer writes sectioned trace output. When the underlying writer is nil,
// all methods no-op.
type Tracer struct {
	w io.Writer
}

// New returns a Tracer that writes to w. If w is nil, all methods no-op.
func New(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// Enabled returns true if the tracer has a non-nil writer.
func (t *Tracer) Enabled() bool {
	return t != nil && t.w != nil
}

// Section writes a section header: "\n[aside] === name ===\n"
func (t *Tracer) Section(name string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "\n[aside] === %s ===\n", name)
}

// Printf writes to the trace writer when enabled. Format and args are as in
// fmt.Printf.
func (t *Tracer) Printf(format string, args ...interface{}) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, format, args...)
}

// Dump writes a labeled multi-line block, each line indented, for payloads
// like assembled prompts.
func (t *Tracer) Dump(label, text string) {
	if !t.Enabled() {
		return
	}
	fmt.Fprintf(t.w, "%s:\n", label)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(t.w, "  %s\n", line)
	}
}
