// Package page collects converted markup and renders complete help pages.
package page

import (
	"bytes"

	"go.uber.org/zap"
)

type element struct {
	name    string
	emitted bool
}

// Writer implements wiki.DocumentWriter over in-memory buffer. Opening tags
// are written when first content arrives inside the element, elements
// closed without content are dropped.
type Writer struct {
	buf   bytes.Buffer
	stack []element
	log   *zap.Logger
}

// NewWriter creates empty writer.
func NewWriter(log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{log: log}
}

// OpenTag pushes element name on the stack.
func (w *Writer) OpenTag(name string) {
	w.stack = append(w.stack, element{name: name})
}

// Write appends text, emitting pending opening tags first.
func (w *Writer) Write(text string) {
	if text == "" {
		return
	}
	for i := range w.stack {
		if !w.stack[i].emitted {
			w.buf.WriteString("<" + w.stack[i].name + ">")
			w.stack[i].emitted = true
		}
	}
	w.buf.WriteString(text)
}

// CloseTag closes innermost open element.
func (w *Writer) CloseTag() {
	if len(w.stack) == 0 {
		w.log.Debug("CloseTag without open element")
		return
	}
	top := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]
	if top.emitted {
		w.buf.WriteString("</" + top.name + ">\n")
	}
}

// Depth returns number of currently open elements.
func (w *Writer) Depth() int {
	return len(w.stack)
}

// String returns markup written so far, closing any elements left open.
func (w *Writer) String() string {
	for len(w.stack) > 0 {
		w.CloseTag()
	}
	return w.buf.String()
}

// Reset discards everything written.
func (w *Writer) Reset() {
	w.buf.Reset()
	w.stack = w.stack[:0]
}
