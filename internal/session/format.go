package session

import (
	"fmt"
	"io"
)

// Formatter renders what the session prints. Implementations must not buffer.
type Formatter interface {
	Assistant(w io.Writer, text string)
	Status(w io.Writer, line string)
	Error(w io.Writer, line string)
}

// PlainFormatter writes uncoloured lines.
type PlainFormatter struct{}

func (PlainFormatter) Assistant(w io.Writer, text string) {
	fmt.Fprintf(w, "Assistant: %s\n", text)
}

func (PlainFormatter) Status(w io.Writer, line string) {
	fmt.Fprintln(w, line)
}

func (PlainFormatter) Error(w io.Writer, line string) {
	fmt.Fprintln(w, line)
}
