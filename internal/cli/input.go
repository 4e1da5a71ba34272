package cli

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"chatcli/internal/session"
)

// linerReader gives the REPL line editing and in-memory history.
type linerReader struct {
	state *liner.State
}

func newLinerReader() *linerReader {
	state := liner.NewLiner()
	state.SetCtrlCAborts(true)
	return &linerReader{state: state}
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	line, err := r.state.Prompt(prompt)
	if err != nil {
		// Ctrl+C and Ctrl+D both end the session
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		r.state.AppendHistory(line)
	}
	return line, nil
}

func (r *linerReader) Close() error {
	return r.state.Close()
}

// newLineReader uses liner on an interactive stdin and a scanner otherwise.
// The returned close func is never nil.
func newLineReader(in io.Reader, out io.Writer) (session.LineReader, func()) {
	if f, ok := in.(*os.File); ok && f == os.Stdin && term.IsTerminal(int(f.Fd())) {
		r := newLinerReader()
		return r, func() { _ = r.Close() }
	}
	return session.NewScannerReader(in, out), func() {}
}
