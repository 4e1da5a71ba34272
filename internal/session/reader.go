package session

import (
	"bufio"
	"fmt"
	"io"
)

// LineReader yields one line of user input per call. It returns io.EOF when
// input is exhausted.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// ScannerReader reads lines from a non-interactive stream.
type ScannerReader struct {
	scanner *bufio.Scanner
	prompt  io.Writer
}

// NewScannerReader reads from in and echoes prompts to prompt, which may be nil.
func NewScannerReader(in io.Reader, prompt io.Writer) *ScannerReader {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerReader{scanner: scanner, prompt: prompt}
}

func (r *ScannerReader) ReadLine(prompt string) (string, error) {
	if r.prompt != nil {
		fmt.Fprint(r.prompt, prompt)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}
