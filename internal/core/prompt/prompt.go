// Package prompt is the reference Prompter (spec §6): a bufio.Scanner-
// backed terminal implementation of resolve.Prompter. The abstract
// interface and the re-prompt/validation rules belong to the core
// (resolve.InteractiveResolver); this package only renders a question
// to out and reads one line of response from in.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/archetype-run/archetype/internal/core/resolve"
)

// Terminal is a minimal line-oriented Prompter: it writes the question
// (with numbered options for enum/list) to out, then reads one line
// from in. A scanner is kept across calls so stdin is only wrapped once.
type Terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewScanner(in), out: out}
}

func (t *Terminal) Prompt(kind resolve.InputKind, id, promptText, help string, options []string, def string) (string, error) {
	if promptText == "" {
		promptText = id
	}
	fmt.Fprint(t.out, promptText)
	if help != "" {
		fmt.Fprintf(t.out, " (%s)", help)
	}
	switch kind {
	case resolve.KindBool:
		fmt.Fprint(t.out, " [y/n]")
	case resolve.KindEnum, resolve.KindList:
		for i, o := range options {
			fmt.Fprintf(t.out, "\n  %d) %s", i+1, o)
		}
	}
	if def != "" {
		fmt.Fprintf(t.out, " [%s]", def)
	}
	fmt.Fprint(t.out, ": ")

	if !t.in.Scan() {
		if err := t.in.Err(); err != nil {
			return "", fmt.Errorf("prompt: reading response: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimRight(t.in.Text(), "\r\n"), nil
}
