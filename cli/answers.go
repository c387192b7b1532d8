package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// StdinAnswers asks clarification questions on a terminal.
type StdinAnswers struct {
	in  *bufio.Reader
	out io.Writer
}

// NewStdinAnswers reads answers from in and writes prompts to out.
func NewStdinAnswers(in io.Reader, out io.Writer) *StdinAnswers {
	return &StdinAnswers{in: bufio.NewReader(in), out: out}
}

// Answer prints the question with numbered options and reads one line.
// End of input counts as declining.
func (s *StdinAnswers) Answer(_ context.Context, question string, options []string) (string, bool, error) {
	fmt.Fprintf(s.out, "\n? %s\n", question)
	for i, opt := range options {
		fmt.Fprintf(s.out, "  %d. %s\n", i+1, opt)
	}
	fmt.Fprint(s.out, "Your answer (number or text, empty or q to stop): ")

	line, err := s.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("failed to read answer: %w", err)
	}
	answer, ok := resolveAnswer(line, options)
	return answer, ok, nil
}

// resolveAnswer maps an option number to its option and passes free text
// through. Empty input and "q" decline.
func resolveAnswer(line string, options []string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.EqualFold(line, "q") {
		return "", false
	}
	if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return line, true
}
