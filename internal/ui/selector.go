// Package ui provides the terminal-facing capabilities the dispatcher is
// parameterized over: selectors, the streaming output sink, the notifier
// and the file opener.
package ui

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// PlainSelector prompts with a numbered list on plain stdio. Useful for
// dumb terminals and scripting.
type PlainSelector struct {
	In  io.Reader
	Out io.Writer

	// One buffered reader for the selector's lifetime. A fresh reader per
	// prompt would read ahead and swallow input meant for the next prompt.
	r *bufio.Reader
}

func (s *PlainSelector) reader() *bufio.Reader {
	if s.r == nil {
		s.r = bufio.NewReader(s.In)
	}
	return s.r
}

// Select prints the items and reads one choice. An empty line, "q" or an
// unparsable answer declines.
func (s *PlainSelector) Select(items []string, label string) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	fmt.Fprintf(s.Out, "%s:\n", label)
	for i, item := range items {
		fmt.Fprintf(s.Out, "  %d) %s\n", i+1, item)
	}
	fmt.Fprint(s.Out, "> ")

	line, err := s.reader().ReadString('\n')
	if err != nil && line == "" {
		return "", false
	}
	answer := strings.TrimSpace(line)
	if answer == "" || answer == "q" {
		return "", false
	}

	if n, err := strconv.Atoi(answer); err == nil {
		if n < 1 || n > len(items) {
			return "", false
		}
		return items[n-1], true
	}

	// A literal item name also counts.
	for _, item := range items {
		if item == answer {
			return item, true
		}
	}
	return "", false
}
