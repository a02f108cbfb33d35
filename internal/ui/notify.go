package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// WriteNotifier reports dispatcher conditions to a writer, usually stderr.
type WriteNotifier struct {
	Out io.Writer

	mu sync.Mutex
}

func (n *WriteNotifier) write(prefix, format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.Out, prefix+format+"\n", args...)
}

// Info reports an informational condition.
func (n *WriteNotifier) Info(format string, args ...any) {
	n.write("", format, args...)
}

// Warn reports a warning.
func (n *WriteNotifier) Warn(format string, args ...any) {
	n.write("warning: ", format, args...)
}

// Error reports an error.
func (n *WriteNotifier) Error(format string, args ...any) {
	n.write("error: ", format, args...)
}

// EditorOpener opens files in the user's editor, attached to the terminal.
type EditorOpener struct {
	// Editor is the editor command. Empty falls back to $EDITOR, then vi.
	Editor string
}

// OpenFile runs the editor on path and waits for it to exit.
func (o *EditorOpener) OpenFile(path string) error {
	editor := o.Editor
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	cmd := exec.Command(editor, path)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
