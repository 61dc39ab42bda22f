package notify

import (
	"fmt"
	"io"
	"sync"
)

// Log is an append-only sink of human readable lines.
type Log interface {
	Append(line string)
}

// MemoryLog keeps every appended line in order.
type MemoryLog struct {
	mu    sync.RWMutex
	lines []string
}

// NewMemoryLog creates an empty in-memory log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{lines: make([]string, 0, 16)}
}

// Append records a line.
func (l *MemoryLog) Append(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Lines returns a copy of the recorded lines.
func (l *MemoryLog) Lines() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	copied := make([]string, len(l.lines))
	copy(copied, l.lines)
	return copied
}

// WriterLog writes each line, newline terminated, to an io.Writer.
type WriterLog struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterLog wraps w as a Log.
func NewWriterLog(w io.Writer) *WriterLog {
	return &WriterLog{w: w}
}

// Append writes the line. Write failures are ignored, the sink has no error path.
func (l *WriterLog) Append(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintln(l.w, line)
}
