// Package logstream carries operator-facing output from background workers
// to whatever renders it: a thread-safe line queue plus file logging with
// periodic rotation.
package logstream

import (
	"fmt"
	"sync"
)

// Queue is an unbounded thread-safe FIFO of text lines. Workers push, the
// presentation side drains. There is no backpressure; output is human-paced,
// so the consumer is expected to keep up.
type Queue struct {
	mu    sync.Mutex
	lines []string
}

func NewQueue() *Queue {
	return &Queue{}
}

// Push appends one line.
func (q *Queue) Push(line string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.lines = append(q.lines, line)
}

// Pushf formats and appends one line.
func (q *Queue) Pushf(format string, args ...any) {
	q.Push(fmt.Sprintf(format, args...))
}

// Drain removes and returns every queued line, oldest first.
func (q *Queue) Drain() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.lines
	q.lines = nil
	return out
}

// Pop removes and returns the oldest line.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.lines) == 0 {
		return "", false
	}
	line := q.lines[0]
	q.lines = q.lines[1:]
	return line, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.lines)
}
