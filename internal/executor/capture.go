package executor

import (
	"bytes"
	"strings"
	"sync"
)

// tailBuffer is an io.Writer that retains only the last max lines written to
// it. Both stdout and stderr of a task stream into one tailBuffer, so it
// must tolerate concurrent writes.
type tailBuffer struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial bytes.Buffer
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

// Write implements io.Writer.
func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		b.push(strings.TrimRight(string(data[:i]), "\r"))
		b.partial.Next(i + 1)
	}
	return len(p), nil
}

// Tail returns the retained lines, including any unterminated final line.
func (b *tailBuffer) Tail() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := append([]string{}, b.lines...)
	if b.partial.Len() > 0 {
		out = append(out, b.partial.String())
		if len(out) > b.max {
			out = out[len(out)-b.max:]
		}
	}
	return out
}

// push appends one complete line, evicting the oldest beyond max.
// Callers must hold b.mu.
func (b *tailBuffer) push(line string) {
	b.lines = append(b.lines, line)
	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}
}
