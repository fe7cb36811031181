package ui

import (
	"bytes"
	"sync"
)

// LineWriter splits everything written to it into lines and hands each
// complete line to fn. It implements io.Writer.
type LineWriter struct {
	fn  func(line string)
	mu  *sync.Mutex
	buf []byte
}

// NewLineWriter creates a LineWriter. mu may be shared between writers that
// feed the same sink; nil gets a private mutex.
func NewLineWriter(fn func(line string), mu *sync.Mutex) *LineWriter {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	return &LineWriter{fn: fn, mu: mu}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buf = append(lw.buf, p...)
	for {
		idx := bytes.IndexByte(lw.buf, '\n')
		if idx == -1 {
			break
		}
		line := string(bytes.TrimRight(lw.buf[:idx], "\r"))
		lw.buf = lw.buf[idx+1:]
		if line != "" {
			lw.fn(line)
		}
	}
	return len(p), nil
}

// Flush hands over a trailing line that was not newline terminated.
func (lw *LineWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buf) > 0 {
		lw.fn(string(lw.buf))
		lw.buf = nil
	}
}
