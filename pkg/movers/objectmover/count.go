package objectmover

import (
	"bytes"
	"io"
)

// recordCounter counts newline delimited records. A final record without a
// trailing newline still counts.
type recordCounter struct {
	newlines int64
	total    int64
	last     byte
}

func (c *recordCounter) observe(p []byte) {
	if len(p) == 0 {
		return
	}
	c.newlines += int64(bytes.Count(p, []byte{'\n'}))
	c.total += int64(len(p))
	c.last = p[len(p)-1]
}

func (c *recordCounter) records() int64 {
	if c.total == 0 {
		return 0
	}
	if c.last != '\n' {
		return c.newlines + 1
	}
	return c.newlines
}

type countingReader struct {
	r       io.Reader
	counter *recordCounter
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.counter.observe(p[:n])
	return n, err
}
