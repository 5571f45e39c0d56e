package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter fans log lines out to every sink from a single goroutine.
// Lines queued back to back are flushed together.
type asyncWriter struct {
	lines   chan []byte
	flushes chan chan error
	closed  chan struct{}
	stop    sync.Once

	out *bufio.Writer

	mu  sync.Mutex
	err error
}

func newAsyncWriter(writers []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	sinks := make([]io.Writer, 0, len(writers))
	for _, w := range writers {
		if w != nil {
			sinks = append(sinks, w)
		}
	}
	w := &asyncWriter{
		lines:   make(chan []byte, 256),
		flushes: make(chan chan error),
		closed:  make(chan struct{}),
		out:     bufio.NewWriterSize(io.MultiWriter(sinks...), bufSize),
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.closed)
	for {
		select {
		case line, ok := <-w.lines:
			if !ok {
				w.fail(w.out.Flush())
				return
			}
			w.fail(w.write(line))
			if len(w.lines) == 0 {
				w.fail(w.out.Flush())
			}
		case ack := <-w.flushes:
			ack <- w.out.Flush()
		}
	}
}

func (w *asyncWriter) write(line []byte) error {
	if len(line) == 0 {
		return nil
	}
	_, err := w.out.Write(line)
	return err
}

// Write copies p and queues it; it blocks only while the queue is full.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.firstErr(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.lines <- append([]byte(nil), p...)
	return nil
}

// Flush returns once every line queued before the call reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.firstErr(); err != nil {
		return err
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.closed:
		return w.firstErr()
	}
}

// Close drains the queue and returns the first write error.
func (w *asyncWriter) Close() error {
	w.stop.Do(func() { close(w.lines) })
	<-w.closed
	return w.firstErr()
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	w.err = errors.Join(w.err, err)
	w.mu.Unlock()
}

func (w *asyncWriter) firstErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
