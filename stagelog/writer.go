package stagelog

import (
	"io"
	"os"
	"sync"

	"github.com/flashpack/corepack/segment"
)

// ErrClosed is returned by Write once the writer has been closed.
var ErrClosed = os.ErrClosed

// Writer serializes concurrent Write calls onto a single background
// goroutine that drains a request channel into the active segment, the
// same shape as the teacher's channel-plus-goroutine WAL writer.
type Writer struct {
	mu     sync.Mutex
	ch     chan *request
	done   chan struct{}
	closed bool
	sm     *segment.Manager
	wg     sync.WaitGroup
}

type request struct {
	entry *Entry
	done  chan error
}

// NewWriter starts the background goroutine and returns a Writer that
// appends entries to sm's active segment.
func NewWriter(buffer int, sm *segment.Manager) *Writer {
	w := &Writer{
		ch:   make(chan *request, buffer),
		done: make(chan struct{}),
		sm:   sm,
	}
	go w.loop()
	return w
}

// Write enqueues e and blocks until it has been encoded and synced.
func (w *Writer) Write(e *Entry) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	req := &request{entry: e, done: make(chan error, 1)}
	select {
	case w.ch <- req:
		return <-req.done
	case <-w.done:
		return ErrClosed
	}
}

// Close drains in-flight writes, stops the background goroutine, and
// closes the underlying segment manager.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.wg.Wait()
	close(w.ch)
	<-w.done
	return w.sm.Close()
}

func (w *Writer) loop() {
	defer close(w.done)

	for req := range w.ch {
		var encErr error
		err := w.sm.WriteActive(req.entry.Size(), func(sw io.Writer) {
			encErr = req.entry.Encode(sw)
		})
		if encErr != nil {
			req.done <- encErr
		} else {
			req.done <- err
		}
	}
}
