package pipeline

import (
	"context"
	"sync"

	"github.com/meterwise/costops/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker fans submitted events out to a fixed pool of pipeline goroutines.
type Worker struct {
	pipeline *Pipeline
	tasks    chan models.IngestEvent
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// NewWorker starts poolSize goroutines draining a buffer of bufferSize.
func NewWorker(p *Pipeline, poolSize, bufferSize int) *Worker {
	w := &Worker{
		pipeline: p,
		tasks:    make(chan models.IngestEvent, bufferSize),
		stopped:  make(chan struct{}),
	}

	for i := 0; i < poolSize; i++ {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit queues one event for asynchronous processing. When the buffer is
// full the event is dropped with a warning rather than blocking ingestion.
func (w *Worker) Submit(event models.IngestEvent) bool {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] Pipeline stopped, cannot submit event", event.RequestID)
		return false
	default:
	}

	select {
	case w.tasks <- event:
		return true
	default:
		fiberlog.Warnf("[%s] Ingestion buffer full, dropping event", event.RequestID)
		return false
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	for event := range w.tasks {
		if _, err := w.pipeline.Process(context.Background(), event); err != nil {
			fiberlog.Errorf("[%s] Failed to process usage event: %v", event.RequestID, err)
		}
	}
}

// Stop shuts the pool down: new submissions are rejected, the buffer is
// drained, and every in-flight event finishes before Stop returns. Callers
// must stop producing first; the server shuts its listener down before
// stopping the pool.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		close(w.tasks)
		w.wg.Wait()
	})
}
