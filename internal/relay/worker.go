package relay

import (
	"context"
	"log"
	"sync"
	"time"

	"syncBoard/internal/metrics"
)

// Job is a side effect the hub hands off so that fan-out never waits on
// storage. Droppable jobs may be shed when the worker falls behind; room
// lifecycle jobs are never droppable.
type Job struct {
	Name      string
	Run       func(ctx context.Context) error
	Droppable bool
}

// Worker runs jobs one at a time in the order they were queued. Each job
// gets its own timeout. Failures are logged and counted.
//
// The pending list is unbounded. At most queue droppable jobs wait at once.
type Worker struct {
	timeout time.Duration
	queue   int

	mu        sync.Mutex
	pending   []Job
	droppable int
	closed    bool
	notify    chan struct{}

	wg        sync.WaitGroup
	startOnce sync.Once
}

func NewWorker(queue int, timeout time.Duration) *Worker {
	return &Worker{
		timeout: timeout,
		queue:   queue,
		notify:  make(chan struct{}, 1),
	}
}

func (w *Worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(1)
		go w.loop()
	})
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		job, ok := w.next()
		if !ok {
			return
		}
		w.run(job)
	}
}

// next blocks until a job is pending. It reports false once the worker is
// closed and drained.
func (w *Worker) next() (Job, bool) {
	for {
		w.mu.Lock()
		if len(w.pending) > 0 {
			job := w.pending[0]
			w.pending[0] = Job{}
			w.pending = w.pending[1:]
			if job.Droppable {
				w.droppable--
			}
			w.mu.Unlock()
			return job, true
		}
		closed := w.closed
		w.mu.Unlock()
		if closed {
			return Job{}, false
		}
		<-w.notify
	}
}

func (w *Worker) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if err := job.Run(ctx); err != nil {
		log.Printf("Worker.run - %s failed: %v", job.Name, err)
		metrics.LifecycleJobs.WithLabelValues(job.Name, "failed").Inc()
		return
	}
	metrics.LifecycleJobs.WithLabelValues(job.Name, "ok").Inc()
}

// Enqueue never blocks. It reports false when a droppable job was shed or
// the worker is closed.
func (w *Worker) Enqueue(job Job) bool {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		log.Printf("Worker.Enqueue - worker closed, dropping %s", job.Name)
		metrics.LifecycleJobs.WithLabelValues(job.Name, "dropped").Inc()
		return false
	}
	if job.Droppable {
		if w.droppable >= w.queue {
			w.mu.Unlock()
			log.Printf("Worker.Enqueue - queue full, dropping %s", job.Name)
			metrics.LifecycleJobs.WithLabelValues(job.Name, "dropped").Inc()
			return false
		}
		w.droppable++
	}
	w.pending = append(w.pending, job)
	w.mu.Unlock()

	select {
	case w.notify <- struct{}{}:
	default:
	}
	return true
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	select {
	case w.notify <- struct{}{}:
	default:
	}
	w.wg.Wait()
}
