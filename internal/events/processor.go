// Package events runs the Effect Processor's worker pool (spec 4.E): once a
// dispatch releases the per-game mutex, everything that follows (wire
// broadcast, persistence, scheduled transitions) runs on these workers
// instead of blocking the caller.
package events

import (
	"sync"

	"github.com/decred/slog"
)

// Job is one unit of post-dispatch work for a single game. GameID is carried
// only for logging; Run does the actual work and must not panic.
type Job struct {
	GameID string
	Run    func()
}

// Processor is a fixed worker pool draining a bounded job queue, mirroring
// the reference's EventProcessor/eventWorker pair: Start/Stop are idempotent,
// and Submit drops the job (rather than blocking the game mutex holder) when
// the queue is full.
type Processor struct {
	log      slog.Logger
	queue    chan Job
	workers  int
	stopChan chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	started  bool
}

// NewProcessor creates a processor with the given queue depth and worker count.
func NewProcessor(log slog.Logger, queueSize, workerCount int) *Processor {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Processor{
		log:      log,
		queue:    make(chan Job, queueSize),
		workers:  workerCount,
		stopChan: make(chan struct{}),
	}
}

// Start launches the worker goroutines. Safe to call once; a second call is a no-op.
func (p *Processor) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop signals the workers to exit and blocks until every one has; a job
// already running finishes first, while jobs still queued may be left unrun.
func (p *Processor) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
}

// Submit enqueues a job. If the queue is full the job is dropped and logged
// rather than backpressuring the caller, which is always holding (or just
// released) a per-game mutex.
func (p *Processor) Submit(job Job) {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		p.log.Warnf("events: processor not started, dropping job for game %s", job.GameID)
		return
	}

	select {
	case p.queue <- job:
	default:
		p.log.Errorf("events: queue full, dropping job for game %s", job.GameID)
	}
}

func (p *Processor) run(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			return
		case job := <-p.queue:
			p.safeRun(id, job)
		}
	}
}

func (p *Processor) safeRun(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorf("events: worker %d recovered from panic running job for game %s: %v", id, job.GameID, r)
		}
	}()
	job.Run()
}
