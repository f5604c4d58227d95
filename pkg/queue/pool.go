// Package queue runs the background render poll workers. Rendering is
// provider-async: submitted segments are advanced by polling, and the pool is
// the only component doing that outside an explicit triggerRender refresh.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RenderPoller is the part of the video pipeline the pool drives.
type RenderPoller interface {
	ActiveVideoIDs(ctx context.Context) ([]string, error)
	PollOnce(ctx context.Context, videoID string) error
}

// WorkerPool scans for rendering videos and fans poll work out to workers.
// One video is never polled by two workers at once.
type WorkerPool struct {
	poller      RenderPoller
	interval    time.Duration
	workerCount int

	work     chan string
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	started  bool
}

// NewWorkerPool creates a pool of render poll workers.
func NewWorkerPool(poller RenderPoller, workerCount int, interval time.Duration) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &WorkerPool{
		poller:      poller,
		interval:    interval,
		workerCount: workerCount,
		work:        make(chan string),
		stopCh:      make(chan struct{}),
		inFlight:    make(map[string]struct{}),
	}
}

// Start spawns the scanner and worker goroutines. Safe to call more than
// once; subsequent calls are no-ops.
func (p *WorkerPool) Start(ctx context.Context) {
	if p.started {
		slog.Warn("render pool already started, ignoring duplicate Start call")
		return
	}
	p.started = true

	slog.Info("starting render poll pool",
		"worker_count", p.workerCount, "interval", p.interval)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx, i)
	}
	p.wg.Add(1)
	go p.runScanner(ctx)
}

// Stop signals all goroutines to stop and waits for in-flight polls to
// finish.
func (p *WorkerPool) Stop() {
	slog.Info("stopping render poll pool")
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
	slog.Info("render poll pool stopped")
}

// runScanner periodically lists rendering videos and dispatches the ones not
// already being polled.
func (p *WorkerPool) runScanner(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.dispatch(ctx)
		}
	}
}

func (p *WorkerPool) dispatch(ctx context.Context) {
	ids, err := p.poller.ActiveVideoIDs(ctx)
	if err != nil {
		slog.Error("failed to list rendering videos", "error", err)
		return
	}
	for _, id := range ids {
		if !p.claim(id) {
			continue
		}
		select {
		case p.work <- id:
		case <-p.stopCh:
			p.release(id)
			return
		case <-ctx.Done():
			p.release(id)
			return
		}
	}
}

func (p *WorkerPool) runWorker(ctx context.Context, n int) {
	defer p.wg.Done()

	log := slog.With("render_worker", n)
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case id := <-p.work:
			if err := p.poller.PollOnce(ctx, id); err != nil {
				log.Error("render poll failed", "video_id", id, "error", err)
			}
			p.release(id)
		}
	}
}

func (p *WorkerPool) claim(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[id]; busy {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *WorkerPool) release(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
