package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/twbtools/twbdiff/internal/compare"
	"github.com/twbtools/twbdiff/internal/config"
	"github.com/twbtools/twbdiff/internal/registry"
	"github.com/twbtools/twbdiff/internal/sections"
	"github.com/twbtools/twbdiff/internal/workbook"
)

// Orchestrator manages the comparison worker pool.
type Orchestrator struct {
	runs  *RunStore
	queue chan *Run
	cmp   *compare.Comparator
	stats *RunStats
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pool; Start launches it.
func NewOrchestrator(cfg config.Config, cmp *compare.Comparator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		runs:  NewRunStore(cfg.RunTTL),
		queue: make(chan *Run, cfg.MaxQueueSize),
		cmp:   cmp,
		stats: NewRunStats(time.Hour),
		log:   log,
		cfg:   cfg,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			for {
				select {
				case <-workerCtx.Done():
					return
				case run, ok := <-o.queue:
					if !ok {
						return
					}
					o.process(run)
				}
			}
		}()
	}

	// Run store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.runs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pool.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new run for processing.
func (o *Orchestrator) Submit(run *Run) error {
	o.runs.Put(run)
	select {
	case o.queue <- run:
		return nil
	default:
		run.SetStatus(StatusFailed)
		run.AddError("run queue is full")
		return fmt.Errorf("run queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetRun returns a run by ID.
func (o *Orchestrator) GetRun(id string) *Run {
	return o.runs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Stats returns the latency aggregate for completed runs.
func (o *Orchestrator) Stats() *RunStats {
	return o.stats
}

// process executes one run end to end. An unparseable revision degrades to
// an empty tree and is recorded as a run error; the run only fails when
// neither revision parses.
func (o *Orchestrator) process(run *Run) {
	started := time.Now()
	log := o.log.With("run_id", run.ID)

	oldData, newData := run.payloads()

	run.SetStatus(StatusParsing)
	oldTree, oldErr := workbook.ParseBytes(oldData)
	if oldErr != nil {
		run.AddError("old revision: " + oldErr.Error())
		log.Warn("old revision failed to parse", "error", oldErr)
	}
	newTree, newErr := workbook.ParseBytes(newData)
	if newErr != nil {
		run.AddError("new revision: " + newErr.Error())
		log.Warn("new revision failed to parse", "error", newErr)
	}
	if oldErr != nil && newErr != nil {
		run.SetStatus(StatusFailed)
		return
	}

	run.SetStatus(StatusExtracting)
	oldSections := sections.Extract(oldTree, log)
	newSections := sections.Extract(newTree, log)

	run.SetStatus(StatusComparing)
	reg := registry.New()
	o.cmp.Run(oldSections, newSections, reg)

	run.SetResult(reg)
	run.SetStatus(StatusCompleted)

	elapsed := time.Since(started)
	o.stats.Record(elapsed.Milliseconds())
	log.Info("comparison completed",
		"duration_ms", elapsed.Milliseconds(),
		"counts", reg.Counts())
}
