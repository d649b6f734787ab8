package downloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dyfav/pkg/aweme"
	"dyfav/pkg/logger"
	"dyfav/pkg/materializer"
)

// DownloadJob represents a single item to materialize
type DownloadJob struct {
	// Index is the item's position in the collection
	Index int
	Item  aweme.Item
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Result   materializer.Result
	WorkerID int
	Duration time.Duration
}

// ItemProcessor materializes one item
type ItemProcessor interface {
	Materialize(ctx context.Context, item aweme.Item) materializer.Result
}

// WorkerPool manages concurrent download workers. Results must be drained
// by the caller until the channel is closed by Stop.
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	processor   ItemProcessor
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool bound to ctx
func NewWorkerPool(ctx context.Context, numWorkers int, processor ItemProcessor, log logger.Logger) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan DownloadResult, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		processor:   processor,
		logger:      log,
	}
}

// Start initializes and starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the job queue, waits for the workers and closes the results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("Worker pool stopped")
}

// Submit adds a new job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.resultQueue <- wp.processJob(job, id)
	}
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job, WorkerID: workerID}

	// Queued jobs are not started once the run is cancelled.
	if err := wp.ctx.Err(); err != nil {
		result.Result = materializer.Result{
			ItemID: job.Item.ID,
			Status: materializer.StatusFailed,
			Err:    err,
		}
		return result
	}

	result.Result = wp.processor.Materialize(wp.ctx, job.Item)
	result.Duration = time.Since(start)

	wp.logger.DebugWithFields("Worker finished item", map[string]interface{}{
		"worker_id": workerID,
		"aweme_id":  job.Item.ID,
		"status":    string(result.Result.Status),
		"duration":  result.Duration,
	})
	return result
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}

// Run materializes items with numWorkers workers and returns the results in
// item order. onResult, when set, is called for each result as it arrives.
func Run(ctx context.Context, items []aweme.Item, numWorkers int, processor ItemProcessor, log logger.Logger, onResult func(DownloadResult)) []materializer.Result {
	wp := NewWorkerPool(ctx, numWorkers, processor, log)
	wp.Start()

	go func() {
		defer wp.Stop()
		for i, item := range items {
			if err := wp.Submit(DownloadJob{Index: i, Item: item}); err != nil {
				return
			}
		}
	}()

	results := make([]materializer.Result, len(items))
	seen := make([]bool, len(items))
	for r := range wp.Results() {
		results[r.Job.Index] = r.Result
		seen[r.Job.Index] = true
		if onResult != nil {
			onResult(r)
		}
	}

	// Items never submitted because the run was cancelled.
	for i, ok := range seen {
		if !ok {
			results[i] = materializer.Result{
				ItemID: items[i].ID,
				Status: materializer.StatusFailed,
				Err:    context.Cause(ctx),
			}
		}
	}
	return results
}
