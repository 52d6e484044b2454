package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/nichedotsol/agentex/internal/catalog"
	"github.com/nichedotsol/agentex/internal/model"
)

// Generator produces an agent's source files from its validated spec and
// resolved tools. Implementations live outside this package.
type Generator interface {
	Generate(ctx context.Context, spec model.AgentSpec, tools []model.ToolSpec) ([]model.GeneratedFile, error)
}

// RunnerOptions configure a Runner.
type RunnerOptions struct {
	BaseURL       string        // prefix for result URLs
	JobTimeout    time.Duration // per-build generation deadline
	MaxConcurrent int           // concurrent generation jobs; 0 means unbounded
	EstimatedTime int           // seconds, reported to callers on enqueue
	Logger        *slog.Logger
}

// Runner drives builds from queued through generating to a terminal state.
// Jobs run on the runner's own context: a caller that stops polling does
// not cancel its build, but shutting the runner down cancels everything.
type Runner struct {
	store   Store
	gen     Generator
	catalog *catalog.Catalog
	opts    RunnerOptions

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted // nil when unbounded
	wg     sync.WaitGroup
}

// NewRunner returns a Runner ready to accept jobs.
func NewRunner(store Store, gen Generator, cat *catalog.Catalog, opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.EstimatedTime <= 0 {
		opts.EstimatedTime = 45
	}
	ctx, cancel := context.WithCancel(context.Background())
	var sem *semaphore.Weighted
	if opts.MaxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(opts.MaxConcurrent))
	}
	return &Runner{
		store:   store,
		gen:     gen,
		catalog: cat,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		sem:     sem,
	}
}

// EstimatedTime is the generation estimate in seconds reported on enqueue.
func (r *Runner) EstimatedTime() int { return r.opts.EstimatedTime }

// Launch starts generation for an already-created build in the background
// and returns immediately. When the concurrency cap is reached the job
// waits for a slot in its own goroutine, never in the caller.
func (r *Runner) Launch(id string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if r.sem != nil {
			// Acquire fails only when the runner is closing; the record
			// stays queued and the sweeper reclaims it.
			if err := r.sem.Acquire(r.ctx, 1); err != nil {
				return
			}
			defer r.sem.Release(1)
		}
		r.run(id)
	}()
}

// Close cancels all in-flight jobs and waits for them to finish.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

// run executes one generation job to a terminal state. Every failure mode,
// including a panic in the generator, ends in a failed record; a build is
// never left stuck in generating.
func (r *Runner) run(id string) {
	ctx, cancel := context.WithTimeout(r.ctx, r.opts.JobTimeout)
	defer cancel()

	logger := r.opts.Logger.With("build_id", id)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("generation panicked", "panic", rec)
			r.fail(ctx, id, fmt.Errorf("generation panicked: %v", rec))
		}
	}()

	b, err := r.store.Get(ctx, id)
	if err != nil {
		logger.Warn("build vanished before generation started", "error", err)
		return
	}
	if b.Config == nil {
		r.fail(ctx, id, errors.New("build has no config snapshot"))
		return
	}
	spec := *b.Config

	r.progress(ctx, id, model.BuildGenerating, 0)

	var tools []model.ToolSpec
	for _, toolID := range spec.Tools {
		tool, err := r.catalog.Resolve(toolID)
		if err != nil {
			r.fail(ctx, id, fmt.Errorf("resolve tool %q: %w", toolID, err))
			return
		}
		tools = append(tools, tool)
	}
	r.progress(ctx, id, model.BuildGenerating, 10)

	// Config assembly is folded into the generator; the milestone remains
	// so pollers see steady movement.
	r.progress(ctx, id, model.BuildGenerating, 20)

	files, err := r.gen.Generate(ctx, spec, tools)
	if err != nil {
		r.fail(ctx, id, err)
		return
	}
	r.progress(ctx, id, model.BuildGenerating, 40)
	r.progress(ctx, id, model.BuildGenerating, 60)

	result := &model.BuildResult{
		DownloadURL: fmt.Sprintf("%s/v2/download/%s", r.opts.BaseURL, id),
		PreviewURL:  fmt.Sprintf("%s/preview/%s", r.opts.BaseURL, id),
		SetupURL:    fmt.Sprintf("%s/setup/%s", r.opts.BaseURL, id),
		Files:       files,
	}
	r.progress(ctx, id, model.BuildGenerating, 80)

	_, err = r.store.Update(ctx, id, func(b *model.Build) {
		b.Status = model.BuildComplete
		b.Progress = 100
		b.Result = result
		b.Error = nil
	})
	if err != nil {
		// The record was swept mid-generation; nothing to report to.
		logger.Warn("completion dropped", "error", err)
		return
	}
	logger.Info("build complete", "files", len(files))
}

// progress advances status/progress. Progress never moves backwards even
// if ticks land out of order.
func (r *Runner) progress(ctx context.Context, id string, status model.BuildStatus, pct int) {
	_, err := r.store.Update(ctx, id, func(b *model.Build) {
		b.Status = status
		if pct > b.Progress {
			b.Progress = pct
		}
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		r.opts.Logger.Warn("progress update failed", "build_id", id, "error", err)
	}
}

// fail writes the terminal failed record. The write uses a context detached
// from the job so a cancelled or timed-out job can still be marked failed.
func (r *Runner) fail(ctx context.Context, id string, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_, err := r.store.Update(ctx, id, func(b *model.Build) {
		b.Status = model.BuildFailed
		b.Result = nil
		b.Error = &model.BuildError{
			Message:      cause.Error(),
			Code:         "GENERATION_ERROR",
			CanRetry:     true,
			SuggestedFix: "Check tool configurations and try again",
		}
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		r.opts.Logger.Error("failed to record generation failure", "build_id", id, "error", err)
	}
}

// RunSweeper deletes idle builds on a fixed interval until ctx is done.
func RunSweeper(ctx context.Context, store Store, interval, retention time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Sweep(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Error("build sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("swept idle builds", "removed", removed)
			}
		}
	}
}
