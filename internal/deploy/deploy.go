// Package deploy ships completed builds to hosting platforms.
//
// Dispatch validates preconditions synchronously and returns a ticket; the
// platform call runs in the background on the dispatcher's own context.
// The background path always ends with a structured write to the build
// record: success fills result.deploy_url/deploy_id, failure fills
// result.deploy_error. It never fails silently.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nichedotsol/agentex/internal/build"
	"github.com/nichedotsol/agentex/internal/model"
)

// ErrNotComplete is returned when deploying a build that has not reached
// complete. The wrapping error names the current status.
var ErrNotComplete = errors.New("deploy: build not complete")

// ErrMissingFields is returned when the request lacks a build id, platform,
// or API key.
var ErrMissingFields = errors.New("deploy: missing required fields")

// Platform identifiers with first-class support.
const (
	PlatformVercel = "vercel"
	PlatformGitHub = "github"
)

// Estimated deploy durations in seconds, reported on the ticket.
const (
	estimateVercel = 120
	estimateOther  = 180
)

// Options configure a Dispatcher. The platform base URLs exist so tests can
// point the clients at a local server.
type Options struct {
	BaseURL       string // for ticket status URLs
	VercelBaseURL string // default https://api.vercel.com
	GitHubBaseURL string // default https://api.github.com
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Dispatcher runs deployments against hosting platforms and writes the
// outcome back into the build store.
type Dispatcher struct {
	store  build.Store
	opts   Options
	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher returns a Dispatcher ready for use.
func NewDispatcher(store build.Store, opts Options) *Dispatcher {
	if opts.VercelBaseURL == "" {
		opts.VercelBaseURL = "https://api.vercel.com"
	}
	if opts.GitHubBaseURL == "" {
		opts.GitHubBaseURL = "https://api.github.com"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		store:  store,
		opts:   opts,
		client: client,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Close cancels in-flight deployments and waits for their terminal writes.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

// Dispatch checks preconditions, returns a deploying ticket immediately,
// and continues in the background. Possible errors: ErrMissingFields,
// build.ErrNotFound, ErrNotComplete.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.DeployRequest) (model.DeployResponse, error) {
	if req.BuildID == "" || req.Platform == "" || req.Credentials.APIKey == "" {
		return model.DeployResponse{}, fmt.Errorf("%w: build_id, platform, credentials.api_key", ErrMissingFields)
	}

	b, err := d.store.Get(ctx, req.BuildID)
	if err != nil {
		return model.DeployResponse{}, err
	}
	if b.Status != model.BuildComplete {
		return model.DeployResponse{}, fmt.Errorf("%w: current status %q", ErrNotComplete, b.Status)
	}

	deployID := model.NewDeployID()
	estimate := estimateOther
	if req.Platform == PlatformVercel {
		estimate = estimateVercel
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(deployID, req)
	}()

	return model.DeployResponse{
		DeployID:      deployID,
		Status:        "deploying",
		EstimatedTime: estimate,
		StatusURL:     fmt.Sprintf("%s/v2/status/%s", d.opts.BaseURL, req.BuildID),
	}, nil
}

// run executes one deployment to a terminal write.
func (d *Dispatcher) run(deployID string, req model.DeployRequest) {
	ctx, cancel := context.WithTimeout(d.ctx, 5*time.Minute)
	defer cancel()

	logger := d.opts.Logger.With("build_id", req.BuildID, "deploy_id", deployID, "platform", req.Platform)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("deployment panicked", "panic", rec)
			d.writeFailure(ctx, req.BuildID, fmt.Sprintf("deployment panicked: %v", rec), "DEPLOY_PANIC", false)
		}
	}()

	b, err := d.store.Get(ctx, req.BuildID)
	if err != nil || b.Result == nil {
		logger.Warn("build vanished before deployment started", "error", err)
		return
	}

	projectName := req.ProjectName
	if projectName == "" {
		if b.Config != nil && b.Config.Name != "" {
			projectName = b.Config.Name
		} else {
			projectName = "agentex-agent"
		}
	}

	var deployURL string
	switch req.Platform {
	case PlatformVercel:
		deployURL, err = d.deployVercel(ctx, projectName, b.Result.Files, req.Credentials.APIKey, req.Environment)
	case PlatformGitHub:
		deployURL, err = d.deployGitHub(ctx, projectName, b.Result.Files, req.Credentials.APIKey)
	default:
		err = fmt.Errorf("platform %q not yet supported (supported: vercel, github)", req.Platform)
		logger.Warn("unsupported platform requested")
		d.writeFailure(ctx, req.BuildID, err.Error(), "UNSUPPORTED_PLATFORM", false)
		return
	}
	if err != nil {
		logger.Error("deployment failed", "error", err)
		d.writeFailure(ctx, req.BuildID, err.Error(), "PLATFORM_ERROR", true)
		return
	}

	_, err = d.store.Update(ctx, req.BuildID, func(b *model.Build) {
		if b.Result == nil {
			b.Result = &model.BuildResult{}
		}
		b.Result.DeployURL = deployURL
		b.Result.DeployID = deployID
		b.Result.DeployError = nil
	})
	if err != nil {
		logger.Warn("deploy result dropped", "error", err)
		return
	}
	logger.Info("deployment complete", "url", deployURL)
}

// writeFailure records a deploy error without disturbing the build's
// terminal complete status. Uses a detached context so a cancelled job can
// still write its outcome.
func (d *Dispatcher) writeFailure(ctx context.Context, buildID, message, code string, canRetry bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	_, err := d.store.Update(ctx, buildID, func(b *model.Build) {
		if b.Result == nil {
			b.Result = &model.BuildResult{}
		}
		b.Result.DeployError = &model.DeployError{
			Message:  message,
			Code:     code,
			CanRetry: canRetry,
		}
	})
	if err != nil && !errors.Is(err, build.ErrNotFound) {
		d.opts.Logger.Error("failed to record deploy failure", "build_id", buildID, "error", err)
	}
}
