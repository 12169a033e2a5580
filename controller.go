package fetchlist

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ControllerTag is the tag the controller passes to its ErrorLogger.
const ControllerTag = "fetch-controller"

const flightKey = "fetch"

// OverlapPolicy decides what happens when Invoke is called while a fetch is in flight.
type OverlapPolicy string

const (
	// OverlapSupersede cancels the in-flight fetch; the newest call owns the state.
	OverlapSupersede OverlapPolicy = "supersede"

	// OverlapSingleFlight joins the new call onto the in-flight fetch.
	OverlapSingleFlight OverlapPolicy = "single-flight"
)

// ControllerConfig holds controller configuration options.
type ControllerConfig struct {
	// Logger for controller operations.
	// Default: slog.Default()
	Logger *slog.Logger

	// Overlap decides how overlapping Invoke calls interact.
	// Default: OverlapSupersede
	Overlap OverlapPolicy
}

// ControllerOption is a functional option for configuring the controller.
type ControllerOption func(*ControllerConfig)

// WithControllerLogger sets the logger for controller operations.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *ControllerConfig) {
		c.Logger = logger
	}
}

// WithOverlapPolicy sets how overlapping Invoke calls interact.
func WithOverlapPolicy(policy OverlapPolicy) ControllerOption {
	return func(c *ControllerConfig) {
		c.Overlap = policy
	}
}

// Controller runs fetches and owns the published FetchState.
//
// Each Invoke publishes Pending, fetches, transforms and publishes Ready, or logs the
// error once and publishes Failed carrying a retry bound to Invoke. A fetch whose
// context is cancelled publishes nothing after Pending.
type Controller struct {
	fetcher   ItemFetcher
	errLogger ErrorLogger
	logger    *slog.Logger
	policy    OverlapPolicy
	cell      *StateCell
	flight    singleflight.Group

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc

	sharedMu  sync.Mutex
	shared    *sharedFetch
	sharedSeq uint64
}

// sharedFetch is one single-flight fetch and the callers waiting on it.
// Its context outlives any one caller and is cancelled when the last caller leaves.
type sharedFetch struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	callers int
}

// NewController creates a controller in the Idle state.
//
// Example:
//
//	controller := fetchlist.NewController(
//	    fetchClient,
//	    fetchlist.NewSlogErrorLogger(logger),
//	    fetchlist.WithOverlapPolicy(fetchlist.OverlapSupersede),
//	)
//	go controller.Invoke(ctx)
func NewController(fetcher ItemFetcher, errLogger ErrorLogger, opts ...ControllerOption) *Controller {
	config := &ControllerConfig{
		Logger:  slog.Default(),
		Overlap: OverlapSupersede,
	}
	for _, opt := range opts {
		opt(config)
	}

	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if errLogger == nil {
		errLogger = NewSlogErrorLogger(config.Logger)
	}
	if config.Overlap != OverlapSingleFlight {
		config.Overlap = OverlapSupersede
	}

	return &Controller{
		fetcher:   fetcher,
		errLogger: errLogger,
		logger:    config.Logger,
		policy:    config.Overlap,
		cell:      NewStateCell(Idle{}),
	}
}

// State returns the current state.
func (c *Controller) State() FetchState {
	return c.cell.Load()
}

// Subscribe yields the current state and then every transition until ctx is done.
func (c *Controller) Subscribe(ctx context.Context) <-chan FetchState {
	return c.cell.Subscribe(ctx)
}

// Refresh starts Invoke on its own goroutine and returns at once.
func (c *Controller) Refresh(ctx context.Context) {
	go c.Invoke(ctx)
}

// Invoke runs one fetch and returns when it has concluded or ctx is done.
// A ctx that is already done leaves the state and any in-flight fetch untouched.
func (c *Controller) Invoke(ctx context.Context) {
	if ctx.Err() != nil {
		c.logger.Debug("invoke skipped, context already done", "error", ctx.Err())
		return
	}
	if c.policy == OverlapSingleFlight {
		c.join(ctx)
		return
	}
	c.run(ctx)
}

// join attaches the caller to the current shared fetch, starting one if needed.
// The fetch keeps running while at least one caller is still waiting on it.
func (c *Controller) join(ctx context.Context) {
	c.sharedMu.Lock()
	shared := c.shared
	if shared == nil {
		c.sharedSeq++
		sharedCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		shared = &sharedFetch{
			key:    flightKey + "-" + strconv.FormatUint(c.sharedSeq, 10),
			ctx:    sharedCtx,
			cancel: cancel,
		}
		c.shared = shared
	}
	shared.callers++
	c.sharedMu.Unlock()

	defer c.leave(shared)

	ch := c.flight.DoChan(shared.key, func() (any, error) {
		c.run(shared.ctx)
		c.sharedMu.Lock()
		if c.shared == shared {
			c.shared = nil
		}
		c.sharedMu.Unlock()
		return nil, nil
	})
	select {
	case <-ch:
	case <-ctx.Done():
	}
}

func (c *Controller) leave(shared *sharedFetch) {
	c.sharedMu.Lock()
	defer c.sharedMu.Unlock()
	shared.callers--
	if shared.callers > 0 {
		return
	}
	shared.cancel()
	if c.shared == shared {
		c.shared = nil
	}
}

func (c *Controller) run(ctx context.Context) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fetchID := uuid.NewString()

	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	generation := c.generation
	c.cancel = cancel
	c.cell.publish(Pending{FetchID: fetchID})
	c.mu.Unlock()

	c.logger.Debug("fetch started", "fetch_id", fetchID)

	next := c.fetch(fetchCtx, fetchID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		c.logger.Debug("fetch superseded", "fetch_id", fetchID)
		return
	}
	c.cancel = nil
	if next == nil {
		c.logger.Debug("fetch cancelled", "fetch_id", fetchID)
		return
	}
	c.cell.publish(next)
}

// fetch returns the terminal state of one fetch, or nil when ctx was cancelled.
func (c *Controller) fetch(ctx context.Context, fetchID string) FetchState {
	items, err := c.fetcher.FetchItems(ctx)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		c.errLogger.LogError(ControllerTag, failureMessage(err), err)
		return Failed{FetchID: fetchID, Err: err, Retry: c.Invoke}
	}

	groups := Transform(items)
	c.logger.Debug("fetch succeeded",
		"fetch_id", fetchID,
		"items", len(items),
		"groups", len(groups))
	return Ready{FetchID: fetchID, Groups: groups}
}

func failureMessage(err error) string {
	var transportErr *TransportError
	if errors.As(err, &transportErr) || isCircuitRejection(err) {
		return "network error"
	}
	return "error retrieving data"
}
