package upload

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/metrics"
	"github.com/google/uuid"
)

// ErrTransferActive is returned when a selection or start arrives mid-transfer
var ErrTransferActive = errors.New("TRANSFER_ACTIVE", "An upload is already in progress", http.StatusConflict).
	WithKind(errors.KindValidation)

// ErrNothingSelected is returned by Start when no valid file is selected
var ErrNothingSelected = errors.New("NOTHING_SELECTED", "Select a PDF file before starting the upload", http.StatusBadRequest).
	WithKind(errors.KindValidation)

// Uploader performs the transfer; *client.Client satisfies it
type Uploader interface {
	Upload(ctx context.Context, file client.UploadFile, progress client.ProgressFunc) (*domain.UploadResult, error)
}

// Notifier is told about terminal transitions
type Notifier interface {
	UploadSucceeded(ctx context.Context, task Task)
	UploadFailed(ctx context.Context, task Task)
}

// Listener observes every state change. Listeners run in transition order,
// outside the controller lock.
type Listener func(Task)

// DefaultNotifyTimeout bounds each Notifier call
const DefaultNotifyTimeout = 5 * time.Second

// Controller owns a single upload task. Every event is applied under one
// mutex, so transitions are atomic with respect to callers.
type Controller struct {
	uploader      Uploader
	notifier      Notifier
	notifyTimeout time.Duration
	metrics       *metrics.ClientMetrics
	logger        *logger.Logger

	mu        sync.Mutex
	task      Task
	cancel    context.CancelFunc
	done      chan struct{}
	listeners []Listener

	// pending holds transitions not yet delivered to observers; one
	// goroutine at a time drains it
	pending  []transition
	draining bool
}

type transition struct {
	prev, next Task
	settled    chan struct{}
}

type ControllerOption func(*Controller)

func WithNotifier(n Notifier) ControllerOption {
	return func(c *Controller) { c.notifier = n }
}

func WithMetrics(m *metrics.ClientMetrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithNotifyTimeout bounds each Notifier call; zero or less keeps the default
func WithNotifyTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.notifyTimeout = d
		}
	}
}

func WithLogger(log *logger.Logger) ControllerOption {
	return func(c *Controller) { c.logger = log.WithComponent("upload-controller") }
}

// NewController creates an idle controller using uploader for transfers
func NewController(uploader Uploader, opts ...ControllerOption) *Controller {
	c := &Controller{
		uploader:      uploader,
		notifyTimeout: DefaultNotifyTimeout,
		logger:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnChange registers a listener for state changes
func (c *Controller) OnChange(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Snapshot returns the current task
func (c *Controller) Snapshot() Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.task
}

// Select offers a file. A rejected file leaves the state unchanged and the
// reason is returned and recorded on the task.
func (c *Controller) Select(file File) error {
	c.mu.Lock()
	active := c.task.State.Active()
	c.mu.Unlock()
	if active {
		return ErrTransferActive
	}

	task := c.Dispatch(FileSelected{File: file})
	if task.ValidationReason != nil {
		return task.ValidationReason
	}
	if task.State != StateSelected {
		return ErrTransferActive
	}
	return nil
}

// Start begins transferring the selected file and returns the task token.
// Cancelling ctx abandons the transfer.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.task.State.Active() {
		c.mu.Unlock()
		return "", ErrTransferActive
	}
	if c.task.State != StateSelected || c.task.File == nil {
		c.mu.Unlock()
		return "", ErrNothingSelected
	}

	token := uuid.NewString()
	file := *c.task.File
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	prev := c.task
	c.task = Reduce(c.task, Started{Token: token})
	c.afterTransition(prev)

	go c.run(runCtx, token, file)
	return token, nil
}

// Reset abandons any in-flight transfer and returns to Idle
func (c *Controller) Reset() {
	c.Dispatch(Reset{})
}

// Wait blocks until the current transfer settles and its observers have
// been told, then returns the task
func (c *Controller) Wait(ctx context.Context) (Task, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return c.Snapshot(), nil
	}

	select {
	case <-done:
		return c.Snapshot(), nil
	case <-ctx.Done():
		return c.Snapshot(), ctx.Err()
	}
}

// Dispatch applies ev and returns the resulting task
func (c *Controller) Dispatch(ev Event) Task {
	c.mu.Lock()
	prev := c.task
	next := Reduce(prev, ev)
	c.task = next
	if _, ok := ev.(Reset); ok && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	return c.afterTransition(prev)
}

// afterTransition queues the transition for observers, releases mu and
// delivers queued transitions unless another goroutine already is.
// Callers hold mu.
func (c *Controller) afterTransition(prev Task) Task {
	next := c.task
	tr := transition{prev: prev, next: next}
	if prev.State.Active() && !next.State.Active() && c.done != nil {
		tr.settled = c.done
		if c.cancel != nil && next.State.Terminal() {
			c.cancel()
			c.cancel = nil
		}
	}
	c.pending = append(c.pending, tr)
	if c.draining {
		c.mu.Unlock()
		return next
	}

	c.draining = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		listeners := c.listeners
		c.mu.Unlock()
		for _, t := range batch {
			c.deliver(t, listeners)
		}
		c.mu.Lock()
	}
	c.draining = false
	c.mu.Unlock()
	return next
}

func (c *Controller) deliver(t transition, listeners []Listener) {
	if t.settled != nil {
		defer close(t.settled)
	}
	prev, next := t.prev, t.next
	if sameTask(prev, next) {
		return
	}
	if prev.State != next.State {
		c.metrics.ObserveTransition(next.State.String())
		c.logger.Debug().
			Str("task_id", next.Token).
			Str("from", prev.State.String()).
			Str("to", next.State.String()).
			Msg("upload state change")
	}
	for _, l := range listeners {
		l(next)
	}
	if c.notifier == nil || prev.State == next.State {
		return
	}
	switch next.State {
	case StateSucceeded, StateFailed:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.notifyTimeout)
	defer cancel()
	if next.State == StateSucceeded {
		c.notifier.UploadSucceeded(ctx, next)
	} else {
		c.notifier.UploadFailed(ctx, next)
	}
}

func (c *Controller) run(ctx context.Context, token string, file File) {
	log := c.logger.WithTaskID(token)

	if file.Open == nil {
		c.Dispatch(Failed{Token: token, Reason: errors.Validation("File content is not available", nil)})
		return
	}
	rc, err := file.Open()
	if err != nil {
		log.Error().Err(err).Str("file", file.Name).Msg("failed to open file for upload")
		c.Dispatch(Failed{Token: token, Reason: errors.Unknown(err)})
		return
	}
	defer rc.Close()

	c.Dispatch(Progressed{Token: token, Percent: 0})
	result, err := c.uploader.Upload(ctx, client.UploadFile{
		Name:   file.Name,
		Size:   file.Size,
		Reader: rc,
	}, func(sent, total int64) {
		c.Dispatch(Progressed{Token: token, Percent: Percent(sent, total)})
	})
	if err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("upload failed")
		c.Dispatch(Failed{Token: token, Reason: normalize(err)})
		return
	}
	if result == nil {
		c.Dispatch(Failed{Token: token, Reason: errors.Contract("Upload response was empty", nil)})
		return
	}

	log.Info().
		Str("estimate_id", result.EstimateID).
		Int("interventions_found", result.InterventionsFound).
		Msg("upload processed")
	c.Dispatch(Completed{Token: token, Summary: result})
}

func normalize(err error) *errors.AppError {
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errors.Unknown(err)
}

// ReaderFile wraps in-memory content as a File, mostly for tests and pipes
func ReaderFile(name, mediaType string, data []byte) File {
	return File{
		Name:      name,
		Size:      int64(len(data)),
		MediaType: mediaType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
