package events

import (
	"context"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/internal/estimate/upload"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/messaging"
)

// EventPublisher publishes one event; *messaging.Publisher satisfies it
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// Publisher turns lifecycle outcomes into broker events. Publish failures
// are logged and never reach the caller.
type Publisher struct {
	publisher EventPublisher
	logger    *logger.Logger
}

var _ upload.Notifier = (*Publisher)(nil)

// NewPublisher wraps p. A nil p yields a publisher that drops every event.
func NewPublisher(p EventPublisher, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{publisher: p, logger: log.WithComponent("events")}
}

// UploadSucceeded implements upload.Notifier
func (p *Publisher) UploadSucceeded(ctx context.Context, task upload.Task) {
	if task.Summary == nil {
		return
	}
	s := task.Summary
	p.publish(ctx, messaging.EventUploadSucceeded, messaging.UploadSucceededEvent{
		TaskID:             task.Token,
		EstimateID:         s.EstimateID,
		Filename:           filename(task),
		InterventionsFound: s.InterventionsFound,
		TotalCost:          s.TotalCost,
		OverallConfidence:  s.OverallConfidence,
		ProcessingTimeMs:   s.ProcessingTimeMs,
		RequiresReview:     s.RequiresReview(),
	})
}

// UploadFailed implements upload.Notifier
func (p *Publisher) UploadFailed(ctx context.Context, task upload.Task) {
	ev := messaging.UploadFailedEvent{
		TaskID:   task.Token,
		Filename: filename(task),
	}
	if f := task.Failure; f != nil {
		ev.Kind = string(f.Kind)
		ev.Code = f.Code
		ev.Message = f.Message
		ev.StatusCode = f.StatusCode
	}
	p.publish(ctx, messaging.EventUploadFailed, ev)
}

// EstimateDeleted announces a successful delete
func (p *Publisher) EstimateDeleted(ctx context.Context, result *domain.DeleteResult) {
	if result == nil || !result.Deleted {
		return
	}
	p.publish(ctx, messaging.EventEstimateDeleted, messaging.EstimateDeletedEvent{
		EstimateID: result.EstimateID,
		Message:    result.Message,
	})
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Warn().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

func filename(task upload.Task) string {
	if task.File == nil {
		return ""
	}
	return task.File.Name
}
