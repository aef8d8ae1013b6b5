package events

import (
	"context"
	"errors"
	"testing"

	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/internal/estimate/upload"
	apperrors "github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/brakes/brakes-estimator/pkg/messaging"
	"github.com/brakes/brakes-estimator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadSucceeded(t *testing.T) {
	fake := testutil.NewMockPublisher()
	p := NewPublisher(fake, nil)

	p.UploadSucceeded(context.Background(), upload.Task{
		Token: "tok-1",
		File:  &upload.File{Name: "report.pdf"},
		State: upload.StateSucceeded,
		Summary: &domain.UploadResult{
			EstimateID:         "abc123",
			InterventionsFound: 5,
			TotalCost:          125000,
			OverallConfidence:  0.91,
			Metadata:           map[string]any{"requires_manual_review": true},
		},
	})

	require.Len(t, fake.PublishedEvents, 1)
	assert.Equal(t, messaging.EventUploadSucceeded, fake.PublishedEvents[0].Type)
	ev := fake.PublishedEvents[0].Payload.(messaging.UploadSucceededEvent)
	assert.Equal(t, "tok-1", ev.TaskID)
	assert.Equal(t, "abc123", ev.EstimateID)
	assert.Equal(t, "report.pdf", ev.Filename)
	assert.Equal(t, 5, ev.InterventionsFound)
	assert.True(t, ev.RequiresReview)
}

func TestUploadSucceeded_NoSummary(t *testing.T) {
	fake := testutil.NewMockPublisher()
	NewPublisher(fake, nil).UploadSucceeded(context.Background(), upload.Task{})
	fake.AssertNoEventsPublished(t)
}

func TestUploadFailed(t *testing.T) {
	fake := testutil.NewMockPublisher()
	p := NewPublisher(fake, nil)

	p.UploadFailed(context.Background(), upload.Task{
		Token:   "tok-2",
		File:    &upload.File{Name: "bad.pdf"},
		State:   upload.StateFailed,
		Failure: apperrors.Service(500, "Failed to process PDF"),
	})

	require.Len(t, fake.PublishedEvents, 1)
	assert.Equal(t, messaging.EventUploadFailed, fake.PublishedEvents[0].Type)
	ev := fake.PublishedEvents[0].Payload.(messaging.UploadFailedEvent)
	assert.Equal(t, "service", ev.Kind)
	assert.Equal(t, 500, ev.StatusCode)
	assert.Equal(t, "Failed to process PDF", ev.Message)
}

func TestEstimateDeleted(t *testing.T) {
	fake := testutil.NewMockPublisher()
	p := NewPublisher(fake, nil)

	p.EstimateDeleted(context.Background(), nil)
	p.EstimateDeleted(context.Background(), &domain.DeleteResult{Deleted: false, EstimateID: "x"})
	p.EstimateDeleted(context.Background(), &domain.DeleteResult{
		Success: true, Deleted: true, EstimateID: "abc123", Message: "Estimate abc123 deleted successfully",
	})

	require.Len(t, fake.PublishedEvents, 1)
	fake.AssertEventPublished(t, messaging.EventEstimateDeleted)
	ev := fake.PublishedEvents[0].Payload.(messaging.EstimateDeletedEvent)
	assert.Equal(t, "abc123", ev.EstimateID)
}

func TestPublishErrorsAreSwallowed(t *testing.T) {
	fake := testutil.NewMockPublisher()
	fake.Err = errors.New("broker down")
	p := NewPublisher(fake, nil)

	assert.NotPanics(t, func() {
		p.UploadFailed(context.Background(), upload.Task{Failure: apperrors.Unknown(nil)})
	})
	assert.Len(t, fake.PublishedEvents, 1)
}

func TestNilPublisherDropsEvents(t *testing.T) {
	p := NewPublisher(nil, nil)
	assert.NotPanics(t, func() {
		p.EstimateDeleted(context.Background(), &domain.DeleteResult{Deleted: true})
	})
}
