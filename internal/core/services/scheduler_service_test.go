package services_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/SscSPs/currency_exchanger/internal/apperrors"
	"github.com/SscSPs/currency_exchanger/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewSchedulerService_InvalidSchedule(t *testing.T) {
	_, err := services.NewSchedulerService(new(MockIngestionService), "every day at noon", time.Minute, slog.Default())
	assert.Error(t, err)
}

func TestSchedulerService_NextRunIsDailyAtFivePastMidnightUTC(t *testing.T) {
	scheduler, err := services.NewSchedulerService(new(MockIngestionService), services.DefaultRefreshSchedule, time.Minute, nil)
	require.NoError(t, err)

	next := scheduler.NextRun()
	require.False(t, next.IsZero())
	assert.Equal(t, time.UTC, next.Location())
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Minute())
	assert.Equal(t, 0, next.Second())
}

func TestSchedulerService_RunOnce(t *testing.T) {
	ingestion := new(MockIngestionService)
	ingestion.On("FetchAndStore", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return hasDeadline
	})).Return(nil).Once()

	scheduler, err := services.NewSchedulerService(ingestion, services.DefaultRefreshSchedule, time.Minute, slog.Default())
	require.NoError(t, err)

	scheduler.RunOnce()

	ingestion.AssertExpectations(t)
}

func TestSchedulerService_RunOnceSwallowsFailure(t *testing.T) {
	ingestion := new(MockIngestionService)
	ingestion.On("FetchAndStore", mock.Anything).
		Return(errors.Join(apperrors.ErrFetchFailed, errors.New("provider down"))).Once()

	scheduler, err := services.NewSchedulerService(ingestion, services.DefaultRefreshSchedule, 0, slog.Default())
	require.NoError(t, err)

	assert.NotPanics(t, scheduler.RunOnce)
	ingestion.AssertExpectations(t)
}

func TestSchedulerService_FiresOnSchedule(t *testing.T) {
	fired := make(chan struct{}, 1)
	ingestion := new(MockIngestionService)
	ingestion.On("FetchAndStore", mock.Anything).
		Run(func(mock.Arguments) {
			select {
			case fired <- struct{}{}:
			default:
			}
		}).
		Return(nil)

	scheduler, err := services.NewSchedulerService(ingestion, "* * * * * *", time.Second, slog.Default())
	require.NoError(t, err)

	scheduler.Start()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled ingestion did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	scheduler.Stop(ctx)
}
