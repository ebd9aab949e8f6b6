package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ftErrors "github.com/ajitpratap0/formtap/pkg/errors"
)

func fastPolicy(maxAttempts int) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestExecuteWithConditionStopsOnSuccess(t *testing.T) {
	var calls int
	err := fastPolicy(5).ExecuteWithCondition(context.Background(), func() error {
		calls++
		if calls < 3 {
			return ftErrors.New(ftErrors.ErrorTypeTimeout, "slow")
		}
		return nil
	}, ftErrors.IsTransportError)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithConditionExhaustsAttempts(t *testing.T) {
	var calls int
	err := fastPolicy(5).ExecuteWithCondition(context.Background(), func() error {
		calls++
		return ftErrors.New(ftErrors.ErrorTypeConnection, "refused")
	}, ftErrors.IsTransportError)

	require.Error(t, err)
	assert.Equal(t, 5, calls)
	assert.True(t, ftErrors.IsType(err, ftErrors.ErrorTypeConnection),
		"final error keeps its classification through the wrap")
}

func TestExecuteWithConditionRejectedErrorSurfacesImmediately(t *testing.T) {
	var calls int
	err := fastPolicy(5).ExecuteWithCondition(context.Background(), func() error {
		calls++
		return ftErrors.New(ftErrors.ErrorTypeUnauthorized, "bad credentials")
	}, ftErrors.IsTransportError)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, ftErrors.IsType(err, ftErrors.ErrorTypeUnauthorized))
}

func TestExecuteWithConditionHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int
	err := (&RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
	}).ExecuteWithCondition(ctx, func() error {
		calls++
		return ftErrors.New(ftErrors.ErrorTypeTimeout, "slow")
	}, ftErrors.IsTransportError)

	require.Error(t, err)
	assert.Equal(t, 1, calls, "cancelled context stops further attempts")
}

func TestGetDelayGrowsExponentially(t *testing.T) {
	p := &RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
	assert.Equal(t, time.Second, p.GetDelay(0))
	assert.Equal(t, 2*time.Second, p.GetDelay(1))
	assert.Equal(t, 4*time.Second, p.GetDelay(2))
}
