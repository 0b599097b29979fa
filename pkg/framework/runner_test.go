package framework

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregatedError(t *testing.T) {
	var errs AggregatedError
	require.NoError(t, errs.Add(nil, nil).Aggregate())

	first := errors.New("first")
	errs.Add(first)
	require.Equal(t, "first", errs.Aggregate().Error())

	second := errors.New("second")
	err := errs.Add(second).Aggregate()
	require.Equal(t, "multiple errors:\nfirst\nsecond", err.Error())
	require.True(t, errors.Is(err, second))
	require.False(t, errors.Is(err, context.Canceled))
}

func TestRunnerStopsOthers(t *testing.T) {
	failure := errors.New("link lost")
	r := NewRunner()
	r.Go(NamedRun("blocking", RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})), RunFunc(func(ctx context.Context) error {
		return failure
	}))
	err := r.Wait()
	require.True(t, errors.Is(err, failure))
}

func TestRunnerStop(t *testing.T) {
	r := NewRunner()
	r.Go(RunFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	r.Stop()
	require.NoError(t, r.Wait())
}
