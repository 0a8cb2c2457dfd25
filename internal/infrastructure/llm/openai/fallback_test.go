package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstSuccessStopsAtFirstWinner(t *testing.T) {
	var called []string
	got, winner, err := FirstSuccess(context.Background(), []string{"A", "B", "C", "D"}, func(_ context.Context, c string) (string, error) {
		called = append(called, c)
		if c == "C" {
			return "result-C", nil
		}
		return "", errors.New(c + " failed")
	})

	require.NoError(t, err)
	assert.Equal(t, "result-C", got)
	assert.Equal(t, "C", winner)
	assert.Equal(t, []string{"A", "B", "C"}, called)
}

func TestFirstSuccessReturnsLastError(t *testing.T) {
	errC := errors.New("C failed")
	_, winner, err := FirstSuccess(context.Background(), []string{"A", "B", "C"}, func(_ context.Context, c string) (int, error) {
		if c == "C" {
			return 0, errC
		}
		return 0, errors.New(c + " failed")
	})

	require.ErrorIs(t, err, errC)
	assert.Empty(t, winner)
}

func TestFirstSuccessWithoutCandidates(t *testing.T) {
	_, _, err := FirstSuccess(context.Background(), nil, func(context.Context, string) (int, error) {
		t.Fatal("attempt must not be called")
		return 0, nil
	})
	require.ErrorIs(t, err, errNoCandidates)
}

func TestFirstSuccessStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, _, err := FirstSuccess(ctx, []string{"A", "B"}, func(context.Context, string) (int, error) {
		calls++
		cancel()
		return 0, context.Canceled
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
