package openai

import (
	"context"
	"errors"
	"log/slog"
)

var errNoCandidates = errors.New("no candidate models configured")

// FirstSuccess tries candidates in order and returns the first successful
// result together with the candidate that produced it. When every candidate
// fails the last candidate's error is returned. Remaining candidates are
// skipped once ctx is done.
func FirstSuccess[T any](
	ctx context.Context,
	candidates []string,
	attempt func(ctx context.Context, candidate string) (T, error),
) (T, string, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, "", errNoCandidates
	}

	var lastErr error
	for idx, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				lastErr = err
			}
			return zero, "", lastErr
		}

		result, err := attempt(ctx, candidate)
		if err == nil {
			return result, candidate, nil
		}
		lastErr = err
		slog.Warn("model_attempt_failed",
			"model", candidate,
			"attempt", idx+1,
			"candidates", len(candidates),
			"error", err,
		)
	}
	return zero, "", lastErr
}
