package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ErrResultPending is returned by a ResultFetcher while only one player has
// submitted; the watcher keeps polling through it.
var ErrResultPending = errors.New("result not ready: waiting for the other player")

// ErrResultUnavailable ends the wait after the retry budget is spent.
var ErrResultUnavailable = errors.New("no result found for the game session")

// ResultFetcher is the slice of the REST surface the results screen needs.
type ResultFetcher interface {
	Result(ctx context.Context, sessionID string) (ResultReport, error)
}

// ResultsWatcher polls the authoritative result until both players'
// submissions are in. The other player may still be mid-stage when this
// player finishes, so pending responses and transient errors are retried on
// a fixed cadence.
type ResultsWatcher struct {
	API      ResultFetcher
	Logger   zerolog.Logger
	Interval time.Duration // default 3s
	Attempts int           // default 20
}

// Await blocks until the session's result is complete, the retry budget is
// spent, or ctx is done.
func (w ResultsWatcher) Await(ctx context.Context, sessionID string) (ResultReport, error) {
	interval := w.Interval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	attempts := w.Attempts
	if attempts <= 0 {
		attempts = 20
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ResultReport{}, ctx.Err()
			}
		}
		report, err := w.API.Result(ctx, sessionID)
		if err == nil {
			return report, nil
		}
		if ctx.Err() != nil {
			return ResultReport{}, ctx.Err()
		}
		lastErr = err
		if errors.Is(err, ErrResultPending) {
			w.Logger.Debug().Str("gameSessionId", sessionID).Int("attempt", i+1).Msg("waiting for the other player to finish")
			continue
		}
		w.Logger.Debug().Err(err).Str("gameSessionId", sessionID).Int("attempt", i+1).Msg("result fetch failed")
	}
	return ResultReport{}, fmt.Errorf("%w: %v", ErrResultUnavailable, lastErr)
}
