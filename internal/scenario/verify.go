package scenario

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

const maxVerifyInterval = 2 * time.Second

// verifyEventually retries f until it succeeds or timeout elapses. Reads
// at final finality lag behind the calls the CLI just made.
func verifyEventually(ctx context.Context, timeout time.Duration, f func() error) error {
	bo := backoff.WithContext(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(250*time.Millisecond),
			backoff.WithMaxInterval(maxVerifyInterval),
			backoff.WithMaxElapsedTime(timeout),
		), ctx,
	)
	if err := backoff.Retry(f, bo); err != nil {
		if bo.NextBackOff() == backoff.Stop && ctx.Err() == nil {
			return errors.Wrap(err, "reached retry deadline")
		}
		return err
	}
	return nil
}
