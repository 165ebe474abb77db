package mimic

import (
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
)

// retryFor calls do until it reports success or duration has passed, pausing
// delay between calls. do is told how much time is left.
func retryFor(do func(time.Duration) bool, delay, duration time.Duration) bool {
	if delay <= 0 {
		delay = defaultDelay
	}
	attempts := uint(duration/delay) + 1

	start := time.Now()
	err := retry.Do(func() error {
		timeLeft := duration - time.Since(start)
		if !do(timeLeft) {
			return errors.New("retry")
		}
		return nil
	},
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return err != nil && time.Since(start) <= duration
		}))
	return err == nil
}
