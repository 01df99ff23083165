package pwdriver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pagebatch/pagebatch/api"
)

func launchOptions(ctx context.Context, opts *api.LaunchOptions) playwright.BrowserTypeLaunchOptions {
	lo := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
		Args:     opts.Args,
	}
	if opts.ExecutablePath != "" {
		lo.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if ms, ok := timeoutMs(ctx, opts.Timeout); ok {
		lo.Timeout = playwright.Float(ms)
	}

	return lo
}

// timeoutMs returns the smaller of fallback and the time left until ctx's
// deadline, in the milliseconds the driver takes. It returns false when
// neither bounds the call.
func timeoutMs(ctx context.Context, fallback time.Duration) (float64, bool) {
	d := fallback
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			// zero means no timeout to the driver.
			left = time.Millisecond
		}
		if d <= 0 || left < d {
			d = left
		}
	}
	if d <= 0 {
		return 0, false
	}

	return float64(d.Milliseconds()), true
}

// mapError marks the driver's timeouts as api.ErrTimeout.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", api.ErrTimeout, err)
	}
	return err
}
