package slots

import (
	"context"
	"time"
)

// keepAlive calls refresh every interval until stop is called. refresh
// reports whether the claim is still held; when it is not, lost runs once
// and the loop ends. A refresh error is retried on the next tick.
func keepAlive(interval time.Duration, refresh func(context.Context) (bool, error), lost func()) (stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			held, err := refresh(ctx)
			if err != nil {
				continue
			}
			if !held {
				if ctx.Err() == nil {
					lost()
				}
				return
			}
		}
	}()

	return cancel
}
