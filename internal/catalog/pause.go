package catalog

import (
	"context"
	"time"
)

// Pauser blocks between two dependent catalog calls. It returns early with
// ctx.Err() when the context is done.
type Pauser func(ctx context.Context, d time.Duration) error

// Sleep is the production Pauser.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
