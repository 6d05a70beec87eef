package broadcast

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/familyhub/internal/domain"
)

// heartbeat writes a heartbeat frame every interval until ctx is done or a
// write fails. Ticks are independent of relayed traffic.
func heartbeat(ctx context.Context, clock clockwork.Clock, interval time.Duration, write func(v any) error) error {
	ticker := clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return nil
			}
			if err := write(domain.NewHeartbeatFrame(clock.Now())); err != nil {
				return err
			}
		}
	}
}
