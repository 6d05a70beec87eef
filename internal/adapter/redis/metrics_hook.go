package redis

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

type metricsHook struct {
	m *metrics.RedisMetrics
}

var _ goredis.Hook = (*metricsHook)(nil)

func (h *metricsHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.m.ConnectionErrors.Inc()
		}
		return conn, err
	}
}

func (h *metricsHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.observe(cmd.Name(), err, time.Since(start))
		return err
	}
}

func (h *metricsHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		h.observe("pipeline", err, time.Since(start))
		return err
	}
}

func (h *metricsHook) observe(op string, err error, d time.Duration) {
	status := "success"
	if err != nil && !errors.Is(err, goredis.Nil) {
		status = "error"
	}
	h.m.OpsTotal.WithLabelValues(op, status).Inc()
	h.m.OpDuration.WithLabelValues(op).Observe(d.Seconds())
}
