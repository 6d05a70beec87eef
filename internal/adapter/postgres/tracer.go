package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
)

type queryTracer struct {
	m *metrics.DBMetrics
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

type queryStartKey struct{}

type queryStart struct {
	at   time.Time
	name string
}

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{at: time.Now(), name: queryName(data.SQL)})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qs, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}

	t.m.QueryDuration.WithLabelValues(qs.name).Observe(time.Since(qs.at).Seconds())
	if data.Err != nil {
		t.m.ErrorsTotal.WithLabelValues(qs.name).Inc()
	}
}

// queryName keeps metric cardinality low by labelling with the leading SQL verb.
func queryName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
