package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"
)

// QueryObserver receives one call per finished query.
type QueryObserver interface {
	ObserveQuery(operation string, duration time.Duration, err error)
}

// MetricsTracer implements pgx.QueryTracer and reports query timings.
type MetricsTracer struct {
	observer QueryObserver
	clock    clockwork.Clock
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(observer QueryObserver, clock clockwork.Clock) *MetricsTracer {
	return &MetricsTracer{observer: observer, clock: clock}
}

type queryContextKey struct{}

type queryContext struct {
	start     time.Time
	operation string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryContextKey{}, queryContext{
		start:     t.clock.Now(),
		operation: operationName(data.SQL),
	})
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}
	t.observer.ObserveQuery(qctx.operation, t.clock.Since(qctx.start), data.Err)
}

// operationName keeps label cardinality low: the leading SQL keyword only.
func operationName(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
