package event

import (
	"context"
	"time"

	"github.com/DioGolang/FleetDispatch/pkg/metrics"
)

// WrapMetrics bounds each handler run by timeout and records its outcome.
func WrapMetrics(
	m metrics.Metrics,
	handlerName string,
	timeout time.Duration,
	next MessageHandler,
) MessageHandler {
	return func(ctx context.Context, msg []byte, headers map[string]interface{}) error {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := next(ctx, msg, headers)
		m.RecordUseCaseExecution(handlerName, err == nil, time.Since(start))
		return err
	}
}
