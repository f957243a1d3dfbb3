package dualstore

import (
	"context"
	"time"

	"github.com/posrental/canteen_sdk_go/internal/metrics"
)

// remoteResult is the outcome of one remote attempt: a value, or the reason
// the remote store could not serve it.
type remoteResult[V any] struct {
	value V
	err   *RemoteUnavailableError
}

func (r remoteResult[V]) ok() bool {
	return r.err == nil
}

// attempt makes the single remote call of an operation under the engine's
// timeout. Every failure, whatever its cause, is folded into the result.
func attempt[V any](ctx context.Context, e *engine, online bool, op string, call func(context.Context) (V, error)) remoteResult[V] {
	if !online {
		return remoteResult[V]{err: &RemoteUnavailableError{Collection: e.name, Operation: op, Err: errOffline}}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	value, err := call(callCtx)
	e.metrics.RemoteDuration.WithLabelValues(e.name, op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.RemoteRequests.WithLabelValues(e.name, op, metrics.OutcomeUnavailable).Inc()
		return remoteResult[V]{err: &RemoteUnavailableError{Collection: e.name, Operation: op, Err: err}}
	}
	e.metrics.RemoteRequests.WithLabelValues(e.name, op, metrics.OutcomeOK).Inc()
	return remoteResult[V]{value: value}
}
