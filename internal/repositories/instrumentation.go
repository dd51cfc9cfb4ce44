package repositories

import (
	"errors"
	"time"

	"taskdesk/backend/internal/logger"
	"taskdesk/backend/internal/monitoring"
)

type instrumentation struct {
	entity  string
	log     logger.Logger
	metrics *monitoring.Metrics
}

func newInstrumentation(entity string, log logger.Logger, metrics *monitoring.Metrics) instrumentation {
	if log == nil {
		log = logger.Nop()
	}
	return instrumentation{
		entity:  entity,
		log:     log.WithFields(map[string]interface{}{"component": entity + "_store"}),
		metrics: metrics,
	}
}

// observe is deferred by every store method. Only persistence failures are
// logged; validation and not-found results are ordinary outcomes.
func (i instrumentation) observe(op string, start time.Time, errp *error) {
	err := *errp
	i.metrics.RecordStoreOperation(i.entity, op, start, err)

	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		i.log.Error("store operation failed", map[string]interface{}{
			"operation": op,
			"error":     storeErr.Error(),
		})
	}
}
