package health

import (
	"context"
	"fmt"
	"time"

	consumer "gitlab.com/apiario/colmeia.server/src/production/COL.AlertConsumer"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoPinger is satisfied by *mongo.Client
type MongoPinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// ConsumerStatus is satisfied by *consumer.AlertConsumer
type ConsumerStatus interface {
	State() consumer.State
}

// Check is the outcome of one dependency check
type Check struct {
	Status string `json:"status"`
	State  string `json:"state,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Status is the readiness report
type Status struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks"`
}

// Healthy reports whether every check passed
func (s Status) Healthy() bool {
	return s.Status == "ok"
}

// HealthChecker provides health check functionality
type HealthChecker struct {
	mongo    MongoPinger
	consumer ConsumerStatus
	now      func() time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(mongo MongoPinger, consumer ConsumerStatus) *HealthChecker {
	return &HealthChecker{mongo: mongo, consumer: consumer, now: time.Now}
}

// PingMongo checks if the MongoDB primary is reachable
func (h *HealthChecker) PingMongo(ctx context.Context) error {
	if h.mongo == nil {
		return fmt.Errorf("mongo client is nil")
	}
	return h.mongo.Ping(ctx, readpref.Primary())
}

// GetHealthStatus returns the current health status
func (h *HealthChecker) GetHealthStatus(ctx context.Context) Status {
	status := Status{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]Check),
	}

	if err := h.PingMongo(ctx); err != nil {
		status.Checks["mongo"] = Check{Status: "error", Error: err.Error()}
		status.Status = "degraded"
	} else {
		status.Checks["mongo"] = Check{Status: "ok"}
	}

	state := consumer.StateDisconnected
	if h.consumer != nil {
		state = h.consumer.State()
	}
	if state == consumer.StateSubscribed {
		status.Checks["rabbitmq"] = Check{Status: "ok", State: state.String()}
	} else {
		status.Checks["rabbitmq"] = Check{Status: "error", State: state.String()}
		status.Status = "degraded"
	}

	return status
}
