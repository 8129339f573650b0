package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/intentgraph/intentgraph/internal/models"
	"github.com/intentgraph/intentgraph/internal/retrieval"
	"github.com/sony/gobreaker/v2"
)

const version = "1.0.0"

// HealthChecker is implemented by services that can report connectivity
type HealthChecker interface {
	TestConnection(ctx context.Context) error
}

// BreakerStater reports the oracle circuit state
type BreakerStater interface {
	State() gobreaker.State
}

// HealthHandler handles GET /health
type HealthHandler struct {
	oracle BreakerStater
	store  retrieval.Store
}

// NewHealthHandler accepts nil for either dependency
func NewHealthHandler(oracle BreakerStater, store retrieval.Store) *HealthHandler {
	return &HealthHandler{oracle: oracle, store: store}
}

// Health reports degraded (503) when the oracle circuit is open or the
// knowledge store is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.oracle != nil {
		state := h.oracle.State()
		checks["oracle"] = "circuit " + state.String()
		if state == gobreaker.StateOpen {
			overallStatus = "degraded"
		}
	} else {
		checks["oracle"] = "disabled"
	}

	if h.store != nil {
		if hc, ok := h.store.(HealthChecker); ok {
			if err := hc.TestConnection(ctx); err != nil {
				checks["knowledge"] = "unavailable: " + err.Error()
				overallStatus = "degraded"
			}
		}
		if _, failed := checks["knowledge"]; !failed {
			if n, err := h.store.Count(ctx); err != nil {
				checks["knowledge"] = "unavailable: " + err.Error()
				overallStatus = "degraded"
			} else {
				checks["knowledge"] = fmt.Sprintf("ok (%s, %d documents)", h.store.Name(), n)
			}
		}
	} else {
		checks["knowledge"] = "disabled"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
