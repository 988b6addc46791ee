package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"northcart-payment-engine/models"
	"northcart-payment-engine/utils"
)

// Pinger is anything the health probe can check liveness on.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitorable reports whether the processor itself is reachable.
type Monitorable interface {
	Monitor(ctx context.Context) error
}

type HealthHandler struct {
	db        func() error
	redis     Pinger
	processor Monitorable
}

func NewHealthHandler(dbPing func() error, redis Pinger, proc Monitorable) *HealthHandler {
	return &HealthHandler{db: dbPing, redis: redis, processor: proc}
}

// HealthCheck probes the database, redis and the processor monitor
// endpoint. Degraded dependencies return 503 with per-check detail.
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{
		"database":  "ok",
		"redis":     "ok",
		"processor": "ok",
	}
	healthy := true

	if h.db != nil {
		if err := h.db(); err != nil {
			log.Printf("Health check: database unreachable: %v", err)
			checks["database"] = "unreachable"
			healthy = false
		}
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			log.Printf("Health check: redis unreachable: %v", err)
			checks["redis"] = "unreachable"
			healthy = false
		}
	}

	if h.processor != nil {
		if err := h.processor.Monitor(ctx); err != nil {
			log.Printf("Health check: processor monitor failed: %v", err)
			checks["processor"] = "unreachable"
			healthy = false
		}
	}

	response := models.APIResponse{
		Status:  "success",
		Message: "All systems operational",
		Data:    checks,
	}
	if !healthy {
		response.Status = "degraded"
		response.Message = "One or more dependencies are unavailable"
		sendJSON(w, http.StatusServiceUnavailable, response)
		return
	}

	utils.SendSuccessResponse(w, response)
}
