package api

import (
	"context"
	"net/http"
	"time"

	"github.com/bookshelfapp/bookshelf-server/internal/http/response"
)

const healthProbeTimeout = 2 * time.Second

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// HealthResponse contains health check data.
type HealthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	db := s.checkDatabase(r.Context())
	body := HealthResponse{
		Status:     db.Status,
		Components: map[string]ComponentHealth{"database": db},
	}

	if db.Status != "healthy" {
		response.ServiceUnavailable(w, body, s.logger)
		return
	}
	response.Success(w, body, s.logger)
}

// checkDatabase verifies the sqlite store answers a ping.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.db == nil {
		return ComponentHealth{Status: "healthy", Message: "not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	start := time.Now()
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("health check: database ping failed", "error", err)
		return ComponentHealth{Status: "unhealthy", Message: "database unreachable"}
	}
	return ComponentHealth{Status: "healthy", Latency: time.Since(start).String()}
}
