package httpx

import (
	"net/http"

	"github.com/nilesh65/CodeKonnect/internal/app"
	"github.com/nilesh65/CodeKonnect/internal/exec"
	"github.com/nilesh65/CodeKonnect/internal/ws"
	"github.com/nilesh65/CodeKonnect/pkg/metrics"
)

// NewRouter wires up all HTTP routes, middleware, and handlers
func NewRouter(cfg app.Config, hub *ws.Hub, piston *exec.Piston) http.Handler {
	mw := NewMiddleware(cfg)
	api := &RoomsAPI{Piston: piston}

	mux := http.NewServeMux()

	// Health / readiness / metrics
	mux.Handle("/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/readyz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(200) }))
	mux.Handle("/metrics", metrics.Handler())

	// WebSocket endpoint
	mux.Handle("/ws", http.HandlerFunc(hub.ServeWS))

	// Room + runtime endpoints
	mux.Handle("POST /api/rooms", http.HandlerFunc(api.Create))
	mux.Handle("GET /api/runtimes", http.HandlerFunc(api.Runtimes))

	// CORS applied globally
	return mw.Wrap(mux)
}
