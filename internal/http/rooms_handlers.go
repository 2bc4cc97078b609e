package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/nilesh65/CodeKonnect/internal/exec"
)

type RoomsAPI struct {
	Piston *exec.Piston
}

type roomResp struct {
	RoomID string `json:"roomId"`
}

// Create mints a fresh room id. The room itself only comes into
// existence once the first participant joins it over the socket.
func (a *RoomsAPI) Create(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, roomResp{RoomID: uuid.NewString()})
}

// Runtimes proxies the execution service's language catalogue.
func (a *RoomsAPI) Runtimes(w http.ResponseWriter, r *http.Request) {
	rts, err := a.Piston.Runtimes(r.Context())
	if err != nil {
		http.Error(w, "runtimes unavailable", http.StatusBadGateway)
		return
	}
	writeJSON(w, rts)
}

// send JSON with proper headers
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
