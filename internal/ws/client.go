package ws

import "time"

type clientState int

const (
	stateUnjoined clientState = iota
	stateJoined
	stateClosed // left or disconnected, terminal
)

// Client is the hub's handle on one connected user. Everything except
// the out channel is owned by the hub loop and must only be touched
// there.
type Client struct {
	id  string
	out chan []byte

	state    clientState
	roomID   string
	identity string

	// debounced buffer sync
	pending    string
	hasPending bool
	timer      *time.Timer
}

func newClient(id string) *Client {
	return &Client{id: id, out: make(chan []byte, 256)}
}
