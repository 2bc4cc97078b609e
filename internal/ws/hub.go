// Package ws implements the collaboration protocol: a hub relays
// join/leave, buffer edits, typing activity, language selection, and
// execution results between the members of a room.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nilesh65/CodeKonnect/internal/exec"
	"github.com/nilesh65/CodeKonnect/internal/session"
	"github.com/nilesh65/CodeKonnect/pkg/metrics"
)

// DefaultDebounce is the quiet period after which a sender's buffered
// edits are broadcast as a single codeUpdate.
const DefaultDebounce = 300 * time.Millisecond

type cmdKind int

const (
	cmdRegister cmdKind = iota
	cmdUnregister
	cmdEvent
	cmdFlush
	cmdResult
	cmdBusFrame
)

type command struct {
	kind   cmdKind
	c      *Client
	ev     Event
	roomID string
	frame  []byte
}

// Hub owns all room state mutation. Every inbound command is handled
// to completion on the Run loop before the next, so mutations to a
// room are strictly ordered by arrival; only executions run off-loop
// and re-enter through the same queue.
type Hub struct {
	log    *slog.Logger
	reg    *session.Registry
	runner exec.Runner
	bus    *Bus // nil disables cross-instance fanout

	id       string // instance id, tags bus frames
	debounce time.Duration

	cmds    chan command
	clients map[string]*Client // by connection id, loop-owned
	done    chan struct{}
	ctx     context.Context
}

// NewHub wires the hub to its registry, runner, and optional bus.
func NewHub(logger *slog.Logger, reg *session.Registry, runner exec.Runner, bus *Bus) *Hub {
	return &Hub{
		log:      logger,
		reg:      reg,
		runner:   runner,
		bus:      bus,
		id:       uuid.NewString(),
		debounce: DefaultDebounce,
		cmds:     make(chan command, 256),
		clients:  make(map[string]*Client),
		done:     make(chan struct{}),
	}
}

// SetDebounce overrides the edit debounce window. Call before Run.
func (h *Hub) SetDebounce(d time.Duration) { h.debounce = d }

// Run processes commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)

	if h.bus != nil {
		go h.bus.Subscribe(ctx, func(m BusMessage) {
			if m.Origin == h.id {
				return
			}
			h.enqueue(command{kind: cmdBusFrame, roomID: m.RoomID, frame: m.Frame})
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.cmds:
			h.handle(cmd)
		}
	}
}

func (h *Hub) enqueue(cmd command) {
	select {
	case h.cmds <- cmd:
	case <-h.done:
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		h.clients[cmd.c.id] = cmd.c
		metrics.ConnectionsActive.Inc()
	case cmdUnregister:
		h.disconnect(cmd.c)
	case cmdEvent:
		h.handleEvent(cmd.c, cmd.ev)
	case cmdFlush:
		h.flushEdit(cmd.c)
	case cmdResult:
		h.deliverResult(cmd.roomID, cmd.ev)
	case cmdBusFrame:
		h.deliver(cmd.roomID, cmd.frame, nil)
	}
}

func (h *Hub) handleEvent(c *Client, ev Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	if ev.Type == EventJoin {
		h.handleJoin(c, ev)
		return
	}

	// Room-scoped events from a connection that is not joined, or that
	// names a room the sender is not in, race in-flight leaves; drop.
	if c.state != stateJoined {
		return
	}
	if ev.RoomID != "" && ev.RoomID != c.roomID {
		return
	}

	switch ev.Type {
	case EventLeave:
		h.leave(c)
	case EventEdit:
		h.handleEdit(c, ev)
	case EventTyping:
		h.relay(c.roomID, Event{Type: EventTypingNotice, Identity: c.identity}, c)
	case EventLanguageChange:
		h.reg.SetLanguage(c.roomID, ev.Language)
		h.relay(c.roomID, Event{Type: EventLanguageUpdate, Language: ev.Language}, c)
	case EventExecute:
		h.handleExecute(c, ev)
	}
}

func (h *Hub) handleJoin(c *Client, ev Event) {
	if c.state == stateClosed {
		return
	}

	oldRoom := ""
	if c.state == stateJoined && c.roomID != ev.RoomID {
		oldRoom = c.roomID
		h.dropPending(c)
	}

	p, err := h.reg.Join(ev.RoomID, ev.Identity, c.id)
	if err != nil {
		// Rejected locally, never broadcast.
		h.send(c, Event{Type: EventError, Error: err.Error()})
		return
	}

	c.state = stateJoined
	c.roomID = p.RoomID
	c.identity = p.Identity
	h.log.Debug("room.join", "room", p.RoomID, "identity", p.Identity)

	if oldRoom != "" {
		h.broadcastPresence(oldRoom)
	}
	h.broadcastPresence(p.RoomID)

	// Sync the joiner's replica with the canonical room state.
	if buf, lang, ok := h.reg.Snapshot(p.RoomID); ok {
		if buf != "" {
			h.send(c, Event{Type: EventCodeUpdate, Code: buf})
		}
		h.send(c, Event{Type: EventLanguageUpdate, Language: lang})
	}
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))
}

// leave covers both the explicit leave event and a transport
// disconnect; the two must produce identical registry end-state.
func (h *Hub) leave(c *Client) {
	h.dropPending(c)
	roomID, ok := h.reg.Leave(c.id)
	c.state = stateClosed
	if !ok {
		return
	}
	h.log.Debug("room.leave", "room", roomID, "identity", c.identity)
	h.broadcastPresence(roomID)
	metrics.RoomsActive.Set(float64(h.reg.RoomCount()))
}

func (h *Hub) disconnect(c *Client) {
	if c.state == stateJoined {
		h.leave(c)
	} else {
		c.state = stateClosed
	}
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		close(c.out)
		metrics.ConnectionsActive.Dec()
	}
}

// handleEdit applies the edit to the canonical buffer at once, signals
// typing immediately, and defers the codeUpdate broadcast until the
// sender has been quiet for the debounce window.
func (h *Hub) handleEdit(c *Client, ev Event) {
	h.reg.SetBuffer(c.roomID, ev.Code)
	h.relay(c.roomID, Event{Type: EventTypingNotice, Identity: c.identity}, c)

	c.pending = ev.Code
	c.hasPending = true
	if c.timer == nil {
		c.timer = time.AfterFunc(h.debounce, func() {
			h.enqueue(command{kind: cmdFlush, c: c})
		})
	} else {
		c.timer.Stop()
		c.timer.Reset(h.debounce)
	}
}

func (h *Hub) flushEdit(c *Client) {
	if c.state != stateJoined || !c.hasPending {
		return
	}
	code := c.pending
	c.pending = ""
	c.hasPending = false
	h.relay(c.roomID, Event{Type: EventCodeUpdate, Code: code}, c)
}

func (h *Hub) dropPending(c *Client) {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = ""
	c.hasPending = false
}

// handleExecute runs the request off-loop so other rooms keep being
// serviced, and routes the result back through the command queue.
func (h *Hub) handleExecute(c *Client, ev Event) {
	roomID := c.roomID
	req := exec.Request{
		Language: ev.Language,
		Version:  ev.Version,
		Code:     ev.Code,
		Stdin:    ev.Stdin,
	}
	ctx := h.ctx
	go func() {
		start := time.Now()
		res, err := h.runner.Run(ctx, req)
		metrics.ExecutionDuration.Observe(time.Since(start).Seconds())

		out := Event{Type: EventExecutionResult, Stdout: res.Stdout, Stderr: res.Stderr}
		if err != nil {
			out.Error = err.Error()
			metrics.ExecutionsTotal.WithLabelValues("error").Inc()
		} else {
			metrics.ExecutionsTotal.WithLabelValues("ok").Inc()
		}
		h.enqueue(command{kind: cmdResult, roomID: roomID, ev: out})
	}()
}

// deliverResult fans the result out to whoever is in the room by the
// time the execution finishes; an empty or deleted room is a no-op.
func (h *Hub) deliverResult(roomID string, ev Event) {
	if ev.Error != "" {
		h.log.Warn("exec.failed", "room", roomID, "err", ev.Error)
	}
	frame := ev.marshal()
	h.deliver(roomID, frame, nil)
	h.mirror(roomID, frame)
}

// broadcastPresence rebuilds the roster from the registry and sends it
// to every current member, never to sibling instances: membership is
// tracked per hub.
func (h *Hub) broadcastPresence(roomID string) {
	members := h.reg.MembersOf(roomID)
	if members == nil {
		return
	}
	h.deliver(roomID, Event{Type: EventPresenceUpdate, Members: members}.marshal(), nil)
}

// relay delivers to every member except the sender and mirrors the
// frame to sibling instances over the bus.
func (h *Hub) relay(roomID string, ev Event, sender *Client) {
	frame := ev.marshal()
	h.deliver(roomID, frame, sender)
	h.mirror(roomID, frame)
}

func (h *Hub) mirror(roomID string, frame []byte) {
	if h.bus == nil {
		return
	}
	_ = h.bus.Publish(h.ctx, BusMessage{Origin: h.id, RoomID: roomID, Frame: frame})
}

// deliver writes the frame to each member's outbound queue. A slow or
// stale recipient is skipped, never aborting the rest.
func (h *Hub) deliver(roomID string, frame []byte, exclude *Client) {
	for _, connID := range h.reg.Connections(roomID) {
		c := h.clients[connID]
		if c == nil || c == exclude {
			continue
		}
		h.push(c, frame)
	}
}

func (h *Hub) send(c *Client, ev Event) {
	h.push(c, ev.marshal())
}

func (h *Hub) push(c *Client, frame []byte) {
	select {
	case c.out <- frame:
	default:
		h.log.Warn("ws.drop", "conn", c.id, "identity", c.identity)
		metrics.DroppedFrames.Inc()
	}
}

// ServeWS handles a new /ws connection
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sock, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := newClient(uuid.NewString())
	h.enqueue(command{kind: cmdRegister, c: c})

	go writeLoop(ctx, sock, c.out)

	for {
		frame, ok := readFrame(ctx, sock)
		if !ok {
			break
		}
		ev, err := decodeEvent(frame)
		if err != nil {
			h.log.Debug("ws.bad_frame", "conn", c.id, "err", err)
			continue
		}
		h.enqueue(command{kind: cmdEvent, c: c, ev: ev})
	}

	// Transport closed without an explicit leave: identical cleanup.
	h.enqueue(command{kind: cmdUnregister, c: c})
	closeConn(sock)
}
