// Package session holds the in-memory state shared by a room's
// participants: who is joined, the canonical code buffer, and the
// selected execution language.
package session

import (
	"errors"
	"sync"
)

// ErrInvalidInput is returned by Join for an empty room id or identity.
var ErrInvalidInput = errors.New("session: room id and identity must be non-empty")

// DefaultLanguage is the language a fresh room starts with.
const DefaultLanguage = "javascript"

// Participant is one connected user inside a room. Identities are
// display names and may repeat within a room.
type Participant struct {
	Identity string
	ConnID   string
	RoomID   string
}

// Room is the canonical copy of a collaborative session. Buffer and
// Language are last-write-wins; members keep join order.
type Room struct {
	ID       string
	members  []*Participant
	Buffer   string
	Language string
}

// Registry maps room ids to rooms and connection ids to participants.
// A room exists iff it has at least one member.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	conns map[string]*Participant
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		conns: make(map[string]*Participant),
	}
}

// Join adds a participant to a room, creating the room if needed.
// A connection already in a room is moved out of it first, so a
// connection is never in two rooms at once.
func (r *Registry) Join(roomID, identity, connID string) (*Participant, error) {
	if roomID == "" || identity == "" {
		return nil, ErrInvalidInput
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[connID]; ok {
		r.removeLocked(prev)
	}

	rm := r.rooms[roomID]
	if rm == nil {
		rm = &Room{ID: roomID, Language: DefaultLanguage}
		r.rooms[roomID] = rm
	}

	p := &Participant{Identity: identity, ConnID: connID, RoomID: roomID}
	rm.members = append(rm.members, p)
	r.conns[connID] = p
	return p, nil
}

// Leave removes the participant owning connID from its room, deleting
// the room when it empties. Idempotent: an unknown connection returns
// ok=false with no other effect.
func (r *Registry) Leave(connID string) (roomID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, found := r.conns[connID]
	if !found {
		return "", false
	}
	r.removeLocked(p)
	return p.RoomID, true
}

func (r *Registry) removeLocked(p *Participant) {
	delete(r.conns, p.ConnID)
	rm := r.rooms[p.RoomID]
	if rm == nil {
		return
	}
	for i, m := range rm.members {
		if m == p {
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}
	if len(rm.members) == 0 {
		delete(r.rooms, rm.ID)
	}
}

// SetBuffer overwrites the canonical buffer. A missing room is a
// silent no-op: an edit racing a disconnect is expected, not an error.
func (r *Registry) SetBuffer(roomID, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm := r.rooms[roomID]; rm != nil {
		rm.Buffer = text
	}
}

// SetLanguage overwrites the room language, no-op on a missing room.
func (r *Registry) SetLanguage(roomID, lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm := r.rooms[roomID]; rm != nil {
		rm.Language = lang
	}
}

// MembersOf returns the identities currently in the room, in join
// order. The slice is a fresh copy.
func (r *Registry) MembersOf(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[roomID]
	if rm == nil {
		return nil
	}
	out := make([]string, len(rm.members))
	for i, m := range rm.members {
		out[i] = m.Identity
	}
	return out
}

// Connections returns the connection ids of the room's members in
// join order.
func (r *Registry) Connections(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[roomID]
	if rm == nil {
		return nil
	}
	out := make([]string, len(rm.members))
	for i, m := range rm.members {
		out[i] = m.ConnID
	}
	return out
}

// Participant returns the participant owning connID, if any.
func (r *Registry) Participant(connID string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.conns[connID]
	return p, ok
}

// Snapshot reads the current buffer and language of a room.
func (r *Registry) Snapshot(roomID string) (buffer, language string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm := r.rooms[roomID]
	if rm == nil {
		return "", "", false
	}
	return rm.Buffer, rm.Language, true
}

// RoomCount reports how many rooms currently exist.
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
