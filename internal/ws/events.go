package ws

import "encoding/json"

// EventType tags the JSON frames exchanged with clients.
type EventType string

const (
	// Client -> hub
	EventJoin           EventType = "join"
	EventLeave          EventType = "leave"
	EventEdit           EventType = "edit"
	EventTyping         EventType = "typing"
	EventLanguageChange EventType = "languageChange"
	EventExecute        EventType = "execute"

	// Hub -> client
	EventPresenceUpdate  EventType = "presenceUpdate"
	EventCodeUpdate      EventType = "codeUpdate"
	EventLanguageUpdate  EventType = "languageUpdate"
	EventTypingNotice    EventType = "typingNotice"
	EventExecutionResult EventType = "executionResult"
	EventError           EventType = "error"
)

// Event is the wire envelope, one flat struct for both directions.
type Event struct {
	Type     EventType `json:"type"`
	RoomID   string    `json:"roomId,omitempty"`
	Identity string    `json:"identity,omitempty"`
	Code     string    `json:"code,omitempty"`
	Language string    `json:"language,omitempty"`
	Version  string    `json:"version,omitempty"`
	Stdin    string    `json:"stdin,omitempty"`
	Members  []string  `json:"members,omitempty"`
	Stdout   string    `json:"stdout,omitempty"`
	Stderr   string    `json:"stderr,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func (e Event) marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

func decodeEvent(frame []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(frame, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
