package watcher

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType discriminates realtime events.
type EventType string

const (
	StateChange     EventType = "state_change"
	AccountsChanged EventType = "accounts_changed"
	BalanceChange   EventType = "balance_change"
	LimitsChange    EventType = "limits_change"
	ErrorEvent      EventType = "error"
)

// Known reports whether t is one of the event types the service sends.
func (t EventType) Known() bool {
	switch t {
	case StateChange, AccountsChanged, BalanceChange, LimitsChange, ErrorEvent:
		return true
	}

	return false
}

// Event is one decoded server message. Message is only set on ErrorEvent.
type Event struct {
	Type    EventType
	Message string
	Data    json.RawMessage
}

// Handler receives events in arrival order, on the connection's goroutine.
type Handler func(Event)

var errNoType = errors.New("watcher: event without type")

// wireEvent is the JSON shape of server messages. Errors carry their text in
// either "message" or "error".
type wireEvent struct {
	Type    EventType       `json:"type"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeEvent parses a server message.
func DecodeEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("watcher: decode event: %w", err)
	}
	if w.Type == "" {
		return Event{}, errNoType
	}

	msg := w.Message
	if msg == "" {
		msg = w.Error
	}

	return Event{Type: w.Type, Message: msg, Data: w.Data}, nil
}

// handshake is the first message sent on every socket.
type handshake struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

func connectMessage(token string) handshake {
	return handshake{Type: "connect", Token: token}
}
