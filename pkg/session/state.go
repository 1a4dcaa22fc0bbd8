// Package session is the connection-and-message core of the socket panel.
// A Controller owns the connection phase of one socket, the log of messages
// exchanged over it and the outgoing item the user is composing, and
// reports every change to subscribers.
package session

import (
	"bytes"
	"errors"
	"slices"

	"github.com/tinyland-inc/wspanel/pkg/message"
)

var (
	// ErrEmptyURL is returned by Connect when the address is blank.
	ErrEmptyURL = errors.New("enter a socket address first")
	// ErrInvalidState is returned when sending while not connected.
	ErrInvalidState = errors.New("session is not connected")
	// ErrNothingToSend is returned when no message or file is staged.
	ErrNothingToSend = errors.New("nothing to send")
	// ErrClosed is returned by operations on a closed Controller.
	ErrClosed = errors.New("session closed")
)

// Phase is the connection lifecycle state. Exactly one holds at a time.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
	PhaseRetrying
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	case PhaseRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}

// File is a staged binary upload.
type File struct {
	Name string
	Data []byte
}

func (f File) clone() File {
	return File{Name: f.Name, Data: bytes.Clone(f.Data)}
}

// State is a point-in-time copy of everything a presentation layer renders.
type State struct {
	URL             string
	ConnectDisabled bool

	Phase Phase
	// Connecting is false once an error arrives for the pending attempt,
	// even though Phase stays PhaseConnecting until the socket resolves.
	Connecting    bool
	Connected     bool
	Retrying      bool
	AutoReconnect bool

	Messages           message.Log
	Message            string
	MessageSendEnabled bool
	File               *File
	HasFile            bool

	Suggestions     []string
	SuggestionsOpen bool

	LastError string
}

// Field names one observable part of the session.
type Field string

const (
	FieldURL                Field = "url"
	FieldConnectDisabled    Field = "connectDisabled"
	FieldPhase              Field = "phase"
	FieldConnecting         Field = "connecting"
	FieldConnected          Field = "connected"
	FieldRetrying           Field = "retrying"
	FieldAutoReconnect      Field = "autoReconnect"
	FieldMessages           Field = "messages"
	FieldMessage            Field = "message"
	FieldMessageSendEnabled Field = "messageSendEnabled"
	FieldFile               Field = "file"
	FieldHasFile            Field = "hasFile"
	FieldSuggestions        Field = "suggestions"
	FieldSuggestionsOpen    Field = "suggestionsOpen"

	// EventEmptyAddress asks the user to enter an address.
	EventEmptyAddress Field = "emptyAddress"
	// EventError carries socket or send error text in Change.Text.
	EventError Field = "error"
)

// Change is delivered to subscribers after a mutation. State is the full
// state right after the change.
type Change struct {
	Field Field
	State State
	Text  string
}

// diff lists the fields that differ between two states, in a fixed order.
func diff(before, after State) []Field {
	var fields []Field
	add := func(changed bool, f Field) {
		if changed {
			fields = append(fields, f)
		}
	}
	add(before.URL != after.URL, FieldURL)
	add(before.ConnectDisabled != after.ConnectDisabled, FieldConnectDisabled)
	add(before.Phase != after.Phase, FieldPhase)
	add(before.Connecting != after.Connecting, FieldConnecting)
	add(before.Connected != after.Connected, FieldConnected)
	add(before.Retrying != after.Retrying, FieldRetrying)
	add(before.AutoReconnect != after.AutoReconnect, FieldAutoReconnect)
	add(before.Messages.Len() != after.Messages.Len(), FieldMessages)
	add(before.Message != after.Message, FieldMessage)
	add(before.MessageSendEnabled != after.MessageSendEnabled, FieldMessageSendEnabled)
	add(!sameFile(before.File, after.File), FieldFile)
	add(before.HasFile != after.HasFile, FieldHasFile)
	add(!slices.Equal(before.Suggestions, after.Suggestions), FieldSuggestions)
	add(before.SuggestionsOpen != after.SuggestionsOpen, FieldSuggestionsOpen)
	return fields
}

func sameFile(a, b *File) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Name == b.Name && bytes.Equal(a.Data, b.Data)
}
