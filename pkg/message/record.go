// Package message holds the records exchanged over a socket session and the
// append-only log that accumulates them.
package message

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// Direction tells whether a record was sent or received.
type Direction string

const (
	Outbound Direction = "outbound"
	Inbound  Direction = "inbound"
)

// Kind distinguishes text frames from binary frames.
type Kind string

const (
	KindText   Kind = "text"
	KindBinary Kind = "binary"
)

// Payload is a text or binary blob. The zero value is an empty text payload.
type Payload struct {
	kind Kind
	text string
	data []byte
}

// Text builds a text payload.
func Text(s string) Payload {
	return Payload{kind: KindText, text: s}
}

// Binary builds a binary payload. The bytes are copied.
func Binary(b []byte) Payload {
	return Payload{kind: KindBinary, data: bytes.Clone(b)}
}

func (p Payload) Kind() Kind {
	if p.kind == "" {
		return KindText
	}
	return p.kind
}

func (p Payload) IsBinary() bool { return p.kind == KindBinary }

// String returns the text content, or the raw bytes as a string for binary payloads.
func (p Payload) String() string {
	if p.IsBinary() {
		return string(p.data)
	}
	return p.text
}

// Bytes returns a copy of the payload content.
func (p Payload) Bytes() []byte {
	if p.IsBinary() {
		return bytes.Clone(p.data)
	}
	return []byte(p.text)
}

func (p Payload) Len() int {
	if p.IsBinary() {
		return len(p.data)
	}
	return len(p.text)
}

// Equal reports whether two payloads have the same kind and content.
func (p Payload) Equal(o Payload) bool {
	if p.Kind() != o.Kind() {
		return false
	}
	if p.IsBinary() {
		return bytes.Equal(p.data, o.data)
	}
	return p.text == o.text
}

// Record is one sent or received payload. Records are immutable.
type Record struct {
	id        string
	payload   Payload
	direction Direction
	timestamp time.Time
}

// NewRecord creates a record stamped with the given time.
func NewRecord(p Payload, dir Direction, at time.Time) Record {
	return Record{
		id:        uuid.NewString(),
		payload:   p,
		direction: dir,
		timestamp: at,
	}
}

func (r Record) ID() string { return r.id }
func (r Record) Payload() Payload { return r.payload }
func (r Record) Direction() Direction { return r.direction }
func (r Record) Timestamp() time.Time { return r.timestamp }
