package queue

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the unit exchanged through a queue list. On the wire it is a
// JSON object with exactly jobClass, payload and retries; other fields are
// ignored on read.
type Envelope struct {
	JobClass string `json:"jobClass"`
	Payload  *Data  `json:"payload"`
	Retries  int    `json:"retries"`
}

func (e Envelope) Encode() ([]byte, error) {
	if e.Payload == nil {
		e.Payload = NewData()
	}
	return json.Marshal(e)
}

// DecodeEnvelope parses raw into an Envelope. Every validation failure
// wraps ErrMalformedEnvelope.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var wire struct {
		JobClass string          `json:"jobClass"`
		Payload  json.RawMessage `json:"payload"`
		Retries  int             `json:"retries"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if wire.JobClass == "" {
		return Envelope{}, fmt.Errorf("%w: missing jobClass", ErrMalformedEnvelope)
	}
	if wire.Retries < 0 {
		return Envelope{}, fmt.Errorf("%w: negative retries %d", ErrMalformedEnvelope, wire.Retries)
	}

	data := NewData()
	if p := bytes.TrimSpace(wire.Payload); len(p) > 0 && !bytes.Equal(p, []byte("null")) {
		if err := data.UnmarshalJSON(p); err != nil {
			return Envelope{}, fmt.Errorf("%w: payload: %v", ErrMalformedEnvelope, err)
		}
	}

	return Envelope{JobClass: wire.JobClass, Payload: data, Retries: wire.Retries}, nil
}
