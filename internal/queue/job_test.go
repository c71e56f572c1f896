package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeEncode(t *testing.T) {
	env := Envelope{
		JobClass: "echo",
		Payload:  NewData().Set("task", "x"),
		Retries:  2,
	}

	raw, err := env.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobClass":"echo","payload":{"task":"x"},"retries":2}`, string(raw))
}

func TestEnvelopeEncodeNilPayload(t *testing.T) {
	raw, err := Envelope{JobClass: "echo"}.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"jobClass":"echo","payload":{},"retries":0}`, string(raw))
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"payload":{"user_id":456},"retries":1,"jobClass":"echo","extra":"ignored"}`))
	require.NoError(t, err)

	assert.Equal(t, "echo", env.JobClass)
	assert.Equal(t, 1, env.Retries)
	id, ok := env.Payload.Int("user_id")
	assert.True(t, ok)
	assert.Equal(t, 456, id)
}

func TestDecodeEnvelopeMissingPayload(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"jobClass":"echo","retries":0}`))
	require.NoError(t, err)
	require.NotNil(t, env.Payload)
	assert.Zero(t, env.Payload.Len())

	env, err = DecodeEnvelope([]byte(`{"jobClass":"echo","payload":null}`))
	require.NoError(t, err)
	assert.Zero(t, env.Payload.Len())
}

func TestDecodeEnvelopeMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `nope`},
		{name: "missing class", raw: `{"payload":{},"retries":0}`},
		{name: "negative retries", raw: `{"jobClass":"echo","retries":-1}`},
		{name: "payload not object", raw: `{"jobClass":"echo","payload":[1]}`},
		{name: "retries not number", raw: `{"jobClass":"echo","retries":"1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeEnvelope([]byte(tt.raw))
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}
