package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("brokers are required", func(t *testing.T) {
		_, err := New(Config{Brokers: "  "})
		assert.Error(t, err)
	})

	t.Run("leader acks build a client", func(t *testing.T) {
		p, err := New(Config{Brokers: "localhost:9092", Acks: "1"})
		require.NoError(t, err)
		t.Cleanup(p.client.Close)
		assert.NotNil(t, p.Client())
	})
}

func TestMessageRecord(t *testing.T) {
	msg := &Message{
		Topic:   "vc-delivery",
		Key:     []byte("session-1"),
		Value:   []byte("{}"),
		Headers: map[string]string{"kind": "credential"},
	}

	r := msg.record()

	assert.Equal(t, "vc-delivery", r.Topic)
	assert.Equal(t, []byte("session-1"), r.Key)
	require.Len(t, r.Headers, 1)
	assert.Equal(t, "kind", r.Headers[0].Key)
	assert.Equal(t, []byte("credential"), r.Headers[0].Value)
}
