package nats

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func natsURL() string {
	if u := os.Getenv("NATS_URL"); u != "" {
		return u
	}
	return "nats://127.0.0.1:4222"
}

func TestUnmarshalJSON(t *testing.T) {
	type event struct {
		Symbol string `json:"symbol"`
	}
	ev, err := UnmarshalJSON[event]([]byte(`{"symbol":"ES"}`))
	require.NoError(t, err)
	assert.Equal(t, "ES", ev.Symbol)

	_, err = UnmarshalJSON[event]([]byte(`{`))
	require.Error(t, err)
}

func TestPublishSubscribe(t *testing.T) {
	pub, err := NewPublisher(natsURL(), nil)
	if err != nil {
		t.Skipf("skipping test; nats not available: %v", err)
	}
	defer pub.Close()

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan struct{}, 1)
	sub, err := NewSubscriber(natsURL(), func(subject string, data []byte) error {
		mu.Lock()
		got = append(got, subject+" "+string(data))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, sub.SubscribeQueue("overnight.test", "q"))
	require.NoError(t, sub.conn.Flush())
	require.NoError(t, pub.Publish("overnight.test", map[string]string{"symbol": "ES"}))
	require.NoError(t, pub.Flush())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{`overnight.test {"symbol":"ES"}`}, got)
}
