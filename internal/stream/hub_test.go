package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"candle-bin-lab/internal/domain"
)

func startHub(t *testing.T) (*Hub, string, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	server := httptest.NewServer(hub)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	return hub, wsURL, func() {
		server.Close()
		cancel()
	}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_BroadcastsAssessment(t *testing.T) {
	hub, url, stop := startHub(t)
	defer stop()

	conn := dial(t, url)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	a := domain.Assessment{Symbol: "BTCUSDT", Recommendation: domain.RecommendBuy}
	require.NoError(t, hub.Publish(context.Background(), a))

	msg := readMessage(t, conn)
	assert.Equal(t, MsgTypeAssessment, msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BUY", data["recommendation"])
}

func TestHub_ReplaysLastMessageToNewClient(t *testing.T) {
	hub, url, stop := startHub(t)
	defer stop()

	require.NoError(t, hub.Broadcast(context.Background(), MsgTypeStatus, "ready"))

	// The broadcast is processed asynchronously; retry until the replay arrives.
	var msg Message
	require.Eventually(t, func() bool {
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return false
		}
		return json.Unmarshal(data, &msg) == nil
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, MsgTypeStatus, msg.Type)
	assert.Equal(t, "ready", msg.Data)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, url, stop := startHub(t)
	defer stop()

	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_PublishHonoursContext(t *testing.T) {
	hub := NewHub(zerolog.Nop()) // not running, broadcast buffer fills up
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	for i := 0; i < 100 && err == nil; i++ {
		err = hub.Broadcast(ctx, MsgTypeStatus, i)
	}
	assert.ErrorIs(t, err, context.Canceled)
}
