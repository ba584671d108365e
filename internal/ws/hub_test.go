package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastsToSubscriber(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, time.Millisecond)

	hub.Publish([]byte("hello"))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))
}

func TestHubPublishWithNoSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub(8)
	assert.NotPanics(t, func() {
		hub.Publish([]byte("nobody listening"))
	})
}

func TestHubUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(8)
	server := httptest.NewServer(hub)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return hub.SubscriberCount() == 1
	}, time.Second, time.Millisecond)

	conn.Close()

	assert.Eventually(t, func() bool {
		return hub.SubscriberCount() == 0
	}, time.Second, time.Millisecond)
}
