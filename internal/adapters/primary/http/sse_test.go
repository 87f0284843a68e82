package http

import (
	"bufio"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monaca/localkit/internal/domain/entities"
)

// openStream connects to /events with valid pairing headers and returns a
// scanner over the response body.
func (f *gatewayFixture) openStream(t *testing.T, clientIDHash, key string, meta string) (*bufio.Scanner, func()) {
	t.Helper()

	credential, err := f.codec.EncryptString(key, key)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/events", nil)
	require.NoError(t, err)
	req.Header.Set(clientIDHeader, clientIDHash)
	req.Header.Set(credentialHeader, credential)
	if meta != "" {
		info, err := f.codec.EncryptString(meta, key)
		require.NoError(t, err)
		req.Header.Set(clientInfoHeader, info)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	return bufio.NewScanner(resp.Body), func() { _ = resp.Body.Close() }
}

// nextMessage reads frames until one decodes to a push message.
func nextMessage(t *testing.T, f *gatewayFixture, scanner *bufio.Scanner, key string) entities.PushMessage {
	t.Helper()

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		return decodeFrame(t, f.codec, strings.TrimPrefix(line, "data: "), key)
	}
	t.Fatal("stream ended without a message")
	return entities.PushMessage{}
}

func TestGateway_EventStream(t *testing.T) {
	t.Run("rejects unpaired clients in plaintext", func(t *testing.T) {
		f := newGatewayFixture(t)

		resp, err := http.Get(f.ts.URL + "/events")
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("sends periodic keepalive frames", func(t *testing.T) {
		f := newGatewayFixture(t)
		key := f.pair(t, "H1")

		scanner, closeStream := f.openStream(t, "H1", key, "")
		defer closeStream()

		msg := nextMessage(t, f, scanner, key)
		assert.Equal(t, entities.MessageKeepalive, msg.Action)
	})

	t.Run("delivers broadcast file events", func(t *testing.T) {
		f := newGatewayFixture(t)
		key := f.pair(t, "H1")

		scanner, closeStream := f.openStream(t, "H1", key, "")
		defer closeStream()

		// Wait until the connection is registered before broadcasting.
		require.Eventually(t, func() bool {
			return f.server.Broadcaster().Count() == 1
		}, time.Second, 10*time.Millisecond)

		f.server.Broadcaster().BroadcastFileEvent(entities.FileEvent{
			ProjectID: f.project.ID,
			Type:      entities.ChangeCreate,
			Path:      "/a.txt",
			Content:   []byte("hello"),
			Hash:      "h",
		})

		for {
			msg := nextMessage(t, f, scanner, key)
			if msg.Action == entities.MessageKeepalive {
				continue
			}
			assert.Equal(t, entities.MessageFileSave, msg.Action)
			assert.Equal(t, "/a.txt", msg.Path)
			assert.Equal(t, "h", msg.Hash)
			break
		}
	})

	t.Run("disconnect raises the notification with client metadata", func(t *testing.T) {
		f := newGatewayFixture(t)
		key := f.pair(t, "H1")

		metaCh := make(chan map[string]any, 1)
		f.server.Broadcaster().OnDisconnect(func(meta map[string]any) { metaCh <- meta })

		scanner, closeStream := f.openStream(t, "H1", key, `{"deviceName":"Pixel"}`)
		require.Eventually(t, func() bool {
			return f.server.Broadcaster().Count() == 1
		}, time.Second, 10*time.Millisecond)

		// Consume one keepalive so the stream is demonstrably live, then
		// drop the connection from the client side.
		msg := nextMessage(t, f, scanner, key)
		assert.Equal(t, entities.MessageKeepalive, msg.Action)
		closeStream()

		select {
		case meta := <-metaCh:
			assert.Equal(t, "Pixel", meta["deviceName"])
			assert.Equal(t, "H1", meta["clientIdHash"])
		case <-time.After(2 * time.Second):
			t.Fatal("disconnect notification never fired")
		}

		require.Eventually(t, func() bool {
			return f.server.Broadcaster().Count() == 0
		}, time.Second, 10*time.Millisecond)
	})
}
