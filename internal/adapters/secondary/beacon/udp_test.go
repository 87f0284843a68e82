package beacon

import (
	"encoding/json"
	"errors"
	"net"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []*net.UDPAddr
	payloads [][]byte
	failFor  string
}

func (r *recordingSender) send(addr *net.UDPAddr, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if addr.IP.String() == r.failFor {
		return errors.New("network unreachable")
	}
	r.sent = append(r.sent, addr)
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingSender) addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.sent))
	for i, a := range r.sent {
		out[i] = a.IP.String()
	}
	return out
}

func testBeacon(sender *recordingSender, port int, ips ...net.IP) *Beacon {
	return New(Options{
		Interval:    time.Hour, // ticks are driven manually in tests
		DestPort:    8001,
		Name:        "test-server",
		ServerID:    "srv-1",
		UserHash:    "u-hash",
		GatewayPort: func() int { return port },
		Send:        sender.send,
		Broadcasts:  func() []net.IP { return ips },
	})
}

func TestBeacon_Tick(t *testing.T) {
	t.Run("announces on every broadcast address", func(t *testing.T) {
		sender := &recordingSender{}
		b := testBeacon(sender, 8080,
			net.IPv4(192, 168, 1, 255),
			net.IPv4(10, 0, 0, 255),
			net.IPv4bcast,
		)

		b.Tick()

		assert.Equal(t, []string{"192.168.1.255", "10.0.0.255", "255.255.255.255"}, sender.addresses())
	})

	t.Run("packet content", func(t *testing.T) {
		sender := &recordingSender{}
		b := testBeacon(sender, 8080, net.IPv4bcast)

		b.Tick()

		require.Len(t, sender.payloads, 1)
		var pkt Packet
		require.NoError(t, json.Unmarshal(sender.payloads[0], &pkt))

		assert.Equal(t, "localkit", pkt.Type)
		assert.Equal(t, 8080, pkt.Port)
		assert.Equal(t, runtime.GOOS, pkt.OS)
		assert.Equal(t, "test-server", pkt.Name)
		assert.Equal(t, "srv-1", pkt.ServerID)
		assert.Equal(t, "u-hash", pkt.UserHash)
		assert.Equal(t, ProtocolVersion, pkt.Version)
	})

	t.Run("one failed interface does not stop the rest", func(t *testing.T) {
		sender := &recordingSender{failFor: "192.168.1.255"}
		b := testBeacon(sender, 8080,
			net.IPv4(192, 168, 1, 255),
			net.IPv4(10, 0, 0, 255),
			net.IPv4bcast,
		)

		b.Tick()

		assert.Equal(t, []string{"10.0.0.255", "255.255.255.255"}, sender.addresses())
	})

	t.Run("skips while the gateway port is unknown", func(t *testing.T) {
		sender := &recordingSender{}
		b := testBeacon(sender, 0, net.IPv4bcast)

		b.Tick()

		assert.Empty(t, sender.sent)
	})
}

func TestBeacon_StartStop(t *testing.T) {
	sender := &recordingSender{}
	b := testBeacon(sender, 8080, net.IPv4bcast)

	assert.False(t, b.IsRunning())
	assert.True(t, b.Start())
	assert.True(t, b.IsRunning())

	// Second Start reports already running.
	assert.False(t, b.Start())

	// The first announcement goes out immediately.
	require.Eventually(t, func() bool {
		return len(sender.addresses()) >= 1
	}, time.Second, 10*time.Millisecond)

	b.Stop()
	assert.False(t, b.IsRunning())

	// Stop is idempotent.
	b.Stop()

	// Restart works.
	assert.True(t, b.Start())
	b.Stop()
}

func TestBroadcastAddresses(t *testing.T) {
	addrs := BroadcastAddresses()

	// The universal broadcast address is always the fallback entry.
	require.NotEmpty(t, addrs)
	assert.True(t, addrs[len(addrs)-1].Equal(net.IPv4bcast))

	for _, ip := range addrs {
		assert.NotNil(t, ip.To4())
	}
}
