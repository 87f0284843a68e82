// Package beacon periodically broadcasts a UDP announcement so debugger
// clients on the same subnet can locate the API gateway without prior
// configuration.
package beacon

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"runtime"
	"sync"
	"time"
)

// ProtocolVersion is the discovery protocol version advertised in every
// datagram.
const ProtocolVersion = "2.0.0"

// Packet is the JSON payload of one announcement datagram.
type Packet struct {
	Type     string `json:"type"`
	Port     int    `json:"port"`
	OS       string `json:"os"`
	Name     string `json:"name"`
	ServerID string `json:"serverId"`
	UserHash string `json:"userHash"`
	Version  string `json:"version"`
}

// PortFunc reports the gateway's current listening port, or 0 while it is
// not listening.
type PortFunc func() int

// SendFunc delivers one datagram to the given broadcast address. Replaced
// in tests.
type SendFunc func(addr *net.UDPAddr, payload []byte) error

// Beacon broadcasts gateway announcements on a fixed interval.
type Beacon struct {
	interval    time.Duration
	destPort    int
	name        string
	serverID    string
	userHash    string
	gatewayPort PortFunc
	send        SendFunc
	broadcasts  func() []net.IP
	logger      *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// Options configures a Beacon.
type Options struct {
	// Interval between announcement ticks.
	Interval time.Duration
	// DestPort is the UDP port debugger clients listen on.
	DestPort int
	// Name is the human-readable server name.
	Name string
	// ServerID identifies this machine to clients.
	ServerID string
	// UserHash is the hash of the logged-in account identifier.
	UserHash string
	// GatewayPort reports the API gateway's listening port.
	GatewayPort PortFunc
	// Send overrides datagram delivery; nil uses UDP.
	Send SendFunc
	// Broadcasts overrides broadcast-address discovery; nil inspects the
	// local interfaces.
	Broadcasts func() []net.IP

	Logger *slog.Logger
}

// New creates a stopped beacon.
func New(opts Options) *Beacon {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	b := &Beacon{
		interval:    opts.Interval,
		destPort:    opts.DestPort,
		name:        opts.Name,
		serverID:    opts.ServerID,
		userHash:    opts.UserHash,
		gatewayPort: opts.GatewayPort,
		send:        opts.Send,
		broadcasts:  opts.Broadcasts,
		logger:      logger.With("component", "beacon"),
	}
	if b.interval <= 0 {
		b.interval = 5 * time.Second
	}
	if b.send == nil {
		b.send = sendUDP
	}
	if b.broadcasts == nil {
		b.broadcasts = BroadcastAddresses
	}
	return b
}

// Start begins periodic broadcasting. Calling it while already running is
// a no-op; the return value reports whether this call started the beacon.
func (b *Beacon) Start() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return false
	}
	b.running = true
	b.stop = make(chan struct{})

	b.wg.Add(1)
	go b.run(b.stop)

	b.logger.Info("beacon started", slog.Int("dest_port", b.destPort))
	return true
}

// Stop cancels the periodic broadcast. Idempotent.
func (b *Beacon) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.stop)
	b.mu.Unlock()

	b.wg.Wait()
	b.logger.Info("beacon stopped")
}

// IsRunning reports whether the beacon is broadcasting.
func (b *Beacon) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *Beacon) run(stop chan struct{}) {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// Announce immediately rather than waiting a full interval.
	b.Tick()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.Tick()
		}
	}
}

// Tick sends one round of announcements, one datagram per broadcast
// address. A failure on one interface never aborts the remaining sends.
// The tick is skipped while the gateway port is unknown.
func (b *Beacon) Tick() {
	port := b.gatewayPort()
	if port <= 0 {
		b.logger.Error("gateway port unknown, skipping announcement")
		return
	}

	payload, err := json.Marshal(Packet{
		Type:     "localkit",
		Port:     port,
		OS:       runtime.GOOS,
		Name:     b.name,
		ServerID: b.serverID,
		UserHash: b.userHash,
		Version:  ProtocolVersion,
	})
	if err != nil {
		b.logger.Error("encoding announcement", slog.String("error", err.Error()))
		return
	}

	for _, ip := range b.broadcasts() {
		addr := &net.UDPAddr{IP: ip, Port: b.destPort}
		if err := b.send(addr, payload); err != nil {
			b.logger.Warn("announcement failed",
				slog.String("addr", addr.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// BroadcastAddresses computes the IPv4 broadcast address of every up,
// non-loopback interface, plus the universal broadcast address as a
// fallback.
func BroadcastAddresses() []net.IP {
	var out []net.IP

	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
				continue
			}

			addrs, err := iface.Addrs()
			if err != nil {
				continue
			}

			for _, addr := range addrs {
				ipnet, ok := addr.(*net.IPNet)
				if !ok {
					continue
				}
				ip4 := ipnet.IP.To4()
				if ip4 == nil {
					continue
				}

				mask := ipnet.Mask
				if len(mask) == net.IPv6len {
					mask = mask[12:]
				}
				if len(mask) != net.IPv4len {
					continue
				}

				bcast := make(net.IP, len(ip4))
				for i := range ip4 {
					bcast[i] = ip4[i] | ^mask[i]
				}
				out = append(out, bcast)
			}
		}
	}

	return append(out, net.IPv4bcast)
}

func sendUDP(addr *net.UDPAddr, payload []byte) error {
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("sending to %s: %w", addr, err)
	}
	return nil
}
