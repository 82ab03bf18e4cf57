package overlay

import (
	"flag"

	"github.com/latticemesh/overlay/ident"
)

// Config tunes a Node's protocol knobs. Use NewConfig to create a
// configuration with default values.
type Config struct {
	// TargetPeerCount bounds peer_list, the closest-ring used for
	// forwarding decisions. Default value: 5.
	TargetPeerCount int
	// RequestPingsFanout caps how many WantPing packets a single
	// RequestPings(n) may trigger, regardless of n. Default value: 10.
	RequestPingsFanout int
	// RateLimitWindow is the minimum tick gap required between two
	// deliveries of a RequestPings, or of an AcceptWantPing, on a session
	// before the second is processed rather than silently dropped. Other
	// packet kinds are not rate-limited. Default value: 300.
	RateLimitWindow int64
	// HearsayCacheSize bounds the number of third-party route_map edges
	// (AcceptWantPing reports) retained before the oldest is evicted.
	// Default value: 1024.
	HearsayCacheSize int
	// HandshakeTimeout bounds how long a direct Connect's handshake_pending
	// may sit unacknowledged before the scheduled follow-up gives up.
	// Default value: 20 ticks.
	HandshakeTimeout ident.Tick
}

// NewConfig returns a Config populated with default values.
func NewConfig() *Config {
	return &Config{
		TargetPeerCount:    5,
		RequestPingsFanout: 10,
		RateLimitWindow:    300,
		HearsayCacheSize:   1024,
		HandshakeTimeout:   20,
	}
}

// DefaultConfig is used by New when no Config is supplied.
var DefaultConfig = NewConfig()

// RegisterFlags registers Config fields as command line flags. If c is nil,
// DefaultConfig is used.
func RegisterFlags(c *Config) {
	if c == nil {
		c = DefaultConfig
	}
	flag.IntVar(&c.TargetPeerCount, "targetPeerCount", c.TargetPeerCount,
		"Number of closest viable remotes to keep in peer_list.")
	flag.IntVar(&c.RequestPingsFanout, "requestPingsFanout", c.RequestPingsFanout,
		"Maximum number of WantPing packets a single RequestPings may trigger.")
	flag.Int64Var(&c.RateLimitWindow, "rateLimitWindow", c.RateLimitWindow,
		"Minimum tick gap between two deliveries of a RequestPings (or of an AcceptWantPing) on a session before the second is processed.")
	flag.IntVar(&c.HearsayCacheSize, "hearsayCacheSize", c.HearsayCacheSize,
		"Maximum number of third-party route_map edges retained before eviction.")
	flag.Int64Var((*int64)(&c.HandshakeTimeout), "handshakeTimeout", int64(c.HandshakeTimeout),
		"Ticks a direct Connect's handshake may sit unacknowledged before it is given up on.")
}
