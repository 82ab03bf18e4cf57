package remote

import (
	"fmt"

	"github.com/latticemesh/overlay/ident"
)

// PingTracker issues monotonically increasing ping IDs, records send time,
// matches responses, and maintains a running average distance.
type PingTracker struct {
	nextPingID uint32
	pending    map[uint32]ident.Tick
	distAvg    ident.RouteScalar
	pingCount  int
}

// NewPingTracker returns a tracker with no outstanding pings and a zero
// running average.
func NewPingTracker() *PingTracker {
	return &PingTracker{pending: make(map[uint32]ident.Tick)}
}

// GenPing allocates a new ping ID, records now as its send time, and returns
// the ID for the caller to place in an outgoing Ping/ConnectionInit/
// Acknowledge packet.
func (t *PingTracker) GenPing(now ident.Tick) uint32 {
	id := t.nextPingID
	t.nextPingID++
	t.pending[id] = now
	return id
}

// AcknowledgePing removes a pending ping, computes its round-trip sample,
// and folds it into the running average. An unknown ID is an error, per the
// core's session error taxonomy.
func (t *PingTracker) AcknowledgePing(id uint32, now ident.Tick) (ident.RouteScalar, error) {
	sent, ok := t.pending[id]
	if !ok {
		return 0, fmt.Errorf("remote: unknown ping id %d", id)
	}
	delete(t.pending, id)
	sample := ident.RouteScalar(now - sent)
	t.distAvg = ident.RouteScalar((int64(t.distAvg)*int64(t.pingCount) + int64(sample)) / int64(t.pingCount+1))
	t.pingCount++
	return sample, nil
}

// PendingPings is the number of pings awaiting a response.
func (t *PingTracker) PendingPings() int { return len(t.pending) }

// Distance is the current running-average round-trip distance.
func (t *PingTracker) Distance() ident.RouteScalar { return t.distAvg }

// PingCount is the number of ping round trips folded into Distance so far.
func (t *PingTracker) PingCount() int { return t.pingCount }
