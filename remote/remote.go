// Package remote holds the per-remote bookkeeping owned by a Node: pending
// handshakes, established sessions, learned coordinates and peer rank hints.
package remote

import (
	"fmt"

	"github.com/latticemesh/overlay/ident"
	"github.com/latticemesh/overlay/wire"
)

// SessionType distinguishes a directly-dialed session from one proxied
// through peers (ConnectRouted). Routed sessions are reserved in this core
// (see the root package's Traverse action) but the type is tracked now so a
// routing layer can be added without reshaping RemoteSession.
type SessionType int

const (
	SessionNormal SessionType = iota
	SessionRouted
)

// RemoteSession is installed once a handshake is acknowledged and lives for
// the rest of the process; this core defines no teardown.
type RemoteSession struct {
	SessionID      ident.SessionID
	ReturnNetID    ident.InternetID
	Tracker        *PingTracker
	Type           SessionType
	LastPacketTime map[wire.PacketKind]ident.Tick
	IsTesting      bool
	PeerRank       *int
}

func newSession(sessionID ident.SessionID, returnNetID ident.InternetID) *RemoteSession {
	return &RemoteSession{
		SessionID:      sessionID,
		ReturnNetID:    returnNetID,
		Tracker:        NewPingTracker(),
		LastPacketTime: make(map[wire.PacketKind]ident.Tick),
	}
}

// CheckPacketTime records now as the arrival time of kind and returns the
// number of ticks since its previous arrival, if any. Per the core's rate
// limit rule (see the packet dispatcher), a packet that is itself the first
// of its kind must never be treated as arriving within the window, so ok is
// false on the first arrival.
func (s *RemoteSession) CheckPacketTime(kind wire.PacketKind, now ident.Tick) (delta ident.Tick, ok bool) {
	prev, had := s.LastPacketTime[kind]
	s.LastPacketTime[kind] = now
	if !had {
		return 0, false
	}
	return now - prev, true
}

// RecordPeerNotify stores the rank a remote advertised about us. The peer
// selector (routecoord.CalculatePeers) does not read it.
func (s *RemoteSession) RecordPeerNotify(rank int) {
	r := rank
	s.PeerRank = &r
}

// HandshakePending is the state held between initiating a handshake and
// receiving its acknowledgement. It is consumed exactly once, on
// acknowledgement; no other code path may read it.
type HandshakePending struct {
	SessionID      ident.SessionID
	TimeSent       ident.Tick
	InitialPackets []wire.NodePacket
}

// NoTimeout marks a handshake (used for ConnectRouted) that should never
// time out by tick, since it is not gated by a RunAt condition.
const NoTimeout ident.Tick = 1<<63 - 1

// RemoteNode is the per-remote record a Node owns exclusively: pending
// handshake state, an optional active session, an optional known routing
// coordinate, and a peer-rank hint.
type RemoteNode struct {
	NodeID           ident.NodeID
	HandshakePending *HandshakePending
	Session          *RemoteSession
	RouteCoord       *ident.RouteCoord
	PeerRank         *int
}

// New creates the lazily-instantiated record for a NodeID on first
// reference (outbound Connect or inbound Handshake).
func New(nodeID ident.NodeID) *RemoteNode {
	return &RemoteNode{NodeID: nodeID}
}

// SessionActive reports whether this remote currently has an installed
// session, used by NodeActionCondition(Session).
func (r *RemoteNode) SessionActive() bool {
	return r.Session != nil
}

// BeginHandshake records a pending handshake, holding initialPackets until
// acknowledgement. It is the only way handshake_pending is set.
func (r *RemoteNode) BeginHandshake(sessionID ident.SessionID, sentAt ident.Tick, initialPackets []wire.NodePacket) {
	r.HandshakePending = &HandshakePending{SessionID: sessionID, TimeSent: sentAt, InitialPackets: initialPackets}
}

// AcceptIncomingHandshake installs a fresh session in response to an
// inbound Handshake envelope and returns the ping ID the acknowledger should
// report back to the initiator. Per the simultaneous-handshake rule, any
// pending handshake this side was holding for the same remote is cleared by
// the caller before this is invoked.
func (r *RemoteNode) AcceptIncomingHandshake(sessionID ident.SessionID, returnNetID ident.InternetID, now ident.Tick) uint32 {
	session := newSession(sessionID, returnNetID)
	returnPingID := session.Tracker.GenPing(now)
	r.Session = session
	r.HandshakePending = nil
	return returnPingID
}

// AcknowledgeHandshake consumes a matching pending handshake (the only
// transition that turns it into a session), folds the handshake's initial
// dist_avg sample, synthesized from the original handshake send time, into
// the new session's tracker, and returns the initial packets that were held
// pending. It errors if there is no pending handshake or the session ID
// presented does not match it.
func (r *RemoteNode) AcknowledgeHandshake(sessionID ident.SessionID, returnNetID ident.InternetID, now ident.Tick) ([]wire.NodePacket, error) {
	pending := r.HandshakePending
	if pending == nil {
		return nil, fmt.Errorf("remote: no pending handshake for node %d", r.NodeID)
	}
	if pending.SessionID != sessionID {
		return nil, fmt.Errorf("remote: acknowledgement session %d does not match pending session %d", sessionID, pending.SessionID)
	}
	r.HandshakePending = nil
	session := newSession(sessionID, returnNetID)
	pingID := session.Tracker.GenPing(pending.TimeSent)
	if _, err := session.Tracker.AcknowledgePing(pingID, now); err != nil {
		return nil, err
	}
	r.Session = session
	return pending.InitialPackets, nil
}
