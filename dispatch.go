package overlay

import (
	"fmt"

	"github.com/latticemesh/overlay/hearsay"
	"github.com/latticemesh/overlay/ident"
	"github.com/latticemesh/overlay/remote"
	"github.com/latticemesh/overlay/routecoord"
	"github.com/latticemesh/overlay/wire"
)

func coordToWire(c ident.RouteCoord) wire.Coord { return wire.Coord{X: c.X, Y: c.Y} }
func coordFromWire(c wire.Coord) ident.RouteCoord { return ident.RouteCoord{X: c.X, Y: c.Y} }

// directConnect initiates a handshake with nid at net, per NodeAction(Connect).
func (n *Node) directConnect(nid ident.NodeID, net ident.InternetID, packets []wire.NodePacket, outbound *[]InternetPacket) error {
	r := n.getOrCreateRemote(nid)
	if r.SessionActive() {
		return nil
	}
	sid := newSessionID()
	r.BeginHandshake(sid, n.Ticks, packets)
	n.Action(WithCondition(RunAtCondition(n.Ticks+n.Config.HandshakeTimeout), AbandonHandshake(nid, sid)))
	e := wire.Handshake(uint64(nid), uint64(sid), uint64(n.NodeID))
	totalHandshakesSent.Add(1)
	return n.encodeAndAppend(net, e, outbound)
}

// routedConnect records a pending handshake meant to be carried by a future
// routing layer (Traverse). Reserved: this core has no routing layer, so no
// datagram is actually emitted.
func (n *Node) routedConnect(nid ident.NodeID, packets []wire.NodePacket) error {
	r := n.getOrCreateRemote(nid)
	if r.SessionActive() {
		return nil
	}
	sid := newSessionID()
	r.BeginHandshake(sid, remote.NoTimeout, packets)
	return nil
}

// sendPacket wraps p in the session envelope for nid and appends it to
// outbound. Fails if nid has no active session.
func (n *Node) sendPacket(nid ident.NodeID, p wire.NodePacket, outbound *[]InternetPacket) error {
	r, err := n.remoteOf(nid)
	if err != nil {
		return err
	}
	if !r.SessionActive() {
		return ErrNoSession
	}
	e := wire.Session(uint64(r.Session.SessionID), p)
	return n.encodeAndAppend(r.Session.ReturnNetID, e, outbound)
}

// dispatchEnvelope handles the datagram-level tagged union. For a Session
// envelope it resolves the owning node id and returns the enclosed packet
// for the caller to dispatch through dispatchPacket; Handshake and
// Acknowledge are fully handled here and never yield a packet.
func (n *Node) dispatchEnvelope(src ident.InternetID, e wire.Envelope, outbound *[]InternetPacket) (ident.NodeID, wire.NodePacket, bool, error) {
	switch e.Kind {
	case wire.KindHandshake:
		return 0, wire.NodePacket{}, false, n.handleHandshake(src, e, outbound)
	case wire.KindAcknowledge:
		return 0, wire.NodePacket{}, false, n.handleAcknowledge(src, e, outbound)
	case wire.KindSession:
		nid, ok := n.sessions[ident.SessionID(e.SessionID)]
		if !ok {
			return 0, wire.NodePacket{}, false, ErrUnknownSession
		}
		return nid, e.Packet, true, nil
	default:
		return 0, wire.NodePacket{}, false, fmt.Errorf("overlay: unknown envelope kind %v", e.Kind)
	}
}

// handleHandshake processes an inbound Handshake envelope, including the
// simultaneous-handshake tie-break: if we too are mid-handshake with the
// signer, the side with the numerically smaller NodeID drops its own
// pending handshake and accepts the peer's; the other side silently ignores
// the duplicate and waits for its own handshake to be acknowledged instead.
func (n *Node) handleHandshake(src ident.InternetID, e wire.Envelope, outbound *[]InternetPacket) error {
	if ident.NodeID(e.Recipient) != n.NodeID {
		return ErrWrongRecipient
	}
	signer := ident.NodeID(e.Signer)
	sid := ident.SessionID(e.SessionID)
	r := n.getOrCreateRemote(signer)

	if r.HandshakePending != nil && !r.SessionActive() {
		if n.NodeID < signer {
			r.HandshakePending = nil
			totalSimultaneousResolved.Add(1)
		} else {
			return nil
		}
	}

	returnPingID := r.AcceptIncomingHandshake(sid, src, n.Ticks)
	n.sessions[sid] = signer
	totalHandshakesAccepted.Add(1)
	totalSessionsEstablished.Add(1)
	ack := wire.Acknowledge(uint64(sid), uint64(n.NodeID), returnPingID)
	return n.encodeAndAppend(src, ack, outbound)
}

// handleAcknowledge completes the initiator's side of a handshake: installs
// the session, synthesizes the handshake's own RTT sample, rewrites any
// pending ExchangeInfo packets with current state, and emits ConnectionInit.
func (n *Node) handleAcknowledge(src ident.InternetID, e wire.Envelope, outbound *[]InternetPacket) error {
	acknowledger := ident.NodeID(e.Acknowledger)
	sid := ident.SessionID(e.SessionID)
	r, err := n.remoteOf(acknowledger)
	if err != nil {
		return err
	}
	initialPackets, err := r.AcknowledgeHandshake(sid, src, n.Ticks)
	if err != nil {
		return err
	}
	n.sessions[sid] = acknowledger
	totalSessionsEstablished.Add(1)

	dist := r.Session.Tracker.Distance()
	n.nodeList.Insert(dist, acknowledger)

	packets := n.updateConnectionPackets(r, initialPackets)
	return n.sendPacket(acknowledger, wire.NodePacket{
		Kind:    wire.KindConnectionInit,
		PingID:  e.ReturnPingID,
		Packets: packets,
	}, outbound)
}

// updateConnectionPackets rewrites any ExchangeInfo packet held pending
// since before the session existed to carry this node's current
// route_coord, remote count, and dist_avg, rather than the stale values it
// was constructed with.
func (n *Node) updateConnectionPackets(r *remote.RemoteNode, packets []wire.NodePacket) []wire.NodePacket {
	dist := r.Session.Tracker.Distance()
	out := make([]wire.NodePacket, len(packets))
	for i, p := range packets {
		if p.Kind != wire.KindExchangeInfo {
			out[i] = p
			continue
		}
		np := wire.NodePacket{Kind: wire.KindExchangeInfo, PeerCount: len(n.remotes), Ping: int64(dist)}
		if n.routeCoord != nil {
			np.HasCoord = true
			np.Coord = coordToWire(*n.routeCoord)
		}
		out[i] = np
	}
	return out
}

// dispatchPacket is the session-level protocol state machine. It records
// the packet's arrival time for rate-limiting before switching on kind.
func (n *Node) dispatchPacket(nid ident.NodeID, p wire.NodePacket, outbound *[]InternetPacket) error {
	r, err := n.remoteOf(nid)
	if err != nil {
		return err
	}
	if !r.SessionActive() {
		return ErrNoSession
	}
	delta, hadPrior := r.Session.CheckPacketTime(p.Kind, n.Ticks)
	rateLimited := hadPrior && delta < ident.Tick(n.Config.RateLimitWindow)

	switch p.Kind {
	case wire.KindConnectionInit:
		dist, err := r.Session.Tracker.AcknowledgePing(p.PingID, n.Ticks)
		if err != nil {
			return err
		}
		n.nodeList.Insert(dist, nid)
		for _, inner := range p.Packets {
			if err := n.dispatchPacket(nid, inner, outbound); err != nil {
				return err
			}
		}
		return nil

	case wire.KindPing:
		return n.sendPacket(nid, wire.NodePacket{Kind: wire.KindPingResponse, PingID: p.PingID}, outbound)

	case wire.KindPingResponse:
		_, err := r.Session.Tracker.AcknowledgePing(p.PingID, n.Ticks)
		if err == nil {
			totalPingRoundTrips.Add(1)
		}
		return err

	case wire.KindExchangeInfo:
		if p.HasCoord {
			c := coordFromWire(p.Coord)
			r.RouteCoord = &c
		}
		resp := wire.NodePacket{Kind: wire.KindExchangeInfoResponse, PeerCount: len(n.remotes), Ping: int64(r.Session.Tracker.Distance())}
		if n.routeCoord != nil {
			resp.HasCoord = true
			resp.Coord = coordToWire(*n.routeCoord)
		}
		return n.sendPacket(nid, resp, outbound)

	case wire.KindExchangeInfoResponse:
		selfNodeCount := n.nodeList.Len()
		if p.HasCoord {
			c := coordFromWire(p.Coord)
			r.RouteCoord = &c
		}
		if !p.HasCoord && p.PeerCount <= 1 && n.routeCoord == nil {
			return n.sendPacket(nid, wire.NodePacket{
				Kind:           wire.KindProposeRouteCoords,
				SelfProposal:   wire.Coord{X: 0, Y: 0},
				RemoteProposal: wire.Coord{X: 0, Y: p.Ping},
			}, outbound)
		}
		switch {
		case selfNodeCount == p.PeerCount && selfNodeCount < n.Config.TargetPeerCount:
			n.Action(TryCalcRouteCoord())
		case selfNodeCount < n.Config.TargetPeerCount:
			return n.sendPacket(nid, wire.NodePacket{Kind: wire.KindRequestPings, NumRequests: n.Config.TargetPeerCount}, outbound)
		default:
			n.Action(TryCalcRouteCoord())
		}
		return nil

	case wire.KindProposeRouteCoords:
		// The proposer's RemoteProposal is the coordinate it picked for us;
		// SelfProposal is the coordinate it picked for itself.
		accepted := n.routeCoord == nil
		if accepted {
			self := coordFromWire(p.RemoteProposal)
			remoteCoord := coordFromWire(p.SelfProposal)
			n.routeCoord = &self
			r.RouteCoord = &remoteCoord
		}
		return n.sendPacket(nid, wire.NodePacket{
			Kind:          wire.KindProposeRouteCoordsResponse,
			InitialSelf:   p.SelfProposal,
			InitialRemote: p.RemoteProposal,
			Accepted:      accepted,
		}, outbound)

	case wire.KindProposeRouteCoordsResponse:
		// InitialSelf/InitialRemote echo the original proposal unchanged, so
		// the proposer settles on the same values it sent: its own
		// coordinate is InitialSelf, its view of the recipient is
		// InitialRemote.
		if p.Accepted {
			self := coordFromWire(p.InitialSelf)
			remoteCoord := coordFromWire(p.InitialRemote)
			n.routeCoord = &self
			r.RouteCoord = &remoteCoord
		}
		return nil

	case wire.KindRequestPings:
		if rateLimited {
			totalRequestPingsDropped.Add(1)
			return nil
		}
		numRequests := p.NumRequests
		if numRequests > n.Config.RequestPingsFanout {
			numRequests = n.Config.RequestPingsFanout
		}
		wantPing := wire.NodePacket{Kind: wire.KindWantPing, ReqNodeID: uint64(nid), ReqNetID: uint64(r.Session.ReturnNetID)}
		targets := n.nodeList.Ascending(nid)
		if numRequests < len(targets) {
			targets = targets[:numRequests]
		}
		for _, target := range targets {
			if err := n.sendPacket(target, wantPing, outbound); err != nil {
				n.Logger.Errorf("overlay: failed to send WantPing to %d: %v", target, err)
			}
		}
		return nil

	case wire.KindWantPing:
		reqNid := ident.NodeID(p.ReqNodeID)
		reqNet := ident.InternetID(p.ReqNetID)
		if reqNid == n.NodeID || n.routeCoord == nil {
			return nil
		}
		distSelfToReturn := r.Session.Tracker.Distance()
		reqRemote := n.getOrCreateRemote(reqNid)
		if reqRemote.SessionActive() {
			return nil
		}
		if reqRemote.HandshakePending == nil {
			n.Action(Connect(reqNid, reqNet, []wire.NodePacket{{
				Kind:               wire.KindAcceptWantPing,
				IntermediateNodeID: uint64(nid),
				DistBetween:        int64(distSelfToReturn),
			}}))
		}
		return nil

	case wire.KindAcceptWantPing:
		n.hearsayEdges.Add(hearsay.Edge{
			From: nid,
			To:   ident.NodeID(p.IntermediateNodeID),
			Dist: ident.RouteScalar(p.DistBetween),
		})
		if rateLimited {
			totalAcceptWantPingDropped.Add(1)
			return nil
		}
		resp := wire.NodePacket{Kind: wire.KindExchangeInfo, PeerCount: n.nodeList.Len(), Ping: int64(r.Session.Tracker.Distance())}
		if n.routeCoord != nil {
			resp.HasCoord = true
			resp.Coord = coordToWire(*n.routeCoord)
		}
		return n.sendPacket(nid, resp, outbound)

	case wire.KindPeerNotify:
		r.Session.RecordPeerNotify(p.Rank)
		return nil

	default:
		// Reserved: Traverse and routed packets are not dispatched in this core.
		return nil
	}
}

// tryCalcRouteCoord runs the coordinate solver. A deus_ex_data override, if
// set, always short-circuits the MDS path.
func (n *Node) tryCalcRouteCoord() error {
	if n.deusExData != nil {
		c := *n.deusExData
		n.routeCoord = &c
		n.Action(CalculatePeers())
		return nil
	}

	var known []routecoord.KnownRemote
	for _, nid := range n.nodeList.AllAscending() {
		r := n.remotes[nid]
		if r == nil || r.RouteCoord == nil {
			continue
		}
		dist := r.Session.Tracker.Distance()
		known = append(known, routecoord.KnownRemote{NodeID: nid, Coord: *r.RouteCoord, SelfDist: dist})
	}

	coord, err := routecoord.Solve(known)
	if err != nil {
		totalSolverFailures.Add(1)
		return err
	}
	n.routeCoord = &coord
	totalRouteCoordsSolved.Add(1)
	n.Action(CalculatePeers())
	return nil
}

// calculatePeersAction rebuilds peer_list from node_list, requiring a
// solved route_coord.
func (n *Node) calculatePeersAction() error {
	if n.routeCoord == nil {
		return ErrNoRouteCoord
	}
	var candidates []routecoord.Candidate
	for _, nid := range n.nodeList.AllAscending() {
		r := n.remotes[nid]
		if r == nil || r.RouteCoord == nil {
			continue
		}
		candidates = append(candidates, routecoord.Candidate{NodeID: nid, Coord: *r.RouteCoord})
	}
	peers := routecoord.CalculatePeers(*n.routeCoord, candidates, n.Config.TargetPeerCount)
	n.peerList = make(map[ident.NodeID]ident.RouteCoord, len(peers))
	for _, p := range peers {
		n.peerList[p.NodeID] = p.Coord
	}
	return nil
}
