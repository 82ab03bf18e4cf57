package overlay

import (
	"testing"

	"github.com/latticemesh/overlay/ident"
	"github.com/latticemesh/overlay/wire"
)

// network is a minimal in-process substrate: it shuttles each tick's
// outbound batch to the matching node by net id, for end-to-end tests. It
// does not model loss, reorder, or latency -- those are the substrate's
// concern, out of scope for this core.
type network struct {
	nodes map[ident.InternetID]*Node
}

func newNetwork(nodes ...*Node) *network {
	net := &network{nodes: make(map[ident.InternetID]*Node)}
	for _, n := range nodes {
		net.nodes[n.NetID] = n
	}
	return net
}

// run advances every node by one tick, routing each tick's outbound batch
// to its destination's inbound batch for the following tick.
func (net *network) run(ticks int) {
	inbound := make(map[ident.InternetID][]InternetPacket)
	for i := 0; i < ticks; i++ {
		next := make(map[ident.InternetID][]InternetPacket)
		for addr, n := range net.nodes {
			out := n.Tick(inbound[addr])
			for _, pkt := range out {
				next[pkt.DestAddr] = append(next[pkt.DestAddr], pkt)
			}
		}
		inbound = next
	}
}

func TestSoloBootstrap(t *testing.T) {
	a := New(1, 100, nil)
	b := New(2, 200, nil)
	a.Action(Bootstrap(2, 200))

	net := newNetwork(a, b)
	net.run(4)

	ra, err := a.remoteOf(2)
	if err != nil || !ra.SessionActive() {
		t.Fatalf("expected A to hold a session with B, err=%v", err)
	}
	rb, err := b.remoteOf(1)
	if err != nil || !rb.SessionActive() {
		t.Fatalf("expected B to hold a session with A, err=%v", err)
	}
	if ra.Session.SessionID != rb.Session.SessionID {
		t.Fatalf("expected matching session ids, got %v and %v", ra.Session.SessionID, rb.Session.SessionID)
	}
	if a.nodeList.Len() != 1 || !a.nodeList.Contains(2) {
		t.Fatalf("expected A's node_list to contain B")
	}
}

func TestProposalBootstrap(t *testing.T) {
	a := New(1, 100, nil)
	b := New(2, 200, nil)
	a.Action(Bootstrap(2, 200))

	net := newNetwork(a, b)
	net.run(8)

	aCoord, aOK := a.RouteCoord()
	bCoord, bOK := b.RouteCoord()
	if !aOK || !bOK {
		t.Fatalf("expected both nodes to have solved a route_coord, a=%v b=%v", aOK, bOK)
	}
	if aCoord != (ident.RouteCoord{X: 0, Y: 0}) {
		t.Fatalf("expected A to seed itself at the origin, got %v", aCoord)
	}
	if bCoord.X != 0 || bCoord.Y <= 0 {
		t.Fatalf("expected B to seed itself on the positive Y axis, got %v", bCoord)
	}
	ra, _ := a.remoteOf(2)
	if ra.RouteCoord == nil || *ra.RouteCoord != bCoord {
		t.Fatalf("expected A's view of B's coord to match B's own, got %v want %v", ra.RouteCoord, bCoord)
	}
}

func TestSimultaneousHandshake(t *testing.T) {
	a := New(5, 100, nil)
	b := New(9, 200, nil)
	a.Action(Connect(9, 200, nil))
	b.Action(Connect(5, 100, nil))

	net := newNetwork(a, b)
	net.run(3)

	ra, err := a.remoteOf(9)
	if err != nil || !ra.SessionActive() {
		t.Fatalf("expected exactly one session to survive on A, err=%v", err)
	}
	rb, err := b.remoteOf(5)
	if err != nil || !rb.SessionActive() {
		t.Fatalf("expected exactly one session to survive on B, err=%v", err)
	}
	if ra.Session.SessionID != rb.Session.SessionID {
		t.Fatalf("expected both sides to agree on the surviving session id")
	}
	if len(a.sessions) != 1 || len(b.sessions) != 1 {
		t.Fatalf("expected exactly one session per node, got %d and %d", len(a.sessions), len(b.sessions))
	}
}

func TestConditionalActionPersistsUntilSessionInstalled(t *testing.T) {
	a := New(1, 100, nil)
	b := New(2, 200, nil)
	a.Action(WithCondition(SessionCondition(2), Packet(2, wire.NodePacket{Kind: wire.KindPing, PingID: 0})))

	net := newNetwork(a, b)
	net.run(1)
	if len(a.actions) != 1 {
		t.Fatalf("expected the conditional action to remain queued with no session, got %d actions", len(a.actions))
	}

	a.Action(Connect(2, 200, nil))
	net.run(4)

	rb, err := b.remoteOf(1)
	if err != nil || !rb.SessionActive() {
		t.Fatalf("expected B to have installed a session with A")
	}
	for _, pending := range a.actions {
		if pending.Kind == ActionCondition && pending.Cond.Kind == CondSession {
			t.Fatalf("expected the session-conditioned action to have fired once the session installed, still queued: %v", pending)
		}
	}
	// A's own Connect(2, ...) also leaves a RunAt-conditioned
	// AbandonHandshake queued until HandshakeTimeout ticks out; it is
	// harmless once the session is active and is not what this test checks.
}

// TestRequestPingsFanOutInducesHandshakes exercises the three-hop
// introduction chain: C knows both A and B, D asks C for pings, C fans a
// WantPing out to each of its node_list entries, and each recipient is
// expected to dial D directly off the back of it.
func TestRequestPingsFanOutInducesHandshakes(t *testing.T) {
	a := New(1, 100, nil)
	b := New(2, 200, nil)
	c := New(3, 300, nil)
	d := New(4, 400, nil)

	// A and B already have solved coordinates, same as any node past its
	// own bootstrap -- set directly so the WantPing handler's route_coord
	// gate (it refuses to act for a node that hasn't located itself yet)
	// doesn't block this scenario on a second coordinate-solving round.
	a.routeCoord = &ident.RouteCoord{X: 0, Y: 0}
	b.routeCoord = &ident.RouteCoord{X: 0, Y: 100}

	c.Action(Bootstrap(1, 100))
	net := newNetwork(a, b, c, d)
	net.run(4)
	c.Action(Bootstrap(2, 200))
	net.run(4)

	if !c.nodeList.Contains(1) || !c.nodeList.Contains(2) {
		t.Fatalf("expected C's node_list to contain both A and B, len=%d", c.nodeList.Len())
	}

	d.Action(Connect(3, 300, nil))
	net.run(3)
	rd, err := d.remoteOf(3)
	if err != nil || !rd.SessionActive() {
		t.Fatalf("expected D to hold a session with C before testing the fan-out")
	}

	var out []InternetPacket
	if err := c.dispatchPacket(4, wire.NodePacket{Kind: wire.KindRequestPings, NumRequests: 10}, &out); err != nil {
		t.Fatalf("dispatchPacket: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected C to fan WantPing out to both A and B, got %d packets", len(out))
	}
	wantTargets := map[ident.InternetID]bool{100: false, 200: false}
	for _, pkt := range out {
		env, err := wire.Decode(pkt.Data)
		if err != nil {
			t.Fatalf("failed to decode fanned-out packet: %v", err)
		}
		if env.Kind != wire.KindSession || env.Packet.Kind != wire.KindWantPing {
			t.Fatalf("expected a WantPing session packet, got %+v", env)
		}
		if env.Packet.ReqNodeID != 4 {
			t.Fatalf("expected WantPing to reference D, got reqNodeID=%d", env.Packet.ReqNodeID)
		}
		if _, ok := wantTargets[pkt.DestAddr]; !ok {
			t.Fatalf("unexpected fan-out destination %d", pkt.DestAddr)
		}
		wantTargets[pkt.DestAddr] = true
	}
	if !wantTargets[100] || !wantTargets[200] {
		t.Fatalf("expected fan-out to reach both A and B, got %v", wantTargets)
	}

	// Deliver the fan-out and let A and B react: each should enqueue a
	// Connect to D carrying an AcceptWantPing, inducing a real handshake.
	inbound := map[ident.InternetID][]InternetPacket{100: nil, 200: nil, 300: nil, 400: nil}
	for _, pkt := range out {
		inbound[pkt.DestAddr] = append(inbound[pkt.DestAddr], pkt)
	}
	for i := 0; i < 4; i++ {
		next := map[ident.InternetID][]InternetPacket{100: nil, 200: nil, 300: nil, 400: nil}
		for addr, n := range net.nodes {
			for _, pkt := range n.Tick(inbound[addr]) {
				next[pkt.DestAddr] = append(next[pkt.DestAddr], pkt)
			}
		}
		inbound = next
	}

	if ra, err := a.remoteOf(4); err != nil || !ra.SessionActive() {
		t.Fatalf("expected A to have dialed D off the WantPing, err=%v", err)
	}
	if rb, err := b.remoteOf(4); err != nil || !rb.SessionActive() {
		t.Fatalf("expected B to have dialed D off the WantPing, err=%v", err)
	}
}

func TestRateLimitDropsRepeatedRequestPings(t *testing.T) {
	f := New(2, 200, nil)
	g := New(3, 300, nil)
	f.Action(Bootstrap(3, 300))
	net := newNetwork(f, g)
	net.run(4)

	rf, err := f.remoteOf(3)
	if err != nil || !rf.SessionActive() {
		t.Fatalf("expected F to hold a session with G before testing rate limiting")
	}
	if f.nodeList.Len() != 1 || !f.nodeList.Contains(3) {
		t.Fatalf("expected F's node_list to contain G before testing rate limiting")
	}

	// Give F a second remote (E) to fan RequestPings out to G about, with an
	// active session so dispatchPacket's session lookup succeeds.
	e := New(1, 100, nil)
	f.Action(Bootstrap(1, 100))
	net2 := newNetwork(f, e)
	net2.run(4)

	var first, second []InternetPacket
	if err := f.dispatchPacket(1, wire.NodePacket{Kind: wire.KindRequestPings, NumRequests: 10}, &first); err != nil {
		t.Fatalf("dispatchPacket: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected exactly one WantPing to be sent to G, got %d packets", len(first))
	}

	if err := f.dispatchPacket(1, wire.NodePacket{Kind: wire.KindRequestPings, NumRequests: 10}, &second); err != nil {
		t.Fatalf("dispatchPacket: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("expected the immediate replay to be rate-limited and produce no output, got %d packets", len(second))
	}
}
