package overlay

import (
	"fmt"

	"github.com/latticemesh/overlay/ident"
	"github.com/latticemesh/overlay/wire"
)

// ActionKind tags which variant of Action a value carries. Like NodePacket,
// Action is a flat struct with one field group per variant rather than an
// interface -- the scheduler clones and requeues actions wholesale every
// tick, and a flat struct makes that a plain value copy.
type ActionKind int

const (
	ActionBootstrap ActionKind = iota
	ActionConnect
	ActionConnectRouted
	ActionPacket
	ActionRequestPeers
	ActionTraverse
	ActionTryCalcRouteCoord
	ActionCalculatePeers
	ActionCondition
	ActionAbandonHandshake
)

// Action is one entry in the node's action queue.
type Action struct {
	Kind ActionKind

	NodeID    ident.NodeID
	NetID     ident.InternetID
	SessionID ident.SessionID

	Packets []wire.NodePacket
	Packet  wire.NodePacket
	N       int

	Cond  *Condition
	Inner *Action
}

// Bootstrap enqueues a Connect carrying the initial ExchangeInfo packet.
func Bootstrap(nid ident.NodeID, net ident.InternetID) Action {
	return Action{Kind: ActionBootstrap, NodeID: nid, NetID: net}
}

// Connect initiates a direct handshake with nid at net, holding pkts
// pending until the handshake is acknowledged.
func Connect(nid ident.NodeID, net ident.InternetID, pkts []wire.NodePacket) Action {
	return Action{Kind: ActionConnect, NodeID: nid, NetID: net, Packets: pkts}
}

// ConnectRouted is the same shape as Connect, but the handshake is intended
// to be routed through peers rather than dialed directly; it never times
// out by tick. The routing layer itself is reserved (see Traverse).
func ConnectRouted(nid ident.NodeID, pkts []wire.NodePacket) Action {
	return Action{Kind: ActionConnectRouted, NodeID: nid, Packets: pkts}
}

// Packet wraps p in the session envelope and emits it to nid. Fails if nid
// has no active session.
func Packet(nid ident.NodeID, p wire.NodePacket) Action {
	return Action{Kind: ActionPacket, NodeID: nid, Packet: p}
}

// RequestPeers sends RequestPings(n) to nid.
func RequestPeers(nid ident.NodeID, n int) Action {
	return Action{Kind: ActionRequestPeers, NodeID: nid, N: n}
}

// Traverse forwards p toward nid via the routing layer. Reserved: this core
// does not implement multi-hop routing, so executing this action always
// errors.
func Traverse(nid ident.NodeID, p wire.NodePacket) Action {
	return Action{Kind: ActionTraverse, NodeID: nid, Packet: p}
}

// TryCalcRouteCoord runs the coordinate solver. On success it enqueues
// CalculatePeers.
func TryCalcRouteCoord() Action {
	return Action{Kind: ActionTryCalcRouteCoord}
}

// CalculatePeers rebuilds peer_list from node_list. Requires route_coord.
func CalculatePeers() Action {
	return Action{Kind: ActionCalculatePeers}
}

// AbandonHandshake clears nid's handshake_pending if it is still the one
// identified by sid and still unacknowledged, freeing nid up for a fresh
// Connect attempt. Scheduled by directConnect behind a RunAt condition set
// to Config.HandshakeTimeout ticks out.
func AbandonHandshake(nid ident.NodeID, sid ident.SessionID) Action {
	return Action{Kind: ActionAbandonHandshake, NodeID: nid, SessionID: sid}
}

// WithCondition wraps inner so it only runs once cond is satisfied; until
// then the wrapped action is requeued unchanged every tick.
func WithCondition(cond Condition, inner Action) Action {
	c, i := cond, inner
	return Action{Kind: ActionCondition, Cond: &c, Inner: &i}
}

// ConditionKind tags a NodeActionCondition variant.
type ConditionKind int

const (
	CondSession ConditionKind = iota
	CondRunAt
)

// Condition gates an Action behind a side-effect-free predicate, re-checked
// every tick until satisfied.
type Condition struct {
	Kind   ConditionKind
	NodeID ident.NodeID
	At     ident.Tick
}

// SessionCondition is satisfied once nid has an active session.
func SessionCondition(nid ident.NodeID) Condition {
	return Condition{Kind: CondSession, NodeID: nid}
}

// RunAtCondition is satisfied once the node's tick counter reaches t.
func RunAtCondition(t ident.Tick) Condition {
	return Condition{Kind: CondRunAt, At: t}
}

func (c Condition) check(n *Node) bool {
	switch c.Kind {
	case CondSession:
		r, err := n.remoteOf(c.NodeID)
		return err == nil && r.SessionActive()
	case CondRunAt:
		return n.Ticks >= c.At
	default:
		return false
	}
}

// runAction executes a single action. A non-nil returned *Action means
// "requeue this for next tick" (used only by Condition); a nil Action with a
// nil error means the action is consumed. A non-nil error drops the action
// without requeuing it, per the action-error handling policy.
func (n *Node) runAction(a Action, outbound *[]InternetPacket) (*Action, error) {
	switch a.Kind {
	case ActionBootstrap:
		n.Action(Connect(a.NodeID, a.NetID, []wire.NodePacket{n.initialExchangeInfo()}))
		return nil, nil

	case ActionConnect:
		return nil, n.directConnect(a.NodeID, a.NetID, a.Packets, outbound)

	case ActionConnectRouted:
		return nil, n.routedConnect(a.NodeID, a.Packets)

	case ActionPacket:
		return nil, n.sendPacket(a.NodeID, a.Packet, outbound)

	case ActionRequestPeers:
		return nil, n.sendPacket(a.NodeID, wire.NodePacket{Kind: wire.KindRequestPings, NumRequests: a.N}, outbound)

	case ActionTraverse:
		return nil, fmt.Errorf("overlay: Traverse(%d) is reserved and not implemented in this core", a.NodeID)

	case ActionTryCalcRouteCoord:
		if err := n.tryCalcRouteCoord(); err != nil {
			return nil, err
		}
		return nil, nil

	case ActionCalculatePeers:
		return nil, n.calculatePeersAction()

	case ActionAbandonHandshake:
		if r, err := n.remoteOf(a.NodeID); err == nil {
			if r.HandshakePending != nil && r.HandshakePending.SessionID == a.SessionID && !r.SessionActive() {
				r.HandshakePending = nil
			}
		}
		return nil, nil

	case ActionCondition:
		if a.Cond.check(n) {
			return a.Inner, nil
		}
		return &a, nil

	default:
		return nil, fmt.Errorf("overlay: unknown action kind %v", a.Kind)
	}
}

// initialExchangeInfo builds the ExchangeInfo packet a Bootstrap seeds a
// Connect with; peer_count and ping are filled in dynamically once the
// handshake completes (see updateConnectionPackets).
func (n *Node) initialExchangeInfo() wire.NodePacket {
	p := wire.NodePacket{Kind: wire.KindExchangeInfo}
	if n.routeCoord != nil {
		p.HasCoord = true
		p.Coord = wire.Coord{X: n.routeCoord.X, Y: n.routeCoord.Y}
	}
	return p
}
