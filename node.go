// Package overlay implements the core of a self-organizing peer-to-peer
// overlay node: the session handshake, the packet dispatcher, the action
// scheduler, and the coordinate solver and peer selector it drives. It is
// deliberately substrate-agnostic -- see InternetPacket -- a node never
// knows or cares whether it's being driven by a real net.PacketConn or an
// in-process test harness.
package overlay

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/latticemesh/overlay/hearsay"
	"github.com/latticemesh/overlay/ident"
	"github.com/latticemesh/overlay/logger"
	"github.com/latticemesh/overlay/remote"
	"github.com/latticemesh/overlay/wire"
)

// InternetPacket is the substrate contract: an opaque datagram addressed by
// InternetID. The node core never interprets Data except through the wire
// codec; framing and transport are the substrate's job.
type InternetPacket struct {
	SrcAddr  ident.InternetID
	DestAddr ident.InternetID
	Data     []byte
}

// Node is the per-participant state machine. All fields are mutated only
// from within Tick, so a Node must not be shared across goroutines without
// external synchronization: this is a single-threaded cooperative model,
// driven by an external tick rather than owning its own socket loop.
type Node struct {
	NodeID ident.NodeID
	NetID  ident.InternetID
	Ticks  ident.Tick

	Config *Config
	Logger logger.DebugLogger

	remotes  map[ident.NodeID]*remote.RemoteNode
	sessions map[ident.SessionID]ident.NodeID

	nodeList     *hearsay.NodeList
	hearsayEdges *hearsay.Cache
	peerList     map[ident.NodeID]ident.RouteCoord

	routeCoord *ident.RouteCoord
	deusExData *ident.RouteCoord

	actions []Action
}

// New creates a Node ready to receive actions and ticks. If config is nil,
// DefaultConfig is used.
func New(nodeID ident.NodeID, netID ident.InternetID, config *Config) *Node {
	if config == nil {
		config = DefaultConfig
	}
	cfg := *config
	return &Node{
		NodeID:       nodeID,
		NetID:        netID,
		Config:       &cfg,
		Logger:       &logger.NullLogger{},
		remotes:      make(map[ident.NodeID]*remote.RemoteNode),
		sessions:     make(map[ident.SessionID]ident.NodeID),
		nodeList:     hearsay.NewNodeList(),
		hearsayEdges: hearsay.NewCache(cfg.HearsayCacheSize),
		peerList:     make(map[ident.NodeID]ident.RouteCoord),
	}
}

// WithAction enqueues action before the first tick and returns the node, for
// chained construction: overlay.New(...).WithAction(overlay.Bootstrap(...)).
func (n *Node) WithAction(a Action) *Node {
	n.actions = append(n.actions, a)
	return n
}

// Action enqueues action at runtime.
func (n *Node) Action(a Action) {
	n.actions = append(n.actions, a)
}

// SetDeusExData installs or clears the simulation-only coordinate override
// consumed by the coordinate solver.
func (n *Node) SetDeusExData(coord *ident.RouteCoord) {
	n.deusExData = coord
}

// RouteCoord returns this node's solved coordinate, if any.
func (n *Node) RouteCoord() (ident.RouteCoord, bool) {
	if n.routeCoord == nil {
		return ident.RouteCoord{}, false
	}
	return *n.routeCoord, true
}

// PeerCount reports the current size of peer_list.
func (n *Node) PeerCount() int { return len(n.peerList) }

// NodeListLen reports the current size of node_list.
func (n *Node) NodeListLen() int { return n.nodeList.Len() }

func (n *Node) remoteOf(nid ident.NodeID) (*remote.RemoteNode, error) {
	r, ok := n.remotes[nid]
	if !ok {
		return nil, ErrNoRemote
	}
	return r, nil
}

func (n *Node) getOrCreateRemote(nid ident.NodeID) *remote.RemoteNode {
	r, ok := n.remotes[nid]
	if !ok {
		r = remote.New(nid)
		n.remotes[nid] = r
	}
	return r
}

// newSessionID mints an unguessable random session token.
func newSessionID() ident.SessionID {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing is catastrophic on any real platform; fall
		// back to the fixed value 0 rather than panic over a single failed
		// random read. Every id minted this way is the same.
		return ident.SessionID(0)
	}
	return ident.SessionID(binary.BigEndian.Uint64(b[:]))
}

// Tick consumes one batch of inbound datagrams, dispatches every packet,
// runs the action queue, and advances the logical clock -- the single entry
// point the substrate drives the node through.
func (n *Node) Tick(inbound []InternetPacket) []InternetPacket {
	var outbound []InternetPacket

	for _, pkt := range inbound {
		if pkt.DestAddr != n.NetID {
			n.Logger.Errorf("overlay: packet from %d addressed to %d, not me (%d)", pkt.SrcAddr, pkt.DestAddr, n.NetID)
			continue
		}
		env, err := wire.Decode(pkt.Data)
		if err != nil {
			n.Logger.Errorf("overlay: failed to decode envelope from %d: %v", pkt.SrcAddr, err)
			continue
		}
		nid, packet, hasPacket, err := n.dispatchEnvelope(pkt.SrcAddr, env, &outbound)
		if err != nil {
			n.Logger.Errorf("overlay: error dispatching envelope from %d: %v", pkt.SrcAddr, err)
			continue
		}
		if hasPacket {
			if err := n.dispatchPacket(nid, packet, &outbound); err != nil {
				n.Logger.Errorf("overlay: error dispatching packet %v from node %d: %v", packet.Kind, nid, err)
			}
		}
	}

	// Snapshot and clear the queue before processing: runAction may itself
	// call n.Action (Bootstrap enqueuing Connect, TryCalcRouteCoord enqueuing
	// CalculatePeers, ...), and those newly-scheduled actions land directly
	// in n.actions rather than being lost when this tick's survivors are
	// appended back in. They run on a later tick, never this one.
	aq := n.actions
	n.actions = nil
	for _, a := range aq {
		next, err := n.runAction(a, &outbound)
		if err != nil {
			totalActionErrors.Add(1)
			n.Logger.Infof("overlay: action %v errored: %v", a, err)
			continue
		}
		if next != nil {
			n.actions = append(n.actions, *next)
		}
	}

	n.Ticks++
	return outbound
}

func (n *Node) encodeAndAppend(dest ident.InternetID, e wire.Envelope, outbound *[]InternetPacket) error {
	data, err := wire.Encode(e)
	if err != nil {
		return fmt.Errorf("overlay: failed to encode envelope: %w", err)
	}
	*outbound = append(*outbound, InternetPacket{SrcAddr: n.NetID, DestAddr: dest, Data: data})
	return nil
}
