package wire

// PacketKind tags which variant of NodePacket a value carries. NodePacket is
// kept as a single flat struct with a kind tag and one field group per
// variant, rather than as an interface, because that is how this protocol's
// wire codec (bencode) most naturally serializes a tagged union.
type PacketKind int

const (
	KindConnectionInit PacketKind = iota
	KindPing
	KindPingResponse
	KindExchangeInfo
	KindExchangeInfoResponse
	KindProposeRouteCoords
	KindProposeRouteCoordsResponse
	KindRequestPings
	KindWantPing
	KindAcceptWantPing
	KindPeerNotify
)

func (k PacketKind) String() string {
	switch k {
	case KindConnectionInit:
		return "ConnectionInit"
	case KindPing:
		return "Ping"
	case KindPingResponse:
		return "PingResponse"
	case KindExchangeInfo:
		return "ExchangeInfo"
	case KindExchangeInfoResponse:
		return "ExchangeInfoResponse"
	case KindProposeRouteCoords:
		return "ProposeRouteCoords"
	case KindProposeRouteCoordsResponse:
		return "ProposeRouteCoordsResponse"
	case KindRequestPings:
		return "RequestPings"
	case KindWantPing:
		return "WantPing"
	case KindAcceptWantPing:
		return "AcceptWantPing"
	case KindPeerNotify:
		return "PeerNotify"
	default:
		return "Unknown"
	}
}

// Coord mirrors ident.RouteCoord on the wire. It is a distinct type (instead
// of reusing ident.RouteCoord directly) so the wire package has no import
// dependency back on ident's consumers; the root package's dispatch.go
// converts between the two.
type Coord struct {
	X int64 "x"
	Y int64 "y"
}

// NodePacket is the session-level protocol payload handled by the node's
// packet dispatcher. Unused fields for a given Kind are left at their zero
// value; bencode always encodes every field regardless of which Kind
// produced the value.
type NodePacket struct {
	Kind PacketKind "k"

	// ConnectionInit
	PingID  uint32       "pi"
	Packets []NodePacket "pk"

	// ExchangeInfo / ExchangeInfoResponse
	HasCoord  bool  "hc"
	Coord     Coord "co"
	PeerCount int   "pc"
	Ping      int64 "pn"

	// ProposeRouteCoords
	SelfProposal   Coord "sp"
	RemoteProposal Coord "rp"

	// ProposeRouteCoordsResponse
	InitialRemote Coord "ir"
	InitialSelf   Coord "is"
	Accepted      bool  "ac"

	// RequestPings
	NumRequests int "nr"

	// WantPing
	ReqNodeID uint64 "rn"
	ReqNetID  uint64 "re"

	// AcceptWantPing
	IntermediateNodeID uint64 "in"
	DistBetween        int64  "db"

	// PeerNotify
	Rank int "rk"
}
