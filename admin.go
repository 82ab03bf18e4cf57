package overlay

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/latticemesh/overlay/ident"
)

// AdminServer is a read/control surface for a running Node: one handler
// with one route per concern, GET /status for introspection and
// POST /bootstrap to enqueue a Bootstrap action from outside the process
// (e.g. a test harness or a CLI).
type AdminServer struct {
	node *Node
}

// NewAdminServer wraps node for HTTP introspection and control.
func NewAdminServer(node *Node) *AdminServer {
	return &AdminServer{node: node}
}

// statusResponse is the GET /status payload.
type statusResponse struct {
	NodeID      uint64   `json:"node_id"`
	NetID       uint64   `json:"net_id"`
	Ticks       int64    `json:"ticks"`
	HasCoord    bool     `json:"has_coord"`
	Coord       [2]int64 `json:"coord,omitempty"`
	NodeListLen int      `json:"node_list_len"`
	PeerCount   int      `json:"peer_count"`
}

// bootstrapRequest is the POST /bootstrap payload.
type bootstrapRequest struct {
	NodeID uint64 `json:"node_id"`
	NetID  uint64 `json:"net_id"`
}

func (s *AdminServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/status":
		s.handleStatus(w, r)
	case "/bootstrap":
		s.handleBootstrap(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		NodeID:      uint64(s.node.NodeID),
		NetID:       uint64(s.node.NetID),
		Ticks:       int64(s.node.Ticks),
		NodeListLen: s.node.NodeListLen(),
		PeerCount:   s.node.PeerCount(),
	}
	if c, ok := s.node.RouteCoord(); ok {
		resp.HasCoord = true
		resp.Coord = [2]int64{c.X, c.Y}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *AdminServer) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req bootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.node.Logger.Errorf("overlay: error parsing bootstrap request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.node.Action(Bootstrap(ident.NodeID(req.NodeID), ident.InternetID(req.NetID)))
	fmt.Fprintf(w, "bootstrap enqueued\n")
}
