package overlay

import "errors"

// Sentinel errors for the conditions the control loop needs to branch on.
// Everything else is returned as a plain fmt.Errorf.
var (
	ErrNoRemote       = errors.New("overlay: no known remote with that node id")
	ErrUnknownSession = errors.New("overlay: unknown session id")
	ErrNoSession      = errors.New("overlay: remote has no active session")
	ErrNoRouteCoord   = errors.New("overlay: no calculated route coordinate")
	ErrWrongRecipient = errors.New("overlay: handshake addressed to a different node id")
)
