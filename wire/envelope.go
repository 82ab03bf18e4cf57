package wire

// EnvelopeKind tags the datagram-level envelope: the handshake shape the
// core requires before any NodePacket can be exchanged.
type EnvelopeKind int

const (
	KindHandshake EnvelopeKind = iota
	KindAcknowledge
	KindSession
)

// Envelope is the datagram payload, a tagged union over
// {Handshake, Acknowledge, Session}. Like NodePacket it is a flat struct
// rather than an interface.
type Envelope struct {
	Kind EnvelopeKind "k"

	// Handshake
	Recipient uint64 "rc"
	SessionID uint64 "si"
	Signer    uint64 "sg"

	// Acknowledge (reuses SessionID above)
	Acknowledger uint64 "ak"
	ReturnPingID uint32 "rp"

	// Session (reuses SessionID above)
	Packet NodePacket "p"
}

// Handshake builds the envelope an initiator sends to open a session.
func Handshake(recipient uint64, sessionID uint64, signer uint64) Envelope {
	return Envelope{Kind: KindHandshake, Recipient: recipient, SessionID: sessionID, Signer: signer}
}

// Acknowledge builds the envelope a handshake recipient replies with.
func Acknowledge(sessionID uint64, acknowledger uint64, returnPingID uint32) Envelope {
	return Envelope{Kind: KindAcknowledge, SessionID: sessionID, Acknowledger: acknowledger, ReturnPingID: returnPingID}
}

// Session wraps a NodePacket in the per-session envelope.
func Session(sessionID uint64, packet NodePacket) Envelope {
	return Envelope{Kind: KindSession, SessionID: sessionID, Packet: packet}
}
