package ws

func init() {
	Register("PacketPublicKey", func() Packet { return &PacketPublicKey{} })
	Register("PacketSharedSecret", func() Packet { return &PacketSharedSecret{} })
	Register("PacketChallenge", func() Packet { return &PacketChallenge{} })
	Register("PacketChallengeResponse", func() Packet { return &PacketChallengeResponse{} })
	Register("PacketAuthSuccess", func() Packet { return &PacketAuthSuccess{} })
	Register("PacketAuthFailed", func() Packet { return &PacketAuthFailed{} })
	Register("PacketIdentification", func() Packet { return &PacketIdentification{} })
	Register("PacketVersion", func() Packet { return &PacketVersion{} })
	Register("PacketPing", func() Packet { return &PacketPing{} })
	Register("PacketPong", func() Packet { return &PacketPong{} })
}

// PacketPublicKey is sent by the client to offer an RSA public key at the
// start of the handshake (C->S, unencrypted).
type PacketPublicKey struct {
	PublicKey string `json:"publicKey"`
}

func (*PacketPublicKey) PacketTag() string { return "PacketPublicKey" }

// PacketSharedSecret carries the server-generated AES-256 key, wrapped
// under the client's RSA public key (S->C, unencrypted).
type PacketSharedSecret struct {
	EncryptedSecret string `json:"encryptedSecret"`
}

func (*PacketSharedSecret) PacketTag() string { return "PacketSharedSecret" }

// PacketChallenge carries a random proof-of-possession challenge
// (S->C, encrypted).
type PacketChallenge struct {
	Challenge string `json:"challenge"`
}

func (*PacketChallenge) PacketTag() string { return "PacketChallenge" }

// PacketChallengeResponse carries the client's HMAC of the challenge under
// the pre-shared secret (C->S, encrypted).
type PacketChallengeResponse struct {
	Response string `json:"response"`
}

func (*PacketChallengeResponse) PacketTag() string { return "PacketChallengeResponse" }

// PacketAuthSuccess tells the client the handshake completed
// (S->C, encrypted).
type PacketAuthSuccess struct {
	Message string `json:"message"`
}

func (*PacketAuthSuccess) PacketTag() string { return "PacketAuthSuccess" }

// PacketAuthFailed tells the client authentication was rejected
// (S->C, encrypted where a key exists, unencrypted otherwise).
type PacketAuthFailed struct {
	Reason string `json:"reason"`
}

func (*PacketAuthFailed) PacketTag() string { return "PacketAuthFailed" }

// PacketIdentification lets an authenticated client register a short,
// self-chosen label with the server (C->S, encrypted).
type PacketIdentification struct {
	ClientIdentifier string `json:"clientIdentifier"`
	Metadata         string `json:"metadata,omitempty"`
}

func (*PacketIdentification) PacketTag() string { return "PacketIdentification" }

// PacketVersion is informational and may be sent by either peer at any
// time after connect; it never advances the handshake state machine.
type PacketVersion struct {
	ProtocolVersion string `json:"protocolVersion"`
	ClientName      string `json:"clientName"`
	ClientVersion   string `json:"clientVersion"`
}

func (*PacketVersion) PacketTag() string { return "PacketVersion" }

// PacketPing is a latency probe sent by either peer.
type PacketPing struct {
	Timestamp  int64  `json:"timestamp"`
	SequenceID uint32 `json:"sequenceId"`
}

func (*PacketPing) PacketTag() string { return "PacketPing" }

// PacketPong answers a PacketPing.
type PacketPong struct {
	ClientTimestamp int64  `json:"clientTimestamp"`
	ServerTimestamp int64  `json:"serverTimestamp"`
	SequenceID      uint32 `json:"sequenceId"`
}

func (*PacketPong) PacketTag() string { return "PacketPong" }
