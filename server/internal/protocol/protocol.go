package protocol

import (
	"time"
)

// WebSocket timings and limits
const (
	WriteWait    = 10 * time.Second
	PongWait     = 60 * time.Second
	PingPeriod   = 30 * time.Second
	MaxFrameSize = 1 << 20
)

// Stream control frame types, sent as text frames on /ws/stream
const (
	FrameAgreement = "agreement" // server -> client: DH public key and stream IV
	FrameFinal     = "final"     // client -> server: no more input
	FrameDone      = "done"      // server -> client: final output has been sent
	FrameError     = "error"     // server -> client: the stream failed
)

// Stream directions
const (
	DirectionEncrypt = "encrypt"
	DirectionDecrypt = "decrypt"
)

// RegisterRequest creates an API client
type RegisterRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest authenticates an API client
type LoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// AuthResponse carries a bearer token
type AuthResponse struct {
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}

// CreateKeyRequest creates a named key. Empty options fall back to the
// server defaults.
type CreateKeyRequest struct {
	Name         string `json:"name"`
	Mode         string `json:"mode,omitempty"`
	Padding      string `json:"padding,omitempty"`
	FeedbackSize int    `json:"feedback_size,omitempty"`
}

// KeyInfo describes a stored key. Key material is never returned.
type KeyInfo struct {
	Name         string `json:"name"`
	Mode         string `json:"mode"`
	Padding      string `json:"padding"`
	FeedbackSize int    `json:"feedback_size"`
	IV           []byte `json:"iv,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

// KeyCipherRequest runs one message through a stored key. IV overrides the
// key's stored IV when set.
type KeyCipherRequest struct {
	Data []byte `json:"data"`
	IV   []byte `json:"iv,omitempty"`
}

// CipherRequest runs one message through caller-supplied key material
type CipherRequest struct {
	Key          []byte `json:"key"`
	IV           []byte `json:"iv,omitempty"`
	Data         []byte `json:"data"`
	Mode         string `json:"mode,omitempty"`
	Padding      string `json:"padding,omitempty"`
	FeedbackSize int    `json:"feedback_size,omitempty"`
}

// CipherResponse carries transform output
type CipherResponse struct {
	Data         []byte `json:"data"`
	BytesWritten int    `json:"bytes_written"`
}

// StreamFrame is a control frame on /ws/stream
type StreamFrame struct {
	Type      string `json:"type"`
	PublicKey []byte `json:"public_key,omitempty"`
	IV        []byte `json:"iv,omitempty"`
	Bytes     int64  `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
}
