package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"SeedCrypt/server/internal/pkg/crypto"
	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/pkg/helpers"
	"SeedCrypt/server/internal/protocol"
)

const (
	streamGroupBits = 2048
	streamKeyInfo   = "seedcrypt stream key"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleStream runs one transform over a websocket. Binary frames carry
// input, the {"type":"final"} text frame ends it; output comes back as
// binary frames followed by a "done" frame.
//
// The transform uses either a stored key (?key=<name>) or a key agreed by
// Diffie-Hellman (?agree=dh&peer_key=<base64>). direction is "encrypt" or
// "decrypt"; iv optionally overrides the IV.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Browsers cannot set headers on websocket requests, so the query wins
	token := q.Get("token")
	if token == "" {
		token = extractToken(r.Header.Get("Authorization"))
	}
	if token == "" {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return
	}
	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	var encrypting bool
	switch q.Get("direction") {
	case protocol.DirectionEncrypt:
		encrypting = true
	case protocol.DirectionDecrypt:
	default:
		http.Error(w, "direction must be encrypt or decrypt", http.StatusBadRequest)
		return
	}

	iv, err := helpers.DecodeBase64("iv", q.Get("iv"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	var transform *encryption.Transform
	var agreement *protocol.StreamFrame
	switch {
	case q.Get("agree") == "dh":
		transform, agreement, err = s.agreeStream(q, iv, encrypting)
	case q.Get("key") != "":
		transform, err = s.keyringSvc.OpenTransform(claims.ClientID, q.Get("key"), iv, encrypting)
	default:
		http.Error(w, "key or agree=dh is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		transform.Close()
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	s.track(conn, true)
	defer s.track(conn, false)

	s.log.Info("Stream opened", "client_id", claims.ClientID, "transformation", transform.Transformation(), "direction", q.Get("direction"))
	st := newStream(conn, transform, s.log)
	st.run(agreement)
	s.log.Info("Stream closed", "client_id", claims.ClientID, "bytes_out", st.out.written)
}

// agreeStream performs the server half of a DH exchange and builds a
// transform keyed with HKDF of the shared secret.
func (s *Server) agreeStream(q url.Values, iv []byte, encrypting bool) (*encryption.Transform, *protocol.StreamFrame, error) {
	peer, err := helpers.DecodeBase64("peer_key", q.Get("peer_key"))
	if err != nil {
		return nil, nil, err
	}
	if peer == nil {
		return nil, nil, fmt.Errorf("%w: peer_key", encryption.ErrNullArgument)
	}

	feedback := 0
	if v := q.Get("feedback_size"); v != "" {
		if feedback, err = strconv.Atoi(v); err != nil {
			return nil, nil, fmt.Errorf("%w: feedback_size %q", encryption.ErrInvalidArgument, v)
		}
	}

	cfg, err := helpers.ApplyCipherOptions(s.defaults, q.Get("mode"), q.Get("padding"), feedback)
	if err != nil {
		return nil, nil, err
	}

	dh, err := crypto.NewDiffieHellman(streamGroupBits)
	if err != nil {
		return nil, nil, err
	}
	if err := dh.GeneratePrivateKey(); err != nil {
		return nil, nil, err
	}

	secret, err := dh.ComputeSharedSecret(peer)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", encryption.ErrInvalidArgument, err)
	}
	defer wipe(secret)

	key, err := crypto.DeriveKey(secret, nil, []byte(streamKeyInfo), encryption.SeedKeySize)
	if err != nil {
		return nil, nil, err
	}
	defer wipe(key)

	if iv == nil {
		withIV, err := cfg.GenerateIV()
		if err != nil {
			return nil, nil, err
		}
		iv = withIV.IV()
	}

	var transform *encryption.Transform
	if encrypting {
		transform, err = cfg.CreateEncryptorWith(key, iv)
	} else {
		transform, err = cfg.CreateDecryptorWith(key, iv)
	}
	if err != nil {
		return nil, nil, err
	}

	return transform, &protocol.StreamFrame{
		Type:      protocol.FrameAgreement,
		PublicKey: dh.GetPublicKey(),
		IV:        iv,
	}, nil
}

func (s *Server) track(conn *websocket.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		s.streams[conn] = true
	} else {
		delete(s.streams, conn)
	}
}

// frameWriter sends every Write as one binary frame
type frameWriter struct {
	conn    *websocket.Conn
	written int64
}

func (f *frameWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	f.conn.SetWriteDeadline(time.Now().Add(protocol.WriteWait))
	if err := f.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	f.written += int64(len(p))
	return len(p), nil
}

// stream owns one connection and its transform. Only run writes data
// frames; the ping loop uses WriteControl, which gorilla allows concurrently.
type stream struct {
	conn      *websocket.Conn
	transform *encryption.Transform
	out       *frameWriter
	writer    *encryption.TransformWriter
	log       *helpers.Logger
}

func newStream(conn *websocket.Conn, transform *encryption.Transform, log *helpers.Logger) *stream {
	out := &frameWriter{conn: conn}
	return &stream{
		conn:      conn,
		transform: transform,
		out:       out,
		writer:    encryption.NewTransformWriter(out, transform),
		log:       log,
	}
}

func (st *stream) run(agreement *protocol.StreamFrame) {
	defer st.conn.Close()
	defer st.transform.Close()

	st.conn.SetReadLimit(protocol.MaxFrameSize)
	st.conn.SetReadDeadline(time.Now().Add(protocol.PongWait))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(protocol.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go st.pingLoop(done)

	if agreement != nil {
		if err := st.writeFrame(*agreement); err != nil {
			return
		}
	}

	for {
		msgType, data, err := st.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				st.log.Warn("Stream read failed", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if _, err := st.writer.Write(data); err != nil {
				st.fail(err)
				return
			}

		case websocket.TextMessage:
			var frame protocol.StreamFrame
			if err := json.Unmarshal(data, &frame); err != nil || frame.Type != protocol.FrameFinal {
				st.fail(fmt.Errorf("%w: unexpected control frame", encryption.ErrInvalidArgument))
				return
			}
			if err := st.writer.Close(); err != nil {
				st.fail(err)
				return
			}
			if err := st.writeFrame(protocol.StreamFrame{Type: protocol.FrameDone, Bytes: st.out.written}); err != nil {
				return
			}
			st.closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (st *stream) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(protocol.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := st.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(protocol.WriteWait)); err != nil {
				return
			}
		}
	}
}

func (st *stream) writeFrame(frame protocol.StreamFrame) error {
	st.conn.SetWriteDeadline(time.Now().Add(protocol.WriteWait))
	return st.conn.WriteJSON(frame)
}

// fail reports err to the peer and closes the connection
func (st *stream) fail(err error) {
	code := websocket.CloseInternalServerErr
	msg := "internal error"
	if isClientError(err) {
		code = websocket.CloseInvalidFramePayloadData
		msg = err.Error()
	} else {
		st.log.Error("Stream failed", err)
	}

	if st.writeFrame(protocol.StreamFrame{Type: protocol.FrameError, Error: msg}) == nil {
		st.closeWith(code, "")
	}
}

func (st *stream) closeWith(code int, text string) {
	st.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(protocol.WriteWait))
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
