package gateway

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"SeedCrypt/server/internal/pkg/crypto"
	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/protocol"
	"SeedCrypt/server/internal/services/auth"
	"SeedCrypt/server/internal/services/keyring"
	"SeedCrypt/server/internal/storage"
)

// memoryStore backs both the auth and keyring services
type memoryStore struct {
	mu      sync.Mutex
	clients map[string]*storage.Client
	keys    map[int64]map[string]*storage.SeedKey
	nextID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		clients: make(map[string]*storage.Client),
		keys:    make(map[int64]map[string]*storage.SeedKey),
	}
}

func (m *memoryStore) CreateClient(name, hashedPassword string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.clients[name] = &storage.Client{ID: m.nextID, Name: name, HashedPassword: hashedPassword}
	return m.nextID, nil
}

func (m *memoryStore) GetClientByName(name string) (*storage.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clients[name], nil
}

func (m *memoryStore) GetClientByID(id int64) (*storage.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.clients {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memoryStore) SaveKey(key *storage.SeedKey) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	stored := *key
	stored.ID = m.nextID
	stored.CreatedAt = m.nextID
	if m.keys[key.ClientID] == nil {
		m.keys[key.ClientID] = make(map[string]*storage.SeedKey)
	}
	m.keys[key.ClientID][key.Name] = &stored
	return stored.ID, nil
}

func (m *memoryStore) GetKey(clientID int64, name string) (*storage.SeedKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[clientID][name], nil
}

func (m *memoryStore) ListKeys(clientID int64) ([]*storage.SeedKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*storage.SeedKey
	for _, k := range m.keys[clientID] {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

func (m *memoryStore) DeleteKey(clientID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys[clientID], name)
	return nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := newMemoryStore()
	keyringSvc, err := keyring.New(store, []byte("master-key-16byt"), encryption.Create())
	if err != nil {
		t.Fatalf("keyring.New failed: %v", err)
	}

	s := New(":0", auth.New("test-secret", store), keyringSvc, encryption.Create())
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

// call sends body as JSON and decodes a JSON response into out
func call(t *testing.T, srv *httptest.Server, method, path, token string, body, out interface{}) int {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func register(t *testing.T, srv *httptest.Server, name string) string {
	t.Helper()
	var resp protocol.AuthResponse
	if status := call(t, srv, "POST", "/api/auth/register", "", protocol.RegisterRequest{Name: name, Password: "pw-" + name}, &resp); status != http.StatusCreated {
		t.Fatalf("register returned %d", status)
	}
	if resp.Token == "" {
		t.Fatalf("register returned no token")
	}
	return resp.Token
}

func TestRegisterAndLogin(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv, "billing")

	if status := call(t, srv, "POST", "/api/auth/register", "", protocol.RegisterRequest{Name: "billing", Password: "x"}, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate client, got %d", status)
	}

	var resp protocol.AuthResponse
	if status := call(t, srv, "POST", "/api/auth/login", "", protocol.LoginRequest{Name: "billing", Password: "pw-billing"}, &resp); status != http.StatusOK {
		t.Fatalf("login returned %d", status)
	}
	if resp.Token == "" || resp.ClientID == 0 {
		t.Fatalf("unexpected login response %+v", resp)
	}

	if status := call(t, srv, "POST", "/api/auth/login", "", protocol.LoginRequest{Name: "billing", Password: "wrong"}, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", status)
	}
}

func TestKeyEndpointsRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/keys", "/api/keys/app"} {
		if status := call(t, srv, "GET", path, "", nil, nil); status != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, status)
		}
		if status := call(t, srv, "GET", path, "not-a-token", nil, nil); status != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 for bad token, got %d", path, status)
		}
	}
}

func TestKeyLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")

	var info protocol.KeyInfo
	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "app", Mode: "OFB", Padding: "NONE"}, &info); status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}
	if info.Mode != "OFB" || info.Padding != "NONE" || len(info.IV) != encryption.SeedBlockSize {
		t.Fatalf("unexpected key info %+v", info)
	}

	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "app"}, nil); status != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate key, got %d", status)
	}
	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "bad name"}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad name, got %d", status)
	}
	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "cfb", Mode: "CFB", FeedbackSize: 64}, nil); status != http.StatusBadRequest {
		t.Fatalf("expected 400 for CFB64, got %d", status)
	}

	var list struct {
		Keys []protocol.KeyInfo `json:"keys"`
	}
	if status := call(t, srv, "GET", "/api/keys", token, nil, &list); status != http.StatusOK {
		t.Fatalf("list returned %d", status)
	}
	if len(list.Keys) != 1 || list.Keys[0].Name != "app" {
		t.Fatalf("unexpected key list %+v", list.Keys)
	}

	plaintext := []byte("settlement batch 42")
	var encrypted protocol.CipherResponse
	if status := call(t, srv, "POST", "/api/keys/app/encrypt", token, protocol.KeyCipherRequest{Data: plaintext}, &encrypted); status != http.StatusOK {
		t.Fatalf("encrypt returned %d", status)
	}
	if encrypted.BytesWritten != len(plaintext) {
		t.Fatalf("OFB/NONE should not change length, got %d", encrypted.BytesWritten)
	}

	var decrypted protocol.CipherResponse
	if status := call(t, srv, "POST", "/api/keys/app/decrypt", token, protocol.KeyCipherRequest{Data: encrypted.Data}, &decrypted); status != http.StatusOK {
		t.Fatalf("decrypt returned %d", status)
	}
	if !bytes.Equal(decrypted.Data, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, decrypted.Data)
	}

	// Keys are private to their client
	other := register(t, srv, "reporting")
	if status := call(t, srv, "GET", "/api/keys/app", other, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for another client's key, got %d", status)
	}

	if status := call(t, srv, "DELETE", "/api/keys/app", token, nil, nil); status != http.StatusNoContent {
		t.Fatalf("delete returned %d", status)
	}
	if status := call(t, srv, "GET", "/api/keys/app", token, nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

func TestCipherKnownAnswer(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")

	req := protocol.CipherRequest{
		Key:     []byte("ABCDEF123:45GHIJ"),
		IV:      []byte{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0},
		Data:    []byte("asdf1234"),
		Mode:    "OFB",
		Padding: "NONE",
	}

	var resp protocol.CipherResponse
	if status := call(t, srv, "POST", "/api/cipher/encrypt", token, req, &resp); status != http.StatusOK {
		t.Fatalf("encrypt returned %d", status)
	}
	if got := base64.StdEncoding.EncodeToString(resp.Data); got != "1dn9D/APZxM=" {
		t.Fatalf("expected 1dn9D/APZxM=, got %s", got)
	}

	req.Data = resp.Data
	if status := call(t, srv, "POST", "/api/cipher/decrypt", token, req, &resp); status != http.StatusOK {
		t.Fatalf("decrypt returned %d", status)
	}
	if string(resp.Data) != "asdf1234" {
		t.Fatalf("expected asdf1234, got %q", resp.Data)
	}
}

func TestCipherRejectsBadInput(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")
	key := []byte("ABCDEF123:45GHIJ")

	testCases := []struct {
		name string
		path string
		req  protocol.CipherRequest
	}{
		{"short key", "/api/cipher/encrypt", protocol.CipherRequest{Key: []byte("short"), Data: []byte("x")}},
		{"missing key", "/api/cipher/encrypt", protocol.CipherRequest{Data: []byte("x")}},
		{"unknown mode", "/api/cipher/encrypt", protocol.CipherRequest{Key: key, Data: []byte("x"), Mode: "XTS"}},
		{"cts", "/api/cipher/encrypt", protocol.CipherRequest{Key: key, Data: []byte("x"), Mode: "CTS"}},
		{"unpadded partial block", "/api/cipher/encrypt", protocol.CipherRequest{Key: key, Data: []byte("x"), Mode: "ECB", Padding: "NONE"}},
		{"bad padding", "/api/cipher/decrypt", protocol.CipherRequest{Key: key, Data: make([]byte, 16), Mode: "ECB"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if status := call(t, srv, "POST", tc.path, token, tc.req, nil); status != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", status)
			}
		})
	}
}

func TestAlgorithms(t *testing.T) {
	srv := newTestServer(t)

	var resp struct {
		Names    []string `json:"names"`
		Defaults struct {
			Mode    string `json:"mode"`
			Padding string `json:"padding"`
		} `json:"defaults"`
	}
	if status := call(t, srv, "GET", "/api/algorithms", "", nil, &resp); status != http.StatusOK {
		t.Fatalf("algorithms returned %d", status)
	}
	if len(resp.Names) != 2 || resp.Defaults.Mode != "CBC" || resp.Defaults.Padding != "PKCS7" {
		t.Fatalf("unexpected algorithms response %+v", resp)
	}
}

func dialStream(t *testing.T, srv *httptest.Server, q url.Values) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stream?" + q.Encode()
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial failed (%d): %v", status, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// pump sends input in uneven chunks, then the final frame, and collects the
// output up to the done frame.
func pump(t *testing.T, conn *websocket.Conn, input []byte) ([]byte, protocol.StreamFrame) {
	t.Helper()

	for _, size := range []int{5, 16, 1, 40} {
		if len(input) == 0 {
			break
		}
		if size > len(input) {
			size = len(input)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, input[:size]); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		input = input[size:]
	}
	if len(input) > 0 {
		if err := conn.WriteMessage(websocket.BinaryMessage, input); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := conn.WriteJSON(protocol.StreamFrame{Type: protocol.FrameFinal}); err != nil {
		t.Fatalf("final frame failed: %v", err)
	}

	var out []byte
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read failed before done frame: %v", err)
		}
		if msgType == websocket.BinaryMessage {
			out = append(out, data...)
			continue
		}

		var frame protocol.StreamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("bad control frame %q: %v", data, err)
		}
		if frame.Type == protocol.FrameDone || frame.Type == protocol.FrameError {
			return out, frame
		}
	}
}

func TestStreamWithStoredKey(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")

	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "app"}, nil); status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	plaintext := bytes.Repeat([]byte("streamed record;"), 5)
	plaintext = append(plaintext, "tail"...)

	var expected protocol.CipherResponse
	if status := call(t, srv, "POST", "/api/keys/app/encrypt", token, protocol.KeyCipherRequest{Data: plaintext}, &expected); status != http.StatusOK {
		t.Fatalf("encrypt returned %d", status)
	}

	conn := dialStream(t, srv, url.Values{"token": {token}, "key": {"app"}, "direction": {"encrypt"}})
	ciphertext, done := pump(t, conn, plaintext)
	if done.Type != protocol.FrameDone {
		t.Fatalf("stream failed: %s", done.Error)
	}
	if !bytes.Equal(ciphertext, expected.Data) {
		t.Fatalf("stream output differs from one-shot encryption")
	}
	if done.Bytes != int64(len(ciphertext)) {
		t.Fatalf("done frame reports %d bytes, got %d", done.Bytes, len(ciphertext))
	}

	conn = dialStream(t, srv, url.Values{"token": {token}, "key": {"app"}, "direction": {"decrypt"}})
	decrypted, done := pump(t, conn, ciphertext)
	if done.Type != protocol.FrameDone {
		t.Fatalf("decrypt stream failed: %s", done.Error)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestStreamReportsTransformErrors(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")

	if status := call(t, srv, "POST", "/api/keys", token, protocol.CreateKeyRequest{Name: "app"}, nil); status != http.StatusCreated {
		t.Fatalf("create returned %d", status)
	}

	conn := dialStream(t, srv, url.Values{"token": {token}, "key": {"app"}, "direction": {"decrypt"}})
	_, frame := pump(t, conn, make([]byte, 15))
	if frame.Type != protocol.FrameError || frame.Error == "" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}

func TestStreamWithAgreedKey(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")

	client, err := crypto.NewDiffieHellman(streamGroupBits)
	if err != nil {
		t.Fatalf("NewDiffieHellman failed: %v", err)
	}
	if err := client.GeneratePrivateKey(); err != nil {
		t.Fatalf("GeneratePrivateKey failed: %v", err)
	}

	conn := dialStream(t, srv, url.Values{
		"token":     {token},
		"agree":     {"dh"},
		"peer_key":  {base64.StdEncoding.EncodeToString(client.GetPublicKey())},
		"direction": {"encrypt"},
	})

	var agreement protocol.StreamFrame
	if err := conn.ReadJSON(&agreement); err != nil {
		t.Fatalf("reading agreement failed: %v", err)
	}
	if agreement.Type != protocol.FrameAgreement || len(agreement.IV) != encryption.SeedBlockSize {
		t.Fatalf("unexpected agreement %+v", agreement)
	}

	secret, err := client.ComputeSharedSecret(agreement.PublicKey)
	if err != nil {
		t.Fatalf("ComputeSharedSecret failed: %v", err)
	}
	key, err := crypto.DeriveKey(secret, nil, []byte(streamKeyInfo), encryption.SeedKeySize)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}

	plaintext := []byte("agreed over diffie-hellman")
	ciphertext, done := pump(t, conn, plaintext)
	if done.Type != protocol.FrameDone {
		t.Fatalf("stream failed: %s", done.Error)
	}

	seed, err := encryption.Create().WithKey(key)
	if err != nil {
		t.Fatalf("WithKey failed: %v", err)
	}
	decrypted, err := seed.DecryptCbc(ciphertext, agreement.IV, encryption.PaddingPKCS7)
	if err != nil {
		t.Fatalf("DecryptCbc failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, decrypted)
	}
}

func TestStreamRejectsBeforeUpgrade(t *testing.T) {
	srv := newTestServer(t)
	token := register(t, srv, "billing")
	wsBase := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/stream?"

	testCases := []struct {
		name   string
		query  url.Values
		status int
	}{
		{"no token", url.Values{"key": {"app"}, "direction": {"encrypt"}}, http.StatusUnauthorized},
		{"bad direction", url.Values{"token": {token}, "key": {"app"}, "direction": {"sideways"}}, http.StatusBadRequest},
		{"unknown key", url.Values{"token": {token}, "key": {"missing"}, "direction": {"encrypt"}}, http.StatusNotFound},
		{"no key source", url.Values{"token": {token}, "direction": {"encrypt"}}, http.StatusBadRequest},
		{"weak peer key", url.Values{"token": {token}, "agree": {"dh"}, "peer_key": {"AQ=="}, "direction": {"encrypt"}}, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(wsBase+tc.query.Encode(), nil)
			if err == nil {
				conn.Close()
				t.Fatalf("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %v", tc.status, resp)
			}
		})
	}
}
