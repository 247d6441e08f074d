// Gateway API implementation
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"SeedCrypt/server/internal/pkg/encryption"
	"SeedCrypt/server/internal/pkg/helpers"
	"SeedCrypt/server/internal/protocol"
	"SeedCrypt/server/internal/services/auth"
	"SeedCrypt/server/internal/services/keyring"
)

// Server represents the API gateway
type Server struct {
	addr       string
	authSvc    *auth.Service
	keyringSvc *keyring.Service
	defaults   encryption.Seed
	log        *helpers.Logger
	httpServer *http.Server
	mu         sync.Mutex
	streams    map[*websocket.Conn]bool
}

// corsMiddleware adds CORS headers to all responses
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the token from "Bearer <token>" format
func extractToken(authHeader string) string {
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

// New creates a new gateway server. defaults is the base SEED configuration
// for /api/cipher requests and DH-agreed streams.
func New(addr string, authSvc *auth.Service, keyringSvc *keyring.Service, defaults encryption.Seed) *Server {
	return &Server{
		addr:       addr,
		authSvc:    authSvc,
		keyringSvc: keyringSvc,
		defaults:   defaults,
		log:        helpers.NewLogger("Gateway"),
		streams:    make(map[*websocket.Conn]bool),
	}
}

// Router builds the HTTP handler with all routes
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	// Root endpoint - return OK for health checks
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("SeedCrypt API Server"))
	}).Methods("GET", "OPTIONS")

	// Auth endpoints
	router.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST", "OPTIONS")

	// Algorithm description (public)
	router.HandleFunc("/api/algorithms", s.handleAlgorithms).Methods("GET", "OPTIONS")

	// Key endpoints - more specific routes first
	router.HandleFunc("/api/keys/{name}/encrypt", s.handleKeyCipher(true)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/keys/{name}/decrypt", s.handleKeyCipher(false)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/keys/{name}", s.handleGetKey).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/keys/{name}", s.handleDeleteKey).Methods("DELETE", "OPTIONS")
	router.HandleFunc("/api/keys", s.handleCreateKey).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/keys", s.handleListKeys).Methods("GET", "OPTIONS")

	// Explicit key material
	router.HandleFunc("/api/cipher/encrypt", s.handleCipher(true)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/cipher/decrypt", s.handleCipher(false)).Methods("POST", "OPTIONS")

	// WebSocket endpoint
	router.HandleFunc("/ws/stream", s.handleStream)

	return corsMiddleware(router)
}

// Start starts the gateway server and blocks until it stops
func (s *Server) Start() error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.log.Info("Gateway server listening", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes open streams
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	for conn := range s.streams {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(protocol.WriteWait))
		conn.Close()
	}
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// authenticate validates the bearer token. On failure the response has
// already been written.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "Missing authorization token", http.StatusUnauthorized)
		return nil, false
	}

	token := extractToken(authHeader)
	if token == "" {
		http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
		return nil, false
	}

	claims, err := s.authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return claims, true
}

// handleRegister handles client registration
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	clientID, err := s.authSvc.Register(req.Name, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	token, err := s.authSvc.CreateToken(clientID, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info("Registered client", "client_id", clientID, "name", req.Name)
	writeJSON(w, http.StatusCreated, protocol.AuthResponse{ClientID: clientID, Name: req.Name, Token: token})
}

// handleLogin handles client login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, clientID, err := s.authSvc.Login(req.Name, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, protocol.AuthResponse{ClientID: clientID, Name: req.Name, Token: token})
}

func (s *Server) handleAlgorithms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"names":             encryption.AlgorithmNames(),
		"legal_block_sizes": s.defaults.LegalBlockSizes(),
		"legal_key_sizes":   s.defaults.LegalKeySizes(),
		"modes":             []encryption.CipherMode{encryption.ModeECB, encryption.ModeCBC, encryption.ModeCFB, encryption.ModeOFB},
		"paddings": []encryption.PaddingMode{
			encryption.PaddingNone, encryption.PaddingPKCS7, encryption.PaddingZeros,
			encryption.PaddingANSIX923, encryption.PaddingISO10126,
		},
		"feedback_sizes": []int{8, 128},
		"defaults": map[string]interface{}{
			"mode":               s.defaults.Mode(),
			"padding":            s.defaults.Padding(),
			"feedback_size":      s.defaults.FeedbackSize(),
			"segmented_feedback": s.defaults.SegmentedFeedback(),
		},
	})
}

// Key handlers
func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req protocol.CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	info, err := s.keyringSvc.CreateKey(claims.ClientID, req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	keys, err := s.keyringSvc.ListKeys(claims.ClientID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (s *Server) handleGetKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	info, err := s.keyringSvc.GetKey(claims.ClientID, mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	claims, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	if err := s.keyringSvc.DeleteKey(claims.ClientID, mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleKeyCipher(encrypting bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		var req protocol.KeyCipherRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		name := mux.Vars(r)["name"]
		var out []byte
		var err error
		if encrypting {
			out, err = s.keyringSvc.Encrypt(claims.ClientID, name, req.Data, req.IV)
		} else {
			out, err = s.keyringSvc.Decrypt(claims.ClientID, name, req.Data, req.IV)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, protocol.CipherResponse{Data: out, BytesWritten: len(out)})
	}
}

// handleCipher runs one message through caller-supplied key material
func (s *Server) handleCipher(encrypting bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		var req protocol.CipherRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		cfg, err := helpers.ApplyCipherOptions(s.defaults, req.Mode, req.Padding, req.FeedbackSize)
		if err != nil {
			s.writeError(w, err)
			return
		}

		transform := encryption.TransformRequest{
			Key:          req.Key,
			IV:           req.IV,
			Mode:         cfg.Mode(),
			Padding:      cfg.Padding(),
			FeedbackSize: cfg.FeedbackSize(),
			Encrypting:   encrypting,
		}

		// Padding adds at most one block
		destination := make([]byte, len(req.Data)+encryption.SeedBlockSize)
		result := cfg.TryRun(transform, req.Data, destination)
		if !result.OK() {
			s.log.Debug("Cipher request failed", "client_id", claims.ClientID, "encrypting", encrypting, "error", result.Err)
			s.writeError(w, result.Err)
			return
		}

		writeJSON(w, http.StatusOK, protocol.CipherResponse{
			Data:         destination[:result.BytesWritten],
			BytesWritten: result.BytesWritten,
		})
	}
}

// writeError maps service errors onto HTTP status codes
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredential), errors.Is(err, auth.ErrInvalidToken):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, keyring.ErrKeyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, keyring.ErrKeyExists), errors.Is(err, auth.ErrClientExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case isClientError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.log.Error("Request failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func isClientError(err error) bool {
	for _, target := range []error{
		encryption.ErrNullArgument,
		encryption.ErrInvalidArgument,
		encryption.ErrInvalidLength,
		encryption.ErrCryptographic,
		encryption.ErrDestinationTooShort,
		helpers.ErrInvalidKeyName,
		helpers.ErrInvalidEncoding,
		auth.ErrEmptyCredentials,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
