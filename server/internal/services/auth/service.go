package auth

import (
	"errors"
	"fmt"
	"time"

	"SeedCrypt/server/internal/pkg/helpers"
	"SeedCrypt/server/internal/storage"

	"github.com/dgrijalva/jwt-go"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyCredentials  = errors.New("name and password cannot be empty")
	ErrClientExists      = errors.New("client name already exists")
	ErrInvalidCredential = errors.New("invalid name or password")
	ErrInvalidToken      = errors.New("invalid token")
)

const tokenLifetime = 24 * time.Hour

// Service implements authentication logic
type Service struct {
	jwtSecret string
	store     Store
	now       func() time.Time
}

// Store defines the persistence interface
type Store interface {
	CreateClient(name, hashedPassword string) (int64, error)
	GetClientByName(name string) (*storage.Client, error)
	GetClientByID(clientID int64) (*storage.Client, error)
}

// Claims represents JWT claims
type Claims struct {
	ClientID int64  `json:"client_id"`
	Name     string `json:"name"`
	jwt.StandardClaims
}

// New creates a new auth service
func New(jwtSecret string, store Store) *Service {
	return &Service{
		jwtSecret: jwtSecret,
		store:     store,
		now:       time.Now,
	}
}

// Register creates a new API client and returns its ID
func (s *Service) Register(name, password string) (int64, error) {
	if name == "" || password == "" {
		return 0, ErrEmptyCredentials
	}

	existing, err := s.store.GetClientByName(name)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, ErrClientExists
	}

	hashedPassword, err := hashPassword(password)
	if err != nil {
		return 0, err
	}

	id, err := s.store.CreateClient(name, hashedPassword)
	if errors.Is(err, storage.ErrDuplicate) {
		return 0, ErrClientExists
	}
	return id, err
}

// Login authenticates a client and returns a JWT token and the client ID
func (s *Service) Login(name, password string) (string, int64, error) {
	if name == "" || password == "" {
		return "", 0, ErrEmptyCredentials
	}

	client, err := s.store.GetClientByName(name)
	if err != nil {
		return "", 0, err
	}
	if client == nil || !verifyPassword(password, client.HashedPassword) {
		return "", 0, ErrInvalidCredential
	}

	token, err := s.CreateToken(client.ID, client.Name)
	if err != nil {
		return "", 0, err
	}

	return token, client.ID, nil
}

// CreateToken creates a new JWT token for a client
func (s *Service) CreateToken(clientID int64, name string) (string, error) {
	now := s.now()
	claims := &Claims{
		ClientID: clientID,
		Name:     name,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(tokenLifetime).Unix(),
			IssuedAt:  now.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

// ValidateToken validates and parses a JWT token. Tokens of clients that no
// longer exist are rejected.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid || claims.ClientID <= 0 {
		return nil, ErrInvalidToken
	}

	if _, err := helpers.ValidateClientExists(s.store, claims.ClientID); err != nil {
		if errors.Is(err, helpers.ErrClientNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return nil, err
	}

	return claims, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
