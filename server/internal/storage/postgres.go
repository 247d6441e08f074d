package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert hits a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// uniqueViolation is the postgres SQLSTATE for a unique constraint failure
const uniqueViolation pq.ErrorCode = "23505"

// DB wraps the database connection and provides query methods
type DB struct {
	conn *sql.DB
}

// Config contains database connection configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// New creates a new database connection
func New(cfg Config) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates all database tables
func (db *DB) InitSchema() error {
	schema := `
	-- API clients
	CREATE TABLE IF NOT EXISTS clients (
		id BIGSERIAL PRIMARY KEY,
		name VARCHAR(255) UNIQUE NOT NULL,
		hashed_password VARCHAR(255) NOT NULL,
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
	);

	-- SEED keys, stored wrapped under the keyring master key
	CREATE TABLE IF NOT EXISTS seed_keys (
		id BIGSERIAL PRIMARY KEY,
		client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		wrapped_key BYTEA NOT NULL,
		wrap_iv BYTEA NOT NULL,
		iv BYTEA NOT NULL,
		mode VARCHAR(16) NOT NULL,
		padding VARCHAR(16) NOT NULL,
		feedback_size INTEGER NOT NULL DEFAULT 8,
		created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
		UNIQUE(client_id, name)
	);

	CREATE INDEX IF NOT EXISTS idx_seed_keys_client_id ON seed_keys(client_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Client operations

// CreateClient registers a new API client with a hashed password
func (db *DB) CreateClient(name, hashedPassword string) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		"INSERT INTO clients (name, hashed_password) VALUES ($1, $2) RETURNING id",
		name, hashedPassword,
	).Scan(&id)
	return id, checkDuplicate(err)
}

// GetClientByID retrieves a client by ID. Returns nil, nil if not found.
func (db *DB) GetClientByID(clientID int64) (*Client, error) {
	client := &Client{}
	err := db.conn.QueryRow(
		"SELECT id, name, hashed_password, created_at FROM clients WHERE id = $1",
		clientID,
	).Scan(&client.ID, &client.Name, &client.HashedPassword, &client.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return client, err
}

// GetClientByName retrieves a client by name. Returns nil, nil if not found.
func (db *DB) GetClientByName(name string) (*Client, error) {
	client := &Client{}
	err := db.conn.QueryRow(
		"SELECT id, name, hashed_password, created_at FROM clients WHERE name = $1",
		name,
	).Scan(&client.ID, &client.Name, &client.HashedPassword, &client.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return client, err
}

// Key operations

// SaveKey stores a wrapped key and returns its ID
func (db *DB) SaveKey(key *SeedKey) (int64, error) {
	var id int64
	err := db.conn.QueryRow(
		`INSERT INTO seed_keys (client_id, name, wrapped_key, wrap_iv, iv, mode, padding, feedback_size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		key.ClientID, key.Name, key.WrappedKey, key.WrapIV, key.IV,
		key.Mode, key.Padding, key.FeedbackSize, time.Now().Unix(),
	).Scan(&id)
	return id, checkDuplicate(err)
}

// GetKey retrieves a client's key by name. Returns nil, nil if not found.
func (db *DB) GetKey(clientID int64, name string) (*SeedKey, error) {
	key := &SeedKey{}
	err := db.conn.QueryRow(
		`SELECT id, client_id, name, wrapped_key, wrap_iv, iv, mode, padding, feedback_size, created_at
		 FROM seed_keys WHERE client_id = $1 AND name = $2`,
		clientID, name,
	).Scan(&key.ID, &key.ClientID, &key.Name, &key.WrappedKey, &key.WrapIV, &key.IV,
		&key.Mode, &key.Padding, &key.FeedbackSize, &key.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	return key, err
}

// ListKeys lists a client's keys, newest first. Wrapped material is not loaded.
func (db *DB) ListKeys(clientID int64) ([]*SeedKey, error) {
	rows, err := db.conn.Query(
		`SELECT id, client_id, name, mode, padding, feedback_size, created_at
		 FROM seed_keys WHERE client_id = $1 ORDER BY created_at DESC, id DESC`,
		clientID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*SeedKey
	for rows.Next() {
		key := &SeedKey{}
		if err := rows.Scan(&key.ID, &key.ClientID, &key.Name, &key.Mode, &key.Padding, &key.FeedbackSize, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}

// DeleteKey removes a client's key. Deleting a missing key is not an error.
func (db *DB) DeleteKey(clientID int64, name string) error {
	_, err := db.conn.Exec(
		"DELETE FROM seed_keys WHERE client_id = $1 AND name = $2",
		clientID, name,
	)
	return err
}

// Data types

// Client is an API client allowed to manage keys
type Client struct {
	ID             int64
	Name           string
	HashedPassword string
	CreatedAt      int64
}

// SeedKey is a named SEED key with its operating parameters. WrappedKey is
// the key encrypted under the master key with WrapIV.
type SeedKey struct {
	ID           int64  `json:"id"`
	ClientID     int64  `json:"client_id"`
	Name         string `json:"name"`
	WrappedKey   []byte `json:"-"`
	WrapIV       []byte `json:"-"`
	IV           []byte `json:"iv"`
	Mode         string `json:"mode"`
	Padding      string `json:"padding"`
	FeedbackSize int    `json:"feedback_size"`
	CreatedAt    int64  `json:"created_at"`
}

// checkDuplicate maps a unique violation onto ErrDuplicate
func checkDuplicate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	}
	return err
}
