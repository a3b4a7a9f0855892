package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	ErrEmailInUse         = errors.New("the email address is already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownEmail       = errors.New("no account for this email")
)

// Account is a registered email/password identity.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Accounts persists registered accounts, keyed by normalized email.
type Accounts interface {
	Lookup(email string) (Account, bool, error)
	Insert(a Account) error
	SetPassword(email string, hash []byte) error
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// MemoryAccounts keeps accounts in memory.
type MemoryAccounts struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{accounts: make(map[string]Account)}
}

func (m *MemoryAccounts) Lookup(email string) (Account, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[normalizeEmail(email)]
	return a, ok, nil
}

func (m *MemoryAccounts) Insert(a Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalizeEmail(a.Email)
	if _, ok := m.accounts[key]; ok {
		return ErrEmailInUse
	}
	m.accounts[key] = a
	return nil
}

func (m *MemoryAccounts) SetPassword(email string, hash []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := normalizeEmail(email)
	a, ok := m.accounts[key]
	if !ok {
		return ErrUnknownEmail
	}
	a.PasswordHash = hash
	m.accounts[key] = a
	return nil
}

var bucketAccounts = []byte("accounts")

// BoltAccounts stores accounts in a bbolt file.
type BoltAccounts struct {
	db *bolt.DB
}

// OpenBoltAccounts opens (or creates) the account file at path.
func OpenBoltAccounts(path string) (*BoltAccounts, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("accounts db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open accounts: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltAccounts{db: db}, nil
}

func (b *BoltAccounts) Lookup(email string) (Account, bool, error) {
	var (
		a     Account
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketAccounts).Get([]byte(normalizeEmail(email)))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &a)
	})
	return a, found, err
}

func (b *BoltAccounts) Insert(a Account) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccounts)
		key := []byte(normalizeEmail(a.Email))
		if bucket.Get(key) != nil {
			return ErrEmailInUse
		}
		raw, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return bucket.Put(key, raw)
	})
}

func (b *BoltAccounts) SetPassword(email string, hash []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAccounts)
		key := []byte(normalizeEmail(email))
		raw := bucket.Get(key)
		if raw == nil {
			return ErrUnknownEmail
		}
		var a Account
		if err := json.Unmarshal(raw, &a); err != nil {
			return err
		}
		a.PasswordHash = hash
		updated, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return bucket.Put(key, updated)
	})
}

// Close releases the underlying file.
func (b *BoltAccounts) Close() error {
	return b.db.Close()
}

var (
	_ Accounts = (*MemoryAccounts)(nil)
	_ Accounts = (*BoltAccounts)(nil)
)
