// Package keys owns the device's RSA key pair: it loads or generates the
// pair, persists it through the settings store, and performs the private-key
// decryption of inbound command envelopes.
//
// The private key never leaves this package except as the persisted PEM
// blob, and is never logged.
package keys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/urmzd/doorlock/pkg/db"
)

// KeyBits is the modulus size of generated keys.
const KeyBits = 2048

const (
	pemTypePrivate = "RSA PRIVATE KEY"
	pemTypePublic  = "PUBLIC KEY"
)

// Padding selects the RSA encryption padding scheme.
type Padding uint8

const (
	// PaddingOAEP is RSA-OAEP with SHA-256 and an empty label.
	PaddingOAEP Padding = iota

	// PaddingPKCS1v15 is RSAES-PKCS1-v1_5, the default of mbedTLS pk_decrypt.
	PaddingPKCS1v15
)

// String returns the configuration name of the padding.
func (p Padding) String() string {
	switch p {
	case PaddingOAEP:
		return "oaep"
	case PaddingPKCS1v15:
		return "pkcs1v15"
	default:
		return "unknown"
	}
}

// ParsePadding maps a configuration name to a Padding.
func ParsePadding(name string) (Padding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "oaep":
		return PaddingOAEP, nil
	case "pkcs1v15", "pkcs1", "pkcs1-v1_5":
		return PaddingPKCS1v15, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPadding, name)
	}
}

// Overhead returns the number of bytes the padding consumes in one block.
func (p Padding) Overhead() int {
	if p == PaddingPKCS1v15 {
		return 11
	}
	return 2*sha256.Size + 2
}

// KeyPair is the device's asymmetric key pair in serialized form.
type KeyPair struct {
	PublicKeyPEM  []byte
	PrivateKeyPEM []byte
}

// Store is the subset of the settings store the manager needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetMany(ctx context.Context, values map[string]string) error
}

// Manager loads, generates and uses the device key pair.
type Manager struct {
	store   Store
	padding Padding
	bits    int

	mu      sync.RWMutex
	private *rsa.PrivateKey
	pair    *KeyPair
}

// Option configures a Manager.
type Option func(*Manager)

// WithPadding sets the padding scheme used by Decrypt.
func WithPadding(p Padding) Option {
	return func(m *Manager) { m.padding = p }
}

// WithKeyBits overrides the generated modulus size.
func WithKeyBits(bits int) Option {
	return func(m *Manager) { m.bits = bits }
}

// NewManager creates a manager backed by store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		padding: PaddingOAEP,
		bits:    KeyBits,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Padding returns the configured padding scheme.
func (m *Manager) Padding() Padding {
	return m.padding
}

// EnsureKeyPair returns the device key pair, loading it from the store or
// generating and persisting a new one. Once a pair is held it is returned
// unchanged on every call.
func (m *Manager) EnsureKeyPair(ctx context.Context) (*KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pair != nil {
		return m.pair, nil
	}

	priv, pair, err := m.load(ctx)
	if err == nil {
		m.private, m.pair = priv, pair
		log.Info().Int("bits", priv.N.BitLen()).Msg("Loaded device key pair")
		return m.pair, nil
	}
	if !errors.Is(err, db.ErrSettingNotFound) {
		if !errors.Is(err, ErrMalformed) {
			return nil, fmt.Errorf("failed to load key pair: %w", err)
		}
		log.Warn().Err(err).Msg("Stored key pair unusable, regenerating")
	}

	priv, pair, err = m.generate()
	if err != nil {
		return nil, err
	}

	if err := m.store.SetMany(ctx, map[string]string{
		db.KeyPublicKey:  string(pair.PublicKeyPEM),
		db.KeyPrivateKey: string(pair.PrivateKeyPEM),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist key pair: %w", err)
	}

	m.private, m.pair = priv, pair
	log.Info().Int("bits", m.bits).Msg("Generated device key pair")
	return m.pair, nil
}

// PublicKeyPEM returns the PEM encoded public key, or nil before EnsureKeyPair.
func (m *Manager) PublicKeyPEM() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pair == nil {
		return nil
	}
	return m.pair.PublicKeyPEM
}

// Decrypt decrypts exactly one modulus-sized ciphertext block.
func (m *Manager) Decrypt(ciphertext []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.private == nil {
		return nil, ErrKeyUnavailable
	}
	if len(ciphertext) != m.private.Size() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformed, len(ciphertext), m.private.Size())
	}

	var (
		plaintext []byte
		err       error
	)
	switch m.padding {
	case PaddingPKCS1v15:
		plaintext, err = rsa.DecryptPKCS1v15(nil, m.private, ciphertext)
	default:
		plaintext, err = rsa.DecryptOAEP(sha256.New(), nil, m.private, ciphertext, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return plaintext, nil
}

// load reads both halves from the store and checks they belong together.
func (m *Manager) load(ctx context.Context) (*rsa.PrivateKey, *KeyPair, error) {
	privPEM, err := m.store.Get(ctx, db.KeyPrivateKey)
	if err != nil {
		return nil, nil, err
	}
	pubPEM, err := m.store.Get(ctx, db.KeyPublicKey)
	if err != nil {
		return nil, nil, err
	}

	priv, err := parsePrivateKey([]byte(privPEM))
	if err != nil {
		return nil, nil, err
	}
	pub, err := ParsePublicKey([]byte(pubPEM))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, nil, fmt.Errorf("%w: public key does not match private key", ErrMalformed)
	}

	return priv, &KeyPair{PublicKeyPEM: []byte(pubPEM), PrivateKeyPEM: []byte(privPEM)}, nil
}

func (m *Manager) generate() (*rsa.PrivateKey, *KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, m.bits)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrKeyGeneration, err)
	}

	pair := &KeyPair{
		PublicKeyPEM:  pem.EncodeToMemory(&pem.Block{Type: pemTypePublic, Bytes: pubDER}),
		PrivateKeyPEM: pem.EncodeToMemory(&pem.Block{Type: pemTypePrivate, Bytes: x509.MarshalPKCS1PrivateKey(priv)}),
	}
	return priv, pair, nil
}

func parsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: private key is not PEM", ErrMalformed)
	}

	switch block.Type {
	case pemTypePrivate:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: private key is not RSA", ErrMalformed)
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("%w: unexpected PEM block %q", ErrMalformed, block.Type)
	}
}

// ParsePublicKey parses a PEM encoded RSA public key (PKIX or PKCS#1).
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("public key is not PEM")
	}

	switch block.Type {
	case pemTypePublic:
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("public key is not RSA")
		}
		return rsaKey, nil
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// Encrypt encrypts plaintext to the PEM encoded public key. It is the
// coordinator-side counterpart of Decrypt.
func Encrypt(publicKeyPEM, plaintext []byte, padding Padding) ([]byte, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	if limit := pub.Size() - padding.Overhead(); len(plaintext) > limit {
		return nil, fmt.Errorf("plaintext is %d bytes, one block holds at most %d", len(plaintext), limit)
	}

	switch padding {
	case PaddingPKCS1v15:
		return rsa.EncryptPKCS1v15(rand.Reader, pub, plaintext)
	default:
		return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plaintext, nil)
	}
}
