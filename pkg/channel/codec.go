// Package channel converts between control-channel text frames and command
// bytes. Inbound envelopes are base64 RSA ciphertext; outbound control
// messages are plain UTF-8 and rely on the transport for confidentiality.
package channel

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/urmzd/doorlock/pkg/keys"
)

// ErrBase64Invalid indicates an envelope that is not valid base64.
var ErrBase64Invalid = errors.New("envelope is not valid base64")

// Decrypter decrypts a single ciphertext block.
type Decrypter interface {
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Codec decodes inbound envelopes and encodes outbound control messages.
type Codec struct {
	keys Decrypter
}

// NewCodec creates a codec that decrypts with d.
func NewCodec(d Decrypter) *Codec {
	return &Codec{keys: d}
}

// DecodeEnvelope base64-decodes text and decrypts the resulting block.
func (c *Codec) DecodeEnvelope(text string) ([]byte, error) {
	ciphertext, err := decodeBase64(text)
	if err != nil {
		return nil, err
	}

	plaintext, err := c.keys.Decrypt(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt envelope: %w", err)
	}
	return plaintext, nil
}

// EncodeOutgoing returns the outbound text for a control message. Outbound
// messages are not re-encrypted.
func (c *Codec) EncodeOutgoing(plaintext []byte) string {
	return string(plaintext)
}

// Seal encrypts plaintext to the device public key and base64-encodes it,
// producing an envelope DecodeEnvelope accepts.
func Seal(publicKeyPEM, plaintext []byte, padding keys.Padding) (string, error) {
	ciphertext, err := keys.Encrypt(publicKeyPEM, plaintext, padding)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Status is the outbound reply to a status request.
type Status struct {
	Status string `json:"status"`
}

// StatusMessage builds the status reply body.
func StatusMessage(connected bool) []byte {
	s := Status{Status: "disconnected"}
	if connected {
		s.Status = "connected"
	}
	b, _ := json.Marshal(s)
	return b
}

func decodeBase64(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrBase64Invalid
	}

	b, err := base64.StdEncoding.DecodeString(text)
	if err == nil {
		return b, nil
	}
	// Some coordinators strip the trailing padding.
	if b, rawErr := base64.RawStdEncoding.DecodeString(text); rawErr == nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrBase64Invalid, err)
}
