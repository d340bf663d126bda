package attest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/hkdf"
)

// hmacKeySize is the symmetric key length shared with the collector.
const hmacKeySize = 32

// HMACPayload carries one HMAC-attested reading. The plaintext value is
// exposed; this scheme trades privacy for speed.
type HMACPayload struct {
	SensorID     string  `json:"sensor_id"`
	Value        float64 `json:"value"`
	Timestamp    float64 `json:"timestamp"`
	TimestampISO string  `json:"timestamp_iso"`
	MAC          string  `json:"mac"`
	Algorithm    string  `json:"algorithm"`
	MACSizeBytes int     `json:"mac_size_bytes"`
}

// Endpoint implements Payload.
func (HMACPayload) Endpoint() string { return "/api/v1/verify/hmac" }

// HMACAttestor authenticates readings with HMAC-SHA256 under a symmetric
// key shared with the collector. Immutable after construction.
type HMACAttestor struct {
	key []byte
}

// NewHMACAttestor uses the given 32-byte key directly. A nil key generates
// a random one, which is only useful when the collector learns it through
// local verification (tests, loopback runs).
func NewHMACAttestor(key []byte) (*HMACAttestor, error) {
	if key == nil {
		key = make([]byte, hmacKeySize)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("hmac: key generation: %w", err)
		}
	}
	if len(key) != hmacKeySize {
		return nil, fmt.Errorf("hmac: key must be %d bytes, got %d", hmacKeySize, len(key))
	}
	return &HMACAttestor{key: append([]byte(nil), key...)}, nil
}

// NewHMACAttestorFromSecret derives the MAC key from a configured secret
// via HKDF-SHA256, so deployments can share a passphrase-like secret
// instead of raw key bytes. Salt may be nil.
func NewHMACAttestorFromSecret(secret, salt []byte) (*HMACAttestor, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("hmac: empty secret")
	}
	key := make([]byte, hmacKeySize)
	kdf := hkdf.New(sha256.New, secret, salt, []byte("icsattest-hmac-v1"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("hmac: key derivation: %w", err)
	}
	return &HMACAttestor{key: key}, nil
}

// Algorithm implements Attestor.
func (a *HMACAttestor) Algorithm() string { return "hmac" }

// Attest implements Attestor.
func (a *HMACAttestor) Attest(sensorID string, value float64, ts time.Time) (Payload, error) {
	iso := ts.Format(timeLayout)
	mac := a.mac(value, iso)
	return HMACPayload{
		SensorID:     sensorID,
		Value:        value,
		Timestamp:    float64(ts.UnixNano()) / 1e9,
		TimestampISO: iso,
		MAC:          hex.EncodeToString(mac),
		Algorithm:    "hmac-sha256",
		MACSizeBytes: sha256.Size,
	}, nil
}

// Verify recomputes the MAC for a payload and compares in constant time.
// This is the local counterpart of the collector's check.
func (a *HMACAttestor) Verify(p HMACPayload) bool {
	got, err := hex.DecodeString(p.MAC)
	if err != nil {
		return false
	}
	return hmac.Equal(a.mac(p.Value, p.TimestampISO), got)
}

func (a *HMACAttestor) mac(value float64, iso string) []byte {
	m := hmac.New(sha256.New, a.key)
	m.Write(canonicalMessage(value, iso))
	return m.Sum(nil)
}
