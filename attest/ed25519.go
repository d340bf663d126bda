package attest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Ed25519Payload carries one signed reading. As with HMAC the value is
// exposed; unlike HMAC the collector only needs the public key.
type Ed25519Payload struct {
	SensorID           string  `json:"sensor_id"`
	Value              float64 `json:"value"`
	Timestamp          float64 `json:"timestamp"`
	TimestampISO       string  `json:"timestamp_iso"`
	Signature          string  `json:"signature"`
	PublicKey          string  `json:"public_key"`
	Algorithm          string  `json:"algorithm"`
	SignatureSizeBytes int     `json:"signature_size_bytes"`
}

// Endpoint implements Payload.
func (Ed25519Payload) Endpoint() string { return "/api/v1/verify/ed25519" }

// Ed25519Attestor signs readings with a fixed keypair. The public key is
// included in every payload; distributing it authentically is the
// deployment's problem, not this package's.
type Ed25519Attestor struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519Attestor generates a fresh keypair.
func NewEd25519Attestor() (*Ed25519Attestor, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("ed25519: key generation: %w", err)
	}
	return &Ed25519Attestor{priv: priv, pub: pub}, nil
}

// NewEd25519AttestorFromSeed builds the attestor from a 32-byte seed, for
// deployments that provision keys out-of-band.
func NewEd25519AttestorFromSeed(seed []byte) (*Ed25519Attestor, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519: seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Attestor{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Algorithm implements Attestor.
func (a *Ed25519Attestor) Algorithm() string { return "ed25519" }

// PublicKey returns the verifying key.
func (a *Ed25519Attestor) PublicKey() ed25519.PublicKey { return a.pub }

// Attest implements Attestor.
func (a *Ed25519Attestor) Attest(sensorID string, value float64, ts time.Time) (Payload, error) {
	iso := ts.Format(timeLayout)
	sig := ed25519.Sign(a.priv, canonicalMessage(value, iso))
	return Ed25519Payload{
		SensorID:           sensorID,
		Value:              value,
		Timestamp:          float64(ts.UnixNano()) / 1e9,
		TimestampISO:       iso,
		Signature:          hex.EncodeToString(sig),
		PublicKey:          hex.EncodeToString(a.pub),
		Algorithm:          "ed25519",
		SignatureSizeBytes: ed25519.SignatureSize,
	}, nil
}

// Verify checks a payload signature against the payload's embedded public
// key, the same check the collector performs.
func Verify(p Ed25519Payload) bool {
	pub, err := hex.DecodeString(p.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), canonicalMessage(p.Value, p.TimestampISO), sig)
}
