package attest

import (
	"crypto/ed25519"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEd25519SignVerify(t *testing.T) {
	a, err := NewEd25519Attestor()
	require.NoError(t, err)

	p, err := a.Attest("sensor_02", 42.5, time.Now())
	require.NoError(t, err)
	payload := p.(Ed25519Payload)

	require.Equal(t, "/api/v1/verify/ed25519", payload.Endpoint())
	require.Equal(t, 64, payload.SignatureSizeBytes)
	require.Equal(t, hex.EncodeToString(a.PublicKey()), payload.PublicKey)
	require.True(t, Verify(payload))

	// A zeroed signature must not verify.
	payload.Signature = hex.EncodeToString(make([]byte, ed25519.SignatureSize))
	require.False(t, Verify(payload))
}

func TestEd25519TamperedValue(t *testing.T) {
	a, err := NewEd25519Attestor()
	require.NoError(t, err)
	p, err := a.Attest("sensor_02", 42.5, time.Now())
	require.NoError(t, err)
	payload := p.(Ed25519Payload)

	payload.Value = 43.5
	require.False(t, Verify(payload))
}

func TestEd25519FromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	a1, err := NewEd25519AttestorFromSeed(seed)
	require.NoError(t, err)
	a2, err := NewEd25519AttestorFromSeed(seed)
	require.NoError(t, err)
	require.Equal(t, a1.PublicKey(), a2.PublicKey())

	ts := time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC)
	p1, err := a1.Attest("s", 7.5, ts)
	require.NoError(t, err)
	p2, err := a2.Attest("s", 7.5, ts)
	require.NoError(t, err)
	require.Equal(t, p1.(Ed25519Payload).Signature, p2.(Ed25519Payload).Signature)

	_, err = NewEd25519AttestorFromSeed([]byte("short"))
	require.Error(t, err)
}
