package attest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icsattest/icsattest/crypto"
)

// stubProofSource returns a fixed envelope so attestor mechanics can be
// tested without a companion prover.
type stubProofSource struct {
	env      crypto.ProofEnvelope
	lastVal  uint64
	lastMin  uint64
	lastMax  uint64
	proveErr error
}

func (s *stubProofSource) Prove(value uint64, _ crypto.Scalar, min, max uint64) (crypto.ProofEnvelope, error) {
	s.lastVal, s.lastMin, s.lastMax = value, min, max
	return s.env, s.proveErr
}

func TestBulletproofAttestScalesAndCommits(t *testing.T) {
	src := &stubProofSource{}
	a, err := NewBulletproofAttestor(32, src)
	require.NoError(t, err)

	p, err := a.Attest("sensor_03", 2.45, time.Now())
	require.NoError(t, err)
	payload := p.(BulletproofPayload)

	require.Equal(t, "/api/v1/verify/bulletproof", payload.Endpoint())
	require.EqualValues(t, 2450, src.lastVal, "2.45 scales to 2450 at three decimals")
	require.EqualValues(t, 0, payload.RangeMin)
	require.EqualValues(t, uint64(1)<<32-1, payload.RangeMax)

	// The commitment must be a parseable non-identity point.
	v, err := crypto.ParsePoint(payload.Commitment)
	require.NoError(t, err)
	require.False(t, v.IsIdentity())
}

func TestBulletproofCommitmentEquation(t *testing.T) {
	a, err := NewBulletproofAttestor(32, &stubProofSource{})
	require.NoError(t, err)

	gens := crypto.NewGeneratorSet(32)
	gamma := crypto.ScalarFromUint64(77)
	commit := a.Commit(12345, gamma)
	want := gens.G.Mul(crypto.ScalarFromUint64(12345)).Add(gens.H.Mul(gamma))
	require.True(t, commit.Equal(want))
}

func TestBulletproofAttestRejectsUnrepresentable(t *testing.T) {
	a, err := NewBulletproofAttestor(32, &stubProofSource{})
	require.NoError(t, err)

	_, err = a.Attest("s", -1.0, time.Now())
	require.Error(t, err)

	// 2^32/1000 + slack overflows the scaled 32-bit domain.
	_, err = a.Attest("s", 4.3e6+1000, time.Now())
	require.Error(t, err)
}

func TestBulletproofNilSource(t *testing.T) {
	_, err := NewBulletproofAttestor(32, nil)
	require.Error(t, err)

	a, err := NewBulletproofAttestor(32, NoProofSource{})
	require.NoError(t, err)
	_, err = a.Attest("s", 1.0, time.Now())
	require.Error(t, err)
}

func TestBulletproofBlindingIsFresh(t *testing.T) {
	src := &stubProofSource{}
	a, err := NewBulletproofAttestor(32, src)
	require.NoError(t, err)

	p1, err := a.Attest("s", 5.0, time.Now())
	require.NoError(t, err)
	p2, err := a.Attest("s", 5.0, time.Now())
	require.NoError(t, err)
	require.NotEqual(t,
		p1.(BulletproofPayload).Commitment,
		p2.(BulletproofPayload).Commitment,
		"equal readings must not produce equal commitments")
}
