package attest

import (
	"fmt"
	"math"
	"time"

	"github.com/icsattest/icsattest/crypto"
	"github.com/icsattest/icsattest/log"
)

// DefaultValueScale converts fractional sensor readings into the integer
// domain the range proof commits to: three decimal places of precision.
const DefaultValueScale = 1000

// ProofSource produces the range-proof body for a committed value. Proof
// generation lives outside this client (the collector side or a companion
// prover library); the attestor only builds the commitment and the
// envelope around whatever the source returns.
type ProofSource interface {
	Prove(value uint64, gamma crypto.Scalar, rangeMin, rangeMax uint64) (crypto.ProofEnvelope, error)
}

// NoProofSource is the ProofSource used when no companion prover is
// configured: every attestation fails with a recoverable error, which the
// streaming engine records as a failed sample without aborting the run.
type NoProofSource struct{}

// Prove implements ProofSource.
func (NoProofSource) Prove(uint64, crypto.Scalar, uint64, uint64) (crypto.ProofEnvelope, error) {
	return crypto.ProofEnvelope{}, fmt.Errorf("no companion prover configured")
}

// BulletproofPayload is the range-proof request envelope. The committed
// value never appears; range_min/range_max are in the scaled integer
// domain.
type BulletproofPayload struct {
	SensorID   string               `json:"sensor_id"`
	Timestamp  float64              `json:"timestamp"`
	Commitment string               `json:"commitment"`
	Proof      crypto.ProofEnvelope `json:"proof"`
	RangeMin   uint64               `json:"range_min"`
	RangeMax   uint64               `json:"range_max"`
}

// Endpoint implements Payload.
func (BulletproofPayload) Endpoint() string { return "/api/v1/verify/bulletproof" }

// BulletproofAttestor hides each reading inside a Pedersen commitment and
// attaches a range proof obtained from its ProofSource. An optional
// self-verification pass runs the local verifier over the outgoing proof,
// a bring-up cross-check that never blocks transmission.
type BulletproofAttestor struct {
	gens     *crypto.GeneratorSet
	source   ProofSource
	scale    float64
	verifier *crypto.Verifier
	logger   *log.Logger
}

// NewBulletproofAttestor derives the generator set for the given bit
// length. source supplies proof bodies and may not be nil.
func NewBulletproofAttestor(bitLength int, source ProofSource) (*BulletproofAttestor, error) {
	if source == nil {
		return nil, fmt.Errorf("bulletproof: nil proof source")
	}
	v, err := crypto.NewVerifier(bitLength)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: %w", err)
	}
	return &BulletproofAttestor{
		gens:   v.Generators(),
		source: source,
		scale:  DefaultValueScale,
		logger: log.Default().Module("attest").With("algorithm", "bulletproofs"),
	}, nil
}

// EnableSelfVerify turns on the local cross-check of every outgoing proof.
func (a *BulletproofAttestor) EnableSelfVerify() {
	v, err := crypto.NewVerifierWithGenerators(a.gens)
	if err == nil {
		a.verifier = v
	}
}

// Algorithm implements Attestor.
func (a *BulletproofAttestor) Algorithm() string { return "bulletproofs" }

// Commit computes the Pedersen commitment v·G + γ·H over the attestor's
// generator set.
func (a *BulletproofAttestor) Commit(value uint64, gamma crypto.Scalar) crypto.Point {
	return a.gens.G.Mul(crypto.ScalarFromUint64(value)).Add(a.gens.H.Mul(gamma))
}

// Attest implements Attestor. The reading is scaled to the integer domain
// before committing; values outside [0, 2ⁿ−1] after scaling are rejected.
func (a *BulletproofAttestor) Attest(sensorID string, value float64, ts time.Time) (Payload, error) {
	if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, fmt.Errorf("bulletproof: reading %v is not representable", value)
	}
	maxRange := (uint64(1) << uint(a.gens.N)) - 1
	scaled := uint64(math.Round(value * a.scale))
	if scaled > maxRange {
		return nil, fmt.Errorf("bulletproof: scaled reading %d exceeds %d-bit range", scaled, a.gens.N)
	}

	gamma, err := crypto.RandomScalar()
	if err != nil {
		return nil, fmt.Errorf("bulletproof: blinding: %w", err)
	}
	commitment := a.Commit(scaled, gamma)

	proof, err := a.source.Prove(scaled, gamma, 0, maxRange)
	if err != nil {
		return nil, fmt.Errorf("bulletproof: proof source: %w", err)
	}

	if a.verifier != nil {
		res := a.verifier.Verify(commitment.Hex(), &proof, 0, maxRange, nil)
		if !res.Verified {
			a.logger.Warn("outgoing proof failed self-verification",
				"sensor_id", sensorID, "root_cause", string(res.RootCause))
		}
	}

	return BulletproofPayload{
		SensorID:   sensorID,
		Timestamp:  float64(ts.UnixNano()) / 1e9,
		Commitment: commitment.Hex(),
		Proof:      proof,
		RangeMin:   0,
		RangeMax:   maxRange,
	}, nil
}
