package crypto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/icsattest/icsattest/log"
)

// MaxRounds bounds the inner-product recursion: proofs for bit lengths up
// to 1024. Anything deeper is rejected before any arithmetic runs.
const MaxRounds = 10

// RootCause is the closed set of diagnostic tags a verification failure
// can carry. The set is part of the wire contract with the peer.
type RootCause string

const (
	CauseRangeInvalid        RootCause = "range_invalid"
	CauseRangeScaleMismatch  RootCause = "range_scale_mismatch"
	CauseCommitmentParse     RootCause = "commitment_parse_failed"
	CauseProofParse          RootCause = "proof_parse_failed"
	CauseProofComponentParse RootCause = "proof_component_parse_failed"
	CauseIPPInvalidFormat    RootCause = "inner_product_proof_invalid_format"
	CauseIPPMissingAB        RootCause = "inner_product_proof_missing_ab"
	CauseMainEquation        RootCause = "main_equation_failed"
	CauseIPPFailed           RootCause = "inner_product_proof_failed"
	CauseClientChallenge     RootCause = "client_challenge_mismatch"
	CauseException           RootCause = "exception"
)

// VerificationResult is the structured outcome of one proof verification.
type VerificationResult struct {
	Verified         bool    `json:"verified"`
	ProcessingTimeMS float64 `json:"processing_time_ms"`
	Algorithm        string  `json:"algorithm"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	ProofSizeBytes   int     `json:"proof_size_bytes,omitempty"`
	EquationMatch    *bool   `json:"equation_match,omitempty"`

	// Diagnostic annotations. Client-supplied hints never change the
	// verdict; they are recorded here so a misbehaving prover can see
	// what was ignored.
	ClientModeIgnored       string `json:"client_mode_ignored,omitempty"`
	ClientChallengesIgnored bool   `json:"client_challenges_ignored,omitempty"`

	RootCause      RootCause      `json:"root_cause,omitempty"`
	Evidence       string         `json:"evidence,omitempty"`
	FixInstruction string         `json:"fix_instruction,omitempty"`
	DebugValues    map[string]any `json:"debug_values,omitempty"`
}

// VerifyOptions carries the optional diagnostic inputs of a verification
// request. Everything here is advisory: Debug widens the result, the
// client fields are logged and echoed but never trusted.
type VerifyOptions struct {
	Debug            bool
	ClientChallenges map[string]string
	ClientMode       string
}

// Verifier checks Bulletproof range proofs over secp256k1. It owns an
// immutable generator set and is safe for concurrent use; each Verify call
// is strictly sequential internally.
type Verifier struct {
	bits   int
	gens   *GeneratorSet
	logger *log.Logger
}

// NewVerifier derives the generator set for the given bit length. The bit
// length must be a power of two no greater than 1<<MaxRounds.
func NewVerifier(bitLength int) (*Verifier, error) {
	if bitLength < 2 || bitLength&(bitLength-1) != 0 {
		return nil, fmt.Errorf("verifier: bit length %d is not a power of two", bitLength)
	}
	if rounds(bitLength) > MaxRounds {
		return nil, fmt.Errorf("verifier: bit length %d exceeds %d rounds", bitLength, MaxRounds)
	}
	return NewVerifierWithGenerators(NewGeneratorSet(bitLength))
}

// NewVerifierWithGenerators builds a verifier around an existing generator
// set, typically one loaded from a bring-up dump.
func NewVerifierWithGenerators(gs *GeneratorSet) (*Verifier, error) {
	if gs == nil || len(gs.Gv) != gs.N || len(gs.Hv) != gs.N {
		return nil, fmt.Errorf("verifier: malformed generator set")
	}
	return &Verifier{
		bits:   gs.N,
		gens:   gs,
		logger: log.Default().Module("bulletproof"),
	}, nil
}

// BitLength returns the proof bit length this verifier accepts.
func (v *Verifier) BitLength() int { return v.bits }

// Generators exposes the shared generator set for diagnostics.
func (v *Verifier) Generators() *GeneratorSet { return v.gens }

// MaxRange returns the largest representable committed value, 2ⁿ−1.
func (v *Verifier) MaxRange() uint64 {
	return (uint64(1) << uint(v.bits)) - 1
}

// Verify re-derives the full proof verification: Fiat-Shamir challenges in
// fixed order, the main commitment-balance equation, then the recursive
// inner-product argument. Client-supplied challenges and mode hints are
// ignored for the verdict and only annotated. opts may be nil.
func (v *Verifier) Verify(commitment string, proof *ProofEnvelope, rangeMin, rangeMax uint64, opts *VerifyOptions) VerificationResult {
	start := time.Now()
	if opts == nil {
		opts = &VerifyOptions{}
	}

	res := VerificationResult{Algorithm: "bulletproofs"}
	if opts.ClientMode != "" {
		v.logger.Info("client mode ignored, full verification enforced", "client_mode", opts.ClientMode)
		res.ClientModeIgnored = "client_mode_ignored_full_math_enforced"
	}
	ccPresent := false
	for _, cv := range opts.ClientChallenges {
		if cv != "" {
			ccPresent = true
			break
		}
	}
	res.ClientChallengesIgnored = ccPresent

	fail := func(cause RootCause, msg, evidence, fix string) VerificationResult {
		res.Verified = false
		res.ProcessingTimeMS = msSince(start)
		res.ErrorMessage = msg
		res.RootCause = cause
		res.Evidence = evidence
		res.FixInstruction = fix
		v.logger.Warn("verification rejected", "root_cause", string(cause), "evidence", evidence)
		return res
	}

	// Range pre-checks run before any parsing: they are the cheapest way
	// a misconfigured prover fails.
	if rangeMin >= rangeMax {
		return fail(CauseRangeInvalid,
			"invalid range: min >= max",
			fmt.Sprintf("range_min=%d >= range_max=%d", rangeMin, rangeMax),
			"ensure_range_min_less_than_range_max_in_integer_scale")
	}
	if maxVal := v.MaxRange(); rangeMax > maxVal {
		return fail(CauseRangeScaleMismatch,
			fmt.Sprintf("range too large for %d-bit proof", v.bits),
			fmt.Sprintf("range_max=%d > max_representable=%d", rangeMax, maxVal),
			"scale_range_to_integer_domain_matching_commitment_value_scale")
	}

	// The proof structure is validated before the commitment, so a request
	// that is broken on both ends reports the proof as the root cause.
	if proof == nil {
		return fail(CauseProofParse, "missing proof", "proof_absent",
			"ensure_proof_contains_A_S_T1_T2_tau_x_mu_t_inner_product_proof")
	}
	p, pf := v.parseProof(proof)
	if pf != nil {
		return fail(pf.cause, pf.message, pf.evidence, pf.fix)
	}
	V, err := ParsePoint(commitment)
	if err != nil {
		return fail(CauseCommitmentParse,
			fmt.Sprintf("invalid commitment format: %v", err),
			"commitment_hex_invalid: "+truncate(err.Error(), 50),
			"ensure_commitment_is_33_or_65_byte_compressed_SEC1_hex")
	}

	// Fiat-Shamir challenges, fixed order. Never taken from the prover.
	ts := NewTranscript(v.bits)
	y := ts.Challenge("y", p.a, p.s)
	z := ts.Challenge("z", p.a, p.s, y)
	x := ts.Challenge("x", p.t1, p.t2, z)

	mismatch := v.compareClientChallenges(opts.ClientChallenges, y, z, x)

	delta := Delta(y, z, v.bits)
	z2 := z.Square()
	x2 := x.Square()

	left := v.gens.G.Mul(p.tHat).Add(v.gens.H.Mul(p.tauX))
	right := V.Mul(z2).Add(v.gens.G.Mul(delta)).Add(p.t1.Mul(x)).Add(p.t2.Mul(x2))
	equationMatch := left.Equal(right)
	res.EquationMatch = &equationMatch

	v.logger.Debug("main equation",
		"left", left.Hex(), "right", right.Hex(), "match", equationMatch)

	if !equationMatch {
		// The verdict comes from our own arithmetic either way; when the
		// prover also sent challenges that disagree with ours, that
		// disagreement is overwhelmingly the actual root of the failure.
		cause, evidence, fix := CauseMainEquation,
			"left_hex != right_hex",
			"check_generators_G_H_and_delta_formula_match_server"
		if ccPresent && mismatch {
			cause = CauseClientChallenge
			evidence = "client_provided_yz_x != server_FS"
			fix = "do_not_send_challenges_and_recompute_proof_with_server_FS_order"
		}
		res.Verified = false
		res.ProcessingTimeMS = msSince(start)
		res.ErrorMessage = "main verification equation failed"
		res.RootCause = cause
		res.Evidence = evidence
		res.FixInstruction = fix
		if opts.Debug {
			res.DebugValues = v.debugValues(p, V, y, z, x, delta, left, right, false, false, opts, res.ProcessingTimeMS)
		}
		v.logger.Warn("verification rejected", "root_cause", string(cause))
		return res
	}

	ippOK := v.verifyInnerProduct(p, x, y)

	res.Verified = ippOK
	res.ProcessingTimeMS = msSince(start)
	if raw, err := json.Marshal(proof); err == nil {
		res.ProofSizeBytes = len(raw)
	}
	if !ippOK {
		res.ErrorMessage = "inner product proof failed"
		res.RootCause = CauseIPPFailed
		res.Evidence = "IPP_L_R_verification_failed"
		res.FixInstruction = "check_inner_product_proof_L_R_vectors_and_final_a_b_values"
	}
	if opts.Debug {
		res.DebugValues = v.debugValues(p, V, y, z, x, delta, left, right, true, ippOK, opts, res.ProcessingTimeMS)
	}
	v.logger.Info("verification finished",
		"verified", res.Verified, "elapsed_ms", res.ProcessingTimeMS)
	return res
}

// verifyInnerProduct runs the logarithmic reduction. g' starts as the raw
// generator vector; h' carries the y-inverse weighting in prover order,
// starting at y^{-(n-1)} and multiplying by y per element.
func (v *Verifier) verifyInnerProduct(p *rangeProof, x, y Scalar) bool {
	n := v.bits

	P := p.a.Add(p.s.Mul(x))

	gPrime := make([]Point, n)
	hPrime := make([]Point, n)
	copy(gPrime, v.gens.Gv)
	yInvPow := y.Inverse().Pow(uint64(n - 1))
	for i := 0; i < n; i++ {
		hPrime[i] = v.gens.Hv[i].Mul(yInvPow)
		yInvPow = yInvPow.Mul(y)
	}

	for i := range p.ippL {
		xi := RoundChallenge(p.ippL[i], p.ippR[i])
		if xi.IsZero() {
			v.logger.Warn("zero round challenge", "round", i)
			return false
		}
		xiInv := xi.Inverse()

		P = p.ippL[i].Mul(xiInv).Add(P).Add(p.ippR[i].Mul(xi))

		half := len(gPrime) / 2
		if half == 0 {
			break
		}
		nextG := make([]Point, half)
		nextH := make([]Point, half)
		for j := 0; j < half; j++ {
			nextG[j] = gPrime[j].Mul(xiInv).Add(gPrime[half+j].Mul(xi))
			nextH[j] = hPrime[j].Mul(xi).Add(hPrime[half+j].Mul(xiInv))
		}
		gPrime, hPrime = nextG, nextH
	}
	if len(gPrime) != 1 || len(hPrime) != 1 {
		v.logger.Error("inner product reduction ended with wrong vector sizes",
			"g", len(gPrime), "h", len(hPrime))
		return false
	}

	c := p.ippA.Mul(p.ippB)
	expected := gPrime[0].Mul(p.ippA).Add(hPrime[0].Mul(p.ippB)).Add(v.gens.H.Mul(c))
	return P.Equal(expected)
}

// compareClientChallenges logs how prover-sent challenges compare to ours.
// Purely diagnostic: the return value feeds root-cause attribution, never
// the verdict.
func (v *Verifier) compareClientChallenges(cc map[string]string, y, z, x Scalar) bool {
	if len(cc) == 0 {
		return false
	}
	mismatch := false
	for _, c := range []struct {
		name   string
		server Scalar
	}{{"y", y}, {"z", z}, {"x", x}} {
		client, ok := cc[c.name]
		if !ok || client == "" {
			continue
		}
		clean := strings.ToLower(strings.TrimPrefix(client, "0x"))
		match := strings.TrimLeft(clean, "0") == strings.TrimLeft(c.server.Hex(), "0")
		if !match {
			mismatch = true
		}
		v.logger.Info("client challenge ignored",
			"challenge", c.name, "client", client, "server", c.server.Hex(), "match", match)
	}
	return mismatch
}

// VerifyStructure performs the parse-and-shape checks only, with no group
// arithmetic. It exists for bring-up tooling and is never called by
// Verify; a structurally valid proof is in no way a verified proof.
func (v *Verifier) VerifyStructure(commitment string, proof *ProofEnvelope) error {
	if proof == nil {
		return fmt.Errorf("missing proof")
	}
	if _, pf := v.parseProof(proof); pf != nil {
		return fmt.Errorf("%s: %s", pf.cause, pf.message)
	}
	if _, err := ParsePoint(commitment); err != nil {
		return fmt.Errorf("commitment: %w", err)
	}
	return nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
