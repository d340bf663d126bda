package crypto

import (
	"fmt"
	"math/bits"
)

// InnerProductEnvelope is the wire form of the recursive argument: the
// per-round L/R points and the two final scalars. Field names are binding.
type InnerProductEnvelope struct {
	L []string `json:"L"`
	R []string `json:"R"`
	A string   `json:"a"`
	B string   `json:"b"`
}

// ProofEnvelope is the wire form of a range proof as received from the
// prover: four points, three scalars and the inner-product argument, all
// hex encoded. Field names are binding.
type ProofEnvelope struct {
	A                 string               `json:"A"`
	S                 string               `json:"S"`
	T1                string               `json:"T1"`
	T2                string               `json:"T2"`
	TauX              string               `json:"tau_x"`
	Mu                string               `json:"mu"`
	T                 string               `json:"t"`
	InnerProductProof InnerProductEnvelope `json:"inner_product_proof"`
}

// rangeProof is the parsed, validated form the verifier works with.
type rangeProof struct {
	a, s, t1, t2   Point
	tauX, mu, tHat Scalar
	ippL, ippR     []Point
	ippA, ippB     Scalar
}

// parseFailure carries the structured rejection for a malformed proof:
// the closed root-cause tag plus evidence and a fix hint for the prover.
type parseFailure struct {
	cause    RootCause
	message  string
	evidence string
	fix      string
}

// rounds returns ⌈log₂ n⌉ for the power-of-two bit lengths this deployment
// uses.
func rounds(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// parseProofScalar decodes one named proof scalar, flagging zero and
// out-of-range raw values without rejecting them: reduction happens here,
// at the use site, exactly once.
func (v *Verifier) parseProofScalar(name, s string) (Scalar, error) {
	raw, err := ParseScalar(s)
	if err != nil {
		return Scalar{}, fmt.Errorf("%s: %w", name, err)
	}
	if raw.IsZero() {
		v.logger.Warn("zero scalar in proof input", "component", name)
	} else if !raw.InRange() {
		v.logger.Warn("proof scalar exceeds group order, reducing", "component", name, "raw", raw.Hex())
	}
	return raw.Reduce(), nil
}

// parseProof validates the whole envelope, mapping each failure mode to
// its root cause.
func (v *Verifier) parseProof(env *ProofEnvelope) (*rangeProof, *parseFailure) {
	if env.A == "" && env.S == "" && env.T1 == "" && env.T2 == "" {
		return nil, &parseFailure{
			cause:    CauseProofParse,
			message:  "failed to parse proof",
			evidence: "proof_structure_invalid",
			fix:      "ensure_proof_contains_A_S_T1_T2_tau_x_mu_t_inner_product_proof",
		}
	}

	p := &rangeProof{}
	var err error
	for _, c := range []struct {
		name string
		hex  string
		dst  *Point
	}{
		{"A", env.A, &p.a},
		{"S", env.S, &p.s},
		{"T1", env.T1, &p.t1},
		{"T2", env.T2, &p.t2},
	} {
		if *c.dst, err = ParsePoint(c.hex); err != nil {
			return nil, &parseFailure{
				cause:    CauseProofComponentParse,
				message:  fmt.Sprintf("failed to parse proof component %s: %v", c.name, err),
				evidence: fmt.Sprintf("component_error: %s", c.name),
				fix:      "check_A_S_T1_T2_are_valid_EC_points_and_scalars_are_valid_hex",
			}
		}
	}
	for _, c := range []struct {
		name string
		hex  string
		dst  *Scalar
	}{
		{"tau_x", env.TauX, &p.tauX},
		{"mu", env.Mu, &p.mu},
		{"t", env.T, &p.tHat},
	} {
		if *c.dst, err = v.parseProofScalar(c.name, c.hex); err != nil {
			return nil, &parseFailure{
				cause:    CauseProofComponentParse,
				message:  fmt.Sprintf("failed to parse proof component: %v", err),
				evidence: fmt.Sprintf("component_error: %s", c.name),
				fix:      "check_A_S_T1_T2_are_valid_EC_points_and_scalars_are_valid_hex",
			}
		}
	}

	if f := v.parseInnerProduct(&env.InnerProductProof, p); f != nil {
		return nil, f
	}
	return p, nil
}

func (v *Verifier) parseInnerProduct(ipp *InnerProductEnvelope, p *rangeProof) *parseFailure {
	want := rounds(v.bits)
	if want > MaxRounds {
		return &parseFailure{
			cause:    CauseIPPInvalidFormat,
			message:  fmt.Sprintf("too many proof rounds: %d (max %d)", want, MaxRounds),
			evidence: fmt.Sprintf("rounds=%d > max=%d", want, MaxRounds),
			fix:      "limit_proof_bit_length_to_1024",
		}
	}
	if len(ipp.L) != len(ipp.R) || len(ipp.L) != want {
		return &parseFailure{
			cause:    CauseIPPInvalidFormat,
			message:  fmt.Sprintf("inner product proof needs %d L and R points, got L=%d R=%d", want, len(ipp.L), len(ipp.R)),
			evidence: fmt.Sprintf("L=%d R=%d expected=%d", len(ipp.L), len(ipp.R), want),
			fix:      "ensure_inner_product_proof_is_object_with_L_R_a_b",
		}
	}
	if ipp.A == "" || ipp.B == "" {
		return &parseFailure{
			cause:    CauseIPPMissingAB,
			message:  "missing required inner product proof values (a, b)",
			evidence: "a_or_b_not_in_inner_product_proof",
			fix:      "include_final_a_and_b_scalars_in_inner_product_proof",
		}
	}

	p.ippL = make([]Point, want)
	p.ippR = make([]Point, want)
	var err error
	for i := 0; i < want; i++ {
		if p.ippL[i], err = ParsePoint(ipp.L[i]); err != nil {
			return &parseFailure{
				cause:    CauseIPPInvalidFormat,
				message:  fmt.Sprintf("inner product L[%d]: %v", i, err),
				evidence: fmt.Sprintf("L[%d]_not_a_valid_point", i),
				fix:      "ensure_L_R_are_33_byte_compressed_SEC1_hex",
			}
		}
		if p.ippR[i], err = ParsePoint(ipp.R[i]); err != nil {
			return &parseFailure{
				cause:    CauseIPPInvalidFormat,
				message:  fmt.Sprintf("inner product R[%d]: %v", i, err),
				evidence: fmt.Sprintf("R[%d]_not_a_valid_point", i),
				fix:      "ensure_L_R_are_33_byte_compressed_SEC1_hex",
			}
		}
	}
	if p.ippA, err = v.parseProofScalar("a", ipp.A); err != nil {
		return &parseFailure{
			cause:    CauseIPPMissingAB,
			message:  fmt.Sprintf("inner product a: %v", err),
			evidence: "a_not_a_valid_scalar",
			fix:      "ensure_a_and_b_are_valid_hex_scalars",
		}
	}
	if p.ippB, err = v.parseProofScalar("b", ipp.B); err != nil {
		return &parseFailure{
			cause:    CauseIPPMissingAB,
			message:  fmt.Sprintf("inner product b: %v", err),
			evidence: "b_not_a_valid_scalar",
			fix:      "ensure_a_and_b_are_valid_hex_scalars",
		}
	}
	return nil
}
