package crypto

import "fmt"

// debugValues assembles the bit-level echo returned when a caller asks for
// debug output: every challenge, both equation sides, every proof point
// and the server generators, plus length assertions. This is what makes
// interoperability bring-up against a foreign prover tractable.
func (v *Verifier) debugValues(p *rangeProof, V Point, y, z, x, delta Scalar, left, right Point, equationMatch, ippVerified bool, opts *VerifyOptions, elapsedMS float64) map[string]any {
	n := v.bits

	sumY, sumTwo := Scalar{}, Scalar{}
	yPow := ScalarFromUint64(1)
	twoPow := ScalarFromUint64(1)
	two := ScalarFromUint64(2)
	for i := 0; i < n; i++ {
		sumY = sumY.Add(yPow)
		sumTwo = sumTwo.Add(twoPow)
		yPow = yPow.Mul(y)
		twoPow = twoPow.Mul(two)
	}

	dv := map[string]any{
		"y":        y.Hex(),
		"z":        z.Hex(),
		"x":        x.Hex(),
		"delta_yz": delta.Hex(),

		"t_hat": p.tHat.Hex(),
		"tau_x": p.tauX.Hex(),
		"mu":    p.mu.Hex(),

		"Left":                   left.Hex(),
		"Right":                  right.Hex(),
		"left_equals_right":      equationMatch,
		"equation_match":         equationMatch,
		"inner_product_verified": ippVerified,

		"verification_time_ms": elapsedMS,

		"sum_y_powers": sumY.Hex(),
		"sum_2_powers": sumTwo.Hex(),
		"i_range":      fmt.Sprintf("0..%d", n-1),
		"n":            n,

		"V":  V.Hex(),
		"A":  p.a.Hex(),
		"S":  p.s.Hex(),
		"T1": p.t1.Hex(),
		"T2": p.t2.Hex(),

		"G": v.gens.G.Hex(),
		"H": v.gens.H.Hex(),

		"point_lengths": map[string]int{
			"V": len(V.Compressed()), "A": len(p.a.Compressed()),
			"S": len(p.s.Compressed()), "T1": len(p.t1.Compressed()),
			"T2": len(p.t2.Compressed()), "expected": 33,
		},
		"scalar_lengths": map[string]int{
			"tau_x": 32, "mu": 32, "t_hat": 32, "expected": 32,
		},
	}
	ippL := make([]string, len(p.ippL))
	for i, pt := range p.ippL {
		ippL[i] = pt.Hex()
	}
	ippR := make([]string, len(p.ippR))
	for i, pt := range p.ippR {
		ippR[i] = pt.Hex()
	}
	dv["L"] = ippL
	dv["R"] = ippR
	if len(opts.ClientChallenges) > 0 {
		dv["client_challenges_ignored"] = true
		dv["client_challenges"] = opts.ClientChallenges
	}
	return dv
}
