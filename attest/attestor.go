// Package attest converts scalar sensor readings into authenticated,
// serializable payloads under one of four schemes: HMAC-SHA256, Ed25519,
// Bulletproof range proofs, and CKKS encrypt-only. The streaming engine
// holds an Attestor and is agnostic to which scheme is active.
package attest

import (
	"fmt"
	"time"
)

// timeLayout is the ISO-8601 form embedded in signed messages. It must
// match the verifying peer exactly; the MAC and signature schemes bind it.
const timeLayout = "2006-01-02T15:04:05"

// Payload is one attested reading, ready for JSON serialization. Each
// scheme has its own concrete payload type; Endpoint routes it to the
// matching verification endpoint on the collector.
type Payload interface {
	// Endpoint is the URL path of the verifying endpoint, relative to
	// the collector base URL.
	Endpoint() string
}

// Attestor produces an authenticated payload for a single scalar reading.
// Implementations are safe for concurrent use once constructed.
type Attestor interface {
	// Algorithm names the scheme ("hmac", "ed25519", "bulletproofs",
	// "ckks") as it appears in payloads and statistics.
	Algorithm() string
	// Attest authenticates one reading taken at ts.
	Attest(sensorID string, value float64, ts time.Time) (Payload, error)
}

// canonicalMessage is the byte string both MAC and signature cover:
// the value at fixed six-decimal precision, "||", then the ISO timestamp.
// The format is binding wire behavior shared with the verifier.
func canonicalMessage(value float64, iso string) []byte {
	return []byte(fmt.Sprintf("%.6f||%s", value, iso))
}
