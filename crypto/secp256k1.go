// Package crypto implements the cryptographic core of the icsattest
// telemetry client: secp256k1 point and scalar arithmetic, deterministic
// generator derivation, Fiat-Shamir transcripts and the Bulletproof
// range-proof verifier.
//
// Group arithmetic is backed by decred's secp256k1 library; this package
// layers the wire conventions on top: SEC1 compressed hex for points,
// 32-byte big-endian hex for scalars, both lowercase and unprefixed.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"
)

// groupOrder is the order of the secp256k1 group, kept as a uint256 so raw
// scalar inputs can be range-checked before reduction.
var groupOrder = uint256.MustFromHex("0xfffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141")

// PointErrorKind distinguishes the ways a point encoding can be rejected.
type PointErrorKind int

const (
	// PointEmpty marks an empty input string.
	PointEmpty PointErrorKind = iota + 1
	// PointBadHex marks non-hex characters or odd-length hex.
	PointBadHex
	// PointBadLength marks byte lengths other than 33 or 65.
	PointBadLength
	// PointBadPrefix marks a type byte inconsistent with the length.
	PointBadPrefix
	// PointNotOnCurve marks coordinates that do not satisfy the curve
	// equation (or an x outside the field).
	PointNotOnCurve
	// PointIdentity marks the point at infinity, which is rejected
	// anywhere a non-identity point is required.
	PointIdentity
)

func (k PointErrorKind) String() string {
	switch k {
	case PointEmpty:
		return "empty"
	case PointBadHex:
		return "invalid hex"
	case PointBadLength:
		return "invalid length"
	case PointBadPrefix:
		return "invalid prefix"
	case PointNotOnCurve:
		return "not on curve"
	case PointIdentity:
		return "point at infinity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PointError reports why a point encoding was rejected. The Kind is stable
// and suitable for programmatic classification; Detail is human-oriented.
type PointError struct {
	Kind   PointErrorKind
	Detail string
}

func (e *PointError) Error() string {
	if e.Detail == "" {
		return "secp256k1: bad point: " + e.Kind.String()
	}
	return "secp256k1: bad point: " + e.Kind.String() + ": " + e.Detail
}

// Point is an element of the secp256k1 group. The zero value is the point
// at infinity. Points are small value types and safe to copy.
type Point struct {
	j secp256k1.JacobianPoint
}

// Generator returns the canonical secp256k1 base point G.
func Generator() Point {
	var one secp256k1.ModNScalar
	one.SetInt(1)
	var p Point
	secp256k1.ScalarBaseMultNonConst(&one, &p.j)
	return p
}

// ParsePoint decodes a hex-encoded SEC1 point. It accepts an optional "0x"
// prefix and any hex case, 33-byte compressed (0x02/0x03) or 65-byte
// uncompressed (0x04) encodings, and rejects everything else with a
// *PointError carrying the precise failure kind.
func ParsePoint(s string) (Point, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return Point{}, &PointError{Kind: PointEmpty}
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, &PointError{Kind: PointBadHex, Detail: err.Error()}
	}
	switch len(raw) {
	case 33:
		if raw[0] != 0x02 && raw[0] != 0x03 {
			return Point{}, &PointError{
				Kind:   PointBadPrefix,
				Detail: fmt.Sprintf("compressed point with type byte 0x%02x", raw[0]),
			}
		}
	case 65:
		if raw[0] != 0x04 {
			return Point{}, &PointError{
				Kind:   PointBadPrefix,
				Detail: fmt.Sprintf("uncompressed point with type byte 0x%02x", raw[0]),
			}
		}
	default:
		return Point{}, &PointError{
			Kind:   PointBadLength,
			Detail: fmt.Sprintf("%d bytes (want 33 or 65)", len(raw)),
		}
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return Point{}, &PointError{Kind: PointNotOnCurve, Detail: err.Error()}
	}
	var p Point
	pub.AsJacobian(&p.j)
	if p.IsIdentity() {
		return Point{}, &PointError{Kind: PointIdentity}
	}
	return p, nil
}

// IsIdentity reports whether p is the point at infinity.
func (p Point) IsIdentity() bool {
	return (p.j.X.IsZero() && p.j.Y.IsZero()) || p.j.Z.IsZero()
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	var r Point
	secp256k1.AddNonConst(&p.j, &q.j, &r.j)
	return r
}

// Mul returns k·p.
func (p Point) Mul(k Scalar) Point {
	var r Point
	pj := p.j
	secp256k1.ScalarMultNonConst(&k.n, &pj, &r.j)
	return r
}

// BaseMul returns k·G for the canonical base point G.
func BaseMul(k Scalar) Point {
	var r Point
	secp256k1.ScalarBaseMultNonConst(&k.n, &r.j)
	return r
}

// Negate returns -p.
func (p Point) Negate() Point {
	if p.IsIdentity() {
		return p
	}
	r := p
	r.j.ToAffine()
	r.j.Y.Negate(1).Normalize()
	return r
}

// Equal reports whether p and q are the same group element.
func (p Point) Equal(q Point) bool {
	pi, qi := p.IsIdentity(), q.IsIdentity()
	if pi || qi {
		return pi == qi
	}
	pa, qa := p.j, q.j
	pa.ToAffine()
	qa.ToAffine()
	return pa.X.Equals(&qa.X) && pa.Y.Equals(&qa.Y)
}

// Compressed returns the 33-byte SEC1 compressed encoding. The identity has
// no SEC1 encoding; it serializes as 33 zero bytes and must be guarded by
// the caller where a real point is contractually required.
func (p Point) Compressed() []byte {
	if p.IsIdentity() {
		return make([]byte, 33)
	}
	a := p.j
	a.ToAffine()
	return secp256k1.NewPublicKey(&a.X, &a.Y).SerializeCompressed()
}

// Uncompressed returns the 65-byte SEC1 uncompressed encoding.
func (p Point) Uncompressed() []byte {
	if p.IsIdentity() {
		return make([]byte, 65)
	}
	a := p.j
	a.ToAffine()
	return secp256k1.NewPublicKey(&a.X, &a.Y).SerializeUncompressed()
}

// Hex returns the lowercase hex of the compressed encoding, the wire form
// for every point this client emits.
func (p Point) Hex() string {
	return hex.EncodeToString(p.Compressed())
}

// Scalar is an integer modulo the secp256k1 group order, always reduced.
// The zero value is the scalar zero. Scalars are value types.
type Scalar struct {
	n secp256k1.ModNScalar
}

// ScalarFromUint64 returns v mod the group order.
func ScalarFromUint64(v uint64) Scalar {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> (8 * i))
	}
	var s Scalar
	s.n.SetByteSlice(b[:])
	return s
}

// ScalarFromBytes interprets b as a big-endian integer and reduces it.
func ScalarFromBytes(b []byte) Scalar {
	var s Scalar
	s.n.SetByteSlice(b)
	return s
}

// RandomScalar returns a uniformly random nonzero scalar from crypto/rand.
func RandomScalar() (Scalar, error) {
	var buf [32]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			return Scalar{}, fmt.Errorf("secp256k1: scalar entropy: %w", err)
		}
		var s Scalar
		s.n.SetBytes(&buf)
		if !s.IsZero() {
			return s, nil
		}
	}
}

// Add returns a + b mod q.
func (a Scalar) Add(b Scalar) Scalar {
	r := a
	r.n.Add(&b.n)
	return r
}

// Sub returns a - b mod q.
func (a Scalar) Sub(b Scalar) Scalar {
	nb := b
	nb.n.Negate()
	return a.Add(nb)
}

// Mul returns a · b mod q.
func (a Scalar) Mul(b Scalar) Scalar {
	r := a
	r.n.Mul(&b.n)
	return r
}

// Square returns a² mod q.
func (a Scalar) Square() Scalar {
	r := a
	r.n.Square()
	return r
}

// Negate returns -a mod q.
func (a Scalar) Negate() Scalar {
	r := a
	r.n.Negate()
	return r
}

// Inverse returns a⁻¹ mod q. Inverting zero yields zero; callers that care
// must check IsZero first.
func (a Scalar) Inverse() Scalar {
	var r Scalar
	r.n.InverseValNonConst(&a.n)
	return r
}

// Pow returns a^e mod q by square-and-multiply. The exponents this package
// needs (y^{n-1} weights) are tiny, so no window optimization is applied.
func (a Scalar) Pow(e uint64) Scalar {
	r := ScalarFromUint64(1)
	base := a
	for ; e > 0; e >>= 1 {
		if e&1 == 1 {
			r = r.Mul(base)
		}
		base = base.Square()
	}
	return r
}

// IsZero reports whether a is the zero scalar.
func (a Scalar) IsZero() bool {
	return a.n.IsZero()
}

// Equal reports whether a and b are the same residue.
func (a Scalar) Equal(b Scalar) bool {
	return a.n.Equals(&b.n)
}

// Bytes returns the 32-byte big-endian encoding.
func (a Scalar) Bytes() [32]byte {
	return a.n.Bytes()
}

// Hex returns the fixed-width lowercase hex wire form.
func (a Scalar) Hex() string {
	b := a.Bytes()
	return hex.EncodeToString(b[:])
}

// Scalar parsing errors, distinguishable with errors.Is.
var (
	ErrScalarEmpty   = fmt.Errorf("secp256k1: empty scalar")
	ErrScalarBadHex  = fmt.Errorf("secp256k1: scalar is not valid hex")
	ErrScalarTooLong = fmt.Errorf("secp256k1: scalar exceeds 32 bytes")
)

// RawScalar is a parsed but unreduced scalar input. Proof scalars arrive as
// hex from an untrusted peer; keeping the raw 256-bit value lets callers
// detect out-of-range inputs before the mod-q reduction folds them away.
type RawScalar struct {
	v uint256.Int
}

// ParseScalar decodes big-endian hex of up to 64 characters, with an
// optional "0x" prefix and any case. Odd-length input is left-padded with a
// zero nibble. No reduction happens here.
func ParseScalar(s string) (*RawScalar, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, ErrScalarEmpty
	}
	if len(s) > 64 {
		return nil, fmt.Errorf("%w: %d hex chars", ErrScalarTooLong, len(s))
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScalarBadHex, err)
	}
	r := new(RawScalar)
	r.v.SetBytes(raw)
	return r, nil
}

// InRange reports whether the raw value is already below the group order.
func (r *RawScalar) InRange() bool {
	return r.v.Cmp(groupOrder) < 0
}

// IsZero reports whether the raw value is zero.
func (r *RawScalar) IsZero() bool {
	return r.v.IsZero()
}

// Reduce folds the raw value into the scalar field.
func (r *RawScalar) Reduce() Scalar {
	b := r.v.Bytes32()
	var s Scalar
	s.n.SetBytes(&b)
	return s
}

// Hex returns the fixed-width hex of the raw (unreduced) value.
func (r *RawScalar) Hex() string {
	b := r.v.Bytes32()
	return hex.EncodeToString(b[:])
}
