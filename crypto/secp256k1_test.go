package crypto_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icsattest/icsattest/crypto"
)

// generatorHex is the canonical compressed secp256k1 base point.
const generatorHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestGeneratorEncoding(t *testing.T) {
	g := crypto.Generator()
	require.Equal(t, generatorHex, g.Hex())
	require.Len(t, g.Compressed(), 33)
	require.Len(t, g.Uncompressed(), 65)
	require.Equal(t, byte(0x04), g.Uncompressed()[0])
}

func TestParsePointRoundTrip(t *testing.T) {
	points := []crypto.Point{
		crypto.Generator(),
		crypto.BaseMul(crypto.ScalarFromUint64(2)),
		crypto.BaseMul(crypto.ScalarFromUint64(1234567)),
	}
	for _, p := range points {
		fromCompressed, err := crypto.ParsePoint(p.Hex())
		require.NoError(t, err)
		require.True(t, p.Equal(fromCompressed))

		// Uncompressed input is accepted and normalizes to the same
		// group element.
		unc := strings.ToUpper("0x" + hexEncode(p.Uncompressed()))
		fromUncompressed, err := crypto.ParsePoint(unc)
		require.NoError(t, err)
		require.True(t, p.Equal(fromUncompressed))
		require.Equal(t, p.Hex(), fromUncompressed.Hex())
	}
}

func TestParsePointRejections(t *testing.T) {
	valid := crypto.Generator().Hex()
	cases := []struct {
		name string
		in   string
		kind crypto.PointErrorKind
	}{
		{"empty", "", crypto.PointEmpty},
		{"just prefix", "0x", crypto.PointEmpty},
		{"not hex", "zz" + valid[2:], crypto.PointBadHex},
		{"odd length", valid[:len(valid)-1], crypto.PointBadHex},
		{"too short", valid[:32], crypto.PointBadLength},
		{"length 34", valid + "ab", crypto.PointBadLength},
		{"compressed prefix 05", "05" + valid[2:], crypto.PointBadPrefix},
		{"uncompressed prefix 02", "02" + strings.Repeat("11", 64), crypto.PointBadPrefix},
		{"x not on curve", "02" + strings.Repeat("ff", 32), crypto.PointNotOnCurve},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := crypto.ParsePoint(tc.in)
			require.Error(t, err)
			var pe *crypto.PointError
			require.True(t, errors.As(err, &pe), "want *PointError, got %T", err)
			require.Equal(t, tc.kind, pe.Kind)
		})
	}
}

func TestPointArithmetic(t *testing.T) {
	g := crypto.Generator()
	two := crypto.ScalarFromUint64(2)
	three := crypto.ScalarFromUint64(3)

	require.True(t, g.Add(g).Equal(g.Mul(two)))
	require.True(t, g.Add(g).Add(g).Equal(crypto.BaseMul(three)))
	require.True(t, g.Add(g.Negate()).IsIdentity())

	// 5·G == 2·G + 3·G
	five := crypto.ScalarFromUint64(5)
	require.True(t, crypto.BaseMul(five).Equal(g.Mul(two).Add(g.Mul(three))))
}

func TestParseScalar(t *testing.T) {
	r, err := crypto.ParseScalar("0x2a")
	require.NoError(t, err)
	require.True(t, r.InRange())
	require.True(t, r.Reduce().Equal(crypto.ScalarFromUint64(42)))
	require.Equal(t,
		"000000000000000000000000000000000000000000000000000000000000002a",
		r.Hex())

	_, err = crypto.ParseScalar("")
	require.ErrorIs(t, err, crypto.ErrScalarEmpty)
	_, err = crypto.ParseScalar("xyz")
	require.ErrorIs(t, err, crypto.ErrScalarBadHex)
	_, err = crypto.ParseScalar(strings.Repeat("a", 65))
	require.ErrorIs(t, err, crypto.ErrScalarTooLong)

	// Values at and above the group order parse fine but report
	// out-of-range; reduction is the caller's explicit step.
	order := "fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141"
	atOrder, err := crypto.ParseScalar(order)
	require.NoError(t, err)
	require.False(t, atOrder.InRange())
	require.True(t, atOrder.Reduce().IsZero())

	zero, err := crypto.ParseScalar("00")
	require.NoError(t, err)
	require.True(t, zero.IsZero())
}

func TestScalarArithmetic(t *testing.T) {
	a := crypto.ScalarFromUint64(10)
	b := crypto.ScalarFromUint64(4)

	require.True(t, a.Add(b).Equal(crypto.ScalarFromUint64(14)))
	require.True(t, a.Sub(b).Equal(crypto.ScalarFromUint64(6)))
	require.True(t, a.Mul(b).Equal(crypto.ScalarFromUint64(40)))
	require.True(t, b.Square().Equal(crypto.ScalarFromUint64(16)))
	require.True(t, a.Mul(a.Inverse()).Equal(crypto.ScalarFromUint64(1)))
	require.True(t, a.Add(a.Negate()).IsZero())
	require.True(t, b.Pow(3).Equal(crypto.ScalarFromUint64(64)))
	require.True(t, b.Pow(0).Equal(crypto.ScalarFromUint64(1)))
}

func TestRandomScalar(t *testing.T) {
	a, err := crypto.RandomScalar()
	require.NoError(t, err)
	b, err := crypto.RandomScalar()
	require.NoError(t, err)
	require.False(t, a.IsZero())
	require.False(t, a.Equal(b))
}

func hexEncode(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 0, len(b)*2)
	for _, c := range b {
		out = append(out, digits[c>>4], digits[c&0xf])
	}
	return string(out)
}
