package attest

import (
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/schemes/ckks"
)

func newLoopbackContext(t *testing.T) (*CKKSContext, *rlwe.SecretKey) {
	t.Helper()
	params, err := DefaultCKKSParameters()
	require.NoError(t, err)
	kgen := rlwe.NewKeyGenerator(params)
	sk, pk := kgen.GenKeyPairNew()
	return &CKKSContext{ID: "loopback", Params: params, Public: pk}, sk
}

func TestCKKSEncryptDecryptRoundTrip(t *testing.T) {
	ctx, sk := newLoopbackContext(t)
	a, err := NewCKKSAttestor(ctx)
	require.NoError(t, err)

	p, err := a.Attest("sensor_04", 12.5, time.Now())
	require.NoError(t, err)
	payload := p.(CKKSPayload)
	require.Equal(t, "/api/v1/ckks/verify", payload.Endpoint())
	require.Equal(t, "loopback", payload.ContextID)
	require.Equal(t, "CKKS", payload.Algorithm)

	raw, err := base64.StdEncoding.DecodeString(payload.EncryptedData)
	require.NoError(t, err)

	ct := new(rlwe.Ciphertext)
	require.NoError(t, ct.UnmarshalBinary(raw))

	dec := rlwe.NewDecryptor(ctx.Params, sk)
	pt := dec.DecryptNew(ct)
	values := make([]float64, ctx.Params.MaxSlots())
	require.NoError(t, ckks.NewEncoder(ctx.Params).Decode(pt, values))
	require.InDelta(t, 12.5, values[0], 0.01)
}

func TestCKKSConcurrentAttest(t *testing.T) {
	ctx, _ := newLoopbackContext(t)
	a, err := NewCKKSAttestor(ctx)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := a.Attest("sensor", float64(i), time.Now())
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestCKKSNilContext(t *testing.T) {
	_, err := NewCKKSAttestor(nil)
	require.Error(t, err)
}
