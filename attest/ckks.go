package attest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tuneinsight/lattigo/v5/core/rlwe"
	"github.com/tuneinsight/lattigo/v5/schemes/ckks"

	"github.com/icsattest/icsattest/log"
)

// CKKSPayload carries one homomorphically encrypted reading. Only the
// collector, holding the secret key, can recover the plaintext.
type CKKSPayload struct {
	SensorID      string  `json:"sensor_id"`
	Timestamp     float64 `json:"timestamp"`
	EncryptedData string  `json:"encrypted_data"`
	ContextID     string  `json:"context"`
	Algorithm     string  `json:"algorithm"`
}

// Endpoint implements Payload.
func (CKKSPayload) Endpoint() string { return "/api/v1/ckks/verify" }

// CKKSContext is the public encryption context fetched from the collector:
// scheme parameters plus the collector's public key.
type CKKSContext struct {
	ID     string
	Params ckks.Parameters
	Public *rlwe.PublicKey
}

// ckksContextWire is the collector's /api/v1/ckks/public_key response.
type ckksContextWire struct {
	ContextID string `json:"context_id"`
	Params    string `json:"params"`
	PublicKey string `json:"public_key"`
}

// FetchCKKSContext retrieves the collector's public context, retrying with
// exponential backoff until ctx is cancelled or the backoff's default
// 15-minute elapsed-time limit passes. Failure here is fatal for a
// CKKS run: there is nothing to encrypt under.
func FetchCKKSContext(ctx context.Context, client *http.Client, baseURL string) (*CKKSContext, error) {
	if client == nil {
		client = http.DefaultClient
	}
	logger := log.Default().Module("attest").With("algorithm", "ckks")
	var wire ckksContextWire

	fetch := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/v1/ckks/public_key", nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := client.Do(req)
		if err != nil {
			logger.Warn("public context fetch failed, retrying", "error", err)
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("ckks: public key endpoint returned %d", resp.StatusCode)
			logger.Warn("public context fetch failed, retrying", "status", resp.StatusCode)
			return err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &wire)
	}
	if err := backoff.Retry(fetch, backoff.WithContext(backoff.NewExponentialBackOff(), ctx)); err != nil {
		return nil, fmt.Errorf("ckks: fetch public context: %w", err)
	}

	paramsRaw, err := base64.StdEncoding.DecodeString(wire.Params)
	if err != nil {
		return nil, fmt.Errorf("ckks: params encoding: %w", err)
	}
	var params ckks.Parameters
	if err := params.UnmarshalBinary(paramsRaw); err != nil {
		return nil, fmt.Errorf("ckks: decode params: %w", err)
	}
	pkRaw, err := base64.StdEncoding.DecodeString(wire.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("ckks: public key encoding: %w", err)
	}
	pk := new(rlwe.PublicKey)
	if err := pk.UnmarshalBinary(pkRaw); err != nil {
		return nil, fmt.Errorf("ckks: decode public key: %w", err)
	}
	logger.Info("public context loaded", "context_id", wire.ContextID, "log_n", params.LogN())
	return &CKKSContext{ID: wire.ContextID, Params: params, Public: pk}, nil
}

// DefaultCKKSParameters are the parameters used when this client runs its
// own loopback context (tests, offline benchmarking): a small ring with
// enough precision for single-scalar telemetry.
func DefaultCKKSParameters() (ckks.Parameters, error) {
	return ckks.NewParametersFromLiteral(ckks.ParametersLiteral{
		LogN:            12,
		LogQ:            []int{45, 35, 35},
		LogP:            []int{50},
		LogDefaultScale: 35,
	})
}

// ckksWorker bundles the per-task encoder and encryptor. The underlying
// lattigo objects are not safe for concurrent use, so workers are pooled
// and shallow-copied rather than shared.
type ckksWorker struct {
	encoder   *ckks.Encoder
	encryptor *rlwe.Encryptor
}

// CKKSAttestor encrypts single readings under the collector's public key.
// Safe for concurrent use; each Attest call checks a worker out of an
// internal pool.
type CKKSAttestor struct {
	ctx  *CKKSContext
	pool sync.Pool
}

// NewCKKSAttestor builds the attestor around a fetched public context.
func NewCKKSAttestor(c *CKKSContext) (*CKKSAttestor, error) {
	if c == nil || c.Public == nil {
		return nil, fmt.Errorf("ckks: nil public context")
	}
	base := &ckksWorker{
		encoder:   ckks.NewEncoder(c.Params),
		encryptor: rlwe.NewEncryptor(c.Params, c.Public),
	}
	a := &CKKSAttestor{ctx: c}
	a.pool.New = func() any {
		return &ckksWorker{
			encoder:   base.encoder.ShallowCopy(),
			encryptor: base.encryptor.ShallowCopy(),
		}
	}
	return a, nil
}

// Algorithm implements Attestor.
func (a *CKKSAttestor) Algorithm() string { return "ckks" }

// Attest implements Attestor. It encodes the single reading into the first
// slot and encrypts under the collector's public key.
func (a *CKKSAttestor) Attest(sensorID string, value float64, ts time.Time) (Payload, error) {
	w := a.pool.Get().(*ckksWorker)
	defer a.pool.Put(w)

	pt := ckks.NewPlaintext(a.ctx.Params, a.ctx.Params.MaxLevel())
	if err := w.encoder.Encode([]float64{value}, pt); err != nil {
		return nil, fmt.Errorf("ckks: encode: %w", err)
	}
	ct, err := w.encryptor.EncryptNew(pt)
	if err != nil {
		return nil, fmt.Errorf("ckks: encrypt: %w", err)
	}
	raw, err := ct.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("ckks: serialize ciphertext: %w", err)
	}
	return CKKSPayload{
		SensorID:      sensorID,
		Timestamp:     float64(ts.UnixNano()) / 1e9,
		EncryptedData: base64.StdEncoding.EncodeToString(raw),
		ContextID:     a.ctx.ID,
		Algorithm:     "CKKS",
	}, nil
}
