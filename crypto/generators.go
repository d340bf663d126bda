package crypto

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"github.com/icsattest/icsattest/log"
)

// GeneratorSet holds the public generators shared by prover and verifier:
// the base point G, the blinding generator H, and the two length-n vectors
// used by the inner-product argument. The set is immutable after
// construction and safe to share across concurrent verifications.
//
// Derivation is deterministic:
//
//	G    = canonical secp256k1 generator
//	H    = SHA256(G_compressed ‖ "bulletproof_h") · G
//	G[i] = SHA256("bulletproof_g_{i}") · G
//	H[i] = SHA256("bulletproof_h_{i}") · G
//
// Both sides must derive byte-identical sets or the main equation cannot
// balance; CompareTo exists for bring-up against a foreign prover.
type GeneratorSet struct {
	N    int
	G, H Point
	Gv   []Point
	Hv   []Point
}

// NewGeneratorSet derives the generator set for the given bit length.
func NewGeneratorSet(n int) *GeneratorSet {
	g := Generator()
	hSeed := sha256.Sum256(append(g.Compressed(), []byte("bulletproof_h")...))
	gs := &GeneratorSet{
		N:  n,
		G:  g,
		H:  BaseMul(ScalarFromBytes(hSeed[:])),
		Gv: make([]Point, n),
		Hv: make([]Point, n),
	}
	for i := 0; i < n; i++ {
		gSeed := sha256.Sum256([]byte(fmt.Sprintf("bulletproof_g_%d", i)))
		hSeedI := sha256.Sum256([]byte(fmt.Sprintf("bulletproof_h_%d", i)))
		gs.Gv[i] = BaseMul(ScalarFromBytes(gSeed[:]))
		gs.Hv[i] = BaseMul(ScalarFromBytes(hSeedI[:]))
	}
	return gs
}

// generatorFile is the bring-up JSON dump format shared with the peer.
type generatorFile struct {
	Curve  string   `json:"curve"`
	Domain string   `json:"domain"`
	Scheme string   `json:"generator_scheme,omitempty"`
	N      int      `json:"n"`
	G      string   `json:"G"`
	H      string   `json:"H"`
	GVec   []string `json:"G_vec"`
	HVec   []string `json:"H_vec"`
}

// LoadGeneratorSet reads a generator dump produced by Dump (or by the
// peer's equivalent) instead of deriving the set. A bit-length mismatch is
// unrecoverable for the caller and returned as an error.
func LoadGeneratorSet(path string, n int) (*GeneratorSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("generators: read %s: %w", path, err)
	}
	var f generatorFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("generators: decode %s: %w", path, err)
	}
	if f.N != n {
		return nil, fmt.Errorf("generators: bit length mismatch in %s: file has n=%d, want n=%d", path, f.N, n)
	}
	if len(f.GVec) != n || len(f.HVec) != n {
		return nil, fmt.Errorf("generators: vector length mismatch in %s: G_vec=%d H_vec=%d, want %d",
			path, len(f.GVec), len(f.HVec), n)
	}
	gs := &GeneratorSet{N: n, Gv: make([]Point, n), Hv: make([]Point, n)}
	if gs.G, err = ParsePoint(f.G); err != nil {
		return nil, fmt.Errorf("generators: G: %w", err)
	}
	if gs.H, err = ParsePoint(f.H); err != nil {
		return nil, fmt.Errorf("generators: H: %w", err)
	}
	for i := 0; i < n; i++ {
		if gs.Gv[i], err = ParsePoint(f.GVec[i]); err != nil {
			return nil, fmt.Errorf("generators: G_vec[%d]: %w", i, err)
		}
		if gs.Hv[i], err = ParsePoint(f.HVec[i]); err != nil {
			return nil, fmt.Errorf("generators: H_vec[%d]: %w", i, err)
		}
	}
	log.Default().Module("crypto").Info("generators loaded from file", "path", path, "n", n)
	return gs, nil
}

// Dump writes the generator set as JSON for cross-implementation
// comparison. This is a bring-up diagnostic, not persisted runtime state.
func (gs *GeneratorSet) Dump(path string) error {
	f := generatorFile{
		Curve:  "secp256k1",
		Domain: DomainTag,
		Scheme: "deterministic_hash_based",
		N:      gs.N,
		G:      gs.G.Hex(),
		H:      gs.H.Hex(),
		GVec:   make([]string, gs.N),
		HVec:   make([]string, gs.N),
	}
	for i := 0; i < gs.N; i++ {
		f.GVec[i] = gs.Gv[i].Hex()
		f.HVec[i] = gs.Hv[i].Hex()
	}
	raw, err := json.MarshalIndent(&f, "", "  ")
	if err != nil {
		return fmt.Errorf("generators: encode: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("generators: write %s: %w", path, err)
	}
	return nil
}

// CompareTo reports every element that differs between the two sets, as
// "name: ours != theirs" strings. An empty slice means byte-exact
// agreement on every generator.
func (gs *GeneratorSet) CompareTo(other *GeneratorSet) []string {
	var diffs []string
	if gs.N != other.N {
		diffs = append(diffs, fmt.Sprintf("n: %d != %d", gs.N, other.N))
		return diffs
	}
	if !gs.G.Equal(other.G) {
		diffs = append(diffs, fmt.Sprintf("G: %s != %s", gs.G.Hex(), other.G.Hex()))
	}
	if !gs.H.Equal(other.H) {
		diffs = append(diffs, fmt.Sprintf("H: %s != %s", gs.H.Hex(), other.H.Hex()))
	}
	for i := 0; i < gs.N; i++ {
		if !gs.Gv[i].Equal(other.Gv[i]) {
			diffs = append(diffs, fmt.Sprintf("G_vec[%d]: %s != %s", i, gs.Gv[i].Hex(), other.Gv[i].Hex()))
		}
		if !gs.Hv[i].Equal(other.Hv[i]) {
			diffs = append(diffs, fmt.Sprintf("H_vec[%d]: %s != %s", i, gs.Hv[i].Hex(), other.Hv[i].Hex()))
		}
	}
	return diffs
}
