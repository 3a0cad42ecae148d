// Package groth16 implements the vote proof Verifier for groth16 proofs over
// BN254 produced with gnark.
//
// The public inputs of the vote circuit, in declaration order, are the group
// root, the nullifier, the hash of the signal and the scope. Circuits compiled
// for this verifier must declare their public inputs in that same order.
package groth16

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/util"
	"go.vocdoni.io/anonvote/verifier"
)

// DefaultDepth is the key slot used when no key for a given depth exists.
const DefaultDepth = 0

// PublicInputs is the public part of the vote circuit.
type PublicInputs struct {
	Root       frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	SignalHash frontend.Variable `gnark:",public"`
	Scope      frontend.Variable `gnark:",public"`
}

// Define is needed to build witnesses from PublicInputs. It declares no
// constraints.
func (*PublicInputs) Define(frontend.API) error { return nil }

// Verifier checks groth16 vote proofs. Proofs are verified with the key
// registered for their merkle tree depth, or with the default key.
type Verifier struct {
	mu   sync.RWMutex
	keys map[int]groth16.VerifyingKey
}

var _ verifier.Verifier = (*Verifier)(nil)

// New returns a Verifier that uses vk for any depth without a specific key.
// vk can be nil if only depth specific keys are going to be used.
func New(vk groth16.VerifyingKey) *Verifier {
	v := &Verifier{keys: make(map[int]groth16.VerifyingKey)}
	if vk != nil {
		v.keys[DefaultDepth] = vk
	}
	return v
}

// SetKey registers the verifying key for proofs built for depth.
func (v *Verifier) SetKey(depth int, vk groth16.VerifyingKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[depth] = vk
}

func (v *Verifier) key(depth int) (groth16.VerifyingKey, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if vk, ok := v.keys[depth]; ok {
		return vk, true
	}
	vk, ok := v.keys[DefaultDepth]
	return vk, ok
}

// Verify implements verifier.Verifier. Malformed proofs return an error,
// well formed proofs that do not hold return false.
func (v *Verifier) Verify(proof *verifier.Proof, root []byte, scope, signal *big.Int) (bool, error) {
	if err := proof.Validate(); err != nil {
		return false, err
	}
	vk, ok := v.key(proof.MerkleTreeDepth)
	if !ok {
		return false, fmt.Errorf("no verifying key for depth %d", proof.MerkleTreeDepth)
	}
	inputs, err := publicInputs(proof, root, scope, signal)
	if err != nil {
		return false, err
	}
	gproof := groth16.NewProof(ecc.BN254)
	if _, err := gproof.ReadFrom(bytes.NewReader(proof.Points)); err != nil {
		return false, fmt.Errorf("cannot decode proof points: %w", err)
	}
	pubWitness, err := frontend.NewWitness(inputs, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("cannot build public witness: %w", err)
	}
	if err := groth16.Verify(gproof, vk, pubWitness); err != nil {
		log.Debugw("groth16 proof rejected", "error", err)
		return false, nil
	}
	return true, nil
}

// publicInputs builds the public inputs, refusing values outside of the
// scalar field. A non canonical value would alias a different input.
func publicInputs(proof *verifier.Proof, root []byte, scope, signal *big.Int) (*PublicInputs, error) {
	rootFE := group.RootToBigInt(root)
	nullifier := new(big.Int).SetBytes(proof.Nullifier)
	for name, x := range map[string]*big.Int{
		"root":      rootFE,
		"nullifier": nullifier,
		"scope":     scope,
	} {
		if !util.InField(x) {
			return nil, fmt.Errorf("%s is not in the scalar field", name)
		}
	}
	if signal == nil || signal.Sign() < 0 {
		return nil, fmt.Errorf("invalid signal")
	}
	return &PublicInputs{
		Root:       rootFE,
		Nullifier:  nullifier,
		SignalHash: verifier.SignalHash(signal),
		Scope:      scope,
	}, nil
}

// LoadVerifyingKey reads a BN254 groth16 verifying key from path.
func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if _, err := vk.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("cannot read verifying key %s: %w", path, err)
	}
	return vk, nil
}

// LoadVerifier builds a Verifier from a default key path and a map of depth
// specific key paths. Any of them can be empty.
func LoadVerifier(defaultKey string, keysByDepth map[int]string) (*Verifier, error) {
	v := New(nil)
	if defaultKey != "" {
		vk, err := LoadVerifyingKey(defaultKey)
		if err != nil {
			return nil, err
		}
		v.SetKey(DefaultDepth, vk)
	}
	for depth, path := range keysByDepth {
		vk, err := LoadVerifyingKey(path)
		if err != nil {
			return nil, err
		}
		v.SetKey(depth, vk)
		log.Infow("loaded verifying key", "depth", depth, "path", path)
	}
	return v, nil
}
