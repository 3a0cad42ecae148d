// Package verifier defines the boundary between the voting engine and the
// zero-knowledge proof system. The engine never inspects the proof itself, it
// only asks a Verifier whether the proof holds for a root, scope and signal.
package verifier

import (
	"fmt"
	"math/big"

	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
)

// Proof is the anonymous vote proof as submitted by a voter.
type Proof struct {
	// MerkleTreeDepth is the depth of the group tree the proof was built for.
	MerkleTreeDepth int `json:"merkleTreeDepth"`
	// MerkleTreeRoot is the group root the prover used. Optional, when set it
	// must match the current root of the group.
	MerkleTreeRoot types.HexBytes `json:"merkleTreeRoot,omitempty"`
	// Nullifier is derived from the member secret and the ballot scope.
	Nullifier types.HexBytes `json:"nullifier"`
	// Message is the signal the proof commits to: the proposal index.
	// Optional, when set it must match the proposal being voted.
	Message *types.BigInt `json:"message,omitempty"`
	// Scope is the ballot scope the proof was built for. Optional, when set
	// it must match the ballot scope.
	Scope *types.BigInt `json:"scope,omitempty"`
	// Points is the serialized proof, opaque to the engine.
	Points types.HexBytes `json:"points"`
}

// Verifier checks anonymous vote proofs.
type Verifier interface {
	// Verify returns true if proof shows that its author is a member of the
	// group with the given root, that the nullifier is the one bound to that
	// member and scope, and that the author endorses signal.
	Verify(proof *Proof, root []byte, scope, signal *big.Int) (bool, error)
}

// Func adapts a plain function to the Verifier interface.
type Func func(proof *Proof, root []byte, scope, signal *big.Int) (bool, error)

// Verify calls f.
func (f Func) Verify(proof *Proof, root []byte, scope, signal *big.Int) (bool, error) {
	return f(proof, root, scope, signal)
}

// AcceptAll is a Verifier that accepts every proof. Only meant for
// development and tests.
var AcceptAll = Func(func(*Proof, []byte, *big.Int, *big.Int) (bool, error) {
	return true, nil
})

// RejectAll is a Verifier that rejects every proof.
var RejectAll = Func(func(*Proof, []byte, *big.Int, *big.Int) (bool, error) {
	return false, nil
})

// SignalHash returns the field element a proof commits to for signal.
func SignalHash(signal *big.Int) *big.Int {
	return util.HashUint256ToField(signal)
}

// Validate checks the basic shape of the proof.
func (p *Proof) Validate() error {
	if p == nil {
		return fmt.Errorf("proof is nil")
	}
	if len(p.Nullifier) != types.NullifierSize {
		return fmt.Errorf("nullifier must be %d bytes, got %d", types.NullifierSize, len(p.Nullifier))
	}
	if len(p.Points) == 0 {
		return fmt.Errorf("proof points are empty")
	}
	if p.MerkleTreeDepth < 0 || p.MerkleTreeDepth > types.GroupTreeMaxLevels {
		return fmt.Errorf("invalid merkle tree depth %d", p.MerkleTreeDepth)
	}
	return nil
}
