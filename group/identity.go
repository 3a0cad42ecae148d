package group

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"

	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
)

// Identity is a member secret and its public commitment. Only the
// commitment ever reaches the group.
type Identity struct {
	Secret     *types.BigInt  `json:"secret"`
	Commitment types.HexBytes `json:"commitment"`
}

// NewIdentity generates a random identity.
func NewIdentity() (*Identity, error) {
	secret, err := rand.Int(rand.Reader, util.BN254ScalarField())
	if err != nil {
		return nil, err
	}
	return IdentityFromSecret(secret)
}

// IdentityFromSecret returns the identity of secret, whose commitment is
// Poseidon(secret) encoded as 32 bytes big-endian.
func IdentityFromSecret(secret *big.Int) (*Identity, error) {
	if !util.InField(secret) {
		return nil, fmt.Errorf("secret is not in the scalar field")
	}
	c, err := poseidon.Hash([]*big.Int{secret})
	if err != nil {
		return nil, err
	}
	return &Identity{
		Secret:     types.NewBigInt(secret),
		Commitment: c.FillBytes(make([]byte, types.CommitmentSize)),
	}, nil
}
