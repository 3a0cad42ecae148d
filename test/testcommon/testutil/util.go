package testutil

import (
	"math/big"
	"math/rand"
	"testing"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
)

// Commitment returns the identity commitment of secret, Poseidon(secret),
// as 32 bytes big-endian.
func Commitment(tb testing.TB, secret *big.Int) types.HexBytes {
	id, err := group.IdentityFromSecret(secret)
	if err != nil {
		tb.Fatal(err)
	}
	return id.Commitment
}

// Random is a deterministic source of test values.
type Random struct {
	rand *rand.Rand
}

func NewRandom(seed int64) Random {
	return Random{rand: rand.New(rand.NewSource(seed))}
}

func (r *Random) RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := r.rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// RandomNullifier returns a nullifier that is a valid field element.
func (r *Random) RandomNullifier() types.HexBytes {
	n := new(big.Int).SetBytes(r.RandomBytes(types.NullifierSize))
	return util.BigToFF(n).FillBytes(make([]byte, types.NullifierSize))
}

// RandomCommitment returns the commitment of a random secret.
func (r *Random) RandomCommitment(tb testing.TB) types.HexBytes {
	return Commitment(tb, new(big.Int).SetBytes(r.RandomBytes(31)))
}
