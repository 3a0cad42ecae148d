package util

import (
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/iden3/go-iden3-crypto/constants"
	"github.com/iden3/go-iden3-crypto/utils"
)

// BN254ScalarField returns the order of the scalar field of the BN254 curve,
// which is the field every public input of the proofs lives in.
func BN254ScalarField() *big.Int {
	return new(big.Int).Set(constants.Q)
}

// InField reports whether x is a canonical element of the BN254 scalar field.
func InField(x *big.Int) bool {
	if x == nil || x.Sign() < 0 {
		return false
	}
	return utils.CheckBigIntInField(x)
}

// BigToFF returns the finite field representation of the big.Int provided,
// using the Euclidean modulus over the BN254 scalar field.
func BigToFF(iv *big.Int) *big.Int {
	if InField(iv) {
		return iv
	}
	return new(big.Int).Mod(iv, constants.Q)
}

// HashToField returns keccak256(data) shifted right by 8 bits, so the result
// always fits in the BN254 scalar field. Scopes and signals are bound into
// the proofs this way.
func HashToField(data []byte) *big.Int {
	h := new(big.Int).SetBytes(crypto.Keccak256(data))
	return h.Rsh(h, 8)
}

// HashUint256ToField hashes x as a 32 bytes big-endian word and reduces it
// with HashToField.
func HashUint256ToField(x *big.Int) *big.Int {
	word := make([]byte, 32)
	x.FillBytes(word)
	return HashToField(word)
}
