package util

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestTrimHex(t *testing.T) {
	qt.Assert(t, TrimHex("0xabc"), qt.Equals, "abc")
	qt.Assert(t, TrimHex("0Xabc"), qt.Equals, "abc")
	qt.Assert(t, TrimHex("abc"), qt.Equals, "abc")
	qt.Assert(t, len(RandomBytes(20)), qt.Equals, 20)
}

func TestField(t *testing.T) {
	q := BN254ScalarField()
	qt.Assert(t, InField(big.NewInt(0)), qt.IsTrue)
	qt.Assert(t, InField(new(big.Int).Sub(q, big.NewInt(1))), qt.IsTrue)
	qt.Assert(t, InField(q), qt.IsFalse)
	qt.Assert(t, InField(big.NewInt(-1)), qt.IsFalse)
	qt.Assert(t, InField(nil), qt.IsFalse)

	qt.Assert(t, BigToFF(new(big.Int).Add(q, big.NewInt(5))).Int64(), qt.Equals, int64(5))
	qt.Assert(t, BigToFF(big.NewInt(5)).Int64(), qt.Equals, int64(5))

	// the returned copy must not alias the package constant
	q.SetInt64(1)
	qt.Assert(t, BN254ScalarField().Cmp(big.NewInt(1)), qt.Not(qt.Equals), 0)

	h := HashToField([]byte("ballot"))
	qt.Assert(t, InField(h), qt.IsTrue)
	qt.Assert(t, h.BitLen() <= 248, qt.IsTrue)
	qt.Assert(t, HashToField([]byte("ballot")).Cmp(h), qt.Equals, 0)
	qt.Assert(t, HashToField([]byte("ballot2")).Cmp(h), qt.Not(qt.Equals), 0)

	// the signal of proposal 1 is the hash of the uint256 word 0x00..01
	word := make([]byte, 32)
	word[31] = 1
	qt.Assert(t, HashUint256ToField(big.NewInt(1)).Cmp(HashToField(word)), qt.Equals, 0)
}

func TestRecord(t *testing.T) {
	type rec struct {
		Name  string
		Count uint64
		Tags  map[string]int
	}
	in := rec{Name: "a", Count: 3, Tags: map[string]int{"z": 1, "b": 2, "m": 3}}
	a, err := EncodeRecord(in)
	qt.Assert(t, err, qt.IsNil)
	b, err := EncodeRecord(in)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, a, qt.DeepEquals, b)

	var out rec
	qt.Assert(t, DecodeRecord(a, &out), qt.IsNil)
	qt.Assert(t, out, qt.DeepEquals, in)
	qt.Assert(t, DecodeRecord([]byte{0xff, 0x00}, &out), qt.Not(qt.IsNil))
}
