package groth16

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	stdmimc "github.com/consensys/gnark/std/hash/mimc"
	"github.com/vocdoni/arbo"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/util"
	"go.vocdoni.io/anonvote/verifier"
)

// testCircuit binds the nullifier to a secret and the scope. Membership is
// left out, the root and the signal hash are only required to be non zero so
// they are part of the constraint system.
type testCircuit struct {
	Root       frontend.Variable `gnark:",public"`
	Nullifier  frontend.Variable `gnark:",public"`
	SignalHash frontend.Variable `gnark:",public"`
	Scope      frontend.Variable `gnark:",public"`
	Secret     frontend.Variable
}

func (c *testCircuit) Define(api frontend.API) error {
	h, err := stdmimc.NewMiMC(api)
	if err != nil {
		return err
	}
	h.Write(c.Secret, c.Scope)
	api.AssertIsEqual(c.Nullifier, h.Sum())
	api.AssertIsDifferent(c.Root, 0)
	api.AssertIsDifferent(c.SignalHash, 0)
	return nil
}

type testSetup struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

func newTestSetup(t *testing.T) *testSetup {
	c := qt.New(t)
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &testCircuit{})
	c.Assert(err, qt.IsNil)
	pk, vk, err := groth16.Setup(ccs)
	c.Assert(err, qt.IsNil)
	return &testSetup{ccs: ccs, pk: pk, vk: vk}
}

func nativeNullifier(t *testing.T, secret, scope *big.Int) []byte {
	h := mimc.NewMiMC()
	for _, x := range []*big.Int{secret, scope} {
		word := make([]byte, 32)
		x.FillBytes(word)
		_, err := h.Write(word)
		qt.Assert(t, err, qt.IsNil)
	}
	return h.Sum(nil)
}

// prove builds a proof for the given root, scope and signal.
func (s *testSetup) prove(t *testing.T, root []byte, scope, signal, secret *big.Int) *verifier.Proof {
	c := qt.New(t)
	nullifier := nativeNullifier(t, secret, scope)
	assignment := &testCircuit{
		Root:       group.RootToBigInt(root),
		Nullifier:  new(big.Int).SetBytes(nullifier),
		SignalHash: verifier.SignalHash(signal),
		Scope:      scope,
		Secret:     secret,
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	c.Assert(err, qt.IsNil)
	proof, err := groth16.Prove(s.ccs, s.pk, witness)
	c.Assert(err, qt.IsNil)
	var buf bytes.Buffer
	_, err = proof.WriteTo(&buf)
	c.Assert(err, qt.IsNil)
	return &verifier.Proof{
		MerkleTreeDepth: 10,
		Nullifier:       nullifier,
		Points:          buf.Bytes(),
	}
}

func TestVerify(t *testing.T) {
	c := qt.New(t)
	setup := newTestSetup(t)
	v := New(setup.vk)

	root := arbo.BigIntToBytes(32, big.NewInt(123456789))
	scope := util.HashToField([]byte("ballot"))
	signal := big.NewInt(2)
	proof := setup.prove(t, root, scope, signal, big.NewInt(42))

	ok, err := v.Verify(proof, root, scope, signal)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// the proof endorses signal 2 only
	ok, err = v.Verify(proof, root, scope, big.NewInt(1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// and it is bound to its scope
	ok, err = v.Verify(proof, root, util.HashToField([]byte("other")), signal)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)

	// and to its root
	ok, err = v.Verify(proof, arbo.BigIntToBytes(32, big.NewInt(987654321)), scope, signal)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsFalse)
}

func TestVerifyMalformed(t *testing.T) {
	c := qt.New(t)
	setup := newTestSetup(t)
	v := New(setup.vk)

	root := arbo.BigIntToBytes(32, big.NewInt(7))
	scope := util.HashToField([]byte("ballot"))
	signal := big.NewInt(0)
	proof := setup.prove(t, root, scope, signal, big.NewInt(99))

	// nullifier outside of the scalar field
	bad := *proof
	bad.Nullifier = bytes.Repeat([]byte{0xff}, 32)
	_, err := v.Verify(&bad, root, scope, signal)
	c.Assert(err, qt.ErrorMatches, "nullifier is not in the scalar field")

	// garbage proof points
	bad = *proof
	bad.Points = []byte{1, 2, 3}
	ok, err := v.Verify(&bad, root, scope, signal)
	c.Assert(err, qt.IsNotNil)
	c.Assert(ok, qt.IsFalse)

	// nil proof
	_, err = v.Verify(nil, root, scope, signal)
	c.Assert(err, qt.IsNotNil)

	// no key at all
	ok, err = New(nil).Verify(proof, root, scope, signal)
	c.Assert(err, qt.ErrorMatches, "no verifying key for depth 10")
	c.Assert(ok, qt.IsFalse)
}

func TestLoadVerifier(t *testing.T) {
	c := qt.New(t)
	setup := newTestSetup(t)

	path := filepath.Join(t.TempDir(), "vote.vk")
	f, err := os.Create(path)
	c.Assert(err, qt.IsNil)
	_, err = setup.vk.WriteTo(f)
	c.Assert(err, qt.IsNil)
	c.Assert(f.Close(), qt.IsNil)

	v, err := LoadVerifier("", map[int]string{10: path})
	c.Assert(err, qt.IsNil)

	root := arbo.BigIntToBytes(32, big.NewInt(5))
	scope := util.HashToField([]byte("ballot"))
	signal := big.NewInt(1)
	proof := setup.prove(t, root, scope, signal, big.NewInt(11))
	ok, err := v.Verify(proof, root, scope, signal)
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)

	// depth 20 has no key and there is no default one
	proof.MerkleTreeDepth = 20
	_, err = v.Verify(proof, root, scope, signal)
	c.Assert(err, qt.IsNotNil)

	_, err = LoadVerifier(filepath.Join(t.TempDir(), "missing.vk"), nil)
	c.Assert(err, qt.IsNotNil)
}
