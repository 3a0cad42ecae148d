package ballot

import (
	"bytes"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/iden3/go-iden3-crypto/poseidon"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
	"go.vocdoni.io/anonvote/verifier"
)

// stubPoints is what the stub verifier expects as proof: the public inputs
// concatenated. It lets tests build valid and stale proofs without a prover.
func stubPoints(root []byte, scope, signal *big.Int) []byte {
	var buf bytes.Buffer
	buf.Write(root)
	buf.Write(scope.FillBytes(make([]byte, 32)))
	buf.Write(signal.FillBytes(make([]byte, 32)))
	return buf.Bytes()
}

var stubVerifier = verifier.Func(func(p *verifier.Proof, root []byte, scope, signal *big.Int) (bool, error) {
	return bytes.Equal(p.Points, stubPoints(root, scope, signal)), nil
})

func stubProof(b *Ballot, proposal int, nullifier []byte) *verifier.Proof {
	return &verifier.Proof{
		MerkleTreeDepth: 20,
		Nullifier:       nullifier,
		Points:          stubPoints(b.Root(), b.Scope(), big.NewInt(int64(proposal))),
	}
}

func testCommitment(t testing.TB, secret int64) []byte {
	c, err := poseidon.Hash([]*big.Int{big.NewInt(secret)})
	qt.Assert(t, err, qt.IsNil)
	return c.FillBytes(make([]byte, types.CommitmentSize))
}

func newTestFactory(t testing.TB, database db.Database) *Factory {
	groups := group.NewRegistry(prefixeddb.NewPrefixedDatabase(database, []byte("g/")))
	f, err := NewFactory(prefixeddb.NewPrefixedDatabase(database, []byte("v/")), groups, stubVerifier)
	qt.Assert(t, err, qt.IsNil)
	return f
}

func newTestBallot(t testing.TB, f *Factory, names ...string) *Ballot {
	if len(names) == 0 {
		names = []string{"Proposal 1", "Proposal 2", "Proposal 3"}
	}
	id, err := f.CreateBallot(names, nil)
	qt.Assert(t, err, qt.IsNil)
	b, err := f.Ballot(id)
	qt.Assert(t, err, qt.IsNil)
	return b
}

func counts(b *Ballot) []uint64 {
	var c []uint64
	for _, p := range b.Proposals() {
		c = append(c, p.VoteCount)
	}
	return c
}

func TestNewBallot(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)))

	c.Assert(b.ProposalCount(), qt.Equals, 3)
	c.Assert(b.WinningProposal(), qt.Equals, 0)
	c.Assert(b.WinnerName(), qt.Equals, "Proposal 1")
	c.Assert(counts(b), qt.DeepEquals, []uint64{0, 0, 0})
	c.Assert(b.Status(), qt.Equals, StatusOpen)
	c.Assert(b.Scope().Cmp(ScopeFromID(b.ID())), qt.Equals, 0)
	c.Assert(util.InField(b.Scope()), qt.IsTrue)
}

func TestJoinBallot(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)))

	r0 := b.Root()
	r1, err := b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)
	c.Assert(r1, qt.Not(qt.DeepEquals), r0)
	c.Assert(b.Root(), qt.DeepEquals, r1)

	_, err = b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.ErrorIs, ErrDuplicateMember)
	c.Assert(b.Root(), qt.DeepEquals, r1)

	ok, err := b.IsMember(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)
	c.Assert(ok, qt.IsTrue)
}

func TestVote(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)))
	_, err := b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)

	n1 := util.RandomBytes(types.NullifierSize)
	c.Assert(b.Vote(0, stubProof(b, 0, n1)), qt.IsNil)
	c.Assert(counts(b), qt.DeepEquals, []uint64{1, 0, 0})
	voted, err := b.HasVoted(n1)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	// any proof carrying the same nullifier is rejected
	err = b.Vote(1, stubProof(b, 1, n1))
	c.Assert(err, qt.ErrorIs, ErrAlreadyVoted)
	c.Assert(counts(b), qt.DeepEquals, []uint64{1, 0, 0})

	n2 := util.RandomBytes(types.NullifierSize)
	c.Assert(b.Vote(2, stubProof(b, 2, n2)), qt.IsNil)
	n3 := util.RandomBytes(types.NullifierSize)
	c.Assert(b.Vote(2, stubProof(b, 2, n3)), qt.IsNil)
	c.Assert(counts(b), qt.DeepEquals, []uint64{1, 0, 2})
	c.Assert(b.WinningProposal(), qt.Equals, 2)
	c.Assert(b.WinnerName(), qt.Equals, "Proposal 3")

	votes, err := b.Votes()
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.Equals, uint64(3))
}

func TestVoteRejected(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)))
	_, err := b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)

	n := util.RandomBytes(types.NullifierSize)
	assertUntouched := func() {
		c.Helper()
		c.Assert(counts(b), qt.DeepEquals, []uint64{0, 0, 0})
		voted, err := b.HasVoted(n)
		c.Assert(err, qt.IsNil)
		c.Assert(voted, qt.IsFalse)
	}

	c.Assert(b.Vote(3, stubProof(b, 3, n)), qt.ErrorIs, ErrInvalidProposal)
	c.Assert(b.Vote(-1, stubProof(b, 0, n)), qt.ErrorIs, ErrInvalidProposal)
	assertUntouched()

	// proof for another proposal
	c.Assert(b.Vote(1, stubProof(b, 0, n)), qt.ErrorIs, ErrInvalidProof)
	assertUntouched()

	// proof built before the group changed
	staleRoot := b.Root()
	stale := stubProof(b, 0, n)
	_, err = b.JoinBallot(testCommitment(t, 2))
	c.Assert(err, qt.IsNil)
	c.Assert(b.Vote(0, stale), qt.ErrorIs, ErrInvalidProof)
	assertUntouched()

	// public values that do not match the ballot
	p := stubProof(b, 0, n)
	p.Scope = types.NewBigInt(big.NewInt(1))
	c.Assert(b.Vote(0, p), qt.ErrorIs, ErrInvalidProof)
	p = stubProof(b, 0, n)
	p.Message = types.NewBigInt(big.NewInt(2))
	c.Assert(b.Vote(0, p), qt.ErrorIs, ErrInvalidProof)
	p = stubProof(b, 0, n)
	p.MerkleTreeRoot = staleRoot
	c.Assert(b.Vote(0, p), qt.ErrorIs, ErrInvalidProof)
	assertUntouched()

	// malformed proofs
	p = stubProof(b, 0, []byte{1, 2, 3})
	c.Assert(b.Vote(0, p), qt.ErrorIs, ErrInvalidProof)
	c.Assert(b.Vote(0, nil), qt.ErrorIs, ErrInvalidProof)
	assertUntouched()

	// matching optional values are accepted
	p = stubProof(b, 0, n)
	p.Scope = types.NewBigInt(b.Scope())
	p.Message = types.NewBigInt(big.NewInt(0))
	p.MerkleTreeRoot = b.Root()
	c.Assert(b.Vote(0, p), qt.IsNil)
}

func TestConcurrentVotes(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)))
	_, err := b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)

	// every nullifier is submitted three times by concurrent voters
	const voters = 10
	nullifiers := make([][]byte, voters)
	for i := range nullifiers {
		nullifiers[i] = util.RandomBytes(types.NullifierSize)
	}
	var accepted, rejected atomic.Int32
	var wg sync.WaitGroup
	for r := 0; r < 3; r++ {
		for i := 0; i < voters; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				proposal := i % 3
				err := b.Vote(proposal, stubProof(b, proposal, nullifiers[i]))
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, ErrAlreadyVoted):
					rejected.Add(1)
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
	}
	wg.Wait()
	c.Assert(accepted.Load(), qt.Equals, int32(voters))
	c.Assert(rejected.Load(), qt.Equals, int32(2*voters))
	c.Assert(counts(b), qt.DeepEquals, []uint64{4, 3, 3})
	c.Assert(b.Info().TotalVotes, qt.Equals, uint64(voters))
}

func TestClose(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	f := newTestFactory(t, metadb.NewTest(t))
	b := newTestBallot(t, f)

	c.Assert(f.CloseBallot(b.ID()), qt.IsNil)
	c.Assert(b.Status(), qt.Equals, StatusClosed)
	c.Assert(b.Close(), qt.IsNil)

	_, err := b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.ErrorIs, ErrBallotClosed)
	err = b.Vote(0, stubProof(b, 0, util.RandomBytes(types.NullifierSize)))
	c.Assert(err, qt.ErrorIs, ErrBallotClosed)

	c.Assert(f.CloseBallot(util.RandomBytes(types.BallotIDSize)), qt.ErrorIs, ErrBallotNotFound)
}

func TestInfo(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	b := newTestBallot(t, newTestFactory(t, metadb.NewTest(t)), "yes", "no")
	_, err := b.JoinBallot(testCommitment(t, 7))
	c.Assert(err, qt.IsNil)
	c.Assert(b.Vote(1, stubProof(b, 1, util.RandomBytes(types.NullifierSize))), qt.IsNil)

	info := b.Info()
	c.Assert(info.ID, qt.DeepEquals, b.ID())
	c.Assert(info.GroupID, qt.Equals, b.GroupID())
	c.Assert(info.GroupSize, qt.Equals, uint64(1))
	c.Assert([]byte(info.Root), qt.DeepEquals, b.Root())
	c.Assert(info.Winner, qt.Equals, 1)
	c.Assert(info.WinnerName, qt.Equals, "no")
	c.Assert(info.TotalVotes, qt.Equals, uint64(1))
	c.Assert(info.Status, qt.Equals, StatusOpen)
	c.Assert(info.Scope.MathBigInt().Cmp(b.Scope()), qt.Equals, 0)
}

func TestStatusText(t *testing.T) {
	c := qt.New(t)
	for _, s := range []Status{StatusOpen, StatusClosed} {
		text, err := s.MarshalText()
		c.Assert(err, qt.IsNil)
		var got Status
		c.Assert(got.UnmarshalText(text), qt.IsNil)
		c.Assert(got, qt.Equals, s)
	}
	var s Status
	c.Assert(s.UnmarshalText([]byte("paused")), qt.IsNotNil)
	c.Assert(Status(9).String(), qt.Equals, "unknown(9)")
}

func TestSharedGroup(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	f := newTestFactory(t, metadb.NewTest(t))
	a := newTestBallot(t, f)

	gid := a.GroupID()
	id, err := f.CreateBallot([]string{"x", "y"}, &gid)
	c.Assert(err, qt.IsNil)
	b, err := f.Ballot(id)
	c.Assert(err, qt.IsNil)

	// members of the group can vote in both ballots
	_, err = a.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.IsNil)
	c.Assert(b.Root(), qt.DeepEquals, a.Root())
	_, err = b.JoinBallot(testCommitment(t, 1))
	c.Assert(err, qt.ErrorIs, ErrDuplicateMember)

	// the scopes differ, so one nullifier value can be used once in each
	n := util.RandomBytes(types.NullifierSize)
	c.Assert(a.Vote(0, stubProof(a, 0, n)), qt.IsNil)
	c.Assert(b.Vote(1, stubProof(b, 1, n)), qt.IsNil)
	c.Assert(a.Scope().Cmp(b.Scope()), qt.Not(qt.Equals), 0)

	missing := uuid.New()
	_, err = f.CreateBallot([]string{"x"}, &missing)
	c.Assert(err, qt.ErrorIs, group.ErrGroupNotFound)
	c.Assert(IsNotFound(err), qt.IsTrue)
}
