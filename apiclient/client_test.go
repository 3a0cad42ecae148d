package apiclient

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/api"
	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/httprouter/apirest"
	"go.vocdoni.io/anonvote/test/testcommon"
	"go.vocdoni.io/anonvote/test/testcommon/testutil"
	"go.vocdoni.io/anonvote/verifier"
)

func newTestClient(t *testing.T) (*HTTPclient, uuid.UUID) {
	server := testcommon.APIserver{}
	server.Start(t, nil)
	c, err := NewHTTPclient(server.ListenAddr, nil)
	qt.Assert(t, err, qt.IsNil)
	return c, server.AdminToken
}

func apiErrorCode(err error) int {
	var apiErr apirest.APIerror
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

func TestClient(t *testing.T) {
	c := qt.New(t)
	cli, admin := newTestClient(t)
	rng := testutil.NewRandom(3)

	created, err := cli.CreateBallot([]string{"red", "green"}, nil)
	c.Assert(err, qt.IsNil)
	ids, err := cli.Ballots()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 1)

	commitment := rng.RandomCommitment(t)
	joined, err := cli.Join(created.BallotID, commitment)
	c.Assert(err, qt.IsNil)
	_, err = cli.Join(created.BallotID, commitment)
	c.Assert(apiErrorCode(err), qt.Equals, api.ErrDuplicateMember.Code)

	member, err := cli.Member(created.BallotID, commitment)
	c.Assert(err, qt.IsNil)
	c.Assert(member.Joined, qt.IsTrue)

	nullifier := rng.RandomNullifier()
	proof := &verifier.Proof{MerkleTreeDepth: 1, Nullifier: nullifier, Points: []byte{1}}
	c.Assert(cli.Vote(created.BallotID, 1, proof), qt.IsNil)
	err = cli.Vote(created.BallotID, 0, proof)
	c.Assert(apiErrorCode(err), qt.Equals, api.ErrAlreadyVoted.Code)

	voted, err := cli.Nullifier(created.BallotID, nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(voted, qt.IsTrue)

	w, err := cli.Winner(created.BallotID)
	c.Assert(err, qt.IsNil)
	c.Assert(w.Name, qt.Equals, "green")
	proposals, err := cli.Proposals(created.BallotID)
	c.Assert(err, qt.IsNil)
	c.Assert(proposals[1].VoteCount, qt.Equals, uint64(1))

	g, err := cli.Group(created.GroupID)
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(g.Root), qt.DeepEquals, []byte(joined.Root))
	members, err := cli.GroupMembers(created.GroupID)
	c.Assert(err, qt.IsNil)
	c.Assert(members, qt.HasLen, 1)
	mp, err := cli.GroupProof(created.GroupID, commitment)
	c.Assert(err, qt.IsNil)
	c.Assert(mp.Index, qt.Equals, uint64(0))
	groups, err := cli.Groups()
	c.Assert(err, qt.IsNil)
	c.Assert(groups, qt.DeepEquals, []uuid.UUID{created.GroupID})

	_, err = cli.Close(created.BallotID)
	c.Assert(err, qt.ErrorMatches, ".*401.*")
	cli.SetAuthToken(&admin)
	info, err := cli.Close(created.BallotID)
	c.Assert(err, qt.IsNil)
	c.Assert(info.Status, qt.Equals, ballot.StatusClosed)
	c.Assert(info.TotalVotes, qt.Equals, uint64(1))

	_, err = cli.Ballot(make([]byte, 32))
	c.Assert(apiErrorCode(err), qt.Equals, api.ErrBallotNotFound.Code)
}
