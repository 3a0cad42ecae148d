package apiclient

import (
	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/api"
	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/tally"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/verifier"
)

// CreateBallot creates a new ballot with the given proposal names. If groupID
// is nil the ballot gets a new group, otherwise it shares the existing one.
func (c *HTTPclient) CreateBallot(proposals []string, groupID *uuid.UUID) (*api.BallotCreated, error) {
	created := &api.BallotCreated{}
	if err := c.requestJSON(created, HTTPPOST, &api.NewBallot{Proposals: proposals, GroupID: groupID}, "ballots"); err != nil {
		return nil, err
	}
	return created, nil
}

// Ballots returns the ballot ids in creation order.
func (c *HTTPclient) Ballots() ([]types.HexBytes, error) {
	list := &api.BallotList{}
	if err := c.requestJSON(list, HTTPGET, nil, "ballots"); err != nil {
		return nil, err
	}
	return list.Ballots, nil
}

// Ballot returns the current state of a ballot.
func (c *HTTPclient) Ballot(ballotID types.HexBytes) (*ballot.Info, error) {
	info := &ballot.Info{}
	if err := c.requestJSON(info, HTTPGET, nil, "ballots", ballotID.String()); err != nil {
		return nil, err
	}
	return info, nil
}

// Proposals returns the proposals of a ballot with their vote counts.
func (c *HTTPclient) Proposals(ballotID types.HexBytes) ([]tally.Proposal, error) {
	list := &api.ProposalList{}
	if err := c.requestJSON(list, HTTPGET, nil, "ballots", ballotID.String(), "proposals"); err != nil {
		return nil, err
	}
	return list.Proposals, nil
}

// Winner returns the leading proposal of a ballot.
func (c *HTTPclient) Winner(ballotID types.HexBytes) (*api.Winner, error) {
	w := &api.Winner{}
	if err := c.requestJSON(w, HTTPGET, nil, "ballots", ballotID.String(), "winner"); err != nil {
		return nil, err
	}
	return w, nil
}

// Join adds an identity commitment to the ballot group.
func (c *HTTPclient) Join(ballotID, commitment types.HexBytes) (*api.Joined, error) {
	joined := &api.Joined{}
	if err := c.requestJSON(joined, HTTPPOST, &api.Join{Commitment: commitment},
		"ballots", ballotID.String(), "members"); err != nil {
		return nil, err
	}
	return joined, nil
}

// Member tells whether commitment joined the ballot group.
func (c *HTTPclient) Member(ballotID, commitment types.HexBytes) (*api.MemberStatus, error) {
	status := &api.MemberStatus{}
	if err := c.requestJSON(status, HTTPGET, nil,
		"ballots", ballotID.String(), "members", commitment.String()); err != nil {
		return nil, err
	}
	return status, nil
}

// Vote submits an anonymous vote for proposal.
func (c *HTTPclient) Vote(ballotID types.HexBytes, proposal int, proof *verifier.Proof) error {
	return c.requestJSON(nil, HTTPPOST, &api.Vote{Proposal: proposal, Proof: proof},
		"ballots", ballotID.String(), "votes")
}

// Nullifier tells whether nullifier was already used in the ballot.
func (c *HTTPclient) Nullifier(ballotID, nullifier types.HexBytes) (bool, error) {
	status := &api.NullifierStatus{}
	if err := c.requestJSON(status, HTTPGET, nil,
		"ballots", ballotID.String(), "nullifiers", nullifier.String()); err != nil {
		return false, err
	}
	return status.Voted, nil
}

// Close closes a ballot. It requires the admin token.
func (c *HTTPclient) Close(ballotID types.HexBytes) (*ballot.Info, error) {
	info := &ballot.Info{}
	if err := c.requestJSON(info, HTTPPOST, nil, "ballots", ballotID.String(), "close"); err != nil {
		return nil, err
	}
	return info, nil
}
