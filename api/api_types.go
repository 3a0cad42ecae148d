package api

import (
	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/tally"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/verifier"
)

// NewBallot is the request to create a ballot. Without GroupID the ballot
// gets a new empty group.
type NewBallot struct {
	Proposals []string   `json:"proposals"`
	GroupID   *uuid.UUID `json:"groupId,omitempty"`
}

// BallotCreated is the response to a ballot creation.
type BallotCreated struct {
	BallotID types.HexBytes `json:"ballotId"`
	Scope    *types.BigInt  `json:"scope"`
	GroupID  uuid.UUID      `json:"groupId"`
}

// BallotList is the list of ballot ids, in creation order.
type BallotList struct {
	Ballots []types.HexBytes `json:"ballots"`
}

// ProposalList is the list of proposals of a ballot with their vote counts.
type ProposalList struct {
	Proposals []tally.Proposal `json:"proposals"`
}

// Winner is the currently leading proposal.
type Winner struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	VoteCount uint64 `json:"voteCount"`
}

// Join is the request to add an identity commitment to a ballot group.
type Join struct {
	Commitment types.HexBytes `json:"commitment"`
}

// Joined is the response to an accepted join.
type Joined struct {
	Root  types.HexBytes `json:"root"`
	Index uint64         `json:"index"`
}

// MemberStatus tells whether a commitment is a member of a ballot group.
type MemberStatus struct {
	Joined bool    `json:"joined"`
	Index  *uint64 `json:"index,omitempty"`
}

// Vote is an anonymous vote submission.
type Vote struct {
	Proposal int             `json:"proposal"`
	Proof    *verifier.Proof `json:"proof"`
}

// VoteAccepted is the response to an accepted vote.
type VoteAccepted struct {
	Nullifier types.HexBytes `json:"nullifier"`
}

// NullifierStatus tells whether a nullifier was used in a ballot.
type NullifierStatus struct {
	Voted bool `json:"voted"`
}

// Group is the public state of a group.
type Group struct {
	ID   uuid.UUID      `json:"groupId"`
	Root types.HexBytes `json:"root"`
	Size uint64         `json:"size"`
}

// GroupList is the list of group ids.
type GroupList struct {
	Groups []uuid.UUID `json:"groups"`
}

// MemberList is the ordered list of commitments of a group.
type MemberList struct {
	Members []types.HexBytes `json:"members"`
}
