package ballot

import (
	"errors"
	"fmt"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/nullifier"
	"go.vocdoni.io/anonvote/tally"
)

var (
	// ErrDuplicateMember is returned when joining with a commitment that is
	// already part of the ballot group.
	ErrDuplicateMember = group.ErrDuplicateMember
	// ErrInvalidProposal is returned when voting for a proposal index out of range.
	ErrInvalidProposal = tally.ErrInvalidProposal
	// ErrEmptyProposalList is returned when creating a ballot with no proposals.
	ErrEmptyProposalList = tally.ErrEmptyProposalList
	// ErrInvalidProof is returned when the vote proof is rejected. A proof
	// built against a root that is no longer current is rejected too, the
	// voter must build it again.
	ErrInvalidProof = errors.New("invalid vote proof")
	// ErrAlreadyVoted is returned when the proof nullifier was already used
	// in the ballot.
	ErrAlreadyVoted = fmt.Errorf("already voted: %w", nullifier.ErrNullifierReused)
	// ErrBallotClosed is returned for joins and votes on a closed ballot.
	ErrBallotClosed = errors.New("ballot is closed")
	// ErrBallotNotFound is returned when the ballot id is unknown.
	ErrBallotNotFound = errors.New("ballot not found")
)
