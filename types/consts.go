package types

import "time"

const (
	// CommitmentSize is the width in bytes of an identity commitment.
	CommitmentSize = 32
	// NullifierSize is the width in bytes of a vote nullifier.
	NullifierSize = 32
	// BallotIDSize is the width in bytes of a ballot identifier.
	BallotIDSize = 32
	// ProposalNameMaxSize is the maximum size in bytes of a proposal name
	// (the original contract stores names as bytes32).
	ProposalNameMaxSize = 32
	// GroupTreeMaxLevels is the maximum depth of a group merkle tree, which
	// bounds the group size to 2^32 members.
	GroupTreeMaxLevels = 32
	// MaxProposals is the maximum number of proposals a single ballot can hold.
	MaxProposals = 256

	// DefaultHTTPTimeout is the timeout used by the HTTP clients.
	DefaultHTTPTimeout = 10 * time.Second
)
