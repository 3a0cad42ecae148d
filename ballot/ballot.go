// Package ballot implements anonymous ballots. A Ballot ties together a
// group of identity commitments, a nullifier ledger, a proposal tally and a
// proof verifier, and enforces that every member votes at most once without
// revealing who voted what.
package ballot

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/nullifier"
	"go.vocdoni.io/anonvote/tally"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
	"go.vocdoni.io/anonvote/verifier"
)

// Status is the lifecycle state of a ballot.
type Status uint8

const (
	// StatusOpen ballots accept joins and votes.
	StatusOpen Status = iota
	// StatusClosed ballots are read only.
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "open":
		*s = StatusOpen
	case "closed":
		*s = StatusClosed
	default:
		return fmt.Errorf("unknown ballot status %q", text)
	}
	return nil
}

// record is the persisted state of a ballot.
type record struct {
	ID        []byte           `cbor:"1,keyasint"`
	Index     uint64           `cbor:"2,keyasint"`
	GroupID   []byte           `cbor:"3,keyasint"`
	Proposals []tally.Proposal `cbor:"4,keyasint"`
	Status    uint8            `cbor:"5,keyasint"`
	CreatedAt int64            `cbor:"6,keyasint"`
}

// Ballot is one independent voting round. Joins, votes and Close are
// serialized, and a vote is applied entirely or not at all.
type Ballot struct {
	mu        sync.Mutex
	id        types.HexBytes
	index     uint64
	scope     *big.Int
	group     *group.Group
	ledger    *nullifier.Ledger
	tally     *tally.Tally
	verifier  verifier.Verifier
	db        db.Database
	status    Status
	createdAt time.Time
	events    *listeners
}

// Info is a read only snapshot of a ballot.
type Info struct {
	ID         types.HexBytes   `json:"ballotId"`
	Index      uint64           `json:"index"`
	Scope      *types.BigInt    `json:"scope"`
	GroupID    uuid.UUID        `json:"groupId"`
	Root       types.HexBytes   `json:"root"`
	GroupSize  uint64           `json:"groupSize"`
	Proposals  []tally.Proposal `json:"proposals"`
	Winner     int              `json:"winner"`
	WinnerName string           `json:"winnerName"`
	TotalVotes uint64           `json:"totalVotes"`
	Status     Status           `json:"status"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// ScopeFromID returns the scope of the ballot with the given id. Proofs
// must be built for this scope.
func ScopeFromID(id []byte) *big.Int {
	return util.HashToField(id)
}

// ID returns the ballot identifier.
func (b *Ballot) ID() types.HexBytes {
	return bytes.Clone(b.id)
}

// Scope returns the value every vote proof of this ballot is bound to.
func (b *Ballot) Scope() *big.Int {
	return new(big.Int).Set(b.scope)
}

// GroupID returns the identifier of the ballot group.
func (b *Ballot) GroupID() uuid.UUID {
	return b.group.ID()
}

// Root returns the current root of the ballot group.
func (b *Ballot) Root() []byte {
	return b.group.Root()
}

// CreatedAt returns the ballot creation time.
func (b *Ballot) CreatedAt() time.Time {
	return b.createdAt
}

// Status returns the ballot status.
func (b *Ballot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// ProposalCount returns the number of proposals.
func (b *Ballot) ProposalCount() int {
	return b.tally.Count()
}

// Proposals returns the proposals with their current vote counts.
func (b *Ballot) Proposals() []tally.Proposal {
	return b.tally.Proposals()
}

// WinningProposal returns the index of the leading proposal.
func (b *Ballot) WinningProposal() int {
	return b.tally.WinningProposal()
}

// WinnerName returns the name of the leading proposal.
func (b *Ballot) WinnerName() string {
	return b.tally.WinnerName()
}

// IsMember reports whether the commitment joined the ballot group.
func (b *Ballot) IsMember(commitment []byte) (bool, error) {
	return b.group.IsMember(commitment)
}

// MemberIndex returns the position of the commitment in the ballot group.
func (b *Ballot) MemberIndex(commitment []byte) (uint64, error) {
	return b.group.Index(commitment)
}

// HasVoted reports whether the nullifier was already used in this ballot.
func (b *Ballot) HasVoted(nullifierValue []byte) (bool, error) {
	return b.ledger.Has(b.scope, nullifierValue)
}

// Votes returns the number of accepted votes, as recorded by the nullifier
// ledger.
func (b *Ballot) Votes() (uint64, error) {
	return b.ledger.Count(b.scope)
}

// JoinBallot adds the identity commitment to the ballot group and returns
// the new root.
func (b *Ballot) JoinBallot(commitment []byte) ([]byte, error) {
	root, err := b.join(commitment)
	if err != nil {
		b.events.each(func(l EventListener) { l.OnJoinRejected(b.id, err) })
		return nil, err
	}
	size := b.group.Size()
	b.events.each(func(l EventListener) { l.OnJoin(b.id, b.group.ID(), size) })
	return root, nil
}

func (b *Ballot) join(commitment []byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusOpen {
		return nil, ErrBallotClosed
	}
	return b.group.Join(commitment)
}

// Vote casts an anonymous vote for proposal with the given proof. The index
// is checked first, then the proof against the current group root, then the
// nullifier is consumed together with the new tally, which is only
// published in memory once persisted. On error nothing is changed.
func (b *Ballot) Vote(proposal int, proof *verifier.Proof) error {
	if err := b.vote(proposal, proof); err != nil {
		log.Debugw("vote rejected",
			"ballot", b.id.String(),
			"proposal", proposal,
			"error", err)
		b.events.each(func(l EventListener) { l.OnVoteRejected(b.id, err) })
		return err
	}
	log.Debugw("vote accepted", "ballot", b.id.String(), "proposal", proposal)
	b.events.each(func(l EventListener) { l.OnVote(b.id, proposal) })
	return nil
}

func (b *Ballot) vote(proposal int, proof *verifier.Proof) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.status != StatusOpen {
		return ErrBallotClosed
	}
	if err := b.tally.CheckIndex(proposal); err != nil {
		return err
	}
	if err := proof.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	root := b.group.Root()
	signal := big.NewInt(int64(proposal))
	if err := b.checkBinding(proof, root, signal); err != nil {
		return err
	}
	ok, err := b.verifier.Verify(proof, root, b.scope, signal)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if !ok {
		return ErrInvalidProof
	}

	err = b.ledger.ConsumeWith(b.scope, proof.Nullifier, func(wTx db.WriteTx) error {
		proposals, err := b.tally.WithVote(proposal)
		if err != nil {
			return err
		}
		return b.writeRecord(wTx, proposals, b.status)
	})
	if errors.Is(err, nullifier.ErrNullifierReused) {
		return ErrAlreadyVoted
	}
	if err != nil {
		return err
	}
	return b.tally.RecordVote(proposal)
}

// checkBinding compares the optional public values carried by the proof
// with the ones of the ballot. A mismatch means the proof was built for a
// different ballot, choice or group state.
func (b *Ballot) checkBinding(proof *verifier.Proof, root []byte, signal *big.Int) error {
	if len(proof.MerkleTreeRoot) > 0 && !bytes.Equal(proof.MerkleTreeRoot, root) {
		return fmt.Errorf("%w: root mismatch", ErrInvalidProof)
	}
	if proof.Scope != nil && proof.Scope.MathBigInt().Cmp(b.scope) != 0 {
		return fmt.Errorf("%w: scope mismatch", ErrInvalidProof)
	}
	if proof.Message != nil && proof.Message.MathBigInt().Cmp(signal) != 0 {
		return fmt.Errorf("%w: message does not match the proposal", ErrInvalidProof)
	}
	return nil
}

// Close moves the ballot to the closed state. Closing a closed ballot is a
// no-op.
func (b *Ballot) Close() error {
	b.mu.Lock()
	if b.status == StatusClosed {
		b.mu.Unlock()
		return nil
	}
	wTx := b.db.WriteTx()
	defer wTx.Discard()
	if err := b.writeRecord(wTx, b.tally.Proposals(), StatusClosed); err != nil {
		b.mu.Unlock()
		return err
	}
	if err := wTx.Commit(); err != nil {
		b.mu.Unlock()
		return err
	}
	b.status = StatusClosed
	b.mu.Unlock()

	log.Infow("ballot closed", "ballot", b.id.String())
	b.events.each(func(l EventListener) { l.OnBallotClosed(b.id) })
	return nil
}

// Info returns a consistent snapshot of the ballot.
func (b *Ballot) Info() *Info {
	b.mu.Lock()
	status := b.status
	proposals := b.tally.Proposals()
	b.mu.Unlock()

	counts := make([]uint64, len(proposals))
	var total uint64
	for i, p := range proposals {
		counts[i] = p.VoteCount
		total += p.VoteCount
	}
	winner := tally.Leader(counts)
	return &Info{
		ID:         b.ID(),
		Index:      b.index,
		Scope:      types.NewBigInt(b.scope),
		GroupID:    b.group.ID(),
		Root:       b.group.Root(),
		GroupSize:  b.group.Size(),
		Proposals:  proposals,
		Winner:     winner,
		WinnerName: proposals[winner].Name,
		TotalVotes: total,
		Status:     status,
		CreatedAt:  b.createdAt,
	}
}

// writeRecord stores the ballot with the given proposals and status within
// wTx, which must be a transaction of the factory database.
func (b *Ballot) writeRecord(wTx db.WriteTx, proposals []tally.Proposal, status Status) error {
	gid := b.group.ID()
	data, err := util.EncodeRecord(&record{
		ID:        b.id,
		Index:     b.index,
		GroupID:   gid[:],
		Proposals: proposals,
		Status:    uint8(status),
		CreatedAt: b.createdAt.Unix(),
	})
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, ballotPrefix).Set(b.id, data)
}
