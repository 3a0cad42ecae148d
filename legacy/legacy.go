// Package legacy implements the public, non anonymous ballot where a
// chairperson grants voting rights and voters can delegate their weight.
// Delegation chains are validated when they are created, so they are always
// finite and acyclic.
package legacy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/tally"
)

var (
	// ErrNotChairperson is returned when a chairperson only operation is
	// called by another account.
	ErrNotChairperson = errors.New("only the chairperson can give right to vote")
	// ErrAlreadyVoted is returned when the voter already voted or delegated.
	ErrAlreadyVoted = errors.New("the voter already voted")
	// ErrAlreadyHasRight is returned when granting rights to a voter that has them.
	ErrAlreadyHasRight = errors.New("the voter already has right to vote")
	// ErrNoRightToVote is returned when the voter has no weight.
	ErrNoRightToVote = errors.New("has no right to vote")
	// ErrSelfDelegation is returned when a voter delegates to itself.
	ErrSelfDelegation = errors.New("self-delegation is disallowed")
	// ErrDelegationCycle is returned when a delegation would close a loop.
	ErrDelegationCycle = errors.New("found loop in delegation")
)

// Voter is the state of an account in the ballot.
type Voter struct {
	Weight   uint64          `json:"weight"`
	Voted    bool            `json:"voted"`
	Delegate *common.Address `json:"delegate,omitempty"`
	Vote     int             `json:"vote"`
}

// Ballot is a weighted ballot with delegation.
type Ballot struct {
	mu          sync.Mutex
	chairperson common.Address
	voters      map[common.Address]*Voter
	proposals   []tally.Proposal
}

// New creates a ballot. The chairperson gets the right to vote.
func New(chairperson common.Address, names []string) (*Ballot, error) {
	t, err := tally.New(names)
	if err != nil {
		return nil, err
	}
	return &Ballot{
		chairperson: chairperson,
		voters: map[common.Address]*Voter{
			chairperson: {Weight: 1},
		},
		proposals: t.Proposals(),
	}, nil
}

// Chairperson returns the chairperson address.
func (b *Ballot) Chairperson() common.Address {
	return b.chairperson
}

func (b *Ballot) voter(addr common.Address) *Voter {
	v, ok := b.voters[addr]
	if !ok {
		v = &Voter{}
		b.voters[addr] = v
	}
	return v
}

// GiveRightToVote gives voter a weight of one. Only the chairperson can call it.
func (b *Ballot) GiveRightToVote(sender, voter common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sender != b.chairperson {
		return ErrNotChairperson
	}
	v := b.voter(voter)
	if v.Voted {
		return ErrAlreadyVoted
	}
	if v.Weight != 0 {
		return ErrAlreadyHasRight
	}
	v.Weight = 1
	return nil
}

// Delegate transfers the weight of sender to the end of the delegation chain
// starting at to. If that voter already voted, its proposal gets the weight.
func (b *Ballot) Delegate(sender, to common.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.voter(sender)
	if s.Weight == 0 {
		return ErrNoRightToVote
	}
	if s.Voted {
		return ErrAlreadyVoted
	}
	if to == sender {
		return ErrSelfDelegation
	}
	// chains are acyclic, so this walk ends
	for {
		next := b.voters[to]
		if next == nil || next.Delegate == nil {
			break
		}
		to = *next.Delegate
		if to == sender {
			return ErrDelegationCycle
		}
	}
	d := b.voter(to)
	if d.Weight == 0 {
		return ErrNoRightToVote
	}
	s.Voted = true
	s.Delegate = &to
	if d.Voted {
		b.proposals[d.Vote].VoteCount += s.Weight
	} else {
		d.Weight += s.Weight
	}
	log.Debugw("vote delegated", "from", sender.Hex(), "to", to.Hex(), "weight", s.Weight)
	return nil
}

// Vote gives the weight of sender, including delegated weight, to proposal.
func (b *Ballot) Vote(sender common.Address, proposal int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.voter(sender)
	if s.Weight == 0 {
		return ErrNoRightToVote
	}
	if s.Voted {
		return ErrAlreadyVoted
	}
	if proposal < 0 || proposal >= len(b.proposals) {
		return fmt.Errorf("%w: %d", tally.ErrInvalidProposal, proposal)
	}
	s.Voted = true
	s.Vote = proposal
	b.proposals[proposal].VoteCount += s.Weight
	return nil
}

// Voter returns a copy of the state of addr.
func (b *Ballot) Voter(addr common.Address) Voter {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.voters[addr]
	if !ok {
		return Voter{}
	}
	return *v
}

// Proposals returns the proposals with their vote counts.
func (b *Ballot) Proposals() []tally.Proposal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tally.Proposal(nil), b.proposals...)
}

// WinningProposal returns the proposal with the most votes, the lowest index
// among ties.
func (b *Ballot) WinningProposal() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	counts := make([]uint64, len(b.proposals))
	for i, p := range b.proposals {
		counts[i] = p.VoteCount
	}
	return tally.Leader(counts)
}

// WinnerName returns the name of the winning proposal.
func (b *Ballot) WinnerName() string {
	w := b.WinningProposal()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.proposals[w].Name
}
