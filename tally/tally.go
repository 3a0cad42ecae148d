// Package tally keeps the per-proposal vote counters of a ballot.
package tally

import (
	"errors"
	"fmt"
	"sync"

	"go.vocdoni.io/anonvote/types"
)

var (
	// ErrEmptyProposalList is returned when a tally is created without proposals.
	ErrEmptyProposalList = errors.New("proposal list is empty")
	// ErrInvalidProposal is returned for proposal indexes out of range.
	ErrInvalidProposal = errors.New("invalid proposal index")
	// ErrTooManyProposals is returned when the proposal list exceeds types.MaxProposals.
	ErrTooManyProposals = fmt.Errorf("more than %d proposals", types.MaxProposals)
)

// Proposal is a named vote counter.
type Proposal struct {
	Name      string `json:"name" cbor:"1,keyasint"`
	VoteCount uint64 `json:"voteCount" cbor:"2,keyasint"`
}

// Tally is a fixed size list of proposals. The list and the names never
// change after creation, and counters only grow through RecordVote.
type Tally struct {
	mu        sync.RWMutex
	proposals []Proposal
}

// New returns a tally with one zeroed counter per name.
func New(names []string) (*Tally, error) {
	proposals := make([]Proposal, len(names))
	for i, n := range names {
		proposals[i] = Proposal{Name: n}
	}
	return FromProposals(proposals)
}

// FromProposals restores a tally from a previous snapshot.
func FromProposals(proposals []Proposal) (*Tally, error) {
	if len(proposals) == 0 {
		return nil, ErrEmptyProposalList
	}
	if len(proposals) > types.MaxProposals {
		return nil, ErrTooManyProposals
	}
	for _, p := range proposals {
		if _, err := types.EncodeProposalName(p.Name); err != nil {
			return nil, err
		}
	}
	return &Tally{proposals: append([]Proposal(nil), proposals...)}, nil
}

// RecordVote adds one vote to proposal i.
func (t *Tally) RecordVote(i int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.proposals) {
		return fmt.Errorf("%w: %d", ErrInvalidProposal, i)
	}
	t.proposals[i].VoteCount++
	return nil
}

// CheckIndex returns ErrInvalidProposal if i is not a valid proposal index.
func (t *Tally) CheckIndex(i int) error {
	if i < 0 || i >= t.Count() {
		return fmt.Errorf("%w: %d", ErrInvalidProposal, i)
	}
	return nil
}

// Count returns the number of proposals.
func (t *Tally) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.proposals)
}

// Proposals returns a copy of the proposals with their current counts.
func (t *Tally) Proposals() []Proposal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]Proposal(nil), t.proposals...)
}

// WithVote returns a copy of the proposals as they would be after a vote
// for proposal i, leaving the tally untouched.
func (t *Tally) WithVote(i int) ([]Proposal, error) {
	if err := t.CheckIndex(i); err != nil {
		return nil, err
	}
	p := t.Proposals()
	p[i].VoteCount++
	return p, nil
}

// Total returns the sum of all the counters.
func (t *Tally) Total() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var total uint64
	for _, p := range t.proposals {
		total += p.VoteCount
	}
	return total
}

// WinningProposal returns the index of the proposal with the most votes.
// Ties resolve to the lowest index, so with no votes it returns 0.
func (t *Tally) WinningProposal() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make([]uint64, len(t.proposals))
	for i, p := range t.proposals {
		counts[i] = p.VoteCount
	}
	return Leader(counts)
}

// WinnerName returns the name of the winning proposal.
func (t *Tally) WinnerName() string {
	w := t.WinningProposal()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.proposals[w].Name
}

// Leader returns the index of the strictly greatest count, the lowest index
// among tied maxima.
func Leader(counts []uint64) int {
	winner := 0
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[winner] {
			winner = i
		}
	}
	return winner
}
