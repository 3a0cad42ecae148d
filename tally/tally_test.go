package tally

import (
	"strings"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"go.vocdoni.io/anonvote/types"
)

func TestNew(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.ErrorIs, ErrEmptyProposalList)
	_, err = New([]string{strings.Repeat("x", 33)})
	c.Assert(err, qt.ErrorIs, types.ErrProposalNameTooLong)
	_, err = New(make([]string, types.MaxProposals+1))
	c.Assert(err, qt.ErrorIs, ErrTooManyProposals)

	tl, err := New([]string{"a", "b", "c"})
	c.Assert(err, qt.IsNil)
	c.Assert(tl.Count(), qt.Equals, 3)
	c.Assert(tl.Proposals(), qt.DeepEquals, []Proposal{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	// no votes: proposal 0 wins
	c.Assert(tl.WinningProposal(), qt.Equals, 0)
	c.Assert(tl.WinnerName(), qt.Equals, "a")
}

func TestRecordVote(t *testing.T) {
	c := qt.New(t)
	tl, err := New([]string{"p0", "p1", "p2"})
	c.Assert(err, qt.IsNil)

	c.Assert(tl.RecordVote(3), qt.ErrorIs, ErrInvalidProposal)
	c.Assert(tl.RecordVote(-1), qt.ErrorIs, ErrInvalidProposal)
	c.Assert(tl.Total(), qt.Equals, uint64(0))

	c.Assert(tl.RecordVote(1), qt.IsNil)
	c.Assert(tl.WinningProposal(), qt.Equals, 1)
	c.Assert(tl.WinnerName(), qt.Equals, "p1")

	// tie between 1 and 2: lowest index wins
	c.Assert(tl.RecordVote(2), qt.IsNil)
	c.Assert(tl.WinningProposal(), qt.Equals, 1)

	c.Assert(tl.RecordVote(2), qt.IsNil)
	c.Assert(tl.WinningProposal(), qt.Equals, 2)
	c.Assert(tl.Total(), qt.Equals, uint64(3))

	// copies do not alias the tally
	p := tl.Proposals()
	p[0].VoteCount = 100
	c.Assert(tl.WinningProposal(), qt.Equals, 2)

	next, err := tl.WithVote(0)
	c.Assert(err, qt.IsNil)
	c.Assert(next[0].VoteCount, qt.Equals, uint64(1))
	c.Assert(tl.Proposals()[0].VoteCount, qt.Equals, uint64(0))
	_, err = tl.WithVote(9)
	c.Assert(err, qt.ErrorIs, ErrInvalidProposal)
}

func TestLeader(t *testing.T) {
	for _, tc := range []struct {
		counts []uint64
		want   int
	}{
		{[]uint64{0}, 0},
		{[]uint64{0, 0, 0}, 0},
		{[]uint64{1, 1, 1}, 0},
		{[]uint64{0, 2, 2}, 1},
		{[]uint64{3, 2, 5, 5}, 2},
		{[]uint64{0, 0, 1}, 2},
	} {
		qt.Assert(t, Leader(tc.counts), qt.Equals, tc.want, qt.Commentf("counts %v", tc.counts))
	}
}

func TestConcurrentVotes(t *testing.T) {
	tl, err := New([]string{"a", "b"})
	qt.Assert(t, err, qt.IsNil)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			qt.Check(t, tl.RecordVote(i%2), qt.IsNil)
		}(i)
	}
	wg.Wait()
	qt.Assert(t, tl.Proposals(), qt.DeepEquals, []Proposal{{"a", 50}, {"b", 50}})
}

func TestFromProposals(t *testing.T) {
	tl, err := FromProposals([]Proposal{{"a", 3}, {"b", 7}})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, tl.WinningProposal(), qt.Equals, 1)
	qt.Assert(t, tl.Total(), qt.Equals, uint64(10))
}
