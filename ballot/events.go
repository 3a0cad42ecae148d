package ballot

import (
	"sync"

	"github.com/google/uuid"
)

// EventListener receives the accepted and rejected operations of every
// ballot of a Factory. Methods are called synchronously after the operation
// is settled, so they must not block nor call back into the ballot.
type EventListener interface {
	OnBallotCreated(info *Info)
	OnJoin(ballotID []byte, groupID uuid.UUID, groupSize uint64)
	OnJoinRejected(ballotID []byte, err error)
	OnVote(ballotID []byte, proposal int)
	OnVoteRejected(ballotID []byte, err error)
	OnBallotClosed(ballotID []byte)
}

// listeners is the set of event listeners shared by a factory and its ballots.
type listeners struct {
	mu sync.RWMutex
	l  []EventListener
}

func (ls *listeners) add(l EventListener) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.l = append(ls.l, l)
}

func (ls *listeners) each(fn func(EventListener)) {
	if ls == nil {
		return
	}
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	for _, l := range ls.l {
		fn(l)
	}
}
