package ballot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
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

var (
	ballotPrefix    = []byte("b/")
	orderPrefix     = []byte("f/")
	nullifierPrefix = []byte("nl/")
)

// Factory creates ballots and keeps the append-only registry of the ballots
// created so far. Ballots share the group registry, the nullifier ledger
// and the verifier, but no mutable state: each one has its own scope and
// tally.
type Factory struct {
	mu       sync.RWMutex
	db       db.Database
	groups   *group.Registry
	ledger   *nullifier.Ledger
	verifier verifier.Verifier
	ballots  map[string]*Ballot
	order    []types.HexBytes
	events   *listeners
}

// NewFactory returns a Factory storing its ballots in database, and loads
// the ballots created by previous runs.
func NewFactory(database db.Database, groups *group.Registry, v verifier.Verifier) (*Factory, error) {
	if groups == nil {
		return nil, fmt.Errorf("group registry is nil")
	}
	if v == nil {
		return nil, fmt.Errorf("verifier is nil")
	}
	f := &Factory{
		db:       database,
		groups:   groups,
		ledger:   nullifier.New(database, nullifierPrefix),
		verifier: v,
		ballots:  make(map[string]*Ballot),
		events:   &listeners{},
	}
	if err := f.load(); err != nil {
		return nil, err
	}
	return f, nil
}

// load restores the stored ballots in creation order.
func (f *Factory) load() error {
	var ids [][]byte
	// keys are big-endian indexes, so iteration follows creation order
	if err := prefixeddb.NewPrefixedReader(f.db, orderPrefix).Iterate(nil, func(_, v []byte) bool {
		ids = append(ids, bytes.Clone(v))
		return true
	}); err != nil {
		return fmt.Errorf("cannot list ballots: %w", err)
	}
	ballots := prefixeddb.NewPrefixedReader(f.db, ballotPrefix)
	for _, id := range ids {
		data, err := ballots.Get(id)
		if err != nil {
			return fmt.Errorf("cannot read ballot %x: %w", id, err)
		}
		rec := record{}
		if err := util.DecodeRecord(data, &rec); err != nil {
			return fmt.Errorf("cannot decode ballot %x: %w", id, err)
		}
		gid, err := uuid.FromBytes(rec.GroupID)
		if err != nil {
			return err
		}
		g, err := f.groups.Load(gid)
		if err != nil {
			return fmt.Errorf("cannot load group of ballot %x: %w", id, err)
		}
		t, err := tally.FromProposals(rec.Proposals)
		if err != nil {
			return err
		}
		b := f.newBallot(rec.ID, rec.Index, g, t, time.Unix(rec.CreatedAt, 0))
		b.status = Status(rec.Status)
		f.add(b)
	}
	if len(ids) > 0 {
		log.Infow("loaded ballots", "count", len(ids))
	}
	return nil
}

func (f *Factory) newBallot(id []byte, index uint64, g *group.Group, t *tally.Tally, createdAt time.Time) *Ballot {
	return &Ballot{
		id:        bytes.Clone(id),
		index:     index,
		scope:     ScopeFromID(id),
		group:     g,
		ledger:    f.ledger,
		tally:     t,
		verifier:  f.verifier,
		db:        f.db,
		status:    StatusOpen,
		createdAt: createdAt,
		events:    f.events,
	}
}

func (f *Factory) add(b *Ballot) {
	f.ballots[string(b.id)] = b
	f.order = append(f.order, b.id)
}

// CreateBallot creates a ballot with the given proposal names. If groupID is
// nil a new empty group is created for the ballot, otherwise the ballot
// shares the existing group. Nothing is stored if the creation fails.
func (f *Factory) CreateBallot(names []string, groupID *uuid.UUID) (types.HexBytes, error) {
	t, err := tally.New(names)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var g *group.Group
	if groupID == nil {
		g, err = f.groups.New(uuid.New())
	} else {
		g, err = f.groups.Load(*groupID)
	}
	if err != nil {
		return nil, err
	}

	index := uint64(len(f.order))
	id := newBallotID(g.ID(), index)
	b := f.newBallot(id, index, g, t, time.Now())
	if err := f.store(b, t); err != nil {
		// the group was created for this ballot only
		if groupID == nil {
			if dErr := f.groups.Discard(g.ID()); dErr != nil {
				log.Warnw("cannot discard group of failed ballot", "group", g.ID().String(), "error", dErr)
			}
		}
		return nil, err
	}
	f.add(b)

	info := b.Info()
	log.Infow("ballot created",
		"ballot", info.ID.String(),
		"index", index,
		"group", info.GroupID.String(),
		"proposals", len(names),
		"scope", info.Scope.String())
	f.events.each(func(l EventListener) { l.OnBallotCreated(info) })
	return b.ID(), nil
}

// store writes the ballot position and its first record in one transaction.
func (f *Factory) store(b *Ballot, t *tally.Tally) error {
	wTx := f.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, orderPrefix).Set(uint64ToBytes(b.index), b.id); err != nil {
		return err
	}
	if err := b.writeRecord(wTx, t.Proposals(), StatusOpen); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("cannot store ballot: %w", err)
	}
	return nil
}

// Ballot returns the ballot with the given id.
func (f *Factory) Ballot(id []byte) (*Ballot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	b, ok := f.ballots[string(id)]
	if !ok {
		return nil, ErrBallotNotFound
	}
	return b, nil
}

// Ballots returns the ids of all the ballots, in creation order.
func (f *Factory) Ballots() []types.HexBytes {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]types.HexBytes, len(f.order))
	for i, id := range f.order {
		ids[i] = bytes.Clone(id)
	}
	return ids
}

// CloseBallot closes the ballot with the given id.
func (f *Factory) CloseBallot(id []byte) error {
	b, err := f.Ballot(id)
	if err != nil {
		return err
	}
	return b.Close()
}

// Groups returns the group registry used by the factory.
func (f *Factory) Groups() *group.Registry {
	return f.groups
}

// AddEventListener registers l to receive the events of every ballot.
func (f *Factory) AddEventListener(l EventListener) {
	f.events.add(l)
}

// newBallotID derives a ballot id from its group and its position in the
// factory. A random salt keeps ids of different factories apart.
func newBallotID(groupID uuid.UUID, index uint64) []byte {
	return crypto.Keccak256(groupID[:], uint64ToBytes(index), util.RandomBytes(8))
}

// IsNotFound reports whether err means that a ballot or its group do not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBallotNotFound) || errors.Is(err, group.ErrGroupNotFound)
}

// ScopeOf returns the scope for a ballot id given as hex.
func ScopeOf(hexID string) (*big.Int, error) {
	id, err := types.HexStringToFixedBytes(hexID, types.BallotIDSize)
	if err != nil {
		return nil, err
	}
	return ScopeFromID(id), nil
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
