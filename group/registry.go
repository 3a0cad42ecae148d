package group

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/util"
)

var (
	groupDBprefix          = []byte("gs/")
	groupDBreferencePrefix = []byte("gr/")
)

var (
	// ErrGroupNotFound is returned when a group is not found in the database.
	ErrGroupNotFound = fmt.Errorf("group not found in the local database")
	// ErrGroupAlreadyExists is returned by New() if the group already exists.
	ErrGroupAlreadyExists = fmt.Errorf("group already exists in the local database")
	// ErrGroupNotEmpty is returned by Discard() for groups with members.
	ErrGroupNotEmpty = fmt.Errorf("group has members")
)

// groupRef is the persisted reference of a group.
type groupRef struct {
	ID        []byte `cbor:"1,keyasint"`
	MaxLevels int    `cbor:"2,keyasint"`
	CreatedAt int64  `cbor:"3,keyasint"`
}

// Registry is a safe and persistent store of groups. A group opened through
// the registry is shared: every caller asking for the same ID gets the same
// *Group, so several ballots can reference one group.
type Registry struct {
	mu     sync.Mutex
	db     db.Database
	loaded map[uuid.UUID]*Group
}

// NewRegistry returns a Registry that stores its groups in database.
func NewRegistry(database db.Database) *Registry {
	return &Registry{
		db:     database,
		loaded: make(map[uuid.UUID]*Group),
	}
}

// New creates a new empty group with the given id.
func (r *Registry) New(id uuid.UUID) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.existsLocked(id) {
		return nil, ErrGroupAlreadyExists
	}
	ref, err := util.EncodeRecord(&groupRef{
		ID:        id[:],
		MaxLevels: int(indexKeyLen * 8),
		CreatedAt: time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}
	wTx := r.db.WriteTx()
	defer wTx.Discard()
	if err := wTx.Set(refKey(id), ref); err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, err
	}
	g, err := newGroup(id, r.groupDB(id))
	if err != nil {
		return nil, err
	}
	r.loaded[id] = g
	log.Infow("created group", "id", id.String())
	return g, nil
}

// Load returns the group with the given id, opening it from the database
// if it is not loaded yet.
func (r *Registry) Load(id uuid.UUID) (*Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.loaded[id]; ok {
		return g, nil
	}
	if !r.existsLocked(id) {
		return nil, ErrGroupNotFound
	}
	g, err := newGroup(id, r.groupDB(id))
	if err != nil {
		return nil, err
	}
	r.loaded[id] = g
	return g, nil
}

// Discard removes an empty group and its stored tree. It undoes a New whose
// caller failed before the group was used.
func (r *Registry) Discard(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.loaded[id]
	if !ok {
		if !r.existsLocked(id) {
			return ErrGroupNotFound
		}
		var err error
		if g, err = newGroup(id, r.groupDB(id)); err != nil {
			return err
		}
	}
	if g.Size() > 0 {
		return ErrGroupNotEmpty
	}
	prefix := groupPrefix(id)
	var keys [][]byte
	if err := r.db.Iterate(prefix, func(k, _ []byte) bool {
		keys = append(keys, append(bytes.Clone(prefix), k...))
		return true
	}); err != nil {
		return err
	}
	wTx := r.db.WriteTx()
	defer wTx.Discard()
	for _, k := range keys {
		if err := wTx.Delete(k); err != nil {
			return err
		}
	}
	if err := wTx.Delete(refKey(id)); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	delete(r.loaded, id)
	log.Infow("discarded group", "id", id.String())
	return nil
}

// Exists reports whether a group with the given id is stored.
func (r *Registry) Exists(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.existsLocked(id)
}

// List returns the ids of all the stored groups.
func (r *Registry) List() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	var decodeErr error
	err := r.db.Iterate(groupDBreferencePrefix, func(_, v []byte) bool {
		ref := groupRef{}
		if err := util.DecodeRecord(v, &ref); err != nil {
			decodeErr = err
			return false
		}
		id, err := uuid.FromBytes(ref.ID)
		if err != nil {
			decodeErr = err
			return false
		}
		ids = append(ids, id)
		return true
	})
	if err != nil {
		return nil, err
	}
	return ids, decodeErr
}

func (r *Registry) existsLocked(id uuid.UUID) bool {
	if _, ok := r.loaded[id]; ok {
		return true
	}
	_, err := r.db.Get(refKey(id))
	if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		log.Warnw("cannot check group existence", "id", id.String(), "error", err)
	}
	return err == nil
}

func (r *Registry) groupDB(id uuid.UUID) db.Database {
	return prefixeddb.NewPrefixedDatabase(r.db, groupPrefix(id))
}

func groupPrefix(id uuid.UUID) []byte {
	prefix := append(bytes.Clone(groupDBprefix), id[:]...)
	return append(prefix, '/')
}

func refKey(id uuid.UUID) []byte {
	return append(bytes.Clone(groupDBreferencePrefix), id[:]...)
}
