// Package group implements the append-only membership ledger of a voting
// group. Identity commitments are accumulated in a Poseidon merkle tree, so
// the root is a pure function of the ordered sequence of members.
package group

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
)

var (
	treePrefix   = []byte("t/")
	memberPrefix = []byte("m/")
	indexPrefix  = []byte("i/")

	// HashFunction is the hash used by the group merkle tree.
	HashFunction = arbo.HashFunctionPoseidon
)

const (
	// indexKeyLen is the size of the tree leaf keys, enough to address
	// 2^GroupTreeMaxLevels leaves.
	indexKeyLen = types.GroupTreeMaxLevels / 8

	proofCacheSize = 1024
)

var (
	// ErrDuplicateMember is returned when a commitment is already part of the group.
	ErrDuplicateMember = errors.New("identity commitment already in the group")
	// ErrInvalidCommitment is returned for commitments with the wrong size or
	// outside of the BN254 scalar field.
	ErrInvalidCommitment = errors.New("invalid identity commitment")
	// ErrMemberNotFound is returned when a commitment is not part of the group.
	ErrMemberNotFound = errors.New("identity commitment not found in the group")
	// ErrGroupFull is returned when the merkle tree has no free leaves left.
	ErrGroupFull = errors.New("group is full")
)

// Group is the ledger of identity commitments of one voting group. All
// methods are safe for concurrent use. Joins are serialized, and the new root
// is visible to readers as soon as Join returns.
type Group struct {
	mu     sync.RWMutex
	id     uuid.UUID
	db     db.Database
	tree   *arbo.Tree
	size   uint64
	root   []byte
	proofs *lru.Cache
}

// MembershipProof is the data an off-system prover needs to build a
// membership proof for a commitment against a given root.
type MembershipProof struct {
	GroupID    uuid.UUID        `json:"groupId"`
	Index      uint64           `json:"index"`
	Commitment types.HexBytes   `json:"commitment"`
	Root       types.HexBytes   `json:"root"`
	Siblings   []types.HexBytes `json:"siblings"`
	// PackedSiblings is the compressed sibling list as produced by arbo.
	PackedSiblings types.HexBytes `json:"packedSiblings"`
}

// newGroup opens (or creates) the group stored under database.
func newGroup(id uuid.UUID, database db.Database) (*Group, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, treePrefix),
		MaxLevels:    types.GroupTreeMaxLevels,
		HashFunction: HashFunction,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open group tree: %w", err)
	}
	size, err := tree.GetNLeafs()
	if err != nil {
		return nil, err
	}
	root, err := tree.Root()
	if err != nil {
		return nil, err
	}
	cache, err := lru.New(proofCacheSize)
	if err != nil {
		return nil, err
	}
	return &Group{
		id:     id,
		db:     database,
		tree:   tree,
		size:   uint64(size),
		root:   root,
		proofs: cache,
	}, nil
}

// ID returns the group identifier.
func (g *Group) ID() uuid.UUID {
	return g.id
}

// Join appends the identity commitment to the group and returns the new root.
// A commitment can only join once.
func (g *Group) Join(commitment []byte) ([]byte, error) {
	c, err := ParseCommitment(commitment)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.size >= 1<<types.GroupTreeMaxLevels {
		return nil, ErrGroupFull
	}
	wTx := g.db.WriteTx()
	defer wTx.Discard()

	if _, err := wTx.Get(memberKey(commitment)); err == nil {
		return nil, ErrDuplicateMember
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("cannot check membership: %w", err)
	}

	index := g.size
	treeTx := prefixeddb.NewPrefixedWriteTx(wTx, treePrefix)
	if err := g.tree.AddWithTx(treeTx, leafKey(index),
		arbo.BigIntToBytes(HashFunction.Len(), c)); err != nil {
		return nil, fmt.Errorf("cannot add commitment to the tree: %w", err)
	}
	if err := wTx.Set(memberKey(commitment), uint64ToBytes(index)); err != nil {
		return nil, err
	}
	if err := wTx.Set(indexKey(index), bytes.Clone(commitment)); err != nil {
		return nil, err
	}
	root, err := g.tree.RootWithTx(treeTx)
	if err != nil {
		return nil, err
	}
	if err := wTx.Commit(); err != nil {
		return nil, fmt.Errorf("cannot commit group join: %w", err)
	}
	g.size++
	g.root = root
	log.Debugw("member joined group",
		"group", g.id.String(),
		"index", index,
		"root", hex.EncodeToString(root))
	return bytes.Clone(root), nil
}

// Root returns the current root of the group.
func (g *Group) Root() []byte {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return bytes.Clone(g.root)
}

// Size returns the number of members.
func (g *Group) Size() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// IsMember reports whether the commitment has joined the group.
func (g *Group) IsMember(commitment []byte) (bool, error) {
	_, err := g.Index(commitment)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Index returns the position of the commitment in the group.
func (g *Group) Index(commitment []byte) (uint64, error) {
	if len(commitment) != types.CommitmentSize {
		return 0, ErrInvalidCommitment
	}
	v, err := g.db.Get(memberKey(commitment))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrMemberNotFound
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

// Members returns the commitments of the group ordered by join time.
func (g *Group) Members() ([]types.HexBytes, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	members := make([]types.HexBytes, 0, g.size)
	err := g.db.Iterate(indexPrefix, func(_, v []byte) bool {
		members = append(members, bytes.Clone(v))
		return true
	})
	return members, err
}

// GenProof returns the merkle proof of the commitment against the current root.
func (g *Group) GenProof(commitment []byte) (*MembershipProof, error) {
	index, err := g.Index(commitment)
	if err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	cacheKey := hex.EncodeToString(g.root) + hex.EncodeToString(commitment)
	if p, ok := g.proofs.Get(cacheKey); ok {
		return p.(*MembershipProof).clone(), nil
	}
	_, _, packed, exists, err := g.tree.GenProof(leafKey(index))
	if err != nil {
		return nil, fmt.Errorf("cannot generate proof: %w", err)
	}
	if !exists {
		return nil, ErrMemberNotFound
	}
	siblings, err := arbo.UnpackSiblings(HashFunction, packed)
	if err != nil {
		return nil, err
	}
	proof := &MembershipProof{
		GroupID:        g.id,
		Index:          index,
		Commitment:     bytes.Clone(commitment),
		Root:           bytes.Clone(g.root),
		PackedSiblings: packed,
	}
	for _, s := range siblings {
		proof.Siblings = append(proof.Siblings, bytes.Clone(s))
	}
	g.proofs.Add(cacheKey, proof)
	return proof.clone(), nil
}

// clone returns a deep copy, so callers never share the cached proofs.
func (p *MembershipProof) clone() *MembershipProof {
	c := *p
	c.Commitment = bytes.Clone(p.Commitment)
	c.Root = bytes.Clone(p.Root)
	c.PackedSiblings = bytes.Clone(p.PackedSiblings)
	c.Siblings = make([]types.HexBytes, len(p.Siblings))
	for i, s := range p.Siblings {
		c.Siblings[i] = bytes.Clone(s)
	}
	return &c
}

// ParseCommitment decodes a 32 bytes big-endian identity commitment and checks
// it is a non-zero element of the BN254 scalar field.
func ParseCommitment(commitment []byte) (*big.Int, error) {
	if len(commitment) != types.CommitmentSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidCommitment, types.CommitmentSize, len(commitment))
	}
	c := new(big.Int).SetBytes(commitment)
	if c.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidCommitment)
	}
	if !util.InField(c) {
		return nil, fmt.Errorf("%w: not in the scalar field", ErrInvalidCommitment)
	}
	return c, nil
}

// RootToBigInt converts a group root to the field element used as public
// input of the membership proofs.
func RootToBigInt(root []byte) *big.Int {
	return arbo.BytesToBigInt(root)
}

func leafKey(index uint64) []byte {
	k := make([]byte, 8)
	binary.LittleEndian.PutUint64(k, index)
	return k[:indexKeyLen]
}

func memberKey(commitment []byte) []byte {
	return append(bytes.Clone(memberPrefix), commitment...)
}

func indexKey(index uint64) []byte {
	return append(bytes.Clone(indexPrefix), uint64ToBytes(index)...)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
