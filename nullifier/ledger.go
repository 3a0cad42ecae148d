// Package nullifier implements the ledger of consumed vote nullifiers. A
// nullifier can be consumed once per scope, and stays consumed forever.
package nullifier

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/log"
	"go.vocdoni.io/anonvote/types"
)

var (
	nullifierPrefix = []byte("n/")
	countPrefix     = []byte("c/")
)

var (
	// ErrNullifierReused is returned when a nullifier was already consumed
	// within the same scope.
	ErrNullifierReused = errors.New("nullifier already used in this scope")
	// ErrInvalidNullifier is returned for empty or wrongly sized nullifiers.
	ErrInvalidNullifier = errors.New("invalid nullifier")
)

// Ledger records the consumed nullifiers of every scope. Entries are never
// removed. The check and the insert of a nullifier happen under the same
// lock and in the same database transaction.
type Ledger struct {
	mu     sync.Mutex
	parent db.Database
	prefix []byte
	db     db.Database
}

// New returns a Ledger that stores its entries in parent under prefix. Other
// components writing to parent can join a consumption transaction through
// ConsumeWith.
func New(parent db.Database, prefix []byte) *Ledger {
	return &Ledger{
		parent: parent,
		prefix: bytes.Clone(prefix),
		db:     prefixeddb.NewPrefixedDatabase(parent, prefix),
	}
}

// Consume marks the nullifier as used in scope. It fails with
// ErrNullifierReused if it was already used.
func (l *Ledger) Consume(scope *big.Int, nullifier []byte) error {
	return l.ConsumeWith(scope, nullifier, nil)
}

// ConsumeWith marks the nullifier as used in scope and runs fn within the same
// write transaction of the parent database. If fn returns an error, or the
// commit fails, nothing is recorded.
func (l *Ledger) ConsumeWith(scope *big.Int, nullifier []byte, fn func(wTx db.WriteTx) error) error {
	if err := checkNullifier(nullifier); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	wTx := l.parent.WriteTx()
	defer wTx.Discard()
	nTx := prefixeddb.NewPrefixedWriteTx(wTx, l.prefix)

	key := nullifierKey(scope, nullifier)
	if _, err := nTx.Get(key); err == nil {
		return ErrNullifierReused
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("cannot check nullifier: %w", err)
	}
	if err := nTx.Set(key, bytes.Clone(nullifier)); err != nil {
		return err
	}
	count, err := readCount(nTx, scope)
	if err != nil {
		return err
	}
	if err := nTx.Set(countKey(scope), uint64ToBytes(count+1)); err != nil {
		return err
	}
	if fn != nil {
		if err := fn(wTx); err != nil {
			return err
		}
	}
	if err := wTx.Commit(); err != nil {
		return fmt.Errorf("cannot commit nullifier: %w", err)
	}
	log.Debugw("nullifier consumed",
		"scope", scope.String(),
		"nullifier", hex.EncodeToString(nullifier))
	return nil
}

// Has reports whether the nullifier was consumed in scope.
func (l *Ledger) Has(scope *big.Int, nullifier []byte) (bool, error) {
	if err := checkNullifier(nullifier); err != nil {
		return false, err
	}
	_, err := l.db.Get(nullifierKey(scope, nullifier))
	if errors.Is(err, db.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Count returns the number of nullifiers consumed in scope.
func (l *Ledger) Count(scope *big.Int) (uint64, error) {
	return readCount(l.db, scope)
}

func readCount(r db.Reader, scope *big.Int) (uint64, error) {
	v, err := r.Get(countKey(scope))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(v), nil
}

func checkNullifier(nullifier []byte) error {
	if len(nullifier) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidNullifier)
	}
	if len(nullifier) != types.NullifierSize {
		return fmt.Errorf("%w: expected %d bytes, got %d",
			ErrInvalidNullifier, types.NullifierSize, len(nullifier))
	}
	return nil
}

// scopeBytes returns the fixed width encoding of a scope.
func scopeBytes(scope *big.Int) []byte {
	return scope.FillBytes(make([]byte, 32))
}

// nullifierKey returns sha256(scope || nullifier), prefixed.
func nullifierKey(scope *big.Int, nullifier []byte) []byte {
	h := sha256.New()
	h.Write(scopeBytes(scope))
	h.Write(nullifier)
	return append(bytes.Clone(nullifierPrefix), h.Sum(nil)...)
}

func countKey(scope *big.Int) []byte {
	return append(bytes.Clone(countPrefix), scopeBytes(scope)...)
}

func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
