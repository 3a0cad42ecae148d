package nullifier

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"

	"go.vocdoni.io/anonvote/types"
	"go.vocdoni.io/anonvote/util"
)

func TestConsume(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	l := New(metadb.NewTest(t), []byte("nf/"))

	scopeA, scopeB := big.NewInt(1), big.NewInt(2)
	n1 := util.RandomBytes(types.NullifierSize)

	c.Assert(l.Consume(scopeA, n1), qt.IsNil)
	c.Assert(l.Consume(scopeA, n1), qt.ErrorIs, ErrNullifierReused)

	// the same nullifier is independent in another scope
	c.Assert(l.Consume(scopeB, n1), qt.IsNil)

	has, err := l.Has(scopeA, n1)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsTrue)
	has, err = l.Has(big.NewInt(3), n1)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)

	count, err := l.Count(scopeA)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))

	c.Assert(l.Consume(scopeA, nil), qt.ErrorIs, ErrInvalidNullifier)
	c.Assert(l.Consume(scopeA, []byte{1, 2}), qt.ErrorIs, ErrInvalidNullifier)
}

func TestConsumeWith(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	database := metadb.NewTest(t)
	l := New(database, []byte("nf/"))
	scope := big.NewInt(7)
	n := util.RandomBytes(types.NullifierSize)

	// a failing callback rolls everything back
	errFail := errors.New("tally failed")
	err := l.ConsumeWith(scope, n, func(wTx db.WriteTx) error {
		if err := wTx.Set([]byte("other"), []byte("x")); err != nil {
			return err
		}
		return errFail
	})
	c.Assert(err, qt.ErrorIs, errFail)
	has, err := l.Has(scope, n)
	c.Assert(err, qt.IsNil)
	c.Assert(has, qt.IsFalse)
	_, err = database.Get([]byte("other"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	// a successful callback commits together with the nullifier
	err = l.ConsumeWith(scope, n, func(wTx db.WriteTx) error {
		return wTx.Set([]byte("other"), []byte("y"))
	})
	c.Assert(err, qt.IsNil)
	v, err := database.Get([]byte("other"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("y"))

	// reuse never reaches the callback
	called := false
	err = l.ConsumeWith(scope, n, func(db.WriteTx) error {
		called = true
		return nil
	})
	c.Assert(err, qt.ErrorIs, ErrNullifierReused)
	c.Assert(called, qt.IsFalse)
}

func TestConcurrentConsume(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	l := New(metadb.NewTest(t), []byte("nf/"))
	scope := big.NewInt(99)
	n := util.RandomBytes(types.NullifierSize)

	var wg sync.WaitGroup
	results := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- l.Consume(scope, n)
		}()
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		c.Assert(err, qt.ErrorIs, ErrNullifierReused)
	}
	c.Assert(ok, qt.Equals, 1)
	count, err := l.Count(scope)
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, uint64(1))
}

func TestPersistence(t *testing.T) {
	t.Parallel()
	c := qt.New(t)
	database := metadb.NewTest(t)
	scope := big.NewInt(5)
	n := util.RandomBytes(types.NullifierSize)

	c.Assert(New(database, []byte("nf/")).Consume(scope, n), qt.IsNil)
	c.Assert(New(database, []byte("nf/")).Consume(scope, n), qt.ErrorIs, ErrNullifierReused)
}
