package testcommon

import (
	"context"
	"net/url"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/db/prefixeddb"

	"go.vocdoni.io/anonvote/api"
	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/verifier"
)

// APIserver contains all the required pieces for running a mock API server.
// It is used for testing purposes only. The server runs a ballot factory on
// a test database behind the API router.
type APIserver struct {
	ListenAddr *url.URL
	AdminToken uuid.UUID
	Factory    *ballot.Factory
	Groups     *group.Registry
}

// Start starts a basic URL API server for testing. If v is nil every proof
// is accepted.
func (d *APIserver) Start(t testing.TB, v verifier.Verifier) {
	if v == nil {
		v = verifier.AcceptAll
	}
	database := metadb.NewTest(t)
	d.Groups = group.NewRegistry(prefixeddb.NewPrefixedDatabase(database, []byte("g/")))
	var err error
	d.Factory, err = ballot.NewFactory(prefixeddb.NewPrefixedDatabase(database, []byte("b/")), d.Groups, v)
	qt.Assert(t, err, qt.IsNil)

	// create the API router
	router := &httprouter.HTTProuter{}
	qt.Assert(t, router.Init("127.0.0.1", 0), qt.IsNil)
	t.Cleanup(func() { _ = router.Shutdown(context.Background()) })
	d.ListenAddr, err = url.Parse("http://" + router.Address().String() + "/v1")
	qt.Assert(t, err, qt.IsNil)
	t.Logf("address: %s", d.ListenAddr)

	a, err := api.NewAPI(router, "/v1")
	qt.Assert(t, err, qt.IsNil)
	a.Attach(d.Factory)
	qt.Assert(t, a.EnableHandlers(api.BallotHandler, api.GroupHandler), qt.IsNil)
	d.AdminToken = uuid.New()
	a.Endpoint.SetAdminToken(d.AdminToken.String())
}
