// Package api exposes the anonymous voting engine as a REST API.
package api

import (
	"fmt"
	"strings"

	"go.vocdoni.io/anonvote/ballot"
	"go.vocdoni.io/anonvote/group"
	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/httprouter/apirest"
)

const (
	// BallotHandler enables the /ballots endpoints.
	BallotHandler = "ballots"
	// GroupHandler enables the /groups endpoints.
	GroupHandler = "groups"
)

var (
	ErrMissingModulesForHandler = fmt.Errorf("missing modules attached for enabling handler")
	ErrHandlerUnknown           = fmt.Errorf("handler unknown")
	ErrHTTPRouterIsNil          = fmt.Errorf("httprouter is nil")
	ErrBaseRouteInvalid         = fmt.Errorf("base route must start with /")
)

// API is the URL based REST API supporting bearer authentication.
type API struct {
	Endpoint *apirest.API

	factory *ballot.Factory
	groups  *group.Registry
}

// NewAPI creates a new instance of the API. Attach must be called next.
func NewAPI(router *httprouter.HTTProuter, baseRoute string) (*API, error) {
	if router == nil {
		return nil, ErrHTTPRouterIsNil
	}
	if len(baseRoute) == 0 || baseRoute[0] != '/' {
		return nil, fmt.Errorf("%w (invalid given: %s)", ErrBaseRouteInvalid, baseRoute)
	}
	if len(baseRoute) > 1 {
		baseRoute = strings.TrimSuffix(baseRoute, "/")
	}
	endpoint, err := apirest.NewAPI(router, baseRoute)
	if err != nil {
		return nil, err
	}
	return &API{Endpoint: endpoint}, nil
}

// Attach sets the modules used by the handlers. It must be called before
// EnableHandlers.
func (a *API) Attach(factory *ballot.Factory) {
	a.factory = factory
	if factory != nil {
		a.groups = factory.Groups()
	}
}

// EnableHandlers enables the list of handlers. Attach must be called before.
func (a *API) EnableHandlers(handlers ...string) error {
	for _, h := range handlers {
		switch h {
		case BallotHandler:
			if a.factory == nil {
				return fmt.Errorf("%w %s", ErrMissingModulesForHandler, h)
			}
			if err := a.enableBallotHandlers(); err != nil {
				return err
			}
		case GroupHandler:
			if a.groups == nil {
				return fmt.Errorf("%w %s", ErrMissingModulesForHandler, h)
			}
			if err := a.enableGroupHandlers(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s", ErrHandlerUnknown, h)
		}
	}
	return nil
}
