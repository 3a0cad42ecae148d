// Package apirest is a JSON REST namespace for the httprouter. Requests may
// carry a bearer token, used to authorize the private and admin methods.
package apirest

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"go.vocdoni.io/anonvote/httprouter"
	"go.vocdoni.io/anonvote/log"
)

const (
	// MethodAccessTypePrivate for requests with a registered auth token
	MethodAccessTypePrivate = "private"
	// MethodAccessTypePublic for public requests
	MethodAccessTypePublic = "public"
	// MethodAccessTypeAdmin for requests with the admin token
	MethodAccessTypeAdmin = "admin"

	namespace          = "bearerStd"
	bearerPrefix       = "Bearer "
	maxRequestBodyLog  = 1024
	maxRequestBodySize = 1 << 20
)

var accessTypes = map[string]httprouter.AuthAccessType{
	MethodAccessTypePublic:  httprouter.AccessTypePublic,
	MethodAccessTypePrivate: httprouter.AccessTypePrivate,
	MethodAccessTypeAdmin:   httprouter.AccessTypeAdmin,
}

// HTTPstatus* equal http.Status*, simple sugar to avoid importing http everywhere
const (
	HTTPstatusOK           = http.StatusOK
	HTTPstatusBadRequest   = http.StatusBadRequest
	HTTPstatusInternalErr  = http.StatusInternalServerError
	HTTPstatusNotFound     = http.StatusNotFound
	HTTPstatusUnauthorized = http.StatusUnauthorized
	HTTPstatusConflict     = http.StatusConflict
)

// ErrInternal is sent when a handler fails with an error that is not an
// APIerror.
var ErrInternal = APIerror{Code: 5000, HTTPstatus: HTTPstatusInternalErr, Err: errors.New("internal error")}

// API is a REST namespace for the httprouter with Bearer authorization.
type API struct {
	router   *httprouter.HTTProuter
	basePath string

	authTokens     sync.Map
	adminToken     []byte
	adminTokenLock sync.RWMutex
}

// APIdata is the data type used by the API.
// On handler functions Message.Data can be cast safely to this type.
type APIdata struct {
	Data      []byte
	AuthToken string
}

// APIhandler is the handler function of a REST method. Returning an error
// replies with it, so a handler either sends a response or fails.
type APIhandler = func(*APIdata, *httprouter.HTTPContext) error

// APIerror is used by handler functions to wrap errors, assigning a unique error code
// and also specifying which HTTP Status should be used.
type APIerror struct {
	Err        error
	Code       int
	HTTPstatus int
}

// MarshalJSON encodes the error as {"error":"ballot not found","code":4003}.
// HTTPstatus is not part of the body.
func (e APIerror) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Err  string `json:"error"`
		Code int    `json:"code"`
	}{
		Err:  e.Err.Error(),
		Code: e.Code,
	})
}

func (e APIerror) Error() string {
	return e.Err.Error()
}

// Unwrap allows errors.Is on the wrapped error.
func (e APIerror) Unwrap() error {
	return e.Err
}

// Send replies the request with the JSON encoded error.
func (e APIerror) Send(ctx *httprouter.HTTPContext) error {
	return ctx.SendJSON(e, e.HTTPstatus)
}

// Withf returns a copy of e with the formatted string appended to the message.
func (e APIerror) Withf(format string, args ...any) APIerror {
	e.Err = fmt.Errorf("%w: %s", e.Err, fmt.Sprintf(format, args...))
	return e
}

// WithErr returns a copy of e with err appended to the message.
func (e APIerror) WithErr(err error) APIerror {
	e.Err = fmt.Errorf("%w: %v", e.Err, err)
	return e
}

// NewAPI returns an API namespace serving under baseRoute.
func NewAPI(router *httprouter.HTTProuter, baseRoute string) (*API, error) {
	if router == nil {
		return nil, errors.New("httprouter is nil")
	}
	if len(baseRoute) == 0 || baseRoute[0] != '/' {
		return nil, fmt.Errorf("invalid base route (%s), it must start with /", baseRoute)
	}
	if len(baseRoute) > 1 {
		baseRoute = strings.TrimSuffix(baseRoute, "/")
	}
	a := &API{router: router, basePath: baseRoute}
	router.AddNamespace(namespace, a)
	return a, nil
}

// AuthorizeRequest implements httprouter.RouterNamespace.
func (a *API) AuthorizeRequest(data any, accessType httprouter.AuthAccessType) (bool, error) {
	msg, ok := data.(*APIdata)
	if !ok {
		return false, fmt.Errorf("unexpected request data %T", data)
	}
	switch accessType {
	case httprouter.AccessTypeAdmin:
		if !a.isAdmin(msg.AuthToken) {
			return false, errors.New("admin token not valid")
		}
	case httprouter.AccessTypePrivate:
		if !a.HasAuthToken(msg.AuthToken) {
			return false, errors.New("auth token not valid")
		}
	}
	return true, nil
}

func (a *API) isAdmin(token string) bool {
	a.adminTokenLock.RLock()
	defer a.adminTokenLock.RUnlock()
	return len(a.adminToken) > 0 && subtle.ConstantTimeCompare(a.adminToken, []byte(token)) == 1
}

// ProcessData implements httprouter.RouterNamespace. It reads the request
// body and the bearer token.
func (a *API) ProcessData(req *http.Request) (any, error) {
	body, err := io.ReadAll(io.LimitReader(req.Body, maxRequestBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("error reading request body: %w", err)
	}
	if len(body) > maxRequestBodySize {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxRequestBodySize)
	}
	if len(body) > 0 {
		logged := body
		if len(logged) > maxRequestBodyLog {
			logged = logged[:maxRequestBodyLog]
		}
		log.Debugw("api request", "path", req.URL.Path, "body", string(logged), "size", len(body))
	}
	msg := &APIdata{Data: body}
	if h := req.Header.Get("Authorization"); h != "" {
		token, ok := strings.CutPrefix(h, bearerPrefix)
		if !ok {
			return nil, errors.New("authorization header is not a Bearer token")
		}
		msg.AuthToken = token
	}
	return msg, nil
}

// RegisterMethod adds a new method under the URL pattern.
// The pattern URL can contain variable names by using braces, such as /send/{name}/hello
// The pattern can also contain wildcard at the end of the path, such as /send/{name}/hello/*
// The accessType can be of type private, public or admin.
func (a *API) RegisterMethod(pattern, HTTPmethod string, accessType string, handler APIhandler) error {
	if len(pattern) == 0 || pattern[0] != '/' {
		return fmt.Errorf("pattern %q must start with /", pattern)
	}
	access, ok := accessTypes[accessType]
	if !ok {
		return fmt.Errorf("method access type not implemented: %s", accessType)
	}
	if access == httprouter.AccessTypeAdmin {
		handler = auditAdmin(handler)
	}
	a.router.AddHandler(access, namespace, path.Join(a.basePath, pattern), HTTPmethod,
		func(msg httprouter.Message) {
			err := handler(msg.Data.(*APIdata), msg.Context)
			if err == nil {
				return
			}
			var apiErr APIerror
			if !errors.As(err, &apiErr) {
				log.Warnw("api handler failed", "path", msg.Context.Request.URL.Path, "error", err)
				apiErr = ErrInternal.WithErr(err)
			}
			if err := apiErr.Send(msg.Context); err != nil {
				log.Debugw("cannot send api error", "error", err)
			}
		})
	return nil
}

// auditAdmin logs every call to an admin method.
func auditAdmin(handler APIhandler) APIhandler {
	return func(msg *APIdata, ctx *httprouter.HTTPContext) error {
		log.Infow("admin request", "method", ctx.Request.Method, "uri", ctx.Request.URL.RequestURI())
		return handler(msg, ctx)
	}
}

// SetAdminToken sets the bearer token allowed to call admin methods. An empty
// token disables them.
func (a *API) SetAdminToken(bearerToken string) {
	a.adminTokenLock.Lock()
	defer a.adminTokenLock.Unlock()
	a.adminToken = []byte(bearerToken)
}

// AddAuthToken adds a new bearer token allowed to call private handlers.
func (a *API) AddAuthToken(bearerToken string) {
	a.authTokens.Store(bearerToken, struct{}{})
}

// DelAuthToken revokes a bearer token.
func (a *API) DelAuthToken(bearerToken string) {
	a.authTokens.Delete(bearerToken)
}

// HasAuthToken reports whether bearerToken is allowed to call private handlers.
func (a *API) HasAuthToken(bearerToken string) bool {
	if bearerToken == "" {
		return false
	}
	_, ok := a.authTokens.Load(bearerToken)
	return ok
}
