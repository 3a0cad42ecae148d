package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
)

// TestHTTPclient is a JSON HTTP client that fails the test on transport errors.
type TestHTTPclient struct {
	c     *http.Client
	token *uuid.UUID
	addr  *url.URL
	t     testing.TB
}

// NewTestHTTPclient returns a client for the API served at addr.
func NewTestHTTPclient(t testing.TB, addr *url.URL, bearerToken *uuid.UUID) *TestHTTPclient {
	return &TestHTTPclient{
		c: &http.Client{
			Transport: &http.Transport{MaxIdleConns: 10, IdleConnTimeout: 5 * time.Second},
			Timeout:   8 * time.Second,
		},
		token: bearerToken,
		addr:  addr,
		t:     t,
	}
}

// SetAuthToken sets the bearer token sent with the requests.
func (c *TestHTTPclient) SetAuthToken(token *uuid.UUID) {
	c.token = token
}

// Request sends jsonBody, if not nil, to the joined urlPath and returns the
// response body and status code.
func (c *TestHTTPclient) Request(method string, jsonBody any, urlPath ...string) ([]byte, int) {
	c.t.Helper()
	var body io.Reader
	if jsonBody != nil {
		data, err := json.Marshal(jsonBody)
		qt.Assert(c.t, err, qt.IsNil)
		body = bytes.NewReader(data)
	}
	u := *c.addr
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	req, err := http.NewRequest(method, u.String(), body)
	qt.Assert(c.t, err, qt.IsNil)
	if c.token != nil {
		req.Header.Set("Authorization", "Bearer "+c.token.String())
	}
	c.t.Logf("%s %s", method, u.Path)
	resp, err := c.c.Do(req)
	qt.Assert(c.t, err, qt.IsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	qt.Assert(c.t, err, qt.IsNil)
	return data, resp.StatusCode
}

// RequestJSON is Request decoding a 200 response into out. Other status
// codes fail the test.
func (c *TestHTTPclient) RequestJSON(out any, method string, jsonBody any, urlPath ...string) {
	c.t.Helper()
	data, status := c.Request(method, jsonBody, urlPath...)
	qt.Assert(c.t, status, qt.Equals, http.StatusOK, qt.Commentf("response: %s", data))
	if out != nil {
		qt.Assert(c.t, json.Unmarshal(data, out), qt.IsNil)
	}
}

// RequestError is Request expecting an API error with the given HTTP status
// and error code.
func (c *TestHTTPclient) RequestError(wantStatus, wantCode int, method string, jsonBody any, urlPath ...string) {
	c.t.Helper()
	data, status := c.Request(method, jsonBody, urlPath...)
	qt.Assert(c.t, status, qt.Equals, wantStatus, qt.Commentf("response: %s", data))
	apiErr := struct {
		Code int `json:"code"`
	}{}
	qt.Assert(c.t, json.Unmarshal(data, &apiErr), qt.IsNil, qt.Commentf("response: %s", data))
	qt.Assert(c.t, apiErr.Code, qt.Equals, wantCode, qt.Commentf("response: %s", data))
}
