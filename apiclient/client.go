// Package apiclient is a Go client for the anonymous voting REST API.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"go.vocdoni.io/anonvote/httprouter/apirest"
	"go.vocdoni.io/anonvote/log"
)

const (
	// HTTPGET is the method string used for calling Request()
	HTTPGET = "GET"
	// HTTPPOST is the method string used for calling Request()
	HTTPPOST = "POST"

	errCodeNot200 = "API server returned status code is not 200"
)

// HTTPclient is the anonymous voting API HTTP client.
type HTTPclient struct {
	c     *http.Client
	token *uuid.UUID
	addr  *url.URL
}

// NewHTTPclient creates a new HTTP(s) API client. The server is queried
// once to check that it is reachable.
func NewHTTPclient(addr *url.URL, bearerToken *uuid.UUID) (*HTTPclient, error) {
	tr := &http.Transport{
		IdleConnTimeout:    10 * time.Second,
		DisableCompression: false,
	}
	c := &HTTPclient{
		c:     &http.Client{Transport: tr, Timeout: time.Second * 8},
		token: bearerToken,
		addr:  addr,
	}
	if _, err := c.Ballots(); err != nil {
		return nil, fmt.Errorf("cannot reach API server at %s: %w", addr, err)
	}
	return c, nil
}

// SetAuthToken configures the bearer authentication token.
func (c *HTTPclient) SetAuthToken(token *uuid.UUID) {
	c.token = token
}

// Request performs a `method` type raw request to the endpoint specyfied in urlPath parameter.
// Method is either GET or POST. If POST, a JSON struct should be attached. Returns the response,
// the status code and an error.
func (c *HTTPclient) Request(method string, jsonBody any, urlPath ...string) ([]byte, int, error) {
	var body io.Reader
	if jsonBody != nil {
		data, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, 0, err
		}
		body = bytes.NewReader(data)
	}
	u, err := url.Parse(c.addr.String())
	if err != nil {
		return nil, 0, err
	}
	u.Path = path.Join(u.Path, path.Join(urlPath...))
	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", "anonvote API client / 1.0")
	if c.token != nil {
		req.Header.Set("Authorization", "Bearer "+c.token.String())
	}
	log.Debugf("%s %s", method, u)
	resp, err := c.c.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return data, resp.StatusCode, nil
}

// requestJSON performs a request and decodes a 200 response into out.
// API errors are returned as apirest.APIerror so callers can check the code.
func (c *HTTPclient) requestJSON(out any, method string, jsonBody any, urlPath ...string) error {
	resp, code, err := c.Request(method, jsonBody, urlPath...)
	if err != nil {
		return err
	}
	if code != apirest.HTTPstatusOK {
		return responseError(resp, code)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(resp, out)
}

func responseError(resp []byte, code int) error {
	apiErr := struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}{}
	if err := json.Unmarshal(resp, &apiErr); err != nil || apiErr.Code == 0 {
		return fmt.Errorf("%s: %d (%s)", errCodeNot200, code, bytes.TrimSpace(resp))
	}
	return apirest.APIerror{Err: fmt.Errorf("%s", apiErr.Error), Code: apiErr.Code, HTTPstatus: code}
}
