package httprouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"go.vocdoni.io/anonvote/log"
)

// DefaultContentType is the content type of the responses unless the handler
// sets another one.
const DefaultContentType = "application/json"

// maxLoggedResponse is the number of response bytes written to the debug log.
const maxLoggedResponse = 256

// ErrAlreadySent is returned when a handler replies twice to the same request.
var ErrAlreadySent = errors.New("response already sent")

// Message is what a RouterNamespace handler receives: the request data as
// processed by the namespace and the context used to reply.
type Message struct {
	Data      any
	TimeStamp time.Time
	Path      []string
	Context   *HTTPContext
}

// HTTPContext wraps a single HTTP request. Every request must be answered
// exactly once with Send or SendJSON.
type HTTPContext struct {
	Writer  http.ResponseWriter
	Request *http.Request

	contentType string
	once        sync.Once
}

func newHTTPContext(w http.ResponseWriter, req *http.Request) *HTTPContext {
	return &HTTPContext{Writer: w, Request: req}
}

// SetResponseContentType overrides DefaultContentType for this reply.
func (h *HTTPContext) SetResponseContentType(contentType string) {
	h.contentType = contentType
}

// URLParam returns the value of a {key} path parameter.
func (h *HTTPContext) URLParam(key string) string {
	return chi.URLParam(h.Request, key)
}

// SendJSON marshals v and replies with it.
func (h *HTTPContext) SendJSON(v any, httpStatusCode int) error {
	data, err := json.Marshal(v)
	if err != nil {
		h.reply(nil, http.StatusInternalServerError)
		return fmt.Errorf("cannot marshal response: %w", err)
	}
	return h.Send(data, httpStatusCode)
}

// Send replies the request with msg. Only the first call writes a response,
// later calls return ErrAlreadySent.
func (h *HTTPContext) Send(msg []byte, httpStatusCode int) error {
	if httpStatusCode < 100 || httpStatusCode >= 600 {
		h.reply(nil, http.StatusInternalServerError)
		return fmt.Errorf("http status code %d not supported", httpStatusCode)
	}
	var err error
	if !h.reply(msg, httpStatusCode) {
		return ErrAlreadySent
	}
	if h.Request.Context().Err() != nil {
		err = fmt.Errorf("connection is closed")
	}
	return err
}

// reply writes the response once. It returns false if a response was
// already written.
func (h *HTTPContext) reply(msg []byte, httpStatusCode int) bool {
	first := false
	h.once.Do(func() {
		first = true
		if h.Request.Context().Err() != nil {
			return
		}
		contentType := h.contentType
		if contentType == "" {
			contentType = DefaultContentType
		}
		h.Writer.Header().Set("Content-Type", contentType)
		if httpStatusCode == http.StatusNoContent {
			h.Writer.WriteHeader(httpStatusCode)
			return
		}
		// responses end with a newline
		body := bytes.NewBuffer(make([]byte, 0, len(msg)+1))
		body.Write(msg)
		body.WriteByte('\n')
		h.Writer.Header().Set("Content-Length", strconv.Itoa(body.Len()))
		h.Writer.WriteHeader(httpStatusCode)
		if _, err := body.WriteTo(h.Writer); err != nil {
			log.Debugw("cannot write http response", "error", err)
		}
		if len(msg) > maxLoggedResponse {
			msg = append(msg[:maxLoggedResponse:maxLoggedResponse], "..."...)
		}
		log.Debugw("http response", "status", httpStatusCode, "data", string(msg))
	})
	return first
}
