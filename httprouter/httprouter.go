package httprouter

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	chiprometheus "github.com/766b/chi-prometheus"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	reuse "github.com/libp2p/go-reuseport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/http2"

	"go.vocdoni.io/anonvote/log"
)

const (
	desiredSoMaxConn = 4096
	requestTimeout   = 30 * time.Second
)

// HTTProuter is a thread-safe multiplexer http(s) router using go-chi and
// autocert. Handlers are grouped in namespaces, each one implementing its own
// request processing and authorization through the RouterNamespace interface.
type HTTProuter struct {
	Mux        *chi.Mux
	TLSconfig  *tls.Config
	TLSdomain  string
	TLSdirCert string

	address        net.Addr
	server         *http.Server
	namespaces     map[string]RouterNamespace
	namespacesLock sync.RWMutex
}

// AuthAccessType is the kind of authorization a handler requires.
type AuthAccessType int

const (
	AccessTypePublic AuthAccessType = iota
	AccessTypePrivate
	AccessTypeAdmin
)

func (t AuthAccessType) String() string {
	switch t {
	case AccessTypePublic:
		return "public"
	case AccessTypePrivate:
		return "private"
	case AccessTypeAdmin:
		return "admin"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// RouterNamespace is the interface that a HTTProuter handler should follow in order
// to become a valid namespace.
type RouterNamespace interface {
	AuthorizeRequest(data any, accessType AuthAccessType) (valid bool, err error)
	ProcessData(req *http.Request) (data any, err error)
}

// RouterHandlerFn is the function signature for adding handlers to the HTTProuter.
// The handler must reply through msg.Context before returning.
type RouterHandlerFn = func(msg Message)

// Init initializes the router and starts serving on host:port. A zero port
// picks a free one, see Address.
func (r *HTTProuter) Init(host string, port int) error {
	r.namespaces = make(map[string]RouterNamespace, 8)
	ln, err := reuse.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return err
	}
	if n := somaxconn(); n < desiredSoMaxConn {
		log.Warnf("operating system SOMAXCONN is smaller than recommended (%d). "+
			"Consider increasing it: echo %d | sudo tee /proc/sys/net/core/somaxconn", n, desiredSoMaxConn)
	}
	r.Mux = newMux()
	r.address = ln.Addr()

	if len(r.TLSdomain) == 0 {
		r.server = &http.Server{
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      requestTimeout + 5*time.Second,
			IdleTimeout:       10 * time.Second,
			ReadHeaderTimeout: 3 * time.Second,
		}
		if err := r.serve(ln, false); err != nil {
			return err
		}
		log.Infof("router ready at http://%s", ln.Addr())
		return nil
	}

	log.Infow("fetching letsencrypt TLS certificate", "domain", r.TLSdomain)
	var m *autocert.Manager
	r.server, m = r.generateTLScert(host, port)
	if err := r.serve(ln, true); err != nil {
		return err
	}
	if certs, err := r.getCertificates(m); len(certs) == 0 || err != nil {
		log.Warnf("letsencrypt TLS certificate cannot be obtained, maybe port 443 is not "+
			"accessible or the domain name is wrong. Port 443 can be redirected with: "+
			"sudo iptables -t nat -I PREROUTING -p tcp --dport 443 -j REDIRECT --to-ports %d", port)
		return fmt.Errorf("cannot get letsencrypt TLS certificate: (%s)", err)
	}
	log.Infof("router ready at https://%s", ln.Addr())
	return nil
}

// newMux returns the chi multiplexer with the middleware stack shared by all
// the namespaces.
func newMux() *chi.Mux {
	mux := chi.NewRouter()
	mux.Use(middleware.RealIP)
	mux.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  stdLogger{log.Logger()},
		NoColor: true,
	}))
	mux.Use(middleware.Recoverer)
	mux.Use(middleware.Heartbeat("/ping"))
	mux.Use(middleware.ThrottleBacklog(5000, 40000, requestTimeout))
	mux.Use(middleware.Timeout(requestTimeout))
	mux.Use(middleware.Compress(5))
	mux.Use(cors.New(cors.Options{
		// like AllowedOrigins "*" but echoes the request origin
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	// the cors handler does not answer 200 to OPTIONS on its own
	mux.Options("/*", func(http.ResponseWriter, *http.Request) {})
	return mux
}

// serve starts r.server on ln in the background.
func (r *HTTProuter) serve(ln net.Listener, withTLS bool) error {
	r.server.Handler = r.Mux
	if err := http2.ConfigureServer(r.server, nil); err != nil {
		return err
	}
	go func() {
		var err error
		if withTLS {
			err = r.server.ServeTLS(ln, "", "")
		} else {
			err = r.server.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()
	return nil
}

// Shutdown stops the server, waiting for the in flight requests until ctx
// is done.
func (r *HTTProuter) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}

// EnablePrometheusMetrics enables go-chi prometheus metrics under specified ID.
// If ID empty, the default "gochi_http" is used. It must be called before
// adding any handler.
func (r *HTTProuter) EnablePrometheusMetrics(prometheusID string) {
	if prometheusID == "" {
		prometheusID = "gochi_http"
	}
	r.Mux.Use(chiprometheus.NewMiddleware(prometheusID))
}

// ExposePrometheusEndpoint serves the default prometheus registry at path.
func (r *HTTProuter) ExposePrometheusEndpoint(path string) {
	r.AddRawHTTPHandler(path, http.MethodGet, promhttp.Handler().ServeHTTP)
	log.Infof("prometheus metrics ready at: %s", path)
}

// Address returns the address the router listens on.
func (r *HTTProuter) Address() net.Addr {
	return r.address
}

// AddNamespace registers the RouterNamespace that processes and authorizes
// the requests of the handlers added under id.
func (r *HTTProuter) AddNamespace(id string, rns RouterNamespace) {
	log.Infof("added namespace %s", id)
	r.namespacesLock.Lock()
	defer r.namespacesLock.Unlock()
	r.namespaces[id] = rns
}

func (r *HTTProuter) getNamespace(id string) (RouterNamespace, bool) {
	r.namespacesLock.RLock()
	defer r.namespacesLock.RUnlock()
	rns, ok := r.namespaces[id]
	return rns, ok
}

// AddHandler adds a handler for the namespace, pattern and HTTP method,
// authorized by the namespace according to accessType.
func (r *HTTProuter) AddHandler(accessType AuthAccessType, namespaceID,
	pattern, HTTPmethod string, handler RouterHandlerFn) {
	log.Infow("added handler", "type", accessType.String(), "namespace", namespaceID,
		"method", HTTPmethod, "pattern", pattern)
	r.Mux.MethodFunc(HTTPmethod, pattern, r.routerHandler(namespaceID, accessType, handler))
}

// AddAdminHandler adds a handler that requires the namespace admin authorization.
func (r *HTTProuter) AddAdminHandler(namespaceID, pattern, HTTPmethod string, handler RouterHandlerFn) {
	r.AddHandler(AccessTypeAdmin, namespaceID, pattern, HTTPmethod, handler)
}

// AddPrivateHandler adds a handler that the namespace authorizes per request.
func (r *HTTProuter) AddPrivateHandler(namespaceID, pattern, HTTPmethod string, handler RouterHandlerFn) {
	r.AddHandler(AccessTypePrivate, namespaceID, pattern, HTTPmethod, handler)
}

// AddPublicHandler adds a handler open to every request.
func (r *HTTProuter) AddPublicHandler(namespaceID, pattern, HTTPmethod string, handler RouterHandlerFn) {
	r.AddHandler(AccessTypePublic, namespaceID, pattern, HTTPmethod, handler)
}

// AddRawHTTPHandler adds a standard net/http handler, outside any namespace.
func (r *HTTProuter) AddRawHTTPHandler(pattern, HTTPmethod string, handler http.HandlerFunc) {
	log.Infow("added handler", "type", "raw", "method", HTTPmethod, "pattern", pattern)
	r.Mux.MethodFunc(HTTPmethod, pattern, handler)
}

func (r *HTTProuter) routerHandler(namespaceID string, accessType AuthAccessType,
	handlerFunc RouterHandlerFn) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()

		ns, ok := r.getNamespace(namespaceID)
		if !ok {
			log.Errorf("namespace %s is not defined", namespaceID)
			http.Error(w, "namespace not found", http.StatusInternalServerError)
			return
		}
		data, err := ns.ProcessData(req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if ok, err := ns.AuthorizeRequest(data, accessType); !ok {
			msg := "unauthorized"
			if err != nil {
				msg = err.Error()
			}
			http.Error(w, msg, http.StatusUnauthorized)
			return
		}

		hc := newHTTPContext(w, req)
		handlerFunc(Message{
			Data:      data,
			TimeStamp: time.Now(),
			Context:   hc,
			Path:      strings.Split(req.URL.Path, "/")[1:],
		})
		if hc.reply(nil, http.StatusInternalServerError) {
			log.Warnw("handler returned without reply", "namespace", namespaceID, "path", req.URL.Path)
		}
	}
}

// generateTLScert prepares the https server and its autocert manager.
func (r *HTTProuter) generateTLScert(host string, port int) (*http.Server, *autocert.Manager) {
	m := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(r.TLSdomain),
		Cache:      autocert.DirCache(r.TLSdirCert),
	}
	if r.TLSconfig == nil {
		r.TLSconfig = &tls.Config{MinVersion: tls.VersionTLS13}
	}
	r.TLSconfig.GetCertificate = m.GetCertificate
	r.TLSconfig.NextProtos = append(r.TLSconfig.NextProtos, acme.ALPNProto)
	return &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		TLSConfig:         r.TLSconfig,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      requestTimeout + 5*time.Second,
		IdleTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}, &m
}

func (r *HTTProuter) getCertificates(m *autocert.Manager) ([][]byte, error) {
	hello := &tls.ClientHelloInfo{
		ServerName: r.TLSdomain,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
		},
	}
	cert, err := m.GetCertificate(hello)
	if err != nil {
		return nil, err
	}
	return cert.Certificate, nil
}

func somaxconn() int {
	content, err := os.ReadFile("/proc/sys/net/core/somaxconn")
	if err != nil {
		return syscall.SOMAXCONN
	}
	n, err := strconv.Atoi(strings.Trim(string(content), "\n"))
	if err != nil {
		return syscall.SOMAXCONN
	}
	return n
}

// stdLogger sends the chi request log lines to the debug level.
type stdLogger struct {
	log *zap.SugaredLogger
}

func (l stdLogger) Print(v ...any) { l.log.Debug(fmt.Sprint(v...)) }
