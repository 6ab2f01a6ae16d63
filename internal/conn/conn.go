// Package conn implements the Connection type and the operation
// pipeline: TLS setup, shared-key/S3-key
// storage, and the build → sign → send → receive → decode →
// redirect/retry cycle that every backend's Txrx call drives an Op
// through.
package conn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"time"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/metrics"
)

// inactivityTimeout bounds each request; long-running server-side work
// is polled at a higher level rather than held open here.
const inactivityTimeout = 30 * time.Second

// Connection owns a hostname, a scheme, optional TLS client-cert
// credentials, and a reusable keep-alive HTTP client.
// It is not safe for concurrent use by multiple goroutines.
type Connection struct {
	Hostname     string
	InsecureHTTP bool

	httpClient *http.Client
	tlsConf    *tls.Config

	redirected bool // true once one redirect hop has been followed
}

// InitAzure prepares a TLS context (optionally loading a client
// certificate for management-API mutual TLS) and opens the connection.
func InitAzure(ctx context.Context, pemFile string, insecureHTTP bool, host string) (*Connection, error) {
	tlsConf := &tls.Config{ServerName: host}
	if pemFile != "" {
		cert, err := loadClientCert(pemFile)
		if err != nil {
			return nil, errz.Wrap(errz.KindIO, err, "loading Azure management client certificate")
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	return newConnection(host, insecureHTTP, tlsConf), nil
}

// InitS3 opens a connection for the S3 backend. It holds no credentials:
// signing happens per-Op via internal/sign.S3V2, and this constructor only
// establishes transport state.
func InitS3(ctx context.Context, insecureHTTP bool, host string) (*Connection, error) {
	return newConnection(host, insecureHTTP, &tls.Config{ServerName: host}), nil
}

// InitWeb opens a connection for the read-only HTTP fetch backend.
func InitWeb(ctx context.Context, insecureHTTP bool, host string) (*Connection, error) {
	return newConnection(host, insecureHTTP, &tls.Config{ServerName: host}), nil
}

func newConnection(host string, insecureHTTP bool, tlsConf *tls.Config) *Connection {
	if tlsConf.RootCAs == nil {
		tlsConf.RootCAs = systemRootsOrNil()
	}
	transport := &http.Transport{
		TLSClientConfig: tlsConf,
	}
	return &Connection{
		Hostname:     host,
		InsecureHTTP: insecureHTTP,
		tlsConf:      tlsConf,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   inactivityTimeout,
		},
	}
}

func loadClientCert(pemFile string) (tls.Certificate, error) {
	return tls.LoadX509KeyPair(pemFile, pemFile)
}

// systemRootsOrNil loads the system trust store, tolerating platforms
// where it is unavailable (falls back to Go's default verification).
func systemRootsOrNil() *x509.CertPool {
	pool, err := x509.SystemCertPool()
	if err != nil {
		return nil
	}
	return pool
}

// Free disconnects and releases resources.
func (c *Connection) Free() {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}

// scheme returns "http" or "https" for URL construction.
func (c *Connection) scheme() string {
	if c.InsecureHTTP {
		return "http"
	}
	return "https"
}

// errorBodyLimit bounds how much of an error response body we buffer for
// response-processor parsing.
const errorBodyLimit = 64 * 1024

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func init() {
	metrics.Register()
}

// globalInitDone guards the process-wide TLS root pool warmup: one
// init/teardown pair for the life of the process, not one per Connection.
var globalInitDone bool

// GlobalInit warms the system trust store once per process. Individual
// Connections may still be created and destroyed freely between
// GlobalInit and GlobalShutdown.
func GlobalInit() error {
	if globalInitDone {
		return nil
	}
	if _, err := x509.SystemCertPool(); err != nil {
		// Not fatal: newConnection falls back to Go's default verification
		// when the system pool is unavailable.
	}
	globalInitDone = true
	return nil
}

// GlobalShutdown releases any process-wide state GlobalInit acquired. It
// is safe to call even if GlobalInit was never called.
func GlobalShutdown() {
	globalInitDone = false
}
