package conn

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/metrics"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/xmlfinder"
)

// BackendLabel names the backend family an Op is dispatched for; callers
// pass it to every Txrx call, which uses it for metrics and redirect
// handling.
type BackendLabel string

const (
	BackendAzureBlob BackendLabel = "azureblob"
	BackendAzureFile BackendLabel = "azurefile"
	BackendAzureMgmt BackendLabel = "azuremgmt"
	BackendS3        BackendLabel = "s3"
	BackendWeb       BackendLabel = "web"
)

// Txrx drives op through the full pipeline: host/scheme
// check, request preparation, dispatch, response processing, a single
// redirect hop, and a single reconnect-and-retry on transport close.
func (c *Connection) Txrx(ctx context.Context, backend BackendLabel, o *op.Op) error {
	start := time.Now()
	err := c.txrxOnce(ctx, backend, o)
	if errz.KindOf(err) == errz.KindTransientRetry {
		metrics.ReconnectsTotal.WithLabelValues(string(backend)).Inc()
		c.Free()
		err = c.txrxOnce(ctx, backend, o)
	}
	metrics.OpDuration.WithLabelValues(string(backend), opcodeLabel(o)).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.OpsTotal.WithLabelValues(string(backend), opcodeLabel(o), outcome).Inc()
	return err
}

func opcodeLabel(o *op.Op) string {
	if s, ok := o.Opcode.(string); ok {
		return s
	}
	if s, ok := o.Opcode.(interface{ String() string }); ok {
		return s.String()
	}
	return "unknown"
}

func (c *Connection) txrxOnce(ctx context.Context, backend BackendLabel, o *op.Op) error {
	if err := c.checkHost(o); err != nil {
		return err
	}
	req, err := c.prepareRequest(ctx, o)
	if err != nil {
		return err
	}
	if size := o.ReqBody.Size(); size > 0 {
		metrics.RequestBodySize.WithLabelValues(string(backend), opcodeLabel(o)).Observe(float64(size))
	}
	resp, err := c.dispatch(req)
	if err != nil {
		if isTransportClose(err) {
			slog.Warn("txrx transport closed mid-flight", "backend", string(backend), "opcode", opcodeLabel(o), "error", err)
			return errz.Wrap(errz.KindTransientRetry, err, "transport closed mid-flight")
		}
		slog.Error("txrx dispatch error", "backend", string(backend), "opcode", opcodeLabel(o), "error", err)
		return errz.Wrap(errz.KindIO, err, "dispatching %s %s", o.Method, o.URLPath)
	}
	defer resp.Body.Close()

	if err := c.processResponse(backend, o, resp); err != nil {
		return err
	}

	if o.RedirEndpoint != "" && backend == BackendS3 {
		metrics.RedirectsTotal.WithLabelValues(string(backend)).Inc()
		return c.maybeRedirect(ctx, backend, o)
	}
	if !o.IsSuccess() {
		code, msg := errorBodyFields(o.RespErrBody)
		if msg == "" {
			msg = "no error description"
		}
		// A 301 that was not followed as an S3 redirect is an ordinary
		// failure: the internal redirect kind never reaches the caller.
		kind := errz.FromHTTPStatus(o.RespStatus, code)
		if kind == errz.KindRedirect {
			kind = errz.KindIO
		}
		return errz.New(kind, "%s %s failed with status %d: %s", o.Method, o.URLPath, o.RespStatus, msg).WithStatus(o.RespStatus, o.RequestID)
	}
	return nil
}

// errorBodyFields extracts the Code and Message fields of an Azure/S3 XML
// error body. Both backends use the same <Error> envelope.
func errorBodyFields(body []byte) (code, message string) {
	if len(body) == 0 {
		return "", ""
	}
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/Error/Code", Kind: xmlfinder.ConsumeString, StringOut: &code})
	reg.Register(&xmlfinder.Finder{Path: "/Error/Message", Kind: xmlfinder.ConsumeString, StringOut: &message})
	if err := reg.Walk(bytes.NewReader(body)); err != nil {
		return "", ""
	}
	return code, message
}

// checkHost rejects dispatch against a host the Connection was not opened
// for, and rejects HTTPS-required ops over a plain-HTTP connection.
func (c *Connection) checkHost(o *op.Op) error {
	if o.URLHost != "" && o.URLHost != c.Hostname {
		return errz.New(errz.KindInvalidArgument, "op host %q does not match connection host %q", o.URLHost, c.Hostname)
	}
	if o.RequireHTTPS && c.InsecureHTTP {
		return errz.New(errz.KindInvalidArgument, "op requires HTTPS but connection is insecure")
	}
	return nil
}

// prepareRequest builds the *http.Request: URL (host, path, query),
// headers, Content-Length, and invokes the Op's Signer last so the
// signature covers the final header set.
func (c *Connection) prepareRequest(ctx context.Context, o *op.Op) (*http.Request, error) {
	u := &url.URL{
		Scheme: c.scheme(),
		Host:   c.Hostname,
		Path:   o.URLPath,
	}
	if len(o.URLQuery) > 0 {
		q := make(url.Values, len(o.URLQuery))
		for _, kv := range o.URLQuery {
			q.Add(kv[0], kv[1])
		}
		u.RawQuery = q.Encode()
	}

	if _, ok := o.ReqHeaders.Get("Date"); !ok {
		o.ReqHeaders.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	}
	if size := o.ReqBody.Size(); size > 0 {
		o.ReqHeaders.Set("Content-Length", strconv.FormatInt(size, 10))
	}

	req, err := http.NewRequestWithContext(ctx, string(o.Method), u.String(), o.ReqBody.Reader())
	if err != nil {
		return nil, errz.Wrap(errz.KindInvalidArgument, err, "building request for %s %s", o.Method, o.URLPath)
	}
	for _, h := range o.ReqHeaders.All() {
		req.Header.Add(h.Key, h.Value)
	}
	if size := o.ReqBody.Size(); size > 0 {
		req.ContentLength = size
	}
	req.Host = c.Hostname

	if o.Signer != nil {
		if err := o.Signer.Sign(o); err != nil {
			return nil, errz.Wrap(errz.KindAuthFailed, err, "signing %s %s", o.Method, o.URLPath)
		}
		// The signer may have added or replaced headers (e.g. Authorization,
		// x-ms-date); reapply the full header list after signing.
		req.Header = make(http.Header, o.ReqHeaders.Len())
		for _, h := range o.ReqHeaders.All() {
			req.Header.Add(h.Key, h.Value)
		}
	}
	return req, nil
}

// dispatch sends req over the connection's shared keep-alive client.
func (c *Connection) dispatch(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// processResponse copies response headers into the Op, extracts the
// backend request-id, buffers the error body when the status indicates
// failure (and, for the S3 backend only, parses an "<Endpoint>" redirect
// target out of a 301's body into o.RedirEndpoint), or hands the success
// body to the Op's ResponseProcessor.
func (c *Connection) processResponse(backend BackendLabel, o *op.Op, resp *http.Response) error {
	o.RespStatus = resp.StatusCode
	o.RespHeaders = op.HeaderList{}
	for key, vals := range resp.Header {
		for _, v := range vals {
			o.RespHeaders.Add(key, v)
		}
	}
	if reqID, ok := o.RespHeaders.Get("x-ms-request-id"); ok {
		o.RequestID = reqID
	} else if reqID, ok := o.RespHeaders.Get("x-amz-request-id"); ok {
		o.RequestID = reqID
	}

	if resp.StatusCode == http.StatusMovedPermanently {
		body, err := readLimited(resp.Body, errorBodyLimit)
		if err != nil {
			return errz.Wrap(errz.KindIO, err, "reading redirect body")
		}
		o.RespErrBody = body
		// Only the S3 backend redirects; elsewhere a
		// 301 is left to fall through to the ordinary error path below, via
		// IsSuccess() being false and RedirEndpoint staying unset.
		if backend == BackendS3 && o.RedirectParser != nil {
			if endpoint, ok := o.RedirectParser(body); ok {
				o.RedirEndpoint = endpoint
			}
		}
		return nil
	}

	if !o.IsSuccess() {
		body, err := readLimited(resp.Body, errorBodyLimit)
		if err != nil {
			return errz.Wrap(errz.KindIO, err, "reading error body")
		}
		o.RespErrBody = body
		return nil
	}

	if o.Processor != nil {
		if err := o.Processor.Process(o, resp.StatusCode, o.RespHeaders, resp.Body); err != nil {
			return errz.Wrap(errz.KindCorruptResponse, err, "decoding response for %s %s", o.Method, o.URLPath)
		}
	}
	if size := o.RespBody.Size(); size > 0 {
		metrics.ResponseBodySize.WithLabelValues(string(backend), opcodeLabel(o)).Observe(float64(size))
	}
	return nil
}

// maybeRedirect follows a single S3 301 redirect by duplicating the
// connection against the new endpoint (preserving credentials) and
// reissuing the Op exactly once.
func (c *Connection) maybeRedirect(ctx context.Context, backend BackendLabel, o *op.Op) error {
	if c.redirected {
		return errz.New(errz.KindIO, "redirect loop: more than one hop for %s %s", o.Method, o.URLPath)
	}
	endpoint := o.RedirEndpoint
	o.RedirEndpoint = ""

	newHost := endpoint
	if i := strings.Index(endpoint, "://"); i >= 0 {
		newHost = endpoint[i+3:]
	}
	newHost = strings.TrimSuffix(newHost, "/")

	redirected := newConnection(newHost, c.InsecureHTTP, c.tlsConf.Clone())
	redirected.redirected = true
	o.URLHost = newHost
	err := redirected.txrxOnce(ctx, backend, o)
	redirected.Free()
	return err
}

// isTransportClose reports whether err looks like a peer-closed
// connection mid-request, warranting one reconnect-and-retry.
func isTransportClose(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "use of closed network connection")
}
