package op

import (
	"io"

	"github.com/elasto/elasto/internal/errz"
)

// Method is the HTTP verb an Op is dispatched with.
type Method string

const (
	MethodGET    Method = "GET"
	MethodPUT    Method = "PUT"
	MethodPOST   Method = "POST"
	MethodHEAD   Method = "HEAD"
	MethodDELETE Method = "DELETE"
)

// Signer signs an Op in place, adding an Authorization header (or
// equivalent).
type Signer interface {
	Sign(o *Op) error
}

// ResponseProcessor parses response headers and body into a
// method-specific result; elasto's processors write into the output value
// their builder captured, not into Op.Resp.
type ResponseProcessor interface {
	Process(o *Op, status int, hdr HeaderList, body io.Reader) error
}

// Op is the central request/response envelope.
// It is created by a backend verb builder, owned by the caller until
// freed (in Go: until it is garbage collected — there is no explicit
// free step "Resource ownership"), and borrowed by a
// Connection for the duration of one transmit-receive cycle.
type Op struct {
	// Opcode identifies the backend verb that built this Op, as an
	// opaque value owned by the backend package (e.g. azureblob.OpPutBlob).
	Opcode interface{}

	Method Method

	// URLHost is checked against the connection's hostname before any
	// request is sent.
	URLHost string
	// URLPath is the absolute path, already percent-encoded per segment.
	URLPath string
	// URLQuery holds query parameters in the order builders added them.
	URLQuery [][2]string
	// RequireHTTPS rejects dispatch over a plain-HTTP connection.
	RequireHTTPS bool

	ReqHeaders HeaderList
	ReqBody    DataStream

	RespHeaders HeaderList
	RespBody    DataStream
	RespStatus  int
	// RespErrBody buffers the error body (XML on Azure/S3) for the
	// response processor to parse Message/Endpoint fields from.
	RespErrBody []byte
	// RequestID is the backend's request-id response header, once known.
	RequestID string
	// RedirEndpoint is set by the pipeline after a successful RedirectParser
	// call against a 301 response; the pipeline reads
	// it and clears it before reissuing the Op against the new host.
	RedirEndpoint string

	// RedirectParser extracts a redirect target host from a 301 response's
	// error body. Only backend packages whose wire protocol actually
	// redirects (S3's "<Error><Endpoint>new-host</Endpoint></Error>" body)
	// set this; it is left nil everywhere else so a stray 301 from Azure
	// or the web backend can never be mistaken for a redirect signal.
	RedirectParser func(body []byte) (endpoint string, ok bool)

	// Req/Resp are optional method-specific payload slots. elasto's
	// builders and response processors do not set them (processors write
	// into the output values their builders captured), and elasto's
	// generic layers never inspect them.
	Req  interface{}
	Resp interface{}

	Signer    Signer
	Processor ResponseProcessor
}

// AddQuery appends a query parameter in builder-declared order. Duplicate
// keys are permitted; signers canonicalise as their scheme requires.
func (o *Op) AddQuery(key, value string) {
	o.URLQuery = append(o.URLQuery, [2]string{key, value})
}

// Close releases any OS resources the Op's data streams hold (an open
// *os.File for a FILE-variant stream). It is always safe to call, even
// when no such resource exists.
func (o *Op) Close() error {
	var err error
	if o.ReqBody.Kind == StreamFile && o.ReqBody.File != nil {
		err = o.ReqBody.File.Close()
	}
	if o.RespBody.Kind == StreamFile && o.RespBody.File != nil {
		if cerr := o.RespBody.File.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return errz.Wrap(errz.KindIO, err, "closing op data stream")
	}
	return nil
}

// IsSuccess reports whether RespStatus is in [200,300).
func (o *Op) IsSuccess() bool {
	return o.RespStatus >= 200 && o.RespStatus < 300
}
