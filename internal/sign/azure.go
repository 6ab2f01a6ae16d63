// Package sign implements the Azure shared-key (full and lite) and AWS S3
// V2 signature generators, each as an op.Signer.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
)

// azureFullEntityHeaders lists the entity headers canonicalised into the
// shared-key (full) signature string, in this fixed order.
var azureFullEntityHeaders = []string{
	"Content-Encoding",
	"Content-Language",
	"Content-Length",
	"Content-MD5",
	"Content-Type",
	"Date",
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Unmodified-Since",
	"Range",
}

// AzureSharedKeyFull signs requests with Azure's "SharedKey" scheme.
type AzureSharedKeyFull struct {
	Account string
	Key     []byte
}

// Sign implements op.Signer.
func (s *AzureSharedKeyFull) Sign(o *op.Op) error {
	canon := canonicalAzureFull(s.Account, o)
	sig := hmacSHA256Base64(s.Key, canon)
	o.ReqHeaders.Set("Authorization", fmt.Sprintf("SharedKey %s:%s", s.Account, sig))
	return nil
}

func canonicalAzureFull(account string, o *op.Op) string {
	var b strings.Builder
	b.WriteString(string(o.Method))
	b.WriteByte('\n')
	for _, h := range azureFullEntityHeaders {
		v, _ := o.ReqHeaders.Get(h)
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteString(canonicalXMSHeaders(o.ReqHeaders))
	b.WriteString(canonicalAzureResource(account, o.URLPath, o.URLQuery, false))
	return b.String()
}

// AzureSharedKeyLite signs requests with Azure's legacy "SharedKeyLite"
// scheme, used for the management API. It canonicalises fewer entity
// headers and only the first query parameter.
type AzureSharedKeyLite struct {
	Account string
	Key     []byte
}

// Sign implements op.Signer.
func (s *AzureSharedKeyLite) Sign(o *op.Op) error {
	canon := canonicalAzureLite(s.Account, o)
	sig := hmacSHA256Base64(s.Key, canon)
	o.ReqHeaders.Set("Authorization", fmt.Sprintf("SharedKeyLite %s:%s", s.Account, sig))
	return nil
}

func canonicalAzureLite(account string, o *op.Op) string {
	var b strings.Builder
	contentMD5, _ := o.ReqHeaders.Get("Content-MD5")
	contentType, _ := o.ReqHeaders.Get("Content-Type")
	date, _ := o.ReqHeaders.Get("Date")
	b.WriteString(contentMD5)
	b.WriteByte('\n')
	b.WriteString(contentType)
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	b.WriteString(canonicalXMSHeaders(o.ReqHeaders))
	b.WriteString(canonicalAzureResource(account, o.URLPath, o.URLQuery, true))
	return b.String()
}

// canonicalXMSHeaders canonicalises every x-ms-* header: sorted
// ASCII-ascending by lower-cased name, "name:value\n", multi-value joined
// by commas, leading/trailing whitespace trimmed.
func canonicalXMSHeaders(hdrs op.HeaderList) string {
	seen := map[string]bool{}
	var names []string
	for _, h := range hdrs.All() {
		lower := strings.ToLower(h.Key)
		if strings.HasPrefix(lower, "x-ms-") && !seen[lower] {
			seen[lower] = true
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		vals := hdrs.Values(name)
		for i, v := range vals {
			vals[i] = strings.TrimSpace(v)
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(vals, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalAzureResource builds "/account/path" plus sorted query
// parameters ("\nparam:value", multi-value joined by commas, name
// lower-cased). liteOnlyFirstParam restricts this to the first query
// parameter only, for the lite scheme.
func canonicalAzureResource(account, urlPath string, query [][2]string, liteOnlyFirstParam bool) string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(account)
	if !strings.HasPrefix(urlPath, "/") {
		b.WriteByte('/')
	}
	b.WriteString(urlPath)

	if liteOnlyFirstParam {
		if len(query) > 0 {
			b.WriteByte('\n')
			b.WriteString(strings.ToLower(query[0][0]))
			b.WriteByte(':')
			b.WriteString(query[0][1])
		}
		return b.String()
	}

	grouped := map[string][]string{}
	var names []string
	for _, kv := range query {
		name := strings.ToLower(kv[0])
		if _, ok := grouped[name]; !ok {
			names = append(names, name)
		}
		grouped[name] = append(grouped[name], kv[1])
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteByte('\n')
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(grouped[name], ","))
	}
	return b.String()
}

func hmacSHA256Base64(key []byte, msg string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// DecodeAccountKey base64-decodes an Azure storage account key, the form
// the management API hands back.
func DecodeAccountKey(keyB64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, errz.Wrap(errz.KindInvalidArgument, err, "decoding base64 account key")
	}
	return key, nil
}
