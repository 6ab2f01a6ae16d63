package sign

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"

	"github.com/elasto/elasto/internal/op"
)

// s3SubResources is the fixed set of query parameters that participate in
// the S3 V2 canonical resource when present.
var s3SubResources = map[string]bool{
	"acl": true, "lifecycle": true, "location": true, "logging": true,
	"notification": true, "partNumber": true, "policy": true,
	"requestPayment": true, "torrent": true, "uploadId": true,
	"uploads": true, "versionId": true, "versioning": true, "versions": true,
	"website": true,
}

// S3V2 signs requests with AWS's legacy S3 "V2" scheme.
type S3V2 struct {
	AccessKeyID string
	SecretKey   []byte
	// Bucket/Object are the canonical resource path components; builders
	// set these on the signer per-request since the Op's URLPath may be
	// virtual-host-addressed.
	Bucket string
	Object string
}

// Sign implements op.Signer.
func (s *S3V2) Sign(o *op.Op) error {
	canon := s.canonicalString(o)
	mac := hmac.New(sha1.New, s.SecretKey)
	mac.Write([]byte(canon))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	o.ReqHeaders.Set("Authorization", fmt.Sprintf("AWS %s:%s", s.AccessKeyID, sig))
	return nil
}

func (s *S3V2) canonicalString(o *op.Op) string {
	contentMD5, _ := o.ReqHeaders.Get("Content-MD5")
	contentType, _ := o.ReqHeaders.Get("Content-Type")
	date, _ := o.ReqHeaders.Get("Date")

	var b strings.Builder
	b.WriteString(string(o.Method))
	b.WriteByte('\n')
	b.WriteString(contentMD5)
	b.WriteByte('\n')
	b.WriteString(contentType)
	b.WriteByte('\n')
	b.WriteString(date)
	b.WriteByte('\n')
	b.WriteString(canonicalAmzHeaders(o.ReqHeaders))
	b.WriteString(canonicalS3Resource(s.Bucket, s.Object, o.URLQuery))
	return b.String()
}

// canonicalAmzHeaders canonicalises x-amz-* headers: sorted, lower-cased,
// multi-value joined by commas.
func canonicalAmzHeaders(hdrs op.HeaderList) string {
	seen := map[string]bool{}
	var names []string
	for _, h := range hdrs.All() {
		lower := strings.ToLower(h.Key)
		if strings.HasPrefix(lower, "x-amz-") && !seen[lower] {
			seen[lower] = true
			names = append(names, lower)
		}
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(strings.Join(hdrs.Values(name), ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// canonicalS3Resource builds "/bucket/object" plus the sub-resource query
// parameters from the fixed set, in sorted order.
func canonicalS3Resource(bucket, object string, query [][2]string) string {
	var b strings.Builder
	if bucket != "" {
		b.WriteByte('/')
		b.WriteString(bucket)
	}
	b.WriteByte('/')
	b.WriteString(object)

	var names []string
	grouped := map[string]string{}
	for _, kv := range query {
		if s3SubResources[kv[0]] {
			if _, ok := grouped[kv[0]]; !ok {
				names = append(names, kv[0])
			}
			grouped[kv[0]] = kv[1]
		}
	}
	sort.Strings(names)
	for i, name := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(name)
		if grouped[name] != "" {
			b.WriteByte('=')
			b.WriteString(grouped[name])
		}
	}
	return b.String()
}
