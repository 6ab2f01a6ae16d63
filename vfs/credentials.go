package vfs

// Credentials carries the authentication inputs for every backend,
// loosely grouped by which Backend values consume them. Open only reads
// the fields its Backend needs.
type Credentials struct {
	// Azure (BackendAzureBlockBlob, BackendAzurePageBlob, BackendAzureFile).
	Account        string // storage account name
	AccountKey     string // base64 shared key
	UseLiteSigning bool

	// Azure management API, used only when Open is asked to create an
	// account that does not exist yet.
	SubscriptionID    string
	ManagementPEMFile string
	ManagementHost    string // e.g. "management.core.windows.net"

	// S3 (BackendS3).
	AccessKeyID     string
	SecretAccessKey string

	// Host overrides the backend's default endpoint (account.blob.core.
	// windows.net, account.file.core.windows.net, s3.amazonaws.com, or a
	// bucket-virtual-host/path-style host); tests point this at a fake
	// server instead of the real cloud endpoint.
	Host string
	// InsecureHTTP disables TLS; never set against a real cloud endpoint.
	InsecureHTTP bool
	// S3BucketAsHostPrefix selects virtual-host vs path-style S3
	// addressing.
	S3BucketAsHostPrefix bool
}
