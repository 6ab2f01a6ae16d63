// Package vfs is elasto's public, backend-agnostic file API: the
// vfs.Open/FileHandle surface that exposes Azure Block
// Blob, Azure Page Blob, Azure File Service, Amazon S3, and the read-only
// web backend through one POSIX-like interface.
package vfs

import (
	"github.com/elasto/elasto/internal/errz"
)

// Backend selects which wire protocol and path model a handle talks,
// the auth type that selects which backend implementation serves the
// handle.
type Backend int

const (
	// BackendAzureBlockBlob addresses the Azure Block Blob service.
	BackendAzureBlockBlob Backend = iota
	// BackendAzurePageBlob addresses the Azure Page Blob service, sharing
	// ABB's container/blob namespace but writing via put_page/clear_page.
	BackendAzurePageBlob
	// BackendAzureFile addresses the Azure File Service.
	BackendAzureFile
	// BackendS3 addresses Amazon S3 (or an S3-compatible endpoint).
	BackendS3
	// BackendWeb addresses the read-only HTTP fetch backend.
	BackendWeb
)

func (b Backend) String() string {
	switch b {
	case BackendAzureBlockBlob:
		return "azure-block-blob"
	case BackendAzurePageBlob:
		return "azure-page-blob"
	case BackendAzureFile:
		return "azure-file"
	case BackendS3:
		return "s3"
	case BackendWeb:
		return "web"
	default:
		return "unknown"
	}
}

// OpenFlags is the open-flags bitmask accepted by Open.
type OpenFlags uint32

const (
	// FlagCreate creates the file/dir if absent.
	FlagCreate OpenFlags = 1 << iota
	// FlagExcl, combined with FlagCreate, fails if the target already exists.
	FlagExcl
	// FlagDirectory marks the path as a directory/container/bucket/root;
	// required for mkdir/rmdir/readdir, forbidden for data ops.
	FlagDirectory
)

// allKnownFlags is used to reject reserved bits at open time.
const allKnownFlags = FlagCreate | FlagExcl | FlagDirectory

func (f OpenFlags) validate() error {
	if f&^allKnownFlags != 0 {
		return errz.New(errz.KindInvalidArgument, "open flags 0x%x contain unrecognised bits", uint32(f))
	}
	if f&FlagExcl != 0 && f&FlagCreate == 0 {
		return errz.New(errz.KindInvalidArgument, "EXCL requires CREATE")
	}
	return nil
}

func (f OpenFlags) has(bit OpenFlags) bool { return f&bit != 0 }

// TokenKey is a recognised open-token bag key.
type TokenKey string

const (
	// TokenCreateAtLocation selects the backend region on account/bucket
	// creation (default "West Europe" on Azure when absent).
	TokenCreateAtLocation TokenKey = "CREATE_AT_LOCATION"
	// TokenLeaseID reuses an existing Azure lease id rather than acquiring
	// a new one.
	TokenLeaseID TokenKey = "LEASE_ID"
)

// Tokens is the open-time option bag. Unknown keys are
// rejected with an invalid-argument error at Open.
type Tokens map[TokenKey]string

func (t Tokens) validate() error {
	for k := range t {
		switch k {
		case TokenCreateAtLocation, TokenLeaseID:
		default:
			return errz.New(errz.KindInvalidArgument, "unrecognised open token %q", k)
		}
	}
	return nil
}

// DefaultAzureLocation is the region applied to an Azure account creation
// when CREATE_AT_LOCATION is absent.
const DefaultAzureLocation = "West Europe"

// EntType distinguishes a regular file from a directory/container/bucket
// in a Stat result.
type EntType int

const (
	EntFile EntType = iota
	EntDir
)

// StatMask bit-flags which Stat fields are valid.
type StatMask uint32

const (
	StatType StatMask = 1 << iota
	StatSize
	StatBSize
	StatLease
	StatContentType
)

// Stat is the file/dir metadata result of a Stat call. Valid selects
// which fields the backend actually populated.
type Stat struct {
	Valid       StatMask
	EntType     EntType
	Size        int64
	BlkSize     int64
	Lease       LeaseState
	ContentType string
}

// RegionAvailability is one {region, location} pair in a Statfs result.
type RegionAvailability struct {
	Region   string
	Location string
}

// Statfs is the filesystem-level metadata result of a Statfs call.
type Statfs struct {
	MinIOSize    int64
	OptIOSize    int64
	Availability []RegionAvailability
}

// DirEntry is one entry passed to a Readdir callback.
type DirEntry struct {
	Name string
	Stat Stat
}

// ReaddirFunc is invoked once per directory entry; returning a non-nil
// error aborts enumeration.
type ReaddirFunc func(entry DirEntry) error

// RangeFunc receives one allocated page-blob range as (start, length);
// the handle's total size is available via a prior Stat call.
type RangeFunc func(start, length int64) error
