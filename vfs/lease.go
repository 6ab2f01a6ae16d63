package vfs

import (
	"context"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
)

// LeaseState is a handle's lease sub-state: {NONE →
// LEASING → LEASED → RELEASING → NONE} with BROKEN as a side-transition
// from LEASED.
type LeaseState int

const (
	LeaseNone LeaseState = iota
	LeaseLeasing
	LeaseLeased
	LeaseReleasing
	LeaseBroken
)

// LeaseInfinite requests a lease with no fixed expiry.
const LeaseInfinite = 0

// LeaseAcquire acquires a lease on the handle's blob or container. If
// tokens.LEASE_ID was supplied at Open, that id is reused instead of
// proposing a new one.
func (h *FileHandle) LeaseAcquire(ctx context.Context, durationSec int) error {
	if h.backend != BackendAzureBlockBlob && h.backend != BackendAzurePageBlob {
		return errz.New(errz.KindNotSupported, "lease is only supported on Azure blob backends")
	}
	if h.leaseState != LeaseNone {
		return errz.New(errz.KindConflict, "lease already in state %v", h.leaseState)
	}
	h.leaseState = LeaseLeasing
	o, err := h.buildAzureBlobLease(azureblob.LeaseAcquire, h.presetLeaseID, durationSec)
	if err != nil {
		h.leaseState = LeaseNone
		return err
	}
	if err := h.dispatch(ctx, o); err != nil {
		h.leaseState = LeaseNone
		return err
	}
	if id, ok := o.RespHeaders.Get("x-ms-lease-id"); ok {
		h.leaseID = id
	} else {
		h.leaseID = h.presetLeaseID
	}
	h.leaseState = LeaseLeased
	return nil
}

// LeaseRelease releases a held lease.
func (h *FileHandle) LeaseRelease(ctx context.Context) error {
	if h.leaseState != LeaseLeased {
		return errz.New(errz.KindConflict, "no active lease to release (state %v)", h.leaseState)
	}
	h.leaseState = LeaseReleasing
	o, err := h.buildAzureBlobLease(azureblob.LeaseRelease, h.leaseID, 0)
	if err != nil {
		return err
	}
	err = h.dispatch(ctx, o)
	h.leaseState = LeaseNone
	h.leaseID = ""
	return err
}

// LeaseBreak breaks another handle's lease (or this handle's own),
// letting a subsequent acquire succeed.
func (h *FileHandle) LeaseBreak(ctx context.Context) error {
	if h.backend != BackendAzureBlockBlob && h.backend != BackendAzurePageBlob {
		return errz.New(errz.KindNotSupported, "lease is only supported on Azure blob backends")
	}
	o, err := h.buildAzureBlobLease(azureblob.LeaseBreak, "", 0)
	if err != nil {
		return err
	}
	if err := h.dispatch(ctx, o); err != nil {
		return err
	}
	if h.leaseState == LeaseLeased {
		h.leaseState = LeaseBroken
	}
	return nil
}

// LeaseRenew extends an active lease's expiry.
func (h *FileHandle) LeaseRenew(ctx context.Context) error {
	if h.leaseState != LeaseLeased {
		return errz.New(errz.KindConflict, "no active lease to renew (state %v)", h.leaseState)
	}
	o, err := h.buildAzureBlobLease(azureblob.LeaseRenew, h.leaseID, 0)
	if err != nil {
		return err
	}
	return h.dispatch(ctx, o)
}

// leaseStateFromHeader maps an x-ms-lease-state response header value onto
// a LeaseState, for Stat's StatLease field.
func leaseStateFromHeader(v string) LeaseState {
	switch v {
	case "leased":
		return LeaseLeased
	case "breaking":
		return LeaseReleasing
	case "broken":
		return LeaseBroken
	default:
		return LeaseNone
	}
}

// buildAzureBlobLease dispatches to the blob- or container-level lease
// builder depending on whether this handle's path names a blob or a
// container (FlagDirectory was set at Open).
func (h *FileHandle) buildAzureBlobLease(action azureblob.LeaseAction, leaseID string, durationSec int) (*op.Op, error) {
	if h.flags.has(FlagDirectory) {
		return azureblob.BuildLeaseCtnr(h.blobPath, action, leaseID, durationSec)
	}
	return azureblob.BuildLeaseBlob(h.blobPath, action, leaseID, durationSec)
}
