package vfs

import (
	"context"
	"time"

	"github.com/elasto/elasto/internal/backend/azureblob"
	"github.com/elasto/elasto/internal/backend/azurefile"
	"github.com/elasto/elasto/internal/backend/azuremgmt"
	"github.com/elasto/elasto/internal/backend/s3"
	"github.com/elasto/elasto/internal/backend/web"
	"github.com/elasto/elasto/internal/conn"
	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/path"
	"github.com/elasto/elasto/internal/sign"
)

// Open resolves pathStr against backend, establishing a Connection and
// resolving existence/creation per flags and the open-token bag.
func Open(ctx context.Context, backend Backend, creds Credentials, pathStr string, flags OpenFlags, tokens Tokens) (*FileHandle, error) {
	if err := flags.validate(); err != nil {
		return nil, err
	}
	if err := tokens.validate(); err != nil {
		return nil, err
	}

	switch backend {
	case BackendAzureBlockBlob, BackendAzurePageBlob:
		return openAzureBlob(ctx, backend, creds, pathStr, flags, tokens)
	case BackendAzureFile:
		return openAzureFile(ctx, creds, pathStr, flags, tokens)
	case BackendS3:
		return openS3(ctx, creds, pathStr, flags, tokens)
	case BackendWeb:
		return openWeb(ctx, creds, pathStr, flags)
	default:
		return nil, errz.New(errz.KindInvalidArgument, "unknown backend %v", backend)
	}
}

func azureSigner(creds Credentials, key []byte) op.Signer {
	if creds.UseLiteSigning {
		return &sign.AzureSharedKeyLite{Account: creds.Account, Key: key}
	}
	return &sign.AzureSharedKeyFull{Account: creds.Account, Key: key}
}

func openAzureBlob(ctx context.Context, backend Backend, creds Credentials, pathStr string, flags OpenFlags, tokens Tokens) (*FileHandle, error) {
	p, err := path.ParseBlob(pathStr)
	if err != nil {
		return nil, err
	}
	host := creds.Host
	if host == "" {
		host = creds.Account + ".blob.core.windows.net"
	}
	c, err := conn.InitAzure(ctx, "", creds.InsecureHTTP, host)
	if err != nil {
		return nil, err
	}
	key, err := sign.DecodeAccountKey(creds.AccountKey)
	if err != nil {
		c.Free()
		return nil, err
	}

	kind := azureblob.KindBlockBlob
	if backend == BackendAzurePageBlob {
		kind = azureblob.KindPageBlob
	}

	h := &FileHandle{
		backend:       backend,
		conn:          c,
		signer:        azureSigner(creds, key),
		blobPath:      p,
		blobKind:      kind,
		flags:         flags,
		presetLeaseID: tokens[TokenLeaseID],
	}

	if flags.has(FlagDirectory) {
		if err := h.resolveAzureContainer(ctx, creds, tokens); err != nil {
			c.Free()
			return nil, err
		}
	} else {
		if err := h.resolveAzureBlob(ctx); err != nil {
			c.Free()
			return nil, err
		}
	}
	h.state = stateOpen
	return h, nil
}

func (h *FileHandle) resolveAzureContainer(ctx context.Context, creds Credentials, tokens Tokens) error {
	if h.blobPath.Kind == path.BlobAccount || h.blobPath.Kind == path.BlobRoot {
		// Account-level "directory" open: account existence is checked via
		// list_ctnrs; account creation (management-plane, async) only
		// applies here.
		var out azureblob.ListCtnrsResult
		o, err := azureblob.BuildListCtnrs(h.blobPath, "", &out)
		if err != nil {
			return err
		}
		if err := h.dispatch(ctx, o); err != nil {
			if !errz.IsNotFound(err) {
				return err
			}
			if !h.flags.has(FlagCreate) {
				return err
			}
			return createAzureAccount(ctx, creds, h.blobPath.Account, tokens[TokenCreateAtLocation])
		} else if h.flags.has(FlagExcl) {
			return errz.New(errz.KindExists, "account %q already exists", h.blobPath.Account)
		}
		return nil
	}

	o, err := azureblob.BuildGetCtnrProps(h.blobPath)
	if err != nil {
		return err
	}
	err = h.dispatch(ctx, o)
	switch {
	case err == nil:
		if h.flags.has(FlagExcl) {
			return errz.New(errz.KindExists, "container %q already exists", h.blobPath.Container)
		}
		return nil
	case errz.IsNotFound(err):
		if !h.flags.has(FlagCreate) {
			return err
		}
		co, cerr := azureblob.BuildCreateCtnr(h.blobPath)
		if cerr != nil {
			return cerr
		}
		return h.dispatch(ctx, co)
	default:
		return err
	}
}

func (h *FileHandle) resolveAzureBlob(ctx context.Context) error {
	o, err := azureblob.BuildHeadBlob(h.blobPath)
	if err != nil {
		return err
	}
	err = h.dispatch(ctx, o)
	switch {
	case err == nil:
		if h.flags.has(FlagExcl) {
			return errz.New(errz.KindExists, "blob %q already exists", h.blobPath.BlobName)
		}
		return nil
	case errz.IsNotFound(err):
		if !h.flags.has(FlagCreate) {
			return err
		}
		po, perr := azureblob.BuildPutBlob(h.blobPath, h.blobKind, op.None(), "")
		if perr != nil {
			return perr
		}
		return h.dispatch(ctx, po)
	default:
		return err
	}
}

// createAzureAccount drives the management plane's async account
// creation: POST create_account returns 202 Accepted, then the open
// call polls status_get every StatusPollInterval up to StatusPollTimeout.
func createAzureAccount(ctx context.Context, creds Credentials, account, location string) error {
	if creds.SubscriptionID == "" || creds.ManagementPEMFile == "" {
		return errz.New(errz.KindInvalidArgument, "account creation requires SubscriptionID and ManagementPEMFile")
	}
	if location == "" {
		location = DefaultAzureLocation
	}
	host := creds.ManagementHost
	if host == "" {
		host = "management.core.windows.net"
	}
	mc, err := conn.InitAzure(ctx, creds.ManagementPEMFile, false, host)
	if err != nil {
		return err
	}
	defer mc.Free()

	o := azuremgmt.BuildCreateAccount(creds.SubscriptionID, account, location)
	if err := mc.Txrx(ctx, conn.BackendAzureMgmt, o); err != nil {
		return err
	}
	requestID := o.RequestID
	if requestID == "" {
		return errz.New(errz.KindCorruptResponse, "create_account response carried no request id to poll")
	}

	deadline := time.Now().Add(azuremgmt.StatusPollTimeout)
	for {
		var status azuremgmt.OperationStatus
		so := azuremgmt.BuildStatusGet(creds.SubscriptionID, requestID, &status)
		if err := mc.Txrx(ctx, conn.BackendAzureMgmt, so); err != nil {
			return err
		}
		switch status.Status {
		case "Succeeded":
			return nil
		case "Failed":
			return errz.New(errz.KindIO, "account creation failed: %s", status.ErrorMessage)
		}
		if time.Now().After(deadline) {
			return errz.New(errz.KindTimeout, "account creation did not complete within %s", azuremgmt.StatusPollTimeout)
		}
		select {
		case <-ctx.Done():
			return errz.Wrap(errz.KindTimeout, ctx.Err(), "account creation poll cancelled")
		case <-time.After(azuremgmt.StatusPollInterval):
		}
	}
}

func openAzureFile(ctx context.Context, creds Credentials, pathStr string, flags OpenFlags, tokens Tokens) (*FileHandle, error) {
	parsed, err := path.ParseFile(pathStr)
	if err != nil {
		return nil, err
	}
	host := creds.Host
	if host == "" {
		host = creds.Account + ".file.core.windows.net"
	}
	c, err := conn.InitAzure(ctx, "", creds.InsecureHTTP, host)
	if err != nil {
		return nil, err
	}
	key, err := sign.DecodeAccountKey(creds.AccountKey)
	if err != nil {
		c.Free()
		return nil, err
	}
	h := &FileHandle{
		backend:       BackendAzureFile,
		conn:          c,
		signer:        azureSigner(creds, key),
		filePath:      parsed,
		flags:         flags,
		presetLeaseID: tokens[TokenLeaseID],
	}
	if err := h.resolveAzureFile(ctx); err != nil {
		c.Free()
		return nil, err
	}
	h.state = stateOpen
	return h, nil
}

func (h *FileHandle) resolveAzureFile(ctx context.Context) error {
	f := h.filePath
	if f.Share == "" {
		return errz.New(errz.KindInvalidArgument, "azure file path requires at least a share")
	}

	if h.flags.has(FlagDirectory) {
		if f.FSEnt == "" {
			// Share-level open.
			o := azurefile.BuildSharePropGet(f)
			err := h.dispatch(ctx, o)
			if err == nil {
				if h.flags.has(FlagExcl) {
					return errz.New(errz.KindExists, "share %q already exists", f.Share)
				}
				return nil
			}
			if !errz.IsNotFound(err) {
				return err
			}
			if !h.flags.has(FlagCreate) {
				return err
			}
			return h.dispatch(ctx, azurefile.BuildShareCreate(f, 0))
		}
		o := azurefile.BuildDirPropGet(f)
		err := h.dispatch(ctx, o)
		if err == nil {
			if h.flags.has(FlagExcl) {
				return errz.New(errz.KindExists, "directory %q already exists", f.FSEnt)
			}
			return nil
		}
		if !errz.IsNotFound(err) {
			return err
		}
		if !h.flags.has(FlagCreate) {
			return err
		}
		return h.dispatch(ctx, azurefile.BuildDirCreate(f))
	}

	o := azurefile.BuildFilePropGet(f)
	err := h.dispatch(ctx, o)
	if err == nil {
		if h.flags.has(FlagExcl) {
			return errz.New(errz.KindExists, "file %q already exists", f.FSEnt)
		}
		return nil
	}
	if !errz.IsNotFound(err) {
		return err
	}
	if !h.flags.has(FlagCreate) {
		return err
	}
	return h.dispatch(ctx, azurefile.BuildFileCreate(f, 0))
}

func openS3(ctx context.Context, creds Credentials, pathStr string, flags OpenFlags, tokens Tokens) (*FileHandle, error) {
	p, err := path.ParseS3(pathStr)
	if err != nil {
		return nil, err
	}
	host := creds.Host
	if host == "" {
		if creds.S3BucketAsHostPrefix && p.Bucket != "" {
			host = p.Bucket + ".s3.amazonaws.com"
		} else {
			host = "s3.amazonaws.com"
		}
	}
	c, err := conn.InitS3(ctx, creds.InsecureHTTP, host)
	if err != nil {
		return nil, err
	}
	signer := &sign.S3V2{AccessKeyID: creds.AccessKeyID, SecretKey: []byte(creds.SecretAccessKey), Bucket: p.Bucket, Object: p.Object}

	h := &FileHandle{
		backend: BackendS3,
		conn:    c,
		signer:  signer,
		s3Path:  p,
		flags:   flags,
	}
	if err := h.resolveS3(ctx, tokens[TokenCreateAtLocation]); err != nil {
		c.Free()
		return nil, err
	}
	h.state = stateOpen
	return h, nil
}

func (h *FileHandle) resolveS3(ctx context.Context, region string) error {
	switch h.s3Path.Kind {
	case path.S3Root:
		return nil
	case path.S3Bucket:
		var loc string
		o, err := s3.BuildBktLocationGet(h.s3Path, &loc)
		if err != nil {
			return err
		}
		err = h.dispatch(ctx, o)
		if err == nil {
			if h.flags.has(FlagExcl) {
				return errz.New(errz.KindExists, "bucket %q already exists", h.s3Path.Bucket)
			}
			return nil
		}
		if !errz.IsNotFound(err) {
			return err
		}
		if !h.flags.has(FlagCreate) {
			return err
		}
		co, cerr := s3.BuildBktCreate(h.s3Path, region)
		if cerr != nil {
			return cerr
		}
		return h.dispatch(ctx, co)
	case path.S3Object:
		o, err := s3.BuildObjHead(h.s3Path)
		if err != nil {
			return err
		}
		err = h.dispatch(ctx, o)
		if err == nil {
			if h.flags.has(FlagExcl) {
				return errz.New(errz.KindExists, "object %q already exists", h.s3Path.Object)
			}
			return nil
		}
		if !errz.IsNotFound(err) {
			return err
		}
		if !h.flags.has(FlagCreate) {
			return err
		}
		po, perr := s3.BuildObjPut(h.s3Path, op.None(), "")
		if perr != nil {
			return perr
		}
		return h.dispatch(ctx, po)
	default:
		return errz.New(errz.KindInvalidArgument, "unrecognised s3 path kind")
	}
}

func openWeb(ctx context.Context, creds Credentials, pathStr string, flags OpenFlags) (*FileHandle, error) {
	if flags.has(FlagCreate) || flags.has(FlagDirectory) {
		return nil, errz.New(errz.KindNotSupported, "the web backend is read-only")
	}
	w, err := path.ParseWeb(pathStr)
	if err != nil {
		return nil, err
	}
	if creds.Host != "" {
		w.Host = creds.Host
	}
	c, err := conn.InitWeb(ctx, w.InsecureHTTP, w.Host)
	if err != nil {
		return nil, err
	}
	h := &FileHandle{
		backend: BackendWeb,
		conn:    c,
		webPath: w,
		flags:   flags,
	}
	o := web.BuildDLHead(h.webPath)
	if err := h.dispatch(ctx, o); err != nil {
		c.Free()
		return nil, err
	}
	h.state = stateOpen
	return h, nil
}
