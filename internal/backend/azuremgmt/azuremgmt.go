// Package azuremgmt builds Ops for the Azure management-plane backend:
// storage account lifecycle operations. It runs over
// the same internal/conn.Connection as the data-plane backends but uses
// a client-certificate mutual-TLS connection.
package azuremgmt

import (
	"io"
	"time"

	"github.com/aws/smithy-go/encoding/httpbinding"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
	"github.com/elasto/elasto/internal/xmlfinder"
)

const xMSVersion = "2023-11-03"

// Opcode identifies an azuremgmt verb.
type Opcode string

const (
	OpListAccounts    Opcode = "list_accounts"
	OpGetAccountProps Opcode = "get_account_props"
	OpCreateAccount   Opcode = "create_account"
	OpDeleteAccount   Opcode = "delete_account"
	OpStatusGet       Opcode = "status_get"
	OpGetAccountKeys  Opcode = "get_account_keys"
)

// StatusPollInterval and StatusPollTimeout bound the open-time poll loop
// for an async create_account.
const (
	StatusPollInterval = 2 * time.Second
	StatusPollTimeout  = 20 * time.Second
)

func escapeSeg(s string) string { return httpbinding.EscapePath(s, false) }

func newOp(opcode Opcode, method op.Method, url string) *op.Op {
	o := &op.Op{Opcode: string(opcode), Method: method, URLPath: url, RequireHTTPS: true}
	o.ReqHeaders.Set("x-ms-version", xMSVersion)
	return o
}

// AccountEntry is one <StorageServiceName> element of a list_accounts
// response.
type AccountEntry struct {
	Name string
}

// ListAccountsResult is the decoded response of list_accounts.
type ListAccountsResult struct {
	Accounts []AccountEntry
}

// BuildListAccounts lists every storage account under the subscription.
func BuildListAccounts(subscriptionID string, out *ListAccountsResult) *op.Op {
	o := newOp(OpListAccounts, op.MethodGET, "/"+escapeSeg(subscriptionID)+"/services/storageservices")
	o.Processor = listAccountsProcessor{out: out}
	return o
}

// AccountProps is the decoded response of get_account_props.
type AccountProps struct {
	Status   string
	Location string
}

// BuildGetAccountProps fetches a storage account's properties.
func BuildGetAccountProps(subscriptionID, account string, out *AccountProps) *op.Op {
	o := newOp(OpGetAccountProps, op.MethodGET, "/"+escapeSeg(subscriptionID)+"/services/storageservices/"+escapeSeg(account))
	o.Processor = accountPropsProcessor{out: out}
	return o
}

// BuildCreateAccount starts an async account creation. The server returns
// 202 Accepted with a request-id; the caller polls status_get with that
// id.
func BuildCreateAccount(subscriptionID, account, location string) *op.Op {
	body := []byte(`<CreateStorageServiceInput><ServiceName>` + account +
		`</ServiceName><Location>` + location + `</Location></CreateStorageServiceInput>`)
	o := newOp(OpCreateAccount, op.MethodPOST, "/"+escapeSeg(subscriptionID)+"/services/storageservices")
	o.ReqHeaders.Set("Content-Type", "application/xml")
	o.ReqBody = op.IOV(body, 0)
	o.Processor = statusOnlyProcessor{}
	return o
}

// BuildDeleteAccount deletes a storage account.
func BuildDeleteAccount(subscriptionID, account string) *op.Op {
	o := newOp(OpDeleteAccount, op.MethodDELETE, "/"+escapeSeg(subscriptionID)+"/services/storageservices/"+escapeSeg(account))
	o.Processor = statusOnlyProcessor{}
	return o
}

// OperationStatus is the decoded response of status_get.
type OperationStatus struct {
	Status       string // "InProgress", "Succeeded", "Failed"
	ErrorMessage string
}

// BuildStatusGet polls the status of an async management operation by its
// request id.
func BuildStatusGet(subscriptionID, requestID string, out *OperationStatus) *op.Op {
	o := newOp(OpStatusGet, op.MethodGET, "/"+escapeSeg(subscriptionID)+"/operations/"+escapeSeg(requestID))
	o.Processor = statusProcessor{out: out}
	return o
}

// AccountKeys is the decoded response of get_account_keys.
type AccountKeys struct {
	Primary   string
	Secondary string
}

// BuildGetAccountKeys fetches an account's shared keys.
func BuildGetAccountKeys(subscriptionID, account string, out *AccountKeys) *op.Op {
	o := newOp(OpGetAccountKeys, op.MethodGET, "/"+escapeSeg(subscriptionID)+"/services/storageservices/"+escapeSeg(account)+"/keys")
	o.Processor = keysProcessor{out: out}
	return o
}

type statusOnlyProcessor struct{}

func (statusOnlyProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	return nil
}

type listAccountsProcessor struct{ out *ListAccountsResult }

func (p listAccountsProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{
		Path: "/StorageServices/StorageService",
		Kind: xmlfinder.ConsumePathCB,
		PathCB: func(r *xmlfinder.Registry, pth string) error {
			p.out.Accounts = append(p.out.Accounts, AccountEntry{})
			idx := len(p.out.Accounts) - 1
			r.Register(&xmlfinder.Finder{Path: "./ServiceName", Kind: xmlfinder.ConsumeCB, CB: func(_, v string) error {
				p.out.Accounts[idx].Name = v
				return nil
			}})
			return nil
		},
	})
	return reg.Walk(body)
}

type accountPropsProcessor struct{ out *AccountProps }

func (p accountPropsProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/StorageService/StorageServiceProperties/Status", Kind: xmlfinder.ConsumeString, StringOut: &p.out.Status})
	reg.Register(&xmlfinder.Finder{Path: "/StorageService/StorageServiceProperties/Location", Kind: xmlfinder.ConsumeString, StringOut: &p.out.Location})
	return reg.Walk(body)
}

type statusProcessor struct{ out *OperationStatus }

func (p statusProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/Operation/Status", Kind: xmlfinder.ConsumeString, StringOut: &p.out.Status})
	reg.Register(&xmlfinder.Finder{Path: "/Operation/Error/Message", Kind: xmlfinder.ConsumeString, StringOut: &p.out.ErrorMessage})
	if err := reg.Walk(body); err != nil {
		return err
	}
	if p.out.Status == "" {
		return errz.New(errz.KindCorruptResponse, "status_get response missing Operation/Status")
	}
	return nil
}

type keysProcessor struct{ out *AccountKeys }

func (p keysProcessor) Process(o *op.Op, status int, hdr op.HeaderList, body io.Reader) error {
	reg := xmlfinder.NewRegistry()
	reg.Register(&xmlfinder.Finder{Path: "/StorageService/StorageServiceKeys/Primary", Kind: xmlfinder.ConsumeString, StringOut: &p.out.Primary})
	reg.Register(&xmlfinder.Finder{Path: "/StorageService/StorageServiceKeys/Secondary", Kind: xmlfinder.ConsumeString, StringOut: &p.out.Secondary})
	return reg.Walk(body)
}
