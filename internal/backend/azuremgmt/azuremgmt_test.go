package azuremgmt

import (
	"strings"
	"testing"

	"github.com/elasto/elasto/internal/errz"
	"github.com/elasto/elasto/internal/op"
)

func TestBuildCreateAccountBodyAndURL(t *testing.T) {
	o := BuildCreateAccount("sub-1", "acc1", "West Europe")
	if o.Method != op.MethodPOST {
		t.Errorf("method = %s, want POST", o.Method)
	}
	if o.URLPath != "/sub-1/services/storageservices" {
		t.Errorf("URLPath = %q", o.URLPath)
	}
	body := string(o.ReqBody.Buf)
	if !strings.Contains(body, "<ServiceName>acc1</ServiceName>") ||
		!strings.Contains(body, "<Location>West Europe</Location>") {
		t.Errorf("body = %q", body)
	}
	if v, _ := o.ReqHeaders.Get("x-ms-version"); v != xMSVersion {
		t.Errorf("x-ms-version = %q", v)
	}
}

func TestListAccountsDecodesRepeatedServices(t *testing.T) {
	const xmlBody = `<?xml version="1.0"?>
<StorageServices>
  <StorageService><ServiceName>alpha</ServiceName></StorageService>
  <StorageService><ServiceName>beta</ServiceName></StorageService>
</StorageServices>`

	var out ListAccountsResult
	o := BuildListAccounts("sub-1", &out)
	if err := o.Processor.Process(o, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out.Accounts) != 2 || out.Accounts[0].Name != "alpha" || out.Accounts[1].Name != "beta" {
		t.Errorf("accounts = %+v", out.Accounts)
	}
}

func TestStatusGetRejectsMissingStatus(t *testing.T) {
	var out OperationStatus
	o := BuildStatusGet("sub-1", "req-9", &out)
	err := o.Processor.Process(o, 200, op.HeaderList{}, strings.NewReader(`<Operation></Operation>`))
	if errz.KindOf(err) != errz.KindCorruptResponse {
		t.Errorf("missing Status: got %v, want corrupt-response", err)
	}
}

func TestStatusGetDecodesFailure(t *testing.T) {
	const xmlBody = `<Operation><Status>Failed</Status><Error><Message>quota exceeded</Message></Error></Operation>`
	var out OperationStatus
	o := BuildStatusGet("sub-1", "req-9", &out)
	if err := o.Processor.Process(o, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Status != "Failed" || out.ErrorMessage != "quota exceeded" {
		t.Errorf("status = %+v", out)
	}
}

func TestGetAccountKeysDecodesBothKeys(t *testing.T) {
	const xmlBody = `<StorageService><StorageServiceKeys><Primary>cHJpbWFyeQ==</Primary><Secondary>c2Vjb25kYXJ5</Secondary></StorageServiceKeys></StorageService>`
	var out AccountKeys
	o := BuildGetAccountKeys("sub-1", "acc1", &out)
	if err := o.Processor.Process(o, 200, op.HeaderList{}, strings.NewReader(xmlBody)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.Primary != "cHJpbWFyeQ==" || out.Secondary != "c2Vjb25kYXJ5" {
		t.Errorf("keys = %+v", out)
	}
}
