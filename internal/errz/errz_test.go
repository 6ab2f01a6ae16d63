package errz

import (
	"errors"
	"testing"
)

func TestFromHTTPStatusMapping(t *testing.T) {
	for _, tc := range []struct {
		status    int
		azureCode string
		want      Kind
	}{
		{404, "", KindNotFound},
		{409, "", KindConflict},
		{408, "", KindTimeout},
		{400, "", KindInvalidArgument},
		{413, "", KindDataTooLarge},
		{301, "", KindRedirect},
		{401, "", KindAuthFailed},
		{403, "AuthenticationFailed", KindAuthFailed},
		{403, "AccountIsDisabled", KindPermissionDenied},
		{503, "", KindIO},
	} {
		if got := FromHTTPStatus(tc.status, tc.azureCode); got != tc.want {
			t.Errorf("FromHTTPStatus(%d, %q) = %v, want %v", tc.status, tc.azureCode, got, tc.want)
		}
	}
}

func TestKindOfUnwrapsPlainErrorsToIO(t *testing.T) {
	if KindOf(errors.New("socket closed")) != KindIO {
		t.Error("plain error did not map to io")
	}
	if KindOf(New(KindExists, "already there")) != KindExists {
		t.Error("typed error lost its kind")
	}
	if KindOf(nil) != KindUnknown {
		t.Error("nil error did not map to unknown")
	}
}

func TestWrapPreservesCauseForErrorsIs(t *testing.T) {
	cause := errors.New("underlying")
	err := Wrap(KindIO, cause, "pump failed")
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the wrapped cause")
	}
}

func TestWithStatusCopies(t *testing.T) {
	base := New(KindNotFound, "no such blob")
	withStatus := base.WithStatus(404, "req-1")
	if base.HTTPStatus != 0 {
		t.Error("WithStatus mutated the original error")
	}
	if withStatus.HTTPStatus != 404 || withStatus.RequestID != "req-1" {
		t.Errorf("copy = %+v", withStatus)
	}
}

func TestPredicatesDistinguishNotFoundFromExists(t *testing.T) {
	if !IsNotFound(New(KindNotFound, "x")) || IsNotFound(New(KindExists, "x")) {
		t.Error("IsNotFound misclassified")
	}
	if !IsExists(New(KindExists, "x")) || IsExists(New(KindNotFound, "x")) {
		t.Error("IsExists misclassified")
	}
}
