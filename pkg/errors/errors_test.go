package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusBadRequest, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeSignature, status: http.StatusBadRequest, publicMsg: "payment signature mismatch"},
		{code: CodeAmount, status: http.StatusBadRequest, publicMsg: "invalid payment amount", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeStore, status: http.StatusInternalServerError, publicMsg: "storage failure", retryable: true},
		{code: CodeUpstream, status: http.StatusBadGateway, publicMsg: "payment gateway unavailable", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsCodeWalksWrappedChain(t *testing.T) {
	inner := New(CodeConflict, "already assigned to another worker")
	outer := fmt.Errorf("accept: %w", inner)
	if !IsCode(outer, CodeConflict) {
		t.Fatalf("expected conflict code through wrap")
	}
	if IsCode(outer, CodeForbidden) {
		t.Fatalf("unexpected forbidden match")
	}
	if IsCode(stdErrors.New("plain"), CodeConflict) {
		t.Fatalf("plain error should not match")
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeStore, stdErrors.New("connection reset"), "load order")
	if got := err.Error(); got != "STORE_FAILURE: load order: connection reset" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := Newf(CodeNotFound, "shop %d not found", 7).Error(); got != "NOT_FOUND: shop 7 not found" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestCodeOfAndRetryable(t *testing.T) {
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatalf("untyped errors should classify as internal")
	}
	wrapped := fmt.Errorf("charge: %w", New(CodeUpstream, "gateway timeout"))
	if CodeOf(wrapped) != CodeUpstream {
		t.Fatalf("expected upstream code, got %s", CodeOf(wrapped))
	}
	if !IsRetryable(wrapped) {
		t.Fatalf("upstream failures should be retryable")
	}
	if IsRetryable(New(CodeStateConflict, "already delivered")) {
		t.Fatalf("state conflicts are final")
	}
	if IsRetryable(nil) {
		t.Fatalf("nil error is not retryable")
	}
}
