package errors

import (
	stdErrors "errors"
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
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInvalidDateRange, status: http.StatusBadRequest, publicMsg: "departure must be after arrival", detailsOK: true},
		{code: CodeBookingConflict, status: http.StatusConflict, publicMsg: "dates are no longer available", detailsOK: true},
		{code: CodePaymentExpired, status: http.StatusUnprocessableEntity, publicMsg: "payment window has expired", detailsOK: true},
		{code: CodeDuplicatePayment, status: http.StatusConflict, publicMsg: "a pending payment already exists for this reservation", detailsOK: true},
		{code: CodeLedgerConfig, status: http.StatusUnprocessableEntity, publicMsg: "ledger accounts are misconfigured", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
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

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := New(CodeBookingConflict, "dates taken")
	wrapped := Wrap(CodeDependency, inner, "create reservation")

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("expected outermost code, got %s", typed.Code())
	}
	if !stdErrors.Is(wrapped, inner) {
		t.Fatal("expected wrapped chain to preserve the cause")
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeDuplicatePayment, "already pending")
	if !HasCode(err, CodeDuplicatePayment) {
		t.Fatal("expected matching code")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("unexpected code match")
	}
	if HasCode(stdErrors.New("plain"), CodeNotFound) {
		t.Fatal("plain errors carry no code")
	}
}
