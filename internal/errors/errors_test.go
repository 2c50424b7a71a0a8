package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapKeepsCodeAndCause(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeStorageFailure, cause, "写入失败", WithMetadata(MetaStage, "save"))

	wrapped := fmt.Errorf("outer: %w", err)
	if CodeOf(wrapped) != CodeStorageFailure {
		t.Fatalf("unexpected code %s", CodeOf(wrapped))
	}
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("expected cause to be reachable")
	}
	if !stdErrors.Is(wrapped, New(CodeStorageFailure, "")) {
		t.Fatalf("expected errors.Is to match by code")
	}
	e, ok := From(wrapped)
	if !ok || e.Meta(MetaStage) != "save" {
		t.Fatalf("unexpected metadata: %+v", e.Metadata())
	}
}

func TestRegisterDefaultsHTTPStatus(t *testing.T) {
	const code Code = "TEST_REGISTERED"
	Register(code, Attributes{Message: "registered", Severity: SeverityWarning})

	attr := AttributesOf(code)
	if attr.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("unexpected status %d", attr.HTTPStatus)
	}
	if got := New(code, "").Message(); got != "registered" {
		t.Fatalf("unexpected default message %q", got)
	}
}

func TestUnknownErrorsAlert(t *testing.T) {
	if !ShouldAlert(stdErrors.New("plain")) {
		t.Fatalf("plain errors should alert")
	}
	if ShouldAlert(New(CodeInvalidArgument, "bad")) {
		t.Fatalf("invalid argument should not alert")
	}
	if HTTPStatusOf(New(CodeNotFound, "")) != http.StatusNotFound {
		t.Fatalf("unexpected status mapping")
	}
	if SeverityOf(New(CodeInvalidArgument, "", WithSeverity(SeverityCritical))) != SeverityCritical {
		t.Fatalf("severity override ignored")
	}
}
