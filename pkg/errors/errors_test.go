package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
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
		{code: CodeInvalidTransition, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInsufficientAmount, status: http.StatusUnprocessableEntity, publicMsg: "tendered amount is insufficient", detailsOK: true},
		{code: CodeOverAmount, status: http.StatusUnprocessableEntity, publicMsg: "payment exceeds remaining balance", detailsOK: true},
		{code: CodeStorage, status: http.StatusInternalServerError, publicMsg: "saving failed", retryable: true},
		{code: CodeEmptyUndo, status: http.StatusConflict, publicMsg: "nothing to undo"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeIdempotency, status: http.StatusConflict, publicMsg: "idempotency key conflict"},
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
	base := New(CodeValidation, "dish required")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "dish required" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "dish"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("disk full")
	wrapped := Wrap(CodeStorage, cause, "save pads")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeStorage {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeOverAmount, "too much"))
	if got := As(err); got == nil || got.Code() != CodeOverAmount {
		t.Fatalf("As failed to return typed error")
	}
	if !IsCode(err, CodeOverAmount) {
		t.Fatalf("IsCode should match wrapped code")
	}
	if IsCode(err, CodeEmptyUndo) {
		t.Fatalf("IsCode should not match other codes")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestDumpWalksChain(t *testing.T) {
	err := fmt.Errorf("flush: %w", Wrap(CodeStorage, stdErrors.New("conn reset"), "save pads"))
	d := Dump(err)
	if d.Code != CodeStorage {
		t.Fatalf("expected storage code, got %s", d.Code)
	}
	if len(d.Chain) != 3 {
		t.Fatalf("expected 3 chain entries, got %d: %v", len(d.Chain), d.Chain)
	}
	if d.Store != nil {
		t.Fatalf("expected no store detail, got %+v", d.Store)
	}
	if Dump(nil).TopMessage != "" {
		t.Fatalf("expected empty dump for nil")
	}
}

func TestDumpExtractsStoreDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", TableName: "kv_entries", ConstraintName: "kv_entries_pkey", Message: "duplicate key"}
	d := Dump(Wrap(CodeStorage, fmt.Errorf("save: %w", pgErr), "save pads"))
	if d.Store == nil || d.Store.Engine != "postgres" || d.Store.Code != "23505" {
		t.Fatalf("unexpected postgres detail %+v", d.Store)
	}
	fields := d.Fields()
	if fields["store_table"] != "kv_entries" || fields["store_constraint"] != "kv_entries_pkey" {
		t.Fatalf("unexpected fields %v", fields)
	}

	liteErr := sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}
	d = Dump(Wrap(CodeStorage, liteErr, "save pads"))
	if d.Store == nil || d.Store.Engine != "sqlite" || d.Store.Code != "19/1555" {
		t.Fatalf("unexpected sqlite detail %+v", d.Store)
	}
	if _, ok := Dump(stdErrors.New("plain")).Fields()["store_engine"]; ok {
		t.Fatalf("plain errors carry no store fields")
	}
}
