package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDatasetError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeWriteFailed, "put failed")
	expected := "[STORAGE:WRITE_FAILED] put failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestDatasetError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryStorage, CodeWriteFailed, "put failed", cause)
	expected := "[STORAGE:WRITE_FAILED] put failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestDatasetError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryMetadata, CodeCorruptFile, "bad footer", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestDatasetError_Is(t *testing.T) {
	err1 := New(ErrCategoryStorage, CodeWriteFailed, "first")
	err2 := New(ErrCategoryStorage, CodeWriteFailed, "second")
	err3 := New(ErrCategoryStorage, CodeReadFailed, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryPlan, CodeNotImplemented, "global dictionary")
	if GetCode(err) != CodeNotImplemented {
		t.Errorf("got %q, want %q", GetCode(err), CodeNotImplemented)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-DatasetError should return empty code")
	}
}

func TestGetCode_Wrapped(t *testing.T) {
	inner := NewUnknownColumn("ghost")
	outer := fmt.Errorf("plan read: %w", inner)
	if GetCode(outer) != CodeUnknownColumn {
		t.Errorf("got %q, want %q", GetCode(outer), CodeUnknownColumn)
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		err  error
		pred func(error) bool
		want bool
	}{
		{NewSchemaMismatch("Appended columns do not match"), IsSchemaMismatch, true},
		{NewSchemaMismatch("Appended dtypes do not match"), IsDivisionOverlap, false},
		{NewDivisionOverlap("Appended divisions overlap"), IsDivisionOverlap, true},
		{NewUnknownColumn("ghost"), IsUnknownColumn, true},
		{NewNotImplemented("cross-engine partitioned read"), IsNotImplemented, true},
		{NewNotDictionaryEncoded("amount"), IsNotDictionaryEncoded, true},
		{fmt.Errorf("plain error"), IsSchemaMismatch, false},
	}
	for i, tt := range tests {
		if got := tt.pred(tt.err); got != tt.want {
			t.Errorf("case %d: got %v, want %v (err=%v)", i, got, tt.want, tt.err)
		}
	}
}

func TestPredicates_Wrapped(t *testing.T) {
	err := fmt.Errorf("append to dataset: %w", NewDivisionOverlap("Appended divisions overlap"))
	if !IsDivisionOverlap(err) {
		t.Error("predicate must see through wrapping")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	c := NewCorruptFile("part.0000.dsk", cause)
	if c.Category != ErrCategoryMetadata || !errors.Is(c, cause) {
		t.Error("NewCorruptFile mismatch")
	}

	s := NewStorageError(CodeReadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || s.Code != CodeReadFailed {
		t.Error("NewStorageError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}

	u := NewUnknownColumn("ghost")
	if u.Code != CodeUnknownColumn || u.Message != `column "ghost" not found in schema` {
		t.Errorf("NewUnknownColumn: %v", u)
	}
}
