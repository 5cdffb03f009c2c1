package errors

import (
	"errors"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "resource not found")
		if err.Error() != "[NOT_FOUND] resource not found" {
			t.Errorf("expected [NOT_FOUND] resource not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		expected := "[INTERNAL_ERROR] internal failure: original error"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeValidationError, "invalid input")
		if !IsCode(err, CodeValidationError) {
			t.Error("expected IsCode to return true for CodeValidationError")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsCodeWithWrapped", func(t *testing.T) {
		original := errors.New("original error")
		err := Wrap(original, CodeInternal, "internal failure")
		if !IsCode(err, CodeInternal) {
			t.Error("expected IsCode to return true for wrapped CodeInternal")
		}
	})

	t.Run("SentinelMatch", func(t *testing.T) {
		err := Newf(CodeNoPrototype, "Method %s::%s does not have a prototype", "Cls1", "method1")
		if !errors.Is(err, ErrNoPrototype) {
			t.Error("expected errors.Is to match ErrNoPrototype")
		}
		if errors.Is(err, ErrMethodNotFound) {
			t.Error("did not expect errors.Is to match ErrMethodNotFound")
		}
		if CodeOf(err) != CodeNoPrototype {
			t.Errorf("expected code NO_PROTOTYPE, got %s", CodeOf(err))
		}
	})

	t.Run("AddContextForeign", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxType, "Cls1")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected internal code, got %v", err)
		}
	})
}
