package errors

import (
	"testing"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("quiz_id", "is required", "")

	if err.Field != "quiz_id" {
		t.Errorf("Expected field to be 'quiz_id', got '%s'", err.Field)
	}

	expected := "validation error on field 'quiz_id': is required"
	if err.Error() != expected {
		t.Errorf("Expected error message to be '%s', got '%s'", expected, err.Error())
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	if errs.Error() != "validation failed" {
		t.Errorf("Expected 'validation failed' for empty errors, got '%s'", errs.Error())
	}

	errs = append(errs, *NewValidationError("type", "must be a valid question type (single_choice, boolean, matching, ordering)", nil))
	expected := "validation failed: type must be a valid question type (single_choice, boolean, matching, ordering)"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for single error, got '%s'", expected, errs.Error())
	}

	errs = append(errs, *NewValidationError("points", "must be at least 0", nil))
	expected = "validation failed: 2 field errors"
	if errs.Error() != expected {
		t.Errorf("Expected '%s' for multiple errors, got '%s'", expected, errs.Error())
	}
}
